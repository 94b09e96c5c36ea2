package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/njprem/agri_admin_backend/internal/domain"
	"github.com/njprem/agri_admin_backend/internal/repository/ports"
	"github.com/njprem/agri_admin_backend/internal/validation"
)

var (
	ErrExportInvalidFormat = errors.New("export format must be EXCEL or CSV")
	ErrExportInvalidRange  = errors.New("export fromDate must not be after toDate")
	ErrExportInvalidKYC    = errors.New("unknown KYC status filter")
	ErrAssignInvalid       = errors.New("location and employee email are required")
	ErrEmployeeNotFound    = errors.New("employee not found")
)

const exportDateLayout = "2006-01-02"

type ExportResult struct {
	FileName    string
	ContentType string
	Data        []byte
	Rows        int
}

// BulkExportService renders filtered entity listings and performs the
// location-based farmer assignment.
type BulkExportService struct {
	farmers   ports.FarmerRepository
	employees ports.EmployeeRepository
	maxRows   int
	now       func() time.Time
}

func NewBulkExportService(farmers ports.FarmerRepository, employees ports.EmployeeRepository, maxRows int) *BulkExportService {
	if maxRows <= 0 {
		maxRows = 50000
	}
	return &BulkExportService{farmers: farmers, employees: employees, maxRows: maxRows, now: time.Now}
}

func (s *BulkExportService) Export(ctx context.Context, requester *domain.User, entity domain.EntityType, req domain.ExportRequest) (*ExportResult, error) {
	if !entity.Valid() {
		return nil, ErrUnknownEntity
	}
	if entity == domain.EntityEmployee && !requester.IsSuperAdmin() {
		return nil, ErrSuperAdminRequired
	}
	if req.Format == "" {
		req.Format = domain.ExportFormatExcel
	}
	if !req.Format.Valid() {
		return nil, ErrExportInvalidFormat
	}
	if req.KYCStatus != "" && !req.KYCStatus.Valid() {
		return nil, ErrExportInvalidKYC
	}
	if req.FromDate != nil && req.ToDate != nil && req.FromDate.After(*req.ToDate) {
		return nil, ErrExportInvalidRange
	}

	filter := domain.ExportFilter{
		AssignedEmployeeEmail: strings.ToLower(strings.TrimSpace(req.AssignedEmployeeEmail)),
		District:              strings.TrimSpace(req.Location),
		KYCStatus:             req.KYCStatus,
		From:                  req.FromDate,
		To:                    req.ToDate,
	}

	var (
		header []string
		rows   [][]string
	)
	switch entity {
	case domain.EntityEmployee:
		list, err := s.employees.ListForExport(ctx, filter, s.maxRows)
		if err != nil {
			return nil, err
		}
		header, rows = employeeExportRows(list)
	default:
		list, err := s.farmers.ListForExport(ctx, filter, s.maxRows)
		if err != nil {
			return nil, err
		}
		header, rows = farmerExportRows(list)
	}

	var (
		data []byte
		err  error
	)
	if req.Format == domain.ExportFormatExcel {
		sheet := "Farmers"
		if entity == domain.EntityEmployee {
			sheet = "Employees"
		}
		data, err = writeXLSX(sheet, header, rows)
	} else {
		data, err = writeCSV(header, rows)
	}
	if err != nil {
		return nil, err
	}

	return &ExportResult{
		FileName:    fmt.Sprintf("%s_export_%d.%s", entity.Lower(), s.now().UnixMilli(), req.Format.Extension()),
		ContentType: req.Format.ContentType(),
		Data:        data,
		Rows:        len(rows),
	}, nil
}

// AssignByLocation points every farmer in district at the given employee.
func (s *BulkExportService) AssignByLocation(ctx context.Context, district, employeeEmail string) (int64, error) {
	district = strings.TrimSpace(district)
	employeeEmail = strings.ToLower(strings.TrimSpace(employeeEmail))
	if district == "" || employeeEmail == "" {
		return 0, ErrAssignInvalid
	}
	if err := validation.Email("employeeEmail", employeeEmail); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrAssignInvalid, err.Error())
	}
	exists, err := s.employees.ExistsByEmail(ctx, employeeEmail)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrEmployeeNotFound
	}
	return s.farmers.AssignByDistrict(ctx, district, employeeEmail)
}

func farmerExportRows(list []domain.Farmer) ([]string, [][]string) {
	header := []string{
		"display_id", "first_name", "last_name", "phone", "email", "gender", "date_of_birth",
		"state", "district", "village", "pincode", "education", "kyc_status",
		"assigned_employee_email", "created_at",
	}
	rows := make([][]string, 0, len(list))
	for _, f := range list {
		rows = append(rows, []string{
			deref(f.DisplayID), f.FirstName, f.LastName, f.Phone, deref(f.Email), derefGender(f.Gender),
			formatDate(f.DateOfBirth), deref(f.State), deref(f.District), deref(f.Village), deref(f.Pincode),
			deref(f.Education), string(f.KYCStatus), deref(f.AssignedEmployeeEmail), f.CreatedAt.Format(time.RFC3339),
		})
	}
	return header, rows
}

func employeeExportRows(list []domain.Employee) ([]string, [][]string) {
	header := []string{
		"display_id", "first_name", "last_name", "email", "phone", "gender", "date_of_birth",
		"designation", "state", "district", "pincode", "education", "kyc_status", "created_at",
	}
	rows := make([][]string, 0, len(list))
	for _, e := range list {
		rows = append(rows, []string{
			deref(e.DisplayID), e.FirstName, e.LastName, e.Email, e.Phone, derefGender(e.Gender),
			formatDate(e.DateOfBirth), deref(e.Designation), deref(e.State), deref(e.District),
			deref(e.Pincode), deref(e.Education), string(e.KYCStatus), e.CreatedAt.Format(time.RFC3339),
		})
	}
	return header, rows
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func derefGender(g *domain.Gender) string {
	if g == nil {
		return ""
	}
	return string(*g)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(exportDateLayout)
}
