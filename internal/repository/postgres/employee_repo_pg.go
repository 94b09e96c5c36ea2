package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/njprem/agri_admin_backend/internal/domain"
)

type EmployeeRepository struct {
	db *sqlx.DB
}

func NewEmployeeRepo(db *sqlx.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

const employeeColumns = `id, display_id, first_name, last_name, gender, date_of_birth, phone, email,
		          designation, state, district, pincode, education, pan_number, ifsc_code,
		          account_number, kyc_status, import_id, created_at, updated_at`

func (r *EmployeeRepository) Create(ctx context.Context, e *domain.Employee) (*domain.Employee, error) {
	query := `
		INSERT INTO employee (
			display_id, first_name, last_name, gender, date_of_birth, phone, email,
			designation, state, district, pincode, education, pan_number, ifsc_code,
			account_number, kyc_status, import_id
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17
		)
		RETURNING ` + employeeColumns

	var inserted domain.Employee
	if err := r.db.GetContext(ctx, &inserted, query,
		nullStringPtr(e.DisplayID),
		e.FirstName,
		e.LastName,
		stringPtrOrNil(e.Gender),
		nullTimePtr(e.DateOfBirth),
		e.Phone,
		e.Email,
		nullStringPtr(e.Designation),
		nullStringPtr(e.State),
		nullStringPtr(e.District),
		nullStringPtr(e.Pincode),
		nullStringPtr(e.Education),
		nullStringPtr(e.PANNumber),
		nullStringPtr(e.IFSCCode),
		nullStringPtr(e.AccountNumber),
		e.KYCStatus,
		uuidPtrOrNil(e.ImportID),
	); err != nil {
		return nil, err
	}
	return &inserted, nil
}

func (r *EmployeeRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM employee WHERE LOWER(email) = LOWER($1))`, email)
	return exists, err
}

func (r *EmployeeRepository) FindByEmail(ctx context.Context, email string) (*domain.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employee WHERE LOWER(email) = LOWER($1)`
	var employee domain.Employee
	if err := r.db.GetContext(ctx, &employee, query, email); err != nil {
		return nil, err
	}
	return &employee, nil
}

func (r *EmployeeRepository) ListForExport(ctx context.Context, filter domain.ExportFilter, limit int) ([]domain.Employee, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if v := strings.TrimSpace(filter.District); v != "" {
		where = append(where, "district ILIKE "+arg(v))
	}
	if filter.KYCStatus != "" {
		where = append(where, "kyc_status = "+arg(filter.KYCStatus))
	}
	if v := strings.TrimSpace(filter.AssignedEmployeeEmail); v != "" {
		where = append(where, "LOWER(email) = LOWER("+arg(v)+")")
	}
	if filter.From != nil {
		where = append(where, "created_at >= "+arg(*filter.From))
	}
	if filter.To != nil {
		where = append(where, "created_at < "+arg(filter.To.AddDate(0, 0, 1)))
	}

	query := `SELECT ` + employeeColumns + ` FROM employee`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC"
	if limit > 0 {
		query += " LIMIT " + arg(limit)
	}

	out := make([]domain.Employee, 0)
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *EmployeeRepository) FindFirstByDistrict(ctx context.Context, district string) (*domain.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employee WHERE district ILIKE $1 ORDER BY created_at ASC LIMIT 1`
	var employee domain.Employee
	if err := r.db.GetContext(ctx, &employee, query, strings.TrimSpace(district)); err != nil {
		return nil, err
	}
	return &employee, nil
}
