package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/njprem/agri_admin_backend/internal/domain"
)

type FarmerRepository struct {
	db *sqlx.DB
}

func NewFarmerRepo(db *sqlx.DB) *FarmerRepository {
	return &FarmerRepository{db: db}
}

func (r *FarmerRepository) Create(ctx context.Context, f *domain.Farmer) (*domain.Farmer, error) {
	const query = `
		INSERT INTO farmer (
			display_id, first_name, last_name, gender, date_of_birth, phone, email,
			state, district, village, pincode, education, aadhaar_number, kyc_status,
			assigned_employee_id, import_id
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13, $14,
			$15, $16
		)
		RETURNING id, display_id, first_name, last_name, gender, date_of_birth, phone, email,
		          state, district, village, pincode, education, aadhaar_number, kyc_status,
		          assigned_employee_id, import_id, created_at, updated_at
	`
	var inserted domain.Farmer
	if err := r.db.GetContext(ctx, &inserted, query,
		nullStringPtr(f.DisplayID),
		f.FirstName,
		f.LastName,
		stringPtrOrNil(f.Gender),
		nullTimePtr(f.DateOfBirth),
		f.Phone,
		nullStringPtr(f.Email),
		nullStringPtr(f.State),
		nullStringPtr(f.District),
		nullStringPtr(f.Village),
		nullStringPtr(f.Pincode),
		nullStringPtr(f.Education),
		nullStringPtr(f.AadhaarNumber),
		f.KYCStatus,
		uuidPtrOrNil(f.AssignedEmployeeID),
		uuidPtrOrNil(f.ImportID),
	); err != nil {
		return nil, err
	}
	return &inserted, nil
}

func (r *FarmerRepository) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM farmer WHERE phone = $1)`, phone)
	return exists, err
}

func (r *FarmerRepository) ListForExport(ctx context.Context, filter domain.ExportFilter, limit int) ([]domain.Farmer, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if v := strings.TrimSpace(filter.District); v != "" {
		where = append(where, "f.district ILIKE "+arg(v))
	}
	if filter.KYCStatus != "" {
		where = append(where, "f.kyc_status = "+arg(filter.KYCStatus))
	}
	if v := strings.TrimSpace(filter.AssignedEmployeeEmail); v != "" {
		where = append(where, "LOWER(e.email) = LOWER("+arg(v)+")")
	}
	if filter.From != nil {
		where = append(where, "f.created_at >= "+arg(*filter.From))
	}
	if filter.To != nil {
		where = append(where, "f.created_at < "+arg(filter.To.AddDate(0, 0, 1)))
	}

	query := `
		SELECT f.id, f.display_id, f.first_name, f.last_name, f.gender, f.date_of_birth, f.phone,
		       f.email, f.state, f.district, f.village, f.pincode, f.education, f.aadhaar_number,
		       f.kyc_status, f.assigned_employee_id, f.import_id, f.created_at, f.updated_at,
		       e.email AS assigned_employee_email
		FROM farmer f
		LEFT JOIN employee e ON e.id = f.assigned_employee_id
	`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY f.created_at ASC"
	if limit > 0 {
		query += " LIMIT " + arg(limit)
	}

	out := make([]domain.Farmer, 0)
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

// AssignByDistrict points every farmer in the district at the employee. Running
// it twice leaves the same mapping.
func (r *FarmerRepository) AssignByDistrict(ctx context.Context, district, employeeEmail string) (int64, error) {
	const query = `
		UPDATE farmer
		SET assigned_employee_id = e.id,
		    updated_at = NOW()
		FROM employee e
		WHERE LOWER(e.email) = LOWER($2)
		  AND farmer.district ILIKE $1
	`
	res, err := r.db.ExecContext(ctx, query, district, employeeEmail)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
