package ports

import (
	"context"

	"github.com/njprem/agri_admin_backend/internal/domain"
)

type FarmerRepository interface {
	Create(ctx context.Context, farmer *domain.Farmer) (*domain.Farmer, error)
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
	ListForExport(ctx context.Context, filter domain.ExportFilter, limit int) ([]domain.Farmer, error)
	AssignByDistrict(ctx context.Context, district, employeeEmail string) (int64, error)
}

type EmployeeRepository interface {
	Create(ctx context.Context, employee *domain.Employee) (*domain.Employee, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	FindByEmail(ctx context.Context, email string) (*domain.Employee, error)
	FindFirstByDistrict(ctx context.Context, district string) (*domain.Employee, error)
	ListForExport(ctx context.Context, filter domain.ExportFilter, limit int) ([]domain.Employee, error)
}
