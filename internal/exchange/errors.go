package exchange

import (
	"errors"

	"github.com/njprem/agri_admin_backend/internal/validation"
)

// ValidationError is a precondition that failed before any network call.
type ValidationError = validation.FieldError

var (
	ErrImportInProgress   = errors.New("an import for this entity type is already running")
	ErrSuperAdminRequired = errors.New("only super admins can exchange employee data")
	ErrEngineClosed       = errors.New("exchange engine is closed")
)

// ImportFailed wraps a transport or server error raised while submitting an
// import. Nothing is scheduled when it is returned.
type ImportFailed struct {
	Message string
	Err     error
}

func (e *ImportFailed) Error() string { return "import failed: " + e.Message }
func (e *ImportFailed) Unwrap() error { return e.Err }

// ExportFailed wraps any error raised while fetching or saving an export.
type ExportFailed struct {
	Message string
	Err     error
}

func (e *ExportFailed) Error() string { return "export failed: " + e.Message }
func (e *ExportFailed) Unwrap() error { return e.Err }

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
