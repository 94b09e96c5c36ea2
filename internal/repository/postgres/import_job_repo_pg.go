package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/njprem/agri_admin_backend/internal/domain"
)

type ImportJobRepository struct {
	db *sqlx.DB
}

func NewImportJobRepo(db *sqlx.DB) *ImportJobRepository {
	return &ImportJobRepository{db: db}
}

const importJobColumns = `id, entity_type, uploaded_by, status, file_name, file_key, auto_assign,
		          assignment_strategy, total_records, successful_imports, failed_imports,
		          skipped_records, failure_reason, submitted_at, completed_at, created_at, updated_at`

func (r *ImportJobRepository) CreateJob(ctx context.Context, job *domain.ImportJob) (*domain.ImportJob, error) {
	query := `
		INSERT INTO import_job (
			id, entity_type, uploaded_by, status, file_name, file_key, auto_assign,
			assignment_strategy, total_records, successful_imports, failed_imports,
			skipped_records, failure_reason, submitted_at, completed_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11,
			$12, $13, $14, $15, NOW(), NOW()
		)
		RETURNING ` + importJobColumns

	var inserted domain.ImportJob
	if err := r.db.GetContext(ctx, &inserted, query,
		job.ID,
		job.EntityType,
		job.UploadedBy,
		job.Status,
		job.FileName,
		job.FileKey,
		job.AutoAssign,
		job.AssignmentStrategy,
		job.TotalRecords,
		job.SuccessfulImports,
		job.FailedImports,
		job.SkippedRecords,
		nullStringPtr(job.FailureReason),
		job.SubmittedAt,
		nullTimePtr(job.CompletedAt),
	); err != nil {
		return nil, err
	}
	return &inserted, nil
}

// UpdateProgress writes counters and status. Terminal jobs are never touched
// again: the WHERE clause refuses updates once completed or failed, and the
// GREATEST calls keep counters from moving backwards.
func (r *ImportJobRepository) UpdateProgress(ctx context.Context, job *domain.ImportJob) (*domain.ImportJob, error) {
	query := `
		UPDATE import_job
		SET status = $2,
		    total_records = GREATEST(total_records, $3),
		    successful_imports = GREATEST(successful_imports, $4),
		    failed_imports = GREATEST(failed_imports, $5),
		    skipped_records = GREATEST(skipped_records, $6),
		    failure_reason = $7,
		    completed_at = $8,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'PROCESSING'
		RETURNING ` + importJobColumns

	var updated domain.ImportJob
	if err := r.db.GetContext(ctx, &updated, query,
		job.ID,
		job.Status,
		job.TotalRecords,
		job.SuccessfulImports,
		job.FailedImports,
		job.SkippedRecords,
		nullStringPtr(job.FailureReason),
		nullTimePtr(job.CompletedAt),
	); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *ImportJobRepository) FindJobByID(ctx context.Context, id uuid.UUID) (*domain.ImportJob, error) {
	query := `SELECT ` + importJobColumns + ` FROM import_job WHERE id = $1`

	var job domain.ImportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *ImportJobRepository) InsertErrors(ctx context.Context, importID uuid.UUID, errs []domain.ImportError) error {
	if len(errs) == 0 {
		return nil
	}
	const query = `
		INSERT INTO import_error (import_id, row_number, field_name, error_message)
		VALUES (:import_id, :row_number, :field_name, :error_message)
	`
	rows := make([]domain.ImportError, len(errs))
	for i, e := range errs {
		e.ImportID = importID
		rows[i] = e
	}
	_, err := r.db.NamedExecContext(ctx, query, rows)
	return err
}

func (r *ImportJobRepository) ListErrors(ctx context.Context, importID uuid.UUID, limit int) ([]domain.ImportError, error) {
	query := `
		SELECT id, import_id, row_number, field_name, error_message
		FROM import_error
		WHERE import_id = $1
		ORDER BY row_number ASC, id ASC
	`
	args := []any{importID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	out := make([]domain.ImportError, 0)
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ImportJobRepository) CountErrors(ctx context.Context, importID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM import_error WHERE import_id = $1`, importID)
	return count, err
}

// FailProcessing closes out jobs whose worker died with the previous process.
func (r *ImportJobRepository) FailProcessing(ctx context.Context, reason string) (int64, error) {
	const query = `
		UPDATE import_job
		SET status = 'FAILED',
		    failure_reason = $1,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE status = 'PROCESSING'
	`
	res, err := r.db.ExecContext(ctx, query, reason)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
