package domain

import (
	"time"

	"github.com/google/uuid"
)

type ImportStatus string

const (
	ImportStatusProcessing ImportStatus = "PROCESSING"
	ImportStatusCompleted  ImportStatus = "COMPLETED"
	ImportStatusFailed     ImportStatus = "FAILED"
)

// Terminal reports whether no further counter updates will happen.
func (s ImportStatus) Terminal() bool {
	return s == ImportStatusCompleted || s == ImportStatusFailed
}

type AssignmentStrategy string

const (
	AssignmentManual     AssignmentStrategy = "MANUAL"
	AssignmentByLocation AssignmentStrategy = "LOCATION"
)

type ImportJob struct {
	ID                 uuid.UUID          `db:"id" json:"importId"`
	EntityType         EntityType         `db:"entity_type" json:"entityType"`
	UploadedBy         uuid.UUID          `db:"uploaded_by" json:"uploadedBy"`
	Status             ImportStatus       `db:"status" json:"status"`
	FileName           string             `db:"file_name" json:"fileName"`
	FileKey            string             `db:"file_key" json:"-"`
	AutoAssign         bool               `db:"auto_assign" json:"autoAssign"`
	AssignmentStrategy AssignmentStrategy `db:"assignment_strategy" json:"assignmentStrategy"`
	TotalRecords       int                `db:"total_records" json:"totalRecords"`
	SuccessfulImports  int                `db:"successful_imports" json:"successfulImports"`
	FailedImports      int                `db:"failed_imports" json:"failedImports"`
	SkippedRecords     int                `db:"skipped_records" json:"skippedRecords"`
	FailureReason      *string            `db:"failure_reason" json:"failureReason,omitempty"`
	SubmittedAt        time.Time          `db:"submitted_at" json:"submittedAt"`
	CompletedAt        *time.Time         `db:"completed_at" json:"completedAt,omitempty"`
	CreatedAt          time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updatedAt"`
	Errors             []ImportError      `db:"-" json:"errors,omitempty"`
	ErrorCount         int                `db:"-" json:"errorCount"`
}

// Processed is the number of rows that have reached an outcome.
func (j *ImportJob) Processed() int {
	return j.SuccessfulImports + j.FailedImports + j.SkippedRecords
}

type ImportError struct {
	ID           int64     `db:"id" json:"-"`
	ImportID     uuid.UUID `db:"import_id" json:"-"`
	RowNumber    int       `db:"row_number" json:"rowNumber"`
	FieldName    string    `db:"field_name" json:"fieldName"`
	ErrorMessage string    `db:"error_message" json:"errorMessage"`
}
