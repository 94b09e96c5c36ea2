package exchange

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/njprem/agri_admin_backend/internal/domain"
)

// PollState tracks one import's status polling.
type PollState string

const (
	StateScheduled PollState = "SCHEDULED"
	StatePolling   PollState = "POLLING"
	StateCompleted PollState = "COMPLETED"
	StateFailed    PollState = "FAILED"
	StateAbandoned PollState = "ABANDONED"
	StateCancelled PollState = "CANCELLED"
)

func (s PollState) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateAbandoned, StateCancelled:
		return true
	}
	return false
}

// ReportErrorLimit is how many row errors the status panel lists.
const ReportErrorLimit = 10

// ImportHandle is the cancellable handle of one submitted import.
type ImportHandle struct {
	ID     uuid.UUID
	Entity domain.EntityType

	mu       sync.Mutex
	state    PollState
	job      domain.ImportJob
	attempts int
	lastErr  error

	cancel context.CancelFunc
	done   chan struct{}
}

func newHandle(job *domain.ImportJob, cancel context.CancelFunc) *ImportHandle {
	return &ImportHandle{
		ID:     job.ID,
		Entity: job.EntityType,
		state:  StateScheduled,
		job:    *job,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (h *ImportHandle) State() PollState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Attempts is the number of status reads issued so far.
func (h *ImportHandle) Attempts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attempts
}

// Job returns the last job snapshot seen.
func (h *ImportHandle) Job() domain.ImportJob {
	h.mu.Lock()
	defer h.mu.Unlock()
	job := h.job
	job.Errors = append([]domain.ImportError(nil), h.job.Errors...)
	return job
}

// LastError is the most recent absorbed polling error, if any.
func (h *ImportHandle) LastError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

// Done is closed once the handle reaches a terminal state.
func (h *ImportHandle) Done() <-chan struct{} { return h.done }

// Cancel stops polling. It is a no-op once the handle is terminal.
func (h *ImportHandle) Cancel() {
	if h.cancel != nil {
		h.cancel()
	}
}

// Wait blocks until the handle is terminal or ctx ends, then returns the
// current report.
func (h *ImportHandle) Wait(ctx context.Context) (Report, error) {
	select {
	case <-h.done:
		return h.Report(), nil
	case <-ctx.Done():
		return h.Report(), ctx.Err()
	}
}

func (h *ImportHandle) setState(s PollState) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

func (h *ImportHandle) beginPoll() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = StatePolling
	h.attempts++
	return h.attempts
}

// observe records a status read; counters never move backwards.
func (h *ImportHandle) observe(job *domain.ImportJob) {
	h.mu.Lock()
	defer h.mu.Unlock()
	next := *job
	next.TotalRecords = max(next.TotalRecords, h.job.TotalRecords)
	next.SuccessfulImports = max(next.SuccessfulImports, h.job.SuccessfulImports)
	next.FailedImports = max(next.FailedImports, h.job.FailedImports)
	next.SkippedRecords = max(next.SkippedRecords, h.job.SkippedRecords)
	h.job = next
	h.lastErr = nil
	switch job.Status {
	case domain.ImportStatusCompleted:
		h.state = StateCompleted
	case domain.ImportStatusFailed:
		h.state = StateFailed
	default:
		h.state = StateScheduled
	}
}

func (h *ImportHandle) absorb(err error) {
	h.mu.Lock()
	h.lastErr = err
	h.state = StateScheduled
	h.mu.Unlock()
}

// Report is the status panel of an import.
type Report struct {
	ImportID      uuid.UUID
	Entity        domain.EntityType
	FileName      string
	State         PollState
	Total         int
	Successful    int
	Failed        int
	Skipped       int
	Errors        []domain.ImportError
	MoreErrors    int
	FailureReason string
	Attempts      int
}

func (h *ImportHandle) Report() Report {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := Report{
		ImportID:   h.ID,
		Entity:     h.Entity,
		FileName:   h.job.FileName,
		State:      h.state,
		Total:      h.job.TotalRecords,
		Successful: h.job.SuccessfulImports,
		Failed:     h.job.FailedImports,
		Skipped:    h.job.SkippedRecords,
		Attempts:   h.attempts,
	}
	errs := h.job.Errors
	if len(errs) > ReportErrorLimit {
		errs = errs[:ReportErrorLimit]
	}
	r.Errors = append([]domain.ImportError(nil), errs...)
	total := max(h.job.ErrorCount, len(h.job.Errors))
	r.MoreErrors = total - len(r.Errors)
	if h.job.FailureReason != nil {
		r.FailureReason = *h.job.FailureReason
	}
	return r
}

// Message is the one-line status shown to the user.
func (r Report) Message() string {
	switch r.State {
	case StateCompleted:
		return fmt.Sprintf("Import completed: %d of %d records imported, %d failed, %d skipped",
			r.Successful, r.Total, r.Failed, r.Skipped)
	case StateFailed:
		if r.FailureReason != "" {
			return "Import failed: " + r.FailureReason
		}
		return "Import failed"
	case StateAbandoned:
		return "Import status unknown, check back later"
	case StateCancelled:
		return "Stopped tracking import; it may still be running on the server"
	default:
		return fmt.Sprintf("Import in progress: %d of %d records processed",
			r.Successful+r.Failed+r.Skipped, r.Total)
	}
}
