// Package exchange drives bulk import and export against the admin API:
// file selection, submission, status polling, downloads and district-wide
// farmer reassignment.
package exchange

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/njprem/agri_admin_backend/internal/client"
	"github.com/njprem/agri_admin_backend/internal/domain"
	"github.com/njprem/agri_admin_backend/internal/idcache"
	"github.com/njprem/agri_admin_backend/internal/validation"
)

const (
	DefaultPollInterval = 10 * time.Second
	DefaultPollAttempts = 30
)

// API is the part of the admin API client the engine needs.
type API interface {
	BulkImport(ctx context.Context, entity domain.EntityType, upload client.ImportUpload) (*domain.ImportJob, error)
	ImportStatus(ctx context.Context, id uuid.UUID, errorLimit int) (*domain.ImportJob, error)
	BulkExport(ctx context.Context, entity domain.EntityType, req domain.ExportRequest) (*client.File, error)
	DownloadTemplate(ctx context.Context, entity domain.EntityType) (*client.File, error)
	BulkAssignFarmersByLocation(ctx context.Context, location, employeeEmail string) (int64, error)
}

// SelectedFile is a file picked for upload; nothing is sent until StartImport.
type SelectedFile struct {
	Name        string
	ContentType string
	Data        []byte
}

type Option func(*Engine)

// WithPolling overrides the poll interval and attempt cap.
func WithPolling(interval time.Duration, attempts int) Option {
	return func(e *Engine) {
		if interval > 0 {
			e.interval = interval
		}
		if attempts > 0 {
			e.attempts = attempts
		}
	}
}

// WithTimer replaces time.After, letting tests drive the poll clock.
func WithTimer(after func(time.Duration) <-chan time.Time) Option {
	return func(e *Engine) { e.after = after }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithSaver(s Saver) Option {
	return func(e *Engine) { e.saver = s }
}

func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithIDCache(c *idcache.Cache) Option {
	return func(e *Engine) { e.ids = c }
}

// AsSuperAdmin unlocks the EMPLOYEE entity.
func AsSuperAdmin(ok bool) Option {
	return func(e *Engine) { e.superAdmin = ok }
}

// OnFinish is called once per import when it reaches a terminal state.
func OnFinish(fn func(Report)) Option {
	return func(e *Engine) { e.onFinish = fn }
}

type Engine struct {
	api        API
	interval   time.Duration
	attempts   int
	after      func(time.Duration) <-chan time.Time
	now        func() time.Time
	saver      Saver
	logger     *log.Logger
	ids        *idcache.Cache
	superAdmin bool
	onFinish   func(Report)

	root   context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool

	selected *SelectedFile
	busy     map[domain.EntityType]bool
	handles  map[uuid.UUID]*ImportHandle
}

func New(api API, opts ...Option) *Engine {
	root, stop := context.WithCancel(context.Background())
	e := &Engine{
		api:      api,
		interval: DefaultPollInterval,
		attempts: DefaultPollAttempts,
		after:    time.After,
		now:      time.Now,
		logger:   log.Default(),
		root:     root,
		stop:     stop,
		busy:     make(map[domain.EntityType]bool),
		handles:  make(map[uuid.UUID]*ImportHandle),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var importMIMEs = map[string]struct{}{
	domain.MIMEExcel: {},
	domain.MIMEXls:   {},
	domain.MIMECSV:   {},
}

// AcceptsFile is the upload gate: spreadsheet or CSV MIME type, or a name
// ending in .csv.
func AcceptsFile(name, contentType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	if _, ok := importMIMEs[mediaType]; ok {
		return true
	}
	return strings.EqualFold(filepath.Ext(strings.TrimSpace(name)), ".csv")
}

// SelectFile holds f for the next import. A rejected file clears any
// previous selection.
func (e *Engine) SelectFile(f SelectedFile) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !AcceptsFile(f.Name, f.ContentType) {
		e.selected = nil
		return invalid("file", "only .xlsx, .xls and .csv files can be imported")
	}
	sel := f
	e.selected = &sel
	return nil
}

func (e *Engine) Selected() *SelectedFile {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.selected == nil {
		return nil
	}
	sel := *e.selected
	return &sel
}

func (e *Engine) ClearSelection() {
	e.mu.Lock()
	e.selected = nil
	e.mu.Unlock()
}

func (e *Engine) checkEntity(entity domain.EntityType) error {
	if !entity.Valid() {
		return invalid("entityType", "must be FARMER or EMPLOYEE")
	}
	if entity == domain.EntityEmployee && !e.superAdmin {
		return ErrSuperAdminRequired
	}
	return nil
}

// StartImport uploads the selected file. A PROCESSING reply starts a poll
// loop owned by the returned handle; a terminal reply yields a handle that
// is already done.
func (e *Engine) StartImport(ctx context.Context, entity domain.EntityType) (*ImportHandle, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrEngineClosed
	}
	if e.selected == nil {
		e.mu.Unlock()
		return nil, invalid("file", "no file")
	}
	if err := e.checkEntity(entity); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if e.busy[entity] {
		e.mu.Unlock()
		return nil, ErrImportInProgress
	}
	e.busy[entity] = true
	file := *e.selected
	e.mu.Unlock()

	job, err := e.api.BulkImport(ctx, entity, client.ImportUpload{
		FileName:    file.Name,
		ContentType: file.ContentType,
		Contents:    file.Data,
		AutoAssign:  false,
		Strategy:    domain.AssignmentManual,
	})
	if err == nil && job == nil {
		err = fmt.Errorf("empty response")
	}
	if err != nil {
		e.release(entity)
		return nil, &ImportFailed{Message: err.Error(), Err: err}
	}
	if job.EntityType == "" {
		job.EntityType = entity
	}

	pollCtx, cancel := context.WithCancel(e.root)
	h := newHandle(job, cancel)
	if job.Status.Terminal() {
		h.observe(job)
		e.finish(h, entity)
		return h, nil
	}

	// Close may have run during the upload. Registering with wg under mu
	// keeps every Add ahead of Close's Wait.
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		h.setState(StateCancelled)
		e.finish(h, entity)
		return h, nil
	}
	e.handles[h.ID] = h
	e.wg.Add(1)
	e.mu.Unlock()

	go e.poll(pollCtx, h, entity)
	return h, nil
}

// Handle looks up an import whose poll loop is still running. Finished
// imports are forgotten; keep the handle StartImport returned to read them.
func (e *Engine) Handle(id uuid.UUID) (*ImportHandle, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.handles[id]
	return h, ok
}

// poll reads the job status every interval until it is terminal, the
// attempt cap is hit or the handle is cancelled. Read errors are logged and
// count as a spent attempt.
func (e *Engine) poll(ctx context.Context, h *ImportHandle, entity domain.EntityType) {
	defer e.wg.Done()
	defer e.finish(h, entity)

	for {
		select {
		case <-ctx.Done():
			h.setState(StateCancelled)
			return
		case <-e.after(e.interval):
		}

		attempt := h.beginPoll()
		job, err := e.api.ImportStatus(ctx, h.ID, ReportErrorLimit)
		switch {
		case err != nil && ctx.Err() != nil:
			h.setState(StateCancelled)
			return
		case err != nil:
			e.logger.Printf("import %s: status poll %d/%d failed: %v", h.ID, attempt, e.attempts, err)
			h.absorb(err)
		case job != nil:
			h.observe(job)
			if job.Status.Terminal() {
				return
			}
		}

		if attempt >= e.attempts {
			e.logger.Printf("import %s: no final status after %d polls", h.ID, attempt)
			h.setState(StateAbandoned)
			return
		}
	}
}

func (e *Engine) finish(h *ImportHandle, entity domain.EntityType) {
	h.cancel()
	e.mu.Lock()
	delete(e.busy, entity)
	delete(e.handles, h.ID)
	e.mu.Unlock()

	state := h.State()
	if e.ids != nil && (state == StateCompleted || state == StateFailed) {
		e.ids.InvalidateEntity(entity)
	}
	close(h.done)
	if e.onFinish != nil {
		e.onFinish(h.Report())
	}
}

func (e *Engine) release(entity domain.EntityType) {
	e.mu.Lock()
	delete(e.busy, entity)
	e.mu.Unlock()
}

// Close cancels every poll loop and waits for them to exit.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.stop()
	e.wg.Wait()
}

// ExportFileName is the saved name of an export taken at t.
func ExportFileName(entity domain.EntityType, format domain.ExportFormat, t time.Time) string {
	return fmt.Sprintf("%s_export_%d.%s", entity.Lower(), t.UnixMilli(), format.Extension())
}

func TemplateFileName(entity domain.EntityType) string {
	return entity.Lower() + "_import_template.xlsx"
}

// ExportData fetches a filtered export and hands it to the saver. It
// returns the saved file name.
func (e *Engine) ExportData(ctx context.Context, entity domain.EntityType, req domain.ExportRequest) (string, error) {
	if err := e.checkEntity(entity); err != nil {
		return "", err
	}
	req.Format = domain.ExportFormat(strings.ToUpper(strings.TrimSpace(string(req.Format))))
	if req.Format == "" {
		req.Format = domain.ExportFormatExcel
	}
	if !req.Format.Valid() {
		return "", invalid("format", "must be EXCEL or CSV")
	}
	if req.FromDate != nil && req.ToDate != nil && req.FromDate.After(*req.ToDate) {
		return "", invalid("fromDate", "must not be after toDate")
	}

	file, err := e.api.BulkExport(ctx, entity, req)
	if err != nil {
		return "", &ExportFailed{Message: err.Error(), Err: err}
	}
	name := ExportFileName(entity, req.Format, e.now())
	if err := e.save(ctx, name, req.Format.ContentType(), file.Data); err != nil {
		return "", &ExportFailed{Message: err.Error(), Err: err}
	}
	return name, nil
}

// DownloadTemplate saves the blank import sheet for entity.
func (e *Engine) DownloadTemplate(ctx context.Context, entity domain.EntityType) (string, error) {
	if err := e.checkEntity(entity); err != nil {
		return "", err
	}
	file, err := e.api.DownloadTemplate(ctx, entity)
	if err != nil {
		return "", fmt.Errorf("download template: %w", err)
	}
	name := TemplateFileName(entity)
	if err := e.save(ctx, name, domain.MIMEExcel, file.Data); err != nil {
		return "", fmt.Errorf("save template: %w", err)
	}
	return name, nil
}

func (e *Engine) save(ctx context.Context, name, contentType string, data []byte) error {
	if e.saver == nil {
		return fmt.Errorf("no saver configured")
	}
	return e.saver.Save(ctx, name, contentType, data)
}

// BulkAssignByLocation moves every farmer in a district to one employee.
// Repeating it reassigns the same farmers again.
func (e *Engine) BulkAssignByLocation(ctx context.Context, location, employeeEmail string) (int64, error) {
	location = strings.TrimSpace(location)
	employeeEmail = strings.TrimSpace(employeeEmail)
	if location == "" {
		return 0, invalid("location", "is required")
	}
	if employeeEmail == "" {
		return 0, invalid("employeeEmail", "is required")
	}
	if err := validation.Email("employeeEmail", employeeEmail); err != nil {
		return 0, err
	}
	return e.api.BulkAssignFarmersByLocation(ctx, location, employeeEmail)
}
