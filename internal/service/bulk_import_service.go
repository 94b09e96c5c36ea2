package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/njprem/agri_admin_backend/internal/domain"
	"github.com/njprem/agri_admin_backend/internal/repository/ports"
)

var (
	ErrImportEmptyFile        = errors.New("import file is empty")
	ErrImportTooLarge         = errors.New("import file exceeds maximum size")
	ErrImportInvalidHeaders   = errors.New("import headers missing required columns")
	ErrImportRowLimitExceeded = errors.New("import exceeds maximum allowed rows")
	ErrImportUnsupportedType  = errors.New("only .xlsx, .xls and .csv files are accepted")
	ErrImportUnreadable       = errors.New("import file could not be read")
	ErrImportQueueFull        = errors.New("import queue is full, try again shortly")
	ErrImportNotFound         = errors.New("import job not found")
	ErrUnknownEntity          = errors.New("unknown entity type")
	ErrSuperAdminRequired     = errors.New("super admin privileges required")
	ErrImportAccessDenied     = errors.New("only the uploader or a super admin can view this import")
)

// Errors beyond this many per job are counted but not stored.
const maxStoredErrors = 1000

type codeGenerator interface {
	NextCode(ctx context.Context, codeType domain.CodeType) (string, error)
}

type ageBoundsLookup interface {
	AgeBounds(userType string) (domain.AgeBounds, bool)
}

type importNotifier interface {
	NotifyImportFinished(ctx context.Context, to string, job *domain.ImportJob) error
}

type BulkImportServiceConfig struct {
	Bucket        string
	MaxRows       int
	MaxFileBytes  int64
	SyncRows      int
	Workers       int
	QueueSize     int
	ProgressEvery int
}

type ImportRequest struct {
	Uploader    *domain.User
	Entity      domain.EntityType
	FileName    string
	ContentType string
	Contents    []byte
	AutoAssign  bool
	Strategy    domain.AssignmentStrategy
}

type importTask struct {
	job           *domain.ImportJob
	table         *table
	uploaderEmail string
}

type BulkImportService struct {
	repo      ports.ImportJobRepository
	farmers   ports.FarmerRepository
	employees ports.EmployeeRepository
	codes     codeGenerator
	ages      ageBoundsLookup
	storage   ports.ObjectStorage
	notifier  importNotifier
	cfg       BulkImportServiceConfig
	now       func() time.Time

	tasks chan importTask
	once  sync.Once
	wg    sync.WaitGroup
}

func NewBulkImportService(repo ports.ImportJobRepository, farmers ports.FarmerRepository, employees ports.EmployeeRepository, codes codeGenerator, ages ageBoundsLookup, storage ports.ObjectStorage, cfg BulkImportServiceConfig) *BulkImportService {
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 20000
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = 10 * 1024 * 1024
	}
	if cfg.SyncRows < 0 {
		cfg.SyncRows = 0
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 50
	}

	return &BulkImportService{
		repo:      repo,
		farmers:   farmers,
		employees: employees,
		codes:     codes,
		ages:      ages,
		storage:   storage,
		cfg:       cfg,
		now:       time.Now,
		tasks:     make(chan importTask, cfg.QueueSize),
	}
}

// WithNotifier attaches an optional completion notifier.
func (s *BulkImportService) WithNotifier(n importNotifier) *BulkImportService {
	s.notifier = n
	return s
}

// Start launches the worker pool. Calling it again is a no-op.
func (s *BulkImportService) Start(ctx context.Context) {
	s.once.Do(func() {
		if n, err := s.repo.FailProcessing(ctx, "interrupted by server restart"); err != nil {
			log.Printf("import: recover interrupted jobs: %v", err)
		} else if n > 0 {
			log.Printf("import: marked %d interrupted jobs as failed", n)
		}
		for i := 0; i < s.cfg.Workers; i++ {
			s.wg.Add(1)
			go s.workerLoop(ctx)
		}
	})
}

// Wait blocks until every worker has returned after ctx cancellation.
func (s *BulkImportService) Wait() {
	s.wg.Wait()
}

func (s *BulkImportService) workerLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-s.tasks:
			if _, err := s.process(ctx, task.job, task.table, task.uploaderEmail); err != nil {
				log.Printf("import: job %s failed: %v", task.job.ID, err)
			}
		}
	}
}

func (s *BulkImportService) Submit(ctx context.Context, req ImportRequest) (*domain.ImportJob, error) {
	if !req.Entity.Valid() {
		return nil, ErrUnknownEntity
	}
	if req.Uploader == nil {
		return nil, ErrSuperAdminRequired
	}
	if req.Entity == domain.EntityEmployee && !req.Uploader.IsSuperAdmin() {
		return nil, ErrSuperAdminRequired
	}
	if !domain.AcceptedImportFile(req.FileName, req.ContentType) {
		return nil, ErrImportUnsupportedType
	}
	if len(req.Contents) == 0 {
		return nil, ErrImportEmptyFile
	}
	if int64(len(req.Contents)) > s.cfg.MaxFileBytes {
		return nil, ErrImportTooLarge
	}

	tbl, err := parseTable(domain.ImportFileKind(req.FileName, req.ContentType), req.Contents)
	if err != nil {
		return nil, err
	}
	if len(tbl.records) == 0 {
		return nil, ErrImportEmptyFile
	}
	if len(tbl.records) > s.cfg.MaxRows {
		return nil, ErrImportRowLimitExceeded
	}
	_, required := importColumns(req.Entity)
	if missing := missingColumns(tbl.header, required); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrImportInvalidHeaders, strings.Join(missing, ", "))
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = domain.AssignmentManual
	}

	jobID := uuid.New()
	objectName := buildObjectName(req.Entity, jobID, req.FileName)
	if s.storage != nil && s.cfg.Bucket != "" {
		contentType := req.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if _, err := s.storage.Upload(ctx, s.cfg.Bucket, objectName, contentType, bytes.NewReader(req.Contents), int64(len(req.Contents))); err != nil {
			return nil, err
		}
	}

	job, err := s.repo.CreateJob(ctx, &domain.ImportJob{
		ID:                 jobID,
		EntityType:         req.Entity,
		UploadedBy:         req.Uploader.ID,
		Status:             domain.ImportStatusProcessing,
		FileName:           filepath.Base(strings.TrimSpace(req.FileName)),
		FileKey:            objectName,
		AutoAssign:         req.AutoAssign,
		AssignmentStrategy: strategy,
		TotalRecords:       len(tbl.records),
		SubmittedAt:        s.now(),
	})
	if err != nil {
		return nil, err
	}

	if len(tbl.records) <= s.cfg.SyncRows {
		return s.process(ctx, job, tbl, req.Uploader.Email)
	}

	// the worker owns its own copy; the caller's job is serialized concurrently
	queued := *job
	select {
	case s.tasks <- importTask{job: &queued, table: tbl, uploaderEmail: req.Uploader.Email}:
		return job, nil
	default:
		s.failJob(ctx, job, ErrImportQueueFull.Error())
		return nil, ErrImportQueueFull
	}
}

func (s *BulkImportService) process(ctx context.Context, job *domain.ImportJob, tbl *table, uploaderEmail string) (_ *domain.ImportJob, err error) {
	defer func() {
		if err != nil {
			s.failJob(ctx, job, err.Error())
		}
	}()

	var (
		pending   []domain.ImportError
		stored    int
		employees = make(map[string]*domain.Employee)
	)
	flush := func() error {
		if room := maxStoredErrors - stored; len(pending) > room {
			pending = pending[:max(room, 0)]
		}
		if err := s.repo.InsertErrors(ctx, job.ID, pending); err != nil {
			return err
		}
		stored += len(pending)
		pending = pending[:0]
		updated, err := s.repo.UpdateProgress(ctx, job)
		if err != nil {
			return err
		}
		job.UpdatedAt = updated.UpdatedAt
		return nil
	}

	for idx, record := range tbl.records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		re := &rowErrors{row: idx + 2} // header is row 1
		values := rowToMap(tbl.header, record)

		var outcome rowOutcome
		switch job.EntityType {
		case domain.EntityEmployee:
			outcome, err = s.importEmployee(ctx, job, values, re)
		default:
			outcome, err = s.importFarmer(ctx, job, values, re, employees)
		}
		if err != nil {
			return nil, err
		}

		switch outcome {
		case rowImported:
			job.SuccessfulImports++
		case rowSkipped:
			job.SkippedRecords++
		case rowFailed:
			job.FailedImports++
		}
		pending = append(pending, re.errs...)

		if (idx+1)%s.cfg.ProgressEvery == 0 {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}

	completed := s.now()
	job.Status = domain.ImportStatusCompleted
	job.CompletedAt = &completed
	if job.SuccessfulImports == 0 && job.TotalRecords > 0 {
		job.Status = domain.ImportStatusFailed
		reason := fmt.Sprintf("no rows imported: %d failed, %d skipped", job.FailedImports, job.SkippedRecords)
		job.FailureReason = &reason
	}
	if err := flush(); err != nil {
		return nil, err
	}

	final, err := s.repo.FindJobByID(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, uploaderEmail, final)
	return final, nil
}

type rowOutcome int

const (
	rowImported rowOutcome = iota
	rowSkipped
	rowFailed
)

func (s *BulkImportService) importFarmer(ctx context.Context, job *domain.ImportJob, values map[string]string, re *rowErrors, employees map[string]*domain.Employee) (rowOutcome, error) {
	farmer := s.buildFarmer(values, re)
	if !re.empty() {
		return rowFailed, nil
	}

	exists, err := s.farmers.ExistsByPhone(ctx, farmer.Phone)
	if err != nil {
		return 0, err
	}
	if exists {
		re.add("phone", "farmer with this phone already exists, row skipped")
		return rowSkipped, nil
	}

	if email := strings.ToLower(strings.TrimSpace(values["assigned_employee_email"])); email != "" {
		emp, ok := employees[email]
		if !ok {
			emp, err = s.employees.FindByEmail(ctx, email)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return 0, err
			}
			employees[email] = emp
		}
		if emp == nil {
			re.add("assigned_employee_email", "no employee with this email")
			return rowFailed, nil
		}
		farmer.AssignedEmployeeID = &emp.ID
	} else if job.AutoAssign && job.AssignmentStrategy == domain.AssignmentByLocation && farmer.District != nil {
		key := "district:" + strings.ToLower(*farmer.District)
		emp, ok := employees[key]
		if !ok {
			emp, err = s.employees.FindFirstByDistrict(ctx, *farmer.District)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return 0, err
			}
			employees[key] = emp
		}
		if emp != nil {
			farmer.AssignedEmployeeID = &emp.ID
		}
	}

	displayID, err := s.nextDisplayID(ctx, domain.CodeTypeFarmer)
	if err != nil {
		return 0, err
	}
	farmer.DisplayID = displayID
	farmer.ImportID = &job.ID

	if _, err := s.farmers.Create(ctx, farmer); err != nil {
		if isUniqueViolation(err) {
			re.add("phone", "farmer with this phone already exists, row skipped")
			return rowSkipped, nil
		}
		return 0, err
	}
	return rowImported, nil
}

func (s *BulkImportService) importEmployee(ctx context.Context, job *domain.ImportJob, values map[string]string, re *rowErrors) (rowOutcome, error) {
	employee := s.buildEmployee(values, re)
	if !re.empty() {
		return rowFailed, nil
	}

	exists, err := s.employees.ExistsByEmail(ctx, employee.Email)
	if err != nil {
		return 0, err
	}
	if exists {
		re.add("email", "employee with this email already exists, row skipped")
		return rowSkipped, nil
	}

	displayID, err := s.nextDisplayID(ctx, domain.CodeTypeEmployee)
	if err != nil {
		return 0, err
	}
	employee.DisplayID = displayID
	employee.ImportID = &job.ID

	if _, err := s.employees.Create(ctx, employee); err != nil {
		if isUniqueViolation(err) {
			re.add("email", "employee with this email already exists, row skipped")
			return rowSkipped, nil
		}
		return 0, err
	}
	return rowImported, nil
}

func (s *BulkImportService) nextDisplayID(ctx context.Context, codeType domain.CodeType) (*string, error) {
	if s.codes == nil {
		return nil, nil
	}
	code, err := s.codes.NextCode(ctx, codeType)
	if errors.Is(err, ErrNoActiveCodeFormat) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &code, nil
}

func (s *BulkImportService) notify(ctx context.Context, to string, job *domain.ImportJob) {
	if s.notifier == nil || strings.TrimSpace(to) == "" {
		return
	}
	if err := s.notifier.NotifyImportFinished(ctx, to, job); err != nil {
		log.Printf("import: notify %s for job %s: %v", to, job.ID, err)
	}
}

// GetStatus returns the job with at most errorLimit row errors attached and
// the total error count.
func (s *BulkImportService) GetStatus(ctx context.Context, viewer *domain.User, id uuid.UUID, errorLimit int) (*domain.ImportJob, error) {
	job, err := s.visibleJob(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	errs, err := s.repo.ListErrors(ctx, id, errorLimit)
	if err != nil {
		return nil, err
	}
	count, err := s.repo.CountErrors(ctx, id)
	if err != nil {
		return nil, err
	}
	job.Errors = errs
	job.ErrorCount = count
	return job, nil
}

// ErrorReport renders every stored row error as CSV.
func (s *BulkImportService) ErrorReport(ctx context.Context, viewer *domain.User, id uuid.UUID) ([]byte, error) {
	if _, err := s.visibleJob(ctx, viewer, id); err != nil {
		return nil, err
	}
	errs, err := s.repo.ListErrors(ctx, id, 0)
	if err != nil {
		return nil, err
	}
	rows := make([][]string, 0, len(errs))
	for _, e := range errs {
		rows = append(rows, []string{strconv.Itoa(e.RowNumber), e.FieldName, e.ErrorMessage})
	}
	return writeCSV([]string{"row_number", "field_name", "error_message"}, rows)
}

// OriginalFile fetches the raw upload back from object storage.
func (s *BulkImportService) OriginalFile(ctx context.Context, viewer *domain.User, id uuid.UUID) (*domain.ImportJob, []byte, error) {
	job, err := s.visibleJob(ctx, viewer, id)
	if err != nil {
		return nil, nil, err
	}
	if s.storage == nil || s.cfg.Bucket == "" {
		return nil, nil, ErrImportNotFound
	}
	data, err := s.storage.Download(ctx, s.cfg.Bucket, job.FileKey)
	if err != nil {
		return nil, nil, err
	}
	return job, data, nil
}

// visibleJob loads a job the viewer may read. Employee imports are limited
// to super admins; farmer imports to their uploader and super admins.
func (s *BulkImportService) visibleJob(ctx context.Context, viewer *domain.User, id uuid.UUID) (*domain.ImportJob, error) {
	if viewer == nil {
		return nil, ErrImportAccessDenied
	}
	job, err := s.repo.FindJobByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrImportNotFound
		}
		return nil, err
	}
	if viewer.IsSuperAdmin() {
		return job, nil
	}
	if job.EntityType == domain.EntityEmployee {
		return nil, ErrSuperAdminRequired
	}
	if job.UploadedBy != viewer.ID {
		return nil, ErrImportAccessDenied
	}
	return job, nil
}

// Template builds the xlsx import template for the entity.
func (s *BulkImportService) Template(entity domain.EntityType) ([]byte, error) {
	if !entity.Valid() {
		return nil, ErrUnknownEntity
	}
	columns, _ := importColumns(entity)
	var sample []string
	if entity == domain.EntityEmployee {
		sample = []string{
			"Asha", "Reddy", "asha.reddy@agri.in", "9876543210", "FEMALE", "1990-04-12",
			"Field Officer", "Telangana", "Nalgonda", "508001", "Graduate", "ABCDE1234F",
			"SBIN0001234", "00112233445566",
		}
	} else {
		sample = []string{
			"Ravi", "Kumar", "9123456780", "", "MALE", "1982-06-01",
			"Telangana", "Nalgonda", "Miryalaguda", "508207", "Secondary", "234567890123",
			"PENDING", "asha.reddy@agri.in",
		}
	}
	sheet := "Farmers"
	if entity == domain.EntityEmployee {
		sheet = "Employees"
	}
	return writeXLSX(sheet, columns, [][]string{sample})
}

func (s *BulkImportService) failJob(ctx context.Context, job *domain.ImportJob, reason string) {
	if job == nil {
		return
	}
	job.Status = domain.ImportStatusFailed
	now := s.now()
	job.CompletedAt = &now
	job.FailureReason = &reason
	if _, err := s.repo.UpdateProgress(ctx, job); err != nil {
		log.Printf("import: mark job %s failed: %v", job.ID, err)
	}
}

func buildObjectName(entity domain.EntityType, jobID uuid.UUID, filename string) string {
	name := strings.TrimSpace(filename)
	if name == "" {
		name = "upload.csv"
	}
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, " ", "_")
	return fmt.Sprintf("imports/%s/%s/%s", entity.Path(), jobID.String(), name)
}
