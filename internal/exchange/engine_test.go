package exchange

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/goleak"

	"github.com/njprem/agri_admin_backend/internal/client"
	"github.com/njprem/agri_admin_backend/internal/domain"
	"github.com/njprem/agri_admin_backend/internal/idcache"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeAPI struct {
	mu sync.Mutex

	submitted   *domain.ImportJob
	submitErr   error
	imports     int
	uploads     []client.ImportUpload
	statuses    []*domain.ImportJob
	statusErrs  []error
	statusCalls int
	polledIDs   []uuid.UUID

	exportFile *client.File
	exportErr  error
	exports    []domain.ExportRequest

	assigns []string

	// when set, BulkImport signals uploading and blocks until release closes
	uploading chan struct{}
	release   chan struct{}
}

func (f *fakeAPI) BulkImport(ctx context.Context, entity domain.EntityType, upload client.ImportUpload) (*domain.ImportJob, error) {
	if f.uploading != nil {
		f.uploading <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imports++
	f.uploads = append(f.uploads, upload)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	job := *f.submitted
	job.EntityType = entity
	return &job, nil
}

func (f *fakeAPI) ImportStatus(ctx context.Context, id uuid.UUID, errorLimit int) (*domain.ImportJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.statusCalls
	f.statusCalls++
	f.polledIDs = append(f.polledIDs, id)
	if idx < len(f.statusErrs) && f.statusErrs[idx] != nil {
		return nil, f.statusErrs[idx]
	}
	job := *f.statuses[min(idx, len(f.statuses)-1)]
	return &job, nil
}

func (f *fakeAPI) BulkExport(ctx context.Context, entity domain.EntityType, req domain.ExportRequest) (*client.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exports = append(f.exports, req)
	if f.exportErr != nil {
		return nil, f.exportErr
	}
	return f.exportFile, nil
}

func (f *fakeAPI) DownloadTemplate(ctx context.Context, entity domain.EntityType) (*client.File, error) {
	return &client.File{Name: "x.xlsx", Data: []byte("PK")}, nil
}

func (f *fakeAPI) BulkAssignFarmersByLocation(ctx context.Context, location, employeeEmail string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assigns = append(f.assigns, location+"|"+employeeEmail)
	return 12, nil
}

func (f *fakeAPI) counts() (imports, statuses int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.imports, f.statusCalls
}

type memorySaver struct {
	mu    sync.Mutex
	files map[string]string
	types map[string]string
}

func newMemorySaver() *memorySaver {
	return &memorySaver{files: map[string]string{}, types: map[string]string{}}
}

func (m *memorySaver) Save(ctx context.Context, name, contentType string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = string(data)
	m.types[name] = contentType
	return nil
}

// manualTimer lets a test decide when each poll delay elapses.
type manualTimer struct {
	requested chan time.Duration
	fire      chan time.Time
}

func newManualTimer() *manualTimer {
	return &manualTimer{requested: make(chan time.Duration, 64), fire: make(chan time.Time)}
}

func (m *manualTimer) after(d time.Duration) <-chan time.Time {
	m.requested <- d
	return m.fire
}

func immediate(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func processing(id uuid.UUID) *domain.ImportJob {
	return &domain.ImportJob{ID: id, Status: domain.ImportStatusProcessing, FileName: "farmers.csv", TotalRecords: 100}
}

func csvFile() SelectedFile {
	return SelectedFile{Name: "farmers.csv", ContentType: "text/csv", Data: []byte("name\n")}
}

func waitDone(t *testing.T, h *ImportHandle) Report {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r, err := h.Wait(ctx)
	if err != nil {
		t.Fatalf("import %s did not finish: %v", h.ID, err)
	}
	return r
}

func TestSelectFileGate(t *testing.T) {
	cases := []struct {
		name        string
		contentType string
		ok          bool
	}{
		{"farmers.xlsx", domain.MIMEExcel, true},
		{"legacy.xls", domain.MIMEXls, true},
		{"farmers.csv", "text/csv; charset=utf-8", true},
		{"FARMERS.CSV", "application/octet-stream", true},
		{"farmers.xlsx", "application/octet-stream", false},
		{"report.pdf", "application/pdf", false},
		{"notes.txt", "text/plain", false},
	}
	for _, tc := range cases {
		e := New(&fakeAPI{})
		err := e.SelectFile(SelectedFile{Name: tc.name, ContentType: tc.contentType})
		if tc.ok && err != nil {
			t.Errorf("%s (%s): unexpected rejection %v", tc.name, tc.contentType, err)
		}
		if !tc.ok {
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("%s (%s): expected ValidationError, got %v", tc.name, tc.contentType, err)
			}
			if e.Selected() != nil {
				t.Errorf("%s: rejected file left a selection", tc.name)
			}
		}
		e.Close()
	}
}

func TestRejectedFileClearsPreviousSelection(t *testing.T) {
	e := New(&fakeAPI{})
	defer e.Close()

	if err := e.SelectFile(csvFile()); err != nil {
		t.Fatalf("select csv: %v", err)
	}
	if err := e.SelectFile(SelectedFile{Name: "report.pdf", ContentType: "application/pdf"}); err == nil {
		t.Fatal("expected pdf to be rejected")
	}
	if e.Selected() != nil {
		t.Fatal("selection should be cleared after a rejection")
	}
}

func TestStartImportWithoutFile(t *testing.T) {
	api := &fakeAPI{}
	e := New(api)
	defer e.Close()

	_, err := e.StartImport(context.Background(), domain.EntityFarmer)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Message != "no file" {
		t.Fatalf("expected no-file ValidationError, got %v", err)
	}
	if n, _ := api.counts(); n != 0 {
		t.Fatalf("expected no network call, got %d", n)
	}
}

func TestStartImportSendsManualDefaults(t *testing.T) {
	api := &fakeAPI{submitted: &domain.ImportJob{ID: uuid.New(), Status: domain.ImportStatusCompleted}}
	e := New(api)
	defer e.Close()
	_ = e.SelectFile(csvFile())

	h, err := e.StartImport(context.Background(), domain.EntityFarmer)
	if err != nil {
		t.Fatalf("StartImport: %v", err)
	}
	waitDone(t, h)
	up := api.uploads[0]
	if up.AutoAssign || up.Strategy != domain.AssignmentManual || up.FileName != "farmers.csv" {
		t.Fatalf("unexpected upload %+v", up)
	}
}

func TestPollingStopsAtFirstTerminalStatus(t *testing.T) {
	for _, n := range []int{1, 3, 7} {
		id := uuid.New()
		statuses := make([]*domain.ImportJob, 0, n)
		for i := 1; i < n; i++ {
			statuses = append(statuses, processing(id))
		}
		statuses = append(statuses, &domain.ImportJob{ID: id, Status: domain.ImportStatusFailed})
		api := &fakeAPI{submitted: processing(id), statuses: statuses}

		e := New(api, WithTimer(immediate), WithLogger(quietLogger()))
		_ = e.SelectFile(csvFile())
		h, err := e.StartImport(context.Background(), domain.EntityFarmer)
		if err != nil {
			t.Fatalf("StartImport: %v", err)
		}
		r := waitDone(t, h)
		e.Close()

		if _, calls := api.counts(); calls != n {
			t.Errorf("terminal at poll %d: issued %d status reads", n, calls)
		}
		if r.State != StateFailed {
			t.Errorf("terminal at poll %d: state %s", n, r.State)
		}
	}
}

func TestPollingGivesUpAfterCap(t *testing.T) {
	id := uuid.New()
	api := &fakeAPI{submitted: processing(id), statuses: []*domain.ImportJob{processing(id)}}
	e := New(api, WithTimer(immediate), WithLogger(quietLogger()))
	defer e.Close()
	_ = e.SelectFile(csvFile())

	h, err := e.StartImport(context.Background(), domain.EntityFarmer)
	if err != nil {
		t.Fatalf("StartImport: %v", err)
	}
	r := waitDone(t, h)

	if _, calls := api.counts(); calls != DefaultPollAttempts {
		t.Fatalf("expected %d status reads, got %d", DefaultPollAttempts, calls)
	}
	if r.State != StateAbandoned || !strings.Contains(r.Message(), "status unknown") {
		t.Fatalf("unexpected final report %+v: %s", r, r.Message())
	}
}

func TestScheduledImportPollsAfterInterval(t *testing.T) {
	id := uuid.MustParse("00000000-0000-0000-0000-000000000042")
	done := &domain.ImportJob{
		ID:                id,
		Status:            domain.ImportStatusCompleted,
		TotalRecords:      100,
		SuccessfulImports: 95,
		FailedImports:     5,
	}
	api := &fakeAPI{submitted: processing(id), statuses: []*domain.ImportJob{done}}
	cache := idcache.New(nil)
	cache.Put(domain.EntityFarmer, uuid.New(), "FRM-00001")
	timer := newManualTimer()
	e := New(api, WithTimer(timer.after), WithIDCache(cache))
	defer e.Close()
	_ = e.SelectFile(csvFile())

	h, err := e.StartImport(context.Background(), domain.EntityFarmer)
	if err != nil {
		t.Fatalf("StartImport: %v", err)
	}
	if d := <-timer.requested; d != DefaultPollInterval {
		t.Fatalf("poll delay = %s, want %s", d, DefaultPollInterval)
	}
	if h.State() != StateScheduled {
		t.Fatalf("state before delay = %s", h.State())
	}
	if _, calls := api.counts(); calls != 0 {
		t.Fatalf("status read issued before the delay elapsed")
	}

	timer.fire <- time.Now()
	r := waitDone(t, h)

	if api.polledIDs[0] != id {
		t.Fatalf("polled %s, want %s", api.polledIDs[0], id)
	}
	if r.State != StateCompleted || r.Total != 100 || r.Successful != 95 || r.Failed != 5 || r.Skipped != 0 {
		t.Fatalf("unexpected report %+v", r)
	}
	if cache.Len() != 0 {
		t.Fatalf("display id cache not invalidated after import")
	}
}

func TestPollingAbsorbsTransportErrors(t *testing.T) {
	id := uuid.New()
	flaky := &client.TransportError{Op: "GET status", Err: errors.New("connection reset")}
	api := &fakeAPI{
		submitted:  processing(id),
		statuses:   []*domain.ImportJob{{ID: id, Status: domain.ImportStatusCompleted}},
		statusErrs: []error{flaky, flaky},
	}
	e := New(api, WithTimer(immediate), WithLogger(quietLogger()))
	defer e.Close()
	_ = e.SelectFile(csvFile())

	h, _ := e.StartImport(context.Background(), domain.EntityFarmer)
	r := waitDone(t, h)
	if _, calls := api.counts(); calls != 3 || r.State != StateCompleted {
		t.Fatalf("calls=%d state=%s", calls, r.State)
	}
}

func TestOneImportPerEntity(t *testing.T) {
	id := uuid.New()
	api := &fakeAPI{submitted: processing(id), statuses: []*domain.ImportJob{processing(id)}}
	timer := newManualTimer()
	e := New(api, WithTimer(timer.after), AsSuperAdmin(true))
	defer e.Close()
	_ = e.SelectFile(csvFile())

	first, err := e.StartImport(context.Background(), domain.EntityFarmer)
	if err != nil {
		t.Fatalf("StartImport: %v", err)
	}
	<-timer.requested

	if _, err := e.StartImport(context.Background(), domain.EntityFarmer); !errors.Is(err, ErrImportInProgress) {
		t.Fatalf("expected ErrImportInProgress, got %v", err)
	}
	other, err := e.StartImport(context.Background(), domain.EntityEmployee)
	if err != nil {
		t.Fatalf("employee import should not be blocked by farmer import: %v", err)
	}
	<-timer.requested

	first.Cancel()
	if r := waitDone(t, first); r.State != StateCancelled {
		t.Fatalf("cancelled handle state = %s", r.State)
	}
	if _, err := e.StartImport(context.Background(), domain.EntityFarmer); err != nil {
		t.Fatalf("farmer import after cancel: %v", err)
	}
	<-timer.requested

	e.Close()
	if other.State() != StateCancelled {
		t.Fatalf("Close left employee handle in %s", other.State())
	}
	if _, err := e.StartImport(context.Background(), domain.EntityFarmer); !errors.Is(err, ErrEngineClosed) {
		t.Fatalf("expected ErrEngineClosed, got %v", err)
	}
}

func TestEmployeeExchangeNeedsSuperAdmin(t *testing.T) {
	api := &fakeAPI{}
	e := New(api)
	defer e.Close()
	_ = e.SelectFile(csvFile())

	if _, err := e.StartImport(context.Background(), domain.EntityEmployee); !errors.Is(err, ErrSuperAdminRequired) {
		t.Fatalf("import: expected ErrSuperAdminRequired, got %v", err)
	}
	if _, err := e.ExportData(context.Background(), domain.EntityEmployee, domain.ExportRequest{}); !errors.Is(err, ErrSuperAdminRequired) {
		t.Fatalf("export: expected ErrSuperAdminRequired, got %v", err)
	}
	if imports, _ := api.counts(); imports != 0 || len(api.exports) != 0 {
		t.Fatal("gated calls reached the API")
	}
}

func TestStartImportFailureLeavesNothingScheduled(t *testing.T) {
	api := &fakeAPI{submitErr: &client.ServerError{StatusCode: http.StatusUnprocessableEntity, Message: "missing required columns"}}
	e := New(api)
	defer e.Close()
	_ = e.SelectFile(csvFile())

	_, err := e.StartImport(context.Background(), domain.EntityFarmer)
	var failed *ImportFailed
	if !errors.As(err, &failed) || failed.Message != "missing required columns" {
		t.Fatalf("expected ImportFailed, got %v", err)
	}
	var se *client.ServerError
	if !errors.As(err, &se) {
		t.Fatal("ImportFailed should wrap the server error")
	}

	// the slot is free again
	api.submitErr = nil
	api.submitted = &domain.ImportJob{ID: uuid.New(), Status: domain.ImportStatusCompleted}
	h, err := e.StartImport(context.Background(), domain.EntityFarmer)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	waitDone(t, h)
}

func TestSynchronousCompletionNeedsNoPolling(t *testing.T) {
	id := uuid.New()
	api := &fakeAPI{submitted: &domain.ImportJob{ID: id, Status: domain.ImportStatusCompleted, TotalRecords: 3, SuccessfulImports: 3}}
	var finished []Report
	e := New(api, OnFinish(func(r Report) { finished = append(finished, r) }))
	defer e.Close()
	_ = e.SelectFile(csvFile())

	h, err := e.StartImport(context.Background(), domain.EntityFarmer)
	if err != nil {
		t.Fatalf("StartImport: %v", err)
	}
	select {
	case <-h.Done():
	default:
		t.Fatal("terminal submission should return a finished handle")
	}
	if _, calls := api.counts(); calls != 0 {
		t.Fatalf("unexpected status reads: %d", calls)
	}
	if len(finished) != 1 || finished[0].Successful != 3 {
		t.Fatalf("OnFinish reports = %+v", finished)
	}
	if _, ok := e.Handle(id); ok {
		t.Fatal("finished import should not stay tracked")
	}
}

func TestHandleTrackedOnlyWhilePolling(t *testing.T) {
	id := uuid.New()
	done := processing(id)
	done.Status = domain.ImportStatusCompleted
	api := &fakeAPI{submitted: processing(id), statuses: []*domain.ImportJob{done}}
	timer := newManualTimer()
	e := New(api, WithTimer(timer.after))
	defer e.Close()
	_ = e.SelectFile(csvFile())

	h, err := e.StartImport(context.Background(), domain.EntityFarmer)
	if err != nil {
		t.Fatalf("StartImport: %v", err)
	}
	<-timer.requested
	if got, ok := e.Handle(id); !ok || got != h {
		t.Fatal("polling import not tracked by id")
	}

	timer.fire <- time.Now()
	if r := waitDone(t, h); r.State != StateCompleted {
		t.Fatalf("state = %s", r.State)
	}
	if _, ok := e.Handle(id); ok {
		t.Fatal("completed import still tracked")
	}
}

func TestCloseDuringUploadCancelsImport(t *testing.T) {
	id := uuid.New()
	api := &fakeAPI{
		submitted: processing(id),
		statuses:  []*domain.ImportJob{processing(id)},
		uploading: make(chan struct{}),
		release:   make(chan struct{}),
	}
	e := New(api, WithTimer(immediate), WithLogger(quietLogger()))
	_ = e.SelectFile(csvFile())

	type started struct {
		h   *ImportHandle
		err error
	}
	result := make(chan started, 1)
	go func() {
		h, err := e.StartImport(context.Background(), domain.EntityFarmer)
		result <- started{h, err}
	}()

	<-api.uploading
	e.Close()
	close(api.release)

	res := <-result
	if res.err != nil {
		t.Fatalf("StartImport: %v", res.err)
	}
	if r := waitDone(t, res.h); r.State != StateCancelled {
		t.Fatalf("import submitted across Close ended in %s", r.State)
	}
	if _, calls := api.counts(); calls != 0 {
		t.Fatalf("closed engine polled %d times", calls)
	}
	if _, ok := e.Handle(id); ok {
		t.Fatal("cancelled import still tracked")
	}
}

func TestReportListsFirstTenErrors(t *testing.T) {
	job := &domain.ImportJob{ID: uuid.New(), Status: domain.ImportStatusCompleted, ErrorCount: 25}
	for i := 0; i < 12; i++ {
		job.Errors = append(job.Errors, domain.ImportError{RowNumber: i + 2, FieldName: "phone", ErrorMessage: "invalid"})
	}
	h := newHandle(job, func() {})
	h.observe(job)

	r := h.Report()
	if len(r.Errors) != ReportErrorLimit || r.MoreErrors != 15 {
		t.Fatalf("errors=%d more=%d", len(r.Errors), r.MoreErrors)
	}
}

func TestObserveNeverLowersCounts(t *testing.T) {
	id := uuid.New()
	h := newHandle(processing(id), func() {})
	h.observe(&domain.ImportJob{ID: id, Status: domain.ImportStatusProcessing, TotalRecords: 100, SuccessfulImports: 40})
	h.observe(&domain.ImportJob{ID: id, Status: domain.ImportStatusProcessing, TotalRecords: 100, SuccessfulImports: 30})
	if got := h.Report().Successful; got != 40 {
		t.Fatalf("successful = %d, want 40", got)
	}
}

func TestExportFileName(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	if got := ExportFileName(domain.EntityEmployee, domain.ExportFormatCSV, at); got != "employee_export_1700000000000.csv" {
		t.Fatalf("csv name = %s", got)
	}
	if got := ExportFileName(domain.EntityFarmer, domain.ExportFormatExcel, at); got != "farmer_export_1700000000000.xlsx" {
		t.Fatalf("excel name = %s", got)
	}
}

func TestExportDataSavesWithFormatMIME(t *testing.T) {
	api := &fakeAPI{exportFile: &client.File{Data: []byte("email\n")}}
	saver := newMemorySaver()
	e := New(api,
		AsSuperAdmin(true),
		WithSaver(saver),
		WithClock(func() time.Time { return time.UnixMilli(1700000000000) }),
	)
	defer e.Close()

	name, err := e.ExportData(context.Background(), domain.EntityEmployee, domain.ExportRequest{Format: "csv", Location: "Pune"})
	if err != nil {
		t.Fatalf("ExportData: %v", err)
	}
	if name != "employee_export_1700000000000.csv" {
		t.Fatalf("name = %s", name)
	}
	if saver.files[name] != "email\n" || saver.types[name] != domain.MIMECSV {
		t.Fatalf("saved %q as %q", saver.files[name], saver.types[name])
	}
	if api.exports[0].Format != domain.ExportFormatCSV || api.exports[0].Location != "Pune" {
		t.Fatalf("filters not forwarded: %+v", api.exports[0])
	}
}

func TestExportDataFailure(t *testing.T) {
	api := &fakeAPI{exportErr: &client.ServerError{StatusCode: http.StatusInternalServerError}}
	e := New(api, WithSaver(newMemorySaver()))
	defer e.Close()

	_, err := e.ExportData(context.Background(), domain.EntityFarmer, domain.ExportRequest{})
	var failed *ExportFailed
	if !errors.As(err, &failed) {
		t.Fatalf("expected ExportFailed, got %v", err)
	}
	if _, err := e.ExportData(context.Background(), domain.EntityFarmer, domain.ExportRequest{Format: "PDF"}); err == nil {
		t.Fatal("expected invalid format to be rejected")
	}
}

func TestDownloadTemplateName(t *testing.T) {
	saver := newMemorySaver()
	e := New(&fakeAPI{}, WithSaver(saver))
	defer e.Close()

	name, err := e.DownloadTemplate(context.Background(), domain.EntityFarmer)
	if err != nil || name != "farmer_import_template.xlsx" {
		t.Fatalf("DownloadTemplate = %q, %v", name, err)
	}
	if saver.types[name] != domain.MIMEExcel {
		t.Fatalf("template MIME = %q", saver.types[name])
	}
}

func TestBulkAssignByLocationValidation(t *testing.T) {
	api := &fakeAPI{}
	e := New(api)
	defer e.Close()

	var ve *ValidationError
	if _, err := e.BulkAssignByLocation(context.Background(), "  ", "a@b.in"); !errors.As(err, &ve) || ve.Field != "location" {
		t.Fatalf("blank location: %v", err)
	}
	if _, err := e.BulkAssignByLocation(context.Background(), "Pune", " "); !errors.As(err, &ve) || ve.Field != "employeeEmail" {
		t.Fatalf("blank email: %v", err)
	}
	if len(api.assigns) != 0 {
		t.Fatal("invalid input reached the API")
	}

	n, err := e.BulkAssignByLocation(context.Background(), " Pune ", "field@agri.in")
	if err != nil || n != 12 || api.assigns[0] != "Pune|field@agri.in" {
		t.Fatalf("assign = %d, %v, %v", n, err, api.assigns)
	}
}

func TestDirSaver(t *testing.T) {
	dir := t.TempDir()
	if err := (DirSaver{Dir: dir}).Save(context.Background(), "../farmer_export_1.csv", domain.MIMECSV, []byte("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "farmer_export_1.csv"))
	if err != nil || string(data) != "x" {
		t.Fatalf("saved file = %q, %v", data, err)
	}
}
