package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/njprem/agri_admin_backend/internal/domain"
)

type memoryJobRepo struct {
	mu     sync.Mutex
	jobs   map[uuid.UUID]*domain.ImportJob
	errors map[uuid.UUID][]domain.ImportError
}

func newMemoryJobRepo() *memoryJobRepo {
	return &memoryJobRepo{
		jobs:   make(map[uuid.UUID]*domain.ImportJob),
		errors: make(map[uuid.UUID][]domain.ImportError),
	}
}

func (m *memoryJobRepo) CreateJob(ctx context.Context, job *domain.ImportJob) (*domain.ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *job
	now := time.Now()
	clone.CreatedAt, clone.UpdatedAt = now, now
	m.jobs[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (m *memoryJobRepo) UpdateProgress(ctx context.Context, job *domain.ImportJob) (*domain.ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.jobs[job.ID]
	if !ok || stored.Status.Terminal() {
		return nil, sql.ErrNoRows
	}
	clone := *job
	clone.Errors = nil
	clone.UpdatedAt = time.Now()
	m.jobs[job.ID] = &clone
	out := clone
	return &out, nil
}

func (m *memoryJobRepo) FindJobByID(ctx context.Context, id uuid.UUID) (*domain.ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := *stored
	return &out, nil
}

func (m *memoryJobRepo) InsertErrors(ctx context.Context, importID uuid.UUID, errs []domain.ImportError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[importID] = append(m.errors[importID], errs...)
	return nil
}

func (m *memoryJobRepo) ListErrors(ctx context.Context, importID uuid.UUID, limit int) ([]domain.ImportError, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.errors[importID]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	out := make([]domain.ImportError, len(all))
	copy(out, all)
	return out, nil
}

func (m *memoryJobRepo) CountErrors(ctx context.Context, importID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors[importID]), nil
}

func (m *memoryJobRepo) FailProcessing(ctx context.Context, reason string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, job := range m.jobs {
		if job.Status == domain.ImportStatusProcessing {
			job.Status = domain.ImportStatusFailed
			job.FailureReason = &reason
			n++
		}
	}
	return n, nil
}

type memoryFarmerRepo struct {
	mu       sync.Mutex
	byPhone  map[string]*domain.Farmer
	assigned map[string]string
	exported []domain.Farmer
	filter   domain.ExportFilter
}

func newMemoryFarmerRepo() *memoryFarmerRepo {
	return &memoryFarmerRepo{byPhone: make(map[string]*domain.Farmer), assigned: make(map[string]string)}
}

func (m *memoryFarmerRepo) Create(ctx context.Context, farmer *domain.Farmer) (*domain.Farmer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *farmer
	clone.ID = uuid.New()
	m.byPhone[clone.Phone] = &clone
	return &clone, nil
}

func (m *memoryFarmerRepo) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byPhone[phone]
	return ok, nil
}

func (m *memoryFarmerRepo) ListForExport(ctx context.Context, filter domain.ExportFilter, limit int) ([]domain.Farmer, error) {
	m.filter = filter
	return m.exported, nil
}

func (m *memoryFarmerRepo) AssignByDistrict(ctx context.Context, district, employeeEmail string) (int64, error) {
	m.assigned[district] = employeeEmail
	var n int64
	for _, f := range m.byPhone {
		if f.District != nil && strings.EqualFold(*f.District, district) {
			n++
		}
	}
	return n, nil
}

type memoryEmployeeRepo struct {
	mu      sync.Mutex
	byEmail map[string]*domain.Employee
}

func newMemoryEmployeeRepo(existing ...domain.Employee) *memoryEmployeeRepo {
	m := &memoryEmployeeRepo{byEmail: make(map[string]*domain.Employee)}
	for i := range existing {
		e := existing[i]
		m.byEmail[e.Email] = &e
	}
	return m
}

func (m *memoryEmployeeRepo) Create(ctx context.Context, employee *domain.Employee) (*domain.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *employee
	clone.ID = uuid.New()
	m.byEmail[clone.Email] = &clone
	return &clone, nil
}

func (m *memoryEmployeeRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byEmail[email]
	return ok, nil
}

func (m *memoryEmployeeRepo) FindByEmail(ctx context.Context, email string) (*domain.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.byEmail[email]; ok {
		out := *e
		return &out, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memoryEmployeeRepo) FindFirstByDistrict(ctx context.Context, district string) (*domain.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	emails := make([]string, 0, len(m.byEmail))
	for k := range m.byEmail {
		emails = append(emails, k)
	}
	sort.Strings(emails)
	for _, k := range emails {
		e := m.byEmail[k]
		if e.District != nil && strings.EqualFold(*e.District, district) {
			out := *e
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryEmployeeRepo) ListForExport(ctx context.Context, filter domain.ExportFilter, limit int) ([]domain.Employee, error) {
	out := make([]domain.Employee, 0, len(m.byEmail))
	for _, e := range m.byEmail {
		out = append(out, *e)
	}
	return out, nil
}

type memoryCodeFormatRepo struct {
	mu      sync.Mutex
	formats map[uuid.UUID]*domain.CodeFormat
}

func newMemoryCodeFormatRepo() *memoryCodeFormatRepo {
	return &memoryCodeFormatRepo{formats: make(map[uuid.UUID]*domain.CodeFormat)}
}

func (m *memoryCodeFormatRepo) List(ctx context.Context) ([]domain.CodeFormat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.CodeFormat, 0, len(m.formats))
	for _, f := range m.formats {
		out = append(out, *f)
	}
	return out, nil
}

func (m *memoryCodeFormatRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.CodeFormat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.formats[id]; ok {
		out := *f
		return &out, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memoryCodeFormatRepo) FindActiveByType(ctx context.Context, codeType domain.CodeType) (*domain.CodeFormat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.formats {
		if f.CodeType == codeType && f.IsActive {
			out := *f
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryCodeFormatRepo) Create(ctx context.Context, format *domain.CodeFormat) (*domain.CodeFormat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *format
	clone.ID = uuid.New()
	m.formats[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (m *memoryCodeFormatRepo) Update(ctx context.Context, id uuid.UUID, update domain.CodeFormatUpdate) (*domain.CodeFormat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.formats[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if update.Prefix != nil {
		f.Prefix = *update.Prefix
	}
	if update.Description != nil {
		f.Description = update.Description
	}
	if update.IsActive != nil {
		f.IsActive = *update.IsActive
	}
	out := *f
	return &out, nil
}

func (m *memoryCodeFormatRepo) Increment(ctx context.Context, codeType domain.CodeType) (*domain.CodeFormat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.formats {
		if f.CodeType == codeType && f.IsActive {
			f.CurrentNumber++
			out := *f
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

type memorySettingsRepo struct {
	stored map[domain.SettingCategory]json.RawMessage
	getErr error
}

func newMemorySettingsRepo() *memorySettingsRepo {
	return &memorySettingsRepo{stored: make(map[domain.SettingCategory]json.RawMessage)}
}

func (m *memorySettingsRepo) Get(ctx context.Context, category domain.SettingCategory) (json.RawMessage, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	raw, ok := m.stored[category]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return raw, nil
}

func (m *memorySettingsRepo) Put(ctx context.Context, category domain.SettingCategory, payload json.RawMessage) error {
	m.stored[category] = payload
	return nil
}

type memoryRoleRepo struct {
	roles       map[uuid.UUID]*domain.Role
	assignments map[uuid.UUID]uuid.UUID
}

func newMemoryRoleRepo() *memoryRoleRepo {
	return &memoryRoleRepo{roles: make(map[uuid.UUID]*domain.Role), assignments: make(map[uuid.UUID]uuid.UUID)}
}

func roleFromInput(id uuid.UUID, in domain.RoleInput) *domain.Role {
	role := &domain.Role{ID: id, Name: in.RoleName, IsActive: in.IsActive}
	for _, m := range in.Modules {
		role.AllowedModules = append(role.AllowedModules, string(m))
	}
	for _, p := range in.Permissions {
		role.Permissions = append(role.Permissions, string(p))
	}
	return role
}

func (m *memoryRoleRepo) List(ctx context.Context) ([]domain.Role, error) {
	out := make([]domain.Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, *r)
	}
	return out, nil
}

func (m *memoryRoleRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Role, error) {
	if r, ok := m.roles[id]; ok {
		out := *r
		return &out, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memoryRoleRepo) FindByName(ctx context.Context, name string) (*domain.Role, error) {
	for _, r := range m.roles {
		if r.Name == name {
			out := *r
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryRoleRepo) Create(ctx context.Context, in domain.RoleInput) (*domain.Role, error) {
	role := roleFromInput(uuid.New(), in)
	m.roles[role.ID] = role
	out := *role
	return &out, nil
}

func (m *memoryRoleRepo) Update(ctx context.Context, id uuid.UUID, in domain.RoleInput) (*domain.Role, error) {
	if _, ok := m.roles[id]; !ok {
		return nil, sql.ErrNoRows
	}
	m.roles[id] = roleFromInput(id, in)
	out := *m.roles[id]
	return &out, nil
}

func (m *memoryRoleRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) (*domain.Role, error) {
	r, ok := m.roles[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	r.IsActive = active
	out := *r
	return &out, nil
}

func (m *memoryRoleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(m.roles, id)
	return nil
}

func (m *memoryRoleRepo) CountAssignments(ctx context.Context, roleID uuid.UUID) (int, error) {
	n := 0
	for _, rid := range m.assignments {
		if rid == roleID {
			n++
		}
	}
	return n, nil
}

func (m *memoryRoleRepo) AssignUserRole(ctx context.Context, userID, roleID uuid.UUID) (*domain.UserRoleAssignment, error) {
	m.assignments[userID] = roleID
	return &domain.UserRoleAssignment{UserID: userID, RoleID: roleID, AssignedAt: time.Now()}, nil
}

func (m *memoryRoleRepo) FindUserRole(ctx context.Context, userID uuid.UUID) (*domain.Role, error) {
	rid, ok := m.assignments[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return m.FindByID(ctx, rid)
}

// memoryUserRepo resolves role names through the role repo the way the SQL
// join does: only active roles are visible.
type memoryUserRepo struct {
	users map[uuid.UUID]*domain.User
	roles *memoryRoleRepo
}

func newMemoryUserRepo(roles *memoryRoleRepo) *memoryUserRepo {
	return &memoryUserRepo{users: make(map[uuid.UUID]*domain.User), roles: roles}
}

func (m *memoryUserRepo) resolve(u *domain.User) *domain.User {
	out := *u
	out.RoleID, out.RoleName = nil, nil
	if m.roles != nil {
		if role, err := m.roles.FindUserRole(context.Background(), u.ID); err == nil && role.IsActive {
			out.RoleID = &role.ID
			out.RoleName = &role.Name
		}
	}
	return &out
}

func (m *memoryUserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return m.resolve(u), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if u, ok := m.users[id]; ok {
		return m.resolve(u), nil
	}
	return nil, sql.ErrNoRows
}

func (m *memoryUserRepo) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	clone := *user
	clone.ID = uuid.New()
	m.users[clone.ID] = &clone
	return m.resolve(&clone), nil
}

func (m *memoryUserRepo) List(ctx context.Context) ([]domain.User, error) {
	out := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *m.resolve(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string][]byte)}
}

func (m *memoryStorage) Upload(ctx context.Context, bucket, objectName, contentType string, reader io.Reader, size int64) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.objects[bucket+"/"+objectName] = buf.Bytes()
	m.mu.Unlock()
	return objectName, nil
}

func (m *memoryStorage) Download(ctx context.Context, bucket, objectName string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+objectName]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return data, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingNotifier) NotifyImportFinished(ctx context.Context, to string, job *domain.ImportJob) error {
	r.mu.Lock()
	r.sent = append(r.sent, to)
	r.mu.Unlock()
	return nil
}

func superAdmin() *domain.User {
	name := domain.SuperAdminRoleName
	return &domain.User{ID: uuid.New(), Email: "root@agri.in", IsActive: true, RoleName: &name}
}

func fieldOfficer() *domain.User {
	name := "FIELD_OFFICER"
	return &domain.User{ID: uuid.New(), Email: "officer@agri.in", IsActive: true, RoleName: &name}
}
