// Package settings is the process-wide cache of system settings: age bounds,
// education types, crop taxonomies and ID code formats. Data younger than
// the TTL is served without touching the network.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/njprem/agri_admin_backend/internal/domain"
)

const DefaultTTL = 5 * time.Minute

// CategoryCodeFormats sits next to the four stored categories; it is served
// by the code-format endpoints instead of the settings ones.
const CategoryCodeFormats domain.SettingCategory = "code-formats"

var ErrPayloadMismatch = errors.New("payload does not match settings category")

// API is the part of the admin API client the store reads and writes.
type API interface {
	GetAgeSettings(ctx context.Context) (domain.AgeSettings, error)
	GetEducationTypes(ctx context.Context) (domain.EducationTypes, error)
	GetCropNames(ctx context.Context) (domain.CropNames, error)
	GetCropTypes(ctx context.Context) (domain.CropTypes, error)
	GetAllCodeFormats(ctx context.Context) ([]domain.CodeFormat, error)
	UpdateSettings(ctx context.Context, category domain.SettingCategory, payload any) (json.RawMessage, error)
	UpdateCodeFormat(ctx context.Context, id uuid.UUID, in domain.CodeFormatUpdate) (*domain.CodeFormat, error)
}

// CodeFormatChange is the Update payload for CategoryCodeFormats.
type CodeFormatChange struct {
	ID     uuid.UUID
	Update domain.CodeFormatUpdate
}

type Option func(*Store)

func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

type snapshot struct {
	ages        domain.AgeSettings
	education   domain.EducationTypes
	cropNames   domain.CropNames
	cropTypes   domain.CropTypes
	codeFormats []domain.CodeFormat
}

type Store struct {
	api    API
	ttl    time.Duration
	now    func() time.Time
	logger *log.Logger

	loadMu sync.Mutex

	mu       sync.RWMutex
	data     snapshot
	defaults snapshot
	loadedAt time.Time
	failures map[domain.SettingCategory]error
}

// New starts out with the built-in defaults so reads work before Load.
func New(api API, opts ...Option) (*Store, error) {
	defaults, err := builtinDefaults()
	if err != nil {
		return nil, err
	}
	s := &Store{
		api:      api,
		ttl:      DefaultTTL,
		now:      time.Now,
		logger:   log.Default(),
		data:     defaults,
		defaults: defaults,
		failures: map[domain.SettingCategory]error{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func builtinDefaults() (snapshot, error) {
	raw, err := domain.DefaultSettings()
	if err != nil {
		return snapshot{}, err
	}
	var out snapshot
	for _, step := range []struct {
		category domain.SettingCategory
		into     any
	}{
		{domain.SettingAge, &out.ages},
		{domain.SettingEducationTypes, &out.education},
		{domain.SettingCropNames, &out.cropNames},
		{domain.SettingCropTypes, &out.cropTypes},
	} {
		if err := json.Unmarshal(raw[step.category], step.into); err != nil {
			return snapshot{}, fmt.Errorf("default %s: %w", step.category, err)
		}
	}
	return out, nil
}

// Fresh reports whether cached data is younger than the TTL.
func (s *Store) Fresh() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.loadedAt.IsZero() && s.now().Sub(s.loadedAt) < s.ttl
}

// Load refreshes all five categories concurrently unless the cache is
// fresh and force is false. Each category that fails or comes back empty
// falls back to its default on its own; Failures lists them. Code formats
// have no defaults, so a failed read keeps the formats already loaded.
func (s *Store) Load(ctx context.Context, force bool) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if !force && s.Fresh() {
		return
	}

	s.mu.RLock()
	lastFormats := s.data.codeFormats
	s.mu.RUnlock()

	var (
		next     snapshot
		failMu   sync.Mutex
		failures = map[domain.SettingCategory]error{}
	)
	fail := func(c domain.SettingCategory, err error) {
		s.logger.Printf("settings: %s unavailable, using defaults: %v", c, err)
		failMu.Lock()
		failures[c] = err
		failMu.Unlock()
	}

	// errgroup.Group without a shared context: one failing category must
	// not cancel the others.
	var g errgroup.Group
	g.Go(func() error {
		v, err := s.api.GetAgeSettings(ctx)
		if err != nil || len(v) == 0 {
			fail(domain.SettingAge, orEmpty(err))
			v = s.defaults.ages
		}
		next.ages = normalizeAges(v)
		return nil
	})
	g.Go(func() error {
		v, err := s.api.GetEducationTypes(ctx)
		if err != nil || len(v) == 0 {
			fail(domain.SettingEducationTypes, orEmpty(err))
			v = s.defaults.education
		}
		next.education = normalizeEducation(v)
		return nil
	})
	g.Go(func() error {
		v, err := s.api.GetCropNames(ctx)
		if err != nil || len(v) == 0 {
			fail(domain.SettingCropNames, orEmpty(err))
			v = s.defaults.cropNames
		}
		next.cropNames = v
		return nil
	})
	g.Go(func() error {
		v, err := s.api.GetCropTypes(ctx)
		if err != nil || len(v) == 0 {
			fail(domain.SettingCropTypes, orEmpty(err))
			v = s.defaults.cropTypes
		}
		next.cropTypes = v
		return nil
	})
	g.Go(func() error {
		v, err := s.api.GetAllCodeFormats(ctx)
		if err != nil {
			fail(CategoryCodeFormats, err)
			v = lastFormats
		}
		next.codeFormats = v
		return nil
	})
	_ = g.Wait()

	s.mu.Lock()
	s.data = next
	s.loadedAt = s.now()
	s.failures = failures
	s.mu.Unlock()
}

var errEmpty = errors.New("empty response")

func orEmpty(err error) error {
	if err == nil {
		return errEmpty
	}
	return err
}

func normalizeAges(in domain.AgeSettings) domain.AgeSettings {
	out := make(domain.AgeSettings, len(in))
	for k, v := range in {
		out[domain.NormalizeUserType(k)] = v
	}
	return out
}

func normalizeEducation(in domain.EducationTypes) domain.EducationTypes {
	out := make(domain.EducationTypes, len(in))
	for k, v := range in {
		out[domain.NormalizeUserType(k)] = v
	}
	return out
}

// Failures lists the categories the last Load served from defaults.
func (s *Store) Failures() map[domain.SettingCategory]error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.SettingCategory]error, len(s.failures))
	for k, v := range s.failures {
		out[k] = v
	}
	return out
}

// Update writes one category, applies it locally right away and then
// forces a reload, so server truth wins in the end.
func (s *Store) Update(ctx context.Context, category domain.SettingCategory, data any) error {
	switch category {
	case domain.SettingAge:
		v, ok := data.(domain.AgeSettings)
		if !ok {
			return ErrPayloadMismatch
		}
		if _, err := s.api.UpdateSettings(ctx, category, v); err != nil {
			return err
		}
		s.apply(func(d *snapshot) { d.ages = normalizeAges(v) })
	case domain.SettingEducationTypes:
		v, ok := data.(domain.EducationTypes)
		if !ok {
			return ErrPayloadMismatch
		}
		if _, err := s.api.UpdateSettings(ctx, category, v); err != nil {
			return err
		}
		s.apply(func(d *snapshot) { d.education = normalizeEducation(v) })
	case domain.SettingCropNames:
		v, ok := data.(domain.CropNames)
		if !ok {
			return ErrPayloadMismatch
		}
		if _, err := s.api.UpdateSettings(ctx, category, v); err != nil {
			return err
		}
		s.apply(func(d *snapshot) { d.cropNames = v })
	case domain.SettingCropTypes:
		v, ok := data.(domain.CropTypes)
		if !ok {
			return ErrPayloadMismatch
		}
		if _, err := s.api.UpdateSettings(ctx, category, v); err != nil {
			return err
		}
		s.apply(func(d *snapshot) { d.cropTypes = v })
	case CategoryCodeFormats:
		v, ok := data.(CodeFormatChange)
		if !ok {
			return ErrPayloadMismatch
		}
		updated, err := s.api.UpdateCodeFormat(ctx, v.ID, v.Update)
		if err != nil {
			return err
		}
		s.apply(func(d *snapshot) { d.codeFormats = replaceFormat(d.codeFormats, *updated) })
	default:
		return fmt.Errorf("unknown settings category %q", category)
	}
	s.Load(ctx, true)
	return nil
}

func (s *Store) apply(fn func(*snapshot)) {
	s.mu.Lock()
	fn(&s.data)
	s.mu.Unlock()
}

func replaceFormat(in []domain.CodeFormat, f domain.CodeFormat) []domain.CodeFormat {
	out := make([]domain.CodeFormat, 0, len(in)+1)
	found := false
	for _, cur := range in {
		switch {
		case cur.ID == f.ID:
			out = append(out, f)
			found = true
		case f.IsActive && cur.CodeType == f.CodeType:
			cur.IsActive = false
			out = append(out, cur)
		default:
			out = append(out, cur)
		}
	}
	if !found {
		out = append(out, f)
	}
	return out
}

func (s *Store) AgeSettings() domain.AgeSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(domain.AgeSettings, len(s.data.ages))
	for k, v := range s.data.ages {
		out[k] = v
	}
	return out
}

// EducationTypes returns the levels for a user type, falling back to the
// farmer list for unknown types.
func (s *Store) EducationTypes(userType string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.data.education[domain.NormalizeUserType(userType)]; ok {
		return append([]string(nil), v...)
	}
	return append([]string(nil), s.data.education[domain.UserTypeFarmer]...)
}

func (s *Store) CropNames() domain.CropNames {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(domain.CropNames(nil), s.data.cropNames...)
}

// CropNamesOfType filters crop names by crop type, case-insensitively.
func (s *Store) CropNamesOfType(cropType string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, c := range s.data.cropNames {
		if strings.EqualFold(c.CropType, strings.TrimSpace(cropType)) {
			out = append(out, c.Name)
		}
	}
	return out
}

func (s *Store) CropTypes() domain.CropTypes {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(domain.CropTypes(nil), s.data.cropTypes...)
}

func (s *Store) CodeFormats() []domain.CodeFormat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.CodeFormat(nil), s.data.codeFormats...)
}

// AgeResult is the outcome of ValidateAge; Message is empty when valid.
type AgeResult struct {
	IsValid bool
	Message string
}

// ValidateAge checks age against the bounds of userType. Unknown user types
// use the farmer bounds; with no bounds at all every age passes.
func (s *Store) ValidateAge(age int, userType string) AgeResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ut := domain.NormalizeUserType(userType)
	bounds, ok := s.data.ages[ut]
	if !ok {
		ut = domain.UserTypeFarmer
		bounds, ok = s.data.ages[ut]
	}
	if !ok {
		return AgeResult{IsValid: true}
	}
	if age < bounds.MinAge || age > bounds.MaxAge {
		return AgeResult{Message: fmt.Sprintf("Age must be between %d and %d years for %s", bounds.MinAge, bounds.MaxAge, ut)}
	}
	return AgeResult{IsValid: true}
}

func (s *Store) activeFormat(codeType domain.CodeType) (domain.CodeFormat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.data.codeFormats {
		if f.CodeType == codeType && f.IsActive {
			return f, true
		}
	}
	return domain.CodeFormat{}, false
}

var defaultPrefixes = map[domain.CodeType]string{
	domain.CodeTypeFarmer:   "FRM",
	domain.CodeTypeEmployee: "EMP",
}

// DisplayPrefix is the prefix of the active format, or the built-in one.
func (s *Store) DisplayPrefix(codeType domain.CodeType) string {
	if f, ok := s.activeFormat(codeType); ok {
		return f.Prefix
	}
	return defaultPrefixes[codeType]
}

// PreviewNextCode renders the code the next generation would hand out
// without consuming it.
func (s *Store) PreviewNextCode(codeType domain.CodeType) (string, bool) {
	f, ok := s.activeFormat(codeType)
	if !ok {
		return "", false
	}
	return f.NextCode(), true
}
