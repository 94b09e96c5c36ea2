package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/njprem/agri_admin_backend/internal/domain"
	"github.com/njprem/agri_admin_backend/internal/repository/ports"
)

var (
	ErrUnknownSetting  = errors.New("unknown setting category")
	ErrInvalidSettings = errors.New("invalid settings payload")
)

// SettingsService serves the system_setting categories. Categories without a
// stored row answer with the embedded defaults.
type SettingsService struct {
	repo     ports.SettingsRepository
	defaults map[domain.SettingCategory]json.RawMessage

	mu   sync.RWMutex
	ages domain.AgeSettings
}

func NewSettingsService(repo ports.SettingsRepository) (*SettingsService, error) {
	defaults, err := domain.DefaultSettings()
	if err != nil {
		return nil, err
	}
	s := &SettingsService{repo: repo, defaults: defaults}
	if err := json.Unmarshal(defaults[domain.SettingAge], &s.ages); err != nil {
		return nil, fmt.Errorf("default age settings: %w", err)
	}
	return s, nil
}

// Refresh reloads the cached age bounds used by the import row checks.
func (s *SettingsService) Refresh(ctx context.Context) error {
	raw, err := s.Get(ctx, domain.SettingAge)
	if err != nil {
		return err
	}
	var ages domain.AgeSettings
	if err := json.Unmarshal(raw, &ages); err != nil {
		return err
	}
	s.setAges(ages)
	return nil
}

func (s *SettingsService) Get(ctx context.Context, category domain.SettingCategory) (json.RawMessage, error) {
	if !category.Valid() {
		return nil, ErrUnknownSetting
	}
	raw, err := s.repo.Get(ctx, category)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.defaults[category], nil
		}
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return s.defaults[category], nil
	}
	return raw, nil
}

// Put validates payload against the category shape, stores it in canonical
// form and returns what was stored.
func (s *SettingsService) Put(ctx context.Context, category domain.SettingCategory, payload json.RawMessage) (json.RawMessage, error) {
	if !category.Valid() {
		return nil, ErrUnknownSetting
	}
	canonical, ages, err := canonicalSettings(category, payload)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Put(ctx, category, canonical); err != nil {
		return nil, err
	}
	if ages != nil {
		s.setAges(ages)
	}
	return canonical, nil
}

func canonicalSettings(category domain.SettingCategory, payload json.RawMessage) (json.RawMessage, domain.AgeSettings, error) {
	var (
		value any
		ages  domain.AgeSettings
	)
	switch category {
	case domain.SettingAge:
		if err := json.Unmarshal(payload, &ages); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
		}
		normalized := make(domain.AgeSettings, len(ages))
		for userType, b := range ages {
			if b.MinAge < 0 || b.MaxAge < b.MinAge {
				return nil, nil, fmt.Errorf("%w: %s age range %d-%d", ErrInvalidSettings, userType, b.MinAge, b.MaxAge)
			}
			normalized[domain.NormalizeUserType(userType)] = b
		}
		ages = normalized
		value = ages
	case domain.SettingEducationTypes:
		var edu domain.EducationTypes
		if err := json.Unmarshal(payload, &edu); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
		}
		normalized := make(domain.EducationTypes, len(edu))
		for userType, levels := range edu {
			normalized[domain.NormalizeUserType(userType)] = trimNonEmpty(levels)
		}
		value = normalized
	case domain.SettingCropNames:
		var crops domain.CropNames
		if err := json.Unmarshal(payload, &crops); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
		}
		for i, c := range crops {
			if strings.TrimSpace(c.Name) == "" {
				return nil, nil, fmt.Errorf("%w: crop %d has no name", ErrInvalidSettings, i+1)
			}
		}
		value = crops
	case domain.SettingCropTypes:
		var types domain.CropTypes
		if err := json.Unmarshal(payload, &types); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
		}
		value = domain.CropTypes(trimNonEmpty(types))
	}
	out, err := json.Marshal(value)
	if err != nil {
		return nil, nil, err
	}
	return out, ages, nil
}

// AgeBounds reports the cached bounds for a user type; unknown types fall
// back to farmer bounds.
func (s *SettingsService) AgeBounds(userType string) (domain.AgeBounds, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.ages[domain.NormalizeUserType(userType)]; ok {
		return b, true
	}
	b, ok := s.ages[domain.UserTypeFarmer]
	return b, ok
}

func (s *SettingsService) setAges(ages domain.AgeSettings) {
	s.mu.Lock()
	s.ages = ages
	s.mu.Unlock()
	log.Printf("settings: age bounds refreshed for %d user types", len(ages))
}

func trimNonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
