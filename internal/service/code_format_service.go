package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/njprem/agri_admin_backend/internal/domain"
	"github.com/njprem/agri_admin_backend/internal/repository/ports"
)

var (
	ErrNoActiveCodeFormat     = errors.New("no active code format for this type")
	ErrCodeFormatExists       = errors.New("an active code format already exists for this type")
	ErrCodeFormatNotFound     = errors.New("code format not found")
	ErrInvalidCodeFormat      = errors.New("invalid code format")
	ErrStartingNumberReadOnly = errors.New("starting number cannot be changed")
)

var prefixPattern = regexp.MustCompile(`^[A-Z0-9]{2,10}$`)

type CodeFormatInput struct {
	CodeType       domain.CodeType `json:"codeType"`
	Prefix         string          `json:"prefix"`
	StartingNumber int64           `json:"startingNumber"`
	Description    string          `json:"description,omitempty"`
	IsActive       *bool           `json:"isActive,omitempty"`
}

type CodeFormatService struct {
	repo ports.CodeFormatRepository
}

func NewCodeFormatService(repo ports.CodeFormatRepository) *CodeFormatService {
	return &CodeFormatService{repo: repo}
}

func (s *CodeFormatService) List(ctx context.Context) ([]domain.CodeFormat, error) {
	return s.repo.List(ctx)
}

// Create registers a format. The counter starts one below the starting number
// so the first generated code carries the starting number itself.
func (s *CodeFormatService) Create(ctx context.Context, in CodeFormatInput) (*domain.CodeFormat, error) {
	prefix := strings.ToUpper(strings.TrimSpace(in.Prefix))
	if !in.CodeType.Valid() || !prefixPattern.MatchString(prefix) || in.StartingNumber <= 0 {
		return nil, ErrInvalidCodeFormat
	}
	active := in.IsActive == nil || *in.IsActive

	if active {
		if err := s.ensureNoOtherActive(ctx, in.CodeType, uuid.Nil); err != nil {
			return nil, err
		}
	}

	created, err := s.repo.Create(ctx, &domain.CodeFormat{
		CodeType:       in.CodeType,
		Prefix:         prefix,
		StartingNumber: in.StartingNumber,
		CurrentNumber:  in.StartingNumber - 1,
		Description:    stringPointer(in.Description),
		IsActive:       active,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrCodeFormatExists
		}
		return nil, err
	}
	return created, nil
}

func (s *CodeFormatService) Update(ctx context.Context, id uuid.UUID, update domain.CodeFormatUpdate) (*domain.CodeFormat, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCodeFormatNotFound
		}
		return nil, err
	}
	if update.Prefix != nil {
		prefix := strings.ToUpper(strings.TrimSpace(*update.Prefix))
		if !prefixPattern.MatchString(prefix) {
			return nil, ErrInvalidCodeFormat
		}
		update.Prefix = &prefix
	}
	if update.IsActive != nil && *update.IsActive && !existing.IsActive {
		if err := s.ensureNoOtherActive(ctx, existing.CodeType, existing.ID); err != nil {
			return nil, err
		}
	}
	updated, err := s.repo.Update(ctx, id, update)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrCodeFormatExists
		}
		return nil, err
	}
	return updated, nil
}

// NextCode consumes one number from the active format of codeType.
func (s *CodeFormatService) NextCode(ctx context.Context, codeType domain.CodeType) (string, error) {
	if !codeType.Valid() {
		return "", ErrInvalidCodeFormat
	}
	f, err := s.repo.Increment(ctx, codeType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNoActiveCodeFormat
		}
		return "", err
	}
	return domain.FormatCode(f.Prefix, f.CurrentNumber), nil
}

func (s *CodeFormatService) ensureNoOtherActive(ctx context.Context, codeType domain.CodeType, self uuid.UUID) error {
	current, err := s.repo.FindActiveByType(ctx, codeType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	if current.ID != self {
		return ErrCodeFormatExists
	}
	return nil
}
