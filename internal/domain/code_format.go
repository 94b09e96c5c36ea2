package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type CodeType string

const (
	CodeTypeFarmer   CodeType = "FARMER"
	CodeTypeEmployee CodeType = "EMPLOYEE"
)

func (c CodeType) Valid() bool {
	return c == CodeTypeFarmer || c == CodeTypeEmployee
}

// CodeTypeFor maps an importable entity to the code format that numbers it.
func CodeTypeFor(e EntityType) CodeType {
	if e == EntityEmployee {
		return CodeTypeEmployee
	}
	return CodeTypeFarmer
}

type CodeFormat struct {
	ID             uuid.UUID `db:"id" json:"id"`
	CodeType       CodeType  `db:"code_type" json:"codeType"`
	Prefix         string    `db:"prefix" json:"prefix"`
	StartingNumber int64     `db:"starting_number" json:"startingNumber"`
	CurrentNumber  int64     `db:"current_number" json:"currentNumber"`
	Description    *string   `db:"description" json:"description,omitempty"`
	IsActive       bool      `db:"is_active" json:"isActive"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// NextCode renders the code that the next generation would hand out.
func (f CodeFormat) NextCode() string {
	return FormatCode(f.Prefix, f.CurrentNumber+1)
}

func FormatCode(prefix string, number int64) string {
	return fmt.Sprintf("%s-%05d", prefix, number)
}

// CodeFormatUpdate never carries the starting number; it is fixed at creation.
type CodeFormatUpdate struct {
	Prefix      *string `json:"prefix,omitempty"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"isActive,omitempty"`
}
