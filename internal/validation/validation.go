// Package validation holds the field format checks shared by the import
// worker and the client engines.
package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func fieldErr(field, format string, args ...any) *FieldError {
	return &FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}

var (
	phonePattern   = regexp.MustCompile(`^[6-9][0-9]{9}$`)
	pincodePattern = regexp.MustCompile(`^[1-9][0-9]{5}$`)
	panPattern     = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	ifscPattern    = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	aadhaarPattern = regexp.MustCompile(`^[2-9][0-9]{11}$`)
	namePattern    = regexp.MustCompile(`^[\p{L} .'-]+$`)
)

// NormalizePhone strips spaces, dashes and a leading +91 or 0.
func NormalizePhone(raw string) string {
	v := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(raw))
	v = strings.TrimPrefix(v, "+91")
	if len(v) == 11 && strings.HasPrefix(v, "0") {
		v = v[1:]
	}
	if len(v) == 12 && strings.HasPrefix(v, "91") {
		v = v[2:]
	}
	return v
}

func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fieldErr(field, "is required")
	}
	return nil
}

func Phone(field, value string) error {
	if !phonePattern.MatchString(NormalizePhone(value)) {
		return fieldErr(field, "must be a valid 10-digit mobile number")
	}
	return nil
}

func Email(field, value string) error {
	v := strings.TrimSpace(value)
	addr, err := mail.ParseAddress(v)
	if err != nil || addr.Address != v || !strings.Contains(v[strings.LastIndex(v, "@")+1:], ".") {
		return fieldErr(field, "must be a valid email address")
	}
	return nil
}

func Pincode(field, value string) error {
	if !pincodePattern.MatchString(strings.TrimSpace(value)) {
		return fieldErr(field, "must be a 6-digit pincode")
	}
	return nil
}

func PAN(field, value string) error {
	if !panPattern.MatchString(strings.ToUpper(strings.TrimSpace(value))) {
		return fieldErr(field, "must look like ABCDE1234F")
	}
	return nil
}

func IFSC(field, value string) error {
	if !ifscPattern.MatchString(strings.ToUpper(strings.TrimSpace(value))) {
		return fieldErr(field, "must look like SBIN0001234")
	}
	return nil
}

func Aadhaar(field, value string) error {
	v := strings.ReplaceAll(strings.TrimSpace(value), " ", "")
	if !aadhaarPattern.MatchString(v) {
		return fieldErr(field, "must be a 12-digit Aadhaar number")
	}
	return nil
}

func Name(field, value string) error {
	v := strings.TrimSpace(value)
	if v == "" {
		return fieldErr(field, "is required")
	}
	if !namePattern.MatchString(v) {
		return fieldErr(field, "may only contain letters, spaces and dots")
	}
	return nil
}

// Optional runs check only when value is non-blank.
func Optional(check func(field, value string) error, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return check(field, value)
}

// Collect returns the non-nil field errors in order.
func Collect(errs ...error) []*FieldError {
	var out []*FieldError
	for _, err := range errs {
		if err == nil {
			continue
		}
		if fe, ok := err.(*FieldError); ok {
			out = append(out, fe)
			continue
		}
		out = append(out, &FieldError{Message: err.Error()})
	}
	return out
}
