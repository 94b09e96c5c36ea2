package util

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
)

var (
	ErrPasswordTooShort = errors.New("password is too short")
	ErrPasswordTooWeak  = errors.New("password is too weak")
	errEmptyPassword    = errors.New("password cannot be empty")
	errEmptySalt        = errors.New("salt cannot be empty")
)

// PasswordPolicy decides which passwords admin accounts may be created with.
type PasswordPolicy struct {
	MinLength int
	// RequireClasses asks for at least one upper-case letter, lower-case
	// letter, digit and symbol.
	RequireClasses bool
}

var DefaultPasswordPolicy = PasswordPolicy{MinLength: 12, RequireClasses: true}

// Check returns an error wrapping ErrPasswordTooShort or ErrPasswordTooWeak
// that names what the password lacks. Length counts characters, not bytes.
func (p PasswordPolicy) Check(password string) error {
	if n := utf8.RuneCountInString(password); n < p.MinLength || n == 0 {
		return fmt.Errorf("%w: need at least %d characters", ErrPasswordTooShort, max(p.MinLength, 1))
	}
	if !p.RequireClasses {
		return nil
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			symbol = true
		}
	}
	var missing []string
	for _, class := range []struct {
		ok   bool
		name string
	}{{upper, "an upper-case letter"}, {lower, "a lower-case letter"}, {digit, "a digit"}, {symbol, "a symbol"}} {
		if !class.ok {
			missing = append(missing, class.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: add %s", ErrPasswordTooWeak, strings.Join(missing, ", "))
	}
	return nil
}

// Stored hashes carry no parameters, so changing these invalidates every
// existing admin password.
const (
	saltBytes     = 16
	keyBytes      = 32
	argonPasses   = 1
	argonMemoryKB = 64 * 1024
	argonLanes    = 4
)

// DerivePassword hashes a new password under a fresh random salt.
func DerivePassword(password string) (hash, salt []byte, err error) {
	salt = make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, err
	}
	hash, err = HashPassword(password, salt)
	if err != nil {
		return nil, nil, err
	}
	return hash, salt, nil
}

func HashPassword(password string, salt []byte) ([]byte, error) {
	switch {
	case password == "":
		return nil, errEmptyPassword
	case len(salt) == 0:
		return nil, errEmptySalt
	}
	return argon2.IDKey([]byte(password), salt, argonPasses, argonMemoryKB, argonLanes, keyBytes), nil
}

// VerifyPassword compares in constant time; any missing input is a mismatch.
func VerifyPassword(password string, salt, expectedHash []byte) bool {
	if len(expectedHash) != keyBytes {
		return false
	}
	candidate, err := HashPassword(password, salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(candidate, expectedHash) == 1
}
