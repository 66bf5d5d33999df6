package validation

import (
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	genkeyerrors "genkey/internal/errors"
)

// ValidateTaxID expects the tax id with separators already stripped.
func ValidateTaxID(sanitized string) error {
	if strings.TrimSpace(sanitized) == "" {
		return genkeyerrors.ErrTaxIDRequired
	}
	return nil
}

func ValidateCompanyName(name string) error {
	if strings.TrimSpace(name) == "" {
		return genkeyerrors.ErrCompanyNameRequired
	}
	return nil
}

// ValidateEmail accepts a bare address only. Display names, angle
// brackets and surrounding whitespace are rejected.
func ValidateEmail(email string) error {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return genkeyerrors.ErrEmailRequired
	}
	if trimmed != email {
		return genkeyerrors.ErrInvalidEmail
	}
	parsed, err := mail.ParseAddress(email)
	if err != nil {
		return genkeyerrors.ErrInvalidEmail
	}
	if parsed.Name != "" || parsed.Address != email {
		return genkeyerrors.ErrInvalidEmail
	}
	return nil
}

// ValidatePassword only checks presence. Whitespace is significant.
func ValidatePassword(password string) error {
	if password == "" {
		return genkeyerrors.ErrPasswordRequired
	}
	return nil
}

const (
	minCertificateYear = 1
	maxCertificateYear = 9999
)

// ValidateValidityWindow also bounds both dates to what an X.509 Time can
// carry.
func ValidateValidityWindow(notBefore, notAfter time.Time) error {
	for _, t := range []time.Time{notBefore, notAfter} {
		if year := t.UTC().Year(); year < minCertificateYear || year > maxCertificateYear {
			return genkeyerrors.ErrDateOutOfRange
		}
	}
	if !notAfter.After(notBefore) {
		return genkeyerrors.ErrInvalidValidity
	}
	return nil
}

func ValidateCountryCode(code string) error {
	if len(code) != 2 {
		return genkeyerrors.ErrInvalidCountry
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return genkeyerrors.ErrInvalidCountry
		}
	}
	return nil
}

func ValidateValidityDays(days int) error {
	if days <= 0 || days > 36500 {
		return genkeyerrors.ErrInvalidValidityDays
	}
	return nil
}

// ValidateAPIKeyHash accepts an empty hash (authentication disabled) or a
// well-formed bcrypt hash.
func ValidateAPIKeyHash(hash string) error {
	trimmed := strings.TrimSpace(hash)
	if trimmed == "" {
		return nil
	}
	if _, err := bcrypt.Cost([]byte(trimmed)); err != nil {
		return genkeyerrors.ErrInvalidAPIKeyHash
	}
	return nil
}
