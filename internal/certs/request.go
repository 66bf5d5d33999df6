package certs

import (
	"errors"
	"fmt"
	"strings"
	"time"

	genkeyerrors "genkey/internal/errors"
	"genkey/internal/validation"
)

var taxIDSeparators = strings.NewReplacer(".", "", "-", "")

// Request is a parsed certificate request. Empty Location and Province and
// zero CreationDate and ExpirationDate mean the value was not supplied.
type Request struct {
	TaxID          string
	CompanyName    string
	Email          string
	Password       string
	Location       string
	Province       string
	CreationDate   time.Time
	ExpirationDate time.Time
}

// SanitizeTaxID strips the "." and "-" separators of a formatted NPWP.
func SanitizeTaxID(taxID string) string {
	return taxIDSeparators.Replace(taxID)
}

// Validate reports every missing or malformed field at once. The returned
// error matches ErrValidation and each individual field error.
func (r Request) Validate() error {
	var problems []error
	if err := validation.ValidateTaxID(SanitizeTaxID(r.TaxID)); err != nil {
		problems = append(problems, err)
	}
	if err := validation.ValidateCompanyName(r.CompanyName); err != nil {
		problems = append(problems, err)
	}
	if err := validation.ValidateEmail(r.Email); err != nil {
		problems = append(problems, err)
	}
	if err := validation.ValidatePassword(r.Password); err != nil {
		problems = append(problems, err)
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", genkeyerrors.ErrValidation, errors.Join(problems...))
}

// String keeps the password out of formatted output.
func (r Request) String() string {
	return fmt.Sprintf("Request{TaxID:%q CompanyName:%q Email:%q Password:[REDACTED] Location:%q Province:%q CreationDate:%s ExpirationDate:%s}",
		r.TaxID, r.CompanyName, r.Email, r.Location, r.Province, formatOptionalTime(r.CreationDate), formatOptionalTime(r.ExpirationDate))
}

func (r Request) GoString() string {
	return r.String()
}

func formatOptionalTime(t time.Time) string {
	if t.IsZero() {
		return "unset"
	}
	return t.UTC().Format(time.RFC3339)
}
