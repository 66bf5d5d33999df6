package validation

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	genkeyerrors "genkey/internal/errors"
)

func TestValidateTaxID(t *testing.T) {
	tests := []struct {
		name    string
		taxID   string
		wantErr error
	}{
		{name: "digits", taxID: "012345678901000", wantErr: nil},
		{name: "empty", taxID: "", wantErr: genkeyerrors.ErrTaxIDRequired},
		{name: "whitespace only", taxID: "   ", wantErr: genkeyerrors.ErrTaxIDRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTaxID(tt.taxID)
			if err != tt.wantErr {
				t.Errorf("ValidateTaxID() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCompanyName(t *testing.T) {
	if err := ValidateCompanyName("PT Maju Jaya"); err != nil {
		t.Errorf("expected valid company name, got %v", err)
	}
	if err := ValidateCompanyName(" \t"); err != genkeyerrors.ErrCompanyNameRequired {
		t.Errorf("expected ErrCompanyNameRequired, got %v", err)
	}
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr error
	}{
		{name: "plain address", email: "finance@example.co.id", wantErr: nil},
		{name: "surrounding spaces", email: "  finance@example.co.id ", wantErr: genkeyerrors.ErrInvalidEmail},
		{name: "trailing no-break space", email: "finance@example.co.id\u00a0", wantErr: genkeyerrors.ErrInvalidEmail},
		{name: "only spaces", email: "   ", wantErr: genkeyerrors.ErrEmailRequired},
		{name: "empty", email: "", wantErr: genkeyerrors.ErrEmailRequired},
		{name: "missing at", email: "finance.example.co.id", wantErr: genkeyerrors.ErrInvalidEmail},
		{name: "display name", email: "Finance <finance@example.co.id>", wantErr: genkeyerrors.ErrInvalidEmail},
		{name: "angle brackets", email: "<finance@example.co.id>", wantErr: genkeyerrors.ErrInvalidEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if err != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword(""); err != genkeyerrors.ErrPasswordRequired {
		t.Errorf("expected ErrPasswordRequired, got %v", err)
	}
	if err := ValidatePassword(" "); err != nil {
		t.Errorf("whitespace password is a valid password, got %v", err)
	}
}

func TestValidateValidityWindow(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		notAfter time.Time
		wantErr  error
	}{
		{name: "one year", notAfter: start.AddDate(1, 0, 0), wantErr: nil},
		{name: "one second", notAfter: start.Add(time.Second), wantErr: nil},
		{name: "equal", notAfter: start, wantErr: genkeyerrors.ErrInvalidValidity},
		{name: "before", notAfter: start.Add(-time.Hour), wantErr: genkeyerrors.ErrInvalidValidity},
		{name: "last representable second", notAfter: time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC), wantErr: nil},
		{name: "year 10000", notAfter: time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC), wantErr: genkeyerrors.ErrDateOutOfRange},
		{name: "far future millis", notAfter: time.UnixMilli(1 << 62), wantErr: genkeyerrors.ErrDateOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateValidityWindow(start, tt.notAfter)
			if err != tt.wantErr {
				t.Errorf("ValidateValidityWindow() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateValidityWindow_StartOutOfRange(t *testing.T) {
	notBefore := time.UnixMilli(-1 << 62)
	if err := ValidateValidityWindow(notBefore, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)); err != genkeyerrors.ErrDateOutOfRange {
		t.Errorf("ValidateValidityWindow() error = %v, want %v", err, genkeyerrors.ErrDateOutOfRange)
	}
}

func TestValidateCountryCode(t *testing.T) {
	valid := []string{"ID", "us", "Sg"}
	for _, code := range valid {
		if err := ValidateCountryCode(code); err != nil {
			t.Errorf("ValidateCountryCode(%q) unexpected error %v", code, err)
		}
	}
	invalid := []string{"", "I", "IDN", "1D", "I-"}
	for _, code := range invalid {
		if err := ValidateCountryCode(code); err != genkeyerrors.ErrInvalidCountry {
			t.Errorf("ValidateCountryCode(%q) error = %v, want ErrInvalidCountry", code, err)
		}
	}
}

func TestValidateValidityDays(t *testing.T) {
	tests := []struct {
		days    int
		wantErr error
	}{
		{365, nil},
		{1, nil},
		{0, genkeyerrors.ErrInvalidValidityDays},
		{-5, genkeyerrors.ErrInvalidValidityDays},
		{36501, genkeyerrors.ErrInvalidValidityDays},
	}
	for _, tt := range tests {
		if err := ValidateValidityDays(tt.days); err != tt.wantErr {
			t.Errorf("ValidateValidityDays(%d) error = %v, wantErr %v", tt.days, err, tt.wantErr)
		}
	}
}

func TestValidateAPIKeyHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash: %v", err)
	}
	if err := ValidateAPIKeyHash(""); err != nil {
		t.Errorf("empty hash disables auth, got %v", err)
	}
	if err := ValidateAPIKeyHash(string(hash)); err != nil {
		t.Errorf("expected valid bcrypt hash, got %v", err)
	}
	if err := ValidateAPIKeyHash("plaintext"); err != genkeyerrors.ErrInvalidAPIKeyHash {
		t.Errorf("expected ErrInvalidAPIKeyHash, got %v", err)
	}
}
