package certs

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"genkey/internal/archive"
	genkeyerrors "genkey/internal/errors"
	"genkey/internal/logger"
)

// Issuer turns a certificate request into a PKCS#12 archive.
type Issuer interface {
	Issue(ctx context.Context, req Request) (Archive, error)
}

// Settings are the operator-level knobs of the issuance pipeline.
type Settings struct {
	Names          NameDefaults
	ValidityDays   int
	VerifyArchives bool
}

func DefaultSettings() Settings {
	return Settings{
		Names:          DefaultNameDefaults(),
		ValidityDays:   DefaultValidityDays,
		VerifyArchives: true,
	}
}

// Service is the stateless issuance pipeline. It is safe for concurrent use.
type Service struct {
	settings Settings
	random   io.Reader
	now      func() time.Time
}

// NewService returns a pipeline drawing keys, serial numbers and archive
// salts from random and timestamps from clock. A nil random selects
// crypto/rand and a nil clock selects time.Now.
func NewService(settings Settings, random io.Reader, clock func() time.Time) *Service {
	if random == nil {
		random = rand.Reader
	}
	if clock == nil {
		clock = time.Now
	}
	if settings.ValidityDays <= 0 {
		settings.ValidityDays = DefaultValidityDays
	}
	return &Service{settings: settings, random: random, now: clock}
}

// Issue runs the whole pipeline for one request. The context is only
// consulted before work starts; key generation and signing always run to
// completion.
func (s *Service) Issue(ctx context.Context, req Request) (Archive, error) {
	if err := ctx.Err(); err != nil {
		return Archive{}, err
	}
	if err := req.Validate(); err != nil {
		return Archive{}, err
	}
	validity, err := ResolveValidity(req, s.now(), s.settings.ValidityDays)
	if err != nil {
		return Archive{}, err
	}
	name, err := BuildName(req, s.settings.Names, validity.NotBefore)
	if err != nil {
		return Archive{}, err
	}

	key, err := GenerateKey(s.random)
	if err != nil {
		return Archive{}, err
	}
	cert, err := BuildCertificate(s.random, name, validity, key)
	if err != nil {
		return Archive{}, err
	}

	friendlyName := SanitizeTaxID(req.TaxID)
	data, err := archive.Encode(s.random, key, cert, req.Password, friendlyName)
	if err != nil {
		return Archive{}, err
	}
	if s.settings.VerifyArchives {
		if err := verifyArchive(data, req.Password, key); err != nil {
			return Archive{}, fmt.Errorf("%w: verify: %v", genkeyerrors.ErrPackaging, err)
		}
	}

	issued := Archive{
		Data:         data,
		FriendlyName: friendlyName,
		SerialNumber: cert.SerialNumber,
		NotBefore:    cert.NotBefore,
		NotAfter:     cert.NotAfter,
		IssuanceID:   uuid.NewString(),
	}
	logger.IssuanceEvent(issued.IssuanceID).
		Str("serial_number", issued.SerialNumber.String()).
		Time("not_before", issued.NotBefore).
		Time("not_after", issued.NotAfter).
		Str("common_name", name.Get("CN")).
		Msg("certificate issued")
	return issued, nil
}

var errKeyMismatch = errors.New("archive key does not match generated key")

func verifyArchive(data []byte, password string, key *rsa.PrivateKey) error {
	decodedKey, decodedCert, err := archive.Open(data, password)
	if err != nil {
		return err
	}
	decoded, ok := decodedKey.(*rsa.PrivateKey)
	if !ok || !decoded.Equal(key) {
		return errKeyMismatch
	}
	if !key.PublicKey.Equal(decodedCert.PublicKey) {
		return errKeyMismatch
	}
	return nil
}
