package certs_test

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genkey/internal/certs"
	genkeyerrors "genkey/internal/errors"
)

var (
	fixtureKeyOnce sync.Once
	fixtureKey     *rsa.PrivateKey
)

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	fixtureKeyOnce.Do(func() {
		key, err := certs.GenerateKey(rand.Reader)
		if err != nil {
			panic(err)
		}
		fixtureKey = key
	})
	return fixtureKey
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestResolveValidity_Defaults(t *testing.T) {
	now := time.Date(2024, time.March, 5, 7, 9, 30, 987654321, time.FixedZone("WIB", 7*60*60))
	validity, err := certs.ResolveValidity(certs.Request{}, now, 365)
	require.NoError(t, err)

	assert.Equal(t, time.UTC, validity.NotBefore.Location())
	assert.Equal(t, time.Date(2024, time.March, 5, 0, 9, 30, 0, time.UTC), validity.NotBefore)
	assert.Equal(t, time.Date(2025, time.March, 5, 0, 9, 30, 0, time.UTC), validity.NotAfter)
}

func TestResolveValidity_Explicit(t *testing.T) {
	req := certs.Request{
		CreationDate:   time.UnixMilli(1700000000123),
		ExpirationDate: time.UnixMilli(1800000000999),
	}
	validity, err := certs.ResolveValidity(req, time.Now(), 365)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), validity.NotBefore)
	assert.Equal(t, time.Unix(1800000000, 0).UTC(), validity.NotAfter)
}

func TestResolveValidity_OnlyExpiration(t *testing.T) {
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	req := certs.Request{ExpirationDate: now.Add(48 * time.Hour)}
	validity, err := certs.ResolveValidity(req, now, 365)
	require.NoError(t, err)
	assert.Equal(t, now, validity.NotBefore)
	assert.Equal(t, now.Add(48*time.Hour), validity.NotAfter)
}

func TestResolveValidity_InvalidWindow(t *testing.T) {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		end  time.Time
	}{
		{"expiration before creation", start.Add(-time.Hour)},
		{"expiration equal to creation", start},
		{"equal after truncation", start.Add(500 * time.Millisecond)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := certs.ResolveValidity(certs.Request{CreationDate: start, ExpirationDate: tt.end}, time.Now(), 365)
			require.Error(t, err)
			assert.ErrorIs(t, err, genkeyerrors.ErrValidation)
			assert.ErrorIs(t, err, genkeyerrors.ErrInvalidValidity)
		})
	}
}

func TestResolveValidity_OutOfRange(t *testing.T) {
	tests := []struct {
		name string
		req  certs.Request
	}{
		{"expiration far in the future", certs.Request{ExpirationDate: time.UnixMilli(1 << 62)}},
		{"creation far in the past", certs.Request{CreationDate: time.UnixMilli(-1 << 62), ExpirationDate: time.UnixMilli(1700000000000)}},
		{"default expiration past 9999", certs.Request{CreationDate: time.Date(9999, time.June, 1, 0, 0, 0, 0, time.UTC)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := certs.ResolveValidity(tt.req, time.Now(), 365)
			assert.ErrorIs(t, err, genkeyerrors.ErrValidation)
			assert.ErrorIs(t, err, genkeyerrors.ErrDateOutOfRange)
		})
	}
}

func TestGenerateKey(t *testing.T) {
	key := testKey(t)
	assert.Equal(t, certs.KeyBits, key.N.BitLen())
	assert.NoError(t, key.Validate())
}

func TestNewSerialNumber_Deterministic(t *testing.T) {
	serial, err := certs.NewSerialNumber(bytes.NewReader([]byte{0, 0, 0, 42}))
	require.NoError(t, err)
	assert.Equal(t, int64(42), serial.Int64())

	serial, err = certs.NewSerialNumber(bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff}))
	require.NoError(t, err)
	assert.Equal(t, int64(4294967295), serial.Int64())
	assert.Equal(t, 1, serial.Sign())
}

func TestNewSerialNumber_RedrawsZero(t *testing.T) {
	serial, err := certs.NewSerialNumber(bytes.NewReader([]byte{0, 0, 0, 0, 0, 0, 1, 0}))
	require.NoError(t, err)
	assert.Equal(t, int64(256), serial.Int64())
}

func TestNewSerialNumber_Errors(t *testing.T) {
	tests := []struct {
		name   string
		random io.Reader
	}{
		{"only zeros", bytes.NewReader(make([]byte, 64))},
		{"short read", bytes.NewReader([]byte{1, 2})},
		{"failing reader", failingReader{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := certs.NewSerialNumber(tt.random)
			require.Error(t, err)
			assert.ErrorIs(t, err, genkeyerrors.ErrCertificateBuild)
		})
	}
}

func TestNewSerialNumber_Distinct(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		serial, err := certs.NewSerialNumber(rand.Reader)
		require.NoError(t, err)
		require.Equal(t, 1, serial.Sign())
		require.LessOrEqual(t, serial.BitLen(), 32)
		seen[serial.String()] = struct{}{}
	}
	assert.GreaterOrEqual(t, len(seen), 999)
}

func TestSubjectKeyID(t *testing.T) {
	key := testKey(t)
	id, err := certs.SubjectKeyID(&key.PublicKey)
	require.NoError(t, err)

	// For RSA the subjectPublicKey bit string is the PKCS#1 public key.
	expected := sha1.Sum(x509.MarshalPKCS1PublicKey(&key.PublicKey))
	assert.Equal(t, expected[:], id)
}

func TestBuildCertificate(t *testing.T) {
	key := testKey(t)
	name, err := certs.BuildName(validRequest(), certs.DefaultNameDefaults(), creation)
	require.NoError(t, err)
	validity := certs.Validity{NotBefore: creation.Truncate(time.Second), NotAfter: creation.Truncate(time.Second).AddDate(1, 0, 0)}

	cert, err := certs.BuildCertificate(rand.Reader, name, validity, key)
	require.NoError(t, err)

	assert.Equal(t, 3, cert.Version)
	assert.Equal(t, x509.SHA256WithRSA, cert.SignatureAlgorithm)
	assert.Equal(t, cert.RawSubject, cert.RawIssuer)
	assert.True(t, key.PublicKey.Equal(cert.PublicKey))
	assert.Equal(t, validity.NotBefore, cert.NotBefore)
	assert.Equal(t, validity.NotAfter, cert.NotAfter)
	// CheckSignatureFrom requires a CA parent; the certificate is end-entity.
	assert.NoError(t, cert.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature))
	assert.False(t, cert.BasicConstraintsValid)

	require.Len(t, cert.Extensions, 1)
	assert.True(t, cert.Extensions[0].Id.Equal(asn1.ObjectIdentifier{2, 5, 29, 14}))
	assert.False(t, cert.Extensions[0].Critical)
	expectedID, err := certs.SubjectKeyID(&key.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, expectedID, cert.SubjectKeyId)

	assert.Equal(t, "PT Maju Jaya-202403050709-012345678901000", cert.Subject.CommonName)
	assert.Equal(t, []string{"PT Maju Jaya"}, cert.Subject.Organization)
	assert.Equal(t, []string{"Jakarta"}, cert.Subject.OrganizationalUnit)
	assert.Equal(t, []string{"ID"}, cert.Subject.Country)
}

func TestBuildCertificate_Errors(t *testing.T) {
	name, err := certs.BuildName(validRequest(), certs.DefaultNameDefaults(), creation)
	require.NoError(t, err)
	validity := certs.Validity{NotBefore: creation, NotAfter: creation.AddDate(1, 0, 0)}

	_, err = certs.BuildCertificate(rand.Reader, name, validity, nil)
	assert.ErrorIs(t, err, genkeyerrors.ErrCertificateBuild)

	_, err = certs.BuildCertificate(failingReader{}, name, validity, testKey(t))
	assert.ErrorIs(t, err, genkeyerrors.ErrCertificateBuild)
}
