package certs

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/binary"
	"fmt"
	"io"
	"math/big"
	"time"

	genkeyerrors "genkey/internal/errors"
	"genkey/internal/validation"
)

const (
	// KeyBits is the RSA modulus size of every issued key.
	KeyBits = 2048

	// DefaultValidityDays applies when the request has no expiration date.
	DefaultValidityDays = 365

	serialNumberBytes    = 4
	maxSerialNumberDraws = 8
	signatureAlgorithm   = x509.SHA256WithRSA
)

// ResolveValidity applies the defaults for missing dates, normalises both
// bounds to UTC whole seconds and checks their order.
func ResolveValidity(req Request, now time.Time, validityDays int) (Validity, error) {
	notBefore := req.CreationDate
	if notBefore.IsZero() {
		notBefore = now
	}
	notBefore = notBefore.UTC().Truncate(time.Second)

	notAfter := req.ExpirationDate
	if notAfter.IsZero() {
		notAfter = notBefore.AddDate(0, 0, validityDays)
	}
	notAfter = notAfter.UTC().Truncate(time.Second)

	if err := validation.ValidateValidityWindow(notBefore, notAfter); err != nil {
		return Validity{}, fmt.Errorf("%w: %w", genkeyerrors.ErrValidation, err)
	}
	return Validity{NotBefore: notBefore, NotAfter: notAfter}, nil
}

// GenerateKey creates a fresh RSA key pair.
func GenerateKey(random io.Reader) (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(random, KeyBits)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", genkeyerrors.ErrKeyGeneration, err)
	}
	return key, nil
}

// NewSerialNumber draws a positive 32-bit serial number. Zero is not a
// valid serial and is drawn again.
func NewSerialNumber(random io.Reader) (*big.Int, error) {
	buf := make([]byte, serialNumberBytes)
	for draw := 0; draw < maxSerialNumberDraws; draw++ {
		if _, err := io.ReadFull(random, buf); err != nil {
			return nil, fmt.Errorf("%w: serial number: %v", genkeyerrors.ErrCertificateBuild, err)
		}
		if value := binary.BigEndian.Uint32(buf); value != 0 {
			return new(big.Int).SetUint64(uint64(value)), nil
		}
	}
	return nil, fmt.Errorf("%w: serial number: random source only produced zeros", genkeyerrors.ErrCertificateBuild)
}

// SubjectKeyID is the SHA-1 hash of the subjectPublicKey bit string
// (RFC 5280 section 4.2.1.2, method 1).
func SubjectKeyID(pub crypto.PublicKey) ([]byte, error) {
	var spki struct {
		Algorithm        pkix.AlgorithmIdentifier
		SubjectPublicKey asn1.BitString
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, err
	}
	if _, err := asn1.Unmarshal(der, &spki); err != nil {
		return nil, err
	}
	sum := sha1.Sum(spki.SubjectPublicKey.Bytes)
	return sum[:], nil
}

// BuildCertificate self-signs a version 3 certificate for key. Subject and
// issuer are both name; the subject key identifier is the only extension.
func BuildCertificate(random io.Reader, name DistinguishedName, validity Validity, key *rsa.PrivateKey) (*x509.Certificate, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: missing private key", genkeyerrors.ErrCertificateBuild)
	}
	rawName, err := name.Marshal()
	if err != nil {
		return nil, err
	}
	serialNumber, err := NewSerialNumber(random)
	if err != nil {
		return nil, err
	}
	subjectKeyID, err := SubjectKeyID(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: subject key identifier: %v", genkeyerrors.ErrCertificateBuild, err)
	}

	template := &x509.Certificate{
		SerialNumber:       serialNumber,
		RawSubject:         rawName,
		NotBefore:          validity.NotBefore,
		NotAfter:           validity.NotAfter,
		SubjectKeyId:       subjectKeyID,
		SignatureAlgorithm: signatureAlgorithm,
	}
	der, err := x509.CreateCertificate(random, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("%w: sign: %v", genkeyerrors.ErrCertificateBuild, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: parse: %v", genkeyerrors.ErrCertificateBuild, err)
	}
	return cert, nil
}
