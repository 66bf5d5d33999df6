package errors

import "errors"

// Taxonomy of issuance failures. Every error returned by the issuance
// pipeline wraps exactly one of these.
var (
	ErrValidation       = errors.New("invalid certificate request")
	ErrEncoding         = errors.New("name attribute cannot be encoded")
	ErrKeyGeneration    = errors.New("key pair generation failed")
	ErrCertificateBuild = errors.New("certificate construction failed")
	ErrPackaging        = errors.New("pkcs12 packaging failed")
)

// Validation details, always reported together with ErrValidation.
var (
	ErrTaxIDRequired       = errors.New("npwp is required")
	ErrCompanyNameRequired = errors.New("companyName is required")
	ErrEmailRequired       = errors.New("email is required")
	ErrInvalidEmail        = errors.New("email is not a valid address")
	ErrPasswordRequired    = errors.New("password is required")
	ErrInvalidValidity     = errors.New("expirationDate must be after creationDate")
	ErrDateOutOfRange      = errors.New("dates must fall within years 1 to 9999")
)

var (
	ErrIncorrectPassword = errors.New("pkcs12: incorrect password")
	ErrMalformedArchive  = errors.New("pkcs12: malformed archive")
)

var (
	ErrInvalidCountry      = errors.New("invalid default country code")
	ErrInvalidValidityDays = errors.New("invalid default validity days")
	ErrInvalidNameDefault  = errors.New("invalid default name attribute")
	ErrInvalidAPIKeyHash   = errors.New("invalid api key hash")
	ErrInvalidPort         = errors.New("invalid port")
	ErrInvalidRateLimit    = errors.New("invalid rate limit")
	ErrUnauthorized        = errors.New("unauthorized access")
)
