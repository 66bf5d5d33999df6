package certs

import (
	"math/big"
	"time"
)

// Validity is the resolved certificate validity window, in UTC and whole seconds.
type Validity struct {
	NotBefore time.Time
	NotAfter  time.Time
}

// Archive is the result of one issuance. Data is the DER-encoded PKCS#12
// file; the remaining fields describe it for response headers and logs.
type Archive struct {
	Data         []byte
	FriendlyName string
	SerialNumber *big.Int
	NotBefore    time.Time
	NotAfter     time.Time
	IssuanceID   string
}
