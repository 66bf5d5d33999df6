package certs

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	genkeyerrors "genkey/internal/errors"
)

// Name defaults for requesters of an Indonesian NPWP: the issuing office is
// in Jakarta, so OU, L and ST fall back to it and C is always ID.
const (
	DefaultOrganizationalUnit = "Jakarta"
	DefaultLocation           = "Jakarta"
	DefaultProvince           = "DKI Jakarta"
	DefaultCountry            = "ID"
)

// commonNameTimeLayout is YYYYMMDDhhmm.
const commonNameTimeLayout = "200601021504"

// NameDefaults are the operator-level values used where the request
// supplies nothing.
type NameDefaults struct {
	OrganizationalUnit string
	Location           string
	Province           string
	Country            string
}

func DefaultNameDefaults() NameDefaults {
	return NameDefaults{
		OrganizationalUnit: DefaultOrganizationalUnit,
		Location:           DefaultLocation,
		Province:           DefaultProvince,
		Country:            DefaultCountry,
	}
}

type stringKind int

const (
	directoryString stringKind = iota
	printableString
	ia5String
)

type attributeSpec struct {
	oid    asn1.ObjectIdentifier
	short  string
	minLen int
	maxLen int
	kind   stringKind
}

// Upper bounds follow X.520 and PKCS#9.
var (
	specCommonName         = attributeSpec{oid: asn1.ObjectIdentifier{2, 5, 4, 3}, short: "CN", minLen: 1, maxLen: 64, kind: directoryString}
	specOrganizationalUnit = attributeSpec{oid: asn1.ObjectIdentifier{2, 5, 4, 11}, short: "OU", minLen: 1, maxLen: 64, kind: directoryString}
	specOrganization       = attributeSpec{oid: asn1.ObjectIdentifier{2, 5, 4, 10}, short: "O", minLen: 1, maxLen: 64, kind: directoryString}
	specLocality           = attributeSpec{oid: asn1.ObjectIdentifier{2, 5, 4, 7}, short: "L", minLen: 1, maxLen: 128, kind: directoryString}
	specProvince           = attributeSpec{oid: asn1.ObjectIdentifier{2, 5, 4, 8}, short: "ST", minLen: 1, maxLen: 128, kind: directoryString}
	specCountry            = attributeSpec{oid: asn1.ObjectIdentifier{2, 5, 4, 6}, short: "C", minLen: 2, maxLen: 2, kind: printableString}
	specEmailAddress       = attributeSpec{oid: asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 1}, short: "emailAddress", minLen: 1, maxLen: 128, kind: ia5String}
)

// OIDEmailAddress is the PKCS#9 emailAddress attribute type.
var OIDEmailAddress = specEmailAddress.oid

// Attribute is one entry of a distinguished name.
type Attribute struct {
	Type  asn1.ObjectIdentifier
	Short string
	Value string
	kind  stringKind
}

// DistinguishedName is an ordered attribute list, one attribute per RDN.
type DistinguishedName []Attribute

// BuildName maps a request onto CN, OU, O, L, ST, C and emailAddress.
// creation is the certificate start time used in the CN.
func BuildName(req Request, defaults NameDefaults, creation time.Time) (DistinguishedName, error) {
	taxID := SanitizeTaxID(req.TaxID)
	commonName := fmt.Sprintf("%s-%s-%s", req.CompanyName, creation.UTC().Format(commonNameTimeLayout), taxID)

	values := []struct {
		spec  attributeSpec
		value string
	}{
		{specCommonName, commonName},
		{specOrganizationalUnit, defaults.OrganizationalUnit},
		{specOrganization, req.CompanyName},
		{specLocality, valueOrDefault(req.Location, defaults.Location)},
		{specProvince, valueOrDefault(req.Province, defaults.Province)},
		{specCountry, defaults.Country},
		{specEmailAddress, req.Email},
	}

	name := make(DistinguishedName, 0, len(values))
	for _, entry := range values {
		if err := entry.spec.check(entry.value); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", genkeyerrors.ErrEncoding, entry.spec.short, err)
		}
		name = append(name, Attribute{Type: entry.spec.oid, Short: entry.spec.short, Value: entry.value, kind: entry.spec.kind})
	}
	return name, nil
}

// Marshal returns the DER RDNSequence used as both subject and issuer.
func (n DistinguishedName) Marshal() ([]byte, error) {
	sequence := make(pkix.RDNSequence, 0, len(n))
	for _, attribute := range n {
		var value any = attribute.Value
		if attribute.kind == ia5String {
			value = asn1.RawValue{Class: asn1.ClassUniversal, Tag: asn1.TagIA5String, Bytes: []byte(attribute.Value)}
		}
		sequence = append(sequence, pkix.RelativeDistinguishedNameSET{{Type: attribute.Type, Value: value}})
	}
	der, err := asn1.Marshal(sequence)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", genkeyerrors.ErrEncoding, err)
	}
	return der, nil
}

// Get returns the value of the first attribute with the given short name.
func (n DistinguishedName) Get(short string) string {
	for _, attribute := range n {
		if attribute.Short == short {
			return attribute.Value
		}
	}
	return ""
}

func (n DistinguishedName) String() string {
	parts := make([]string, 0, len(n))
	for _, attribute := range n {
		parts = append(parts, attribute.Short+"="+attribute.Value)
	}
	return strings.Join(parts, ",")
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func (spec attributeSpec) check(value string) error {
	if !utf8.ValidString(value) {
		return errors.New("value is not valid UTF-8")
	}
	length := utf8.RuneCountInString(value)
	if length < spec.minLen || length > spec.maxLen {
		return fmt.Errorf("length %d outside %d..%d", length, spec.minLen, spec.maxLen)
	}
	for _, r := range value {
		if !unicode.IsPrint(r) {
			return fmt.Errorf("non-printable character %U", r)
		}
		switch spec.kind {
		case ia5String:
			if r > unicode.MaxASCII {
				return fmt.Errorf("character %U is not IA5", r)
			}
		case printableString:
			if !isPrintableStringChar(r) {
				return fmt.Errorf("character %U is not allowed in PrintableString", r)
			}
		}
	}
	return nil
}

func isPrintableStringChar(r rune) bool {
	switch {
	case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9':
		return true
	}
	return strings.ContainsRune(" '()+,-./:=?", r)
}
