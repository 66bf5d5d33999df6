// Package archive packs a private key and its certificate into a
// password-protected PKCS#12 (PFX) file and opens such files again.
//
// go-pkcs12 encoders cannot attach a friendly name to a key and certificate
// pair, so encoding is done here with the same structures and algorithms as
// go-pkcs12's Modern2023 profile. Decoding is delegated to go-pkcs12.
package archive

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
	"software.sslmate.com/src/go-pkcs12"

	genkeyerrors "genkey/internal/errors"
)

const (
	macIterations        = 2048
	encryptionIterations = 2048
	saltLength           = 16
	aes256KeyLength      = 32
	sha256BlockSize      = 64
	macKeyID             = 3
)

// Encode returns the DER encoding of a PFX holding cert and key, both
// encrypted under password and tagged with friendlyName. The random reader
// supplies salts and IVs; nil means crypto/rand.
func Encode(random io.Reader, key crypto.PrivateKey, cert *x509.Certificate, password, friendlyName string) ([]byte, error) {
	if key == nil || cert == nil {
		return nil, fmt.Errorf("%w: key and certificate are required", genkeyerrors.ErrPackaging)
	}
	if random == nil {
		random = rand.Reader
	}

	macPassword, err := bmpPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%w: password: %v", genkeyerrors.ErrPackaging, err)
	}
	attributes, err := bagAttributes(cert, friendlyName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", genkeyerrors.ErrPackaging, err)
	}

	certSafeBag, err := newCertSafeBag(cert, attributes)
	if err != nil {
		return nil, fmt.Errorf("%w: certificate bag: %v", genkeyerrors.ErrPackaging, err)
	}
	keySafeBag, err := newShroudedKeySafeBag(random, key, []byte(password), attributes)
	if err != nil {
		return nil, fmt.Errorf("%w: key bag: %v", genkeyerrors.ErrPackaging, err)
	}

	certContents, err := encryptedSafeContents(random, []safeBag{certSafeBag}, []byte(password))
	if err != nil {
		return nil, fmt.Errorf("%w: certificate contents: %v", genkeyerrors.ErrPackaging, err)
	}
	keyContents, err := plainSafeContents([]safeBag{keySafeBag})
	if err != nil {
		return nil, fmt.Errorf("%w: key contents: %v", genkeyerrors.ErrPackaging, err)
	}

	authenticatedSafe, err := asn1.Marshal([]contentInfo{certContents, keyContents})
	if err != nil {
		return nil, fmt.Errorf("%w: authenticated safe: %v", genkeyerrors.ErrPackaging, err)
	}
	mac, err := computeMac(random, authenticatedSafe, macPassword)
	if err != nil {
		return nil, fmt.Errorf("%w: mac: %v", genkeyerrors.ErrPackaging, err)
	}
	wrapped, err := asn1.Marshal(authenticatedSafe)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", genkeyerrors.ErrPackaging, err)
	}

	pfx := pfxPdu{
		Version:  3,
		AuthSafe: contentInfo{ContentType: oidDataContentType, Content: explicitTag0(wrapped)},
		MacData:  mac,
	}
	der, err := asn1.Marshal(pfx)
	if err != nil {
		return nil, fmt.Errorf("%w: pfx: %v", genkeyerrors.ErrPackaging, err)
	}
	return der, nil
}

// Open decodes a PFX holding exactly one certificate and one private key.
// A MAC mismatch is reported as ErrIncorrectPassword, anything else that
// prevents decoding as ErrMalformedArchive.
func Open(data []byte, password string) (crypto.PrivateKey, *x509.Certificate, error) {
	key, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return nil, nil, genkeyerrors.ErrIncorrectPassword
		}
		return nil, nil, fmt.Errorf("%w: %v", genkeyerrors.ErrMalformedArchive, err)
	}
	return key, cert, nil
}

func bagAttributes(cert *x509.Certificate, friendlyName string) ([]bagAttribute, error) {
	keyID := sha1.Sum(cert.Raw)
	keyIDBytes, err := asn1.Marshal(keyID[:])
	if err != nil {
		return nil, err
	}
	attributes := []bagAttribute{{ID: oidLocalKeyID, Value: setOf(keyIDBytes)}}
	if friendlyName == "" {
		return attributes, nil
	}

	name, err := bmpString(friendlyName)
	if err != nil {
		return nil, fmt.Errorf("friendly name: %w", err)
	}
	nameBytes, err := asn1.Marshal(asn1.RawValue{Class: asn1.ClassUniversal, Tag: asn1.TagBMPString, Bytes: name})
	if err != nil {
		return nil, err
	}
	return append(attributes, bagAttribute{ID: oidFriendlyName, Value: setOf(nameBytes)}), nil
}

func newCertSafeBag(cert *x509.Certificate, attributes []bagAttribute) (safeBag, error) {
	value, err := asn1.Marshal(certBag{ID: oidCertTypeX509Certificate, Data: cert.Raw})
	if err != nil {
		return safeBag{}, err
	}
	return safeBag{ID: oidCertBag, Value: explicitTag0(value), Attributes: attributes}, nil
}

func newShroudedKeySafeBag(random io.Reader, key crypto.PrivateKey, password []byte, attributes []bagAttribute) (safeBag, error) {
	pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return safeBag{}, err
	}
	algorithm, ciphertext, err := encrypt(random, pkcs8, password)
	if err != nil {
		return safeBag{}, err
	}
	value, err := asn1.Marshal(encryptedPrivateKeyInfo{AlgorithmIdentifier: algorithm, EncryptedData: ciphertext})
	if err != nil {
		return safeBag{}, err
	}
	return safeBag{ID: oidPKCS8ShroudedKeyBag, Value: explicitTag0(value), Attributes: attributes}, nil
}

func plainSafeContents(bags []safeBag) (contentInfo, error) {
	data, err := asn1.Marshal(bags)
	if err != nil {
		return contentInfo{}, err
	}
	octets, err := asn1.Marshal(data)
	if err != nil {
		return contentInfo{}, err
	}
	return contentInfo{ContentType: oidDataContentType, Content: explicitTag0(octets)}, nil
}

func encryptedSafeContents(random io.Reader, bags []safeBag, password []byte) (contentInfo, error) {
	data, err := asn1.Marshal(bags)
	if err != nil {
		return contentInfo{}, err
	}
	algorithm, ciphertext, err := encrypt(random, data, password)
	if err != nil {
		return contentInfo{}, err
	}
	encrypted, err := asn1.Marshal(encryptedData{
		Version: 0,
		EncryptedContentInfo: encryptedContentInfo{
			ContentType:                oidDataContentType,
			ContentEncryptionAlgorithm: algorithm,
			EncryptedContent:           ciphertext,
		},
	})
	if err != nil {
		return contentInfo{}, err
	}
	return contentInfo{ContentType: oidEncryptedDataContentType, Content: explicitTag0(encrypted)}, nil
}

// encrypt applies PBES2 with PBKDF2-HMAC-SHA256 and AES-256-CBC. PBES2
// takes the password as UTF-8, unlike the MAC which uses the BMP form.
func encrypt(random io.Reader, plaintext, password []byte) (pkix.AlgorithmIdentifier, []byte, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(random, salt); err != nil {
		return pkix.AlgorithmIdentifier{}, nil, err
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(random, iv); err != nil {
		return pkix.AlgorithmIdentifier{}, nil, err
	}
	params, err := pbes2Parameters(salt, iv)
	if err != nil {
		return pkix.AlgorithmIdentifier{}, nil, err
	}

	key := pbkdf2.Key(password, salt, encryptionIterations, aes256KeyLength, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return pkix.AlgorithmIdentifier{}, nil, err
	}
	padded := pad(plaintext, block.BlockSize())
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	algorithm := pkix.AlgorithmIdentifier{Algorithm: oidPBES2, Parameters: asn1.RawValue{FullBytes: params}}
	return algorithm, ciphertext, nil
}

func pbes2Parameters(salt, iv []byte) ([]byte, error) {
	saltBytes, err := asn1.Marshal(salt)
	if err != nil {
		return nil, err
	}
	kdfParams, err := asn1.Marshal(pbkdf2Params{
		Salt:       asn1.RawValue{FullBytes: saltBytes},
		Iterations: encryptionIterations,
		Prf:        pkix.AlgorithmIdentifier{Algorithm: oidHmacWithSHA256, Parameters: asn1.NullRawValue},
	})
	if err != nil {
		return nil, err
	}
	ivBytes, err := asn1.Marshal(iv)
	if err != nil {
		return nil, err
	}
	return asn1.Marshal(pbes2Params{
		Kdf:              pkix.AlgorithmIdentifier{Algorithm: oidPBKDF2, Parameters: asn1.RawValue{FullBytes: kdfParams}},
		EncryptionScheme: pkix.AlgorithmIdentifier{Algorithm: oidAES256CBC, Parameters: asn1.RawValue{FullBytes: ivBytes}},
	})
}

func computeMac(random io.Reader, message, password []byte) (macData, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(random, salt); err != nil {
		return macData{}, err
	}
	key := deriveKey(sha256.New, sha256BlockSize, salt, password, macIterations, macKeyID, sha256.Size)
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return macData{
		Mac: digestInfo{
			Algorithm: pkix.AlgorithmIdentifier{Algorithm: oidSHA256, Parameters: asn1.NullRawValue},
			Digest:    mac.Sum(nil),
		},
		MacSalt:    salt,
		Iterations: macIterations,
	}, nil
}

// pad applies PKCS#7 padding; a full block is added when the input is
// already aligned.
func pad(src []byte, blockSize int) []byte {
	padding := blockSize - len(src)%blockSize
	out := make([]byte, len(src)+padding)
	copy(out, src)
	for i := len(src); i < len(out); i++ {
		out[i] = byte(padding)
	}
	return out
}
