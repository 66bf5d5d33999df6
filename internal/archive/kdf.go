package archive

import (
	"bytes"
	"errors"
	"hash"
	"math/big"
	"unicode/utf8"
)

var errNotUCS2 = errors.New("string contains characters that cannot be encoded in UCS-2")

// bmpString encodes s as big-endian UCS-2, the BMPString wire form.
func bmpString(s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, errNotUCS2
	}
	out := make([]byte, 0, 2*len(s))
	for _, r := range s {
		if r > 0xffff {
			return nil, errNotUCS2
		}
		out = append(out, byte(r>>8), byte(r))
	}
	return out, nil
}

// bmpPassword is the password form RFC 7292 appendix B expects: BMPString
// followed by a two-byte null terminator.
func bmpPassword(password string) ([]byte, error) {
	encoded, err := bmpString(password)
	if err != nil {
		return nil, err
	}
	return append(encoded, 0, 0), nil
}

// deriveKey implements the PKCS#12 key derivation of RFC 7292 B.2 where
// v is the hash block size in bytes and id selects the key purpose
// (1 encryption, 2 IV, 3 MAC).
func deriveKey(newHash func() hash.Hash, v int, salt, password []byte, iterations int, id byte, size int) []byte {
	u := newHash().Size()
	d := bytes.Repeat([]byte{id}, v)
	s := fillWithRepeats(salt, v)
	p := fillWithRepeats(password, v)
	i := make([]byte, 0, len(s)+len(p))
	i = append(i, s...)
	i = append(i, p...)

	c := (size + u - 1) / u
	out := make([]byte, 0, c*u)
	one := big.NewInt(1)
	for round := 0; round < c; round++ {
		h := newHash()
		h.Write(d)
		h.Write(i)
		a := h.Sum(nil)
		for j := 1; j < iterations; j++ {
			h.Reset()
			h.Write(a)
			a = h.Sum(nil)
		}
		out = append(out, a...)

		if round == c-1 {
			break
		}
		b := make([]byte, v)
		for k := range b {
			b[k] = a[k%u]
		}
		bInt := new(big.Int).SetBytes(b)
		for j := 0; j < len(i)/v; j++ {
			block := i[j*v : (j+1)*v]
			ij := new(big.Int).SetBytes(block)
			ij.Add(ij, bInt)
			ij.Add(ij, one)
			sum := ij.Bytes()
			if len(sum) > v {
				sum = sum[len(sum)-v:]
			}
			clear(block)
			copy(block[v-len(sum):], sum)
		}
	}
	return out[:size]
}

func fillWithRepeats(pattern []byte, v int) []byte {
	if len(pattern) == 0 {
		return nil
	}
	n := v * ((len(pattern) + v - 1) / v)
	out := make([]byte, n)
	for k := range out {
		out[k] = pattern[k%len(pattern)]
	}
	return out
}
