package esmtp

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/idna"
)

// ErrAddressEncoding is returned when an address cannot be written by the
// AddressEncoder in use.
var ErrAddressEncoding = errors.New("address cannot be encoded")

// AddressEncoder prepares an address for MAIL FROM and RCPT TO.
type AddressEncoder interface {
	Encode(address string) (string, error)
}

// IDNEncoder converts the domain of an address to its ASCII form using
// punycode. The local part must already be ASCII.
type IDNEncoder struct{}

// Encode returns the address with an ASCII domain.
func (IDNEncoder) Encode(address string) (string, error) {
	i := strings.LastIndexByte(address, '@')
	if i < 0 {
		return address, nil
	}

	local, domain := address[:i], address[i+1:]
	if !isASCII(local) {
		return "", fmt.Errorf("%w: non-ASCII characters not supported in local part of %q", ErrAddressEncoding, address)
	}

	if isASCII(domain) {
		return address, nil
	}

	ascii, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		return "", fmt.Errorf("%w: domain of %q: %v", ErrAddressEncoding, address, err)
	}

	return local + "@" + ascii, nil
}

// UTF8Encoder writes addresses as they are. Non-ASCII addresses need a
// server that supports SMTPUTF8.
type UTF8Encoder struct{}

// Encode returns the address unchanged.
func (UTF8Encoder) Encode(address string) (string, error) {
	return address, nil
}

// RequiresSMTPUTF8 always returns true.
func (UTF8Encoder) RequiresSMTPUTF8() bool {
	return true
}

func requiresSMTPUTF8(e AddressEncoder) bool {
	r, ok := e.(interface{ RequiresSMTPUTF8() bool })
	return ok && r.RequiresSMTPUTF8()
}
