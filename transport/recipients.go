package transport

import (
	"github.com/zostay/go-addr/pkg/addr"

	"github.com/swiftmailer/swiftmailer-sub001/message/header"
)

// ReversePath returns the envelope sender of a message: the Return-Path if
// set, else the Sender, else the first From address. It returns
// ErrNoReversePath when none of them holds an address.
func ReversePath(h *header.Header) (string, error) {
	if rp, err := h.GetReturnPath(); err == nil && rp != "" {
		return rp, nil
	}

	for _, name := range []string{header.Sender, header.From} {
		if as := Addresses(h, name); len(as) > 0 {
			return as[0].Address(), nil
		}
	}

	return "", ErrNoReversePath
}

// Addresses returns the addresses in the named fields, in order. Fields that
// are missing or do not parse are skipped.
func Addresses(h *header.Header, names ...string) addr.AddressList {
	var out addr.AddressList
	for _, name := range names {
		if !h.Has(name) {
			continue
		}

		al, err := h.GetAddressList(name)
		if err != nil {
			continue
		}

		for _, a := range al {
			if a.Address() != "" {
				out = append(out, a)
			}
		}
	}
	return out
}

// Recipients returns the bare addresses of every To, Cc, and Bcc recipient.
func Recipients(h *header.Header) []string {
	return header.AddressesOf(Addresses(h, header.To, header.Cc, header.Bcc))
}
