package header

import (
	"strings"

	"github.com/zostay/go-addr/pkg/addr"

	"github.com/swiftmailer/swiftmailer-sub001/message/header/field"
)

type displayNamer interface {
	DisplayName() string
}

// formatAddress renders a single address, encoding the display name if it
// needs it.
func formatAddress(charset string, a addr.Address) string {
	if dn, ok := a.(displayNamer); ok {
		name := dn.DisplayName()
		if name != "" && !field.IsPlain(name) {
			return field.Encode(charset, name) + " <" + a.Address() + ">"
		}
	}
	return addr.AddressList{a}.String()
}

// AddressesOf returns the bare addr-spec of each address in the list, skipping
// anything without one.
func AddressesOf(al addr.AddressList) []string {
	out := make([]string, 0, len(al))
	for _, a := range al {
		if s := strings.TrimSpace(a.Address()); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parseEmailAddressList is the fallback used when strict parsing fails. It is
// good at getting something useful out of the mess found on the Internet,
// even if that something is technically wrong:
//
// 1. Split the string up by commas.
// 2. Strip and hold the comments of each piece.
// 3. Treat all the words but the last as the display name.
// 4. Treat the last word as the email address.
//
// Groups are never recognized.
func parseEmailAddressList(v string) addr.AddressList {
	extractComments := func(s string) (string, string) {
		var clean, comment strings.Builder
		nestLevel := 0
		for _, c := range s {
			switch {
			case c == '(':
				nestLevel++
				if nestLevel > 1 {
					comment.WriteRune(c)
				}
			case c == ')':
				nestLevel--
				switch {
				case nestLevel == 0:
				case nestLevel < 0:
					nestLevel = 0
					clean.WriteRune(c)
				default:
					comment.WriteRune(c)
				}
			case nestLevel > 0:
				comment.WriteRune(c)
			default:
				clean.WriteRune(c)
			}
		}

		return clean.String(), comment.String()
	}

	mbs := strings.Split(v, ",")
	as := make(addr.AddressList, 0, len(mbs))
	for _, orig := range mbs {
		mb, com := extractComments(orig)
		mb = strings.TrimSpace(mb)
		com = strings.TrimSpace(com)

		parts := strings.Fields(mb)
		if len(parts) == 0 {
			continue
		}

		dn := strings.Join(parts[:len(parts)-1], " ")
		email := strings.Trim(parts[len(parts)-1], "<>")

		local, domain := email, ""
		if i := strings.LastIndex(email, "@"); i > -1 {
			local, domain = email[:i], email[i+1:]
		}
		addrSpec := addr.NewAddrSpecParsed(local, domain, email)

		mailbox, err := addr.NewMailboxParsed(dn, addrSpec, com, orig)
		if err != nil {
			mailbox, _ = addr.NewMailboxParsed(dn, addrSpec, "", orig)
		}

		as = append(as, mailbox)
	}

	return as
}
