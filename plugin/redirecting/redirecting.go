// Package redirecting sends every message to fixed recipients instead of
// the real ones, which is useful in development and staging.
package redirecting

import (
	"regexp"

	"github.com/zostay/go-addr/pkg/addr"

	"github.com/swiftmailer/swiftmailer-sub001/message/header"
	"github.com/swiftmailer/swiftmailer-sub001/transport/event"
)

// Fields holding the original recipients while a message is redirected.
const (
	OriginalTo  = "X-Swift-To"
	OriginalCc  = "X-Swift-Cc"
	OriginalBcc = "X-Swift-Bcc"
)

var originals = []struct{ field, saved string }{
	{header.To, OriginalTo},
	{header.Cc, OriginalCc},
	{header.Bcc, OriginalBcc},
}

// Plugin rewrites the recipients of each message before it is sent and puts
// them back after. Recipients matching the whitelist are kept. The original
// recipients travel with the message in X-Swift-* fields.
type Plugin struct {
	recipients addr.AddressList
	whitelist  []*regexp.Regexp
}

// New returns a Plugin sending to recipients and keeping any original
// recipient matching one of the whitelist patterns.
func New(recipients []string, whitelist ...string) (*Plugin, error) {
	p := &Plugin{}
	for _, r := range recipients {
		a, err := addr.ParseEmailAddress(r)
		if err != nil {
			return nil, err
		}
		p.recipients = append(p.recipients, a)
	}

	for _, w := range whitelist {
		re, err := regexp.Compile(w)
		if err != nil {
			return nil, err
		}
		p.whitelist = append(p.whitelist, re)
	}

	return p, nil
}

func (p *Plugin) keep(a addr.Address) bool {
	for _, r := range p.recipients {
		if r.Address() == a.Address() {
			return true
		}
	}
	for _, re := range p.whitelist {
		if re.MatchString(a.Address()) {
			return true
		}
	}
	return false
}

// BeforeSendPerformed saves the recipients and replaces them.
func (p *Plugin) BeforeSendPerformed(evt *event.SendEvent) {
	h := evt.Message.GetHeader()

	for _, o := range originals {
		if !h.Has(o.field) {
			continue
		}
		if al, err := h.GetAddressList(o.field); err == nil {
			h.SetAddressList(o.saved, al...)
		}
	}

	for _, o := range originals {
		var kept addr.AddressList
		if al, err := h.GetAddressList(o.field); err == nil {
			for _, a := range al {
				if p.keep(a) {
					kept = append(kept, a)
				}
			}
		}

		if o.field == header.To {
			for _, r := range p.recipients {
				if !contains(kept, r) {
					kept = append(kept, r)
				}
			}
		}

		if len(kept) == 0 {
			h.Delete(o.field)
			continue
		}
		h.SetAddressList(o.field, kept...)
	}
}

func contains(al addr.AddressList, a addr.Address) bool {
	for _, b := range al {
		if b.Address() == a.Address() {
			return true
		}
	}
	return false
}

// SendPerformed puts the original recipients back.
func (p *Plugin) SendPerformed(evt *event.SendEvent) {
	h := evt.Message.GetHeader()

	for _, o := range originals {
		if !h.Has(o.saved) {
			h.Delete(o.field)
			continue
		}

		if al, err := h.GetAddressList(o.saved); err == nil {
			h.SetAddressList(o.field, al...)
		}
		h.Delete(o.saved)
	}
}
