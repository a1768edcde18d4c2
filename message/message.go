package message

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zostay/go-addr/pkg/addr"

	"github.com/swiftmailer/swiftmailer-sub001/message/header"
)

// Priority is the value of the X-Priority field.
type Priority int

// The priorities a message may be given.
const (
	PriorityHighest Priority = 1
	PriorityHigh    Priority = 2
	PriorityNormal  Priority = 3
	PriorityLow     Priority = 4
	PriorityLowest  Priority = 5
)

// String returns the label written after the number in X-Priority.
func (p Priority) String() string {
	switch p {
	case PriorityHighest:
		return "Highest"
	case PriorityHigh:
		return "High"
	case PriorityNormal:
		return "Normal"
	case PriorityLow:
		return "Low"
	case PriorityLowest:
		return "Lowest"
	}
	return ""
}

// Message is a complete email message: the top-level entity, with the
// envelope and addressing fields in its header.
//
// A new message has a Date, a Message-ID, a MIME-Version, and an empty From
// field. The Date, Message-ID, and From fields are always written, even when
// empty.
type Message struct {
	*Entity
}

// NewMessage returns an empty text/plain message.
func NewMessage(cfg *Config) *Message {
	cfg = cfg.orDefault()

	h := &header.Header{}
	m := &Message{
		Entity: NewEntity(cfg, h, cfg.newQuotedPrintable(cfg.Charset)),
	}
	m.idField = header.MessageID

	h.DefineOrdering(
		header.ReturnPath,
		"Received",
		header.Sender,
		header.MessageID,
		header.Date,
		header.Subject,
		header.From,
		header.ReplyTo,
		header.To,
		header.Cc,
		header.Bcc,
		header.MIMEVersion,
		header.ContentType,
		header.ContentTransferEncoding,
	)
	h.SetAlwaysDisplayed(header.Date, header.MessageID, header.From)

	h.Set(header.MIMEVersion, "1.0")
	h.SetDate(cfg.Now())
	_ = m.SetID(m.ID())
	h.SetStructured(header.From, "")

	initText(m.Entity, "", "", "")
	return m
}

// NewMessageWith returns a message with the given subject and body. An empty
// content type means text/plain and an empty charset means the configured
// charset.
func NewMessageWith(cfg *Config, subject, body, contentType, charset string) *Message {
	m := NewMessage(cfg)
	if subject != "" {
		m.SetSubject(subject)
	}
	m.SetBodyWith(body, contentType, charset)
	return m
}

// SetBodyWith sets the body and, when not empty, the content type and the
// charset.
func (m *Message) SetBodyWith(body, contentType, charset string) {
	m.SetBodyString(body)
	if contentType != "" {
		m.SetContentType(contentType)
	}
	if charset != "" {
		m.SetCharset(charset)
	}
}

// Subject returns the Subject field.
func (m *Message) Subject() string {
	s, _ := m.header.GetSubject()
	return s
}

// SetSubject replaces the Subject field.
func (m *Message) SetSubject(s string) {
	m.header.SetSubject(s)
}

// Date returns the Date field.
func (m *Message) Date() time.Time {
	d, _ := m.header.GetDate()
	return d
}

// SetDate replaces the Date field.
func (m *Message) SetDate(d time.Time) {
	m.header.SetDate(d)
}

// ReturnPath returns the address in the Return-Path field.
func (m *Message) ReturnPath() string {
	rp, _ := m.header.GetReturnPath()
	return rp
}

// SetReturnPath replaces the Return-Path field.
func (m *Message) SetReturnPath(a string) error {
	return m.header.SetReturnPath(a)
}

// addressList returns the named address field, or nil.
func (m *Message) addressList(name string) addr.AddressList {
	if b, _ := m.header.Get(name); strings.TrimSpace(b) == "" {
		return nil
	}

	al, err := m.header.GetAddressList(name)
	if err != nil {
		return nil
	}
	return al
}

// addAddress appends to the named address field.
func (m *Message) addAddress(name string, as []any) error {
	all := make([]any, 0, len(as)+1)
	if al := m.addressList(name); len(al) > 0 {
		all = append(all, al)
	}
	all = append(all, as...)

	switch name {
	case header.To:
		return m.header.SetTo(all...)
	case header.Cc:
		return m.header.SetCc(all...)
	case header.Bcc:
		return m.header.SetBcc(all...)
	}
	return fmt.Errorf("cannot add to %s", name)
}

// From returns the From addresses.
func (m *Message) From() addr.AddressList { return m.addressList(header.From) }

// SetFrom replaces the From field. Each address is a string or an
// addr.Address.
func (m *Message) SetFrom(as ...any) error { return m.header.SetFrom(as...) }

// Sender returns the Sender address.
func (m *Message) Sender() addr.AddressList { return m.addressList(header.Sender) }

// SetSender replaces the Sender field.
func (m *Message) SetSender(as ...any) error { return m.header.SetSender(as...) }

// ReplyTo returns the Reply-To addresses.
func (m *Message) ReplyTo() addr.AddressList { return m.addressList(header.ReplyTo) }

// SetReplyTo replaces the Reply-To field.
func (m *Message) SetReplyTo(as ...any) error { return m.header.SetReplyTo(as...) }

// To returns the To addresses.
func (m *Message) To() addr.AddressList { return m.addressList(header.To) }

// SetTo replaces the To field.
func (m *Message) SetTo(as ...any) error { return m.header.SetTo(as...) }

// AddTo appends to the To field.
func (m *Message) AddTo(as ...any) error { return m.addAddress(header.To, as) }

// Cc returns the Cc addresses.
func (m *Message) Cc() addr.AddressList { return m.addressList(header.Cc) }

// SetCc replaces the Cc field.
func (m *Message) SetCc(as ...any) error { return m.header.SetCc(as...) }

// AddCc appends to the Cc field.
func (m *Message) AddCc(as ...any) error { return m.addAddress(header.Cc, as) }

// Bcc returns the Bcc addresses.
func (m *Message) Bcc() addr.AddressList { return m.addressList(header.Bcc) }

// SetBcc replaces the Bcc field.
func (m *Message) SetBcc(as ...any) error { return m.header.SetBcc(as...) }

// AddBcc appends to the Bcc field.
func (m *Message) AddBcc(as ...any) error { return m.addAddress(header.Bcc, as) }

// Priority returns the priority from X-Priority, PriorityNormal if unset.
func (m *Message) Priority() Priority {
	v, err := m.header.Get(header.XPriority)
	if err != nil {
		return PriorityNormal
	}

	fs := strings.Fields(v)
	if len(fs) == 0 {
		return PriorityNormal
	}

	p, err := strconv.Atoi(fs[0])
	if err != nil {
		return PriorityNormal
	}
	return clampPriority(Priority(p))
}

// SetPriority sets X-Priority. Values out of range are clamped.
func (m *Message) SetPriority(p Priority) {
	p = clampPriority(p)
	m.header.Set(header.XPriority, fmt.Sprintf("%d (%s)", p, p))
}

func clampPriority(p Priority) Priority {
	switch {
	case p < PriorityHighest:
		return PriorityHighest
	case p > PriorityLowest:
		return PriorityLowest
	}
	return p
}

// ReadReceiptTo returns the Disposition-Notification-To addresses.
func (m *Message) ReadReceiptTo() addr.AddressList {
	return m.addressList(header.DispositionNotificationTo)
}

// SetReadReceiptTo asks for a read receipt sent to the given address.
func (m *Message) SetReadReceiptTo(a string) error {
	add, err := addr.ParseEmailAddress(a)
	if err != nil {
		return err
	}
	m.header.SetAddressList(header.DispositionNotificationTo, add)
	return nil
}

// Attach adds a child entity to the message.
func (m *Message) Attach(c Child) {
	m.SetChildren(append(m.Children(), c.entity())...)
}

// Detach removes a child entity from the message.
func (m *Message) Detach(c Child) {
	target := c.entity()
	kept := make([]*Entity, 0, len(m.children))
	for _, e := range m.children {
		if e != target {
			kept = append(kept, e)
		}
	}
	m.SetChildren(kept...)
}

// Embed attaches c and returns the cid: URL for referring to it from the
// body of another part.
func (m *Message) Embed(c Child) string {
	m.Attach(c)
	return "cid:" + c.entity().ID()
}

// AddPart adds a text part with the given body and returns it.
func (m *Message) AddPart(body, contentType, charset string) *MimePart {
	p := NewMimePart(m.cfg, body, contentType, charset)
	m.Attach(p)
	return p
}
