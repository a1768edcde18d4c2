package message

import (
	"github.com/swiftmailer/swiftmailer-sub001/message/header"
)

// Child is implemented by every entity type in this package and is what
// Message.Attach and friends accept.
type Child interface {
	entity() *Entity
}

func (e *Entity) entity() *Entity {
	return e
}

// MimePart is a text part of a message, such as the text/html alternative to
// a plain text body. It sits at the subpart level, so that its siblings of
// other types are grouped into a multipart/alternative.
type MimePart struct {
	*Entity
}

// NewMimePart returns a text part with the given body. An empty content type
// means text/plain and an empty charset means the configured charset.
func NewMimePart(cfg *Config, body, contentType, charset string) *MimePart {
	cfg = cfg.orDefault()
	p := &MimePart{
		Entity: NewEntity(cfg, &header.Header{}, cfg.newQuotedPrintable(cfg.Charset)),
	}
	p.SetLevel(LevelSubpart)
	initText(p.Entity, body, contentType, charset)
	return p
}

// initText sets up the text settings shared by MimePart and Message.
func initText(e *Entity, body, contentType, charset string) {
	if contentType == "" {
		contentType = "text/plain"
	}
	if charset == "" {
		charset = e.cfg.Charset
	}

	e.SetContentType(contentType)
	e.SetCharset(charset)
	if body != "" {
		e.SetBodyString(body)
	}
}
