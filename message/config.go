package message

import (
	"io"
	"os"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/swiftmailer/swiftmailer-sub001/message/header"
	"github.com/swiftmailer/swiftmailer-sub001/message/transfer"
)

// Defaults used when a Config leaves a setting empty.
const (
	DefaultMaxLineLength = 78
	DefaultIDRight       = "swift.generated"
)

// Config holds the settings shared by every entity built with it. A nil
// *Config anywhere in this package means DefaultConfig().
type Config struct {
	// Charset is the charset given to new text parts and headers.
	Charset string

	// IDRight is the right-hand side of generated Message-ID and Content-ID
	// values. When empty, the host name is used.
	IDRight string

	// MaxLineLength is the line length given to new entities.
	MaxLineLength int

	// QPDotEscape makes quoted-printable encoders escape every dot, for the
	// benefit of servers that mishandle a dot at the start of a line.
	QPDotEscape bool

	// CompositeRanges maps child levels to multipart media types.
	CompositeRanges []CompositeRange

	// Now is the clock used for Date fields and generated ids.
	Now func() time.Time

	// Entropy feeds generated ids and boundaries. It must be safe for
	// concurrent use if the Config is shared between goroutines.
	Entropy io.Reader
}

// DefaultConfig returns a Config with every setting at its default.
func DefaultConfig() *Config {
	return &Config{
		Charset:         header.DefaultCharset,
		MaxLineLength:   DefaultMaxLineLength,
		CompositeRanges: DefaultCompositeRanges,
		Now:             time.Now,
		Entropy:         ulid.DefaultEntropy(),
	}
}

// orDefault fills in every empty setting.
func (c *Config) orDefault() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}

	cc := *c
	if cc.Charset == "" {
		cc.Charset = d.Charset
	}
	if cc.MaxLineLength == 0 {
		cc.MaxLineLength = d.MaxLineLength
	}
	if cc.CompositeRanges == nil {
		cc.CompositeRanges = d.CompositeRanges
	}
	if cc.Now == nil {
		cc.Now = d.Now
	}
	if cc.Entropy == nil {
		cc.Entropy = d.Entropy
	}
	return &cc
}

// idRight returns the right-hand side for generated ids.
func (c *Config) idRight() string {
	if c.IDRight != "" {
		return c.IDRight
	}
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return DefaultIDRight
}

// newToken returns a fresh ULID string.
func (c *Config) newToken() string {
	return ulid.MustNew(ulid.Timestamp(c.Now()), c.Entropy).String()
}

// newQuotedPrintable returns a quoted-printable encoder with the configured
// dot escaping.
func (c *Config) newQuotedPrintable(charset string) *transfer.QuotedPrintableEncoder {
	e := transfer.NewQuotedPrintableEncoder(charset)
	e.SetDotEscape(c.QPDotEscape)
	return e
}
