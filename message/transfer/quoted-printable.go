package transfer

import (
	"io"
	"mime/quotedprintable"

	"github.com/swiftmailer/swiftmailer-sub001/message/header"
)

const upperhex = "0123456789ABCDEF"

// QuotedPrintableEncoder encodes content as quoted-printable. It works on
// characters rather than bytes so that a soft line break never splits a
// multibyte character, which is why it needs to know the charset.
//
// Line breaks in the content are canonicalized: CRLF, a lone CR, and a lone
// LF are each written as a single hard CRLF break.
type QuotedPrintableEncoder struct {
	charset   string
	width     CharWidth
	dotEscape bool
}

// NewQuotedPrintableEncoder returns a quoted-printable encoder for content in
// the given charset.
func NewQuotedPrintableEncoder(charset string) *QuotedPrintableEncoder {
	return &QuotedPrintableEncoder{
		charset: charset,
		width:   CharWidthFor(charset),
	}
}

// Name returns "quoted-printable".
func (e *QuotedPrintableEncoder) Name() string {
	return QuotedPrintable
}

// Charset returns the charset the encoder measures characters with.
func (e *QuotedPrintableEncoder) Charset() string {
	return e.charset
}

// SetCharset changes the charset the encoder measures characters with.
func (e *QuotedPrintableEncoder) SetCharset(charset string) {
	e.charset = charset
	e.width = CharWidthFor(charset)
}

// SetDotEscape turns on escaping of every "." as =2E. Some broken servers
// mangle lines beginning with a dot.
func (e *QuotedPrintableEncoder) SetDotEscape(on bool) {
	e.dotEscape = on
}

// ObserveChange follows charset changes of the entity using this encoder.
func (e *QuotedPrintableEncoder) ObserveChange(c header.FieldChange) {
	if c.Kind != header.CharsetChanged {
		return
	}
	if cs, ok := c.Value.(string); ok {
		e.SetCharset(cs)
	}
}

// NewWriter returns a writer that quoted-printable encodes everything written
// to it. A maxLineLength outside of 1 to 76 means 76.
func (e *QuotedPrintableEncoder) NewWriter(w io.Writer, firstLineOffset, maxLineLength int) io.WriteCloser {
	maxLen := clampEncodedLineLength(maxLineLength)
	return &qpWriter{
		w:         w,
		width:     e.width,
		dotEscape: e.dotEscape,
		maxLen:    maxLen,
		limit:     maxLen - firstLineOffset,
	}
}

// Encode returns b encoded as quoted-printable.
func (e *QuotedPrintableEncoder) Encode(b []byte, firstLineOffset, maxLineLength int) []byte {
	return encode(e, b, firstLineOffset, maxLineLength)
}

// EncodeTo quoted-printable encodes everything read from r to w.
func (e *QuotedPrintableEncoder) EncodeTo(w io.Writer, r io.Reader, firstLineOffset, maxLineLength int) (int64, error) {
	return encodeTo(e, w, r, firstLineOffset, maxLineLength)
}

// qpWriter does the encoding one character at a time. A space or tab is held
// back until the next character shows whether it ends a line, in which case
// it gets escaped.
type qpWriter struct {
	w         io.Writer
	width     CharWidth
	dotEscape bool

	maxLen  int // limit of every line after the first
	limit   int // limit of the current line, including the soft break
	lineLen int

	ws   byte // pending whitespace or 0
	cr   bool // a CR was seen and the line break is not yet written
	hold []byte

	tok []byte
}

func (q *qpWriter) Write(p []byte) (int, error) {
	n := len(p)
	if len(q.hold) > 0 {
		p = append(q.hold, p...)
		q.hold = nil
	}

	for len(p) > 0 {
		cw := q.width(p)
		if cw < 1 {
			cw = 1
		}
		if cw > len(p) {
			q.hold = append([]byte(nil), p...)
			break
		}

		if err := q.char(p[:cw]); err != nil {
			return 0, err
		}
		p = p[cw:]
	}

	return n, nil
}

// Close flushes the final line. It does not close the nested writer.
func (q *qpWriter) Close() error {
	hold := q.hold
	q.hold = nil
	if len(hold) > 0 {
		if err := q.char(hold); err != nil {
			return err
		}
	}

	if q.cr {
		q.cr = false
		if err := q.hardBreak(); err != nil {
			return err
		}
	}

	return q.flushSpace(true)
}

func (q *qpWriter) char(c []byte) error {
	if len(c) == 1 {
		switch c[0] {
		case '\r':
			if q.cr {
				if err := q.hardBreak(); err != nil {
					return err
				}
			}
			q.cr = true
			return nil
		case '\n':
			q.cr = false
			return q.hardBreak()
		}
	}

	if q.cr {
		q.cr = false
		if err := q.hardBreak(); err != nil {
			return err
		}
	}

	if err := q.flushSpace(false); err != nil {
		return err
	}

	if len(c) == 1 && (c[0] == ' ' || c[0] == '\t') {
		q.ws = c[0]
		return nil
	}

	q.tok = q.tok[:0]
	for _, b := range c {
		if q.isSafe(b) {
			q.tok = append(q.tok, b)
			continue
		}
		q.tok = append(q.tok, '=', upperhex[b>>4], upperhex[b&0x0f])
	}

	return q.token(q.tok)
}

func (q *qpWriter) isSafe(b byte) bool {
	if q.dotEscape && b == '.' {
		return false
	}
	return (b >= 33 && b <= 60) || (b >= 62 && b <= 126)
}

// flushSpace writes the pending whitespace, escaped if it ends the line.
func (q *qpWriter) flushSpace(endOfLine bool) error {
	if q.ws == 0 {
		return nil
	}

	b := q.ws
	q.ws = 0
	if endOfLine {
		return q.token([]byte{'=', upperhex[b>>4], upperhex[b&0x0f]})
	}
	return q.token([]byte{b})
}

// token writes an encoded character, first inserting a soft line break if
// the character would not leave room for one.
func (q *qpWriter) token(t []byte) error {
	if q.lineLen > 0 && q.lineLen+len(t) >= q.limit {
		if _, err := q.w.Write([]byte("=\r\n")); err != nil {
			return err
		}
		q.lineLen = 0
		q.limit = q.maxLen
	}

	if _, err := q.w.Write(t); err != nil {
		return err
	}
	q.lineLen += len(t)
	return nil
}

func (q *qpWriter) hardBreak() error {
	if err := q.flushSpace(true); err != nil {
		return err
	}

	if _, err := q.w.Write(crlf); err != nil {
		return err
	}
	q.lineLen = 0
	q.limit = q.maxLen
	return nil
}

// NewQuotedPrintableDecoder will read bytes from the given io.Reader and return
// them in the returned io.Reader after decoding them from quoted-printable
// format.
func NewQuotedPrintableDecoder(r io.Reader) io.Reader {
	return quotedprintable.NewReader(r)
}
