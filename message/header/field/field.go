package field

import (
	"bytes"
	"strings"
)

// Field is a single header field, a name and a body. The body is kept in its
// decoded form and is encoded with RFC 2047 encoded-words when written if it
// contains characters that cannot appear in a header as-is.
//
// A Field parsed from an existing message also keeps the original bytes. As
// long as neither the name nor the body is modified, those original bytes are
// what will be written back out.
type Field struct {
	name       string
	body       string
	charset    string
	structured bool
	raw        []byte
}

// New constructs a new field with the given name and body.
func New(name, body string) *Field {
	return &Field{name: name, body: body}
}

// NewStructured constructs a field whose body has already been prepared for
// the wire. Address fields use this, since only the display names in such a
// body may be encoded and not the whole thing.
func NewStructured(name, body string) *Field {
	return &Field{name: name, body: body, structured: true}
}

// Name returns the name of the field.
func (f *Field) Name() string {
	return f.name
}

// SetName renames the field. This discards the original parsed bytes.
func (f *Field) SetName(name string) {
	f.name = name
	f.raw = nil
}

// Body returns the decoded body of the field.
func (f *Field) Body() string {
	return f.body
}

// SetBody replaces the body of the field. This discards the original parsed
// bytes.
func (f *Field) SetBody(body string) {
	f.body = body
	f.structured = false
	f.raw = nil
}

// SetStructuredBody replaces the body with a value that is already in wire
// form and must not be encoded again.
func (f *Field) SetStructuredBody(body string) {
	f.body = body
	f.structured = true
	f.raw = nil
}

// IsStructured returns true if the body is written as-is.
func (f *Field) IsStructured() bool {
	return f.structured
}

// Charset returns the charset used when the body has to be encoded. An empty
// string means utf-8.
func (f *Field) Charset() string {
	return f.charset
}

// SetCharset changes the charset used when encoding the body. If the change
// affects the output, the original parsed bytes are discarded.
func (f *Field) SetCharset(charset string) {
	if strings.EqualFold(f.charset, charset) {
		return
	}
	f.charset = charset
	if f.raw != nil && !IsPlain(f.body) {
		f.raw = nil
	}
}

// IsEmpty returns true when the field has no body.
func (f *Field) IsEmpty() bool {
	return strings.TrimSpace(f.body) == ""
}

// Raw returns the original bytes of a parsed field or nil.
func (f *Field) Raw() []byte {
	return f.raw
}

// SetRaw replaces the original bytes to output for this field. The name and
// body are left unchanged.
func (f *Field) SetRaw(raw []byte) {
	f.raw = raw
}

// EncodedBody returns the body as it will be written.
func (f *Field) EncodedBody() string {
	if f.structured {
		return f.body
	}
	return EncodeOffset(f.charset, f.body, len(f.name)+2)
}

// Bytes returns the complete unfolded field (or the original bytes, if
// unmodified since parsing).
func (f *Field) Bytes() []byte {
	if f.raw != nil {
		return f.raw
	}

	var buf bytes.Buffer
	buf.Grow(len(f.name) + len(f.body) + 2)
	buf.WriteString(f.name)
	buf.WriteString(": ")
	buf.WriteString(f.EncodedBody())
	return buf.Bytes()
}

// String returns the complete field as a string.
func (f *Field) String() string {
	return string(f.Bytes())
}

// Clone returns a copy of the field.
func (f *Field) Clone() *Field {
	c := *f
	if f.raw != nil {
		c.raw = append([]byte(nil), f.raw...)
	}
	return &c
}
