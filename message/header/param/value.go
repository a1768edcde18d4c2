package param

import (
	"fmt"
	"mime"
	"sort"
	"strings"
)

const (
	// Charset is the name of the charset parameter of Content-Type.
	Charset = "charset"

	// Boundary is the name of the boundary parameter of multipart Content-Type.
	Boundary = "boundary"

	// Format is the name of the format parameter of text Content-Type, set to
	// "flowed" for RFC 3676 text.
	Format = "format"

	// DelSp is the name of the delsp parameter that goes along with
	// format=flowed.
	DelSp = "delsp"

	// Name is the name of the name parameter of Content-Type, which older mail
	// readers use to find the file name of an attachment.
	Name = "name"

	// Filename is the name of the filename parameter of Content-Disposition.
	Filename = "filename"

	// Size is the name of the size parameter of Content-Disposition.
	Size = "size"
)

// maxSectionLength is the longest RFC 2231 section we produce before starting
// a continuation.
const maxSectionLength = 60

// Value represents a parameterized header field body, such as Content-Type or
// Content-Disposition. A Value is immutable. Use Modify to derive a changed
// copy.
type Value struct {
	v  string
	ps map[string]string
}

// Parse parses a header field body into a Value. Parameters encoded per RFC
// 2231 are decoded.
func Parse(v string) (*Value, error) {
	mt, ps, err := mime.ParseMediaType(v)
	if err != nil {
		return nil, err
	}

	return &Value{mt, ps}, nil
}

// New creates a new Value with the given parameters (which may be nil).
func New(v string, ps map[string]string) *Value {
	cps := make(map[string]string, len(ps))
	for k, pv := range ps {
		cps[strings.ToLower(k)] = pv
	}
	return &Value{v, cps}
}

// Modifier is a modification applied to a Value by Modify.
type Modifier func(*Value)

// Change replaces the primary value.
func Change(value string) Modifier {
	return func(pv *Value) {
		pv.v = value
	}
}

// Set sets the named parameter.
func Set(name, value string) Modifier {
	return func(pv *Value) {
		pv.ps[strings.ToLower(name)] = value
	}
}

// Delete removes the named parameter.
func Delete(name string) Modifier {
	return func(pv *Value) {
		delete(pv.ps, strings.ToLower(name))
	}
}

// Modify clones the Value, applies the given changes and returns the result.
//
//	v, _ := param.Parse("multipart/mixed; boundary=abc123")
//	nv := param.Modify(v, param.Change("multipart/alternative"))
func Modify(pv *Value, changes ...Modifier) *Value {
	c := pv.Clone()
	for _, change := range changes {
		change(c)
	}
	return c
}

// Value returns the primary value, the part before the first semicolon.
func (pv *Value) Value() string {
	return pv.v
}

// MediaType is a synonym for Value when used with Content-Type.
func (pv *Value) MediaType() string {
	return pv.v
}

// Disposition is a synonym for Value when used with Content-Disposition.
func (pv *Value) Disposition() string {
	return pv.v
}

// Type returns the part of the media type before the slash, e.g. "image" for
// "image/jpeg".
func (pv *Value) Type() string {
	if ix := strings.IndexRune(pv.v, '/'); ix >= 0 {
		return pv.v[:ix]
	}
	return ""
}

// Subtype returns the part of the media type after the slash, e.g. "jpeg" for
// "image/jpeg".
func (pv *Value) Subtype() string {
	if ix := strings.IndexRune(pv.v, '/'); ix >= 0 {
		return pv.v[ix+1:]
	}
	return ""
}

// Parameters returns the parameter map. Do not modify it.
func (pv *Value) Parameters() map[string]string {
	return pv.ps
}

// Parameter returns the value of the named parameter.
func (pv *Value) Parameter(k string) string {
	return pv.ps[strings.ToLower(k)]
}

// Charset returns the charset parameter.
func (pv *Value) Charset() string {
	return pv.ps[Charset]
}

// Boundary returns the boundary parameter.
func (pv *Value) Boundary() string {
	return pv.ps[Boundary]
}

// Filename returns the filename parameter.
func (pv *Value) Filename() string {
	return pv.ps[Filename]
}

// String serializes the Value. Parameters are written in name order. Values
// are quoted when they contain special characters and encoded per RFC 2231
// when they contain non-ASCII characters.
func (pv *Value) String() string {
	pks := make([]string, 0, len(pv.ps))
	for k := range pv.ps {
		pks = append(pks, k)
	}
	sort.Strings(pks)

	var buf strings.Builder
	buf.WriteString(pv.v)
	for _, k := range pks {
		for _, section := range formatParam(k, pv.ps[k]) {
			buf.WriteString("; ")
			buf.WriteString(section)
		}
	}

	return buf.String()
}

// Bytes returns String as bytes.
func (pv *Value) Bytes() []byte {
	return []byte(pv.String())
}

// Clone returns a deep copy of the Value.
func (pv *Value) Clone() *Value {
	c := &Value{v: pv.v, ps: make(map[string]string, len(pv.ps))}
	for k, v := range pv.ps {
		c.ps[k] = v
	}
	return c
}

// formatParam renders a single parameter, possibly as several RFC 2231
// sections.
func formatParam(k, v string) []string {
	if isASCII(v) {
		if isToken(v) {
			return []string{k + "=" + v}
		}
		return []string{k + "=" + quote(v)}
	}

	enc := percentEncode(v)
	if len(enc) <= maxSectionLength {
		return []string{k + "*=utf-8''" + enc}
	}

	sections := make([]string, 0, len(enc)/maxSectionLength+1)
	for i := 0; len(enc) > 0; i++ {
		n := maxSectionLength
		if n > len(enc) {
			n = len(enc)
		}

		// never split a %XX escape
		if ix := strings.LastIndexByte(enc[:n], '%'); ix >= 0 && ix > n-3 && n < len(enc) {
			n = ix
		}

		prefix := ""
		if i == 0 {
			prefix = "utf-8''"
		}

		sections = append(sections, fmt.Sprintf("%s*%d*=%s%s", k, i, prefix, enc[:n]))
		enc = enc[n:]
	}

	return sections
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < ' ' || s[i] > '~' {
			return false
		}
	}
	return true
}

// isToken reports whether s is an RFC 2045 token.
func isToken(s string) bool {
	if s == "" {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool {
		return r <= ' ' || r > '~' || strings.ContainsRune(`()<>@,;:\"/[]?=`, r)
	}) < 0
}

func quote(s string) string {
	var buf strings.Builder
	buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			buf.WriteByte('\\')
		}
		buf.WriteByte(s[i])
	}
	buf.WriteByte('"')
	return buf.String()
}

// percentEncode encodes everything but RFC 2231 attribute-chars.
func percentEncode(s string) string {
	const hex = "0123456789ABCDEF"
	var buf strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c > ' ' && c < 0x7f && !strings.ContainsRune(`*'%()<>@,;:\"/[]?=`, rune(c)) {
			buf.WriteByte(c)
			continue
		}
		buf.WriteByte('%')
		buf.WriteByte(hex[c>>4])
		buf.WriteByte(hex[c&0x0f])
	}
	return buf.String()
}
