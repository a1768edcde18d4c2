package header

import (
	"bytes"
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/swiftmailer/swiftmailer-sub001/message/header/field"
)

// ErrIndexOutOfRange is returned when an attempt is made to access a header
// field index that is too large or too small.
var ErrIndexOutOfRange = errors.New("header field index is out of range")

// Break represents the line break to use when working with an email.
type Break string

// Line breaks that may be used with a header. If you don't know what to pick,
// choose CRLF.
const (
	Meh  Break = ""         // Sometimes it doesn't matter
	CRLF Break = "\x0d\x0a" // \r\n - Network linebreak
	LF   Break = "\x0a"     // \n - Unix/Linux/BSD linebreak
	CR   Break = "\x0d"     // \r - Commodores/old Macs linebreak
	LFCR Break = "\x0a\x0d" // \n\r - for weirdos
)

// String returns the break as a string.
func (b Break) String() string {
	return string(b)
}

// Bytes returns the break as a slice of bytes.
func (b Break) Bytes() []byte {
	return []byte(b)
}

// Base is the low-level storage of a header: the fields in insertion order
// plus the settings that control how they are written.
type Base struct {
	lbr     Break
	vf      *field.FoldEncoding
	fields  []*field.Field
	order   map[string]int
	always  map[string]bool
	charset string

	// preserve is set on parsed headers, which are written back out exactly
	// as they were read.
	preserve bool
}

func (h *Base) initBase() {
	if h.fields == nil {
		h.fields = make([]*field.Field, 0, 10)
	}
}

// Break returns the line break used to terminate header fields. It defaults
// to CRLF.
func (h *Base) Break() Break {
	if h.lbr == Meh {
		return CRLF
	}
	return h.lbr
}

// SetBreak changes the line break to use with this header.
func (h *Base) SetBreak(lbr Break) {
	h.lbr = lbr
}

// FoldEncoding returns the folding settings used during rendering.
func (h *Base) FoldEncoding() *field.FoldEncoding {
	if h.vf == nil {
		return field.DefaultFoldEncoding
	}
	return h.vf
}

// SetFoldEncoding changes the folding settings used during rendering.
func (h *Base) SetFoldEncoding(vf *field.FoldEncoding) {
	h.vf = vf
}

// DefineOrdering sets the canonical order in which fields are written. Fields
// named here are written first, in this order. All others follow in the order
// they were added.
func (h *Base) DefineOrdering(names ...string) {
	h.order = make(map[string]int, len(names))
	for i, n := range names {
		h.order[strings.ToLower(n)] = i
	}
}

// SetAlwaysDisplayed names the fields that are written even when their body
// is empty. Any other field with an empty body is left out on output.
func (h *Base) SetAlwaysDisplayed(names ...string) {
	h.always = make(map[string]bool, len(names))
	for _, n := range names {
		h.always[strings.ToLower(n)] = true
	}
}

// IsAlwaysDisplayed returns true if the named field is written even when
// empty.
func (h *Base) IsAlwaysDisplayed(name string) bool {
	return h.always[strings.ToLower(name)]
}

// Charset returns the charset that is applied to fields needing encoding.
func (h *Base) Charset() string {
	return h.charset
}

// Len returns the number of fields in the header.
func (h *Base) Len() int {
	return len(h.fields)
}

// Has returns true if at least one field with the given name is present.
func (h *Base) Has(name string) bool {
	return h.GetFieldNamed(name, 0) != nil
}

// GetField returns the nth field or nil.
func (h *Base) GetField(n int) *field.Field {
	if n < 0 || n >= len(h.fields) {
		return nil
	}
	return h.fields[n]
}

// GetFieldNamed returns the nth (0-indexed) field with the given name or nil.
func (h *Base) GetFieldNamed(name string, n int) *field.Field {
	for _, f := range h.fields {
		if strings.EqualFold(f.Name(), name) {
			if n == 0 {
				return f
			}
			n--
		}
	}
	return nil
}

// GetAllFieldsNamed returns all the fields with the given name.
func (h *Base) GetAllFieldsNamed(name string) []*field.Field {
	fs := make([]*field.Field, 0, 2)
	for _, f := range h.fields {
		if strings.EqualFold(f.Name(), name) {
			fs = append(fs, f)
		}
	}
	return fs
}

// GetIndexesNamed returns the indexes of fields with the given name.
func (h *Base) GetIndexesNamed(name string) []int {
	is := make([]int, 0, 2)
	for i, f := range h.fields {
		if strings.EqualFold(f.Name(), name) {
			is = append(is, i)
		}
	}
	return is
}

// ListFields returns all the fields in insertion order.
func (h *Base) ListFields() []*field.Field {
	return append([]*field.Field(nil), h.fields...)
}

// InsertBeforeField inserts a new field at the given index.
func (h *Base) InsertBeforeField(n int, name, body string) {
	h.InsertField(n, field.New(name, body))
}

// InsertField inserts the given field at index n. The index is clamped to the
// valid range.
func (h *Base) InsertField(n int, f *field.Field) {
	h.initBase()

	if n < 0 {
		n = 0
	}
	if n > len(h.fields) {
		n = len(h.fields)
	}

	if h.charset != "" {
		f.SetCharset(h.charset)
	}

	h.fields = append(h.fields, nil)
	copy(h.fields[n+1:], h.fields[n:])
	h.fields[n] = f
}

// ClearFields removes all fields from the header.
func (h *Base) ClearFields() {
	h.initBase()
	h.fields = h.fields[:0]
}

// DeleteField removes the nth field from the header.
func (h *Base) DeleteField(n int) error {
	if n < 0 || n >= len(h.fields) {
		return ErrIndexOutOfRange
	}

	copy(h.fields[n:], h.fields[n+1:])
	h.fields = h.fields[:len(h.fields)-1]

	return nil
}

// Clone returns a deep copy.
func (h *Base) Clone() *Base {
	c := &Base{
		lbr:      h.lbr,
		vf:       h.vf,
		fields:   make([]*field.Field, len(h.fields)),
		charset:  h.charset,
		preserve: h.preserve,
	}
	for i, f := range h.fields {
		c.fields[i] = f.Clone()
	}
	if h.order != nil {
		c.order = make(map[string]int, len(h.order))
		for k, v := range h.order {
			c.order[k] = v
		}
	}
	if h.always != nil {
		c.always = make(map[string]bool, len(h.always))
		for k, v := range h.always {
			c.always[k] = v
		}
	}
	return c
}

// sorted returns the fields in output order.
func (h *Base) sorted() []*field.Field {
	fs := append([]*field.Field(nil), h.fields...)
	if len(h.order) == 0 {
		return fs
	}

	sort.SliceStable(fs, func(i, j int) bool {
		oi, iok := h.order[strings.ToLower(fs[i].Name())]
		oj, jok := h.order[strings.ToLower(fs[j].Name())]
		switch {
		case iok && jok:
			return oi < oj
		default:
			return iok && !jok
		}
	})

	return fs
}

// isDisplayed returns true if the field should be written.
func (h *Base) isDisplayed(f *field.Field) bool {
	return h.preserve || !f.IsEmpty() || h.IsAlwaysDisplayed(f.Name())
}

// WriteFieldsTo writes the fields, each terminated with a line break, but not
// the blank line that ends the header block. Fields named in omit are skipped.
func (h *Base) WriteFieldsTo(w io.Writer, omit ...string) (int64, error) {
	lbr := h.Break().Bytes()
	vf := h.FoldEncoding()
	if h.preserve {
		vf = field.DoNotFoldEncoding
	}

	fs := h.fields
	if !h.preserve {
		fs = h.sorted()
	}

	total := int64(0)
Fields:
	for _, f := range fs {
		for _, o := range omit {
			if strings.EqualFold(f.Name(), o) {
				continue Fields
			}
		}

		if !h.isDisplayed(f) {
			continue
		}

		n, err := vf.Fold(w, f.Bytes(), lbr)
		total += n
		if err != nil {
			return total, err
		}

		bn, err := w.Write(lbr)
		total += int64(bn)
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

// WriteTo writes the complete header block, including the blank line that
// ends it.
func (h *Base) WriteTo(w io.Writer) (int64, error) {
	total, err := h.WriteFieldsTo(w)
	if err != nil {
		return total, err
	}

	n, err := w.Write(h.Break().Bytes())
	total += int64(n)
	return total, err
}

// Bytes returns the complete header block.
func (h *Base) Bytes() []byte {
	var buf bytes.Buffer
	_, _ = h.WriteTo(&buf)
	return buf.Bytes()
}

// String returns the complete header block.
func (h *Base) String() string {
	return string(h.Bytes())
}
