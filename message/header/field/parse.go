package field

import (
	"bytes"
)

// BadStartError is returned when the header begins with junk text that does not
// appear to be a header. This text is preserved in the error object.
type BadStartError struct {
	BadStart []byte // the text skipped at the start of header
}

// Error returns the error message.
func (err *BadStartError) Error() string {
	return "header starts with text that does not appear to be a header"
}

// Line is the unparsed content of one complete header field, continuation
// lines included.
type Line []byte

// Lines is a list of unparsed header fields.
type Lines []Line

// ParseLines splits a header block into field lines. A line that starts with a
// space or tab, or that contains no colon, continues the previous field.
// Leading lines of that kind have no field to belong to: they are skipped and
// reported through a BadStartError, while the rest of the header is still
// returned.
func ParseLines(m, lb []byte) (Lines, error) {
	h := make(Lines, 0, len(m)/80+1)
	var err *BadStartError
	for _, line := range bytes.SplitAfter(m, lb) {
		if len(line) == 0 {
			break
		}

		continuation := line[0] == '\t' || line[0] == ' ' || !bytes.Contains(line, []byte(":"))
		switch {
		case continuation && len(h) == 0:
			if err == nil {
				err = &BadStartError{}
			}
			err.BadStart = append(err.BadStart, line...)
		case continuation:
			h[len(h)-1] = append(h[len(h)-1], line...)
		default:
			h = append(h, line)
		}
	}

	if err != nil {
		return h, err
	}
	return h, nil
}

// Parse builds a Field from a single field line. The body is unfolded and any
// encoded-words in it are decoded. The original bytes are kept so the field
// can be written back out unchanged.
func Parse(f Line, lb []byte) *Field {
	rawField := bytes.TrimSuffix(f, lb)

	off := 1
	ix := bytes.IndexByte(rawField, ':')
	if ix < 0 {
		ix = len(rawField)
		off = 0
	}

	name := string(DefaultFoldEncoding.Unfold(rawField[:ix]))
	body := string(bytes.TrimSpace(DefaultFoldEncoding.Unfold(rawField[ix+off:])))
	if decBody, err := Decode(body); err == nil {
		body = decBody
	}

	return &Field{
		name: name,
		body: body,
		raw:  append([]byte(nil), rawField...),
	}
}
