package header

import (
	"errors"

	"github.com/swiftmailer/swiftmailer-sub001/message/header/field"
)

// Parse parses a header block using the given line break. The whole input is
// taken to be the header.
//
// The result writes every field back out byte-for-byte as it was read. Any
// field that gets modified is written in the normal way.
func Parse(m []byte, lb Break) (*Header, error) {
	lines, err := field.ParseLines(m, lb.Bytes())

	var badStartErr *field.BadStartError
	var finalErr error
	if errors.As(err, &badStartErr) {
		finalErr = badStartErr
	} else if err != nil {
		return nil, err
	}

	fields := make([]*field.Field, len(lines))
	for i, line := range lines {
		fields[i] = field.Parse(line, lb.Bytes())
	}

	h := &Header{
		Base: Base{
			lbr:      lb,
			vf:       field.DoNotFoldEncoding,
			fields:   fields,
			preserve: true,
		},
	}

	return h, finalErr
}
