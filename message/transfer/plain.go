package transfer

import (
	"io"
)

// PlainEncoder passes content through untransformed under the 7bit, 8bit, or
// binary names. Long lines are word wrapped at whitespace.
//
// In canonical mode, line breaks are normalized: CRLF is one break and every
// other CR or LF is a break of its own, each written as CRLF. Without
// canonical mode, only CRLF is treated as a line break.
type PlainEncoder struct {
	name      string
	canonical bool
}

// NewPlainEncoder returns a passthrough encoder with the given
// Content-Transfer-Encoding name.
func NewPlainEncoder(name string, canonical bool) *PlainEncoder {
	return &PlainEncoder{name: name, canonical: canonical}
}

// Name returns the encoding name given at construction.
func (e *PlainEncoder) Name() string {
	return e.name
}

// IsCanonical returns true if line breaks are normalized.
func (e *PlainEncoder) IsCanonical() bool {
	return e.canonical
}

// NewWriter returns a writer that word wraps content to maxLineLength. The
// firstLineOffset is ignored. A maxLineLength of 0 or less turns wrapping off,
// as does the binary encoding name.
func (e *PlainEncoder) NewWriter(w io.Writer, firstLineOffset, maxLineLength int) io.WriteCloser {
	if e.name == Binary {
		maxLineLength = 0
	}
	return &plainWriter{
		w:         w,
		maxLen:    maxLineLength,
		canonical: e.canonical,
	}
}

// Encode returns b with line breaks fixed and long lines wrapped.
func (e *PlainEncoder) Encode(b []byte, firstLineOffset, maxLineLength int) []byte {
	return encode(e, b, firstLineOffset, maxLineLength)
}

// EncodeTo copies r to w with line breaks fixed and long lines wrapped.
func (e *PlainEncoder) EncodeTo(w io.Writer, r io.Reader, firstLineOffset, maxLineLength int) (int64, error) {
	return encodeTo(e, w, r, firstLineOffset, maxLineLength)
}

// plainWriter collects one source line at a time and writes it wrapped, with
// a CRLF after every line but the last.
type plainWriter struct {
	w         io.Writer
	maxLen    int
	canonical bool

	line []byte
	cr   bool
}

func (p *plainWriter) Write(b []byte) (int, error) {
	for _, c := range b {
		switch {
		case c == '\r':
			if p.cr {
				if p.canonical {
					if err := p.endLine(); err != nil {
						return 0, err
					}
				} else {
					p.line = append(p.line, '\r')
				}
			}
			p.cr = true
			continue

		case c == '\n' && (p.cr || p.canonical):
			p.cr = false
			if err := p.endLine(); err != nil {
				return 0, err
			}
			continue
		}

		if p.cr {
			p.cr = false
			if p.canonical {
				if err := p.endLine(); err != nil {
					return 0, err
				}
			} else {
				p.line = append(p.line, '\r')
			}
		}

		p.line = append(p.line, c)
	}

	return len(b), nil
}

// Close writes the final line, without a line break.
func (p *plainWriter) Close() error {
	if p.cr {
		p.cr = false
		if p.canonical {
			if err := p.endLine(); err != nil {
				return err
			}
		} else {
			p.line = append(p.line, '\r')
		}
	}

	return p.writeLine()
}

func (p *plainWriter) endLine() error {
	if err := p.writeLine(); err != nil {
		return err
	}
	_, err := p.w.Write(crlf)
	return err
}

// writeLine writes the current line split into chunks that each end just
// after a whitespace character. A new line is started before any chunk that
// would push a non-empty line past the maximum. A single chunk longer than
// the maximum is never broken.
func (p *plainWriter) writeLine() error {
	line := p.line
	p.line = p.line[:0]

	if p.maxLen <= 0 {
		_, err := p.w.Write(line)
		return err
	}

	cur := 0
	for len(line) > 0 {
		end := len(line)
		for i, c := range line {
			if isSpace(c) {
				end = i + 1
				break
			}
		}
		chunk := line[:end]

		if cur > 0 && cur+len(chunk) > p.maxLen {
			if _, err := p.w.Write(crlf); err != nil {
				return err
			}
			cur = 0
		}

		if _, err := p.w.Write(chunk); err != nil {
			return err
		}
		cur += len(chunk)
		line = line[end:]
	}

	return nil
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}
