package transfer

import (
	"encoding/base64"
	"io"
)

// lineWrapper breaks the output into lines of at most every bytes. A break is
// only written when more output follows, so the final line is never
// terminated.
type lineWrapper struct {
	every int
	acc   int
	lbr   []byte
	w     io.Writer
}

func (lw *lineWrapper) Write(b []byte) (int, error) {
	n := 0
	for len(b) > 0 {
		if lw.acc >= lw.every {
			if _, err := lw.w.Write(lw.lbr); err != nil {
				return n, err
			}
			lw.acc = 0
		}

		room := lw.every - lw.acc
		if room > len(b) {
			room = len(b)
		}

		wn, err := lw.w.Write(b[:room])
		n += wn
		lw.acc += wn
		if err != nil {
			return n, err
		}

		b = b[room:]
	}

	return n, nil
}

// Base64Encoder encodes content as base64 in lines of at most 76 characters
// separated by CRLF.
type Base64Encoder struct{}

// NewBase64Encoder returns a base64 content encoder.
func NewBase64Encoder() *Base64Encoder {
	return &Base64Encoder{}
}

// Name returns "base64".
func (e *Base64Encoder) Name() string {
	return Base64
}

// NewWriter returns a writer that base64 encodes everything written to it. A
// maxLineLength outside of 1 to 76 means 76. If the firstLineOffset fills the
// whole first line, the output begins with a line break.
func (e *Base64Encoder) NewWriter(w io.Writer, firstLineOffset, maxLineLength int) io.WriteCloser {
	if firstLineOffset < 0 {
		firstLineOffset = 0
	}

	return &writer{
		base64.NewEncoder(base64.StdEncoding, &lineWrapper{
			every: clampEncodedLineLength(maxLineLength),
			acc:   firstLineOffset,
			lbr:   crlf,
			w:     w,
		}), true,
	}
}

// Encode returns b encoded as base64.
func (e *Base64Encoder) Encode(b []byte, firstLineOffset, maxLineLength int) []byte {
	return encode(e, b, firstLineOffset, maxLineLength)
}

// EncodeTo base64 encodes everything read from r to w.
func (e *Base64Encoder) EncodeTo(w io.Writer, r io.Reader, firstLineOffset, maxLineLength int) (int64, error) {
	return encodeTo(e, w, r, firstLineOffset, maxLineLength)
}

// NewBase64Decoder will translate all bytes read from the given io.Reader as
// base64 and return the binary data to the returned io.Reader. Line breaks in
// the input are ignored.
func NewBase64Decoder(r io.Reader) io.Reader {
	return base64.NewDecoder(base64.StdEncoding, r)
}
