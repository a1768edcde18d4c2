package transfer

import (
	"bytes"
	"io"
	"strings"

	"github.com/swiftmailer/swiftmailer-sub001/message/header"
)

const (
	None            = ""                 // bytes will be left as-is
	Bit7            = "7bit"             // bytes will be left as-is
	Bit8            = "8bit"             // bytes will be left as-is
	Binary          = "binary"           // bytes will be left as-is
	QuotedPrintable = "quoted-printable" // bytes will be transformed between quoted-printable and binary data
	Base64          = "base64"           // bytes will be transformed between base64 and binary data
)

// MaxEncodedLineLength is the longest line permitted in base64 and
// quoted-printable output.
const MaxEncodedLineLength = 76

var crlf = []byte("\r\n")

// Encoder transforms content into the form named by a
// Content-Transfer-Encoding.
//
// The firstLineOffset is the number of characters already present on the
// first output line, which shortens that line. The maxLineLength is the
// longest line the encoder may produce. Encoders never add a line break after
// the final line.
type Encoder interface {
	// Name is the Content-Transfer-Encoding value this encoder produces.
	Name() string

	// NewWriter returns an io.WriteCloser that encodes everything written to
	// it and writes the result to w. Close must be called to flush the final
	// line. It does not close w.
	NewWriter(w io.Writer, firstLineOffset, maxLineLength int) io.WriteCloser

	// Encode returns the encoded form of b.
	Encode(b []byte, firstLineOffset, maxLineLength int) []byte

	// EncodeTo reads r to the end and writes the encoded form to w, returning
	// the number of bytes written to w.
	EncodeTo(w io.Writer, r io.Reader, firstLineOffset, maxLineLength int) (int64, error)
}

// writer is an internal type to make as-is writers work properly.
type writer struct {
	io.Writer
	performClose bool
}

// Close will close the nested writer if performClose is true.
func (w *writer) Close() error {
	if c, isCloser := w.Writer.(io.Closer); w.performClose && isCloser {
		return c.Close()
	}
	return nil
}

// countWriter counts the bytes passed through to the nested writer.
type countWriter struct {
	w io.Writer
	n int64
}

func (cw *countWriter) Write(b []byte) (int, error) {
	n, err := cw.w.Write(b)
	cw.n += int64(n)
	return n, err
}

// encode is the shared implementation of Encoder.Encode.
func encode(e Encoder, b []byte, firstLineOffset, maxLineLength int) []byte {
	var buf bytes.Buffer
	ew := e.NewWriter(&buf, firstLineOffset, maxLineLength)
	_, _ = ew.Write(b)
	_ = ew.Close()
	return buf.Bytes()
}

// encodeTo is the shared implementation of Encoder.EncodeTo.
func encodeTo(
	e Encoder,
	w io.Writer,
	r io.Reader,
	firstLineOffset,
	maxLineLength int,
) (int64, error) {
	cw := &countWriter{w: w}
	ew := e.NewWriter(cw, firstLineOffset, maxLineLength)
	if _, err := io.Copy(ew, r); err != nil {
		return cw.n, err
	}
	err := ew.Close()
	return cw.n, err
}

// clampEncodedLineLength returns a line length that base64 and
// quoted-printable can honor.
func clampEncodedLineLength(maxLineLength int) int {
	if maxLineLength <= 0 || maxLineLength > MaxEncodedLineLength {
		return MaxEncodedLineLength
	}
	return maxLineLength
}

// ForName returns a new encoder for the named Content-Transfer-Encoding. The
// name is matched case-insensitively. It returns false if the name is not
// recognized.
func ForName(name string) (Encoder, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case Base64:
		return NewBase64Encoder(), true
	case QuotedPrintable:
		return NewQuotedPrintableEncoder(header.DefaultCharset), true
	case Bit7:
		return NewPlainEncoder(Bit7, true), true
	case Bit8:
		return NewPlainEncoder(Bit8, true), true
	case Binary:
		return NewPlainEncoder(Binary, false), true
	}
	return nil, false
}

// Transcoding is a pair of functions that can be used to transform to and from
// a transfer encoding.
type Transcoding struct {
	// Encoder returns an io.WriteCloser, which will encode binary data and
	// write the encoded form to the given io.Writer. You must call Close() on
	// the returned io.WriteCloser when you are finished.
	Encoder func(io.Writer) io.WriteCloser

	// Decoder returns an io.Reader, which will read from the given io.Reader
	// when read and decode the encoded data back into binary form the encoded
	// form.
	Decoder func(io.Reader) io.Reader
}

func newAsIsEncoder(w io.Writer) io.WriteCloser { return &writer{w, false} }
func newAsIsDecoder(r io.Reader) io.Reader      { return r }

// AsIsTranscoder is just a shortcut to a no-op encoder/decoder.
var AsIsTranscoder = Transcoding{newAsIsEncoder, newAsIsDecoder}

// Transcodings defines the supported Content-transfer-encodings and how to
// handle them. It can be modified to change the global handling of transfer
// encodings.
var Transcodings = map[string]Transcoding{
	None:   AsIsTranscoder,
	Bit7:   AsIsTranscoder,
	Bit8:   AsIsTranscoder,
	Binary: AsIsTranscoder,
	QuotedPrintable: {
		func(w io.Writer) io.WriteCloser {
			return NewQuotedPrintableEncoder(header.DefaultCharset).NewWriter(w, 0, MaxEncodedLineLength)
		},
		NewQuotedPrintableDecoder,
	},
	Base64: {
		func(w io.Writer) io.WriteCloser {
			return NewBase64Encoder().NewWriter(w, 0, MaxEncodedLineLength)
		},
		NewBase64Decoder,
	},
}

// ApplyTransferEncoding is a helper that will check the given header to see if
// transfer encoding ought to be performed. It will return an io.WriteCloser
// that will write the encoding (or just pass data through if no encoding is
// necessary).
//
// You must call Close() on the returned io.WriteCloser when you are finished
// writing.
func ApplyTransferEncoding(h *header.Header, w io.Writer) io.WriteCloser {
	cte, err := h.GetTransferEncoding()
	if err != nil {
		return &writer{w, false}
	}

	tc, hasCode := Transcodings[cte]
	if hasCode {
		return tc.Encoder(w)
	}

	return &writer{w, false}
}

// ApplyTransferDecoding returns an io.Reader that will modify incoming bytes
// according to the transfer encoding detected from the given header. (Or the
// io.Reader will leave the bytes as is if there's no transfer encoding or the
// transfer encoding is one that is interpreted as-is).
func ApplyTransferDecoding(h *header.Header, r io.Reader) io.Reader {
	// multipart content is never transfer encoded as a whole
	ct, err := h.GetContentType()
	if err == nil && ct != nil && ct.Type() == "multipart" {
		return r
	}

	cte, err := h.GetTransferEncoding()
	if err != nil {
		return r
	}

	tc, hasCode := Transcodings[cte]
	if hasCode {
		return tc.Decoder(r)
	}

	return r
}
