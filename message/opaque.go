package message

import (
	"io"

	"github.com/swiftmailer/swiftmailer-sub001/message/header"
	"github.com/swiftmailer/swiftmailer-sub001/message/transfer"
)

// Opaque is a message or part kept as a header and an unparsed body. Parse
// returns these for every leaf and for any message it does not split into
// parts.
type Opaque struct {
	header.Header

	// Reader holds the body. It is nil when there is no body.
	io.Reader

	// encoded is true when Reader returns the body with its
	// Content-Transfer-Encoding still applied
	encoded bool
}

// NewOpaque returns an Opaque with the given header and a body that has not
// been transfer encoded yet. The body is encoded while it is written.
func NewOpaque(h *header.Header, body io.Reader) *Opaque {
	return &Opaque{Header: *h, Reader: body}
}

// WriteTo writes the header and body to w. A body that is not encoded yet is
// encoded as it is written, per its Content-Transfer-Encoding.
//
// If the body reader is an io.Seeker, it is rewound first, so the message may
// be written more than once. Otherwise the body is consumed.
func (m *Opaque) WriteTo(w io.Writer) (int64, error) {
	total, err := m.Header.WriteTo(w)
	if err != nil || m.Reader == nil {
		return total, err
	}

	if s, ok := m.Reader.(io.Seeker); ok {
		if _, err := s.Seek(0, io.SeekStart); err != nil {
			return total, err
		}
	}

	if m.encoded {
		n, err := io.Copy(w, m.Reader)
		return total + n, err
	}

	cw := &countingWriter{w: w}
	tw := transfer.ApplyTransferEncoding(&m.Header, cw)
	if _, err := io.Copy(tw, m.Reader); err != nil {
		return total + cw.n, err
	}
	err = tw.Close()
	return total + cw.n, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// IsMultipart always returns false.
func (m *Opaque) IsMultipart() bool {
	return false
}

// IsEncoded returns true if the body reader returns the content with its
// Content-Transfer-Encoding still applied.
func (m *Opaque) IsEncoded() bool {
	return m.encoded
}

// GetHeader returns the header.
func (m *Opaque) GetHeader() *header.Header {
	return &m.Header
}

// GetReader returns the body reader.
func (m *Opaque) GetReader() io.Reader {
	return m.Reader
}

// GetParts always returns nil.
func (m *Opaque) GetParts() []Part {
	return nil
}
