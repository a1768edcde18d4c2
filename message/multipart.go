package message

import (
	"fmt"
	"io"

	"github.com/swiftmailer/swiftmailer-sub001/message/header"
)

// Part is a node of a message tree: an *Entity being built, or an *Opaque
// or *Multipart returned by Parse.
//
// A branch Part has sub-parts. IsMultipart returns true, GetParts returns
// them, and GetReader returns nil.
//
// A leaf Part has content. IsMultipart returns false, GetParts returns nil,
// and GetReader returns a reader for the content. A leaf may still hold a
// multipart body that was not split into parts.
type Part interface {
	io.WriterTo

	// IsMultipart returns true if this Part is a branch.
	IsMultipart() bool

	// IsEncoded returns true if the reader from GetReader returns the content
	// with its Content-Transfer-Encoding still applied. It is always false
	// for a branch.
	IsEncoded() bool

	// GetHeader returns the header of the Part.
	GetHeader() *header.Header

	// GetReader returns the content of a leaf, or nil.
	GetReader() io.Reader

	// GetParts returns the sub-parts of a branch, or nil.
	GetParts() []Part
}

// Multipart is a parsed multipart message or part.
type Multipart struct {
	header.Header

	boundary string

	// prefix is the preamble before the first boundary, including the line
	// break ending it, and suffix is the epilogue after the closing
	// boundary. A nil prefix means there was no opening boundary and a nil
	// suffix means there was no closing boundary. Both are written back out
	// as they were.
	prefix, suffix []byte

	parts []Part
}

// Boundary returns the boundary the parts are separated by.
func (mm *Multipart) Boundary() string {
	return mm.boundary
}

// WriteTo writes the header and the parts, separated by boundaries, to w.
func (mm *Multipart) WriteTo(w io.Writer) (int64, error) {
	br := mm.Break()

	total, err := mm.Header.WriteTo(w)
	if err != nil {
		return total, err
	}

	n, err := w.Write(mm.prefix)
	total += int64(n)
	if err != nil {
		return total, err
	}

	for i, part := range mm.parts {
		switch {
		case i > 0:
			n, err = fmt.Fprintf(w, "%s--%s%s", br, mm.boundary, br)
		case mm.prefix != nil:
			n, err = fmt.Fprintf(w, "--%s%s", mm.boundary, br)
		default:
			n, err = 0, nil
		}
		total += int64(n)
		if err != nil {
			return total, err
		}

		pn, err := part.WriteTo(w)
		total += pn
		if err != nil {
			return total, err
		}
	}

	if mm.suffix != nil {
		n, err := fmt.Fprintf(w, "%s--%s--", br, mm.boundary)
		total += int64(n)
		if err != nil {
			return total, err
		}

		n, err = w.Write(mm.suffix)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

// IsMultipart always returns true.
func (mm *Multipart) IsMultipart() bool {
	return true
}

// IsEncoded always returns false.
func (mm *Multipart) IsEncoded() bool {
	return false
}

// GetHeader returns the header.
func (mm *Multipart) GetHeader() *header.Header {
	return &mm.Header
}

// GetReader always returns nil.
func (mm *Multipart) GetReader() io.Reader {
	return nil
}

// GetParts returns the sub-parts.
func (mm *Multipart) GetParts() []Part {
	return mm.parts
}
