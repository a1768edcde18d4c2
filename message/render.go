package message

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/swiftmailer/swiftmailer-sub001/message/header"
	"github.com/swiftmailer/swiftmailer-sub001/message/transfer"
)

// WriteTo renders the entity and all of its children to w in wire format.
//
// If the entity has children and also has a body of its own, the body is
// rendered as an extra leaf part placed among the children as though it had
// been added with SetChildren. The entity itself is left as it was.
func (e *Entity) WriteTo(w io.Writer) (int64, error) {
	if len(e.immediate) > 0 && e.HasBody() {
		tmp, err := e.withBodyPart()
		if err != nil {
			return 0, err
		}
		return tmp.writeTo(w)
	}

	return e.writeTo(w)
}

// Bytes returns the rendered entity.
func (e *Entity) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := e.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// String returns the rendered entity. Any error while rendering is written in
// place of the output.
func (e *Entity) String() string {
	b, err := e.Bytes()
	if err != nil {
		return fmt.Sprintf("!ERROR(%v)", err)
	}
	return string(b)
}

// isIdentity returns true for the transfer encodings allowed on a multipart
// entity.
func isIdentity(cte string) bool {
	switch strings.ToLower(cte) {
	case transfer.Bit7, transfer.Bit8, transfer.Binary:
		return true
	}
	return false
}

func (e *Entity) writeTo(w io.Writer) (int64, error) {
	var omit []string
	if len(e.immediate) > 0 {
		if cte, err := e.header.GetTransferEncoding(); err == nil && !isIdentity(cte) {
			omit = append(omit, header.ContentTransferEncoding)
		}
	}

	total, err := e.header.WriteFieldsTo(w, omit...)
	if err != nil {
		return total, err
	}

	if len(e.immediate) == 0 {
		if !e.HasBody() {
			return total, nil
		}

		n, err := w.Write(crlf)
		total += int64(n)
		if err != nil {
			return total, err
		}

		bn, err := e.writeBody(w)
		total += bn
		return total, err
	}

	boundary := e.Boundary()
	for _, c := range e.immediate {
		n, err := fmt.Fprintf(w, "\r\n--%s\r\n", boundary)
		total += int64(n)
		if err != nil {
			return total, err
		}

		cn, err := c.WriteTo(w)
		total += cn
		if err != nil {
			return total, err
		}
	}

	n, err := fmt.Fprintf(w, "\r\n--%s--\r\n", boundary)
	total += int64(n)
	return total, err
}

var crlf = []byte("\r\n")

// writeBody writes the body through the content encoder.
func (e *Entity) writeBody(w io.Writer) (int64, error) {
	if s, ok := e.bodyReader.(io.ReadSeeker); ok {
		if _, err := s.Seek(0, io.SeekStart); err != nil {
			return 0, err
		}
		return e.encoder.EncodeTo(w, s, 0, e.maxLineLength)
	}

	if err := e.cacheBody(); err != nil {
		return 0, err
	}

	n, err := w.Write(e.encoder.Encode(e.body, 0, e.maxLineLength))
	return int64(n), err
}

// topLevel returns the deepest level found among this entity and its
// immediate descendants.
func (e *Entity) topLevel() Level {
	l := e.level
	for _, c := range e.immediate {
		if cl := c.topLevel(); cl > l {
			l = cl
		}
	}
	return l
}

// withBodyPart returns a copy of the entity in which its own body has been
// moved into a new leaf part at the deepest level of the tree. The copy is
// only used for rendering. The boundaries of any synthetic entities are
// remembered, so every rendering is the same.
func (e *Entity) withBodyPart() (*Entity, error) {
	if err := e.cacheBody(); err != nil {
		return nil, err
	}
	e.Boundary()

	mt := e.userContentType
	if mt == "" {
		mt = "text/plain"
	}

	h := &header.Header{}
	h.DefineOrdering(header.ContentType, header.ContentTransferEncoding)
	h.ObserveChange(header.FieldChange{Kind: header.CharsetChanged, Value: e.header.Charset()})
	h.SetMediaType(mt)
	h.SetTransferEncoding(e.encoder.Name())

	part := &Entity{
		cfg:             e.cfg,
		header:          h,
		encoder:         e.encoder,
		body:            e.body,
		bodyReader:      e.bodyReader,
		level:           e.topLevel(),
		maxLineLength:   e.maxLineLength,
		idField:         header.ContentID,
		userContentType: mt,
		charset:         e.charset,
		format:          e.format,
		delSp:           e.delSp,
	}
	part.fixHeaders()

	tmp := *e
	tmp.header = e.header.Clone()
	tmp.body, tmp.bodyReader = nil, nil

	used := 0
	nextBoundary := func() string {
		if used == len(e.renderBoundaries) {
			e.renderBoundaries = append(e.renderBoundaries, "_=_swift_"+e.cfg.newToken()+"_=_")
		}
		b := e.renderBoundaries[used]
		used++
		return b
	}

	tmp.setChildren(append([]*Entity{part}, e.children...), nextBoundary)
	return &tmp, nil
}
