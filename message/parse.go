package message

import (
	"bytes"
	"errors"
	"io"

	"github.com/swiftmailer/swiftmailer-sub001/message/header"
	"github.com/swiftmailer/swiftmailer-sub001/message/transfer"
)

// Defaults for the Parse options.
const (
	// DefaultMaxMultipartDepth is how deep the parser will go into nested
	// multipart parts.
	DefaultMaxMultipartDepth = 10

	// DefaultChunkSize is how much is read at a time while looking for the
	// end of the header.
	DefaultChunkSize = 16_384

	// DefaultMaxHeaderLength is how long the header may be before parsing
	// gives up.
	DefaultMaxHeaderLength = 64 * 1024

	// DefaultMaxPartLength is how long any part of a multipart message may
	// be before parsing gives up.
	DefaultMaxPartLength = 32 * 1024 * 1024
)

// Errors that occur during parsing.
var (
	// ErrNoBoundary is returned by Parse when a multipart Content-Type has no
	// boundary parameter.
	ErrNoBoundary = errors.New("the boundary parameter is missing from Content-Type")

	// ErrLargeHeader is returned by Parse when the header is longer than the
	// WithMaxHeaderLength setting.
	ErrLargeHeader = errors.New("the header exceeds the maximum parse length")

	// ErrLargePart is returned by Parse when a part is longer than the
	// WithMaxPartLength setting.
	ErrLargePart = errors.New("a message part exceeds the maximum parse length")
)

// breaks are the header/body separators recognized, in order of preference.
var breaks = []header.Break{header.CRLF, header.LF, header.CR}

type parser struct {
	maxHeaderLen int
	maxPartLen   int
	maxDepth     int
	chunkSize    int
	decode       bool
}

// ParseOption changes how Parse works.
type ParseOption func(pr *parser)

// WithMaxHeaderLength sets how long the header may be. A value of 0 or less
// means no limit.
func WithMaxHeaderLength(n int) ParseOption {
	return func(pr *parser) { pr.maxHeaderLen = n }
}

// WithMaxPartLength sets how long a part of a multipart message may be. A
// value of 0 or less means no limit.
func WithMaxPartLength(n int) ParseOption {
	return func(pr *parser) { pr.maxPartLen = n }
}

// WithChunkSize sets how many bytes are read at a time while looking for the
// end of the header.
func WithChunkSize(n int) ParseOption {
	return func(pr *parser) { pr.chunkSize = n }
}

// WithMaxDepth sets how many levels of nested multipart parts are parsed. A
// negative value means no limit and 0 means the result is always *Opaque.
func WithMaxDepth(n int) ParseOption {
	return func(pr *parser) { pr.maxDepth = n }
}

// DecodeTransferEncoding makes the readers of leaf parts return their content
// with the Content-Transfer-Encoding decoded. By default the content is left
// as it was, so the message can be written back out unchanged.
func DecodeTransferEncoding() ParseOption {
	return func(pr *parser) { pr.decode = true }
}

// Parse reads a message and returns it as an *Opaque or, if it is a
// multipart message, a *Multipart.
//
// The input is read a chunk at a time until the blank line ending the header
// is found. The line break used there is taken to be the line break of the
// whole message. If the message is not multipart, the rest of the input is
// left unread until the body is read. Otherwise the body is read completely
// and split at the boundaries, and each part is parsed the same way.
//
// Unless DecodeTransferEncoding is given, writing the result with WriteTo
// reproduces the input exactly. If r is an io.ReadSeeker, such as a
// *bytes.Reader, the result may be written any number of times.
//
// When a part fails to parse, the message is returned as an *Opaque holding
// the original body along with the error.
func Parse(r io.Reader, opts ...ParseOption) (Part, error) {
	pr := &parser{
		maxHeaderLen: DefaultMaxHeaderLength,
		maxPartLen:   DefaultMaxPartLength,
		maxDepth:     DefaultMaxMultipartDepth,
		chunkSize:    DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(pr)
	}
	if pr.chunkSize <= 0 {
		pr.chunkSize = DefaultChunkSize
	}

	msg, err := pr.parseOpaque(r, false)
	if err != nil {
		return msg, err
	}

	return pr.parse(msg, 0)
}

// findSplit returns the end of the blank line separating header and body,
// and the line break used, or -1 if there is none. A part may have an empty
// header, in which case the body begins after a single line break.
func findSplit(buf []byte, part bool) (int, header.Break) {
	if part {
		for _, lb := range breaks {
			if bytes.HasPrefix(buf, lb.Bytes()) {
				return len(lb), lb
			}
		}
	}

	pos, found := -1, header.CRLF
	for _, lb := range breaks {
		blank := append(lb.Bytes(), lb.Bytes()...)
		if ix := bytes.Index(buf, blank); ix >= 0 && (pos < 0 || ix+len(blank) < pos) {
			pos, found = ix+len(blank), lb
		}
	}
	return pos, found
}

// readHeader reads until the header is complete. It returns the header bytes
// with the blank line removed, the line break, and a reader for the body.
func (pr *parser) readHeader(r io.Reader, part bool) ([]byte, header.Break, io.Reader, error) {
	var buf bytes.Buffer
	chunk := make([]byte, pr.chunkSize)
	for {
		n, err := r.Read(chunk)
		buf.Write(chunk[:n])

		if pos, lb := findSplit(buf.Bytes(), part); pos >= 0 {
			data := buf.Bytes()
			hdr := data[:pos-len(lb)]

			var body io.Reader
			if _, ok := r.(io.Seeker); ok {
				if _, err := buf.ReadFrom(r); err != nil {
					return nil, lb, nil, err
				}
				body = bytes.NewReader(buf.Bytes()[pos:])
			} else {
				body = newPrefixed(data[pos:], r)
			}
			return hdr, lb, body, nil
		}

		if pr.maxHeaderLen > 0 && buf.Len() > pr.maxHeaderLen {
			return nil, header.CRLF, nil, ErrLargeHeader
		}

		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, header.CRLF, nil, err
		}
	}

	// no blank line, so it is all header
	for _, lb := range breaks {
		if bytes.Contains(buf.Bytes(), lb.Bytes()) {
			return buf.Bytes(), lb, nil, nil
		}
	}
	return buf.Bytes(), header.CRLF, nil, nil
}

func (pr *parser) parseOpaque(r io.Reader, part bool) (*Opaque, error) {
	hdr, lb, body, err := pr.readHeader(r, part)
	if err != nil {
		return nil, err
	}

	h, err := header.Parse(hdr, lb)
	if err != nil {
		return nil, err
	}

	if pr.decode && body != nil {
		body = transfer.ApplyTransferDecoding(h, body)
	}

	return &Opaque{Header: *h, Reader: body, encoded: !pr.decode}, nil
}

// parse turns msg into a *Multipart if it is one.
func (pr *parser) parse(msg *Opaque, depth int) (Part, error) {
	if pr.maxDepth >= 0 && depth >= pr.maxDepth {
		return msg, nil
	}

	pv, err := msg.GetContentType()
	if err != nil || pv.Type() != "multipart" || msg.Reader == nil {
		return msg, nil
	}

	boundary := pv.Boundary()
	if boundary == "" {
		return msg, ErrNoBoundary
	}

	data, err := io.ReadAll(msg.Reader)
	if err != nil {
		return msg, err
	}
	original := func() *Opaque {
		return &Opaque{Header: msg.Header, Reader: bytes.NewReader(data), encoded: msg.encoded}
	}

	prefix, chunks, suffix := splitParts(data, []byte(boundary), msg.Break().Bytes())

	parts := make([]Part, 0, len(chunks))
	for _, c := range chunks {
		if pr.maxPartLen > 0 && len(c) > pr.maxPartLen {
			return original(), ErrLargePart
		}

		op, err := pr.parseOpaque(bytes.NewReader(c), true)
		if err != nil {
			return original(), err
		}

		p, err := pr.parse(op, depth+1)
		if err != nil {
			return original(), err
		}

		parts = append(parts, p)
	}

	return &Multipart{
		Header:   msg.Header,
		boundary: boundary,
		prefix:   prefix,
		suffix:   suffix,
		parts:    parts,
	}, nil
}

// splitParts splits a multipart body into the preamble, the parts, and the
// epilogue. The preamble includes the line break before the first boundary.
// The epilogue includes everything after the closing boundary. A nil
// preamble means the first boundary was missing and a nil epilogue means the
// closing boundary was missing.
func splitParts(data, boundary, lb []byte) (prefix []byte, parts [][]byte, suffix []byte) {
	dash := append([]byte("--"), boundary...)
	first := append(append([]byte{}, dash...), lb...)
	middle := append(append([]byte{}, lb...), first...)
	closing := append(append([]byte{}, lb...), append(dash, '-', '-')...)

	rest := data
	if bytes.HasPrefix(rest, first) {
		prefix = []byte{}
		rest = rest[len(first):]
	} else if ix := bytes.Index(rest, middle); ix >= 0 {
		prefix = rest[:ix+len(lb)]
		rest = rest[ix+len(middle):]
	}

	for {
		mix := bytes.Index(rest, middle)
		cix := bytes.Index(rest, closing)
		if cix >= 0 && (mix < 0 || cix < mix) {
			parts = append(parts, rest[:cix])
			return prefix, parts, rest[cix+len(closing):]
		}
		if mix < 0 {
			return prefix, append(parts, rest), nil
		}

		parts = append(parts, rest[:mix])
		rest = rest[mix+len(middle):]
	}
}
