package message

import (
	"bytes"
	"io"
)

// prefixed reads the body bytes that were read along with the header, then
// the rest of the source.
type prefixed struct {
	io.Reader
	src io.Reader
}

func newPrefixed(prefix []byte, src io.Reader) *prefixed {
	return &prefixed{
		Reader: io.MultiReader(bytes.NewReader(prefix), src),
		src:    src,
	}
}

// Close closes the source if it is an io.Closer.
func (p *prefixed) Close() error {
	if c, ok := p.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
