package transfer_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swiftmailer/swiftmailer-sub001/message/transfer"
)

func TestPlainEncoder_Canonical(t *testing.T) {
	t.Parallel()

	e := transfer.NewPlainEncoder(transfer.Bit8, true)

	assert.Equal(t, "a\r\nb\r\nc\r\nd", string(e.Encode([]byte("a\nb\rc\r\nd"), 0, 78)))
	assert.Equal(t, "a\r\n\r\nb\r\n\r\nc\r\n\r\nd", string(e.Encode([]byte("a\n\rb\r\rc\n\nd"), 0, 78)))
	assert.Equal(t, "abc\r\n", string(e.Encode([]byte("abc\n"), 0, 78)))
	assert.Equal(t, "abc\r\n", string(e.Encode([]byte("abc\r"), 0, 78)))
}

func TestPlainEncoder_NotCanonical(t *testing.T) {
	t.Parallel()

	e := transfer.NewPlainEncoder(transfer.Bit7, false)

	assert.Equal(t, "a\nb\r\nc\rd", string(e.Encode([]byte("a\nb\r\nc\rd"), 0, 78)))
	assert.Equal(t, "a\r\r\n", string(e.Encode([]byte("a\r\r\n"), 0, 78)))
}

func TestPlainEncoder_Wrap(t *testing.T) {
	t.Parallel()

	e := transfer.NewPlainEncoder(transfer.Bit7, true)

	assert.Equal(t, "the quick \r\nbrown fox", string(e.Encode([]byte("the quick brown fox"), 0, 10)))
	assert.Equal(t, "the quick brown fox", string(e.Encode([]byte("the quick brown fox"), 0, 0)))

	long := strings.Repeat("x", 30)
	assert.Equal(t, "a \r\n"+long+" \r\nb", string(e.Encode([]byte("a "+long+" b"), 0, 10)),
		"words longer than the line are left whole")

	assert.Equal(t, "one two\r\nthree", string(e.Encode([]byte("one two\nthree"), 0, 10)))
}

func TestPlainEncoder_Binary(t *testing.T) {
	t.Parallel()

	e, ok := transfer.ForName(transfer.Binary)
	require.True(t, ok)

	in := []byte("the quick brown fox\njumps\r")
	assert.Equal(t, in, e.Encode(in, 0, 5))
}

func TestPlainEncoder_EncodeTo(t *testing.T) {
	t.Parallel()

	e := transfer.NewPlainEncoder(transfer.Bit8, true)

	w := &bytes.Buffer{}
	n, err := e.EncodeTo(w, strings.NewReader("héllo\nwörld"), 0, 78)
	require.NoError(t, err)
	assert.Equal(t, "héllo\r\nwörld", w.String())
	assert.Equal(t, int64(w.Len()), n)
}
