package transfer_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swiftmailer/swiftmailer-sub001/message/header"
	"github.com/swiftmailer/swiftmailer-sub001/message/transfer"
)

var qpEnc = []byte("=3D>?")
var qpDec = []byte{0x3d, 0x3e, 0x3f}

func TestNewQuotedPrintableDecoder(t *testing.T) {
	t.Parallel()

	r := bytes.NewReader(qpEnc)
	qpdr := transfer.NewQuotedPrintableDecoder(r)
	db, err := io.ReadAll(qpdr)
	assert.NoError(t, err)
	assert.Equal(t, qpDec, db)
}

func TestQuotedPrintableEncoder_Encode(t *testing.T) {
	t.Parallel()

	a72 := strings.Repeat("a", 72)

	tests := []struct {
		name   string
		in     string
		offset int
		out    string
	}{
		{"escapes equals", string(qpDec), 0, string(qpEnc)},
		{"inner space", "a b\tc", 0, "a b\tc"},
		{"space before break", "a \r\nb", 0, "a=20\r\nb"},
		{"tab at end", "a\t", 0, "a=09"},
		{"controls", "a\x00\x7f", 0, "a=00=7F"},
		{"line breaks", "a\nb\rc\r\nd", 0, "a\r\nb\r\nc\r\nd"},
		{"double breaks", "a\n\nb\r\rc", 0, "a\r\n\r\nb\r\n\r\nc"},
		{"soft break", strings.Repeat("a", 100), 0, strings.Repeat("a", 75) + "=\r\n" + strings.Repeat("a", 25)},
		{"offset", strings.Repeat("a", 100), 10, strings.Repeat("a", 65) + "=\r\n" + strings.Repeat("a", 35)},
		{"multibyte kept whole", a72 + "é", 0, a72 + "=\r\n=C3=A9"},
	}

	e := transfer.NewQuotedPrintableEncoder(header.DefaultCharset)
	for _, tt := range tests {
		assert.Equal(t, tt.out, string(e.Encode([]byte(tt.in), tt.offset, 76)), tt.name)
	}
}

func TestQuotedPrintableEncoder_LineLength(t *testing.T) {
	t.Parallel()

	in := strings.Repeat("Ça a été très = différent. \t", 20) + "\r\n" + strings.Repeat("x ", 60)

	e := transfer.NewQuotedPrintableEncoder(header.DefaultCharset)
	out := e.Encode([]byte(in), 0, 76)

	for _, l := range strings.Split(string(out), "\r\n") {
		assert.LessOrEqual(t, len(l), 76)
		assert.False(t, strings.HasSuffix(l, " "), "no line ends in a space")
	}

	dec, err := io.ReadAll(transfer.NewQuotedPrintableDecoder(bytes.NewReader(out)))
	require.NoError(t, err)
	assert.Equal(t, in, string(dec))
}

func TestQuotedPrintableEncoder_Streaming(t *testing.T) {
	t.Parallel()

	e := transfer.NewQuotedPrintableEncoder(header.DefaultCharset)

	w := &bytes.Buffer{}
	qw := e.NewWriter(w, 0, 76)
	for _, b := range []byte("é \r\n") {
		n, err := qw.Write([]byte{b})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}
	require.NoError(t, qw.Close())

	assert.Equal(t, "=C3=A9=20\r\n", w.String())
}

func TestQuotedPrintableEncoder_DotEscape(t *testing.T) {
	t.Parallel()

	e := transfer.NewQuotedPrintableEncoder(header.DefaultCharset)
	assert.Equal(t, ".a.", string(e.Encode([]byte(".a."), 0, 76)))

	e.SetDotEscape(true)
	assert.Equal(t, "=2Ea=2E", string(e.Encode([]byte(".a."), 0, 76)))
}

func TestQuotedPrintableEncoder_ObserveChange(t *testing.T) {
	t.Parallel()

	a72 := strings.Repeat("a", 72)
	in := []byte(a72 + "\xA4\x40")

	e := transfer.NewQuotedPrintableEncoder("iso-8859-1")
	assert.Equal(t, a72+"=A4=\r\n@", string(e.Encode(in, 0, 76)))

	var os header.Observers
	os.Observe(e)
	os.Notify(header.FieldChange{Kind: header.CharsetChanged, Value: "big5"})

	assert.Equal(t, "big5", e.Charset())
	assert.Equal(t, a72+"=\r\n=A4@", string(e.Encode(in, 0, 76)))
}
