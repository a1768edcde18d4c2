package message_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swiftmailer/swiftmailer-sub001/message"
	"github.com/swiftmailer/swiftmailer-sub001/message/transfer"
)

const badlyFolded = "Subject: a subject\r\n" +
	"X-Folded: starts here\r\n" +
	"\tand carries on\r\n" +
	"  with odd indents\r\n" +
	"To: someone@example.com\r\n" +
	"\r\n" +
	"The body.\r\n"

func TestParse_RoundTrip(t *testing.T) {
	t.Parallel()

	m, err := message.Parse(strings.NewReader(badlyFolded))
	require.NoError(t, err)
	assert.False(t, m.IsMultipart())

	buf := &bytes.Buffer{}
	n, err := m.WriteTo(buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(badlyFolded)), n)
	assert.Equal(t, badlyFolded, buf.String())
}

const multipartLF = "Content-Type: multipart/mixed; boundary=outer\n" +
	"\n" +
	"This is a preamble.\n" +
	"--outer\n" +
	"Content-Type: text/plain\n" +
	"Content-Transfer-Encoding: base64\n" +
	"\n" +
	"aGVsbG8=\n" +
	"--outer\n" +
	"\n" +
	"no header here\n" +
	"--outer--\n" +
	"epilogue\n"

func TestParse_Multipart(t *testing.T) {
	t.Parallel()

	m, err := message.Parse(strings.NewReader(multipartLF))
	require.NoError(t, err)
	require.True(t, m.IsMultipart())

	mm, ok := m.(*message.Multipart)
	require.True(t, ok)
	assert.Equal(t, "outer", mm.Boundary())
	assert.Nil(t, mm.GetReader())

	ps := mm.GetParts()
	require.Len(t, ps, 2)
	assert.True(t, ps[0].IsEncoded())

	b, err := io.ReadAll(ps[0].GetReader())
	require.NoError(t, err)
	assert.Equal(t, "aGVsbG8=", string(b))

	b, err = io.ReadAll(ps[1].GetReader())
	require.NoError(t, err)
	assert.Equal(t, "no header here", string(b))

	buf := &bytes.Buffer{}
	_, err = m.WriteTo(buf)
	require.NoError(t, err)
	assert.Equal(t, multipartLF, buf.String())
}

func TestParse_DecodeTransferEncoding(t *testing.T) {
	t.Parallel()

	m, err := message.Parse(strings.NewReader(multipartLF), message.DecodeTransferEncoding())
	require.NoError(t, err)

	p := m.GetParts()[0]
	assert.False(t, p.IsEncoded())

	b, err := io.ReadAll(p.GetReader())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))
}

func TestParse_WithMaxDepth(t *testing.T) {
	t.Parallel()

	m, err := message.Parse(strings.NewReader(multipartLF), message.WithMaxDepth(0))
	require.NoError(t, err)
	assert.IsType(t, &message.Opaque{}, m)

	buf := &bytes.Buffer{}
	_, err = m.WriteTo(buf)
	require.NoError(t, err)
	assert.Equal(t, multipartLF, buf.String())
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	_, err := message.Parse(strings.NewReader("Content-Type: multipart/mixed\n\nbody\n"))
	assert.ErrorIs(t, err, message.ErrNoBoundary)

	long := "Subject: " + strings.Repeat("x", 100) + "\r\n\r\n"
	_, err = message.Parse(strings.NewReader(long), message.WithMaxHeaderLength(50), message.WithChunkSize(10))
	assert.ErrorIs(t, err, message.ErrLargeHeader)

	m, err := message.Parse(strings.NewReader(multipartLF), message.WithMaxPartLength(10))
	assert.ErrorIs(t, err, message.ErrLargePart)
	require.NotNil(t, m)
	assert.False(t, m.IsMultipart())
}

func TestParse_Rendered(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	msg := message.NewMessage(cfg)
	msg.SetSubject("Round trip")
	require.NoError(t, msg.SetFrom("alice@example.com"))
	require.NoError(t, msg.SetTo("bob@example.com"))
	msg.SetBodyString("Plain body")
	msg.AddPart("<p>HTML body</p>", "text/html", "")
	msg.Attach(message.NewAttachment(cfg, []byte("attached data"), "data.bin", ""))

	rendered, err := msg.Bytes()
	require.NoError(t, err)

	m, err := message.Parse(bytes.NewReader(rendered))
	require.NoError(t, err)

	mt, err := m.GetHeader().GetMediaType()
	require.NoError(t, err)
	assert.Equal(t, "multipart/mixed", mt)

	ps := m.GetParts()
	require.Len(t, ps, 2)

	alt, err := ps[0].GetHeader().GetMediaType()
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", alt)
	require.Len(t, ps[0].GetParts(), 2)

	text, err := io.ReadAll(ps[0].GetParts()[0].GetReader())
	require.NoError(t, err)
	assert.Equal(t, "Plain body", string(text))

	att := ps[1]
	cte, err := att.GetHeader().GetTransferEncoding()
	require.NoError(t, err)
	assert.Equal(t, transfer.Base64, cte)

	for i := 0; i < 2; i++ {
		buf := &bytes.Buffer{}
		_, err = m.WriteTo(buf)
		require.NoError(t, err)
		assert.Equal(t, string(rendered), buf.String(), "written back out unchanged")
	}
}

func TestOpaque_Encodes(t *testing.T) {
	t.Parallel()

	m, err := message.Parse(strings.NewReader(
		"Content-Transfer-Encoding: quoted-printable\r\n\r\nI =E2=9D=A4 email!"),
		message.DecodeTransferEncoding())
	require.NoError(t, err)

	b, err := io.ReadAll(m.GetReader())
	require.NoError(t, err)
	assert.Equal(t, "I ❤ email!", string(b))

	o := message.NewOpaque(m.GetHeader(), strings.NewReader("I ❤ email!"))
	assert.False(t, o.IsEncoded())

	buf := &bytes.Buffer{}
	n, err := o.WriteTo(buf)
	require.NoError(t, err)
	assert.Equal(t, "Content-Transfer-Encoding: quoted-printable\r\n\r\nI =E2=9D=A4 email!", buf.String())
	assert.Equal(t, int64(buf.Len()), n)
}
