package message_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swiftmailer/swiftmailer-sub001/message"
	"github.com/swiftmailer/swiftmailer-sub001/message/header"
	"github.com/swiftmailer/swiftmailer-sub001/message/header/param"
	"github.com/swiftmailer/swiftmailer-sub001/message/transfer"
)

func TestNewMessage(t *testing.T) {
	t.Parallel()

	m := message.NewMessage(testConfig())
	h := m.GetHeader()

	assert.Equal(t, message.LevelTop, m.Level())
	assert.Equal(t, "text/plain", m.ContentType())
	assert.Equal(t, "utf-8", m.Charset())
	assert.True(t, m.Date().Equal(testNow))

	id, err := h.GetMessageID()
	require.NoError(t, err)
	assert.Equal(t, m.ID(), id)
	assert.True(t, strings.HasSuffix(id, "@example.com"))

	v, err := h.Get(header.MIMEVersion)
	require.NoError(t, err)
	assert.Equal(t, "1.0", v)

	cte, err := h.GetTransferEncoding()
	require.NoError(t, err)
	assert.Equal(t, transfer.QuotedPrintable, cte)

	out := m.String()
	assert.Contains(t, out, "\r\nFrom:", "From is always written")
	assert.True(t, strings.HasPrefix(out, "Message-ID: <"+id+">\r\nDate: Tue, 02 Jan 2024 03:04:05 +0000\r\n"))
	assert.True(t, strings.HasSuffix(out, "MIME-Version: 1.0\r\n"+
		"Content-Type: text/plain; charset=utf-8\r\n"+
		"Content-Transfer-Encoding: quoted-printable\r\n"))
}

func TestMessage_HeaderOrder(t *testing.T) {
	t.Parallel()

	m := message.NewMessageWith(testConfig(), "Hi", "Hello Bob", "", "")
	require.NoError(t, m.SetTo("bob@example.com"))
	require.NoError(t, m.SetFrom("alice@example.com"))
	require.NoError(t, m.SetReturnPath("bounces@example.com"))
	require.NoError(t, m.SetSender("alice@example.com"))

	var names []string
	for _, line := range strings.Split(m.String(), "\r\n") {
		if ix := strings.Index(line, ":"); ix > 0 && !strings.HasPrefix(line, " ") {
			names = append(names, line[:ix])
		}
		if line == "" {
			break
		}
	}

	assert.Equal(t, []string{
		header.ReturnPath,
		header.Sender,
		header.MessageID,
		header.Date,
		header.Subject,
		header.From,
		header.To,
		header.MIMEVersion,
		header.ContentType,
		header.ContentTransferEncoding,
	}, names)
	assert.True(t, strings.HasSuffix(m.String(), "\r\n\r\nHello Bob"))
}

func TestMessage_Addresses(t *testing.T) {
	t.Parallel()

	m := message.NewMessage(testConfig())
	assert.Empty(t, m.From())
	assert.Empty(t, m.To())

	require.NoError(t, m.SetTo("a@example.com"))
	require.NoError(t, m.AddTo("b@example.com", "c@example.com"))
	assert.Equal(t, []string{"a@example.com", "b@example.com", "c@example.com"}, header.AddressesOf(m.To()))

	require.NoError(t, m.AddCc("d@example.com"))
	require.NoError(t, m.AddBcc("e@example.com"))
	assert.Equal(t, []string{"d@example.com"}, header.AddressesOf(m.Cc()))
	assert.Equal(t, []string{"e@example.com"}, header.AddressesOf(m.Bcc()))

	require.NoError(t, m.SetReplyTo("r@example.com"))
	assert.Equal(t, []string{"r@example.com"}, header.AddressesOf(m.ReplyTo()))

	require.NoError(t, m.SetReturnPath("bounce@example.com"))
	assert.Equal(t, "bounce@example.com", m.ReturnPath())

	assert.Error(t, m.SetTo(42))
}

func TestMessage_Priority(t *testing.T) {
	t.Parallel()

	m := message.NewMessage(testConfig())
	assert.Equal(t, message.PriorityNormal, m.Priority())

	m.SetPriority(message.PriorityHighest)
	v, err := m.GetHeader().Get(header.XPriority)
	require.NoError(t, err)
	assert.Equal(t, "1 (Highest)", v)
	assert.Equal(t, message.PriorityHighest, m.Priority())

	m.SetPriority(9)
	assert.Equal(t, message.PriorityLowest, m.Priority())
}

func TestMessage_ReadReceiptTo(t *testing.T) {
	t.Parallel()

	m := message.NewMessage(testConfig())
	require.NoError(t, m.SetReadReceiptTo("receipts@example.com"))
	assert.Equal(t, []string{"receipts@example.com"}, header.AddressesOf(m.ReadReceiptTo()))
	assert.Error(t, m.SetReadReceiptTo("not an address"))
}

func TestMessage_AttachDetachEmbed(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	m := message.NewMessageWith(cfg, "Pictures", "see attached", "", "")

	att := message.NewAttachment(cfg, []byte("%PDF"), "doc.pdf", "")
	m.Attach(att)
	assert.Equal(t, "multipart/mixed", m.ContentType())

	img := message.NewEmbeddedFile(cfg, []byte("png"), "pic.png", "image/png")
	cid := m.Embed(img)
	assert.Equal(t, "cid:"+img.ID(), cid)

	html := m.AddPart(`<img src="`+cid+`">`, "text/html", "")
	assert.Equal(t, message.LevelSubpart, html.Level())
	assert.Len(t, m.Children(), 3)

	m.Detach(att)
	assert.Len(t, m.Children(), 2)
	assert.Equal(t, "multipart/related", m.ContentType())

	m.Detach(img)
	m.Detach(html)
	assert.Empty(t, m.Children())
	assert.Equal(t, "text/plain", m.ContentType())
	assert.True(t, strings.HasSuffix(m.String(), "\r\n\r\nsee attached"))
}

func TestAttachment(t *testing.T) {
	t.Parallel()

	a := message.NewAttachment(testConfig(), []byte("hello world"), "hello.txt", "")

	assert.Equal(t, message.LevelAttachment, a.Level())
	assert.Equal(t, message.DispositionAttachment, a.Disposition())
	assert.Equal(t, "hello.txt", a.Filename())
	assert.Equal(t, 11, a.Size())
	assert.Equal(t, transfer.Base64, a.Encoder().Name())

	name, err := a.GetHeader().GetContentTypeParam(param.Name)
	require.NoError(t, err)
	assert.Equal(t, "hello.txt", name)

	assert.True(t, strings.HasSuffix(a.String(), "\r\n\r\naGVsbG8gd29ybGQ="))
	assert.NoError(t, a.Close())
}

func TestAttachmentFromPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "notes.bin")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o600))

	a, err := message.AttachmentFromPath(testConfig(), path, "")
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	assert.Equal(t, "notes.bin", a.Filename())
	assert.Equal(t, 3, a.Size())
	assert.Equal(t, a.String(), a.String())
	assert.True(t, strings.HasSuffix(a.String(), "\r\n\r\nYWJj"))

	_, err = message.AttachmentFromPath(testConfig(), filepath.Join(dir, "missing"), "")
	assert.Error(t, err)
}

func TestEmbeddedFile(t *testing.T) {
	t.Parallel()

	f := message.NewEmbeddedFile(testConfig(), []byte("gif"), "a.gif", "image/gif")

	assert.Equal(t, message.LevelEmbedded, f.Level())
	assert.Equal(t, message.DispositionInline, f.Disposition())

	cid, err := f.GetHeader().GetContentID()
	require.NoError(t, err)
	assert.Equal(t, f.ID(), cid)
}

func TestMimePart(t *testing.T) {
	t.Parallel()

	p := message.NewMimePart(testConfig(), "Ça va?", "", "")
	p.SetFormat("flowed")
	p.SetDelSp(true)

	ct, err := p.GetHeader().GetContentType()
	require.NoError(t, err)
	assert.Equal(t, "text/plain", ct.MediaType())
	assert.Equal(t, "utf-8", ct.Charset())
	assert.Equal(t, "flowed", ct.Parameter(param.Format))
	assert.Equal(t, "yes", ct.Parameter(param.DelSp))
	assert.True(t, p.DelSp())

	p.SetDelSp(false)
	ct, err = p.GetHeader().GetContentType()
	require.NoError(t, err)
	assert.Empty(t, ct.Parameter(param.DelSp))

	assert.True(t, strings.HasSuffix(p.String(), "\r\n\r\n=C3=87a va?"))
}

func TestMessage_GenerateID(t *testing.T) {
	t.Parallel()

	m := message.NewMessage(testConfig())
	first := m.ID()

	mid, err := m.GetHeader().GetMessageID()
	require.NoError(t, err)
	assert.Equal(t, first, mid)

	second := m.GenerateID()
	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasSuffix(second, "@example.com"))
	assert.Equal(t, second, m.ID())

	mid, err = m.GetHeader().GetMessageID()
	require.NoError(t, err)
	assert.Equal(t, second, mid)
}
