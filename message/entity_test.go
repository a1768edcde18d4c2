package message_test

import (
	"bytes"
	"io"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swiftmailer/swiftmailer-sub001/message"
	"github.com/swiftmailer/swiftmailer-sub001/message/header"
	"github.com/swiftmailer/swiftmailer-sub001/message/transfer"
)

var testNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func testConfig() *message.Config {
	return &message.Config{
		IDRight: "example.com",
		Now:     func() time.Time { return testNow },
		Entropy: rand.New(rand.NewSource(1)),
	}
}

// newLeaf returns a 7bit entity with the given type, level, and body.
func newLeaf(cfg *message.Config, mt string, lvl message.Level, body string) *message.Entity {
	e := message.NewEntity(cfg, nil, transfer.NewPlainEncoder(transfer.Bit7, true))
	e.SetContentType(mt)
	e.SetLevel(lvl)
	if body != "" {
		e.SetBodyString(body)
	}
	return e
}

func TestEntity_WriteTo_Leaf(t *testing.T) {
	t.Parallel()

	e := newLeaf(testConfig(), "text/plain", message.LevelTop, "Hello\nWorld")

	assert.Equal(t, "Content-Type: text/plain\r\n"+
		"Content-Transfer-Encoding: 7bit\r\n"+
		"\r\n"+
		"Hello\r\nWorld", e.String())
}

func TestEntity_WriteTo_NoBody(t *testing.T) {
	t.Parallel()

	e := newLeaf(testConfig(), "text/plain", message.LevelTop, "")
	assert.Equal(t, "Content-Type: text/plain\r\n"+
		"Content-Transfer-Encoding: 7bit\r\n", e.String())
}

func TestEntity_WriteTo_Multipart(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	e := message.NewEntity(cfg, nil, transfer.NewPlainEncoder(transfer.Bit7, true))
	require.NoError(t, e.SetBoundary("xyz"))

	html := newLeaf(cfg, "text/html", message.LevelSubpart, "b")
	plain := newLeaf(cfg, "text/plain", message.LevelSubpart, "a")
	e.SetChildren(html, plain)

	const expect = "Content-Type: multipart/alternative; boundary=xyz\r\n" +
		"Content-Transfer-Encoding: 7bit\r\n" +
		"\r\n--xyz\r\n" +
		"Content-Type: text/plain\r\n" +
		"Content-Transfer-Encoding: 7bit\r\n" +
		"\r\n" +
		"a" +
		"\r\n--xyz\r\n" +
		"Content-Type: text/html\r\n" +
		"Content-Transfer-Encoding: 7bit\r\n" +
		"\r\n" +
		"b" +
		"\r\n--xyz--\r\n"

	buf := &bytes.Buffer{}
	n, err := e.WriteTo(buf)
	require.NoError(t, err)
	assert.Equal(t, expect, buf.String())
	assert.Equal(t, int64(len(expect)), n)

	assert.Equal(t, []*message.Entity{html, plain}, e.Children(), "children as given")
	assert.Equal(t, []*message.Entity{plain, html}, e.ImmediateChildren(), "alternatives sorted")
}

func TestEntity_WriteTo_SuppressesCompositeEncoding(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	e := message.NewEntity(cfg, nil, nil)
	e.SetContentType("text/plain")
	assert.Equal(t, transfer.QuotedPrintable, e.Encoder().Name())

	e.SetChildren(newLeaf(cfg, "text/plain", message.LevelAttachment, "x"))

	cte, err := e.GetHeader().GetTransferEncoding()
	require.NoError(t, err)
	assert.Equal(t, transfer.QuotedPrintable, cte, "kept in the header")

	out := e.String()
	assert.Equal(t, 1, strings.Count(out, "Content-Transfer-Encoding:"))
	assert.Contains(t, out, "Content-Transfer-Encoding: 7bit")
	assert.NotContains(t, out, "quoted-printable")
}

func TestEntity_SetChildren_MixedWithAlternative(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	m := message.NewMessage(cfg)
	plain := message.NewMimePart(cfg, "Hello", "text/plain", "")
	att := message.NewAttachment(cfg, []byte("data"), "data.txt", "text/plain")

	m.SetChildren(plain.Entity, att.Entity)

	assert.Equal(t, "multipart/mixed", m.ContentType())

	kids := m.ImmediateChildren()
	require.Len(t, kids, 2)

	sub := kids[0]
	assert.Equal(t, "multipart/alternative", sub.ContentType())
	assert.Equal(t, message.LevelAttachment, sub.Level())
	assert.Equal(t, []*message.Entity{plain.Entity}, sub.ImmediateChildren())
	assert.Same(t, att.Entity, kids[1])

	out := m.String()
	outer := strings.Index(out, "\r\n--"+m.Boundary()+"\r\n")
	inner := strings.Index(out, "\r\n--"+sub.Boundary()+"\r\n")
	attach := strings.Index(out, "Content-Disposition: attachment")
	require.GreaterOrEqual(t, outer, 0)
	assert.Less(t, outer, inner)
	assert.Less(t, inner, attach)
	assert.True(t, strings.HasSuffix(out, "\r\n--"+m.Boundary()+"--\r\n"))
}

func TestEntity_SetChildren_OrderDependent(t *testing.T) {
	t.Parallel()

	t.Run("shallower child demotes the group", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig()
		s := newLeaf(cfg, "text/plain", message.LevelSubpart, "s")
		e := newLeaf(cfg, "image/png", message.LevelEmbedded, "e")
		a := newLeaf(cfg, "application/pdf", message.LevelAttachment, "a")

		p := message.NewEntity(cfg, nil, nil)
		p.SetChildren(s, e, a)

		assert.Equal(t, "multipart/mixed", p.ContentType())
		kids := p.ImmediateChildren()
		require.Len(t, kids, 2)
		assert.Same(t, a, kids[1])

		related := kids[0]
		assert.Equal(t, "multipart/related", related.ContentType())
		assert.Equal(t, message.LevelAttachment, related.Level())
		rkids := related.ImmediateChildren()
		require.Len(t, rkids, 2)
		assert.Same(t, e, rkids[1])

		alt := rkids[0]
		assert.Equal(t, "multipart/alternative", alt.ContentType())
		assert.Equal(t, message.LevelEmbedded, alt.Level())
		assert.Equal(t, []*message.Entity{s}, alt.ImmediateChildren())
	})

	t.Run("deeper children collected after the seed", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig()
		a1 := newLeaf(cfg, "application/pdf", message.LevelAttachment, "1")
		e := newLeaf(cfg, "image/png", message.LevelEmbedded, "e")
		a2 := newLeaf(cfg, "application/pdf", message.LevelAttachment, "2")

		p := message.NewEntity(cfg, nil, nil)
		p.SetChildren(a1, e, a2)

		kids := p.ImmediateChildren()
		require.Len(t, kids, 3)
		assert.Equal(t, "multipart/related", kids[0].ContentType())
		assert.Equal(t, []*message.Entity{e}, kids[0].ImmediateChildren())
		assert.Same(t, a1, kids[1])
		assert.Same(t, a2, kids[2])
	})

	t.Run("a later shallower child takes over", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig()
		e1 := newLeaf(cfg, "image/png", message.LevelEmbedded, "1")
		a := newLeaf(cfg, "application/pdf", message.LevelAttachment, "a")
		e2 := newLeaf(cfg, "image/png", message.LevelEmbedded, "2")

		p := message.NewEntity(cfg, nil, nil)
		p.SetChildren(e1, a, e2)

		kids := p.ImmediateChildren()
		require.Len(t, kids, 2)
		assert.Equal(t, []*message.Entity{e1, e2}, kids[0].ImmediateChildren())
		assert.Same(t, a, kids[1])
	})
}

func TestEntity_SetChildren_Restore(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	p := message.NewMimePart(cfg, "body", "text/plain", "iso-8859-1")
	p.SetFormat("flowed")

	p.SetChildren(newLeaf(cfg, "image/png", message.LevelEmbedded, "x"))
	ct, err := p.GetHeader().GetContentType()
	require.NoError(t, err)
	assert.Equal(t, "multipart/related", ct.MediaType())
	assert.Equal(t, p.Boundary(), ct.Boundary())
	assert.Empty(t, ct.Charset())
	assert.Empty(t, ct.Parameter("format"))

	boundary := p.Boundary()
	p.SetChildren()

	ct, err = p.GetHeader().GetContentType()
	require.NoError(t, err)
	assert.Equal(t, "text/plain", ct.MediaType())
	assert.Empty(t, ct.Boundary())
	assert.Equal(t, "iso-8859-1", ct.Charset())
	assert.Equal(t, "flowed", ct.Parameter("format"))
	assert.Equal(t, boundary, p.Boundary(), "boundary is kept")
	assert.Empty(t, p.Children())
}

func TestEntity_SetChildren_CustomRanges(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.CompositeRanges = []message.CompositeRange{
		{Above: message.LevelTop, UpTo: message.LevelSubpart, MediaType: "multipart/x-custom"},
	}

	p := message.NewEntity(cfg, nil, nil)
	p.SetChildren(newLeaf(cfg, "text/plain", message.LevelSubpart, "x"))
	assert.Equal(t, "multipart/x-custom", p.ContentType())
}

func TestEntity_Boundary(t *testing.T) {
	t.Parallel()

	e := message.NewEntity(testConfig(), nil, nil)

	b := e.Boundary()
	assert.Regexp(t, `^_=_swift_[0-9A-Z]{26}_=_$`, b)
	assert.Equal(t, b, e.Boundary())

	err := e.SetBoundary("ends in a space ")
	assert.ErrorIs(t, err, message.ErrInvalidBoundary)
	err = e.SetBoundary(strings.Repeat("x", 71))
	assert.ErrorIs(t, err, message.ErrInvalidBoundary)
	err = e.SetBoundary("bad\"quote")
	assert.ErrorIs(t, err, message.ErrInvalidBoundary)
	assert.Equal(t, b, e.Boundary(), "rejected boundaries are not stored")

	require.NoError(t, e.SetBoundary("simple boundary"))
	assert.Equal(t, "simple boundary", e.Boundary())
}

func TestEntity_ID(t *testing.T) {
	t.Parallel()

	e := message.NewEntity(testConfig(), nil, nil)

	id := e.ID()
	assert.True(t, strings.HasSuffix(id, "@example.com"))
	assert.Equal(t, id, e.ID())
	assert.False(t, e.GetHeader().Has(header.ContentID))

	assert.ErrorIs(t, e.SetID("no-at-sign"), message.ErrInvalidID)
	assert.Equal(t, id, e.ID())

	require.NoError(t, e.SetID("abc.123@example.org"))
	cid, err := e.GetHeader().GetContentID()
	require.NoError(t, err)
	assert.Equal(t, "abc.123@example.org", cid)
}

func TestEntity_SetCharset_Propagates(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	parent := message.NewMimePart(cfg, "", "text/plain", "")
	child := message.NewMimePart(cfg, "x", "text/html", "")
	parent.SetChildren(child.Entity)

	var seen []header.FieldChange
	child.Observe(header.ObserverFunc(func(c header.FieldChange) {
		seen = append(seen, c)
	}))

	parent.SetCharset("iso-8859-1")

	assert.Equal(t, []header.FieldChange{{Kind: header.CharsetChanged, Value: "iso-8859-1"}}, seen)
	assert.Equal(t, "iso-8859-1", child.GetHeader().Charset())

	qp, ok := child.Encoder().(*transfer.QuotedPrintableEncoder)
	require.True(t, ok)
	assert.Equal(t, "iso-8859-1", qp.Charset())

	cs, err := child.GetHeader().GetCharset()
	require.NoError(t, err)
	assert.Equal(t, "iso-8859-1", cs)
	assert.Equal(t, "iso-8859-1", child.Charset())
	assert.Equal(t, "iso-8859-1", parent.Charset())
}

func TestEntity_SetCharset_AttachmentKeepsParams(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	parent := message.NewMimePart(cfg, "", "text/plain", "")
	att := message.NewAttachment(cfg, []byte("abc"), "a.bin", "application/octet-stream")
	parent.SetChildren(att.Entity)

	parent.SetCharset("iso-8859-1")

	assert.Empty(t, att.Charset())
	assert.Equal(t, "iso-8859-1", att.GetHeader().Charset())
	_, err := att.GetHeader().GetCharset()
	assert.ErrorIs(t, err, header.ErrNoSuchFieldParameter)
}

func TestEntity_SetEncoder(t *testing.T) {
	t.Parallel()

	a := message.NewAttachment(testConfig(), []byte("abc"), "a.txt", "text/plain")

	var seen []header.ChangeKind
	a.Observe(header.ObserverFunc(func(c header.FieldChange) {
		seen = append(seen, c.Kind)
	}))

	a.SetEncoder(transfer.NewPlainEncoder(transfer.Bit7, true))

	cte, err := a.GetHeader().GetTransferEncoding()
	require.NoError(t, err)
	assert.Equal(t, transfer.Bit7, cte)
	assert.Equal(t, []header.ChangeKind{header.EncoderChanged}, seen)
	assert.True(t, strings.HasSuffix(a.String(), "\r\n\r\nabc"))
}

func TestCloneSkeleton(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	p := message.NewMimePart(cfg, "body", "text/plain", "")
	p.SetDescription("the body")

	before := p.String()
	c := message.CloneSkeleton(p.Entity)

	assert.Equal(t, before, p.String(), "the parent is unchanged")
	assert.Equal(t, []string{header.ContentType, header.ContentTransferEncoding},
		fieldNames(c.GetHeader()))
	assert.Equal(t, "text/plain", c.ContentType())
	assert.Same(t, p.Encoder(), c.Encoder())
	assert.False(t, c.HasBody())
	assert.NotEqual(t, p.ID(), c.ID())
}

func fieldNames(h *header.Header) []string {
	var names []string
	for _, f := range h.ListFields() {
		names = append(names, f.Name())
	}
	return names
}

func TestEntity_Body(t *testing.T) {
	t.Parallel()

	e := newLeaf(testConfig(), "text/plain", message.LevelTop, "literal")

	e.SetBodyReader(strings.NewReader("streamed"))
	b, err := e.Body()
	require.NoError(t, err)
	assert.Equal(t, "streamed", string(b))

	e.SetBodyString("literal again")
	b, err = e.Body()
	require.NoError(t, err)
	assert.Equal(t, "literal again", string(b))

	r := e.GetReader()
	require.NotNil(t, r)
	rb, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "literal again", string(rb))
}

func TestEntity_WriteTo_Streamed(t *testing.T) {
	t.Parallel()

	cfg := testConfig()

	seekable := newLeaf(cfg, "text/plain", message.LevelTop, "")
	seekable.SetBodyReader(strings.NewReader("rewound"))
	assert.Equal(t, seekable.String(), seekable.String())
	assert.True(t, strings.HasSuffix(seekable.String(), "\r\n\r\nrewound"))

	once := newLeaf(cfg, "text/plain", message.LevelTop, "")
	once.SetBodyReader(io.MultiReader(strings.NewReader("read "), strings.NewReader("once")))
	assert.True(t, strings.HasSuffix(once.String(), "\r\n\r\nread once"))
	assert.True(t, strings.HasSuffix(once.String(), "\r\n\r\nread once"), "cached after the first read")
}

func TestEntity_WriteTo_Idempotent(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	m := message.NewMessage(cfg)
	m.SetBodyString("Hi there")
	m.AddPart("<p>Hi there</p>", "text/html", "")
	m.Attach(message.NewAttachment(cfg, []byte("data"), "data.bin", ""))

	kids := m.ImmediateChildren()
	boundary := m.Boundary()

	first, err := m.Bytes()
	require.NoError(t, err)
	second, err := m.Bytes()
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Equal(t, kids, m.ImmediateChildren(), "rendering does not change the tree")
	assert.Equal(t, boundary, m.Boundary())
	assert.True(t, m.HasBody())
	assert.Contains(t, string(first), "\r\n\r\nHi there\r\n--")
}
