package esmtp_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swiftmailer/swiftmailer-sub001/internal/smtptest"
	"github.com/swiftmailer/swiftmailer-sub001/message"
	"github.com/swiftmailer/swiftmailer-sub001/message/header"
	"github.com/swiftmailer/swiftmailer-sub001/transport"
	"github.com/swiftmailer/swiftmailer-sub001/transport/esmtp"
	"github.com/swiftmailer/swiftmailer-sub001/transport/event"
)

func start(t *testing.T, s *smtptest.Server, opts ...esmtp.Option) (*smtptest.Server, *esmtp.Transport) {
	t.Helper()

	srv := smtptest.Start(t, s)
	tr := esmtp.NewSMTP(srv.Params(), opts...)
	t.Cleanup(func() { _ = tr.Stop(context.Background()) })
	return srv, tr
}

func newMessage(t *testing.T) *message.Message {
	t.Helper()

	m := message.NewMessageWith(nil, "Hi", "Hello", "", "")
	require.NoError(t, m.SetFrom("alice@example.com"))
	require.NoError(t, m.SetTo("bob@example.com", "carol@example.com"))
	require.NoError(t, m.SetCc("dave@example.com"))
	require.NoError(t, m.SetBcc("eve@example.com"))
	return m
}

// raw is a message written exactly as given.
type raw struct {
	h    header.Header
	body string
}

func newRaw(t *testing.T, body string) *raw {
	t.Helper()

	r := &raw{body: body}
	require.NoError(t, r.h.SetFrom("alice@example.com"))
	require.NoError(t, r.h.SetTo("bob@example.com"))
	return r
}

func (r *raw) GetHeader() *header.Header { return &r.h }

func (r *raw) WriteTo(w io.Writer) (int64, error) {
	n, err := r.h.WriteTo(w)
	if err != nil {
		return n, err
	}
	m, err := io.WriteString(w, r.body)
	return n + int64(m), err
}

func bccOf(t *testing.T, m *message.Message) []string {
	t.Helper()

	bcc, err := m.GetHeader().GetBcc()
	require.NoError(t, err)
	return header.AddressesOf(bcc)
}

type keywordRecorder struct {
	esmtp.BaseHandler
	keyword string
	after   int
}

func (k *keywordRecorder) Keyword() string { return k.keyword }

func (k *keywordRecorder) AfterEHLO(ctx context.Context, a esmtp.Agent) error {
	k.after++
	return nil
}

func TestTransport_Capabilities(t *testing.T) {
	t.Parallel()

	tls := &keywordRecorder{keyword: "STARTTLS"}
	size := &keywordRecorder{keyword: "SIZE"}
	auth := &keywordRecorder{keyword: "AUTH"}

	srv, tr := start(t, &smtptest.Server{Extensions: []string{"STARTTLS", "SIZE 10485760"}},
		esmtp.WithTLSMode(esmtp.StartTLSNever),
		esmtp.WithHandlers(tls, size, auth))

	require.NoError(t, tr.Start(context.Background()))
	assert.True(t, tr.IsStarted())

	assert.Equal(t, map[string][]string{
		"STARTTLS": {},
		"SIZE":     {"10485760"},
	}, tr.Capabilities())
	assert.True(t, tr.HasCapability("size"))

	assert.Equal(t, 1, tls.after)
	assert.Equal(t, 1, size.after)
	assert.Equal(t, []string{"10485760"}, size.Params)
	assert.Equal(t, 0, auth.after)
	assert.Same(t, auth, tr.Handler("auth"))

	assert.Equal(t, []string{"EHLO [127.0.0.1]"}, srv.Commands())

	require.NoError(t, tr.Start(context.Background()), "start twice is fine")
	assert.Equal(t, 1, srv.Connections())
}

func TestTransport_Capabilities_ServerName(t *testing.T) {
	t.Parallel()

	_, tr := start(t, &smtptest.Server{
		Replies: map[string]string{"EHLO": "250-localhost Hello\r\n250-STARTTLS\r\n250 SIZE 10485760"},
	}, esmtp.WithTLSMode(esmtp.StartTLSNever))

	require.NoError(t, tr.Start(context.Background()))
	assert.Equal(t, map[string][]string{
		"STARTTLS": {},
		"SIZE":     {"10485760"},
	}, tr.Capabilities())
	assert.False(t, tr.HasCapability("localhost"))
}

func TestTransport_HELOFallback(t *testing.T) {
	t.Parallel()

	srv, tr := start(t, &smtptest.Server{
		Replies: map[string]string{"EHLO": "502 5.5.2 What?"},
	}, esmtp.WithLocalDomain("client.example.com"))

	require.NoError(t, tr.Start(context.Background()))
	assert.Empty(t, tr.Capabilities())
	assert.Equal(t, []string{"EHLO client.example.com", "HELO client.example.com"}, srv.Commands())
}

func TestTransport_GreetingRefused(t *testing.T) {
	t.Parallel()

	_, tr := start(t, &smtptest.Server{Greeting: "554 5.3.2 Go away"})

	err := tr.Start(context.Background())
	var re *esmtp.ResponseError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 554, re.Code)
	assert.Equal(t, []int{220}, re.Expected)
	assert.True(t, re.IsPermanent())
	assert.False(t, tr.IsStarted())
}

func TestTransport_StartTLSRequired(t *testing.T) {
	t.Parallel()

	_, tr := start(t, &smtptest.Server{}, esmtp.WithTLSMode(esmtp.StartTLSRequired))

	err := tr.Start(context.Background())
	assert.ErrorIs(t, err, esmtp.ErrTLSUnavailable)
	assert.False(t, tr.IsStarted())
}

func TestTransport_StartTLSRefused(t *testing.T) {
	t.Parallel()

	srv, tr := start(t, &smtptest.Server{Extensions: []string{"STARTTLS"}})

	err := tr.Start(context.Background())
	var re *esmtp.ResponseError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "STARTTLS", re.Command)
	assert.Equal(t, []string{"EHLO [127.0.0.1]", "STARTTLS"}, srv.Commands())
}

func TestTransport_Send(t *testing.T) {
	t.Parallel()

	srv, tr := start(t, &smtptest.Server{
		Replies: map[string]string{
			"RCPT TO:<carol@example.com>": "550 5.1.1 No such user",
		},
	})

	m := newMessage(t)
	id := m.ID()

	sent, failed, err := tr.Send(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	assert.Equal(t, []string{"carol@example.com"}, failed)

	assert.Equal(t, []string{
		"EHLO [127.0.0.1]",
		"MAIL FROM:<alice@example.com>",
		"RCPT TO:<bob@example.com>",
		"RCPT TO:<carol@example.com>",
		"RCPT TO:<dave@example.com>",
		"DATA",
		"MAIL FROM:<alice@example.com>",
		"RCPT TO:<eve@example.com>",
		"DATA",
	}, srv.Commands())

	msgs := srv.Messages()
	require.Len(t, msgs, 2)
	assert.NotContains(t, msgs[0], "eve@example.com")
	assert.Contains(t, msgs[0], "bob@example.com")
	assert.Contains(t, msgs[1], "eve@example.com")
	assert.True(t, strings.HasSuffix(msgs[0], "\r\n\r\nHello\r\n"))

	assert.Equal(t, []string{"eve@example.com"}, bccOf(t, m))
	assert.NotEqual(t, id, m.ID(), "a new id is generated after sending")
}

func TestTransport_Send_PartialFailure(t *testing.T) {
	t.Parallel()

	_, tr := start(t, &smtptest.Server{
		Replies: map[string]string{
			"RCPT TO:<b@example.com>": "550 5.1.1 No such user",
		},
	})

	m := message.NewMessageWith(nil, "Hi", "Hello", "", "")
	require.NoError(t, m.SetFrom("sender@example.com"))
	require.NoError(t, m.SetTo("a@example.com", "b@example.com", "c@example.com"))

	sent, failed, err := tr.Send(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []string{"b@example.com"}, failed)
}

func TestTransport_Send_AllRefused(t *testing.T) {
	t.Parallel()

	srv, tr := start(t, &smtptest.Server{
		Replies: map[string]string{"RCPT TO:": "550 5.1.1 No such user"},
	})

	sent, failed, err := tr.Send(context.Background(), newMessage(t))
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Len(t, failed, 4)
	assert.NotContains(t, srv.Commands(), "DATA")
	assert.Contains(t, srv.Commands(), "RSET")
	assert.Empty(t, srv.Messages())
}

func TestTransport_Send_MailRefused(t *testing.T) {
	t.Parallel()

	_, tr := start(t, &smtptest.Server{
		Replies: map[string]string{"MAIL FROM:": "451 4.3.0 Try again later"},
	})

	m := newMessage(t)
	sent, _, err := tr.Send(context.Background(), m)
	assert.Equal(t, 0, sent)

	var re *esmtp.ResponseError
	require.ErrorAs(t, err, &re)
	assert.True(t, re.IsTransient())
	assert.Equal(t, "MAIL FROM:<alice@example.com>", re.Command)
	assert.Equal(t, `expected response code 250 but got code 451, with message "451 4.3.0 Try again later"`, re.Error())

	assert.Equal(t, []string{"eve@example.com"}, bccOf(t, m), "Bcc is restored after an error")
}

func TestTransport_Send_BccRefused(t *testing.T) {
	t.Parallel()

	srv, tr := start(t, &smtptest.Server{
		Replies: map[string]string{"MAIL FROM:": "451 4.3.0 Try again later"},
	})

	m := message.NewMessageWith(nil, "Hi", "Hello", "", "")
	require.NoError(t, m.SetFrom("alice@example.com"))
	require.NoError(t, m.SetBcc("eve@example.com", "frank@example.com"))

	sent, _, err := tr.Send(context.Background(), m)
	assert.Equal(t, 0, sent)

	var re *esmtp.ResponseError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 451, re.Code)
	assert.NotContains(t, srv.Commands(), "DATA")

	assert.Equal(t, []string{"eve@example.com", "frank@example.com"}, bccOf(t, m))
	assert.Len(t, m.GetHeader().GetIndexesNamed(header.Bcc), 1)
}

func TestTransport_Send_NoSender(t *testing.T) {
	t.Parallel()

	_, tr := start(t, &smtptest.Server{})

	r := &raw{body: "x"}
	require.NoError(t, r.h.SetTo("bob@example.com"))

	_, _, err := tr.Send(context.Background(), r)
	assert.ErrorIs(t, err, transport.ErrNoReversePath)
}

func TestTransport_Send_DotStuffing(t *testing.T) {
	t.Parallel()

	srv, tr := start(t, &smtptest.Server{})

	sent, _, err := tr.Send(context.Background(), newRaw(t, "one\r\n.two\r\n..three\r\n."))
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.True(t, strings.HasSuffix(msgs[0], "\r\n\r\none\r\n..two\r\n...three\r\n..\r\n"), msgs[0])
}

func TestTransport_Send_DotStuffingBareLF(t *testing.T) {
	t.Parallel()

	srv, tr := start(t, &smtptest.Server{})

	sent, _, err := tr.Send(context.Background(), newRaw(t, "one\n.\ntwo"))
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.True(t, strings.HasSuffix(msgs[0], "\r\n\r\none\n..\ntwo\r\n"), msgs[0])
}

func TestTransport_Send_Size(t *testing.T) {
	t.Parallel()

	srv, tr := start(t, &smtptest.Server{Extensions: []string{"SIZE 100000"}})

	r := newRaw(t, "hello")
	var buf bytes.Buffer
	_, err := r.WriteTo(&buf)
	require.NoError(t, err)

	_, _, err = tr.Send(context.Background(), r)
	require.NoError(t, err)
	assert.Contains(t, srv.Commands(), "MAIL FROM:<alice@example.com> SIZE="+strconv.Itoa(buf.Len()))

	_, small := start(t, &smtptest.Server{Extensions: []string{"SIZE 10"}})
	_, _, err = small.Send(context.Background(), r)
	assert.ErrorIs(t, err, esmtp.ErrMessageTooLarge)
}

func TestTransport_Send_EightBitMIME(t *testing.T) {
	t.Parallel()

	srv, tr := start(t, &smtptest.Server{Extensions: []string{"8BITMIME"}})

	_, _, err := tr.Send(context.Background(), newRaw(t, "plain"))
	require.NoError(t, err)
	_, _, err = tr.Send(context.Background(), newRaw(t, "café"))
	require.NoError(t, err)

	var mails []string
	for _, c := range srv.Commands() {
		if strings.HasPrefix(c, "MAIL") {
			mails = append(mails, c)
		}
	}
	assert.Equal(t, []string{
		"MAIL FROM:<alice@example.com>",
		"MAIL FROM:<alice@example.com> BODY=8BITMIME",
	}, mails)
}

func TestTransport_Send_Pipelining(t *testing.T) {
	t.Parallel()

	srv, tr := start(t, &smtptest.Server{
		Extensions: []string{"PIPELINING"},
		Replies: map[string]string{
			"RCPT TO:<carol@example.com>": "550 5.1.1 No such user",
		},
	}, esmtp.WithPipelining())

	sent, failed, err := tr.Send(context.Background(), newMessage(t))
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	assert.Equal(t, []string{"carol@example.com"}, failed)
	assert.Len(t, srv.Messages(), 2)
}

func TestTransport_Send_PipeliningAllRefused(t *testing.T) {
	t.Parallel()

	srv, tr := start(t, &smtptest.Server{
		Extensions: []string{"PIPELINING"},
		Replies: map[string]string{
			"RCPT TO:": "550 5.1.1 No such user",
			"DATA":     "554 5.5.1 No valid recipients",
		},
	}, esmtp.WithPipelining())

	sent, failed, err := tr.Send(context.Background(), newMessage(t))
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.ElementsMatch(t, []string{
		"bob@example.com", "carol@example.com", "dave@example.com", "eve@example.com",
	}, failed)
	assert.Contains(t, srv.Commands(), "RSET")
	assert.Empty(t, srv.Messages())
}

func TestTransport_Auth(t *testing.T) {
	t.Parallel()

	plain := "AUTH PLAIN " + base64.StdEncoding.EncodeToString([]byte("\x00user\x00secret"))

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	srv, tr := start(t, &smtptest.Server{
		Extensions: []string{"AUTH LOGIN PLAIN"},
		Replies: map[string]string{
			"AUTH LOGIN": "535 5.7.8 Not today",
			plain:        "235 2.7.0 Accepted",
		},
	}, esmtp.WithAuth("user", "secret"), esmtp.WithLogger(logger))

	require.NoError(t, tr.Start(context.Background()))
	assert.Equal(t, []string{
		"EHLO [127.0.0.1]",
		"AUTH LOGIN",
		"RSET",
		plain,
	}, srv.Commands())

	assert.Contains(t, logs.String(), "AUTH PLAIN ***")
	assert.NotContains(t, logs.String(), plain)
}

func TestTransport_AuthLogin(t *testing.T) {
	t.Parallel()

	enc := base64.StdEncoding.EncodeToString
	srv, tr := start(t, &smtptest.Server{
		Extensions: []string{"AUTH LOGIN"},
		Replies: map[string]string{
			"AUTH LOGIN":        "334 VXNlcm5hbWU6",
			enc([]byte("user")): "334 UGFzc3dvcmQ6",
			enc([]byte("pass")): "235 2.7.0 Accepted",
		},
	}, esmtp.WithAuth("user", "pass"))

	require.NoError(t, tr.Start(context.Background()))
	assert.Equal(t, []string{
		"EHLO [127.0.0.1]",
		"AUTH LOGIN",
		enc([]byte("user")),
		enc([]byte("pass")),
	}, srv.Commands())
}

func TestTransport_AuthCRAMMD5(t *testing.T) {
	t.Parallel()

	challenge := "<1896.697170952@example.com>"
	mac := hmac.New(md5.New, []byte("secret"))
	mac.Write([]byte(challenge))
	answer := base64.StdEncoding.EncodeToString([]byte("user " + hex.EncodeToString(mac.Sum(nil))))

	srv, tr := start(t, &smtptest.Server{
		Extensions: []string{"AUTH CRAM-MD5"},
		Replies: map[string]string{
			"AUTH CRAM-MD5": "334 " + base64.StdEncoding.EncodeToString([]byte(challenge)),
			answer:          "235 2.7.0 Accepted",
		},
	}, esmtp.WithAuth("user", "secret"))

	require.NoError(t, tr.Start(context.Background()))
	assert.Equal(t, answer, srv.Commands()[2])
}

func TestTransport_AuthFailures(t *testing.T) {
	t.Parallel()

	_, tr := start(t, &smtptest.Server{
		Extensions: []string{"AUTH PLAIN"},
		Replies:    map[string]string{"AUTH PLAIN": "535 5.7.8 Bad credentials"},
	}, esmtp.WithAuth("user", "secret"))

	err := tr.Start(context.Background())
	assert.ErrorIs(t, err, esmtp.ErrAuthFailed)
	assert.False(t, tr.IsStarted())

	_, tr = start(t, &smtptest.Server{
		Extensions: []string{"AUTH GSSAPI"},
	}, esmtp.WithAuth("user", "secret"))

	err = tr.Start(context.Background())
	assert.ErrorIs(t, err, esmtp.ErrNoAuthenticator)
}

func TestTransport_PingStop(t *testing.T) {
	t.Parallel()

	srv, tr := start(t, &smtptest.Server{})
	assert.True(t, tr.Ping(context.Background()))
	assert.True(t, tr.IsStarted())

	require.NoError(t, tr.Stop(context.Background()))
	assert.False(t, tr.IsStarted())
	assert.Equal(t, []string{"EHLO [127.0.0.1]", "NOOP", "QUIT"}, srv.Commands())

	_, down := start(t, &smtptest.Server{
		Replies: map[string]string{"NOOP": "421 4.3.2 Shutting down"},
	})
	assert.False(t, down.Ping(context.Background()))
	assert.False(t, down.IsStarted())
}

type dialogue struct {
	lines   []string
	changes []string
	cancel  bool
}

func (d *dialogue) CommandSent(evt *event.CommandEvent) {
	d.lines = append(d.lines, "> "+strings.TrimSpace(evt.Command))
}

func (d *dialogue) ResponseReceived(evt *event.ResponseEvent) {
	d.lines = append(d.lines, "< "+strings.TrimSpace(evt.Response))
}

func (d *dialogue) BeforeTransportStarted(evt *event.TransportChangeEvent) {
	d.changes = append(d.changes, "starting")
}

func (d *dialogue) TransportStarted(evt *event.TransportChangeEvent) {
	d.changes = append(d.changes, "started")
}

func (d *dialogue) BeforeTransportStopped(evt *event.TransportChangeEvent) {
	d.changes = append(d.changes, "stopping")
}

func (d *dialogue) TransportStopped(evt *event.TransportChangeEvent) {
	d.changes = append(d.changes, "stopped")
}

func (d *dialogue) BeforeSendPerformed(evt *event.SendEvent) {
	if d.cancel {
		evt.CancelBubble()
	}
}

func (d *dialogue) SendPerformed(evt *event.SendEvent) {
	d.changes = append(d.changes, "sent "+evt.Result.String())
}

func TestTransport_Events(t *testing.T) {
	t.Parallel()

	srv, tr := start(t, &smtptest.Server{})
	d := &dialogue{}
	tr.RegisterPlugin(d)

	_, _, err := tr.Send(context.Background(), newRaw(t, "hi"))
	require.NoError(t, err)
	require.NoError(t, tr.Stop(context.Background()))

	assert.Equal(t, []string{
		"< 220 mail.example.com ESMTP",
		"> EHLO [127.0.0.1]",
		"< 250 mail.example.com",
		"> MAIL FROM:<alice@example.com>",
		"< 250 2.0.0 OK",
		"> RCPT TO:<bob@example.com>",
		"< 250 2.0.0 OK",
		"> DATA",
		"< 354 Go ahead",
		"> .",
		"< 250 2.0.0 Queued",
		"> QUIT",
		"< 221 2.0.0 Bye",
	}, d.lines)
	assert.Equal(t, []string{
		"starting", "started", "sent " + event.ResultSuccess.String(), "stopping", "stopped",
	}, d.changes)

	d.cancel = true
	sent, _, err := tr.Send(context.Background(), newRaw(t, "hi"))
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Len(t, srv.Messages(), 1)
}

func TestCommandOutcome(t *testing.T) {
	t.Parallel()

	assert.False(t, esmtp.NotHandled.Handled())
	assert.Equal(t, "not handled", esmtp.NotHandled.String())

	s := esmtp.Sent("250 OK\r\n")
	assert.True(t, s.Handled())
	assert.False(t, s.IsDeferred())
	assert.Equal(t, "250 OK\r\n", s.Response())

	assert.Equal(t, "intercepted", esmtp.Intercepted("250 OK").String())
	assert.True(t, esmtp.Deferred().IsDeferred())
	assert.Equal(t, "", esmtp.Deferred().Response())
}

func TestResponseError(t *testing.T) {
	t.Parallel()

	err := &esmtp.ResponseError{Expected: []int{250, 251}}
	assert.Equal(t, "expected response code 250/251 but got an empty response", err.Error())
	assert.False(t, err.IsTransient())
	assert.False(t, err.IsPermanent())
	assert.False(t, errors.Is(err, esmtp.ErrMessageTooLarge))
}
