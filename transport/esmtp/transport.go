// Package esmtp sends messages over the SMTP protocol with ESMTP extensions.
//
// The transport speaks to the server through an iobuffer.Buffer, which may be
// a socket or a local MTA process. Extensions are supported by Handlers, each
// taking care of one EHLO keyword. A handler is only consulted when the server
// advertises its keyword.
package esmtp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strings"
	"sync"

	"github.com/swiftmailer/swiftmailer-sub001/message/header"
	"github.com/swiftmailer/swiftmailer-sub001/transport"
	"github.com/swiftmailer/swiftmailer-sub001/transport/event"
	"github.com/swiftmailer/swiftmailer-sub001/transport/iobuffer"
)

// Errors returned by the ESMTP transport.
var (
	// ErrTLSUnavailable is returned by Start when STARTTLS is required but the
	// server does not offer it.
	ErrTLSUnavailable = errors.New("server does not support STARTTLS")

	// ErrSMTPUTF8Unsupported is returned by Send when an address needs
	// SMTPUTF8 but the server does not advertise it.
	ErrSMTPUTF8Unsupported = errors.New("server does not support SMTPUTF8, which is required by the message addresses")
)

// TLSMode chooses whether STARTTLS is used.
type TLSMode int

const (
	// StartTLSOpportunistic uses STARTTLS when the server offers it.
	StartTLSOpportunistic TLSMode = iota

	// StartTLSRequired refuses to continue unless STARTTLS succeeds.
	StartTLSRequired

	// StartTLSNever does not use STARTTLS.
	StartTLSNever
)

// DefaultLocalDomain is sent with EHLO when no local domain is set.
const DefaultLocalDomain = "[127.0.0.1]"

// Transport is an ESMTP client driving one mail transaction at a time over a
// Buffer.
type Transport struct {
	name    string
	buffer  iobuffer.Buffer
	domain  string
	tlsMode TLSMode
	encoder AddressEncoder
	logger  *slog.Logger

	handlers map[string]Handler
	ordered  []Handler

	events event.Dispatcher

	mu           sync.Mutex
	started      bool
	capabilities map[string][]string
	commands     map[int]string
	secret       bool
}

var _ transport.Transport = (*Transport)(nil)

// Option configures a Transport.
type Option func(*Transport)

// WithLocalDomain sets the domain sent with EHLO and HELO. An IP address is
// sent as an address literal.
func WithLocalDomain(domain string) Option {
	return func(t *Transport) {
		t.domain = domain
	}
}

// WithHandlers replaces the default handlers.
func WithHandlers(hs ...Handler) Option {
	return func(t *Transport) {
		t.handlers = map[string]Handler{}
		for _, h := range hs {
			t.handlers[strings.ToUpper(h.Keyword())] = h
		}
	}
}

// WithAuth sets the credentials used by the AUTH handler. It adds an AUTH
// handler with the default authenticators if there is none.
func WithAuth(username, password string) Option {
	return func(t *Transport) {
		ah, ok := t.handlers["AUTH"].(*AuthHandler)
		if !ok {
			ah = NewAuthHandler()
			t.handlers["AUTH"] = ah
		}
		ah.Username = username
		ah.Password = password
	}
}

// WithPipelining adds the PIPELINING handler.
func WithPipelining() Option {
	return func(t *Transport) {
		t.handlers["PIPELINING"] = NewPipeliningHandler()
	}
}

// WithAddressEncoder sets how addresses are written in MAIL and RCPT. The
// default is IDNEncoder.
func WithAddressEncoder(e AddressEncoder) Option {
	return func(t *Transport) {
		t.encoder = e
	}
}

// WithTLSMode sets when STARTTLS is used.
func WithTLSMode(mode TLSMode) Option {
	return func(t *Transport) {
		t.tlsMode = mode
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = l
	}
}

// WithName sets the name used in errors and log entries. The default is
// "smtp".
func WithName(name string) Option {
	return func(t *Transport) {
		t.name = name
	}
}

// New returns a transport speaking ESMTP over buf. Unless WithHandlers is
// given, it has handlers for AUTH, SIZE, 8BITMIME, and SMTPUTF8.
func New(buf iobuffer.Buffer, opts ...Option) *Transport {
	t := &Transport{
		name:    "smtp",
		buffer:  buf,
		domain:  DefaultLocalDomain,
		encoder: IDNEncoder{},
		logger:  slog.Default(),
		handlers: map[string]Handler{
			"AUTH":     NewAuthHandler(),
			"SIZE":     NewSizeHandler(),
			"8BITMIME": NewEightBitMIMEHandler(),
			"SMTPUTF8": NewSMTPUTF8Handler(),
		},
		commands: map[int]string{},
	}

	for _, opt := range opts {
		opt(t)
	}

	t.domain = addressLiteral(t.domain)
	t.sortHandlers()

	return t
}

// NewSMTP returns a transport connecting to an SMTP server through an
// iobuffer.Socket.
func NewSMTP(p iobuffer.SocketParams, opts ...Option) *Transport {
	return New(iobuffer.NewSocket(p), opts...)
}

func addressLiteral(domain string) string {
	ip := net.ParseIP(domain)
	switch {
	case ip == nil:
		return domain
	case ip.To4() != nil:
		return "[" + domain + "]"
	default:
		return "[IPv6:" + domain + "]"
	}
}

func (t *Transport) sortHandlers() {
	t.ordered = t.ordered[:0]
	for _, h := range t.handlers {
		t.ordered = append(t.ordered, h)
	}

	// map order is random, so start from keyword order
	sort.Slice(t.ordered, func(i, j int) bool {
		return t.ordered[i].Keyword() < t.ordered[j].Keyword()
	})
	sort.SliceStable(t.ordered, func(i, j int) bool {
		return t.ordered[i].PriorityOver(t.ordered[j].Keyword()) < 0
	})
}

// Handler returns the handler for the keyword, or nil.
func (t *Transport) Handler(keyword string) Handler {
	return t.handlers[strings.ToUpper(keyword)]
}

// Capabilities returns the keywords and parameters the server advertised
// in its last EHLO response. It is empty after a HELO.
func (t *Transport) Capabilities() map[string][]string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string][]string, len(t.capabilities))
	for k, v := range t.capabilities {
		out[k] = append([]string{}, v...)
	}
	return out
}

// HasCapability returns true if the server advertised the keyword.
func (t *Transport) HasCapability(keyword string) bool {
	_, ok := t.capabilities[strings.ToUpper(keyword)]
	return ok
}

// activeHandlers returns the handlers whose keyword the server advertised.
func (t *Transport) activeHandlers() []Handler {
	hs := make([]Handler, 0, len(t.ordered))
	for _, h := range t.ordered {
		if t.HasCapability(h.Keyword()) {
			hs = append(hs, h)
		}
	}
	return hs
}

// Buffer returns the underlying buffer.
func (t *Transport) Buffer() iobuffer.Buffer {
	return t.buffer
}

// LocalDomain returns the domain sent with EHLO.
func (t *Transport) LocalDomain() string {
	return t.domain
}

// IsStarted returns true while connected to the server.
func (t *Transport) IsStarted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

// RegisterPlugin binds l to the events of the transport. Listeners for send
// and exception events may start and stop the transport. Other listeners run
// while the transport is busy and must not call into it.
func (t *Transport) RegisterPlugin(l any) {
	t.events.Bind(l)
}

// Start connects, reads the greeting, and says EHLO, negotiating STARTTLS
// and authenticating as configured. It does nothing if already started.
func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	err := t.start(ctx)
	t.mu.Unlock()
	return t.events.Throw(t, err)
}

func (t *Transport) start(ctx context.Context) error {
	if t.started {
		return nil
	}

	evt := event.NewTransportChangeEvent(t)
	t.events.BeforeTransportStarted(evt)
	if evt.BubbleCancelled() {
		return nil
	}

	for _, h := range t.ordered {
		h.ResetState()
	}
	t.capabilities = nil
	t.commands = map[int]string{}

	if err := t.buffer.Initialize(ctx); err != nil {
		return t.wrap(err)
	}

	if err := t.handshake(ctx); err != nil {
		_ = t.buffer.Terminate()
		return err
	}

	t.started = true
	t.logger.Info("transport started", "transport", t.name, "domain", t.domain)
	t.events.TransportStarted(event.NewTransportChangeEvent(t))

	return nil
}

func (t *Transport) handshake(ctx context.Context) error {
	if _, err := t.ReadResponse(0, []int{220}); err != nil {
		return err
	}

	if err := t.hello(ctx, t.tlsMode != StartTLSNever); err != nil {
		return err
	}

	for _, h := range t.ordered {
		if params, ok := t.capabilities[h.Keyword()]; ok {
			h.SetKeywordParams(params)
		}
	}

	for _, h := range t.activeHandlers() {
		if err := h.AfterEHLO(ctx, t); err != nil {
			return err
		}
	}

	return nil
}

func (t *Transport) hello(ctx context.Context, tryTLS bool) error {
	t.capabilities = nil

	resp, err := t.executeCommand(ctx, "EHLO "+t.domain+"\r\n", []int{250}, nil)
	if err != nil {
		if _, err := t.executeCommand(ctx, "HELO "+t.domain+"\r\n", []int{250}, nil); err != nil {
			return err
		}

		if tryTLS && t.tlsMode == StartTLSRequired {
			return t.wrap(ErrTLSUnavailable)
		}
		return nil
	}

	t.capabilities = parseCapabilities(resp)
	if !tryTLS {
		return nil
	}

	if _, ok := t.capabilities["STARTTLS"]; !ok {
		if t.tlsMode == StartTLSRequired {
			return t.wrap(ErrTLSUnavailable)
		}
		return nil
	}

	if _, err := t.executeCommand(ctx, "STARTTLS\r\n", []int{220}, nil); err != nil {
		return err
	}

	starter, ok := t.buffer.(iobuffer.TLSStarter)
	if !ok {
		return t.wrap(iobuffer.ErrTLSUnsupported)
	}
	if err := starter.StartTLS(ctx); err != nil {
		return t.wrap(err)
	}

	return t.hello(ctx, false)
}

// Stop says QUIT and disconnects. Errors from QUIT are ignored.
func (t *Transport) Stop(ctx context.Context) error {
	t.mu.Lock()
	err := t.stop(ctx)
	t.mu.Unlock()
	return t.events.Throw(t, err)
}

func (t *Transport) stop(ctx context.Context) error {
	if !t.started {
		return nil
	}

	evt := event.NewTransportChangeEvent(t)
	t.events.BeforeTransportStopped(evt)
	if evt.BubbleCancelled() {
		return nil
	}

	_, _ = t.executeCommand(ctx, "QUIT\r\n", []int{221}, nil)

	t.started = false
	err := t.buffer.Terminate()
	t.logger.Info("transport stopped", "transport", t.name)
	if err != nil {
		return t.wrap(err)
	}

	t.events.TransportStopped(event.NewTransportChangeEvent(t))
	return nil
}

// Ping starts the transport if needed and sends NOOP. The transport is
// stopped if either fails.
func (t *Transport) Ping(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.start(ctx); err != nil || !t.started {
		return false
	}

	if _, err := t.executeCommand(ctx, "NOOP\r\n", []int{250}, nil); err != nil {
		_ = t.stop(ctx)
		return false
	}

	return true
}

// ExecuteCommand runs cmd through the active handlers and, unless one of them
// deals with it, writes it and reads the response.
func (t *Transport) ExecuteCommand(ctx context.Context, cmd string, codes ...int) (string, error) {
	return t.executeCommand(ctx, cmd, codes, nil)
}

func (t *Transport) executeCommand(ctx context.Context, cmd string, codes []int, failed *[]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	for _, h := range t.activeHandlers() {
		out, err := h.OnCommand(ctx, t, cmd, codes, failed)
		if err != nil {
			return "", err
		}
		if out.Handled() {
			return out.Response(), nil
		}
	}

	seq, err := t.WriteCommand(cmd, codes)
	if err != nil {
		return "", err
	}
	return t.ReadResponse(seq, codes)
}

// WriteCommand writes cmd and returns its sequence number.
func (t *Transport) WriteCommand(cmd string, codes []int) (int, error) {
	seq, err := t.buffer.WriteCommand(cmd)
	if err != nil {
		return 0, t.wrap(err)
	}

	line := strings.TrimRight(cmd, "\r\n")
	t.commands[seq] = line

	logged := line
	if strings.HasPrefix(strings.ToUpper(line), "AUTH ") {
		t.secret = true
		if i := strings.IndexByte(line[5:], ' '); i >= 0 {
			logged = line[:5+i] + " ***"
		}
	} else if t.secret {
		logged = "***"
	}
	t.logger.Debug("smtp command", "transport", t.name, "seq", seq, "command", logged)

	t.events.CommandSent(event.NewCommandEvent(t, cmd, codes))
	return seq, nil
}

// ReadResponse reads the response to the command with the given sequence
// number and checks its code against codes.
func (t *Transport) ReadResponse(seq int, codes []int) (string, error) {
	cmd := t.commands[seq]
	delete(t.commands, seq)

	var resp strings.Builder
	for {
		line, err := t.buffer.ReadLine(seq)
		if err != nil {
			return "", t.wrap(err)
		}

		resp.WriteString(line)
		if len(line) < 4 || line[3] != '-' {
			break
		}
	}

	r := resp.String()
	code := responseCode(r)
	if code != 334 {
		t.secret = false
	}
	valid := validCode(code, codes)

	t.logger.Debug("smtp response", "transport", t.name, "seq", seq, "response", strings.TrimRight(r, "\r\n"))
	t.events.ResponseReceived(event.NewResponseEvent(t, r, valid))

	if !valid {
		return r, &ResponseError{
			Command:  cmd,
			Expected: codes,
			Code:     code,
			Response: strings.TrimRight(r, "\r\n"),
		}
	}

	return r, nil
}

func (t *Transport) wrap(err error) error {
	return transport.WrapError(t.name, err)
}

// Send delivers msg, starting the transport first if needed. The To and Cc
// recipients share one transaction and each Bcc recipient gets a transaction
// of their own, during which the Bcc field names only them. Refused
// recipients are returned, not treated as errors.
func (t *Transport) Send(ctx context.Context, msg transport.Message) (int, []string, error) {
	if err := t.Start(ctx); err != nil || !t.IsStarted() {
		return 0, nil, err
	}

	evt := event.NewSendEvent(t, msg)
	t.events.BeforeSendPerformed(evt)
	if evt.BubbleCancelled() {
		return 0, nil, nil
	}

	h := msg.GetHeader()
	rp, err := transport.ReversePath(h)
	if err != nil {
		return 0, nil, t.events.Throw(t, err)
	}

	tos := header.AddressesOf(transport.Addresses(h, header.To, header.Cc))
	bccs := header.AddressesOf(transport.Addresses(h, header.Bcc))

	var failed []string
	t.mu.Lock()
	sent, err := t.sendAll(ctx, msg, rp, tos, bccs, &failed)
	t.mu.Unlock()
	if err != nil {
		return sent, failed, t.events.Throw(t, err)
	}

	evt.Result = transport.SendResult(sent, len(tos)+len(bccs))
	evt.FailedRecipients = failed
	t.events.SendPerformed(evt)

	if g, ok := msg.(interface{ GenerateID() string }); ok {
		g.GenerateID()
	}

	return sent, failed, nil
}

func (t *Transport) sendAll(
	ctx context.Context,
	msg transport.Message,
	rp string,
	tos, bccs []string,
	failed *[]string,
) (int, error) {
	h := msg.GetHeader()
	restore := h.Detach(header.Bcc)
	defer restore()

	sent := 0
	if len(tos) > 0 {
		n, err := t.transact(ctx, msg, rp, tos, failed)
		sent += n
		if err != nil {
			return sent, err
		}
	}

	for _, bcc := range bccs {
		n, err := t.transactBcc(ctx, msg, rp, bcc, failed)
		sent += n
		if err != nil {
			return sent, err
		}
	}

	return sent, nil
}

// transactBcc sends msg to a single Bcc recipient with only that recipient
// named in the Bcc header.
func (t *Transport) transactBcc(
	ctx context.Context,
	msg transport.Message,
	rp string,
	bcc string,
	failed *[]string,
) (int, error) {
	h := msg.GetHeader()
	defer h.Delete(header.Bcc)

	if err := h.SetBcc(bcc); err != nil {
		return 0, err
	}

	return t.transact(ctx, msg, rp, []string{bcc}, failed)
}

// transact runs one MAIL, RCPT, DATA cycle and returns how many of rcpts were
// accepted.
func (t *Transport) transact(
	ctx context.Context,
	msg transport.Message,
	rp string,
	rcpts []string,
	failed *[]string,
) (int, error) {
	var data bytes.Buffer
	if _, err := msg.WriteTo(&data); err != nil {
		return 0, err
	}

	env := &Envelope{
		ReversePath: rp,
		Recipients:  rcpts,
		Size:        data.Len(),
		EightBit:    eightBit(msg, data.Bytes()),
		UTF8:        !isASCII(rp) || !allASCII(rcpts),
	}

	if env.UTF8 && requiresSMTPUTF8(t.encoder) && !t.HasCapability("SMTPUTF8") {
		return 0, ErrSMTPUTF8Unsupported
	}

	from, err := t.encoder.Encode(rp)
	if err != nil {
		return 0, err
	}

	var params []string
	for _, h := range t.activeHandlers() {
		ps, err := h.MailParams(env)
		if err != nil {
			return 0, err
		}
		params = append(params, ps...)
	}

	if _, err := t.executeCommand(ctx, "MAIL FROM:<"+from+">"+paramString(params)+"\r\n", []int{250}, failed); err != nil {
		return 0, err
	}

	sent := 0
	for _, rcpt := range rcpts {
		err := t.rcpt(ctx, env, rcpt, failed)
		var re *ResponseError
		switch {
		case err == nil:
			sent++
		case errors.As(err, &re), errors.Is(err, ErrAddressEncoding):
			t.logger.Warn("recipient refused", "transport", t.name, "recipient", rcpt, "error", err)
			*failed = append(*failed, rcpt)
		default:
			return sent, err
		}
	}

	if sent == 0 {
		_, err := t.executeCommand(ctx, "RSET\r\n", []int{250}, failed)
		return 0, err
	}

	before := len(*failed)
	_, err = t.executeCommand(ctx, "DATA\r\n", []int{354}, failed)
	sent -= len(*failed) - before
	if err != nil && sent <= 0 {
		_, err = t.executeCommand(ctx, "RSET\r\n", []int{250}, failed)
		return 0, err
	} else if err != nil {
		return 0, err
	}

	if err := t.streamMessage(ctx, data.Bytes()); err != nil {
		return 0, err
	}

	return sent, nil
}

func (t *Transport) rcpt(ctx context.Context, env *Envelope, rcpt string, failed *[]string) error {
	to, err := t.encoder.Encode(rcpt)
	if err != nil {
		return err
	}

	var params []string
	for _, h := range t.activeHandlers() {
		params = append(params, h.RcptParams(env)...)
	}

	_, err = t.executeCommand(ctx, "RCPT TO:<"+to+">"+paramString(params)+"\r\n", []int{250, 251, 252}, failed)
	return err
}

// streamMessage writes the rendered message with leading dots doubled and
// ends the data with a lone dot. A dot after a bare LF is doubled too, since
// 8bit and binary bodies are not always made canonical.
func (t *Transport) streamMessage(ctx context.Context, data []byte) error {
	if err := t.buffer.SetWriteTranslations(map[string]string{"\n.": "\n.."}); err != nil {
		return t.wrap(err)
	}

	// the first line is a header field, never a dot
	if _, err := t.buffer.Write(data); err != nil {
		_ = t.buffer.SetWriteTranslations(nil)
		return t.wrap(err)
	}

	if err := t.buffer.SetWriteTranslations(nil); err != nil {
		return t.wrap(err)
	}

	_, err := t.executeCommand(ctx, "\r\n.\r\n", []int{250}, nil)
	return err
}

func paramString(params []string) string {
	if len(params) == 0 {
		return ""
	}
	return " " + strings.Join(params, " ")
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func allASCII(ss []string) bool {
	for _, s := range ss {
		if !isASCII(s) {
			return false
		}
	}
	return true
}

// String returns a description of the transport for log entries.
func (t *Transport) String() string {
	return fmt.Sprintf("%s transport (%s)", t.name, t.domain)
}
