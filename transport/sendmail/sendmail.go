// Package sendmail delivers messages through a local sendmail binary.
//
// With -bs on the command line, the binary is spoken to over SMTP on its
// standard input and output, and all of the esmtp package applies. With -t,
// the rendered message is written to the binary, which reads the recipients
// from the header.
package sendmail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/swiftmailer/swiftmailer-sub001/transport"
	"github.com/swiftmailer/swiftmailer-sub001/transport/esmtp"
	"github.com/swiftmailer/swiftmailer-sub001/transport/event"
	"github.com/swiftmailer/swiftmailer-sub001/transport/iobuffer"
)

// DefaultCommand is the command used when none is given.
const DefaultCommand = "/usr/sbin/sendmail -bs"

// ErrUnsupportedCommand is returned when the command has neither -bs nor -t.
var ErrUnsupportedCommand = errors.New("unsupported sendmail command flags, must be one of -bs or -t")

// Transport runs sendmail to deliver each message.
type Transport struct {
	command string
	smtp    *esmtp.Transport
	logger  *slog.Logger
	events  event.Dispatcher

	mu sync.Mutex
}

var _ transport.Transport = (*Transport)(nil)

// New returns a transport running command. The options are used for the
// SMTP session in -bs mode.
func New(command string, opts ...esmtp.Option) *Transport {
	if command == "" {
		command = DefaultCommand
	}

	t := &Transport{command: command, logger: slog.Default()}
	if hasFlag(command, "-bs") {
		opts = append([]esmtp.Option{esmtp.WithName("sendmail")}, opts...)
		t.smtp = esmtp.New(iobuffer.NewProcess(command), opts...)
	}

	return t
}

func hasFlag(command, flag string) bool {
	for _, f := range strings.Fields(command) {
		if f == flag {
			return true
		}
	}
	return false
}

// Command returns the command line.
func (t *Transport) Command() string {
	return t.command
}

// SMTP returns the SMTP session used in -bs mode, or nil.
func (t *Transport) SMTP() *esmtp.Transport {
	return t.smtp
}

// IsStarted returns true when the SMTP session is open in -bs mode. In -t
// mode there is nothing to start and it always returns true.
func (t *Transport) IsStarted() bool {
	if t.smtp != nil {
		return t.smtp.IsStarted()
	}
	return true
}

// Start starts the SMTP session in -bs mode.
func (t *Transport) Start(ctx context.Context) error {
	if t.smtp != nil {
		return t.smtp.Start(ctx)
	}
	return nil
}

// Stop ends the SMTP session in -bs mode.
func (t *Transport) Stop(ctx context.Context) error {
	if t.smtp != nil {
		return t.smtp.Stop(ctx)
	}
	return nil
}

// Ping checks the SMTP session in -bs mode.
func (t *Transport) Ping(ctx context.Context) bool {
	if t.smtp != nil {
		return t.smtp.Ping(ctx)
	}
	return true
}

// RegisterPlugin binds l to the events of the transport.
func (t *Transport) RegisterPlugin(l any) {
	if t.smtp != nil {
		t.smtp.RegisterPlugin(l)
		return
	}
	t.events.Bind(l)
}

// Send delivers msg. In -t mode, every To, Cc, and Bcc recipient counts as
// accepted once sendmail exits successfully.
func (t *Transport) Send(ctx context.Context, msg transport.Message) (int, []string, error) {
	if t.smtp != nil {
		return t.smtp.Send(ctx, msg)
	}

	if !hasFlag(t.command, "-t") {
		return 0, nil, t.events.Throw(t, transport.WrapError("sendmail",
			fmt.Errorf("%w [%s]", ErrUnsupportedCommand, t.command)))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	evt := event.NewSendEvent(t, msg)
	t.events.BeforeSendPerformed(evt)
	if evt.BubbleCancelled() {
		return 0, nil, nil
	}

	h := msg.GetHeader()
	count := len(transport.Recipients(h))

	command := t.command
	if !strings.Contains(command, " -f") {
		rp, err := transport.ReversePath(h)
		if err != nil {
			return 0, nil, t.events.Throw(t, err)
		}
		command += " -f" + rp
	}

	if err := t.pipe(ctx, command, msg); err != nil {
		evt.Result = event.ResultFailed
		t.events.SendPerformed(evt)
		return 0, nil, t.events.Throw(t, transport.WrapError("sendmail", err))
	}

	evt.Result = event.ResultSuccess
	t.events.SendPerformed(evt)
	t.logger.Info("message piped to sendmail", "command", command, "recipients", count)

	return count, nil, nil
}

// pipe runs command and writes msg to it with bare line feeds, doubling
// leading dots unless -i or -oi is given.
func (t *Transport) pipe(ctx context.Context, command string, msg transport.Message) error {
	p := iobuffer.NewProcess(command)
	if err := p.Initialize(ctx); err != nil {
		return err
	}

	tr := map[string]string{"\r\n": "\n"}
	if !strings.Contains(command, " -i") && !strings.Contains(command, " -oi") {
		tr["\n."] = "\n.."
	}

	if err := p.SetWriteTranslations(tr); err != nil {
		_ = p.Terminate()
		return err
	}

	if _, err := msg.WriteTo(p); err != nil {
		_ = p.Terminate()
		return err
	}

	return p.Terminate()
}
