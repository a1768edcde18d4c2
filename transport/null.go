package transport

import (
	"context"

	"github.com/swiftmailer/swiftmailer-sub001/transport/event"
)

// Null pretends to send messages. It accepts every recipient and delivers
// nothing, which is handy in tests and development.
type Null struct {
	events event.Dispatcher
}

var _ Transport = (*Null)(nil)

// NewNull returns a Null transport.
func NewNull() *Null {
	return &Null{}
}

// IsStarted always returns true.
func (t *Null) IsStarted() bool { return true }

// Start does nothing.
func (t *Null) Start(ctx context.Context) error { return nil }

// Stop does nothing.
func (t *Null) Stop(ctx context.Context) error { return nil }

// Ping always returns true.
func (t *Null) Ping(ctx context.Context) bool { return true }

// Send returns the number of To, Cc, and Bcc recipients.
func (t *Null) Send(ctx context.Context, msg Message) (int, []string, error) {
	evt := event.NewSendEvent(t, msg)
	t.events.BeforeSendPerformed(evt)
	if evt.BubbleCancelled() {
		return 0, nil, nil
	}

	count := len(Recipients(msg.GetHeader()))

	evt.Result = event.ResultSuccess
	t.events.SendPerformed(evt)

	return count, nil, nil
}

// RegisterPlugin binds l to the send events.
func (t *Null) RegisterPlugin(l any) {
	t.events.Bind(l)
}
