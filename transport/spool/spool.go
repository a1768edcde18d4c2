// Package spool queues messages for later delivery.
//
// The spool Transport accepts every message by handing it to a Spool. Some
// other process, such as the flush command, later calls FlushQueue to send
// everything queued through a real transport.
package spool

import (
	"context"
	"errors"
	"time"

	"github.com/swiftmailer/swiftmailer-sub001/transport"
	"github.com/swiftmailer/swiftmailer-sub001/transport/event"
)

// DefaultRetryLimit is used when Limits.RetryLimit is 0.
const DefaultRetryLimit = 3

// ErrCorruptRecord is returned for a queued message that cannot be read back.
var ErrCorruptRecord = errors.New("spooled message cannot be read")

// Spool stores messages until they are flushed.
type Spool interface {
	// QueueMessage stores msg.
	QueueMessage(ctx context.Context, msg transport.Message) error

	// FlushQueue sends queued messages through t, starting it first if
	// needed. It returns the number of recipients accepted and those
	// refused. Messages sent, even partly, leave the queue.
	FlushQueue(ctx context.Context, t transport.Transport) (int, []string, error)
}

// Limits bound a single FlushQueue call. The zero value has no message or
// time limit and the default retry limit.
type Limits struct {
	// MessageLimit stops the flush after this many messages.
	MessageLimit int

	// TimeLimit stops the flush once this much time has passed.
	TimeLimit time.Duration

	// RetryLimit is the number of failed attempts allowed per message.
	RetryLimit int

	// RetryDelay is waited after a failed attempt.
	RetryDelay time.Duration
}

func (l Limits) retryLimit() int {
	if l.RetryLimit <= 0 {
		return DefaultRetryLimit
	}
	return l.RetryLimit
}

// done returns true once count messages have been sent since started.
func (l Limits) done(count int, started, now time.Time) bool {
	if l.MessageLimit > 0 && count >= l.MessageLimit {
		return true
	}
	return l.TimeLimit > 0 && now.Sub(started) >= l.TimeLimit
}

func (l Limits) wait(ctx context.Context) error {
	if l.RetryDelay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(l.RetryDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func startTransport(ctx context.Context, t transport.Transport) error {
	if t.IsStarted() {
		return nil
	}
	return t.Start(ctx)
}

// Transport queues every message in a Spool instead of sending it.
type Transport struct {
	spool  Spool
	events event.Dispatcher
}

var _ transport.Transport = (*Transport)(nil)

// New returns a transport queuing messages in s.
func New(s Spool) *Transport {
	return &Transport{spool: s}
}

// Spool returns the spool messages are queued in.
func (t *Transport) Spool() Spool {
	return t.spool
}

// IsStarted always returns true.
func (t *Transport) IsStarted() bool { return true }

// Start does nothing.
func (t *Transport) Start(ctx context.Context) error { return nil }

// Stop does nothing.
func (t *Transport) Stop(ctx context.Context) error { return nil }

// Ping always returns true.
func (t *Transport) Ping(ctx context.Context) bool { return true }

// RegisterPlugin binds l to the send events.
func (t *Transport) RegisterPlugin(l any) {
	t.events.Bind(l)
}

// Send queues msg and reports it as one accepted message.
func (t *Transport) Send(ctx context.Context, msg transport.Message) (int, []string, error) {
	evt := event.NewSendEvent(t, msg)
	t.events.BeforeSendPerformed(evt)
	if evt.BubbleCancelled() {
		return 0, nil, nil
	}

	if err := t.spool.QueueMessage(ctx, msg); err != nil {
		return 0, nil, t.events.Throw(t, transport.WrapError("spool", err))
	}

	evt.Result = event.ResultSpooled
	t.events.SendPerformed(evt)

	return 1, nil, nil
}
