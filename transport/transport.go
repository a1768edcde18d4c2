// Package transport defines how messages are delivered and provides the
// transports that only combine or stand in for other transports.
//
// A Transport is started, sends any number of messages, and is stopped.
// Send returns the number of recipients the destination accepted along with
// the addresses it refused, so a partly failed send is not an error. Errors
// are kept for whatever prevented a send from being attempted at all.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/swiftmailer/swiftmailer-sub001/transport/event"
)

// Errors returned by transports.
var (
	// ErrNoReversePath is returned by Send when the message has no
	// Return-Path, Sender, or From address to use as the envelope sender.
	ErrNoReversePath = errors.New("cannot send message without a sender address")

	// ErrNoTransports is returned by LoadBalanced and Failover when every
	// transport they hold has failed.
	ErrNoTransports = errors.New("all transports failed, or no transports available")
)

// Message is a message a transport can send.
type Message = event.Message

// Transport delivers messages.
type Transport interface {
	event.Source

	// Ping checks the transport is still usable, starting it if needed. A
	// transport that fails the check is stopped.
	Ping(ctx context.Context) bool

	// Send delivers msg, starting the transport first if needed. It returns
	// how many recipients were accepted and which were refused.
	Send(ctx context.Context, msg Message) (int, []string, error)

	// RegisterPlugin binds a listener to the events of the transport.
	RegisterPlugin(l any)
}

// Error is a failure of the transport itself, such as a lost connection,
// rather than a refusal by the destination.
type Error struct {
	// Transport names the transport, such as "smtp" or "sendmail".
	Transport string

	Err error
}

// Error returns the message of the underlying error, prefixed with the
// transport name.
func (e *Error) Error() string {
	return fmt.Sprintf("%s transport: %v", e.Transport, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// WrapError wraps err in an *Error for the named transport. It returns nil
// for a nil err and leaves an *Error as it is.
func WrapError(name string, err error) error {
	if err == nil {
		return nil
	}

	var te *Error
	if errors.As(err, &te) {
		return err
	}
	return &Error{Transport: name, Err: err}
}

// SendResult returns the result a SendEvent should carry after sending to
// total recipients, of which sent were accepted.
func SendResult(sent, total int) event.Result {
	switch {
	case sent > 0 && sent == total:
		return event.ResultSuccess
	case sent > 0:
		return event.ResultTentative
	}
	return event.ResultFailed
}
