// Package event defines the events a transport raises while it works and the
// listeners that plugins implement to receive them.
//
// A listener is any value implementing one or more of the listener
// interfaces. It is bound to a Dispatcher, which calls it for each kind of
// event it listens for, in the order the listeners were bound. A listener may
// cancel the bubble of an event, after which no further listener sees it.
package event

import (
	"context"
	"io"

	"github.com/swiftmailer/swiftmailer-sub001/message/header"
)

// Message is what a transport sends: anything that renders itself and has a
// header the transport can read and temporarily change.
type Message interface {
	io.WriterTo
	GetHeader() *header.Header
}

// Source is the transport that raised an event.
type Source interface {
	IsStarted() bool
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Event is implemented by every event.
type Event interface {
	// Source returns the transport the event came from.
	Source() Source

	// CancelBubble stops the event from reaching any further listeners.
	CancelBubble()

	// BubbleCancelled returns true after CancelBubble has been called.
	BubbleCancelled() bool
}

type base struct {
	source    Source
	cancelled bool
}

func (b *base) Source() Source        { return b.source }
func (b *base) CancelBubble()         { b.cancelled = true }
func (b *base) BubbleCancelled() bool { return b.cancelled }

// Result is the outcome of a send.
type Result int

// The results a SendEvent may carry.
const (
	ResultPending Result = iota
	ResultSpooled
	ResultSuccess
	ResultTentative
	ResultFailed
)

// String returns a lowercase name for the result.
func (r Result) String() string {
	switch r {
	case ResultPending:
		return "pending"
	case ResultSpooled:
		return "spooled"
	case ResultSuccess:
		return "success"
	case ResultTentative:
		return "tentative"
	case ResultFailed:
		return "failed"
	}
	return "unknown"
}

// SendEvent is raised before and after a message is sent.
type SendEvent struct {
	base

	// Message is the message being sent. Listeners running before the send
	// may change it, so long as they put it back afterward.
	Message Message

	// Result is ResultPending before the send.
	Result Result

	// FailedRecipients lists the addresses the server refused.
	FailedRecipients []string
}

// NewSendEvent returns a pending SendEvent.
func NewSendEvent(src Source, msg Message) *SendEvent {
	return &SendEvent{base: base{source: src}, Message: msg}
}

// CommandEvent is raised after a command is written to the server.
type CommandEvent struct {
	base

	// Command is the command as written, with its line break.
	Command string

	// SuccessCodes are the response codes that will be accepted.
	SuccessCodes []int
}

// NewCommandEvent returns a CommandEvent.
func NewCommandEvent(src Source, cmd string, codes []int) *CommandEvent {
	return &CommandEvent{base: base{source: src}, Command: cmd, SuccessCodes: codes}
}

// ResponseEvent is raised after a response is read from the server.
type ResponseEvent struct {
	base

	// Response is the full response, possibly several lines.
	Response string

	// Valid is true if the response code was one that was expected.
	Valid bool
}

// NewResponseEvent returns a ResponseEvent.
func NewResponseEvent(src Source, resp string, valid bool) *ResponseEvent {
	return &ResponseEvent{base: base{source: src}, Response: resp, Valid: valid}
}

// TransportChangeEvent is raised around the start and stop of a transport.
type TransportChangeEvent struct {
	base
}

// NewTransportChangeEvent returns a TransportChangeEvent.
func NewTransportChangeEvent(src Source) *TransportChangeEvent {
	return &TransportChangeEvent{base: base{source: src}}
}

// TransportExceptionEvent is raised when a transport is about to return an
// error. Cancelling its bubble swallows the error.
type TransportExceptionEvent struct {
	base

	// Err is the error. A listener may replace it with one that wraps it.
	Err error
}

// NewTransportExceptionEvent returns a TransportExceptionEvent.
func NewTransportExceptionEvent(src Source, err error) *TransportExceptionEvent {
	return &TransportExceptionEvent{base: base{source: src}, Err: err}
}
