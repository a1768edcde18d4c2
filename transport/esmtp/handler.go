package esmtp

import (
	"context"

	"github.com/swiftmailer/swiftmailer-sub001/transport/iobuffer"
)

// Agent is the view of the transport given to handlers and authenticators.
type Agent interface {
	// ExecuteCommand writes cmd and reads the response, which must have one
	// of the codes given, if any are given.
	ExecuteCommand(ctx context.Context, cmd string, codes ...int) (string, error)

	// WriteCommand writes cmd without reading the response. The response is
	// read later by passing the returned sequence number to ReadResponse.
	WriteCommand(cmd string, codes []int) (int, error)

	// ReadResponse reads the response to the command with the given sequence
	// number, which must have one of the codes given, if any are given.
	ReadResponse(seq int, codes []int) (string, error)

	// Buffer returns the underlying byte channel.
	Buffer() iobuffer.Buffer

	// LocalDomain returns the domain sent with EHLO.
	LocalDomain() string
}

// Envelope describes the mail transaction a handler is asked to add
// parameters to.
type Envelope struct {
	ReversePath string
	Recipients  []string

	// Size is the size of the rendered message in bytes.
	Size int

	// EightBit is true if the message holds 8-bit data.
	EightBit bool

	// UTF8 is true if an address holds characters outside ASCII.
	UTF8 bool
}

// Handler adds support for one ESMTP extension. The transport keeps its
// handlers by keyword and only uses a handler whose keyword the server
// advertised in its EHLO response.
type Handler interface {
	// Keyword returns the EHLO keyword of the extension, such as "AUTH".
	Keyword() string

	// SetKeywordParams receives the parameters advertised with the keyword.
	SetKeywordParams(params []string)

	// AfterEHLO runs once the EHLO exchange is complete.
	AfterEHLO(ctx context.Context, a Agent) error

	// MailParams returns parameters to add to MAIL FROM. An error stops the
	// send.
	MailParams(env *Envelope) ([]string, error)

	// RcptParams returns parameters to add to RCPT TO.
	RcptParams(env *Envelope) []string

	// OnCommand is offered every command before it is written. The outcome
	// says whether the handler dealt with the command itself. Addresses the
	// handler learns were refused are appended to failed, which may be nil.
	OnCommand(ctx context.Context, a Agent, cmd string, codes []int, failed *[]string) (CommandOutcome, error)

	// PriorityOver returns a negative number if this handler must see
	// commands before the handler for keyword, a positive number if after,
	// and 0 if it does not matter.
	PriorityOver(keyword string) int

	// ResetState forgets everything learned from the last connection.
	ResetState()
}

type outcomeKind int

const (
	outcomeNone outcomeKind = iota
	outcomeSent
	outcomeIntercepted
	outcomeDeferred
)

// CommandOutcome is what a handler did with a command offered to OnCommand.
// The zero value, NotHandled, lets the command go on to the next handler and
// then to the server.
type CommandOutcome struct {
	kind     outcomeKind
	response string
}

// NotHandled means the handler left the command alone.
var NotHandled = CommandOutcome{}

// Sent means the handler wrote the command and read the response itself.
func Sent(response string) CommandOutcome {
	return CommandOutcome{kind: outcomeSent, response: response}
}

// Intercepted means the command must not be written. The response stands in
// for the one the server would have given.
func Intercepted(response string) CommandOutcome {
	return CommandOutcome{kind: outcomeIntercepted, response: response}
}

// Deferred means the handler wrote the command and will read its response
// later.
func Deferred() CommandOutcome {
	return CommandOutcome{kind: outcomeDeferred}
}

// Handled returns true for every outcome but NotHandled.
func (o CommandOutcome) Handled() bool {
	return o.kind != outcomeNone
}

// IsDeferred returns true if the response will be read later.
func (o CommandOutcome) IsDeferred() bool {
	return o.kind == outcomeDeferred
}

// Response returns the response of a Sent or Intercepted outcome.
func (o CommandOutcome) Response() string {
	return o.response
}

// String names the outcome.
func (o CommandOutcome) String() string {
	switch o.kind {
	case outcomeSent:
		return "sent"
	case outcomeIntercepted:
		return "intercepted"
	case outcomeDeferred:
		return "deferred"
	}
	return "not handled"
}

// BaseHandler implements every Handler method but Keyword with a method that
// does nothing. Handlers embed it and override what they need.
type BaseHandler struct {
	// Params holds the parameters advertised with the keyword.
	Params []string
}

// SetKeywordParams stores the parameters in Params.
func (b *BaseHandler) SetKeywordParams(params []string) {
	b.Params = params
}

// AfterEHLO does nothing.
func (b *BaseHandler) AfterEHLO(ctx context.Context, a Agent) error {
	return nil
}

// MailParams returns nothing.
func (b *BaseHandler) MailParams(env *Envelope) ([]string, error) {
	return nil, nil
}

// RcptParams returns nothing.
func (b *BaseHandler) RcptParams(env *Envelope) []string {
	return nil
}

// OnCommand returns NotHandled.
func (b *BaseHandler) OnCommand(ctx context.Context, a Agent, cmd string, codes []int, failed *[]string) (CommandOutcome, error) {
	return NotHandled, nil
}

// PriorityOver returns 0.
func (b *BaseHandler) PriorityOver(keyword string) int {
	return 0
}

// ResetState clears Params.
func (b *BaseHandler) ResetState() {
	b.Params = nil
}
