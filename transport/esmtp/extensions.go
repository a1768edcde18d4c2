package esmtp

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/swiftmailer/swiftmailer-sub001/message"
	"github.com/swiftmailer/swiftmailer-sub001/message/transfer"
	"github.com/swiftmailer/swiftmailer-sub001/message/walker"
	"github.com/swiftmailer/swiftmailer-sub001/transport"
)

// ErrMessageTooLarge is returned by Send when the message is larger than the
// SIZE the server advertised.
var ErrMessageTooLarge = errors.New("message exceeds the maximum size accepted by the server")

// SizeHandler declares the message size with MAIL FROM and refuses to send
// a message the server has said it will not accept.
type SizeHandler struct {
	BaseHandler
}

// NewSizeHandler returns a handler for SIZE.
func NewSizeHandler() *SizeHandler {
	return &SizeHandler{}
}

// Keyword returns "SIZE".
func (h *SizeHandler) Keyword() string { return "SIZE" }

// Limit returns the maximum size advertised, or 0 for no limit.
func (h *SizeHandler) Limit() int {
	if len(h.Params) == 0 {
		return 0
	}
	n, err := strconv.Atoi(h.Params[0])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// MailParams returns SIZE=n, or ErrMessageTooLarge.
func (h *SizeHandler) MailParams(env *Envelope) ([]string, error) {
	if limit := h.Limit(); limit > 0 && env.Size > limit {
		return nil, fmt.Errorf("%w (%d > %d)", ErrMessageTooLarge, env.Size, limit)
	}
	return []string{"SIZE=" + strconv.Itoa(env.Size)}, nil
}

// EightBitMIMEHandler declares 8-bit message bodies.
type EightBitMIMEHandler struct {
	BaseHandler
}

// NewEightBitMIMEHandler returns a handler for 8BITMIME.
func NewEightBitMIMEHandler() *EightBitMIMEHandler {
	return &EightBitMIMEHandler{}
}

// Keyword returns "8BITMIME".
func (h *EightBitMIMEHandler) Keyword() string { return "8BITMIME" }

// MailParams returns BODY=8BITMIME for a message with 8-bit data.
func (h *EightBitMIMEHandler) MailParams(env *Envelope) ([]string, error) {
	if env.EightBit {
		return []string{"BODY=8BITMIME"}, nil
	}
	return nil, nil
}

// SMTPUTF8Handler declares addresses with characters outside ASCII.
type SMTPUTF8Handler struct {
	BaseHandler
}

// NewSMTPUTF8Handler returns a handler for SMTPUTF8.
func NewSMTPUTF8Handler() *SMTPUTF8Handler {
	return &SMTPUTF8Handler{}
}

// Keyword returns "SMTPUTF8".
func (h *SMTPUTF8Handler) Keyword() string { return "SMTPUTF8" }

// MailParams returns SMTPUTF8 when an address needs it.
func (h *SMTPUTF8Handler) MailParams(env *Envelope) ([]string, error) {
	if env.UTF8 {
		return []string{"SMTPUTF8"}, nil
	}
	return nil, nil
}

var errFound = errors.New("found")

// eightBit returns true if any part of msg declares an 8-bit transfer
// encoding or the rendered data holds bytes outside ASCII.
func eightBit(msg transport.Message, data []byte) bool {
	if p, ok := msg.(message.Part); ok {
		var w walker.Parts = func(_, _ int, part message.Part) error {
			cte, _ := part.GetHeader().GetTransferEncoding()
			if cte == transfer.Bit8 || cte == transfer.Binary {
				return errFound
			}
			return nil
		}
		if errors.Is(w.Walk(p), errFound) {
			return true
		}
	}

	return bytes.IndexFunc(data, func(r rune) bool { return r >= 0x80 }) >= 0
}
