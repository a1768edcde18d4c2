package esmtp

import (
	"context"
	"errors"
	"strings"
)

// PipeliningHandler writes MAIL FROM and RCPT TO without waiting for their
// responses. The responses are read when the next command that is not
// pipelined, normally DATA, is sent.
type PipeliningHandler struct {
	BaseHandler

	pending []pendingCommand
}

type pendingCommand struct {
	seq       int
	codes     []int
	recipient string
}

// NewPipeliningHandler returns a handler for PIPELINING.
func NewPipeliningHandler() *PipeliningHandler {
	return &PipeliningHandler{}
}

// Keyword returns "PIPELINING".
func (h *PipeliningHandler) Keyword() string { return "PIPELINING" }

// PriorityOver puts PIPELINING ahead of every other handler.
func (h *PipeliningHandler) PriorityOver(keyword string) int {
	if keyword == h.Keyword() {
		return 0
	}
	return -1
}

// ResetState forgets responses still pending.
func (h *PipeliningHandler) ResetState() {
	h.BaseHandler.ResetState()
	h.pending = nil
}

// OnCommand defers MAIL and RCPT. Any other command is written and then the
// pending responses are read before its own. Refused recipients are added to
// failed. A refused MAIL FROM is returned as the error.
func (h *PipeliningHandler) OnCommand(
	ctx context.Context,
	a Agent,
	cmd string,
	codes []int,
	failed *[]string,
) (CommandOutcome, error) {
	verb := strings.ToUpper(cmd)
	switch {
	case strings.HasPrefix(verb, "MAIL FROM:"):
		seq, err := a.WriteCommand(cmd, codes)
		if err != nil {
			return NotHandled, err
		}
		h.pending = append(h.pending, pendingCommand{seq: seq, codes: codes})
		return Deferred(), nil

	case strings.HasPrefix(verb, "RCPT TO:"):
		seq, err := a.WriteCommand(cmd, codes)
		if err != nil {
			return NotHandled, err
		}
		h.pending = append(h.pending, pendingCommand{seq: seq, codes: codes, recipient: recipientOf(cmd)})
		return Deferred(), nil
	}

	if len(h.pending) == 0 {
		return NotHandled, nil
	}

	seq, err := a.WriteCommand(cmd, codes)
	if err != nil {
		return NotHandled, err
	}

	pending := h.pending
	h.pending = nil

	var mailErr error
	for _, p := range pending {
		_, err := a.ReadResponse(p.seq, p.codes)
		var re *ResponseError
		switch {
		case err == nil:
		case !errors.As(err, &re):
			return NotHandled, err
		case p.recipient != "":
			if failed != nil {
				*failed = append(*failed, p.recipient)
			}
		case mailErr == nil:
			mailErr = err
		}
	}

	resp, err := a.ReadResponse(seq, codes)
	if mailErr != nil {
		return Sent(resp), mailErr
	}
	if err != nil {
		return Sent(resp), err
	}

	return Sent(resp), nil
}

func recipientOf(cmd string) string {
	i := strings.IndexByte(cmd, '<')
	j := strings.IndexByte(cmd, '>')
	if i < 0 || j < i {
		return ""
	}
	return cmd[i+1 : j]
}
