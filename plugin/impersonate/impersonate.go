// Package impersonate sends every message with a fixed envelope sender.
package impersonate

import (
	"github.com/swiftmailer/swiftmailer-sub001/message/header"
	"github.com/swiftmailer/swiftmailer-sub001/transport/event"
)

// OriginalReturnPath holds the Return-Path while it is replaced.
const OriginalReturnPath = "X-Swift-Return-Path"

// Plugin sets the Return-Path of each message to Sender for the send and
// restores it after.
type Plugin struct {
	Sender string
}

// New returns a Plugin using sender as the envelope sender.
func New(sender string) *Plugin {
	return &Plugin{Sender: sender}
}

// BeforeSendPerformed saves the Return-Path and replaces it.
func (p *Plugin) BeforeSendPerformed(evt *event.SendEvent) {
	h := evt.Message.GetHeader()

	if rp, err := h.GetReturnPath(); err == nil {
		h.Set(OriginalReturnPath, rp)
	}
	_ = h.SetReturnPath(p.Sender)
}

// SendPerformed restores the Return-Path.
func (p *Plugin) SendPerformed(evt *event.SendEvent) {
	h := evt.Message.GetHeader()

	rp, err := h.Get(OriginalReturnPath)
	if err != nil {
		h.Delete(header.ReturnPath)
		return
	}

	h.Delete(OriginalReturnPath)
	_ = h.SetReturnPath(rp)
}
