// Package logger records the conversation between a transport and its
// server, for debugging failed sends.
package logger

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/swiftmailer/swiftmailer-sub001/transport/event"
)

// DefaultSize is the number of entries kept when no size is given.
const DefaultSize = 50

// Error is a transport error with the recent log attached.
type Error struct {
	Err error
	Log string
}

// Error returns the message of the underlying error followed by the log.
func (e *Error) Error() string {
	return e.Err.Error() + "\nLog data:\n" + e.Log
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Plugin keeps the last entries of the conversation in memory and writes
// each entry to a slog.Logger as well. Errors returned by the transport get
// the kept entries attached.
type Plugin struct {
	logger *slog.Logger
	size   int

	mu      sync.Mutex
	entries []string
}

// New returns a Plugin keeping up to size entries. A nil logger means
// slog.Default().
func New(l *slog.Logger, size int) *Plugin {
	if l == nil {
		l = slog.Default()
	}
	if size <= 0 {
		size = DefaultSize
	}
	return &Plugin{logger: l, size: size}
}

func (p *Plugin) add(entry string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.entries = append(p.entries, entry)
	if over := len(p.entries) - p.size; over > 0 {
		p.entries = append(p.entries[:0], p.entries[over:]...)
	}
}

// Dump returns the kept entries, one per line.
func (p *Plugin) Dump() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.Join(p.entries, "\n")
}

// Clear forgets the kept entries.
func (p *Plugin) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = nil
}

func name(src event.Source) string {
	if s, ok := src.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", src)
}

// CommandSent records the command.
func (p *Plugin) CommandSent(evt *event.CommandEvent) {
	cmd := strings.TrimRight(evt.Command, "\r\n")
	p.add(">> " + cmd)
	p.logger.Debug("command sent", "command", cmd)
}

// ResponseReceived records the response.
func (p *Plugin) ResponseReceived(evt *event.ResponseEvent) {
	resp := strings.TrimRight(evt.Response, "\r\n")
	p.add("<< " + resp)
	p.logger.Debug("response received", "response", resp, "valid", evt.Valid)
}

// BeforeTransportStarted records the start.
func (p *Plugin) BeforeTransportStarted(evt *event.TransportChangeEvent) {
	p.add("++ Starting " + name(evt.Source()))
}

// TransportStarted records the start.
func (p *Plugin) TransportStarted(evt *event.TransportChangeEvent) {
	n := name(evt.Source())
	p.add("++ " + n + " started")
	p.logger.Info("transport started", "transport", n)
}

// BeforeTransportStopped records the stop.
func (p *Plugin) BeforeTransportStopped(evt *event.TransportChangeEvent) {
	p.add("++ Stopping " + name(evt.Source()))
}

// TransportStopped records the stop.
func (p *Plugin) TransportStopped(evt *event.TransportChangeEvent) {
	n := name(evt.Source())
	p.add("++ " + n + " stopped")
	p.logger.Info("transport stopped", "transport", n)
}

// ExceptionThrown records the error and attaches the log to it.
func (p *Plugin) ExceptionThrown(evt *event.TransportExceptionEvent) {
	p.add("!! " + evt.Err.Error())
	p.logger.Error("transport error", "transport", name(evt.Source()), "error", evt.Err)
	evt.Err = &Error{Err: evt.Err, Log: p.Dump()}
}
