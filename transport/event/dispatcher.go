package event

import (
	"reflect"
	"sync"
)

// Dispatcher delivers events to bound listeners. The zero value is ready to
// use and it is safe for concurrent use.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners []any
}

// Bind adds a listener. A listener already bound is not added again.
func (d *Dispatcher) Bind(l any) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if reflect.TypeOf(l).Comparable() {
		for _, bound := range d.listeners {
			if bound == l {
				return
			}
		}
	}
	d.listeners = append(d.listeners, l)
}

// Len returns the number of listeners bound.
func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners)
}

func dispatch[L any](d *Dispatcher, evt Event, call func(L)) {
	if d == nil {
		return
	}

	d.mu.RLock()
	ls := append([]any(nil), d.listeners...)
	d.mu.RUnlock()

	for _, l := range ls {
		if evt.BubbleCancelled() {
			return
		}
		if tl, ok := l.(L); ok {
			call(tl)
		}
	}
}

// BeforeSendPerformed dispatches to every SendListener.
func (d *Dispatcher) BeforeSendPerformed(evt *SendEvent) {
	dispatch(d, evt, func(l SendListener) { l.BeforeSendPerformed(evt) })
}

// SendPerformed dispatches to every SendListener.
func (d *Dispatcher) SendPerformed(evt *SendEvent) {
	dispatch(d, evt, func(l SendListener) { l.SendPerformed(evt) })
}

// CommandSent dispatches to every CommandListener.
func (d *Dispatcher) CommandSent(evt *CommandEvent) {
	dispatch(d, evt, func(l CommandListener) { l.CommandSent(evt) })
}

// ResponseReceived dispatches to every ResponseListener.
func (d *Dispatcher) ResponseReceived(evt *ResponseEvent) {
	dispatch(d, evt, func(l ResponseListener) { l.ResponseReceived(evt) })
}

// BeforeTransportStarted dispatches to every TransportChangeListener.
func (d *Dispatcher) BeforeTransportStarted(evt *TransportChangeEvent) {
	dispatch(d, evt, func(l TransportChangeListener) { l.BeforeTransportStarted(evt) })
}

// TransportStarted dispatches to every TransportChangeListener.
func (d *Dispatcher) TransportStarted(evt *TransportChangeEvent) {
	dispatch(d, evt, func(l TransportChangeListener) { l.TransportStarted(evt) })
}

// BeforeTransportStopped dispatches to every TransportChangeListener.
func (d *Dispatcher) BeforeTransportStopped(evt *TransportChangeEvent) {
	dispatch(d, evt, func(l TransportChangeListener) { l.BeforeTransportStopped(evt) })
}

// TransportStopped dispatches to every TransportChangeListener.
func (d *Dispatcher) TransportStopped(evt *TransportChangeEvent) {
	dispatch(d, evt, func(l TransportChangeListener) { l.TransportStopped(evt) })
}

// ExceptionThrown dispatches to every TransportExceptionListener.
func (d *Dispatcher) ExceptionThrown(evt *TransportExceptionEvent) {
	dispatch(d, evt, func(l TransportExceptionListener) { l.ExceptionThrown(evt) })
}

// Throw raises a TransportExceptionEvent for err and returns the error the
// event holds afterward, which a listener may have replaced. It returns nil if
// a listener cancelled the event.
func (d *Dispatcher) Throw(src Source, err error) error {
	if err == nil {
		return nil
	}

	evt := NewTransportExceptionEvent(src, err)
	d.ExceptionThrown(evt)
	if evt.BubbleCancelled() {
		return nil
	}
	return evt.Err
}
