package event_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/swiftmailer/swiftmailer-sub001/transport/event"
)

type source struct{ started bool }

func (s *source) IsStarted() bool                 { return s.started }
func (s *source) Start(ctx context.Context) error { s.started = true; return nil }
func (s *source) Stop(ctx context.Context) error  { s.started = false; return nil }

type recorder struct {
	name   string
	calls  *[]string
	cancel bool
}

func (r *recorder) BeforeSendPerformed(evt *event.SendEvent) {
	*r.calls = append(*r.calls, r.name+":before")
	if r.cancel {
		evt.CancelBubble()
	}
}

func (r *recorder) SendPerformed(evt *event.SendEvent) {
	*r.calls = append(*r.calls, r.name+":after:"+evt.Result.String())
}

type swallower struct{}

func (swallower) ExceptionThrown(evt *event.TransportExceptionEvent) {
	evt.CancelBubble()
}

func TestDispatcher_Order(t *testing.T) {
	t.Parallel()

	var calls []string
	d := &event.Dispatcher{}
	a := &recorder{name: "a", calls: &calls}
	d.Bind(a)
	d.Bind(&recorder{name: "b", calls: &calls})
	d.Bind(a)
	assert.Equal(t, 2, d.Len())

	evt := event.NewSendEvent(&source{}, nil)
	d.BeforeSendPerformed(evt)
	evt.Result = event.ResultSuccess
	d.SendPerformed(evt)

	assert.Equal(t, []string{"a:before", "b:before", "a:after:success", "b:after:success"}, calls)
}

func TestDispatcher_CancelBubble(t *testing.T) {
	t.Parallel()

	var calls []string
	d := &event.Dispatcher{}
	d.Bind(&recorder{name: "a", calls: &calls, cancel: true})
	d.Bind(&recorder{name: "b", calls: &calls})

	evt := event.NewSendEvent(&source{}, nil)
	d.BeforeSendPerformed(evt)

	assert.True(t, evt.BubbleCancelled())
	assert.Equal(t, []string{"a:before"}, calls)
}

func TestDispatcher_OnlyMatchingListeners(t *testing.T) {
	t.Parallel()

	var calls []string
	d := &event.Dispatcher{}
	d.Bind(&recorder{name: "a", calls: &calls})

	d.CommandSent(event.NewCommandEvent(&source{}, "NOOP\r\n", []int{250}))
	d.TransportStarted(event.NewTransportChangeEvent(&source{}))

	assert.Empty(t, calls)
}

func TestDispatcher_Throw(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")

	d := &event.Dispatcher{}
	assert.ErrorIs(t, d.Throw(&source{}, boom), boom)
	assert.NoError(t, d.Throw(&source{}, nil))

	d.Bind(swallower{})
	assert.NoError(t, d.Throw(&source{}, boom))

	var nilD *event.Dispatcher
	nilD.SendPerformed(event.NewSendEvent(&source{}, nil))
}
