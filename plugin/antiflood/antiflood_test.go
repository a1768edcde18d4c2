package antiflood_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/swiftmailer/swiftmailer-sub001/plugin/antiflood"
	"github.com/swiftmailer/swiftmailer-sub001/transport/event"
)

type source struct {
	log []string
}

func (s *source) IsStarted() bool { return true }

func (s *source) Start(ctx context.Context) error {
	s.log = append(s.log, "start")
	return nil
}

func (s *source) Stop(ctx context.Context) error {
	s.log = append(s.log, "stop")
	return nil
}

func TestPlugin(t *testing.T) {
	t.Parallel()

	var slept []time.Duration
	p := antiflood.New(2, time.Second)
	p.Sleeper = func(d time.Duration) { slept = append(slept, d) }

	src := &source{}
	for i := 0; i < 5; i++ {
		p.SendPerformed(event.NewSendEvent(src, nil))
	}

	assert.Equal(t, []string{"stop", "start", "stop", "start"}, src.log)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, slept)
}

func TestPlugin_NoSleep(t *testing.T) {
	t.Parallel()

	p := antiflood.New(1, 0)
	p.Sleeper = func(time.Duration) { t.Fatal("no sleep expected") }

	src := &source{}
	p.SendPerformed(event.NewSendEvent(src, nil))
	assert.Equal(t, []string{"stop", "start"}, src.log)
}
