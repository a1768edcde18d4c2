// Package antiflood reconnects a transport after a number of messages, for
// servers that limit how much may be sent over one connection.
package antiflood

import (
	"context"
	"sync"
	"time"

	"github.com/swiftmailer/swiftmailer-sub001/transport/event"
)

// Plugin stops and restarts the transport every Threshold messages, waiting
// Sleep in between.
type Plugin struct {
	Threshold int
	Sleep     time.Duration

	// Sleeper waits. It defaults to time.Sleep.
	Sleeper func(time.Duration)

	mu      sync.Mutex
	counter int
}

// New returns a Plugin.
func New(threshold int, sleep time.Duration) *Plugin {
	return &Plugin{Threshold: threshold, Sleep: sleep}
}

// BeforeSendPerformed does nothing.
func (p *Plugin) BeforeSendPerformed(evt *event.SendEvent) {}

// SendPerformed counts the message and reconnects once the threshold is
// reached.
func (p *Plugin) SendPerformed(evt *event.SendEvent) {
	p.mu.Lock()
	p.counter++
	if p.Threshold <= 0 || p.counter < p.Threshold {
		p.mu.Unlock()
		return
	}
	p.counter = 0
	p.mu.Unlock()

	ctx := context.Background()
	src := evt.Source()
	_ = src.Stop(ctx)

	if p.Sleep > 0 {
		sleep := p.Sleeper
		if sleep == nil {
			sleep = time.Sleep
		}
		sleep(p.Sleep)
	}

	_ = src.Start(ctx)
}
