package transport

import (
	"context"
)

// Failover sends every message through one transport until it fails, then
// moves on to the next. A failed transport is stopped and left out until the
// Failover transport is started again.
type Failover struct {
	*LoadBalanced

	current Transport
}

var _ Transport = (*Failover)(nil)

// NewFailover returns a transport using ts in order of preference.
func NewFailover(ts ...Transport) *Failover {
	f := &Failover{LoadBalanced: NewLoadBalanced(ts...)}
	f.pick = f.pinned
	f.forget = func() { f.current = nil }
	f.retryOnZero = false
	return f
}

// pinned returns the transport in use, picking the next one if there is
// none.
func (f *Failover) pinned() Transport {
	if f.current == nil {
		f.current = f.next()
	}
	return f.current
}

// Ping pings the transport in use. If it fails, it is killed and the next
// transport is tried. It returns true if any transport is still live.
func (f *Failover) Ping(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, n := 0, len(f.live); i < n; i++ {
		t := f.pinned()
		if t == nil {
			break
		}
		if t.Ping(ctx) {
			return true
		}
		f.kill(ctx, t)
		f.forget()
	}
	return len(f.live) > 0
}
