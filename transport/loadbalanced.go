package transport

import (
	"context"
)

// LoadBalanced sends each message through the next of several transports in
// turn. A transport that fails is stopped and left out of the rotation until
// the LoadBalanced transport is started again.
type LoadBalanced struct {
	pool

	// pick chooses the transport to try next and forget is called when it
	// is killed. Failover replaces both.
	pick   func() Transport
	forget func()

	// retryOnZero moves on to the next transport when one accepts no
	// recipients.
	retryOnZero bool

	last Transport
}

var _ Transport = (*LoadBalanced)(nil)

// NewLoadBalanced returns a transport rotating through ts.
func NewLoadBalanced(ts ...Transport) *LoadBalanced {
	lb := &LoadBalanced{}
	lb.live = append([]Transport(nil), ts...)
	lb.pick = lb.next
	lb.forget = func() {}
	lb.retryOnZero = true
	return lb
}

// Transports returns every transport, live or dead.
func (lb *LoadBalanced) Transports() []Transport {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	return append(append([]Transport(nil), lb.live...), lb.dead...)
}

// LastUsed returns the transport that sent the last message, or nil if the
// last send failed.
func (lb *LoadBalanced) LastUsed() Transport {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.last
}

// IsStarted returns true while any transport is live.
func (lb *LoadBalanced) IsStarted() bool {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return len(lb.live) > 0
}

// Start returns every dead transport to the rotation. The transports
// themselves are started when first used.
func (lb *LoadBalanced) Start(ctx context.Context) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.revive()
	return nil
}

// Stop stops every live transport.
func (lb *LoadBalanced) Stop(ctx context.Context) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	var first error
	for _, t := range lb.live {
		if err := t.Stop(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Ping pings every live transport, killing those that fail. It returns true
// if any transport is still live.
func (lb *LoadBalanced) Ping(ctx context.Context) bool {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	for _, t := range append([]Transport(nil), lb.live...) {
		if !t.Ping(ctx) {
			lb.kill(ctx, t)
		}
	}
	return len(lb.live) > 0
}

// Send tries each live transport in turn until one accepts a recipient, or
// for Failover until one returns no error. A transport returning an error is
// killed. ErrNoTransports is returned once every transport is dead.
func (lb *LoadBalanced) Send(ctx context.Context, msg Message) (int, []string, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.last = nil

	var (
		sent   int
		failed []string
	)
	for i, n := 0, len(lb.live); i < n; i++ {
		t := lb.pick()
		if t == nil {
			break
		}

		var err error
		sent, failed, err = lb.try(ctx, t, msg)
		if transportFailed(err) {
			lb.kill(ctx, t)
			lb.forget()
			continue
		} else if err != nil {
			return 0, failed, err
		}

		if sent > 0 || !lb.retryOnZero {
			lb.last = t
			return sent, failed, nil
		}
	}

	if len(lb.live) == 0 {
		return 0, failed, ErrNoTransports
	}
	return sent, failed, nil
}

func (lb *LoadBalanced) try(ctx context.Context, t Transport, msg Message) (int, []string, error) {
	if !t.IsStarted() {
		if err := t.Start(ctx); err != nil {
			return 0, nil, err
		}
	}
	return t.Send(ctx, msg)
}

// RegisterPlugin registers l with every transport.
func (lb *LoadBalanced) RegisterPlugin(l any) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	for _, t := range append(append([]Transport(nil), lb.live...), lb.dead...) {
		t.RegisterPlugin(l)
	}
}
