package transport

import (
	"context"
	"errors"
	"sync"
)

// pool holds the live and dead transports of LoadBalanced and Failover.
// Live transports rotate: the next one is taken from the front and put on the
// back.
type pool struct {
	mu   sync.Mutex
	live []Transport
	dead []Transport
}

func (p *pool) next() Transport {
	if len(p.live) == 0 {
		return nil
	}

	t := p.live[0]
	p.live = append(p.live[1:], t)
	return t
}

// kill moves t to the dead list, stopping it.
func (p *pool) kill(ctx context.Context, t Transport) {
	for i, lt := range p.live {
		if lt == t {
			p.live = append(p.live[:i:i], p.live[i+1:]...)
			_ = t.Stop(ctx)
			p.dead = append(p.dead, t)
			return
		}
	}
}

// revive returns every dead transport to rotation.
func (p *pool) revive() {
	p.live = append(p.live, p.dead...)
	p.dead = nil
}

// transportFailed reports whether err means the transport should be taken
// out of rotation. Cancellation by the caller does not count.
func transportFailed(err error) bool {
	return err != nil &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}
