package spool

import (
	"context"
	"sync"
	"time"

	"github.com/swiftmailer/swiftmailer-sub001/transport"
)

// MemorySpool keeps messages in memory, in the order queued.
type MemorySpool struct {
	Limits

	mu    sync.Mutex
	queue []transport.Message
}

var _ Spool = (*MemorySpool)(nil)

// NewMemorySpool returns an empty MemorySpool.
func NewMemorySpool() *MemorySpool {
	return &MemorySpool{}
}

// Len returns the number of messages queued.
func (s *MemorySpool) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// QueueMessage adds msg to the queue. The message is kept as it is, so
// changes made to it before the flush are sent.
func (s *MemorySpool) QueueMessage(ctx context.Context, msg transport.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, msg)
	return nil
}

// FlushQueue sends the queued messages. A message whose send fails is moved
// to the back of the queue and the flush continues until the retry limit is
// used up, at which point the last error is returned.
func (s *MemorySpool) FlushQueue(ctx context.Context, t transport.Transport) (int, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return 0, nil, nil
	}

	if err := startTransport(ctx, t); err != nil {
		return 0, nil, err
	}

	var (
		started = time.Now()
		retries = s.retryLimit()
		count   int
		sent    int
		failed  []string
	)

	for len(s.queue) > 0 {
		msg := s.queue[0]
		s.queue = s.queue[1:]

		n, refused, err := t.Send(ctx, msg)
		if err != nil {
			s.queue = append(s.queue, msg)
			if retries--; retries <= 0 {
				return sent, failed, err
			}
			if err := s.wait(ctx); err != nil {
				return sent, failed, err
			}
			continue
		}

		sent += n
		failed = append(failed, refused...)
		count++

		if s.done(count, started, time.Now()) {
			break
		}
	}

	return sent, failed, nil
}
