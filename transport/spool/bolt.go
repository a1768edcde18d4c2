package spool

import (
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/swiftmailer/swiftmailer-sub001/transport"
)

var (
	queueBucket  = []byte("queue")
	failedBucket = []byte("failed")
)

// BoltSpool keeps messages in a bbolt database, keyed by an id that sorts
// in the order the messages were queued.
type BoltSpool struct {
	Limits

	db *bolt.DB
}

var _ Spool = (*BoltSpool)(nil)

// OpenBoltSpool opens or creates the database at path.
func OpenBoltSpool(path string) (*BoltSpool, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("unable to open spool database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{queueBucket, failedBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltSpool{db: db}, nil
}

// Close closes the database.
func (s *BoltSpool) Close() error {
	return s.db.Close()
}

func (s *BoltSpool) count(bucket []byte) (int, error) {
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucket).Stats().KeyN
		return nil
	})
	return n, err
}

// Len returns the number of messages waiting to be sent.
func (s *BoltSpool) Len() (int, error) {
	return s.count(queueBucket)
}

// FailedLen returns the number of messages that used up their retries.
func (s *BoltSpool) FailedLen() (int, error) {
	return s.count(failedBucket)
}

// QueueMessage renders msg and stores it.
func (s *BoltSpool) QueueMessage(ctx context.Context, msg transport.Message) error {
	rec, err := newRecord(msg)
	if err != nil {
		return err
	}

	b, err := rec.MarshalMsg(nil)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(queueBucket).Put([]byte(rec.ID), b)
	})
}

// FlushQueue sends queued messages, oldest first. A message that fails has
// its attempt counted, or is moved to the failed bucket once it reaches the
// retry limit, and the flush stops with the error.
func (s *BoltSpool) FlushQueue(ctx context.Context, t transport.Transport) (int, []string, error) {
	var keys [][]byte
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(queueBucket).ForEach(func(k, _ []byte) error {
			keys = append(keys, append([]byte{}, k...))
			return nil
		})
	})
	if err != nil || len(keys) == 0 {
		return 0, nil, err
	}

	if err := startTransport(ctx, t); err != nil {
		return 0, nil, err
	}

	var (
		started = time.Now()
		count   int
		sent    int
		failed  []string
	)

	for _, key := range keys {
		n, refused, err := s.send(ctx, t, key)
		if err != nil {
			return sent, failed, err
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

func (s *BoltSpool) send(ctx context.Context, t transport.Transport, key []byte) (int, []string, error) {
	var b []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(queueBucket).Get(key); v != nil {
			b = append([]byte{}, v...)
		}
		return nil
	})
	if err != nil || b == nil {
		return 0, nil, err
	}

	rec, msg, err := readRecord(b)
	if err != nil {
		_ = s.moveToFailed(key, b)
		return 0, nil, fmt.Errorf("%s: %w", key, err)
	}

	n, refused, err := t.Send(ctx, msg)
	if err == nil {
		return n, refused, s.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(queueBucket).Delete(key)
		})
	}

	rec.Attempts++
	nb, merr := rec.MarshalMsg(nil)
	if merr != nil {
		return 0, nil, merr
	}

	if rec.Attempts >= s.retryLimit() {
		_ = s.moveToFailed(key, nb)
	} else {
		_ = s.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(queueBucket).Put(key, nb)
		})
	}

	if werr := s.wait(ctx); werr != nil {
		return 0, nil, werr
	}

	return 0, nil, err
}

func (s *BoltSpool) moveToFailed(key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(failedBucket).Put(key, value); err != nil {
			return err
		}
		return tx.Bucket(queueBucket).Delete(key)
	})
}
