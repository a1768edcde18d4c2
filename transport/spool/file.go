package spool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/swiftmailer/swiftmailer-sub001/message"
	"github.com/swiftmailer/swiftmailer-sub001/transport"
)

// Suffixes of the files kept by FileSpool.
const (
	MessageSuffix = ".message"
	SendingSuffix = ".sending"
	FailedSuffix  = ".failed"
)

// DefaultRecoverTimeout is how long a message may be in the middle of being
// sent before FileSpool assumes the sender died and queues it again.
const DefaultRecoverTimeout = 15 * time.Minute

// FileSpool keeps each message in a file of its own in a directory. Messages
// are claimed for sending by renaming, so several processes may flush the
// same directory.
type FileSpool struct {
	Limits

	// RecoverTimeout is used by FlushQueue when recovering messages left
	// behind by a sender that died. It defaults to DefaultRecoverTimeout.
	RecoverTimeout time.Duration

	dir string
}

var _ Spool = (*FileSpool)(nil)

// NewFileSpool returns a FileSpool in dir, creating the directory if needed.
func NewFileSpool(dir string) (*FileSpool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create spool directory: %w", err)
	}
	return &FileSpool{dir: dir}, nil
}

// Dir returns the spool directory.
func (s *FileSpool) Dir() string {
	return s.dir
}

func newRecord(msg transport.Message) (*record, error) {
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		return nil, err
	}

	now := time.Now()
	return &record{
		ID:     ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Queued: now,
		Data:   buf.Bytes(),
	}, nil
}

func readRecord(b []byte) (*record, transport.Message, error) {
	rec := &record{}
	if _, err := rec.UnmarshalMsg(b); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}

	msg, err := message.Parse(bytes.NewReader(rec.Data))
	if err != nil {
		return rec, nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}

	return rec, msg, nil
}

func writeFile(path string, b []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// QueueMessage renders msg into a new file.
func (s *FileSpool) QueueMessage(ctx context.Context, msg transport.Message) error {
	rec, err := newRecord(msg)
	if err != nil {
		return err
	}

	b, err := rec.MarshalMsg(nil)
	if err != nil {
		return err
	}

	return writeFile(filepath.Join(s.dir, rec.ID+MessageSuffix), b)
}

func (s *FileSpool) glob(suffix string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			names = append(names, filepath.Join(s.dir, e.Name()))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Len returns the number of messages waiting to be sent.
func (s *FileSpool) Len() (int, error) {
	names, err := s.glob(MessageSuffix)
	return len(names), err
}

// Failed returns the paths of messages that used up their retries.
func (s *FileSpool) Failed() ([]string, error) {
	return s.glob(FailedSuffix)
}

// Recover queues again every message that has been in the middle of being
// sent for longer than timeout.
func (s *FileSpool) Recover(timeout time.Duration) error {
	names, err := s.glob(SendingSuffix)
	if err != nil {
		return err
	}

	for _, name := range names {
		info, err := os.Stat(name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		} else if err != nil {
			return err
		}

		if time.Since(info.ModTime()) < timeout {
			continue
		}

		if err := os.Rename(name, strings.TrimSuffix(name, SendingSuffix)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	return nil
}

// FlushQueue recovers stale messages and then sends queued messages, oldest
// first. A message that fails is queued again with its attempt counted, or
// moved aside once it reaches the retry limit, and the flush stops with the
// error.
func (s *FileSpool) FlushQueue(ctx context.Context, t transport.Transport) (int, []string, error) {
	timeout := s.RecoverTimeout
	if timeout <= 0 {
		timeout = DefaultRecoverTimeout
	}
	if err := s.Recover(timeout); err != nil {
		return 0, nil, err
	}

	names, err := s.glob(MessageSuffix)
	if err != nil || len(names) == 0 {
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

	for _, name := range names {
		sending := name + SendingSuffix
		if err := os.Rename(name, sending); err != nil {
			// claimed by another process
			continue
		}

		n, refused, err := s.send(ctx, t, name, sending)
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

func (s *FileSpool) send(ctx context.Context, t transport.Transport, name, sending string) (int, []string, error) {
	b, err := os.ReadFile(sending)
	if err != nil {
		return 0, nil, err
	}

	rec, msg, err := readRecord(b)
	if err != nil {
		_ = os.Rename(sending, strings.TrimSuffix(name, MessageSuffix)+FailedSuffix)
		return 0, nil, fmt.Errorf("%s: %w", filepath.Base(name), err)
	}

	n, refused, err := t.Send(ctx, msg)
	if err == nil {
		return n, refused, os.Remove(sending)
	}

	rec.Attempts++
	dest := name
	if rec.Attempts >= s.retryLimit() {
		dest = strings.TrimSuffix(name, MessageSuffix) + FailedSuffix
	}

	if b, merr := rec.MarshalMsg(nil); merr == nil {
		_ = os.WriteFile(sending, b, 0o600)
	}
	_ = os.Rename(sending, dest)

	if werr := s.wait(ctx); werr != nil {
		return 0, nil, werr
	}

	return 0, nil, err
}
