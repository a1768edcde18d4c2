// Package iobuffer provides the byte channels transports talk over: a network
// socket and the pipes of a local mail program.
package iobuffer

import (
	"bufio"
	"context"
	"errors"
	"io"
)

// Errors returned by buffers.
var (
	// ErrNotInitialized is returned when a buffer is used before Initialize
	// or after Terminate.
	ErrNotInitialized = errors.New("buffer is not initialized")

	// ErrTLSUnsupported is returned by StartTLS on a buffer that cannot be
	// upgraded.
	ErrTLSUnsupported = errors.New("buffer does not support TLS")
)

// Buffer is a duplex byte channel.
//
// Commands are written with WriteCommand, which returns a sequence number,
// and the lines of the response are read with ReadLine. Responses arrive in
// the order the commands were written, so the sequence number names which
// command a line answers without changing what is read. Bulk data, such as a
// message, is written with Write.
//
// Everything written passes through the write translations, which replace
// byte sequences on the way out. They are used for dot stuffing and line
// ending conversion.
type Buffer interface {
	io.Writer

	// Initialize opens the channel.
	Initialize(ctx context.Context) error

	// Terminate closes the channel.
	Terminate() error

	// WriteCommand writes and flushes cmd and returns its sequence number.
	WriteCommand(cmd string) (int, error)

	// ReadLine reads one line, including its line break.
	ReadLine(seq int) (string, error)

	// SetWriteTranslations flushes anything held back by the current
	// translations and replaces them. A nil map turns translation off.
	SetWriteTranslations(t map[string]string) error

	// Flush writes out anything buffered.
	Flush() error
}

// TLSStarter is a Buffer that can be upgraded to TLS after it is opened.
type TLSStarter interface {
	StartTLS(ctx context.Context) error
}

// stream is the part of a buffer shared by every implementation.
type stream struct {
	r   *bufio.Reader
	w   *bufio.Writer
	tr  translator
	seq int
}

func (s *stream) open(r io.Reader, w io.Writer) {
	s.r = bufio.NewReader(r)
	s.w = bufio.NewWriter(w)
	s.tr = translator{w: s.w, from: s.tr.from, to: s.tr.to}
}

func (s *stream) close() {
	s.r, s.w = nil, nil
	s.tr.w = nil
	s.tr.pending = nil
}

// Write writes p through the translations.
func (s *stream) Write(p []byte) (int, error) {
	if s.w == nil {
		return 0, ErrNotInitialized
	}
	return s.tr.Write(p)
}

// WriteCommand writes and flushes cmd.
func (s *stream) WriteCommand(cmd string) (int, error) {
	if _, err := s.Write([]byte(cmd)); err != nil {
		return 0, err
	}
	if err := s.Flush(); err != nil {
		return 0, err
	}

	s.seq++
	return s.seq, nil
}

func (s *stream) readLine() (string, error) {
	if s.r == nil {
		return "", ErrNotInitialized
	}

	line, err := s.r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return line, err
	}
	return line, nil
}

// SetWriteTranslations replaces the translations.
func (s *stream) SetWriteTranslations(t map[string]string) error {
	if s.w != nil {
		if err := s.tr.flush(); err != nil {
			return err
		}
	}
	s.tr.set(t)
	return nil
}

// Flush writes out anything held back or buffered.
func (s *stream) Flush() error {
	if s.w == nil {
		return ErrNotInitialized
	}
	if err := s.tr.flush(); err != nil {
		return err
	}
	return s.w.Flush()
}
