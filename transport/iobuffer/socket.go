package iobuffer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Encryption modes for a Socket.
const (
	EncryptionNone = ""

	// EncryptionTLS opens the connection with TLS from the start.
	EncryptionTLS = "tls"

	// EncryptionSSL is another name for EncryptionTLS.
	EncryptionSSL = "ssl"
)

// DefaultTimeout is how long a Socket waits to connect and for each line of
// a response.
const DefaultTimeout = 30 * time.Second

// SocketParams configure a Socket.
type SocketParams struct {
	Host string
	Port int

	// Encryption is EncryptionNone, EncryptionTLS, or EncryptionSSL.
	Encryption string

	// Timeout applies to connecting and to every read. Zero means
	// DefaultTimeout and a negative value means no timeout.
	Timeout time.Duration

	// SourceIP is the local address to connect from.
	SourceIP string

	// TLSConfig is used for TLS and STARTTLS. The ServerName is filled in
	// from Host when empty.
	TLSConfig *tls.Config

	// LookupMX connects to the mail exchanger of Host instead of Host.
	LookupMX bool

	// Nameservers are used for LookupMX, as host:port.
	Nameservers []string
}

// Socket is a Buffer over a TCP connection.
type Socket struct {
	stream

	params SocketParams
	host   string
	conn   net.Conn
	tls    bool
}

var (
	_ Buffer     = (*Socket)(nil)
	_ TLSStarter = (*Socket)(nil)
)

// NewSocket returns a Socket that connects when initialized.
func NewSocket(p SocketParams) *Socket {
	if p.Timeout == 0 {
		p.Timeout = DefaultTimeout
	}
	return &Socket{params: p}
}

// Params returns the parameters of the socket.
func (s *Socket) Params() SocketParams {
	return s.params
}

// Host returns the host connected to, which differs from the configured host
// after an MX lookup.
func (s *Socket) Host() string {
	return s.host
}

// IsTLS returns true while the connection is encrypted.
func (s *Socket) IsTLS() bool {
	return s.tls
}

func (s *Socket) tlsConfig() *tls.Config {
	cfg := s.params.TLSConfig
	if cfg == nil {
		cfg = &tls.Config{}
	}
	if cfg.ServerName == "" {
		cfg = cfg.Clone()
		cfg.ServerName = s.host
	}
	return cfg
}

// Initialize connects.
func (s *Socket) Initialize(ctx context.Context) error {
	timeout := s.params.Timeout
	if timeout < 0 {
		timeout = 0
	}

	s.host = s.params.Host
	if s.params.LookupMX {
		mx, err := LookupMX(ctx, s.params.Host, s.params.Nameservers, timeout)
		if err != nil {
			return err
		}
		s.host = mx
	}

	d := &net.Dialer{Timeout: timeout}
	if s.params.SourceIP != "" {
		ip := net.ParseIP(s.params.SourceIP)
		if ip == nil {
			return fmt.Errorf("invalid source address %q", s.params.SourceIP)
		}
		d.LocalAddr = &net.TCPAddr{IP: ip}
	}

	addr := net.JoinHostPort(s.host, strconv.Itoa(s.params.Port))
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connection could not be established with host %s: %w", addr, err)
	}

	s.tls = false
	switch s.params.Encryption {
	case EncryptionTLS, EncryptionSSL:
		tc := tls.Client(conn, s.tlsConfig())
		if err := tc.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return fmt.Errorf("TLS handshake with %s failed: %w", addr, err)
		}
		conn = tc
		s.tls = true
	case EncryptionNone:
	default:
		_ = conn.Close()
		return fmt.Errorf("unknown encryption %q", s.params.Encryption)
	}

	s.conn = conn
	s.open(conn, conn)
	return nil
}

// StartTLS upgrades the open connection to TLS.
func (s *Socket) StartTLS(ctx context.Context) error {
	if s.conn == nil {
		return ErrNotInitialized
	}
	if err := s.Flush(); err != nil {
		return err
	}

	tc := tls.Client(s.conn, s.tlsConfig())
	if err := tc.HandshakeContext(ctx); err != nil {
		return fmt.Errorf("TLS handshake failed: %w", err)
	}

	s.conn = tc
	s.tls = true
	s.open(tc, tc)
	return nil
}

// ReadLine reads a line, waiting no longer than the timeout.
func (s *Socket) ReadLine(seq int) (string, error) {
	if s.conn == nil {
		return "", ErrNotInitialized
	}

	if s.params.Timeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.params.Timeout)); err != nil {
			return "", err
		}
	}

	line, err := s.readLine()
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return line, fmt.Errorf("connection to %s timed out: %w", s.host, err)
	}
	return line, err
}

// Terminate closes the connection.
func (s *Socket) Terminate() error {
	if s.conn == nil {
		return nil
	}

	err := s.conn.Close()
	s.conn = nil
	s.tls = false
	s.close()
	return err
}
