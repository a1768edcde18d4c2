// Package smtptest runs a scripted SMTP server on the loopback interface for
// use in tests.
package smtptest

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/swiftmailer/swiftmailer-sub001/transport/iobuffer"
)

// Server answers SMTP commands with canned replies. Every connection gets
// the same script.
type Server struct {
	// Greeting is sent on connect. It defaults to
	// "220 mail.example.com ESMTP".
	Greeting string

	// Extensions are advertised in the EHLO reply, one per line.
	Extensions []string

	// Replies overrides the reply to a command. A key matches a command line
	// equal to it or, failing that, the longest key the line starts with.
	// The key "." gives the reply to the end of the message data. A reply
	// may hold several lines separated by CRLF.
	Replies map[string]string

	ln net.Listener

	mu       sync.Mutex
	commands []string
	messages []string
	conns    int
}

// Start listens on a random loopback port and serves until the test ends.
func Start(t testing.TB, s *Server) *Server {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("smtptest: listen: %v", err)
	}
	s.ln = ln
	t.Cleanup(func() { _ = ln.Close() })

	go s.serve()

	return s
}

func (s *Server) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.conns++
		s.mu.Unlock()

		go s.handle(conn)
	}
}

// Host returns the host the server listens on.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.ln.Addr().String())
	return host
}

// Port returns the port the server listens on.
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.ln.Addr().String())
	n, _ := strconv.Atoi(port)
	return n
}

// Params returns socket parameters for connecting to the server.
func (s *Server) Params() iobuffer.SocketParams {
	return iobuffer.SocketParams{Host: s.Host(), Port: s.Port()}
}

// Commands returns every command line received so far, without line breaks.
// Message data is not included.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.commands...)
}

// Messages returns the data of every message received, exactly as sent but
// for the final line holding the lone dot.
func (s *Server) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.messages...)
}

// Connections returns the number of connections accepted.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

func (s *Server) reply(cmd string) string {
	if r, ok := s.Replies[cmd]; ok {
		return r
	}

	best := ""
	for k := range s.Replies {
		if strings.HasPrefix(cmd, k) && len(k) > len(best) {
			best = k
		}
	}
	if best != "" {
		return s.Replies[best]
	}

	verb := strings.ToUpper(cmd)
	if i := strings.IndexAny(verb, " :"); i >= 0 {
		verb = verb[:i]
	}

	switch verb {
	case "EHLO":
		lines := append([]string{"mail.example.com"}, s.Extensions...)
		for i := range lines {
			if i < len(lines)-1 {
				lines[i] = "250-" + lines[i]
			} else {
				lines[i] = "250 " + lines[i]
			}
		}
		return strings.Join(lines, "\r\n")
	case "HELO":
		return "250 mail.example.com"
	case "MAIL", "RCPT", "RSET", "NOOP":
		return "250 2.0.0 OK"
	case "DATA":
		return "354 Go ahead"
	case ".":
		return "250 2.0.0 Queued"
	case "QUIT":
		return "221 2.0.0 Bye"
	}

	return "502 5.5.2 Command not recognized"
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	r := bufio.NewReader(conn)
	write := func(reply string) bool {
		_, err := conn.Write([]byte(reply + "\r\n"))
		return err == nil
	}

	greeting := s.Greeting
	if greeting == "" {
		greeting = "220 mail.example.com ESMTP"
	}
	if !write(greeting) {
		return
	}

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}

		cmd := strings.TrimRight(line, "\r\n")
		s.mu.Lock()
		s.commands = append(s.commands, cmd)
		s.mu.Unlock()

		reply := s.reply(cmd)
		if !write(reply) {
			return
		}

		verb := strings.ToUpper(cmd)
		switch {
		case verb == "DATA" && strings.HasPrefix(reply, "354"):
			if !s.readData(r) || !write(s.reply(".")) {
				return
			}
		case verb == "QUIT":
			return
		}
	}
}

func (s *Server) readData(r *bufio.Reader) bool {
	var data strings.Builder
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return false
		}
		if line == ".\r\n" {
			break
		}
		data.WriteString(line)
	}

	s.mu.Lock()
	s.messages = append(s.messages, data.String())
	s.mu.Unlock()
	return true
}
