package policy

import (
	"io"
	"log/slog"
	"net"
	"time"
)

type sessionState int

const (
	stateReceiving sessionState = iota
	stateResponding
	stateRejected
	stateClosed
)

func (s sessionState) String() string {
	switch s {
	case stateReceiving:
		return "receiving"
	case stateResponding:
		return "responding"
	case stateRejected:
		return "rejected"
	default:
		return "closed"
	}
}

type verdict int

const (
	verdictPending verdict = iota
	verdictMatch
	verdictMismatch
)

// verify compares everything received so far with the handshake.
// On mismatch the returned offset is the first differing byte.
func verify(received []byte) (verdict, int) {
	for i, b := range received {
		if i >= len(expectedRequest) || b != expectedRequest[i] {
			return verdictMismatch, i
		}
	}
	if len(received) == len(expectedRequest) {
		return verdictMatch, len(received)
	}
	return verdictPending, len(received)
}

const (
	// maxTrailing bounds what is drained after the response, typically the
	// NUL terminator Flash appends to the request.
	maxTrailing   = 64
	lingerTimeout = 2 * time.Second
)

type session struct {
	conn        net.Conn
	log         *slog.Logger
	idleTimeout time.Duration

	buf   []byte
	n     int
	state sessionState
}

func newSession(conn net.Conn, log *slog.Logger, idleTimeout time.Duration) *session {
	return &session{
		conn:        conn,
		log:         log,
		idleTimeout: idleTimeout,
		buf:         make([]byte, len(expectedRequest)),
		state:       stateReceiving,
	}
}

// run drives the session to a terminal state. The connection is always closed
// on return.
func (s *session) run(policy []byte) {
	defer s.conn.Close()

	for s.state == stateReceiving {
		s.receive()
	}
	if s.state == stateResponding {
		s.respond(policy)
	}
}

func (s *session) receive() {
	s.armDeadline()

	n, err := s.conn.Read(s.buf[s.n:])
	s.n += n

	switch v, offset := verify(s.buf[:s.n]); v {
	case verdictMismatch:
		s.log.Debug("Handshake rejected", "offset", offset, "received", s.n)
		s.state = stateRejected
		return
	case verdictMatch:
		s.state = stateResponding
		return
	}

	if err != nil {
		s.log.Debug("Connection closed during handshake", "received", s.n, "error", err)
		s.state = stateClosed
	}
}

func (s *session) respond(policy []byte) {
	s.armDeadline()

	if _, err := s.conn.Write(policy); err != nil {
		s.log.Warn("Failed to send policy", "error", err)
		s.state = stateClosed
		return
	}
	s.log.Info("Policy served", "bytes", len(policy))

	s.linger()
	s.state = stateClosed
}

// linger half-closes the connection and discards a few trailing bytes so the
// final Close does not reset the peer before it has read the policy.
func (s *session) linger() {
	cw, ok := s.conn.(interface{ CloseWrite() error })
	if !ok {
		return
	}
	if err := cw.CloseWrite(); err != nil {
		return
	}
	_ = s.conn.SetReadDeadline(time.Now().Add(lingerTimeout))
	_, _ = io.Copy(io.Discard, io.LimitReader(s.conn, maxTrailing))
}

func (s *session) armDeadline() {
	if s.idleTimeout <= 0 {
		return
	}
	_ = s.conn.SetDeadline(time.Now().Add(s.idleTimeout))
}
