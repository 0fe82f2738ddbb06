package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/hasirciogluhq/sockpol/cmd/sockpol/internal/logger"
)

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Server is the generic TCP accept loop.
// It depends ONLY on interfaces, not concrete implementations.
type Server struct {
	Listener          net.Listener
	ConnectionHandler ConnectionHandler
}

// Serve accepts connections until ctx is cancelled or Accept fails with a
// permanent error. Temporary failures such as descriptor exhaustion are retried
// with a capped backoff. Cancelling ctx closes the listener; the resulting
// Accept error is a clean shutdown and Serve returns nil.
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		s.Listener.Close()
	})
	defer stop()

	var backoff time.Duration
	for {
		if ctx.Err() != nil {
			return nil
		}
		conn, err := s.Listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if !isTemporary(err) {
				return fmt.Errorf("accept: %w", err)
			}

			if backoff == 0 {
				backoff = minAcceptBackoff
			} else {
				backoff = min(2*backoff, maxAcceptBackoff)
			}
			logger.Warn("Accept failed, retrying", "addr", s.Listener.Addr(), "retry_in", backoff, "error", err)

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 0
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Connection handler panicked", "remote_addr", conn.RemoteAddr(), "panic", r)
			conn.Close()
		}
	}()

	// Delegate the entire lifecycle to the handler
	s.ConnectionHandler.HandleConnection(conn)
}

// isTemporary reports whether an Accept error is worth retrying: resource
// exhaustion, or a peer that went away before the accept completed.
func isTemporary(err error) bool {
	for _, errno := range []syscall.Errno{
		syscall.EMFILE,
		syscall.ENFILE,
		syscall.ENOBUFS,
		syscall.ENOMEM,
		syscall.ECONNABORTED,
		syscall.ECONNRESET,
		syscall.EINTR,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}

	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
