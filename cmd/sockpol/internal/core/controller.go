package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/hasirciogluhq/sockpol/cmd/sockpol/internal/logger"
)

// ListenBacklog is the number of pending connections the kernel queues for us.
const ListenBacklog = 500

// ErrNotListening is returned by Stop when the controller has no running
// listener, which means Stop was called without a successful Start or twice.
var ErrNotListening = errors.New("policy server is not listening")

// State is the lifecycle state of a Controller.
type State int

const (
	StateNotStarted State = iota
	StateListening
	// StateFailed means the accept loop died on a permanent error while the
	// listening socket is still open; Stop releases it.
	StateFailed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateListening:
		return "listening"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Controller binds the policy port and runs a Server on a background goroutine.
type Controller struct {
	handler ConnectionHandler
	listen  func(port, backlog int) (net.Listener, error)

	mu       sync.Mutex
	state    State
	listener net.Listener
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewController(handler ConnectionHandler) *Controller {
	return &Controller{
		handler: handler,
		listen:  Listen,
	}
}

// Start binds 0.0.0.0:port and begins accepting connections.
// A permission failure yields ExitAccessDenied, any other bind or listen
// failure ExitFailure. No socket is left open when Start fails.
func (c *Controller) Start(port int) ExitCode {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateNotStarted {
		logger.Error("Policy server cannot be started", "state", c.state)
		return ExitFailure
	}

	ln, err := c.listen(port, ListenBacklog)
	if err != nil {
		code := exitCodeFor(err)
		if code == ExitAccessDenied {
			// Most common mistake: ports below 1024 need root or CAP_NET_BIND_SERVICE
			logger.Warn("Binding a privileged port requires elevated rights", "port", port)
		}
		logger.Error("Failed to start policy server", "port", port, "exit_code", int(code), "error", err)
		return code
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	srv := &Server{
		Listener:          ln,
		ConnectionHandler: c.handler,
	}

	go func() {
		defer close(done)
		if err := srv.Serve(ctx); err != nil {
			logger.Error("Accept loop terminated", "addr", ln.Addr(), "error", err)
			c.markFailed()
		}
	}()

	c.listener = ln
	c.cancel = cancel
	c.done = done
	c.state = StateListening

	logger.Info("Policy service started", "addr", ln.Addr().String(), "backlog", ListenBacklog)
	return ExitOK
}

// Stop terminates the accept loop and closes the listening socket.
// It is also valid after the loop failed on its own. In-flight sessions are
// not interrupted.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.state != StateListening && c.state != StateFailed {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w (state %s)", ErrNotListening, state)
	}
	c.state = StateStopped
	ln, cancel, done := c.listener, c.cancel, c.done
	c.mu.Unlock()

	cancel()
	<-done
	// Serve already closed it on cancellation unless the loop died earlier.
	_ = ln.Close()

	logger.Info("Policy service stopped", "addr", ln.Addr().String())
	return nil
}

func (c *Controller) markFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateListening {
		c.state = StateFailed
	}
}

// State reports the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Addr returns the bound address, or nil before a successful Start.
func (c *Controller) Addr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listener == nil {
		return nil
	}
	return c.listener.Addr()
}

func exitCodeFor(err error) ExitCode {
	if errors.Is(err, os.ErrPermission) {
		return ExitAccessDenied
	}
	return ExitFailure
}
