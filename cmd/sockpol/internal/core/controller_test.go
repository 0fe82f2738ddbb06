package core

import (
	"errors"
	"io"
	"net"
	"os"
	"strconv"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialPort(port int) (net.Conn, error) {
	return net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), 2*time.Second)
}

func TestControllerLifecycle(t *testing.T) {
	c := NewController(greeter("policy"))
	assert.Equal(t, StateNotStarted, c.State())
	assert.Nil(t, c.Addr())

	require.Equal(t, ExitOK, c.Start(0))
	assert.Equal(t, StateListening, c.State())

	port := c.Addr().(*net.TCPAddr).Port
	require.NotZero(t, port)

	conn, err := dialPort(port)
	require.NoError(t, err)
	data, err := io.ReadAll(conn)
	conn.Close()
	require.NoError(t, err)
	assert.Equal(t, "policy", string(data))

	require.NoError(t, c.Stop())
	assert.Equal(t, StateStopped, c.State())

	_, err = dialPort(port)
	assert.Error(t, err, "listening socket should be closed after Stop")

	assert.ErrorIs(t, c.Stop(), ErrNotListening)
}

func TestControllerStopWithoutStart(t *testing.T) {
	c := NewController(greeter(""))
	assert.ErrorIs(t, c.Stop(), ErrNotListening)
}

func TestControllerStartTwice(t *testing.T) {
	c := NewController(greeter(""))
	require.Equal(t, ExitOK, c.Start(0))
	defer c.Stop()

	assert.Equal(t, ExitFailure, c.Start(0))
	assert.Equal(t, StateListening, c.State())
}

func TestControllerStartErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ExitCode
	}{
		{name: "access denied", err: os.NewSyscallError("bind", syscall.EACCES), want: ExitAccessDenied},
		{name: "operation not permitted", err: os.NewSyscallError("bind", syscall.EPERM), want: ExitAccessDenied},
		{name: "address in use", err: os.NewSyscallError("bind", syscall.EADDRINUSE), want: ExitFailure},
		{name: "other", err: io.ErrUnexpectedEOF, want: ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(greeter(""))
			c.listen = func(port, backlog int) (net.Listener, error) {
				assert.Equal(t, 843, port)
				assert.Equal(t, ListenBacklog, backlog)
				return nil, tt.err
			}

			assert.Equal(t, tt.want, c.Start(843))
			assert.Equal(t, StateNotStarted, c.State())
			assert.Nil(t, c.Addr())
			assert.ErrorIs(t, c.Stop(), ErrNotListening)
		})
	}
}

func TestControllerPortInUse(t *testing.T) {
	taken, err := Listen(0, 16)
	require.NoError(t, err)
	defer taken.Close()

	c := NewController(greeter(""))
	assert.Equal(t, ExitFailure, c.Start(taken.Addr().(*net.TCPAddr).Port))
	assert.Equal(t, StateNotStarted, c.State())
}

func TestControllerPrivilegedPort(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root, privileged ports are bindable")
	}

	c := NewController(greeter(""))
	code := c.Start(843)
	if code == ExitOK {
		c.Stop()
		t.Skip("this host allows unprivileged binds on port 843")
	}

	assert.Equal(t, ExitAccessDenied, code)
	assert.Equal(t, StateNotStarted, c.State())
	assert.Nil(t, c.Addr())
}

// flakyListener fails the first failures Accept calls with err.
type flakyListener struct {
	net.Listener
	failures atomic.Int32
	err      error
}

func (l *flakyListener) Accept() (net.Conn, error) {
	if l.failures.Add(-1) >= 0 {
		return nil, l.err
	}
	return l.Listener.Accept()
}

func loopbackListen(wrap func(net.Listener) net.Listener) func(port, backlog int) (net.Listener, error) {
	return func(port, backlog int) (net.Listener, error) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return nil, err
		}
		return wrap(ln), nil
	}
}

func TestControllerSurvivesDescriptorExhaustion(t *testing.T) {
	c := NewController(greeter("policy"))
	c.listen = loopbackListen(func(ln net.Listener) net.Listener {
		fl := &flakyListener{
			Listener: ln,
			err:      &net.OpError{Op: "accept", Net: "tcp", Err: os.NewSyscallError("accept", syscall.EMFILE)},
		}
		fl.failures.Store(1)
		return fl
	})

	require.Equal(t, ExitOK, c.Start(0))
	defer c.Stop()

	conn, err := dialPort(c.Addr().(*net.TCPAddr).Port)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	data, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Equal(t, "policy", string(data))
	assert.Equal(t, StateListening, c.State())
}

func TestControllerPermanentAcceptFailure(t *testing.T) {
	c := NewController(greeter("policy"))
	c.listen = loopbackListen(func(ln net.Listener) net.Listener {
		fl := &flakyListener{Listener: ln, err: errors.New("listener broken")}
		fl.failures.Store(1 << 30)
		return fl
	})

	require.Equal(t, ExitOK, c.Start(0))
	require.Eventually(t, func() bool {
		return c.State() == StateFailed
	}, 5*time.Second, 10*time.Millisecond, "controller should leave listening once the accept loop dies")

	require.NoError(t, c.Stop())
	assert.Equal(t, StateStopped, c.State())
	assert.ErrorIs(t, c.Stop(), ErrNotListening)
}
