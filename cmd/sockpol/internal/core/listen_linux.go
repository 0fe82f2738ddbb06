//go:build linux

package core

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// Listen creates a non-blocking TCP socket bound to 0.0.0.0:port with the
// given accept backlog and hands it to the runtime poller.
func Listen(port, backlog int) (net.Listener, error) {
	if port < 0 || port > 0xFFFF {
		return nil, fmt.Errorf("invalid port %d", port)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("setsockopt", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind port %d: %w", port, os.NewSyscallError("bind", err))
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("listen", err)
	}

	// net.FileListener dups the descriptor, so the file is closed either way.
	f := os.NewFile(uintptr(fd), fmt.Sprintf("tcp:0.0.0.0:%d", port))
	defer f.Close()

	ln, err := net.FileListener(f)
	if err != nil {
		return nil, fmt.Errorf("wrap listening socket: %w", err)
	}
	return ln, nil
}
