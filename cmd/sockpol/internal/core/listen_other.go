//go:build !linux

package core

import (
	"context"
	"fmt"
	"net"
)

// Listen binds 0.0.0.0:port. The backlog is left to the operating system
// default on this platform.
func Listen(port, backlog int) (net.Listener, error) {
	if port < 0 || port > 0xFFFF {
		return nil, fmt.Errorf("invalid port %d", port)
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp4", fmt.Sprintf("0.0.0.0:%d", port))
	if err != nil {
		return nil, fmt.Errorf("bind port %d: %w", port, err)
	}
	return ln, nil
}
