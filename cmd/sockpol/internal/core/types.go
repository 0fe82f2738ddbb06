package core

import (
	"context"
	"net"
)

// ConnectionHandler serves one accepted connection.
// It takes full ownership of the connection and must close it before returning.
type ConnectionHandler interface {
	HandleConnection(conn net.Conn)
}

// HandlerFunc adapts a function to ConnectionHandler.
type HandlerFunc func(conn net.Conn)

func (f HandlerFunc) HandleConnection(conn net.Conn) {
	f(conn)
}

// PolicySource defines where the policy document comes from.
// It abstracts away the storage mechanism (built-in profile, file, ConfigMap, etc.).
type PolicySource interface {
	// Name identifies the source in logs.
	Name() string
	// Load returns the policy document as it should be sent to clients.
	Load(ctx context.Context) (string, error)
}

// ExitCode is the process exit status reported by Controller.Start.
type ExitCode int

const (
	ExitOK           ExitCode = 0
	ExitAccessDenied ExitCode = 5
	ExitFailure      ExitCode = 6
)
