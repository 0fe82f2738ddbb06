package policy

import (
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/hasirciogluhq/sockpol/cmd/sockpol/internal/logger"
)

// Handler answers the policy handshake on each connection it is given.
type Handler struct {
	Document *Document
	// IdleTimeout bounds every read and the write of a session.
	// Zero waits indefinitely.
	IdleTimeout time.Duration
}

func NewHandler(doc *Document, idleTimeout time.Duration) *Handler {
	return &Handler{
		Document:    doc,
		IdleTimeout: idleTimeout,
	}
}

// HandleConnection implements core.ConnectionHandler.
// It takes full ownership of the connection lifecycle.
func (h *Handler) HandleConnection(conn net.Conn) {
	log := logger.With("session", uuid.NewString(), "remote_addr", conn.RemoteAddr().String())
	log.Debug("Incoming connection")

	s := newSession(conn, log, h.IdleTimeout)
	s.run(h.Document.Bytes())

	log.Debug("Session finished", "state", s.state)
}
