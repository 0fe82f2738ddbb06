package factory

import (
	"context"
	"fmt"

	"github.com/hasirciogluhq/sockpol/cmd/sockpol/internal/config"
	"github.com/hasirciogluhq/sockpol/cmd/sockpol/internal/core"
	"github.com/hasirciogluhq/sockpol/cmd/sockpol/internal/logger"
	"github.com/hasirciogluhq/sockpol/cmd/sockpol/internal/policy"
)

// HandlerFactory creates the policy connection handler
type HandlerFactory struct {
	cfg *config.Config
}

// NewHandlerFactory creates a new handler factory
func NewHandlerFactory(cfg *config.Config) *HandlerFactory {
	return &HandlerFactory{cfg: cfg}
}

// Create loads the document once from source and returns a handler serving it.
func (f *HandlerFactory) Create(ctx context.Context, source core.PolicySource) (*policy.Handler, error) {
	xml, err := source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy from %s: %w", source.Name(), err)
	}

	doc := policy.NewDocument(xml)
	logger.Info("Policy document loaded", "source", source.Name(), "bytes", doc.Len())

	if f.cfg.IdleTimeout == 0 {
		logger.Warn("IDLE_TIMEOUT is not set - silent clients keep their session open indefinitely")
	}

	return policy.NewHandler(doc, f.cfg.IdleTimeout), nil
}
