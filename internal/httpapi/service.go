package httpapi

import (
	"context"
	"net/http"
	"time"

	core "github.com/r3e-labs/ruleengine/internal/app/core/service"
	"github.com/r3e-labs/ruleengine/internal/transport"
	"github.com/r3e-labs/ruleengine/pkg/config"
	"github.com/r3e-labs/ruleengine/pkg/logger"
)

// Service exposes the HTTP façade and fits the internal/app/system
// lifecycle contract (Name/Start/Stop).
type Service struct {
	addr   string
	server *http.Server
	log    *logger.Logger
}

// NewService builds a Service listening on addr, backed by bus for the
// rules/templates mailboxes, stream for the websocket feed, descriptors
// (may be nil) for the /v1/status introspection endpoint, and rateLimit
// for the per-client request cap (the zero value disables it).
func NewService(addr string, bus transport.Requester, stream *StreamHub, descriptors DescriptorsFunc, log *logger.Logger, rateLimit config.RateLimitConfig) *Service {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	return &Service{
		addr: addr,
		server: &http.Server{
			Addr:         addr,
			Handler:      NewHandler(bus, stream, descriptors, log, rateLimit),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0, // the websocket stream holds connections open indefinitely
		},
		log: log,
	}
}

func (s *Service) Name() string { return "http" }

// Descriptor advertises the HTTP façade as the ingress-layer component
// translating §4.6 mailbox commands into REST and the alert stream into a
// websocket feed.
func (s *Service) Descriptor() core.Descriptor {
	return core.Descriptor{
		Name:   s.Name(),
		Domain: "transport",
		Layer:  core.LayerIngress,
	}.WithCapabilities("rest", "websocket-stream", "status")
}

func (s *Service) Start(ctx context.Context) error {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithField("error", err).Error("httpapi: server stopped unexpectedly")
		}
	}()
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
