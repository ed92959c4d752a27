// Package api exposes the provisioning service over HTTP. It is thin glue:
// request parsing, typed models, and error mapping around provision.Service.
package api

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/vpnca/provision"
)

// Provisioner is the slice of the provisioning service the handlers need.
// *provision.Service satisfies it.
type Provisioner interface {
	RequestClient(ctx context.Context, name, email string) (string, error)
	RequestServer(ctx context.Context) (string, error)
	Redeem(ctx context.Context, tokenString string) (*provision.Redemption, error)
	Cancel(ctx context.Context, subject string) error
	ScanAndRenew(ctx context.Context, windowDays int) (int, error)
}

// API holds the dependencies needed by the REST handlers.
type API struct {
	svc Provisioner
	log *slog.Logger
}

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.log = logger
	}
}

// New creates a new API instance.
func New(svc Provisioner, opts ...Option) *API {
	a := &API{
		svc: svc,
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.With("component", "api")
	return a
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Post("/client/configs", a.ClientConfigs)
	r.Delete("/client/configs", a.CancelClientRequest)
	r.Post("/server/config", a.ServerConfig)
	r.Delete("/server/config", a.CancelServerRequest)
	r.Post("/renew", a.Renew)

	return r
}
