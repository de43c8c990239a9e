// Package api provides the HTTP server exposing the activity stream feeds.
//
// Every feed endpoint authenticates the caller with the MAC scheme, fetches
// one bounded keyset page, and signs the response body before sending it.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/uktrade/directory-api-sub000/internal/feed"
	"github.com/uktrade/directory-api-sub000/internal/macauth"
	"github.com/uktrade/directory-api-sub000/internal/nonce"
	"github.com/uktrade/directory-api-sub000/internal/store"
)

// Default server configuration.
const (
	DefaultAddr            = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds server configuration.
type Opts struct {
	Addr        string
	PageSize    int
	Credentials []macauth.Credential
	Store       store.Store
	Guard       nonce.Guard
}

// Option configures the server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithPageSize sets the feed page size (clamped to models.MaxPageSize).
func WithPageSize(n int) Option {
	return func(o *Opts) { o.PageSize = n }
}

// WithCredentials sets the caller credentials.
func WithCredentials(creds []macauth.Credential) Option {
	return func(o *Opts) { o.Credentials = creds }
}

// WithStore sets the change-source store.
func WithStore(st store.Store) Option {
	return func(o *Opts) { o.Store = st }
}

// WithGuard sets the nonce guard.
func WithGuard(g nonce.Guard) Option {
	return func(o *Opts) { o.Guard = g }
}

// Server wires the verifier, pagers and signing into HTTP handlers.
type Server struct {
	addr     string
	verifier *macauth.Verifier
	st       store.Store
	guard    nonce.Guard
	pagers   map[string]*feed.Pager
	mux      *http.ServeMux
}

// NewServer builds a server from options. Store, guard and credentials are
// required.
func NewServer(opts ...Option) (*Server, error) {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Guard == nil {
		return nil, errors.New("nonce guard is required")
	}
	if len(cfg.Credentials) == 0 {
		return nil, errors.New("at least one credential is required")
	}

	s := &Server{
		addr:     cfg.Addr,
		verifier: macauth.NewVerifier(macauth.NewCredentialStore(cfg.Credentials), cfg.Guard),
		st:       cfg.Store,
		guard:    cfg.Guard,
		pagers: map[string]*feed.Pager{
			"/activity-stream/organizations/": feed.NewPager(cfg.Store.OrganizationSource(), feed.ShapeOrganization, cfg.PageSize),
			"/activity-stream/verifications/": feed.NewPager(cfg.Store.VerificationSource(), feed.ShapeVerification, cfg.PageSize),
			"/activity-stream/export-plans/":  feed.NewPager(cfg.Store.ExportPlanSource(), feed.ShapeExportPlanSection, cfg.PageSize),
		},
	}

	s.mux = http.NewServeMux()
	for path, pager := range s.pagers {
		s.mux.HandleFunc(path, s.feedHandler(pager))
	}
	s.mux.HandleFunc("/health", s.healthHandler)
	return s, nil
}

// Handler returns the server's HTTP handler, used directly by tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.mux}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: activity stream feed listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server stopped: %w", err)
	}
}
