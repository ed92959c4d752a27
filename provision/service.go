// Package provision tracks asynchronous issuance requests: it creates
// request records, runs the matching key-generation pipeline in a supervised
// background task, and implements the single-use redemption protocol that
// delivers the finished configuration bundle.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/jmcleod/vpnca/ca"
	"github.com/jmcleod/vpnca/store"
	"github.com/jmcleod/vpnca/token"
)

// ErrInvalidRequest is returned when a redemption token references a request
// that no longer exists — typically because it was already redeemed.
var ErrInvalidRequest = errors.New("invalid request")

// ErrInvalidClientName is returned for client names that cannot safely key
// an artifact namespace.
var ErrInvalidClientName = errors.New("invalid client name")

var clientNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// Authority is the slice of the certificate authority the service drives.
// *ca.Authority satisfies it.
type Authority interface {
	EnsureServer(ctx context.Context) error
	EnsureClient(ctx context.Context, name, email string) error
	ServerConfig() (string, error)
	ClientConfig(name string) (string, error)
	RemovePrivateServerFiles() error
	RemovePrivateClientFiles(name string) error
	AllServerCertInfo(ctx context.Context) ([]ca.CertInfo, error)
	AllClientCertInfo(ctx context.Context) ([]ca.CertInfo, error)
}

// Notifier delivers a renewal token to a subject's owner. Client and server
// tokens redeem through different endpoints, so the notices are distinct.
type Notifier interface {
	RenewalNotice(name, email, tokenString string) error
	ServerRenewalNotice(email, tokenString string) error
}

// NopNotifier discards notifications. Used when no mail relay is configured.
type NopNotifier struct{}

func (NopNotifier) RenewalNotice(name, email, tokenString string) error { return nil }

func (NopNotifier) ServerRenewalNotice(email, tokenString string) error { return nil }

// Service is the provisioning-request state machine.
type Service struct {
	store     store.Store
	tokens    *token.Issuer
	authority Authority
	notifier  Notifier
	tokenTTL  time.Duration
	log       *slog.Logger

	renewWindowDays int

	wg sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.log = logger
	}
}

// WithNotifier sets the renewal notifier. Defaults to NopNotifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithTokenTTL overrides the redemption-token lifetime.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.tokenTTL = ttl
	}
}

// WithRenewalWindow sets the default renewal window used when ScanAndRenew
// is called with a non-positive windowDays.
func WithRenewalWindow(days int) Option {
	return func(s *Service) {
		s.renewWindowDays = days
	}
}

// New creates a Service. The caller must have completed CA bootstrap before
// any issuance request is accepted.
func New(st store.Store, tokens *token.Issuer, authority Authority, opts ...Option) *Service {
	s := &Service{
		store:     st,
		tokens:    tokens,
		authority: authority,
		notifier:  NopNotifier{},
		tokenTTL:  token.DefaultTTL,
		log:       slog.Default(),

		renewWindowDays: 30,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "provision")
	return s
}

// RequestClient creates a provisioning request for the named client and
// launches its key-generation pipeline in the background. Returns the
// redemption token, or store.ErrConflict if a request for this client
// already exists.
func (s *Service) RequestClient(ctx context.Context, name, email string) (string, error) {
	if !clientNameRe.MatchString(name) {
		return "", fmt.Errorf("%q: %w", name, ErrInvalidClientName)
	}
	rec := &store.Record{
		Subject:     store.ClientSubject(name),
		ClientName:  name,
		ClientEmail: email,
		Status:      store.StatusCreated,
		CreatedAt:   time.Now().UTC(),
	}
	id, err := s.store.Create(rec)
	if err != nil {
		return "", err
	}
	tokenString, err := s.tokens.Issue(id, rec.Subject, s.tokenTTL)
	if err != nil {
		return "", err
	}
	s.launch(ctx, id, rec.Subject, func(ctx context.Context) error {
		return s.authority.EnsureClient(ctx, name, email)
	})
	return tokenString, nil
}

// RequestServer creates the singleton server provisioning request. Same
// conflict rule as RequestClient.
func (s *Service) RequestServer(ctx context.Context) (string, error) {
	rec := &store.Record{
		Subject:   store.ServerSubject,
		Status:    store.StatusCreated,
		CreatedAt: time.Now().UTC(),
	}
	id, err := s.store.Create(rec)
	if err != nil {
		return "", err
	}
	tokenString, err := s.tokens.Issue(id, rec.Subject, s.tokenTTL)
	if err != nil {
		return "", err
	}
	s.launch(ctx, id, rec.Subject, s.authority.EnsureServer)
	return tokenString, nil
}

// launch runs the pipeline in a supervised goroutine. Its completion —
// success, failure, or panic — is observed exactly once and funneled into a
// single status transition; no other code path mutates status.
func (s *Service) launch(ctx context.Context, id, subject string, run func(context.Context) error) {
	// The pipeline outlives the request that triggered it.
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("pipeline panic: %v", r)
				}
			}()
			return run(ctx)
		}()

		status := store.StatusReady
		if err != nil {
			status = store.StatusError
			s.log.Error("pipeline failed", "subject", subject, "request", id, "error", err)
		} else {
			s.log.Info("pipeline complete", "subject", subject, "request", id)
		}
		if err := s.store.UpdateStatus(id, status); err != nil {
			// The record may have been cancelled while the pipeline ran.
			s.log.Warn("recording pipeline result", "request", id, "error", err)
		}
	}()
}

// Wait blocks until all launched pipelines have completed. Used at shutdown
// and in tests.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Redemption is the result of a Redeem call. Bundle is set only when the
// request was READY and the material has been delivered; otherwise Status
// reports the request's current state for polling.
type Redemption struct {
	Status store.Status
	Bundle string
}

// Redeem verifies the token and either reports the request's status or, if
// the pipeline finished, delivers the configuration bundle. Deleting the
// record is the commit point: of any number of concurrent calls with the
// same token, exactly one wins the delete and delivers the bundle; the rest
// return ErrInvalidRequest.
func (s *Service) Redeem(ctx context.Context, tokenString string) (*Redemption, error) {
	claims, err := s.tokens.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.FindByID(claims.RequestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("request %s: %w", claims.RequestID, ErrInvalidRequest)
		}
		return nil, err
	}
	if rec.Status != store.StatusReady {
		return &Redemption{Status: rec.Status}, nil
	}

	// Claim the request before touching the material. The store's delete is
	// atomic, so a concurrent redeemer (or a cancel) that got here first
	// already consumed the request.
	if err := s.store.Delete(rec.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("request %s: %w", claims.RequestID, ErrInvalidRequest)
		}
		return nil, err
	}

	var bundle string
	if rec.Subject == store.ServerSubject {
		bundle, err = s.authority.ServerConfig()
	} else {
		bundle, err = s.authority.ClientConfig(rec.ClientName)
	}
	if err != nil {
		return nil, fmt.Errorf("assembling bundle: %w", err)
	}

	// Cleanup errors are logged but do not keep the request alive; the
	// record is already gone and delivery stays at-most-once.
	if rec.Subject == store.ServerSubject {
		err = s.authority.RemovePrivateServerFiles()
	} else {
		err = s.authority.RemovePrivateClientFiles(rec.ClientName)
	}
	if err != nil {
		s.log.Error("removing private artifacts", "subject", rec.Subject, "error", err)
	}
	s.log.Info("bundle delivered", "subject", rec.Subject, "request", rec.ID)
	return &Redemption{Status: store.StatusReady, Bundle: bundle}, nil
}

// Cancel deletes the request for the given subject key, whatever its state.
// It does not stop an in-flight pipeline.
func (s *Service) Cancel(ctx context.Context, subject string) error {
	rec, err := s.store.FindBySubject(subject)
	if err != nil {
		return err
	}
	return s.store.Delete(rec.ID)
}
