package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jmcleod/vpnca/ca"
	"github.com/jmcleod/vpnca/config"
	"github.com/jmcleod/vpnca/provision"
	boltstore "github.com/jmcleod/vpnca/store/bbolt"
	"github.com/jmcleod/vpnca/token"
)

// env is everything a command needs after the bootstrap barrier: loaded
// config, a bootstrapped authority, and the provisioning service on top.
type env struct {
	cfg       *config.File
	params    config.Params
	authority *ca.Authority
	store     *boltstore.Store
	svc       *provision.Service
	notifier  provision.Notifier
	log       *slog.Logger
}

func (e *env) Close() {
	if e.store != nil {
		e.store.Close()
	}
}

// setup loads the params file, generates first-run secrets, runs the CA
// bootstrap barrier, and wires the provisioning service. Fatal on any
// failure; nothing may accept issuance requests before this returns.
func setup(ctx context.Context) (*env, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cfg, err := config.Open(paramsPath())
	if err != nil {
		return nil, err
	}
	params, err := cfg.EnsureSecrets()
	if err != nil {
		return nil, err
	}

	authority := ca.New(dataDir, ca.Params{
		OpenSSLPath:        params.OpenSSLPath,
		OpenVPNPath:        params.OpenVPNPath,
		KeyBitSize:         params.KeyBitSize,
		CALifetimeDays:     params.CALifetimeDays,
		ServerLifetimeDays: params.ServerLifetimeDays,
		ClientLifetimeDays: params.ClientLifetimeDays,
		Country:            params.Country,
		Province:           params.Province,
		City:               params.City,
		Org:                params.Org,
		OrgUnit:            params.OrgUnit,
		ServerCN:           params.ServerCN,
		ServerEmail:        params.ServerEmail,
		Passphrase:         params.CAPassphrase,
	}, ca.WithLogger(logger))

	if err := authority.Bootstrap(ctx); err != nil {
		return nil, fmt.Errorf("CA bootstrap failed: %w", err)
	}

	st, err := boltstore.Open(filepath.Join(dataDir, "requests.db"), nil)
	if err != nil {
		return nil, fmt.Errorf("opening request store: %w", err)
	}

	issuer := token.NewIssuer([]byte(params.TokenSecret))

	var notifier provision.Notifier = provision.NopNotifier{}
	if params.SMTP != nil {
		notifier = provision.NewMailer(
			params.SMTP.Host, params.SMTP.Port,
			params.SMTP.Username, params.SMTP.Password,
			params.SMTP.From, params.ServerURL)
	}

	svc := provision.New(st, issuer, authority,
		provision.WithLogger(logger),
		provision.WithNotifier(notifier),
		provision.WithRenewalWindow(params.RenewalWindowDays),
	)

	return &env{
		cfg:       cfg,
		params:    params,
		authority: authority,
		store:     st,
		svc:       svc,
		notifier:  notifier,
		log:       logger,
	}, nil
}
