package ca

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	opensslConfName     = "openssl.cnf"
	opensslTemplateName = "openssl_template.cnf"
)

//go:embed openssl_template.cnf
var defaultOpensslTemplate string

func (a *Authority) opensslConfPath() string {
	return filepath.Join(a.dir, opensslConfName)
}

// Bootstrap performs the one-time (and re-runnable) initialization barrier:
// directory tree, generated openssl configuration, CA key material, TLS-auth
// secret, and a fresh revocation list. Issuance pipelines must not start
// before Bootstrap has returned.
func (a *Authority) Bootstrap(ctx context.Context) error {
	for _, sub := range []string{"CA", commonDir, serverDir, clientsDir} {
		if err := os.MkdirAll(filepath.Join(a.dir, sub), 0o700); err != nil {
			return fmt.Errorf("creating %s: %w", sub, err)
		}
	}
	if err := a.writeOpensslConf(); err != nil {
		return err
	}
	if err := a.EnsureCA(ctx); err != nil {
		return fmt.Errorf("ensuring CA identity: %w", err)
	}
	if err := a.GenerateCRL(ctx); err != nil {
		return err
	}
	a.log.Info("CA bootstrap complete", "dir", a.dir)
	return nil
}

// writeOpensslConf regenerates openssl.cnf from the template, substituting
// the authority's absolute CA path for the template's relative one. A
// template file in the authority directory overrides the embedded default.
func (a *Authority) writeOpensslConf() error {
	tmpl := defaultOpensslTemplate
	if data, err := os.ReadFile(filepath.Join(a.dir, opensslTemplateName)); err == nil {
		tmpl = string(data)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading openssl template: %w", err)
	}
	cfg := strings.ReplaceAll(tmpl, "./CA", filepath.Join(a.dir, "CA"))
	cfg = strings.ReplaceAll(cfg, `\`, `\\`)
	if err := os.WriteFile(a.opensslConfPath(), []byte(cfg), 0o600); err != nil {
		return fmt.Errorf("writing openssl.cnf: %w", err)
	}
	return nil
}

// GenerateCRL regenerates the certificate revocation list. Unlike pipeline
// steps this always runs; the CRL carries its own validity period and goes
// stale.
func (a *Authority) GenerateCRL(ctx context.Context) error {
	files := a.CAFiles()
	err := a.runner.Run(ctx, a.params.OpenSSLPath,
		"ca", "-gencrl",
		"-out", files.CRL,
		"-passin", "pass:"+a.params.Passphrase,
	)
	if err != nil {
		if errors.Is(err, ErrToolchainUnavailable) {
			return err
		}
		return fmt.Errorf("generating CRL: %v: %w", err, ErrStepFailed)
	}
	if !artifactExists(files.CRL) {
		return fmt.Errorf("%s missing or empty after toolchain exit: %w", files.CRL, ErrStepFailed)
	}
	return nil
}
