// Package ca orchestrates the external openssl/openvpn toolchain to operate
// a private OpenVPN certificate authority: CA bootstrap, server and client
// key-generation pipelines, certificate inspection, and configuration-bundle
// assembly.
//
// The package never touches key material itself; the filesystem tree under
// the authority's directory is the system of record, and every pipeline is
// an idempotent "ensure this identity's artifacts exist" operation gated on
// the artifacts already present.
package ca

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Params carries the toolchain settings the pipelines need. Typically built
// from the persisted configuration via the caller.
type Params struct {
	OpenSSLPath string
	OpenVPNPath string

	KeyBitSize         int
	CALifetimeDays     int
	ServerLifetimeDays int
	ClientLifetimeDays int

	Country  string
	Province string
	City     string
	Org      string
	OrgUnit  string

	ServerCN    string
	ServerEmail string

	Passphrase string
}

// Authority drives the toolchain for one CA directory tree.
type Authority struct {
	dir    string
	params Params
	runner Runner
	log    *slog.Logger
}

// Option configures an Authority.
type Option func(*Authority)

// WithRunner replaces the default ExecRunner.
func WithRunner(r Runner) Option {
	return func(a *Authority) {
		a.runner = r
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authority) {
		a.log = logger
	}
}

// New creates an Authority rooted at dir. The default runner executes
// commands in dir with OPENSSL_CONF pointing at the configuration file
// Bootstrap generates there.
func New(dir string, params Params, opts ...Option) *Authority {
	a := &Authority{
		dir:    dir,
		params: params,
		runner: &ExecRunner{
			Dir: dir,
			Env: []string{"OPENSSL_CONF=" + filepath.Join(dir, opensslConfName)},
		},
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.With("component", "ca")
	return a
}

// Dir returns the authority's root directory.
func (a *Authority) Dir() string {
	return a.dir
}

// CAFiles returns the CA artifact paths for this authority.
func (a *Authority) CAFiles() CAFiles {
	return CAFilesIn(a.dir)
}

// ServerFiles returns the server artifact paths for this authority.
func (a *Authority) ServerFiles() IdentityFiles {
	return ServerFilesIn(a.dir)
}

// ClientFiles returns the artifact paths for the named client.
func (a *Authority) ClientFiles(name string) IdentityFiles {
	return ClientFilesIn(a.dir, name)
}

// RemovePrivateServerFiles deletes every server artifact except the public
// certificate. Missing files are not an error; redemption and explicit
// cleanup may race benignly.
func (a *Authority) RemovePrivateServerFiles() error {
	return removeFiles(a.ServerFiles().private())
}

// RemovePrivateClientFiles deletes every artifact of the named client except
// the public certificate.
func (a *Authority) RemovePrivateClientFiles(name string) error {
	return removeFiles(a.ClientFiles(name).private())
}

func removeFiles(paths []string) error {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", p, err)
		}
	}
	return nil
}

func (a *Authority) subj(commonName, email string) string {
	p := a.params
	return fmt.Sprintf("/C=%s/ST=%s/L=%s/O=%s/OU=%s/CN=%s/emailAddress=%s",
		p.Country, p.Province, p.City, p.Org, p.OrgUnit, commonName, email)
}
