// Package config manages the persisted parameters file for the CA daemon.
//
// The file plays the same role as a conventional config file but is also a
// small piece of mutable state: the CA passphrase and the token-signing
// secret are generated on first run and written back. All mutation goes
// through File.Update, which performs an atomic load-modify-persist cycle.
package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmcleod/vpnca/internal/util"
)

const (
	passphraseLength = 30
	tokenSecretBytes = 32
)

// SMTP holds the mail relay settings used for renewal notifications.
type SMTP struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	From     string `json:"from"`
}

// Params is the persisted parameter set. Zero fields are filled with
// defaults when the file is loaded.
type Params struct {
	OpenSSLPath string `json:"openssl_path"`
	OpenVPNPath string `json:"openvpn_path"`

	KeyBitSize         int `json:"key_bit_size"`
	CALifetimeDays     int `json:"ca_lifetime_days"`
	ServerLifetimeDays int `json:"server_lifetime_days"`
	ClientLifetimeDays int `json:"client_lifetime_days"`
	RenewalWindowDays  int `json:"renewal_window_days"`

	// Distinguished-name fields stamped into every CSR.
	Country  string `json:"country"`
	Province string `json:"province"`
	City     string `json:"city"`
	Org      string `json:"org"`
	OrgUnit  string `json:"org_unit"`

	ServerCN    string `json:"server_cn"`
	ServerEmail string `json:"server_email"`

	// Generated on first run and persisted thereafter.
	CAPassphrase string `json:"ca_passphrase,omitempty"`
	TokenSecret  string `json:"token_secret,omitempty"`

	// Public base URL embedded in renewal emails.
	ServerURL string `json:"server_url,omitempty"`

	// Where the server-config CLI command writes the assembled .ovpn file.
	ServerConfigPath string `json:"server_config_path,omitempty"`

	// Cron schedule for automatic renewal scans. Empty disables the job.
	RenewalSchedule string `json:"renewal_schedule,omitempty"`

	TLSCert string `json:"tls_cert,omitempty"`
	TLSKey  string `json:"tls_key,omitempty"`

	SMTP *SMTP `json:"smtp,omitempty"`
}

func (p *Params) applyDefaults() {
	if p.OpenSSLPath == "" {
		p.OpenSSLPath = "openssl"
	}
	if p.OpenVPNPath == "" {
		p.OpenVPNPath = "openvpn"
	}
	if p.KeyBitSize == 0 {
		p.KeyBitSize = 2048
	}
	if p.CALifetimeDays == 0 {
		p.CALifetimeDays = 3650
	}
	if p.ServerLifetimeDays == 0 {
		p.ServerLifetimeDays = 365
	}
	if p.ClientLifetimeDays == 0 {
		p.ClientLifetimeDays = 365
	}
	if p.RenewalWindowDays == 0 {
		p.RenewalWindowDays = 30
	}
	if p.Country == "" {
		p.Country = "CA"
	}
	if p.Province == "" {
		p.Province = "Ontario"
	}
	if p.City == "" {
		p.City = "Toronto"
	}
	if p.Org == "" {
		p.Org = "none"
	}
	if p.OrgUnit == "" {
		p.OrgUnit = "none"
	}
	if p.ServerCN == "" {
		p.ServerCN = "vpn-server"
	}
}

// File is a handle to the parameters file. All reads return a copy of the
// in-memory state; all writes go through Update.
type File struct {
	path string

	mu     sync.Mutex
	params Params
}

// Open loads the parameters file at path, applying defaults for any missing
// fields. A missing file yields pure defaults; it is created on the first
// Update.
func Open(path string) (*File, error) {
	f := &File{path: path}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// First run.
	case err != nil:
		return nil, fmt.Errorf("reading params file: %w", err)
	default:
		if err := json.Unmarshal(data, &f.params); err != nil {
			return nil, fmt.Errorf("parsing params file %s: %w", path, err)
		}
	}
	f.params.applyDefaults()
	return f, nil
}

// Path returns the location of the parameters file.
func (f *File) Path() string {
	return f.path
}

// Params returns a copy of the current parameters.
func (f *File) Params() Params {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.params
}

// Update applies fn to a copy of the parameters, persists the result
// atomically (write to temp file, rename), and swaps the in-memory state
// only after the write succeeds.
func (f *File) Update(fn func(*Params) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := f.params
	if err := fn(&next); err != nil {
		return err
	}
	if err := writeFileAtomic(f.path, &next); err != nil {
		return err
	}
	f.params = next
	return nil
}

// EnsureSecrets generates and persists the CA passphrase and token-signing
// secret if either is absent, and returns the resulting parameters.
func (f *File) EnsureSecrets() (Params, error) {
	err := f.Update(func(p *Params) error {
		if p.CAPassphrase == "" {
			pass, err := util.RandomPassphrase(passphraseLength)
			if err != nil {
				return fmt.Errorf("generating CA passphrase: %w", err)
			}
			p.CAPassphrase = pass
		}
		if p.TokenSecret == "" {
			secret, err := util.RandomBytes(tokenSecretBytes)
			if err != nil {
				return fmt.Errorf("generating token secret: %w", err)
			}
			p.TokenSecret = base64.RawURLEncoding.EncodeToString(secret)
		}
		return nil
	})
	if err != nil {
		return Params{}, err
	}
	return f.Params(), nil
}

func writeFileAtomic(path string, p *Params) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding params: %w", err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".params-*.json")
	if err != nil {
		return fmt.Errorf("creating temp params file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing params: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp params file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("setting params file mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing params file: %w", err)
	}
	return nil
}
