package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMissingFileUsesDefaults(t *testing.T) {
	f, err := Open(filepath.Join(t.TempDir(), "params.json"))
	require.NoError(t, err)

	p := f.Params()
	assert.Equal(t, "openssl", p.OpenSSLPath)
	assert.Equal(t, "openvpn", p.OpenVPNPath)
	assert.Equal(t, 2048, p.KeyBitSize)
	assert.Equal(t, 30, p.RenewalWindowDays)
	assert.Empty(t, p.CAPassphrase)
	assert.Empty(t, p.TokenSecret)
}

func TestOpenExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"key_bit_size": 4096, "ca_passphrase": "sekrit"}`), 0o600))

	f, err := Open(path)
	require.NoError(t, err)

	p := f.Params()
	assert.Equal(t, 4096, p.KeyBitSize)
	assert.Equal(t, "sekrit", p.CAPassphrase)
	// Unset fields still get defaults.
	assert.Equal(t, "openssl", p.OpenSSLPath)
}

func TestEnsureSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.json")
	f, err := Open(path)
	require.NoError(t, err)

	p, err := f.EnsureSecrets()
	require.NoError(t, err)
	assert.Len(t, p.CAPassphrase, 30)
	assert.NotEmpty(t, p.TokenSecret)

	// The secrets are persisted and survive a reload.
	f2, err := Open(path)
	require.NoError(t, err)
	p2, err := f2.EnsureSecrets()
	require.NoError(t, err)
	assert.Equal(t, p.CAPassphrase, p2.CAPassphrase)
	assert.Equal(t, p.TokenSecret, p2.TokenSecret)
}

func TestUpdatePersistsAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.json")
	f, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, f.Update(func(p *Params) error {
		p.ServerCN = "vpn.internal"
		return nil
	}))
	assert.Equal(t, "vpn.internal", f.Params().ServerCN)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk Params
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, "vpn.internal", onDisk.ServerCN)

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestUpdateErrorLeavesStateUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.json")
	f, err := Open(path)
	require.NoError(t, err)

	before := f.Params()
	require.Error(t, f.Update(func(p *Params) error {
		p.ServerCN = "mutated"
		return os.ErrInvalid
	}))
	assert.Equal(t, before, f.Params())
	assert.NoFileExists(t, path)
}
