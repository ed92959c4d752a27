package ca

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCAFilesIn(t *testing.T) {
	files := CAFilesIn("/srv/vpnca")
	assert.Equal(t, filepath.FromSlash("/srv/vpnca/CA/common/ca.cer"), files.Cer)
	assert.Equal(t, filepath.FromSlash("/srv/vpnca/CA/common/ca.key"), files.Key)
	assert.Equal(t, filepath.FromSlash("/srv/vpnca/CA/common/crl.pem"), files.CRL)
	assert.Equal(t, filepath.FromSlash("/srv/vpnca/CA/common/ta.key"), files.TA)
	assert.Equal(t, filepath.FromSlash("/srv/vpnca/CA/index.txt"), files.Index)
}

func TestServerFilesIn(t *testing.T) {
	files := ServerFilesIn("/srv/vpnca")
	assert.Equal(t, filepath.FromSlash("/srv/vpnca/CA/server/server.cer"), files.Cer)
	assert.Equal(t, filepath.FromSlash("/srv/vpnca/CA/server/server.key"), files.Key)
	assert.Equal(t, filepath.FromSlash("/srv/vpnca/CA/server/server.req"), files.Req)
	assert.Equal(t, filepath.FromSlash("/srv/vpnca/CA/server/server.p12"), files.P12)
	assert.Equal(t, filepath.FromSlash("/srv/vpnca/CA/server/server.dh"), files.DH)
}

func TestClientFilesIn(t *testing.T) {
	files := ClientFilesIn("/srv/vpnca", "alice")
	assert.Equal(t, filepath.FromSlash("/srv/vpnca/CA/clients/alice.cer"), files.Cer)
	assert.Equal(t, filepath.FromSlash("/srv/vpnca/CA/clients/alice.dh"), files.DH)
}

func TestPrivateFilesExcludeCertificate(t *testing.T) {
	files := ClientFilesIn("/srv/vpnca", "alice")
	private := files.private()
	assert.NotContains(t, private, files.Cer)
	assert.ElementsMatch(t, []string{files.Key, files.Req, files.P12, files.DH}, private)
}
