package ca

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	clientTemplateName = "openvpn_config_client_template.ovpn"
	serverTemplateName = "openvpn_config_server_template.ovpn"
)

//go:embed openvpn_client.ovpn
var defaultClientTemplate string

//go:embed openvpn_server.ovpn
var defaultServerTemplate string

// ClientConfig assembles the deliverable OpenVPN configuration bundle for
// the named client: the profile template followed by the CA certificate,
// client certificate, client key, and TLS-auth secret, each in a tagged
// block. The caller is responsible for removing the private artifacts once
// the bundle has been delivered.
func (a *Authority) ClientConfig(name string) (string, error) {
	var sb strings.Builder
	tmpl, err := a.template(clientTemplateName, defaultClientTemplate)
	if err != nil {
		return "", err
	}
	sb.WriteString(tmpl)

	caFiles := a.CAFiles()
	clientFiles := a.ClientFiles(name)
	blocks := []struct {
		tag  string
		path string
	}{
		{"ca", caFiles.Cer},
		{"cert", clientFiles.Cer},
		{"key", clientFiles.Key},
	}
	for _, b := range blocks {
		if err := writeTaggedBlock(&sb, b.tag, b.path); err != nil {
			return "", err
		}
	}
	sb.WriteString("key-direction 1\n")
	if err := writeTaggedBlock(&sb, "tls-auth", caFiles.TA); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// ServerConfig assembles the OpenVPN server configuration bundle: template,
// CA certificate, server certificate, server key, DH parameters, and the
// TLS-auth secret.
func (a *Authority) ServerConfig() (string, error) {
	var sb strings.Builder
	tmpl, err := a.template(serverTemplateName, defaultServerTemplate)
	if err != nil {
		return "", err
	}
	sb.WriteString(tmpl)

	caFiles := a.CAFiles()
	serverFiles := a.ServerFiles()
	blocks := []struct {
		tag  string
		path string
	}{
		{"ca", caFiles.Cer},
		{"cert", serverFiles.Cer},
		{"key", serverFiles.Key},
		{"dh", serverFiles.DH},
	}
	for _, b := range blocks {
		if err := writeTaggedBlock(&sb, b.tag, b.path); err != nil {
			return "", err
		}
	}
	sb.WriteString("key-direction 0\n")
	if err := writeTaggedBlock(&sb, "tls-auth", caFiles.TA); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// template reads an operator-provided profile template from the authority
// directory, falling back to the embedded default.
func (a *Authority) template(name, fallback string) (string, error) {
	data, err := os.ReadFile(filepath.Join(a.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("reading template %s: %w", name, err)
	}
	return string(data), nil
}

func writeTaggedBlock(sb *strings.Builder, tag, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s block: %w", tag, err)
	}
	fmt.Fprintf(sb, "<%s>\n%s</%s>\n", tag, data, tag)
	return nil
}
