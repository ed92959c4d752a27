package ca

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CertInfo is a read-only view of an existing certificate, derived from the
// toolchain's inspection command. Not persisted anywhere.
type CertInfo struct {
	Path       string
	ExpireDate time.Time
	Email      string
	CommonName string
}

// openssl prints validity dates like "notAfter=Mar  3 12:00:00 2027 GMT".
const opensslDateLayout = "Jan _2 15:04:05 2006 MST"

// CertInfo inspects the certificate at cerPath.
func (a *Authority) CertInfo(ctx context.Context, cerPath string) (CertInfo, error) {
	info := CertInfo{Path: cerPath}

	dates, err := a.runner.Output(ctx, a.params.OpenSSLPath,
		"x509", "-in", cerPath, "-noout", "-dates")
	if err != nil {
		return info, fmt.Errorf("inspecting dates of %s: %w", cerPath, err)
	}
	info.ExpireDate, err = parseNotAfter(string(dates))
	if err != nil {
		return info, fmt.Errorf("parsing dates of %s: %w", cerPath, err)
	}

	email, err := a.runner.Output(ctx, a.params.OpenSSLPath,
		"x509", "-in", cerPath, "-noout", "-email")
	if err != nil {
		return info, fmt.Errorf("inspecting email of %s: %w", cerPath, err)
	}
	info.Email = firstLine(string(email))

	subject, err := a.runner.Output(ctx, a.params.OpenSSLPath,
		"x509", "-in", cerPath, "-noout", "-subject")
	if err != nil {
		return info, fmt.Errorf("inspecting subject of %s: %w", cerPath, err)
	}
	info.CommonName = parseCommonName(string(subject))

	return info, nil
}

// AllServerCertInfo inspects every certificate in the server artifact
// directory.
func (a *Authority) AllServerCertInfo(ctx context.Context) ([]CertInfo, error) {
	return a.allCertInfo(ctx, filepath.Join(a.dir, serverDir))
}

// AllClientCertInfo inspects every certificate in the clients artifact
// directory.
func (a *Authority) AllClientCertInfo(ctx context.Context) ([]CertInfo, error) {
	return a.allCertInfo(ctx, filepath.Join(a.dir, clientsDir))
}

func (a *Authority) allCertInfo(ctx context.Context, dir string) ([]CertInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var infos []CertInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".cer") {
			continue
		}
		info, err := a.CertInfo(ctx, filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// parseNotAfter extracts the expiry from `openssl x509 -dates` output.
func parseNotAfter(out string) (time.Time, error) {
	for _, line := range strings.Split(out, "\n") {
		value, ok := strings.CutPrefix(strings.TrimSpace(line), "notAfter=")
		if !ok {
			continue
		}
		t, err := time.Parse(opensslDateLayout, strings.TrimSpace(value))
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing notAfter %q: %w", value, err)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("no notAfter line in %q", out)
}

// parseCommonName extracts CN from `openssl x509 -subject` output, which
// different openssl versions print as either slash-separated
// ("/C=CA/CN=alice/...") or comma-separated ("subject=C = CA, CN = alice").
func parseCommonName(out string) string {
	out = firstLine(out)
	for _, sep := range []string{"/", ","} {
		for _, part := range strings.Split(out, sep) {
			part = strings.TrimSpace(part)
			if value, ok := strings.CutPrefix(part, "CN="); ok {
				return strings.TrimSpace(value)
			}
			if value, ok := strings.CutPrefix(part, "CN ="); ok {
				return strings.TrimSpace(value)
			}
		}
	}
	return ""
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
