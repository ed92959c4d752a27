package ca

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
)

// step is one toolchain invocation with the artifact it is expected to
// produce. A step whose artifact already exists is skipped, so pipelines
// resume at step granularity after a partial failure or restart.
type step struct {
	output string
	bin    string
	args   []string
}

// runSteps executes steps in order. Once any step actually runs, every later
// step runs too: each step's input is its predecessor's output, so a
// regenerated upstream artifact invalidates whatever is still on disk
// downstream (the public certificate survives redemption cleanup and must be
// re-signed when the key is regenerated).
//
// After each invocation the expected artifact must exist and be non-empty;
// a nonzero exit or a missing artifact fails the pipeline.
func (a *Authority) runSteps(ctx context.Context, steps []step) error {
	rerun := false
	for _, st := range steps {
		if !rerun && artifactExists(st.output) {
			a.log.Debug("artifact present, skipping step", "artifact", st.output)
			continue
		}
		rerun = true
		a.log.Info("running toolchain step", "bin", st.bin, "artifact", st.output)
		if err := a.runner.Run(ctx, st.bin, st.args...); err != nil {
			if errors.Is(err, ErrToolchainUnavailable) {
				return err
			}
			return fmt.Errorf("producing %s: %v: %w", st.output, err, ErrStepFailed)
		}
		if !artifactExists(st.output) {
			return fmt.Errorf("%s missing or empty after toolchain exit: %w", st.output, ErrStepFailed)
		}
	}
	return nil
}

// artifactExists reports whether path exists with non-zero size. A truncated
// artifact from an interrupted process must not satisfy its step.
func artifactExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Size() > 0
}

// EnsureCA makes sure the CA identity's artifacts exist: the TLS-auth
// pre-shared secret and the self-signed CA key and certificate. Safe to
// re-run; with all artifacts present it performs no invocations.
func (a *Authority) EnsureCA(ctx context.Context) error {
	files := a.CAFiles()
	p := a.params

	if !artifactExists(files.TA) {
		err := a.runSteps(ctx, []step{{
			output: files.TA,
			bin:    p.OpenVPNPath,
			args:   []string{"--genkey", "--secret", files.TA},
		}})
		if err != nil {
			return err
		}
	}

	if artifactExists(files.Key) {
		return nil
	}

	// Fresh CA: seed the serial index the signing steps depend on.
	if err := os.WriteFile(files.Index, []byte("1"), 0o600); err != nil {
		return fmt.Errorf("writing serial index: %w", err)
	}

	return a.runSteps(ctx, []step{{
		output: files.Key,
		bin:    p.OpenSSLPath,
		args: []string{
			"req", "-new", "-x509",
			"-days", strconv.Itoa(p.CALifetimeDays),
			"-extensions", "v3_ca",
			"-newkey", fmt.Sprintf("rsa:%d", p.KeyBitSize),
			"-keyout", files.Key,
			"-out", files.Cer,
			"-batch",
			"-passout", "pass:" + p.Passphrase,
		},
	}})
}

// EnsureServer makes sure the singleton server identity's artifacts exist.
// The DH-parameter file is generated last and gates the whole pipeline: its
// presence means a previous run completed.
func (a *Authority) EnsureServer(ctx context.Context) error {
	files := a.ServerFiles()
	if artifactExists(files.DH) {
		return nil
	}
	return a.runSteps(ctx, a.identitySteps(files, a.params.ServerCN, a.params.ServerEmail,
		"v3_server", a.params.ServerLifetimeDays))
}

// EnsureClient makes sure the named client identity's artifacts exist. Same
// shape and sentinel as EnsureServer, keyed by client name.
func (a *Authority) EnsureClient(ctx context.Context, name, email string) error {
	files := a.ClientFiles(name)
	if artifactExists(files.DH) {
		return nil
	}
	return a.runSteps(ctx, a.identitySteps(files, name, email,
		"v3_client", a.params.ClientLifetimeDays))
}

// identitySteps builds the five-step issuance pipeline shared by server and
// client identities: key, CSR, signed certificate, PKCS#12 export, DH
// parameters.
func (a *Authority) identitySteps(files IdentityFiles, commonName, email, extensions string, lifetimeDays int) []step {
	p := a.params
	caFiles := a.CAFiles()
	return []step{
		{
			output: files.Key,
			bin:    p.OpenSSLPath,
			args: []string{
				"genrsa",
				"-out", files.Key,
				"-aes256",
				"-passout", "pass:" + p.Passphrase,
				strconv.Itoa(p.KeyBitSize),
			},
		},
		{
			output: files.Req,
			bin:    p.OpenSSLPath,
			args: []string{
				"req", "-new",
				"-key", files.Key,
				"-passin", "pass:" + p.Passphrase,
				"-out", files.Req,
				"-extensions", extensions,
				"-batch",
				"-subj", a.subj(commonName, email),
			},
		},
		{
			output: files.Cer,
			bin:    p.OpenSSLPath,
			args: []string{
				"x509", "-req",
				"-days", strconv.Itoa(lifetimeDays),
				"-extfile", a.opensslConfPath(),
				"-extensions", extensions,
				"-in", files.Req,
				"-CA", caFiles.Cer,
				"-CAkey", caFiles.Key,
				"-CAcreateserial",
				"-out", files.Cer,
				"-passin", "pass:" + p.Passphrase,
			},
		},
		{
			output: files.P12,
			bin:    p.OpenSSLPath,
			args: []string{
				"pkcs12", "-export",
				"-password", "pass:",
				"-in", files.Cer,
				"-inkey", files.Key,
				"-passin", "pass:" + p.Passphrase,
				"-certfile", caFiles.Cer,
				"-out", files.P12,
			},
		},
		{
			output: files.DH,
			bin:    p.OpenSSLPath,
			args: []string{
				"gendh",
				"-out", files.DH,
				strconv.Itoa(dhBits),
			},
		},
	}
}

const dhBits = 2048
