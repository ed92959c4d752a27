package ca

import "path/filepath"

// Subdirectories of the CA tree. The filesystem is the system of record for
// issued material; every identity owns an exclusive namespace below one of
// these.
const (
	commonDir  = "CA/common"
	serverDir  = "CA/server"
	clientsDir = "CA/clients"
)

// CAFiles lists the artifact paths owned by the certificate authority
// identity.
type CAFiles struct {
	Cer   string // self-signed CA certificate
	Key   string // CA private key
	CRL   string // certificate revocation list
	TA    string // TLS-auth pre-shared secret
	Index string // openssl ca serial index
}

// IdentityFiles lists the artifact paths owned by a server or client
// identity. DH is generated last and doubles as the completion sentinel for
// the identity's pipeline.
type IdentityFiles struct {
	Cer string
	Key string
	Req string
	P12 string
	DH  string
}

// CAFilesIn derives the CA artifact paths under dir. Pure; callable before
// any file exists.
func CAFilesIn(dir string) CAFiles {
	common := filepath.Join(dir, commonDir)
	return CAFiles{
		Cer:   filepath.Join(common, "ca.cer"),
		Key:   filepath.Join(common, "ca.key"),
		CRL:   filepath.Join(common, "crl.pem"),
		TA:    filepath.Join(common, "ta.key"),
		Index: filepath.Join(dir, "CA", "index.txt"),
	}
}

// ServerFilesIn derives the server artifact paths under dir.
func ServerFilesIn(dir string) IdentityFiles {
	return identityFilesIn(filepath.Join(dir, serverDir), "server")
}

// ClientFilesIn derives the artifact paths for the named client under dir.
func ClientFilesIn(dir, name string) IdentityFiles {
	return identityFilesIn(filepath.Join(dir, clientsDir), name)
}

func identityFilesIn(dir, name string) IdentityFiles {
	return IdentityFiles{
		Cer: filepath.Join(dir, name+".cer"),
		Key: filepath.Join(dir, name+".key"),
		Req: filepath.Join(dir, name+".req"),
		P12: filepath.Join(dir, name+".p12"),
		DH:  filepath.Join(dir, name+".dh"),
	}
}

// private returns the artifact paths that must be removed once the identity's
// bundle has been delivered. The public certificate stays behind so the
// expiry scanner can keep inspecting it.
func (f IdentityFiles) private() []string {
	return []string{f.Key, f.Req, f.P12, f.DH}
}
