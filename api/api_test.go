package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/vpnca/ca"
	"github.com/jmcleod/vpnca/provision"
	"github.com/jmcleod/vpnca/store/memory"
	"github.com/jmcleod/vpnca/token"
)

// stubAuthority issues canned bundles without touching a toolchain.
type stubAuthority struct {
	block       chan struct{} // pipelines wait on this when non-nil
	clientInfos []ca.CertInfo
}

func (s *stubAuthority) ensure() error {
	if s.block != nil {
		<-s.block
	}
	return nil
}

func (s *stubAuthority) EnsureServer(ctx context.Context) error { return s.ensure() }

func (s *stubAuthority) EnsureClient(ctx context.Context, name, email string) error {
	return s.ensure()
}

func (s *stubAuthority) ServerConfig() (string, error) {
	return "port 1194\n<dh>\nDH\n</dh>\n", nil
}

func (s *stubAuthority) ClientConfig(name string) (string, error) {
	return fmt.Sprintf("client\n<cert>\n%s\n</cert>\n", name), nil
}

func (s *stubAuthority) RemovePrivateServerFiles() error { return nil }

func (s *stubAuthority) RemovePrivateClientFiles(name string) error { return nil }

func (s *stubAuthority) AllServerCertInfo(ctx context.Context) ([]ca.CertInfo, error) {
	return nil, nil
}

func (s *stubAuthority) AllClientCertInfo(ctx context.Context) ([]ca.CertInfo, error) {
	return s.clientInfos, nil
}

var _ provision.Authority = (*stubAuthority)(nil)

func newTestServer(t *testing.T, authority *stubAuthority) (*httptest.Server, *provision.Service) {
	t.Helper()
	issuer := token.NewIssuer([]byte("test-secret"))
	svc := provision.New(memory.New(), issuer, authority)
	srv := httptest.NewServer(New(svc).Router())
	t.Cleanup(srv.Close)
	return srv, svc
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(method, url, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestClientConfigFlow(t *testing.T) {
	authority := &stubAuthority{block: make(chan struct{})}
	srv, svc := newTestServer(t, authority)

	resp := doJSON(t, http.MethodPost, srv.URL+"/client/configs",
		ClientConfigsRequest{ClientName: "alice", ClientEmail: "alice@example.com"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	tok := decodeBody[TokenResponse](t, resp).Token
	require.NotEmpty(t, tok)

	// While the pipeline runs, the same endpoint reports the status.
	resp = doJSON(t, http.MethodPost, srv.URL+"/client/configs",
		ClientConfigsRequest{Token: tok})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "REQUEST_CREATED", decodeBody[StatusResponse](t, resp).Status)

	close(authority.block)
	svc.Wait()

	resp = doJSON(t, http.MethodPost, srv.URL+"/client/configs",
		ClientConfigsRequest{Token: tok})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-openvpn-profile", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "<cert>\nalice\n</cert>")

	// The token was consumed with the bundle.
	resp = doJSON(t, http.MethodPost, srv.URL+"/client/configs",
		ClientConfigsRequest{Token: tok})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestClientConfigConflict(t *testing.T) {
	authority := &stubAuthority{block: make(chan struct{})}
	srv, svc := newTestServer(t, authority)
	defer func() {
		close(authority.block)
		svc.Wait()
	}()

	body := ClientConfigsRequest{ClientName: "alice", ClientEmail: "alice@example.com"}
	resp := doJSON(t, http.MethodPost, srv.URL+"/client/configs", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/client/configs", body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestClientConfigBadRequests(t *testing.T) {
	srv, _ := newTestServer(t, &stubAuthority{})

	t.Run("InvalidName", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, srv.URL+"/client/configs",
			ClientConfigsRequest{ClientName: "../evil", ClientEmail: "x@example.com"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("InvalidToken", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, srv.URL+"/client/configs",
			ClientConfigsRequest{Token: "not-a-token"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("MalformedBody", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/client/configs", "application/json",
			bytes.NewReader([]byte("{")))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestCancelClientRequest(t *testing.T) {
	authority := &stubAuthority{block: make(chan struct{})}
	srv, svc := newTestServer(t, authority)
	defer func() {
		close(authority.block)
		svc.Wait()
	}()

	resp := doJSON(t, http.MethodPost, srv.URL+"/client/configs",
		ClientConfigsRequest{ClientName: "alice", ClientEmail: "alice@example.com"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/client/configs",
		CancelClientRequestBody{ClientName: "alice"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Cancelling again: nothing left to cancel.
	resp = doJSON(t, http.MethodDelete, srv.URL+"/client/configs",
		CancelClientRequestBody{ClientName: "alice"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// The subject is free for a new request.
	resp = doJSON(t, http.MethodPost, srv.URL+"/client/configs",
		ClientConfigsRequest{ClientName: "alice", ClientEmail: "alice@example.com"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestServerConfigFlow(t *testing.T) {
	authority := &stubAuthority{}
	srv, svc := newTestServer(t, authority)

	resp := doJSON(t, http.MethodPost, srv.URL+"/server/config", ServerConfigRequest{})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	tok := decodeBody[TokenResponse](t, resp).Token

	resp = doJSON(t, http.MethodPost, srv.URL+"/server/config", ServerConfigRequest{})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	svc.Wait()
	resp = doJSON(t, http.MethodPost, srv.URL+"/server/config", ServerConfigRequest{Token: tok})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-openvpn-profile", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "<dh>")
}

func TestCancelServerRequest(t *testing.T) {
	authority := &stubAuthority{}
	srv, svc := newTestServer(t, authority)

	resp := doJSON(t, http.MethodPost, srv.URL+"/server/config", ServerConfigRequest{})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	svc.Wait()

	resp = doJSON(t, http.MethodDelete, srv.URL+"/server/config", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRenew(t *testing.T) {
	authority := &stubAuthority{
		clientInfos: []ca.CertInfo{
			{Path: "alice.cer", CommonName: "alice", Email: "alice@example.com",
				ExpireDate: time.Now().Add(24 * time.Hour)},
		},
	}
	srv, svc := newTestServer(t, authority)

	resp := doJSON(t, http.MethodPost, srv.URL+"/renew", RenewRequest{WindowDays: 30})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decodeBody[RenewResponse](t, resp).Renewals)
	svc.Wait()
}
