package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jmcleod/vpnca/store"
)

const bundleContentType = "application/x-openvpn-profile"

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding request body: %w", err)
	}
	return nil
}

// ClientConfigs handles POST /client/configs. Without a token the body names
// a client and a new issuance request is created; with a token the request
// is polled and, once READY, the bundle is delivered exactly once.
func (a *API) ClientConfigs(w http.ResponseWriter, r *http.Request) {
	var req ClientConfigsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Token == "" {
		tokenString, err := a.svc.RequestClient(r.Context(), req.ClientName, req.ClientEmail)
		if err != nil {
			mapError(w, err)
			return
		}
		a.log.Info("client issuance requested", "client", req.ClientName)
		writeJSON(w, http.StatusCreated, TokenResponse{Token: tokenString})
		return
	}
	a.redeem(w, r, req.Token)
}

// ServerConfig handles POST /server/config with the same create-or-redeem
// protocol as ClientConfigs, for the singleton server identity.
func (a *API) ServerConfig(w http.ResponseWriter, r *http.Request) {
	var req ServerConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Token == "" {
		tokenString, err := a.svc.RequestServer(r.Context())
		if err != nil {
			mapError(w, err)
			return
		}
		a.log.Info("server issuance requested")
		writeJSON(w, http.StatusCreated, TokenResponse{Token: tokenString})
		return
	}
	a.redeem(w, r, req.Token)
}

func (a *API) redeem(w http.ResponseWriter, r *http.Request, tokenString string) {
	res, err := a.svc.Redeem(r.Context(), tokenString)
	if err != nil {
		mapError(w, err)
		return
	}
	if res.Status != store.StatusReady {
		writeJSON(w, http.StatusOK, StatusResponse{Status: string(res.Status)})
		return
	}
	w.Header().Set("Content-Type", bundleContentType)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(res.Bundle))
}

// CancelClientRequest handles DELETE /client/configs.
func (a *API) CancelClientRequest(w http.ResponseWriter, r *http.Request) {
	var req CancelClientRequestBody
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.svc.Cancel(r.Context(), store.ClientSubject(req.ClientName)); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CancelServerRequest handles DELETE /server/config.
func (a *API) CancelServerRequest(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Cancel(r.Context(), store.ServerSubject); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Renew handles POST /renew, triggering an immediate expiry scan.
func (a *API) Renew(w http.ResponseWriter, r *http.Request) {
	var req RenewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	renewals, err := a.svc.ScanAndRenew(r.Context(), req.WindowDays)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RenewResponse{Renewals: renewals})
}
