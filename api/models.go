package api

// ClientConfigsRequest is the JSON body for POST /client/configs. Without a
// token it creates a new issuance request; with a token it polls/redeems an
// existing one.
type ClientConfigsRequest struct {
	ClientName  string `json:"client_name,omitempty"`
	ClientEmail string `json:"client_email,omitempty"`
	Token       string `json:"token,omitempty"`
}

// CancelClientRequestBody is the JSON body for DELETE /client/configs.
type CancelClientRequestBody struct {
	ClientName string `json:"client_name"`
}

// ServerConfigRequest is the JSON body for POST /server/config.
type ServerConfigRequest struct {
	Token string `json:"token,omitempty"`
}

// TokenResponse is returned when a new issuance request has been created.
type TokenResponse struct {
	Token string `json:"token"`
}

// StatusResponse is returned when a polled request is not READY yet.
type StatusResponse struct {
	Status string `json:"status"`
}

// RenewRequest is the JSON body for POST /renew.
type RenewRequest struct {
	WindowDays int `json:"window_days,omitempty"`
}

// RenewResponse is returned from POST /renew.
type RenewResponse struct {
	Renewals int `json:"renewals"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
