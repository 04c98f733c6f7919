package httphandler

import (
	"encoding/json"
	"net/http"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// AuthRequest is the JSON body of the authentication endpoint. SteamID is the
// field name used by older front ends and is read when AccountID is empty.
type AuthRequest struct {
	AccountID string `json:"account_id"`
	SteamID   string `json:"steam_id"`
	APIKey    string `json:"api_key"`
}

func (r AuthRequest) accountID() string {
	if r.AccountID != "" {
		return r.AccountID
	}
	return r.SteamID
}

// TokenRequest is the JSON body of endpoints taking a session token.
// SessionToken is the older field name.
type TokenRequest struct {
	Token        string `json:"token"`
	SessionToken string `json:"session_token"`
}

func (r TokenRequest) token() string {
	if r.Token != "" {
		return r.Token
	}
	return r.SessionToken
}

// AuthResponse is returned on successful authentication. SessionToken and
// Success repeat the result under the names older front ends read.
type AuthResponse struct {
	Token        string `json:"token"`
	ExpiresAt    string `json:"expires_at"`
	SessionToken string `json:"session_token"`
	Success      bool   `json:"success"`
}

// ValidateResponse reports whether a token is currently usable.
type ValidateResponse struct {
	Valid bool `json:"valid"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}
