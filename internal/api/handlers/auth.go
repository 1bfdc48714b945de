package handlers

import (
	"errors"
	"net/http"

	domainauth "github.com/matiasleandrokruk/toolscope/internal/domain/auth"
)

// AuthHandler exchanges API client credentials for a JWT. Public endpoint.
type AuthHandler struct {
	authService domainauth.AuthService
}

func NewAuthHandler(authService domainauth.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// TokenRequest is the body of POST /auth/token.
type TokenRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

// TokenResponse uses camelCase like the rest of the API.
type TokenResponse struct {
	Token       string `json:"token"`
	TokenType   string `json:"tokenType"`
	ClientID    string `json:"clientId"`
	WorkspaceID string `json:"workspaceId"`
}

// Token handles POST /auth/token.
//
// Response codes:
//   - 200 OK: credentials valid
//   - 400 Bad Request: invalid JSON or missing fields
//   - 401 Unauthorized: unknown client, revoked client or wrong secret alike
//   - 500 Internal Server Error: unexpected failure
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateTokenRequest(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.authService.IssueToken(r.Context(), req.ClientID, req.ClientSecret)
	if err != nil {
		if errors.Is(err, domainauth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "token issuance failed")
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		Token:       result.Token,
		TokenType:   "Bearer",
		ClientID:    result.ClientID,
		WorkspaceID: result.WorkspaceID,
	})
}

func validateTokenRequest(req TokenRequest) error {
	if req.ClientID == "" {
		return errors.New("clientId is required")
	}
	if req.ClientSecret == "" {
		return errors.New("clientSecret is required")
	}
	return nil
}
