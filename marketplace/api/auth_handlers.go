package api

import (
	"errors"
	"net/http"

	"roomlink-api/marketplace/application"
	"roomlink-api/marketplace/domain"
	"roomlink-api/middleware/bearer"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	tok, err := h.Auth.Register(r.Context(), application.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: tok})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	tok, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if h.Metrics != nil && isCredentialMismatch(err) {
			h.Metrics.AuthFailures.WithLabelValues("credential_mismatch").Inc()
		}
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: tok})
}

type meResponse struct {
	Authenticated bool    `json:"authenticated"`
	User          *string `json:"user"`
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	subject, ok := bearer.Subject(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, meResponse{})
		return
	}
	writeJSON(w, http.StatusOK, meResponse{Authenticated: true, User: &subject})
}

func isCredentialMismatch(err error) bool {
	return errors.Is(err, domain.ErrCredentialMismatch)
}
