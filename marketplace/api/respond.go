package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"roomlink-api/marketplace/domain"

	"github.com/sirupsen/logrus"
)

type messageBody struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageBody{Message: msg})
}

// writeError traduz erros de domínio para status HTTP. Erros desconhecidos viram
// 500 sem expor detalhes ao cliente.
func writeError(w http.ResponseWriter, r *http.Request, logger *logrus.Logger, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, messageBody{Message: ve.Message, Field: ve.Field})
	case errors.Is(err, domain.ErrEmailTaken):
		writeMessage(w, http.StatusBadRequest, "Email already registered")
	case errors.Is(err, domain.ErrCredentialMismatch):
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, domain.ErrUnknownIdentity):
		w.Header().Set("WWW-Authenticate", `Bearer realm="roomlink", error="invalid_token"`)
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, domain.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Not Found")
	case errors.Is(err, domain.ErrTooLarge):
		writeMessage(w, http.StatusRequestEntityTooLarge, "File too large")
	default:
		if logger != nil {
			logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		}
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

// decodeJSON lê o corpo em v; corpo inválido vira ValidationError no campo "body".
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return domain.Invalid("body", "malformed JSON request body")
	}
	return nil
}
