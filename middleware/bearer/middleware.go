package bearer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"roomlink-api/auth/token"

	"github.com/sirupsen/logrus"
)

// Verifier valida um bearer token e devolve a identidade.
type Verifier interface {
	Verify(token string) (string, error)
}

type subjectContextKey struct{}

// Motivos de falha, usados em logs e métricas.
const (
	ReasonMissing          = "missing"
	ReasonMalformed        = "malformed"
	ReasonInvalidSignature = "invalid_signature"
	ReasonExpired          = "expired"
)

type Options struct {
	Verifier Verifier
	Logger   *logrus.Logger
	// OnFailure é chamado com o motivo de cada falha (ex: contador Prometheus).
	OnFailure func(reason string)
}

// Subject devolve a identidade autenticada colocada no contexto pelo middleware.
func Subject(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectContextKey{}).(string)
	return s, ok && s != ""
}

func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectContextKey{}, subject)
}

// Reason traduz um erro de verificação para o motivo exposto em métricas.
func Reason(err error) string {
	switch {
	case errors.Is(err, token.ErrExpired):
		return ReasonExpired
	case errors.Is(err, token.ErrInvalidSignature):
		return ReasonInvalidSignature
	default:
		return ReasonMalformed
	}
}

func extract(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, tok, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// Require rejeita com 401 qualquer request sem token válido.
func Require(opts Options) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := extract(r)
			if !ok {
				opts.fail(w, r, ReasonMissing, nil)
				return
			}
			subject, err := opts.Verifier.Verify(tok)
			if err != nil {
				opts.fail(w, r, Reason(err), err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
		})
	}
}

// Optional anexa a identidade quando o token é válido e segue em qualquer caso.
func Optional(opts Options) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tok, ok := extract(r); ok {
				if subject, err := opts.Verifier.Verify(tok); err == nil {
					r = r.WithContext(WithSubject(r.Context(), subject))
				} else if opts.Logger != nil {
					opts.Logger.WithField("reason", Reason(err)).Debug("ignoring invalid bearer token")
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (o Options) fail(w http.ResponseWriter, r *http.Request, reason string, err error) {
	if o.Logger != nil {
		entry := o.Logger.WithFields(logrus.Fields{"reason": reason, "path": r.URL.Path})
		if err != nil {
			entry = entry.WithError(err)
		}
		entry.Debug("bearer authentication failed")
	}
	if o.OnFailure != nil {
		o.OnFailure(reason)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="roomlink"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "Unauthorized"})
}
