package ratelimit

import (
	"encoding/json"
	"net/http"
	"time"

	"roomlink-api/middleware/ratelimit/application"
	"roomlink-api/middleware/ratelimit/domain"
	"roomlink-api/middleware/ratelimit/infra"

	"github.com/sirupsen/logrus"
)

type ConcurrencyOptions struct {
	Max int
	// Pool substitui o pool criado a partir de Max (ex: para expor ocupação em métricas).
	Pool           domain.SlotPool
	RejectStatus   int
	AcquireTimeout time.Duration
	Logger         *logrus.Logger
	OnReject       func()
}

// ConcurrencyMiddleware limita requisições simultâneas. Sem Pool e com Max <= 0, desliga.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Pool == nil {
		if opts.Max <= 0 {
			return func(next http.Handler) http.Handler { return next }
		}
		opts.Pool = infra.NewChanPool(opts.Max)
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}

	svc := application.ConcurrencyService{
		Pool:           opts.Pool,
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := svc.Acquire(r.Context())
			if !ok {
				if opts.OnReject != nil {
					opts.OnReject()
				}
				if opts.Logger != nil {
					opts.Logger.WithField("path", r.URL.Path).Debug("no in-flight slot available")
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(opts.RejectStatus)
				_ = json.NewEncoder(w).Encode(map[string]string{"message": http.StatusText(opts.RejectStatus)})
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
