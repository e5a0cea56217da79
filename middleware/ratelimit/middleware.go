package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"time"

	"roomlink-api/middleware/ratelimit/application"
	"roomlink-api/middleware/ratelimit/domain"

	"github.com/sirupsen/logrus"
)

// RejectBody é o corpo devolvido junto com o 429.
const RejectBody = "Too Many Requests"

// OriginFunc extrai a origem do cliente (primeira metade da chave).
type OriginFunc func(r *http.Request) string

type Options struct {
	Store domain.LimiterStore
	Stats domain.StatsStore
	// Policy define as rotas protegidas. nil => domain.DefaultRoutePolicy().
	Policy              *domain.RoutePolicy
	OriginFn            OriginFunc
	OriginHeader        string
	TrustXForwardedFor  bool
	RejectStatus        int
	RetryAfter          time.Duration
	AddRateLimitHeaders bool
	Logger              *logrus.Logger
}

type rateInfo interface {
	RPS() float64
	Burst() int
}

func DefaultOriginFunc(originHeader string, trustXFF bool) OriginFunc {
	return func(r *http.Request) string {
		if originHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(originHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
					return ip
				}
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// Middleware aplica o RateLimitGate antes de qualquer outro processamento.
// Rotas fora da policy seguem direto para o next.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RetryAfter == 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.OriginFn == nil {
		opts.OriginFn = DefaultOriginFunc(opts.OriginHeader, opts.TrustXForwardedFor)
	}
	policy := domain.DefaultRoutePolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}

	ri, hasRateInfo := opts.Store.(rateInfo)
	svc := application.Service{
		Store:      opts.Store,
		RetryAfter: opts.RetryAfter,
	}
	if hasRateInfo {
		svc.Limit = ri.Burst()
	}
	gate := application.Gate{Policy: policy, Service: svc}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := opts.OriginFn(r)
			dec := gate.Check(origin, r.URL.Path, r.Method)
			if dec.Bypassed {
				next.ServeHTTP(w, r)
				return
			}

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Key", string(domain.NewKey(origin, r.URL.Path)))
				w.Header().Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
				if hasRateInfo {
					w.Header().Set("X-RateLimit-Limit", formatInt(ri.Burst()))
					w.Header().Set("X-RateLimit-RPS", formatFloat(ri.RPS()))
				}
			}

			if opts.Stats != nil {
				err := opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:     domain.NewKey(origin, r.URL.Path),
					Origin:  origin,
					Allowed: dec.Allowed,
					Route:   dec.Route,
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      time.Now(),
				})
				if err != nil && opts.Logger != nil {
					opts.Logger.WithError(err).Warn("failed to record rate limit stats")
				}
			}

			if !dec.Allowed {
				if opts.Logger != nil {
					opts.Logger.WithFields(logrus.Fields{
						"origin": origin,
						"method": r.Method,
						"path":   r.URL.Path,
					}).Debug("rate limited")
				}
				w.Header().Set("Retry-After", formatInt(retryAfterSeconds(dec.RetryAfter)))
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.Header().Set("X-Content-Type-Options", "nosniff")
				w.WriteHeader(opts.RejectStatus)
				_, _ = w.Write([]byte(RejectBody))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Retry-After em segundos inteiros, arredondando para cima (mínimo 1).
func retryAfterSeconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	if s < 1 {
		return 1
	}
	return s
}
