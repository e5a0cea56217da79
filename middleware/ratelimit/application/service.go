package application

import (
	"math"
	"time"

	"roomlink-api/middleware/ratelimit/domain"
)

// Service concentra a regra de aplicação do rate limit.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Store      domain.LimiterStore
	Limit      int
	RetryAfter time.Duration
}

func (s Service) Decide(key domain.Key) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true}
	}
	if s.RetryAfter <= 0 {
		s.RetryAfter = 1 * time.Second
	}

	lim := s.Store.Get(key)
	if lim == nil {
		return domain.Decision{Allowed: true}
	}

	allowed := lim.Allow()
	dec := domain.Decision{
		Allowed:   allowed,
		Limit:     s.Limit,
		Remaining: int(math.Floor(lim.Tokens())),
	}
	if !allowed {
		dec.RetryAfter = s.RetryAfter
	}
	return dec
}
