package application

import (
	"roomlink-api/middleware/ratelimit/domain"
)

// Gate é a fronteira do rate limit: recebe (origem, path, método) e responde
// Admit/Reject. Rotas fora da RoutePolicy não tocam no cache.
type Gate struct {
	Policy  domain.RoutePolicy
	Service Service
}

func (g Gate) Check(origin, path, method string) domain.Decision {
	rule := g.Policy.Rule(method, path)
	if rule == "" {
		return domain.Decision{Allowed: true, Bypassed: true}
	}
	dec := g.Service.Decide(domain.NewKey(origin, path))
	dec.Route = rule
	return dec
}
