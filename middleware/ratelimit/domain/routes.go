package domain

import "strings"

// RoutePolicy decide quais requisições passam pelo rate limit.
//
// Protegido: path com prefixo AuthPrefix, ou path == CreatePath com método CreateMethod.
// Todo o resto passa direto, sem criar tracker (evita crescimento de chaves por tráfego público).
type RoutePolicy struct {
	AuthPrefix   string
	CreatePath   string
	CreateMethod string
}

func DefaultRoutePolicy() RoutePolicy {
	return RoutePolicy{
		AuthPrefix:   "/api/auth/",
		CreatePath:   "/api/listings",
		CreateMethod: "POST",
	}
}

// Regras da policy. Servem de label em métricas: cardinalidade fixa, ao
// contrário do path (qualquer /api/auth/<x> é protegido).
const (
	RuleAuth   = "auth"
	RuleCreate = "create"
	RuleOther  = "other"
)

// Rule devolve a regra que protege a requisição, ou "" se ela não é protegida.
func (p RoutePolicy) Rule(method, path string) string {
	if p.AuthPrefix != "" && strings.HasPrefix(path, p.AuthPrefix) {
		return RuleAuth
	}
	if p.CreatePath != "" && path == p.CreatePath && strings.EqualFold(method, p.CreateMethod) {
		return RuleCreate
	}
	return ""
}

func (p RoutePolicy) Protects(method, path string) bool {
	return p.Rule(method, path) != ""
}
