package domain

import (
	"context"
	"time"
)

// StatsEvent representa uma decisão do gate para uma rota protegida.
//
// Method/Path são strings genéricas, sem depender de net/http.
// Requisições em rotas não protegidas não geram evento.
//
// Observação: Key, Origin e Path têm cardinalidade aberta (o prefixo de auth
// aceita qualquer path). Route é a regra da RoutePolicy e é o único campo
// seguro como label ou campo de agregação sem expiração.
type StatsEvent struct {
	Key     Key
	Origin  string
	Allowed bool

	Route  string
	Method string
	Path   string

	At time.Time
}

// StatsStore recebe os eventos de decisão (métricas, Redis, memória).
//
// É best-effort: erro de Record nunca muda a decisão nem derruba a request.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}

// RouteLabel devolve Route, ou RuleOther quando vazio.
func (ev StatsEvent) RouteLabel() string {
	if ev.Route == "" {
		return RuleOther
	}
	return ev.Route
}

func (ev StatsEvent) Result() string {
	if ev.Allowed {
		return "allowed"
	}
	return "denied"
}
