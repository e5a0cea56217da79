package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import "time"

// Key identifica um QuotaTracker: origem do cliente + ":" + path.
type Key string

// NewKey monta a chave composta. Cada path protegido tem sua própria cota.
func NewKey(origin, path string) Key {
	return Key(origin + ":" + path)
}

// Quota é a configuração fixa do token bucket: Capacity permissões,
// reabastecidas continuamente ao longo de Window.
type Quota struct {
	Capacity int
	Window   time.Duration
}

// RefillRate devolve permissões por segundo.
func (q Quota) RefillRate() float64 {
	if q.Window <= 0 {
		return 0
	}
	return float64(q.Capacity) / q.Window.Seconds()
}

// Limiter representa a cota de uma chave.
//
// Allow faz refill + consumo de 1 permissão de forma atômica.
// Tokens devolve as permissões disponíveis agora (0..capacity), sem consumir.
type Limiter interface {
	Allow() bool
	Tokens() float64
}

// LimiterStore obtém (ou cria sob demanda) o limiter de uma chave.
type LimiterStore interface {
	Get(Key) Limiter
}

type Decision struct {
	Allowed bool
	// Bypassed indica que a rota não é protegida e nenhum tracker foi tocado.
	Bypassed bool
	// Route é a regra da RoutePolicy que protegeu a requisição.
	Route string

	Limit     int
	Remaining int

	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}
