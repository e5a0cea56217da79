package infra

import (
	"context"
	"sync/atomic"
	"time"

	"roomlink-api/middleware/ratelimit/domain"

	"github.com/sirupsen/logrus"
)

// AsyncStatsStore tira um destino lento (Redis) do caminho da requisição.
// Record só enfileira; Run repassa os eventos com timeout próprio. Com a fila
// cheia o evento é descartado e contado.
type AsyncStatsStore struct {
	next    domain.StatsStore
	events  chan domain.StatsEvent
	timeout time.Duration
	logger  logrus.FieldLogger
	onDrop  func()
	dropped atomic.Int64
}

type AsyncStatsOption func(*AsyncStatsStore)

func WithQueueSize(n int) AsyncStatsOption {
	return func(s *AsyncStatsStore) {
		if n > 0 {
			s.events = make(chan domain.StatsEvent, n)
		}
	}
}

// WithRecordTimeout limita cada Record repassado ao destino.
func WithRecordTimeout(d time.Duration) AsyncStatsOption {
	return func(s *AsyncStatsStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithAsyncLogger(l logrus.FieldLogger) AsyncStatsOption {
	return func(s *AsyncStatsStore) { s.logger = l }
}

// WithOnDrop é chamado a cada evento descartado por fila cheia.
func WithOnDrop(fn func()) AsyncStatsOption {
	return func(s *AsyncStatsStore) { s.onDrop = fn }
}

func NewAsyncStatsStore(next domain.StatsStore, opts ...AsyncStatsOption) *AsyncStatsStore {
	s := &AsyncStatsStore{
		next:    next,
		events:  make(chan domain.StatsEvent, 1024),
		timeout: time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record nunca bloqueia e nunca falha.
func (s *AsyncStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	select {
	case s.events <- ev:
	default:
		s.dropped.Add(1)
		if s.onDrop != nil {
			s.onDrop()
		}
	}
	return nil
}

// Dropped devolve quantos eventos foram descartados.
func (s *AsyncStatsStore) Dropped() int64 { return s.dropped.Load() }

// Pending devolve quantos eventos aguardam na fila.
func (s *AsyncStatsStore) Pending() int { return len(s.events) }

// Run repassa eventos até o ctx encerrar e então esvazia o que já estava na
// fila. Bloqueia; rode em goroutine (ou errgroup).
func (s *AsyncStatsStore) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.drain()
			return nil
		case ev := <-s.events:
			s.forward(ev)
		}
	}
}

func (s *AsyncStatsStore) drain() {
	for {
		select {
		case ev := <-s.events:
			s.forward(ev)
		default:
			return
		}
	}
}

func (s *AsyncStatsStore) forward(ev domain.StatsEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.next.Record(ctx, ev); err != nil && s.logger != nil {
		s.logger.WithError(err).Warn("failed to record rate limit stats")
	}
}
