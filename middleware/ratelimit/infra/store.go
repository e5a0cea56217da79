package infra

import (
	"context"
	"sync"
	"time"

	"roomlink-api/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

// Store é o QuotaCache: um token bucket (x/time/rate) por chave, criado sob
// demanda com capacidade cheia, e limpeza periódica de chaves ociosas.
//
// O mutex do Store protege apenas o lookup-or-create. Refill + consumo ficam
// no lock de cada tracker, então chaves diferentes não disputam o mesmo lock
// na hora de consumir.
type Store struct {
	mu           sync.Mutex
	entries      map[string]*storeEntry
	quota        domain.Quota
	idleTTL      time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
}

type storeEntry struct {
	tracker  *tracker
	lastSeen time.Time
}

// tracker é o QuotaTracker de uma chave.
//
// mark é o maior instante já visto. O rate.Limiter recua seu "last" quando
// recebe um instante anterior e depois credita de novo o intervalo; por isso
// o relógio nunca é passado para trás.
type tracker struct {
	mu   sync.Mutex
	lim  *rate.Limiter
	now  func() time.Time
	mark time.Time
}

// at devolve max(mark, now) e avança mark. Chamar com mu travado.
func (t *tracker) at() time.Time {
	now := t.now()
	if now.Before(t.mark) {
		return t.mark
	}
	t.mark = now
	return now
}

func (t *tracker) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lim.AllowN(t.at(), 1)
}

func (t *tracker) Tokens() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	tokens := t.lim.TokensAt(t.at())
	if tokens < 0 {
		return 0
	}
	return tokens
}

type StoreOption func(*Store)

// WithIdleTTL define depois de quanto tempo sem uso uma chave é removida.
// Valores menores que a janela são elevados para a janela: um tracker ocioso
// por uma janela inteira já está cheio, então removê-lo não muda nenhuma decisão.
func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *Store) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *Store) { s.cleanupEvery = d }
}

// WithClock troca o relógio (testes).
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func NewStore(quota domain.Quota, opts ...StoreOption) *Store {
	s := &Store{
		entries:      make(map[string]*storeEntry),
		quota:        quota,
		idleTTL:      10 * quota.Window,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.idleTTL < quota.Window {
		s.idleTTL = quota.Window
	}
	return s
}

func (s *Store) RPS() float64                { return s.quota.RefillRate() }
func (s *Store) Burst() int                  { return s.quota.Capacity }
func (s *Store) CleanupEvery() time.Duration { return s.cleanupEvery }

// Len devolve o número de trackers vivos.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Get implementa domain.LimiterStore.
func (s *Store) Get(key domain.Key) domain.Limiter {
	return s.get(string(key))
}

func (s *Store) get(key string) *tracker {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.tracker
	}

	t := &tracker{
		lim: rate.NewLimiter(rate.Limit(s.quota.RefillRate()), s.quota.Capacity),
		now: s.now,
	}
	s.entries[key] = &storeEntry{tracker: t, lastSeen: now}
	return t
}

// Cleanup remove chaves sem uso há mais de idleTTL e devolve quantas removeu.
func (s *Store) Cleanup() int {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// RunJanitor limpa chaves inativas periodicamente até o ctx encerrar.
// Bloqueia; rode em goroutine (ou errgroup).
func (s *Store) RunJanitor(ctx context.Context, onSweep func(removed, remaining int)) error {
	if s.cleanupEvery <= 0 {
		<-ctx.Done()
		return nil
	}

	t := time.NewTicker(s.cleanupEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			removed := s.Cleanup()
			if onSweep != nil {
				onSweep(removed, s.Len())
			}
		}
	}
}
