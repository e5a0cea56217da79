package application

import (
	"testing"
	"time"

	"roomlink-api/middleware/ratelimit/domain"

	"github.com/stretchr/testify/assert"
)

type fakeLimiter struct {
	allow  bool
	tokens float64
}

func (f *fakeLimiter) Allow() bool     { return f.allow }
func (f *fakeLimiter) Tokens() float64 { return f.tokens }

type fakeStore struct {
	lim  domain.Limiter
	keys []domain.Key
}

func (s *fakeStore) Get(k domain.Key) domain.Limiter {
	s.keys = append(s.keys, k)
	return s.lim
}

func TestService_Decide_AllowsWhenNoStore(t *testing.T) {
	svc := Service{}
	dec := svc.Decide("k")
	assert.True(t, dec.Allowed)
	assert.Zero(t, dec.RetryAfter, "expected RetryAfter=0 when allowed")
}

func TestService_Decide_AllowsWhenLimiterAllows(t *testing.T) {
	svc := Service{Store: &fakeStore{lim: &fakeLimiter{allow: true, tokens: 41.7}}, Limit: 60, RetryAfter: 5 * time.Second}
	dec := svc.Decide("k")
	assert.True(t, dec.Allowed)
	assert.Equal(t, 60, dec.Limit)
	assert.Equal(t, 41, dec.Remaining)
	assert.Zero(t, dec.RetryAfter)
}

func TestService_Decide_BlocksWithRetryAfterDefault(t *testing.T) {
	svc := Service{Store: &fakeStore{lim: &fakeLimiter{allow: false, tokens: 0.4}}}
	dec := svc.Decide("k")
	assert.False(t, dec.Allowed)
	assert.Equal(t, 0, dec.Remaining)
	assert.Equal(t, 1*time.Second, dec.RetryAfter)
}

func TestService_Decide_BlocksWithConfiguredRetryAfter(t *testing.T) {
	svc := Service{Store: &fakeStore{lim: &fakeLimiter{allow: false}}, RetryAfter: 2500 * time.Millisecond}
	dec := svc.Decide("k")
	assert.False(t, dec.Allowed)
	assert.Equal(t, 2500*time.Millisecond, dec.RetryAfter)
}
