package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"roomlink-api/auth/token"
	"roomlink-api/logging"
	"roomlink-api/marketplace/application"
	"roomlink-api/marketplace/infra"
	"roomlink-api/metrics"
	"roomlink-api/middleware/ratelimit"
	rldomain "roomlink-api/middleware/ratelimit/domain"
	rlinfra "roomlink-api/middleware/ratelimit/infra"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testServer struct {
	handler http.Handler
	clock   *clock
	metrics *metrics.Registry
	issuer  token.Issuer
}

func newTestServer(t *testing.T, quota rldomain.Quota) *testServer {
	t.Helper()
	clk := &clock{now: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}

	issuer, err := token.NewIssuer([]byte("test-secret"), token.WithClock(clk.Now))
	require.NoError(t, err)

	store := infra.NewMemoryStore()
	blobs, err := infra.NewDiskBlobStore(t.TempDir(), 1024)
	require.NoError(t, err)

	reg := metrics.NewRegistry()
	debug := rlinfra.NewMemoryStatsStore(rlinfra.WithTrackKeys(true))
	logger := logging.New("error", io.Discard)

	h := NewRouter(Deps{
		Auth:     &application.AuthService{Users: store, Tokens: issuer, Cost: bcrypt.MinCost, Now: clk.Now},
		Listings: &application.ListingService{Listings: store, Users: store, AutoApprove: true, Now: clk.Now},
		Blobs:    blobs,
		Tokens:   issuer,
		Logger:   logger,
		Metrics:  reg,
		RateLimit: &ratelimit.Options{
			Store:      rlinfra.NewStore(quota, rlinfra.WithClock(clk.Now)),
			Stats:      rlinfra.MultiStatsStore{rlinfra.NewPrometheusStatsStore(reg.Registerer()), debug},
			RetryAfter: quota.Window / time.Duration(quota.Capacity),
			Logger:     logger,
		},
		UploadDir:      blobs.Dir,
		MaxUploadBytes: blobs.MaxBytes,
		DebugStats:     debug,
	})
	return &testServer{handler: h, clock: clk, metrics: reg, issuer: issuer}
}

func defaultQuota() rldomain.Quota {
	return rldomain.Quota{Capacity: 60, Window: time.Minute}
}

func (s *testServer) do(t *testing.T, method, path, bearerToken string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) register(t *testing.T, email string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": email, "password": "s3cret"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tok := decode[tokenResponse](t, rec).Token
	require.NotEmpty(t, tok)
	return tok
}

func validListing() map[string]any {
	return map[string]any{
		"area":          "Koramangala",
		"rent":          9000,
		"deposit":       20000,
		"roomType":      "ROOM_1RK",
		"description":   "near metro",
		"contactNumber": "9876543210",
	}
}

func TestAuthFlow_RegisterLoginMe(t *testing.T) {
	s := newTestServer(t, defaultQuota())
	s.register(t, "alice@example.com")

	rec := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "alice@example.com", "password": "s3cret"})
	require.Equal(t, http.StatusOK, rec.Code)
	tok := decode[tokenResponse](t, rec).Token

	rec = s.do(t, http.MethodGet, "/api/auth/me", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"authenticated":true,"user":"alice@example.com"}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/auth/me", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"authenticated":false,"user":null}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/auth/me", "garbage", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"authenticated":false,"user":null}`, rec.Body.String())
}

func TestRegister_DuplicateEmail(t *testing.T) {
	s := newTestServer(t, defaultQuota())
	s.register(t, "alice@example.com")

	rec := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "alice@example.com", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"Email already registered"}`, rec.Body.String())
}

func TestRegister_InvalidBody(t *testing.T) {
	s := newTestServer(t, defaultQuota())

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "nope", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "email", decode[messageBody](t, rec).Field)

	rec = s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "long@example.com", "password": strings.Repeat("p", 100)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "password", decode[messageBody](t, rec).Field)
}

func TestLogin_MismatchIsUnauthorized(t *testing.T) {
	s := newTestServer(t, defaultQuota())
	s.register(t, "alice@example.com")

	rec := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "alice@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"message":"Unauthorized"}`, rec.Body.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.AuthFailures.WithLabelValues("credential_mismatch")))
}

func TestListings_CreateRequiresBearer(t *testing.T) {
	s := newTestServer(t, defaultQuota())
	tok := s.register(t, "alice@example.com")

	rec := s.do(t, http.MethodPost, "/api/listings", "", validListing())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"message":"Unauthorized"}`, rec.Body.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.AuthFailures.WithLabelValues("missing")))

	tampered := tok[:len(tok)-1] + flip(tok[len(tok)-1])
	rec = s.do(t, http.MethodPost, "/api/listings", tampered, validListing())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.AuthFailures.WithLabelValues("invalid_signature")))

	s.clock.Advance(token.DefaultTTL)
	rec = s.do(t, http.MethodPost, "/api/listings", tok, validListing())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.AuthFailures.WithLabelValues("expired")))
}

func flip(c byte) string {
	if c == 'A' {
		return "B"
	}
	return "A"
}

func TestListings_ValidTokenForUnknownUserIsUnauthorized(t *testing.T) {
	s := newTestServer(t, defaultQuota())
	tok, err := s.issuer.Issue("ghost@example.com")
	require.NoError(t, err)

	rec := s.do(t, http.MethodPost, "/api/listings", tok, validListing())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"message":"Unauthorized"}`, rec.Body.String())
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")

	rec = s.do(t, http.MethodGet, "/api/listings/my-listings", tok, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/listings/42", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "missing listings stay 404")
}

func TestListings_CreateSearchGet(t *testing.T) {
	s := newTestServer(t, defaultQuota())
	tok := s.register(t, "alice@example.com")

	rec := s.do(t, http.MethodPost, "/api/listings", tok, validListing())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[listingResponse](t, rec)
	assert.Equal(t, "/api/listings/1", rec.Header().Get("Location"))
	assert.Equal(t, "APPROVED", created.Status)
	assert.Equal(t, "ROOM_1RK", created.RoomType)

	s.clock.Advance(time.Minute)
	other := validListing()
	other["area"] = "Indiranagar"
	other["rent"] = 15000
	rec = s.do(t, http.MethodPost, "/api/listings", tok, other)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/listings", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[[]listingResponse](t, rec)
	require.Len(t, all, 2)
	assert.Equal(t, "Indiranagar", all[0].Area, "newest first")

	rec = s.do(t, http.MethodGet, "/api/listings?area=kora&maxRent=10000", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	filtered := decode[[]listingResponse](t, rec)
	require.Len(t, filtered, 1)
	assert.Equal(t, created.ID, filtered[0].ID)

	rec = s.do(t, http.MethodGet, "/api/listings?page=0&size=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]listingResponse](t, rec), 1)

	rec = s.do(t, http.MethodGet, "/api/listings/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created, decode[listingResponse](t, rec))

	rec = s.do(t, http.MethodGet, "/api/listings/999", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/listings/my-listings", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]listingResponse](t, rec), 2)

	rec = s.do(t, http.MethodGet, "/api/listings/my-listings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListings_SearchRejectsBadQuery(t *testing.T) {
	s := newTestServer(t, defaultQuota())

	rec := s.do(t, http.MethodGet, "/api/listings?minRent=cheap", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "minRent", decode[messageBody](t, rec).Field)

	rec = s.do(t, http.MethodGet, "/api/listings?roomType=CASTLE", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/listings?page=99999999999999999999", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "page", decode[messageBody](t, rec).Field)
}

func TestListings_SearchHugePageIsEmpty(t *testing.T) {
	s := newTestServer(t, defaultQuota())
	tok := s.register(t, "alice@example.com")
	rec := s.do(t, http.MethodPost, "/api/listings", tok, validListing())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/listings?page=461168601842738791", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListings_CreateValidation(t *testing.T) {
	s := newTestServer(t, defaultQuota())
	tok := s.register(t, "alice@example.com")

	bad := validListing()
	bad["contactNumber"] = "12ab"
	rec := s.do(t, http.MethodPost, "/api/listings", tok, bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[messageBody](t, rec)
	assert.Equal(t, "contactNumber", body.Field)
	assert.Equal(t, "Enter valid phone number (8-12 digits)", body.Message)
}

func TestRateLimit_LoginScenario(t *testing.T) {
	s := newTestServer(t, rldomain.Quota{Capacity: 2, Window: 60 * time.Second})
	creds := map[string]string{"email": "ghost@example.com", "password": "x"}

	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodPost, "/api/auth/login", "", creds)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "request %d reaches the handler", i+1)
	}

	rec := s.do(t, http.MethodPost, "/api/auth/login", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too Many Requests", rec.Body.String())
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Equal(t, 2.0, testutil.ToFloat64(s.metrics.AuthFailures.WithLabelValues("credential_mismatch")))

	// Outras rotas protegidas têm chave própria.
	rec = s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "bob@example.com", "password": "x"})
	assert.NotEqual(t, http.StatusTooManyRequests, rec.Code)

	// Rotas não protegidas nunca passam pelo gate.
	for i := 0; i < 5; i++ {
		rec = s.do(t, http.MethodGet, "/api/listings", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	s.clock.Advance(30 * time.Second)
	rec = s.do(t, http.MethodPost, "/api/auth/login", "", creds)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/login", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimit_RejectionNeverReachesHandler(t *testing.T) {
	s := newTestServer(t, rldomain.Quota{Capacity: 1, Window: time.Minute})
	tok := s.register(t, "alice@example.com")

	// register consumiu a única permissão de /api/auth/register; a de POST /api/listings está intacta.
	rec := s.do(t, http.MethodPost, "/api/listings", tok, validListing())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/listings", tok, validListing())
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/listings/my-listings", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]listingResponse](t, rec), 1)
}

func TestUpload(t *testing.T) {
	s := newTestServer(t, defaultQuota())
	tok := s.register(t, "alice@example.com")

	newUpload := func(content string) *http.Request {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "room.png")
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, newUpload("png-bytes"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := newUpload("png-bytes")
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	url := decode[uploadResponse](t, rec).URL
	assert.True(t, strings.HasPrefix(url, "/uploads/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	rec = s.do(t, http.MethodGet, url, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png-bytes", rec.Body.String())

	req = newUpload(strings.Repeat("x", 2048))
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(""))
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, defaultQuota())

	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@b.com", "password": "x"})
	rec = s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "roomlink_ratelimit_decisions_total")
	assert.Contains(t, rec.Body.String(), "roomlink_auth_failures_total")
}

func TestDebugRateLimit(t *testing.T) {
	s := newTestServer(t, rldomain.Quota{Capacity: 1, Window: time.Minute})
	creds := map[string]string{"email": "ghost@example.com", "password": "x"}

	s.do(t, http.MethodPost, "/api/auth/login", "", creds)
	rec := s.do(t, http.MethodPost, "/api/auth/login", "", creds)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	s.do(t, http.MethodGet, "/api/listings", "", nil)

	rec = s.do(t, http.MethodGet, "/debug/ratelimit", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[rateLimitStatsResponse](t, rec)
	assert.Equal(t, rlinfra.Counters{Allowed: 1, Denied: 1}, got.Total)
	assert.Equal(t, map[string]rlinfra.Counters{rldomain.RuleAuth: {Allowed: 1, Denied: 1}}, got.Routes)
	assert.Equal(t, rlinfra.Counters{Allowed: 1, Denied: 1}, got.Keys["192.0.2.1:/api/auth/login"])
}

func TestDebugRateLimit_DisabledByDefault(t *testing.T) {
	h := NewRouter(Deps{Logger: logging.New("error", io.Discard)})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/ratelimit", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, defaultQuota())
	rec := s.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Not Found"}`, rec.Body.String())
}
