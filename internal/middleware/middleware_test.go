package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/account-auth/internal/config"
	"github.com/iliyamo/account-auth/internal/logging"
	"github.com/iliyamo/account-auth/internal/token"
)

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
		err    error
	}{
		{"Bearer abc.def", "abc.def", nil},
		{"Bearer a b", "a b", nil},
		{"", "", ErrMissingBearer},
		{"Bearer", "", ErrMalformedBearer},
		{"Bearer ", "", ErrMalformedBearer},
		{"Bearer  abc", "", ErrMalformedBearer},
		{"Bearer \tabc", "", ErrMalformedBearer},
		{"bearer abc", "", ErrMalformedBearer},
		{"BEARER abc", "", ErrMalformedBearer},
		{"Basic dXNlcjpwYXNz", "", ErrMalformedBearer},
		{"Bearerabc", "", ErrMalformedBearer},
		{" Bearer abc", "", ErrMalformedBearer},
	}
	for _, tc := range cases {
		got, err := BearerToken(tc.header)
		if tc.err != nil {
			assert.ErrorIs(t, err, tc.err, "header %q", tc.header)
			continue
		}
		require.NoError(t, err, "header %q", tc.header)
		assert.Equal(t, tc.want, got)
	}
}

func newCodec(t *testing.T, now time.Time) *token.Codec {
	t.Helper()
	c, err := token.New(token.Config{
		Keys:      []token.Key{{ID: "k1", Secret: []byte(strings.Repeat("k", 32))}},
		AccessTTL: time.Minute,
		Now:       func() time.Time { return now },
	})
	require.NoError(t, err)
	return c
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	now := time.Now()
	codec := newCodec(t, now)
	at, err := codec.Encode("user-7", now)
	require.NoError(t, err)

	e := echo.New()
	e.GET("/me", func(c echo.Context) error { return c.String(http.StatusOK, UserID(c)) }, JWTAuth(codec))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+at.Token)
	rec := serve(e, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-7", rec.Body.String())

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "MISSING_BEARER_TOKEN")

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Basic dXNlcjpwYXNz")
	rec = serve(e, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "MALFORMED_BEARER_TOKEN")

	later := newCodec(t, now.Add(2*time.Minute))
	e2 := echo.New()
	e2.GET("/me", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, JWTAuth(later))
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+at.Token)
	rec = serve(e2, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "ACCESS_TOKEN_EXPIRED")
}

func newLimited(t *testing.T, cfg config.RateLimitConfig) (*echo.Echo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	e := echo.New()
	e.POST("/auth/authenticate", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		RateLimit(cfg, rdb, logging.Nop()))
	return e, mr
}

func TestRateLimit_BlocksAfterCapacity(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Hour, TTL: time.Hour, Prefix: "rl", KeyStrategy: "ip_route"}
	e, mr := newLimited(t, cfg)

	for i := 0; i < 2; i++ {
		rec := serve(e, httptest.NewRequest(http.MethodPost, "/auth/authenticate", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := serve(e, httptest.NewRequest(http.MethodPost, "/auth/authenticate", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "rl:ip:"))
}

func TestRateLimit_FailsOpen(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Hour, TTL: time.Hour, Prefix: "rl"}
	e, mr := newLimited(t, cfg)
	mr.Close()

	for i := 0; i < 3; i++ {
		rec := serve(e, httptest.NewRequest(http.MethodPost, "/auth/authenticate", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimit_DisabledWithoutRedis(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		RateLimit(config.RateLimitConfig{Enabled: true}, nil, logging.Nop()))
	assert.Equal(t, http.StatusOK, serve(e, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
}

func TestRequestLogger_PropagatesRequestID(t *testing.T) {
	var seen string
	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set(echo.HeaderXRequestID, "rid-1")
			return next(c)
		}
	})
	e.Use(RequestLogger(logging.Nop()))
	e.GET("/x", func(c echo.Context) error {
		seen = logging.RequestID(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	})

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "rid-1", seen)
}
