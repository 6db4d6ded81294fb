package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/folio/internal/logging"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRateLimiter_PerIP(t *testing.T) {
	rl := NewRateLimiter(2, time.Hour, nil)
	defer rl.Stop()

	h := rl.Middleware("test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, call("10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusNoContent, call("10.0.0.1:1001").Code)

	rec := call("10.0.0.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusNoContent, call("10.0.0.2:1000").Code)
	assert.Equal(t, 2, rl.size())
}

func TestRateLimiter_CleanupDropsIdle(t *testing.T) {
	rl := NewRateLimiter(10, time.Minute, nil)
	defer rl.Stop()

	rl.allow("a")
	rl.cleanup(time.Now())
	assert.Equal(t, 1, rl.size())

	rl.cleanup(time.Now().Add(3 * time.Minute))
	assert.Equal(t, 0, rl.size())
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(10, time.Millisecond, nil)
	rl.Stop()
	rl.Stop()
}

func TestRouter_AuthLimiterApplies(t *testing.T) {
	a := newTestAPI(t)
	rl := NewRateLimiter(1, time.Hour, nil)
	defer rl.Stop()

	a.handler = NewRouter(Deps{
		Auth:        a.auth,
		Profiles:    a.profiles,
		Content:     a.content,
		SecretKey:   testSecret,
		Logger:      logging.Discard(),
		AuthLimiter: rl,
	})

	body := map[string]string{"email": "a@b.co", "password": "x"}
	a.auth.signInErr = nil
	first := a.do(t, http.MethodPost, "/api/auth/signup", "", body)
	assert.Equal(t, http.StatusCreated, first.Code)

	second := a.do(t, http.MethodPost, "/api/auth/signup", "", body)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "rate_limit_exceeded", decodeBody[apiError](t, second).Code)
}
