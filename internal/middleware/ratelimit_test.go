package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
}

func TestLimit_RefillsEachSecond(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tb := NewTokenBucket(2)
	tb.now = func() time.Time { return now }
	tb.lastSec = now.Unix()
	h := Limit(tb, okHandler())

	codes := func(n int) []int {
		var out []int
		for i := 0; i < n; i++ {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tracks", nil))
			out = append(out, rec.Code)
		}
		return out
	}

	assert.Equal(t, []int{204, 204, 429}, codes(3))
	now = now.Add(time.Second)
	assert.Equal(t, []int{204}, codes(1))
}

func TestWrap_Disabled(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	inner := okHandler()
	h := Wrap(inner)
	for i := 0; i < 100; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}
