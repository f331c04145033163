package detector

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_RecordsOutcomes(t *testing.T) {
	h := newHarness(t, nil)

	status := http.StatusOK
	handler := Middleware(h.d, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.clock.Add(20 * time.Millisecond)
		w.WriteHeader(status)
	}))

	serve := func() int {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, serve())
	status = http.StatusNotFound
	assert.Equal(t, http.StatusNotFound, serve())

	stats := h.d.Stats()
	assert.Equal(t, 2, stats.RecentRequests)
	assert.Equal(t, 1, stats.RecentErrors)

	h.d.mu.Lock()
	last := h.d.requests.samples[len(h.d.requests.samples)-1]
	h.d.mu.Unlock()
	assert.Equal(t, "HTTP_404", last.errorType)
	assert.Equal(t, 20*time.Millisecond, last.duration)
}

func TestMiddleware_ImplicitOK(t *testing.T) {
	h := newHarness(t, nil)

	handler := Middleware(h.d, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, 0, h.d.Stats().RecentErrors)
}

func TestMiddleware_AuthFailures(t *testing.T) {
	h := newHarness(t, nil)

	handler := Middleware(h.d, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/admin" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))

	for i := 0; i < 5; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/login", nil))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/admin", nil))
	}

	h.d.mu.Lock()
	failures := len(h.d.authFailures)
	h.d.mu.Unlock()
	assert.Equal(t, 10, failures)

	h.d.Check()
	assert.Contains(t, activeNames(h.d), SignalAuthFailures)
}

func TestMiddleware_SlowRequestsFireLatency(t *testing.T) {
	h := newHarness(t, nil)

	handler := Middleware(h.d, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.clock.Add(4500 * time.Millisecond)
	}))

	for i := 0; i < 3; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/slow", nil))
	}

	active := h.d.ActiveAlerts()
	require.Len(t, active, 1)
	assert.Equal(t, SignalHighLatency, active[0].AlertName)
	assert.Equal(t, "medium", string(active[0].Severity))
}

func TestMiddleware_PanicRecordedAndRethrown(t *testing.T) {
	h := newHarness(t, nil)

	handler := Middleware(h.d, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	}))

	assert.Panics(t, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, 1, h.d.Stats().RecentErrors)
}
