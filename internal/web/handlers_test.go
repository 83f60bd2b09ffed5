package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/kvpub/internal/core/kv"
	"github.com/hay-kot/kvpub/internal/data/stores"
	"github.com/hay-kot/kvpub/internal/kvpub"
)

// stubGateway returns canned results.
type stubGateway struct {
	lookup   kvpub.Lookup
	addErr   error
	countErr error
}

func (s *stubGateway) Get(context.Context, string) kvpub.Lookup { return s.lookup }

func (s *stubGateway) Add(context.Context, string, string) error { return s.addErr }

func (s *stubGateway) Count(context.Context) (int, error) { return 0, s.countErr }

func newTestRoutes(t *testing.T, g Gateway) http.Handler {
	t.Helper()
	return Routes(NewHandler(g, kvpub.DefaultGatewayOptions()), zerolog.Nop())
}

func newMemoryRoutes(t *testing.T) http.Handler {
	t.Helper()
	store := stores.NewMemoryStore(stores.MemoryOptions{})
	g := kvpub.NewGateway(store, kvpub.DefaultGatewayOptions(), zerolog.Nop())
	return newTestRoutes(t, g)
}

func postForm(t *testing.T, h http.Handler, key, value string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"key": {key}, "value": {value}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIndex(t *testing.T) {
	rec := get(t, newMemoryRoutes(t), "/")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `<form method="post" action="/">`)
	assert.Contains(t, rec.Body.String(), `maxlength="999"`)
	assert.Contains(t, rec.Body.String(), `maxlength="3999"`)
}

func TestPublishAndFetch(t *testing.T) {
	h := newMemoryRoutes(t)

	rec := postForm(t, h, "a", "1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `href="/a"`)

	rec = get(t, h, "/a")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))

	rec = postForm(t, h, "a", "2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", get(t, h, "/a").Body.String())

	rec = get(t, h, "/b")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = postForm(t, h, "b", strings.Repeat("x", 4000))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/b").Code)
}

func TestPublish_ValueServedVerbatim(t *testing.T) {
	h := newMemoryRoutes(t)
	value := "<script>alert('x')</script>"

	require.Equal(t, http.StatusOK, postForm(t, h, "html", value).Code)

	rec := get(t, h, "/html")
	assert.Equal(t, value, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestPublish_KeyTooLarge(t *testing.T) {
	rec := postForm(t, newMemoryRoutes(t), strings.Repeat("k", 1000), "v")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "payload too large")
}

func TestPublish_BodyTooLarge(t *testing.T) {
	rec := postForm(t, newMemoryRoutes(t), "k", strings.Repeat("v", maxFormBytes))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestPublish_WriteFailure(t *testing.T) {
	g := &stubGateway{addErr: &kvpub.WriteError{Step: kvpub.StepUpsert, Err: kv.ErrStorageFailure}}

	rec := postForm(t, newTestRoutes(t, g), "k", "v")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "storage failure")
}

func TestPublish_UnexpectedError(t *testing.T) {
	g := &stubGateway{addErr: errors.New("boom")}

	rec := postForm(t, newTestRoutes(t, g), "k", "v")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestValue_Unavailable(t *testing.T) {
	g := &stubGateway{lookup: kvpub.Lookup{Status: kvpub.Unavailable}}

	rec := get(t, newTestRoutes(t, g), "/k")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestValue_EscapedKey(t *testing.T) {
	h := newMemoryRoutes(t)
	require.Equal(t, http.StatusOK, postForm(t, h, "hello world", "v").Code)

	rec := get(t, h, "/hello%20world")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v", rec.Body.String())
}

func TestValue_KeysNamedLikeHealthRoute(t *testing.T) {
	h := newMemoryRoutes(t)
	require.Equal(t, http.StatusOK, postForm(t, h, "healthz", "mine").Code)
	require.Equal(t, http.StatusOK, postForm(t, h, "-/healthz", "also mine").Code)

	rec := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mine", rec.Body.String())

	rec = get(t, h, "/-%2Fhealthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "also mine", rec.Body.String())

	assert.JSONEq(t, `{"status":"ok","entries":2}`, get(t, h, "/-/healthz").Body.String())
}

func TestPublish_BlankKey(t *testing.T) {
	for _, key := range []string{"", "   "} {
		rec := postForm(t, newMemoryRoutes(t), key, "v")
		assert.Equal(t, http.StatusBadRequest, rec.Code, "key %q", key)
		assert.Contains(t, rec.Body.String(), "invalid key")
	}
}

func TestHealth(t *testing.T) {
	rec := get(t, newMemoryRoutes(t), "/-/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","entries":0}`, rec.Body.String())
}

func TestHealth_Unavailable(t *testing.T) {
	g := &stubGateway{countErr: kv.ErrStorageFailure}
	rec := get(t, newTestRoutes(t, g), "/-/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable","entries":0}`, rec.Body.String())
}

func TestMethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/k", nil)
	rec := httptest.NewRecorder()
	newMemoryRoutes(t).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
