package translator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MimeLyc/syncdub/internal/backend"
	"github.com/MimeLyc/syncdub/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTranslator struct {
	mock.Mock
}

func (m *mockTranslator) Translate(ctx context.Context, text, targetLang string) (string, error) {
	args := m.Called(ctx, text, targetLang)
	return args.String(0), args.Error(1)
}

type mockPolisher struct {
	mock.Mock
}

func (m *mockPolisher) Polish(ctx context.Context, text, lang string) (string, error) {
	args := m.Called(ctx, text, lang)
	return args.String(0), args.Error(1)
}

func TestChain_FallsThroughToNextProvider(t *testing.T) {
	first := &mockTranslator{}
	first.On("Translate", mock.Anything, "hello", "tr").Return("", errors.New("down"))
	second := &mockTranslator{}
	second.On("Translate", mock.Anything, "hello", "tr").Return("merhaba", nil)

	got, err := NewChain().With("a", first).With("b", second).Translate(context.Background(), "hello", "tr")

	require.NoError(t, err)
	assert.Equal(t, "merhaba", got)
	first.AssertExpectations(t)
	second.AssertExpectations(t)
}

func TestChain_IdentityWhenAllFail(t *testing.T) {
	failing := &mockTranslator{}
	failing.On("Translate", mock.Anything, "hello", "tr").Return("", errors.New("down"))

	got, err := NewChain().With("a", failing).Translate(context.Background(), "hello", "tr")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	got, err = NewChain().Translate(context.Background(), "hello", "tr")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestChain_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	failing := &mockTranslator{}
	failing.On("Translate", mock.Anything, "hello", "tr").Return("", context.Canceled)

	_, err := NewChain().With("a", failing).Translate(ctx, "hello", "tr")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPolishChain_SwallowsErrors(t *testing.T) {
	failing := &mockPolisher{}
	failing.On("Polish", mock.Anything, "merhaba", "tr").Return("", errors.New("quota"))

	got, err := NewPolishChain().With("a", failing).Polish(context.Background(), "merhaba", "tr")
	require.NoError(t, err)
	assert.Equal(t, "merhaba", got)
}

func TestGoogleTranslator_Translate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		var req googleTranslateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Q)
		assert.Equal(t, "tr", req.Target)
		assert.Equal(t, "text", req.Format)
		_, _ = w.Write([]byte(`{"data":{"translations":[{"translatedText":"merhaba"}]}}`))
	}))
	defer srv.Close()

	g := NewGoogleTranslator("secret", srv.Client()).WithEndpoint(srv.URL)
	got, err := g.Translate(context.Background(), "hello", "tr")
	require.NoError(t, err)
	assert.Equal(t, "merhaba", got)
}

func TestGoogleTranslator_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"translations":[]}}`))
	}))
	defer srv.Close()

	_, err := NewGoogleTranslator("secret", srv.Client()).WithEndpoint(srv.URL).Translate(context.Background(), "hello", "tr")
	assert.Error(t, err)

	_, err = NewGoogleTranslator("", nil).Translate(context.Background(), "hello", "tr")
	assert.Error(t, err)
}

func TestLLMPolisher_Polish(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer llm-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "c1",
			"object": "chat.completion",
			"model": "m",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": " selam "}, "finish_reason": "stop"}]
		}`))
	}))
	defer srv.Close()

	p := NewLLMPolisher("llm-key", srv.URL, "m", time.Second)
	got, err := p.Polish(context.Background(), "merhaba", "tr")
	require.NoError(t, err)
	assert.Equal(t, "selam", got)
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Backend.TranslateAPIKey = "key"

	tr, pol := FromConfig(cfg, backend.NewClient("", time.Second))
	assert.Equal(t, 1, tr.Len())
	assert.Empty(t, pol.steps)

	tr, pol = FromConfig(cfg, backend.NewClient("http://backend.local", time.Second))
	assert.Equal(t, 2, tr.Len())
	assert.Len(t, pol.steps, 1)
}
