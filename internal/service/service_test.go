package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MimeLyc/syncdub/internal/apperr"
	"github.com/MimeLyc/syncdub/internal/clock"
	"github.com/MimeLyc/syncdub/internal/config"
	"github.com/MimeLyc/syncdub/internal/dubbing"
	"github.com/MimeLyc/syncdub/internal/persistence"
	"github.com/MimeLyc/syncdub/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

const watchURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

type fakeBackend struct {
	srv *httptest.Server

	mu          sync.Mutex
	fetches     int
	fetchStatus int
	targets     []string
	polishes    int
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{fetchStatus: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/get-subtitles", func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		fb.fetches++
		status := fb.fetchStatus
		fb.mu.Unlock()
		if status != http.StatusOK {
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "no captions"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"video_title":    "Demo",
			"video_duration": 65.0,
			"subtitles": []map[string]any{
				{"start_time": 0.0, "end_time": 1.2, "text": "Hello."},
				{"start_time": 1.3, "end_time": 2.5, "text": "world"},
				{"start_time": 2.6, "end_time": 4.0, "text": "today is a fine day."},
			},
			"subtitles_count":   3,
			"subtitle_language": "en",
		})
	})
	mux.HandleFunc("/translate", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text       string `json:"text"`
			TargetLang string `json:"target_lang"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		fb.mu.Lock()
		fb.targets = append(fb.targets, req.TargetLang)
		fb.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"translatedText": req.TargetLang + ":" + req.Text})
	})
	mux.HandleFunc("/gemini-polish", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text string `json:"text"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		fb.mu.Lock()
		fb.polishes++
		fb.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"polished": req.Text})
	})
	mux.HandleFunc("/synthesize", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text string `json:"text"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"audioContent": base64.StdEncoding.EncodeToString([]byte("mp3:" + req.Text)),
		})
	})
	fb.srv = httptest.NewServer(mux)
	t.Cleanup(fb.srv.Close)
	return fb
}

func (fb *fakeBackend) fetchCount() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.fetches
}

type queueExecutor struct {
	mu    sync.Mutex
	tasks []func()
}

func (q *queueExecutor) Go(f func()) {
	q.mu.Lock()
	q.tasks = append(q.tasks, f)
	q.mu.Unlock()
}

func (q *queueExecutor) RunPending() int {
	n := 0
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return n
		}
		f := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.mu.Unlock()
		f()
		n++
	}
}

type harness struct {
	svc     *Service
	backend *fakeBackend
	clock   *clock.Virtual
	exec    *queueExecutor
}

func testConfig(baseURL string) config.Config {
	return config.Config{
		Backend: config.BackendConfig{BaseURL: baseURL, Timeout: 5},
		Dub:     config.DubConfig{TargetLanguage: language.Turkish, PolishEnabled: true},
		Storage: config.StorageConfig{CacheTTLHours: 24, CacheSweepCron: "0 * * * *"},
	}
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	fb := newFakeBackend(t)
	h := &harness{
		backend: fb,
		clock:   clock.NewVirtual(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)),
		exec:    &queueExecutor{},
	}
	opts = append([]Option{WithClock(h.clock), WithExecutor(h.exec)}, opts...)
	h.svc = NewService(testConfig(fb.srv.URL), opts...)
	t.Cleanup(func() { h.svc.Stop() })
	return h
}

func drain(ch <-chan remote.Event) []remote.Event {
	var out []remote.Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func eventTypes(events []remote.Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?feature=share&v=dQw4w9WgXcQ&t=42", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"  https://youtube.com/v/dQw4w9WgXcQ  ", "dQw4w9WgXcQ"},
	}
	for _, tt := range tests {
		got, err := ExtractVideoID(tt.url)
		require.NoError(t, err, tt.url)
		assert.Equal(t, tt.want, got, tt.url)
	}

	for _, bad := range []string{"", "https://vimeo.com/123", "https://youtu.be/short"} {
		_, err := ExtractVideoID(bad)
		assert.True(t, apperr.IsType(err, apperr.Validation), bad)
	}
}

func TestService_LoadVideo(t *testing.T) {
	h := newHarness(t)

	info, err := h.svc.LoadVideo(context.Background(), watchURL)
	require.NoError(t, err)

	assert.Equal(t, "dQw4w9WgXcQ", info.ID)
	assert.Equal(t, "Demo", info.Title)
	assert.Equal(t, "1:05", info.DurationText)
	assert.Equal(t, 3, info.CueCount)
	assert.Equal(t, 2, info.SubtitleCount)
	assert.Equal(t, "en", info.SubtitleLanguage)
	assert.False(t, info.FromCache)
	require.Len(t, info.Segments, 2)
	assert.Equal(t, "Hello.", info.Segments[0].Text)
	assert.Equal(t, "world today is a fine day.", info.Segments[1].Text)

	current, ok := h.svc.CurrentVideo()
	require.True(t, ok)
	assert.Same(t, info, current)
}

func TestService_LoadVideoIgnoresCallerCancellation(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	info, err := h.svc.LoadVideo(ctx, watchURL)
	require.NoError(t, err)
	assert.Equal(t, 2, info.SubtitleCount)
	assert.Equal(t, 1, h.backend.fetchCount())
}

func TestService_LoadVideoRejectsInvalidURL(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.LoadVideo(context.Background(), "https://example.com/watch")
	require.Error(t, err)
	assert.True(t, apperr.IsType(err, apperr.Validation))
	assert.Zero(t, h.backend.fetchCount())
}

func TestService_LoadVideoAcquisitionFailure(t *testing.T) {
	h := newHarness(t)
	h.backend.mu.Lock()
	h.backend.fetchStatus = http.StatusNotFound
	h.backend.mu.Unlock()

	_, err := h.svc.LoadVideo(context.Background(), watchURL)
	require.Error(t, err)
	assert.True(t, apperr.IsType(err, apperr.Acquisition))
	assert.Contains(t, err.Error(), "no captions")

	_, ok := h.svc.CurrentVideo()
	assert.False(t, ok)
}

func TestService_LoadVideoUsesCache(t *testing.T) {
	store, err := persistence.NewSQLiteStore(filepath.Join(t.TempDir(), "syncdub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h := newHarness(t, WithCache(store))
	ctx := context.Background()

	_, err = h.svc.LoadVideo(ctx, watchURL)
	require.NoError(t, err)
	info, err := h.svc.LoadVideo(ctx, "https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.True(t, info.FromCache)
	assert.Equal(t, 2, info.SubtitleCount)
	assert.Equal(t, 1, h.backend.fetchCount())

	// past the lifetime the backend is asked again
	h.clock.Advance(25 * time.Hour)
	info, err = h.svc.LoadVideo(ctx, watchURL)
	require.NoError(t, err)
	assert.False(t, info.FromCache)
	assert.Equal(t, 2, h.backend.fetchCount())
}

func TestService_SweepCache(t *testing.T) {
	store, err := persistence.NewSQLiteStore(filepath.Join(t.TempDir(), "syncdub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h := newHarness(t, WithCache(store))
	ctx := context.Background()
	_, err = h.svc.LoadVideo(ctx, watchURL)
	require.NoError(t, err)

	n, err := h.svc.SweepCache(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	h.clock.Advance(25 * time.Hour)
	n, err = h.svc.SweepCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	next, err := h.svc.NextSweep()
	require.NoError(t, err)
	assert.Equal(t, 0, next.Next.Minute())
}

func TestService_StartProducesAndPlays(t *testing.T) {
	h := newHarness(t)
	_, events, cancel := h.svc.Events().Subscribe()
	defer cancel()

	_, err := h.svc.LoadVideo(context.Background(), watchURL)
	require.NoError(t, err)
	require.NoError(t, h.svc.ReportPlayer(0, "playing"))

	snap, err := h.svc.Start("es")
	require.NoError(t, err)
	assert.Equal(t, "active", snap.State)
	assert.Equal(t, "es", snap.TargetLang)

	assert.Equal(t, 2, h.exec.RunPending())
	h.clock.Advance(dubbing.TickInterval)

	snap = h.svc.Snapshot()
	assert.Equal(t, []int{0, 1}, snap.Cached)
	assert.Equal(t, 0, snap.ActiveIndex)
	assert.Equal(t, "es:Hello.", snap.Translated)

	h.backend.mu.Lock()
	assert.Equal(t, []string{"es", "es"}, h.backend.targets)
	assert.Equal(t, 2, h.backend.polishes)
	h.backend.mu.Unlock()

	types := eventTypes(drain(events))
	assert.Contains(t, types, remote.EventPlayerMute)
	assert.Contains(t, types, remote.EventClipOpen)
	assert.Contains(t, types, remote.EventSnapshot)

	entry, ok := h.svc.sync.Entry(0)
	require.True(t, ok)
	data, format, ok := h.svc.Audio(string(entry.Audio))
	require.True(t, ok)
	assert.Equal(t, "audio/mpeg", format)
	assert.Equal(t, "mp3:es:Hello.", string(data))

	// a second start while running is ignored
	again, err := h.svc.Start("fr")
	require.NoError(t, err)
	assert.Equal(t, snap.Generation, again.Generation)

	stopped := h.svc.Stop()
	assert.Equal(t, "idle", stopped.State)
	assert.Empty(t, stopped.Cached)
	assert.Contains(t, eventTypes(drain(events)), remote.EventPlayerUnmute)
}

func TestService_ConcurrentStartsStartOnce(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.LoadVideo(context.Background(), watchURL)
	require.NoError(t, err)

	langs := []string{"es", "fr", "de", "it", "es", "fr", "de", "it"}
	var wg sync.WaitGroup
	for _, lang := range langs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Start(lang)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	snap := h.svc.Snapshot()
	assert.Equal(t, uint64(1), snap.Generation)
	assert.Equal(t, 2, h.exec.RunPending())

	h.backend.mu.Lock()
	defer h.backend.mu.Unlock()
	assert.Equal(t, []string{snap.TargetLang, snap.TargetLang}, h.backend.targets)
}

func TestService_StartUsesConfiguredLanguage(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.LoadVideo(context.Background(), watchURL)
	require.NoError(t, err)

	require.NoError(t, h.svc.ApplySettings(config.RuntimeSettings{
		TargetLanguage: "de",
		PolishEnabled:  false,
	}))
	snap, err := h.svc.Start("")
	require.NoError(t, err)
	assert.Equal(t, "de", snap.TargetLang)

	h.exec.RunPending()
	h.backend.mu.Lock()
	defer h.backend.mu.Unlock()
	assert.Zero(t, h.backend.polishes)
}

func TestService_StartErrors(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Start("")
	assert.True(t, apperr.IsType(err, apperr.Validation))

	_, err = h.svc.LoadVideo(context.Background(), watchURL)
	require.NoError(t, err)

	_, err = h.svc.Start("not a language!")
	assert.True(t, apperr.IsType(err, apperr.Validation))

	noProvider := NewService(testConfig(""), WithClock(h.clock), WithExecutor(h.exec))
	_, err = noProvider.Start("")
	assert.True(t, apperr.IsType(err, apperr.Config))
}

func TestService_ReportPlayerTransitions(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.LoadVideo(context.Background(), watchURL)
	require.NoError(t, err)
	require.NoError(t, h.svc.ReportPlayer(0, "playing"))
	_, err = h.svc.Start("")
	require.NoError(t, err)

	require.NoError(t, h.svc.ReportPlayer(time.Second, "paused"))
	assert.Equal(t, "paused", h.svc.Snapshot().State)

	require.NoError(t, h.svc.ReportPlayer(time.Second, "buffering"))
	assert.Equal(t, "paused", h.svc.Snapshot().State)

	require.NoError(t, h.svc.ReportPlayer(time.Second, "playing"))
	assert.Equal(t, "active", h.svc.Snapshot().State)

	err = h.svc.ReportPlayer(0, "rewinding")
	assert.True(t, apperr.IsType(err, apperr.Validation))
}

func TestService_SetVolume(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.svc.SetVolume(40))
	assert.True(t, apperr.IsType(h.svc.SetVolume(101), apperr.Validation))
	assert.True(t, apperr.IsType(h.svc.SetVolume(-1), apperr.Validation))
}

func TestService_ClipLoadedUnknown(t *testing.T) {
	h := newHarness(t)

	err := h.svc.ClipLoaded("missing", time.Second)
	assert.True(t, apperr.IsType(err, apperr.Resource))
}
