// Package service wires the dubbing core to its remote player, audio output,
// providers and subtitle cache. It is the single entry point of the HTTP API.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/MimeLyc/syncdub/internal/clock"
	"github.com/MimeLyc/syncdub/internal/config"
	"github.com/MimeLyc/syncdub/internal/dubbing"
	"github.com/MimeLyc/syncdub/internal/persistence"
	"github.com/MimeLyc/syncdub/internal/remote"
	"github.com/MimeLyc/syncdub/internal/subtitle"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
)

const (
	hubBuffer = 256
	// snapshotInterval bounds how often an unchanged snapshot is re-sent.
	snapshotInterval = time.Second
)

// SubtitleCache persists fetched subtitles between restarts.
type SubtitleCache interface {
	SaveVideo(ctx context.Context, video subtitle.Video, fetchedAt time.Time) error
	LoadVideo(ctx context.Context, videoID string, notBefore time.Time) (*persistence.CachedVideo, bool, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type Service struct {
	clock clock.Clock
	exec  dubbing.Executor
	cache SubtitleCache
	cron  *cron.Cron

	hub    *remote.Hub
	player *remote.Player
	output *remote.Output
	sync   *dubbing.Synchronizer

	loads  singleflight.Group
	sweeps singleflight.Group

	mu      sync.RWMutex
	cfg     config.Config
	current *VideoInfo

	// guarded by the synchronizer lock, see publishSnapshot
	lastKey     snapshotKey
	lastPublish time.Time
}

type Option func(*Service)

// WithCache enables the persistent subtitle cache.
func WithCache(cache SubtitleCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

func WithExecutor(exec dubbing.Executor) Option {
	return func(s *Service) {
		s.exec = exec
	}
}

// WithCron registers the cache sweep on c. The caller starts and stops it.
func WithCron(c *cron.Cron) Option {
	return func(s *Service) {
		s.cron = c
	}
}

func NewService(cfg config.Config, opts ...Option) *Service {
	s := &Service{
		cfg:   cfg,
		clock: clock.Real{},
		exec:  dubbing.GoExecutor{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.hub = remote.NewHub(hubBuffer)
	s.player = remote.NewPlayer(s.clock, s.hub)
	s.output = remote.NewOutput(s.hub, nil)
	s.sync = dubbing.NewSynchronizer(dubbing.Config{
		Player:     s.player,
		Output:     s.output,
		Clock:      s.clock,
		Executor:   s.exec,
		OnSnapshot: s.publishSnapshot,
	})
	return s
}

// Events is the hub the page subscribes to.
func (s *Service) Events() *remote.Hub {
	return s.hub
}

// Config returns the effective configuration, runtime settings included.
func (s *Service) Config() config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// ApplySettings merges saved runtime settings into the configuration. They
// are used from the next load or start on.
func (s *Service) ApplySettings(next config.RuntimeSettings) error {
	if err := next.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg.Apply(next)
	s.mu.Unlock()
	return nil
}

type snapshotKey struct {
	state      string
	generation uint64
	active     int
	cached     int
	inFlight   int
	retrying   int
	abandoned  int
	volume     float64
}

// publishSnapshot forwards session changes to the page. Ticks that change
// nothing but the cursor are sent at most once per snapshotInterval.
func (s *Service) publishSnapshot(snap dubbing.Snapshot) {
	key := snapshotKey{
		state:      snap.State,
		generation: snap.Generation,
		active:     snap.ActiveIndex,
		cached:     len(snap.Cached),
		inFlight:   snap.InFlight,
		retrying:   snap.Retrying,
		abandoned:  snap.Abandoned,
		volume:     snap.Volume,
	}
	now := s.clock.Now()
	if key == s.lastKey && now.Sub(s.lastPublish) < snapshotInterval {
		return
	}
	s.lastKey, s.lastPublish = key, now
	s.hub.Publish(remote.EventSnapshot, snap)
}
