package dubbing

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/MimeLyc/syncdub/internal/clock"
	"github.com/MimeLyc/syncdub/internal/subtitle"
	"github.com/MimeLyc/syncdub/pkg/log"
)

// Config wires a Synchronizer to its collaborators.
type Config struct {
	Player   Player
	Output   AudioOutput
	Stages   Stages
	Clock    clock.Clock
	Executor Executor
	// OnSnapshot, if set, receives the snapshot after every tick and
	// transition. It runs with the session lock held and must not block or
	// call back into the Synchronizer.
	OnSnapshot func(Snapshot)
}

// Synchronizer drives the session state machine and is safe for concurrent use.
type Synchronizer struct {
	mu   sync.Mutex
	sess *Session

	player     Player
	output     AudioOutput
	clock      clock.Clock
	controller *Controller
	pipeline   *Pipeline
	ticker     clock.Timer
	snapshot   Snapshot
	onSnapshot func(Snapshot)
}

func NewSynchronizer(cfg Config) *Synchronizer {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Executor == nil {
		cfg.Executor = GoExecutor{}
	}

	s := &Synchronizer{
		sess:       newSession(),
		player:     cfg.Player,
		output:     cfg.Output,
		clock:      cfg.Clock,
		controller: NewController(cfg.Output),
		onSnapshot: cfg.OnSnapshot,
	}
	s.pipeline = &Pipeline{
		mu:     &s.mu,
		sess:   s.sess,
		stages: cfg.Stages,
		output: cfg.Output,
		clock:  cfg.Clock,
		exec:   cfg.Executor,
		ready:  s.segmentReady,
	}
	s.snapshot = s.buildSnapshot(0)
	return s
}

// SetStages replaces the production stages. It takes effect for productions
// started afterwards; running productions keep the stages they started with.
func (s *Synchronizer) SetStages(stages Stages) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipeline.stages = stages
}

// Load replaces the segments of the current video. Any running session is
// stopped first.
func (s *Synchronizer) Load(segments []subtitle.Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess.running() {
		s.stopLocked()
	}
	s.sess.Segments = slices.Clone(segments)
	s.publishLocked(s.snapshot.Cursor)
}

// Start begins dubbing. It fails with ErrNoSegments when nothing is loaded
// and does nothing when a session is already running.
func (s *Synchronizer) Start(opts Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.startLocked(opts)
	return err
}

// StartWithStages installs stages and begins dubbing in one step. When a
// session is already running it changes nothing and reports false.
func (s *Synchronizer) StartWithStages(opts Options, stages Stages) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sess.Segments) == 0 {
		return false, ErrNoSegments
	}
	if s.sess.running() {
		return false, nil
	}
	s.pipeline.stages = stages
	return s.startLocked(opts)
}

func (s *Synchronizer) startLocked(opts Options) (bool, error) {
	sess := s.sess
	if len(sess.Segments) == 0 {
		return false, ErrNoSegments
	}
	if sess.running() {
		return false, nil
	}

	sess.Generation++
	sess.State = StateActive
	sess.Options = opts
	sess.ctx, sess.cancel = context.WithCancel(context.Background())
	sess.active = -1

	s.player.Mute()
	cursor := s.player.CurrentTime()
	sess.lastCursor = cursor
	s.scheduleAhead(cursor)
	s.evictBehind(cursor)
	s.armLocked()

	log.Info("Dubbing started (generation %d, language %s, %d segments)",
		sess.Generation, opts.TargetLanguage, len(sess.Segments))
	s.publishLocked(cursor)
	return true, nil
}

// Stop ends the session from any state and releases every clip.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sess.running() {
		return
	}
	s.stopLocked()
	s.publishLocked(s.snapshot.Cursor)
}

func (s *Synchronizer) stopLocked() {
	log.Info("Dubbing stopped (generation %d, %s)", s.sess.Generation, s.pipeline.describe())

	s.player.Unmute()
	s.controller.Reset()
	s.disarmLocked()
	s.releaseAll()
	s.sess.clear()
	s.sess.State = StateIdle
}

// OnPlaying handles the player entering the playing state.
func (s *Synchronizer) OnPlaying() {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sess
	if !sess.running() {
		return
	}
	if sess.State == StatePaused {
		// re-align the clip under the cursor on the next tick
		sess.active = -1
	}
	sess.State = StateActive
	sess.lastCursor = s.player.CurrentTime()
	s.armLocked()
	s.publishLocked(sess.lastCursor)
}

// OnPaused handles the player pausing. The cache is kept.
func (s *Synchronizer) OnPaused() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess.State != StateActive {
		return
	}
	s.sess.State = StatePaused
	s.controller.Pause()
	s.disarmLocked()
	s.publishLocked(s.player.CurrentTime())
}

// State returns the lifecycle state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess.State
}

// Segments returns a copy of the loaded segments.
func (s *Synchronizer) Segments() []subtitle.Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.sess.Segments)
}

// Entry returns a copy of the cached entry for index.
func (s *Synchronizer) Entry(index int) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sess.cache[index]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// SetVolume sets the clip volume, 0..1.
func (s *Synchronizer) SetVolume(v float64) {
	s.controller.SetVolume(v)
}

func (s *Synchronizer) armLocked() {
	if s.ticker != nil {
		return
	}
	gen := s.sess.Generation
	s.ticker = clock.Every(s.clock, TickInterval, func() { s.tick(gen) })
}

func (s *Synchronizer) disarmLocked() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
}

func (s *Synchronizer) tick(generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sess
	if sess.Generation != generation || sess.State != StateActive {
		return
	}

	cursor := s.player.CurrentTime()
	if diff := cursor - sess.lastCursor; diff > SeekThreshold || diff < -SeekThreshold {
		log.Debug("Seek detected: %s -> %s", sess.lastCursor, cursor)
		s.controller.Stop()
		s.scheduleAhead(cursor)
	}
	sess.lastCursor = cursor

	s.scheduleAhead(cursor)
	s.evictBehind(cursor)

	if idx := subtitle.ActiveIndex(sess.Segments, cursor, SegmentTolerance); idx != sess.active {
		sess.active = idx
		if idx >= 0 {
			s.playLocked(idx, cursor)
		}
	}
	s.publishLocked(cursor)
}

func (s *Synchronizer) playLocked(idx int, cursor time.Duration) {
	s.controller.Play(idx, s.sess.Segments[idx], s.sess.cache[idx], cursor)
}

// segmentReady plays a clip that arrives while its segment is on screen.
func (s *Synchronizer) segmentReady(index int) {
	if s.sess.State != StateActive || s.sess.active != index {
		return
	}
	cursor := s.player.CurrentTime()
	log.Debug("Late clip for active segment %d, playing from %s", index, cursor)
	s.playLocked(index, cursor)
}
