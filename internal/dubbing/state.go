package dubbing

import (
	"context"
	"time"

	"github.com/MimeLyc/syncdub/internal/clock"
	"github.com/MimeLyc/syncdub/internal/subtitle"
)

// State is the synchronizer lifecycle state.
type State int

const (
	StateIdle State = iota
	StateActive
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Entry is a produced clip for one segment.
type Entry struct {
	Audio          AudioHandle
	TranslatedText string
	SpeakingRate   float64
}

// Options configure one dubbing session.
type Options struct {
	TargetLanguage string
	Polish         bool
}

// Session is everything the synchronizer mutates. All fields are guarded by
// the synchronizer lock.
type Session struct {
	Generation uint64
	State      State
	Options    Options
	Segments   []subtitle.Segment

	cache      Window
	inFlight   map[int]struct{}
	retries    map[int]int
	abandoned  map[int]struct{}
	backoffs   map[int]clock.Timer
	active     int
	lastCursor time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

func newSession() *Session {
	s := &Session{}
	s.clear()
	return s
}

// clear drops per-session production state. Entries must have been
// released first.
func (s *Session) clear() {
	s.cache = Window{}
	s.inFlight = map[int]struct{}{}
	s.retries = map[int]int{}
	s.abandoned = map[int]struct{}{}
	for _, t := range s.backoffs {
		t.Stop()
	}
	s.backoffs = map[int]clock.Timer{}
	s.active = -1
	if s.cancel != nil {
		s.cancel()
	}
	s.ctx, s.cancel = nil, nil
}

func (s *Session) running() bool {
	return s.State != StateIdle
}

func (s *Session) isInFlight(i int) bool {
	_, ok := s.inFlight[i]
	return ok
}

func (s *Session) isAbandoned(i int) bool {
	_, ok := s.abandoned[i]
	return ok
}
