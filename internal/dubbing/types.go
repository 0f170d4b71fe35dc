// Package dubbing keeps synthesized speech aligned with a playing video.
//
// A Synchronizer polls the player position on a fixed tick, keeps a window
// of produced clips around the cursor, and hands the clip of the segment
// under the cursor to the Controller. Production runs asynchronously through
// the Pipeline and never holds the session lock while a stage is running.
package dubbing

import (
	"context"
	"errors"
	"time"
)

const (
	// TickInterval is the synchronizer polling period.
	TickInterval = 50 * time.Millisecond
	// SeekThreshold is the cursor jump between ticks treated as a seek.
	SeekThreshold = 500 * time.Millisecond
	// SegmentTolerance widens every segment window on both sides.
	SegmentTolerance = 50 * time.Millisecond
	// ScheduleBehind and ScheduleAhead bound the segment starts produced around the cursor.
	ScheduleBehind = 500 * time.Millisecond
	ScheduleAhead  = 30 * time.Second
	// EvictBehind is how far behind the cursor a segment end must fall before its clip is dropped.
	EvictBehind = 10 * time.Second
	// MaxRetries is the number of retries after the first failed production.
	MaxRetries = 3
	// RetryBaseDelay doubles after every failed attempt.
	RetryBaseDelay = 500 * time.Millisecond

	seekOffsetMargin = 50 * time.Millisecond
)

var (
	// ErrNoSegments is returned by Start when no video with segments is loaded.
	ErrNoSegments = errors.New("no segments loaded")
	// ErrNoAudio marks a synthesis that returned no bytes.
	ErrNoAudio = errors.New("synthesis returned no audio")
)

// Player is the video being dubbed.
type Player interface {
	CurrentTime() time.Duration
	Mute()
	Unmute()
}

// AudioHandle identifies a prepared clip source held by an AudioOutput.
type AudioHandle string

// AudioOutput owns encoded clip sources and opens playable instances of them.
type AudioOutput interface {
	Prepare(audio []byte, format string) (AudioHandle, error)
	Open(h AudioHandle) (Clip, error)
	Release(h AudioHandle) error
}

// Clip is one playable instance of a prepared source.
type Clip interface {
	Play() error
	Pause()
	Seek(offset time.Duration) error
	// Duration reports the clip length once its metadata is known.
	Duration() (time.Duration, bool)
	SetVolume(v float64)
	// OnLoaded registers f to run once metadata is available.
	OnLoaded(f func())
}

// Translator, Polisher and Synthesizer are the production stages.
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

type Polisher interface {
	Polish(ctx context.Context, text, lang string) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang string, rate float64) ([]byte, error)
}

// Stages bundles the production collaborators. Polisher may be nil.
type Stages struct {
	Translator  Translator
	Polisher    Polisher
	Synthesizer Synthesizer
	// Format is the encoding of the synthesized bytes.
	Format string
}

// Executor runs production work off the caller's goroutine. Go must not run
// f synchronously.
type Executor interface {
	Go(f func())
}

// GoExecutor starts one goroutine per task.
type GoExecutor struct{}

func (GoExecutor) Go(f func()) { go f() }
