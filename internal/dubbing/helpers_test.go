package dubbing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MimeLyc/syncdub/internal/clock"
	"github.com/MimeLyc/syncdub/internal/subtitle"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func secs(v float64) time.Duration { return subtitle.Seconds(v) }

type fakePlayer struct {
	mu    sync.Mutex
	now   time.Duration
	muted bool
}

func (p *fakePlayer) CurrentTime() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.now
}

func (p *fakePlayer) set(d time.Duration) {
	p.mu.Lock()
	p.now = d
	p.mu.Unlock()
}

func (p *fakePlayer) Mute() { p.mu.Lock(); p.muted = true; p.mu.Unlock() }
func (p *fakePlayer) Unmute() { p.mu.Lock(); p.muted = false; p.mu.Unlock() }

func (p *fakePlayer) isMuted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muted
}

type fakeClip struct {
	handle   AudioHandle
	duration time.Duration
	plays    int
	pauses   int
	seeks    []time.Duration
	volume   float64
	onLoaded func()
}

func (c *fakeClip) Play() error { c.plays++; return nil }
func (c *fakeClip) Pause() { c.pauses++ }
func (c *fakeClip) Seek(d time.Duration) error { c.seeks = append(c.seeks, d); return nil }
func (c *fakeClip) Duration() (time.Duration, bool) { return c.duration, c.duration > 0 }
func (c *fakeClip) SetVolume(v float64) { c.volume = v }
func (c *fakeClip) OnLoaded(f func()) { c.onLoaded = f }

type fakeOutput struct {
	mu       sync.Mutex
	next     int
	prepared map[AudioHandle][]byte
	released []AudioHandle
	clips    []*fakeClip
}

func newFakeOutput() *fakeOutput {
	return &fakeOutput{prepared: map[AudioHandle][]byte{}}
}

func (o *fakeOutput) Prepare(audio []byte, format string) (AudioHandle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.next++
	h := AudioHandle(fmt.Sprintf("h%d", o.next))
	o.prepared[h] = audio
	return h, nil
}

func (o *fakeOutput) Open(h AudioHandle) (Clip, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.prepared[h]; !ok {
		return nil, errors.New("unknown handle")
	}
	c := &fakeClip{handle: h, duration: 3 * time.Second}
	o.clips = append(o.clips, c)
	return c, nil
}

func (o *fakeOutput) Release(h AudioHandle) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.prepared, h)
	o.released = append(o.released, h)
	return nil
}

func (o *fakeOutput) live() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.prepared)
}

func (o *fakeOutput) lastClip() *fakeClip {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.clips) == 0 {
		return nil
	}
	return o.clips[len(o.clips)-1]
}

// queueExecutor holds tasks until RunPending.
type queueExecutor struct {
	mu    sync.Mutex
	tasks []func()
}

func (e *queueExecutor) Go(f func()) {
	e.mu.Lock()
	e.tasks = append(e.tasks, f)
	e.mu.Unlock()
}

// RunPending runs the queued tasks, including any queued while running.
func (e *queueExecutor) RunPending() int {
	n := 0
	for {
		e.mu.Lock()
		if len(e.tasks) == 0 {
			e.mu.Unlock()
			return n
		}
		f := e.tasks[0]
		e.tasks = e.tasks[1:]
		e.mu.Unlock()
		f()
		n++
	}
}

func (e *queueExecutor) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tasks)
}

type fakeStages struct {
	mu            sync.Mutex
	translateErr  error
	synthEmpty    bool
	translateLog  []string
	polishCalls   int
	rates         []float64
	translateTime []time.Time
	clock         clock.Clock
}

func (f *fakeStages) Translate(ctx context.Context, text, lang string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.translateLog = append(f.translateLog, text)
	if f.clock != nil {
		f.translateTime = append(f.translateTime, f.clock.Now())
	}
	if f.translateErr != nil {
		return "", f.translateErr
	}
	return lang + ":" + text, nil
}

func (f *fakeStages) Polish(ctx context.Context, text, lang string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polishCalls++
	return text + "~", nil
}

func (f *fakeStages) Synthesize(ctx context.Context, text, lang string, rate float64) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rates = append(f.rates, rate)
	if f.synthEmpty {
		return nil, nil
	}
	return []byte("mp3:" + text), nil
}

func (f *fakeStages) translateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.translateLog)
}

type harness struct {
	t      *testing.T
	clock  *clock.Virtual
	player *fakePlayer
	output *fakeOutput
	exec   *queueExecutor
	stages *fakeStages
	sync   *Synchronizer
}

func newHarness(t *testing.T, segments []subtitle.Segment) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		clock:  clock.NewVirtual(epoch),
		player: &fakePlayer{},
		output: newFakeOutput(),
		exec:   &queueExecutor{},
	}
	h.stages = &fakeStages{clock: h.clock}
	h.sync = NewSynchronizer(Config{
		Player: h.player,
		Output: h.output,
		Stages: Stages{
			Translator:  h.stages,
			Polisher:    h.stages,
			Synthesizer: h.stages,
			Format:      "audio/mpeg",
		},
		Clock:    h.clock,
		Executor: h.exec,
	})
	h.sync.Load(segments)
	return h
}

// step moves the player and clock forward together and drains the executor.
func (h *harness) step(d time.Duration) {
	h.player.set(h.player.CurrentTime() + d)
	h.clock.Advance(d)
	h.exec.RunPending()
}

// evenSegments returns n back-to-back segments of the given span.
func evenSegments(n int, span time.Duration) []subtitle.Segment {
	segs := make([]subtitle.Segment, n)
	for i := range segs {
		segs[i] = subtitle.Segment{
			StartTime: time.Duration(i) * span,
			EndTime:   time.Duration(i+1) * span,
			Text:      fmt.Sprintf("segment %d", i),
		}
	}
	return segs
}
