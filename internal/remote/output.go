package remote

import (
	"fmt"
	"sync"
	"time"

	"github.com/MimeLyc/syncdub/internal/dubbing"
	"github.com/google/uuid"
)

type source struct {
	data   []byte
	format string
}

// Output keeps prepared clip bytes for the page to fetch and forwards clip
// commands to it.
type Output struct {
	hub      *Hub
	audioURL func(dubbing.AudioHandle) string

	mu      sync.Mutex
	sources map[dubbing.AudioHandle]source
	clips   map[string]*Clip
}

// NewOutput creates an output publishing on hub. audioURL maps a handle to
// the address the page loads it from.
func NewOutput(hub *Hub, audioURL func(dubbing.AudioHandle) string) *Output {
	if audioURL == nil {
		audioURL = func(h dubbing.AudioHandle) string { return "/api/audio/" + string(h) }
	}
	return &Output{
		hub:      hub,
		audioURL: audioURL,
		sources:  map[dubbing.AudioHandle]source{},
		clips:    map[string]*Clip{},
	}
}

func (o *Output) Prepare(audio []byte, format string) (dubbing.AudioHandle, error) {
	if len(audio) == 0 {
		return "", dubbing.ErrNoAudio
	}
	h := dubbing.AudioHandle(uuid.NewString())
	o.mu.Lock()
	o.sources[h] = source{data: audio, format: format}
	o.mu.Unlock()
	return h, nil
}

type clipOpened struct {
	ClipID string `json:"clip_id"`
	Handle string `json:"handle"`
	URL    string `json:"url"`
	Format string `json:"format"`
}

func (o *Output) Open(h dubbing.AudioHandle) (dubbing.Clip, error) {
	o.mu.Lock()
	src, ok := o.sources[h]
	if !ok {
		o.mu.Unlock()
		return nil, fmt.Errorf("unknown audio handle %s", h)
	}
	c := &Clip{id: uuid.NewString(), handle: h, hub: o.hub}
	o.clips[c.id] = c
	o.mu.Unlock()

	o.hub.Publish(EventClipOpen, clipOpened{
		ClipID: c.id,
		Handle: string(h),
		URL:    o.audioURL(h),
		Format: src.format,
	})
	return c, nil
}

func (o *Output) Release(h dubbing.AudioHandle) error {
	o.mu.Lock()
	if _, ok := o.sources[h]; !ok {
		o.mu.Unlock()
		return fmt.Errorf("unknown audio handle %s", h)
	}
	delete(o.sources, h)
	for id, c := range o.clips {
		if c.handle == h {
			delete(o.clips, id)
		}
	}
	o.mu.Unlock()

	o.hub.Publish(EventClipRelease, map[string]string{"handle": string(h)})
	return nil
}

// Source returns the bytes and format of a prepared handle.
func (o *Output) Source(h dubbing.AudioHandle) ([]byte, string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	src, ok := o.sources[h]
	return src.data, src.format, ok
}

// Loaded records clip metadata reported by the page and fires the clip's
// on-loaded callbacks.
func (o *Output) Loaded(clipID string, duration time.Duration) error {
	o.mu.Lock()
	c, ok := o.clips[clipID]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown clip %s", clipID)
	}
	c.loaded(duration)
	return nil
}

// Prepared returns the number of live sources.
func (o *Output) Prepared() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sources)
}

// Clip is one playback instance on the page.
type Clip struct {
	id     string
	handle dubbing.AudioHandle
	hub    *Hub

	mu        sync.Mutex
	duration  time.Duration
	hasMeta   bool
	callbacks []func()
}

type clipCommand struct {
	ClipID string   `json:"clip_id"`
	Offset *float64 `json:"offset,omitempty"`
	Volume *float64 `json:"volume,omitempty"`
}

func (c *Clip) ID() string { return c.id }

func (c *Clip) Play() error {
	c.hub.Publish(EventClipPlay, clipCommand{ClipID: c.id})
	return nil
}

func (c *Clip) Pause() {
	c.hub.Publish(EventClipPause, clipCommand{ClipID: c.id})
}

func (c *Clip) Seek(offset time.Duration) error {
	if offset < 0 {
		return fmt.Errorf("negative offset %s", offset)
	}
	sec := offset.Seconds()
	c.hub.Publish(EventClipSeek, clipCommand{ClipID: c.id, Offset: &sec})
	return nil
}

func (c *Clip) Duration() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration, c.hasMeta
}

func (c *Clip) SetVolume(v float64) {
	c.hub.Publish(EventClipVolume, clipCommand{ClipID: c.id, Volume: &v})
}

// OnLoaded runs f once metadata is known, immediately if it already is.
func (c *Clip) OnLoaded(f func()) {
	c.mu.Lock()
	if !c.hasMeta {
		c.callbacks = append(c.callbacks, f)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	f()
}

func (c *Clip) loaded(duration time.Duration) {
	c.mu.Lock()
	if c.hasMeta {
		c.mu.Unlock()
		return
	}
	c.duration = duration
	c.hasMeta = true
	callbacks := c.callbacks
	c.callbacks = nil
	c.mu.Unlock()

	for _, f := range callbacks {
		f()
	}
}
