package dubbing

import (
	"sync"
	"time"

	"github.com/MimeLyc/syncdub/internal/subtitle"
	"github.com/MimeLyc/syncdub/pkg/log"
)

// Display is what the page shows for the current segment.
type Display struct {
	Index      int    `json:"index"`
	Original   string `json:"original"`
	Translated string `json:"translated"`
}

// Controller plays at most one clip at a time.
type Controller struct {
	output AudioOutput

	mu      sync.Mutex
	volume  float64
	current Clip
	paused  bool
	display Display
}

func NewController(output AudioOutput) *Controller {
	return &Controller{output: output, volume: 1, display: Display{Index: -1}}
}

// Play stops the current clip and starts the clip of entry aligned to the
// cursor position inside seg. A missing entry or handle plays nothing but
// still updates the display text.
func (c *Controller) Play(index int, seg subtitle.Segment, entry *Entry, cursor time.Duration) {
	c.mu.Lock()
	clip := c.startLocked(index, seg, entry)
	c.mu.Unlock()
	if clip == nil {
		return
	}

	offset := max(0, cursor-seg.StartTime)
	clip.OnLoaded(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		// metadata can arrive after the clip was stopped, replaced or paused
		if c.current != clip || c.paused {
			return
		}
		if d, ok := clip.Duration(); ok && offset < d-seekOffsetMargin {
			if err := clip.Seek(offset); err != nil {
				log.Debug("Seek clip to %s failed: %v", offset, err)
			}
		}
		if err := clip.Play(); err != nil {
			log.Warn("Play clip for segment %d failed: %v", index, err)
		}
	})
}

// startLocked makes the clip of entry current and requests playback. It
// returns nil when there is nothing to play.
func (c *Controller) startLocked(index int, seg subtitle.Segment, entry *Entry) Clip {
	c.stopLocked()

	c.display = Display{Index: index, Original: seg.Text, Translated: seg.Text}
	if entry == nil {
		return nil
	}
	if entry.TranslatedText != "" {
		c.display.Translated = entry.TranslatedText
	}
	if entry.Audio == "" {
		return nil
	}

	clip, err := c.output.Open(entry.Audio)
	if err != nil {
		log.Warn("Open clip for segment %d failed: %v", index, err)
		return nil
	}
	clip.SetVolume(c.volume)
	c.current = clip

	// some sinks only start on an immediate request
	if err := clip.Play(); err != nil {
		log.Debug("Eager play for segment %d failed: %v", index, err)
	}
	return clip
}

// Pause pauses the current clip, keeping it as current.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		c.current.Pause()
		c.paused = true
	}
}

// Stop pauses and forgets the current clip.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Reset stops playback and clears the display.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.display = Display{Index: -1}
}

func (c *Controller) stopLocked() {
	if c.current != nil {
		c.current.Pause()
		c.current = nil
	}
	c.paused = false
}

// SetVolume sets the volume, 0..1, for the current and future clips.
func (c *Controller) SetVolume(v float64) {
	v = min(1, max(0, v))
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volume = v
	if c.current != nil {
		c.current.SetVolume(v)
	}
}

func (c *Controller) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

func (c *Controller) Display() Display {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.display
}

// Playing reports whether a clip is current.
func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}
