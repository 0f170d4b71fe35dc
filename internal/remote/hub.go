// Package remote adapts a browser page into the player and audio output
// of a dubbing session. The page reports playback state over HTTP and
// receives commands as server-sent events.
package remote

import (
	"sync"

	"github.com/MimeLyc/syncdub/pkg/log"
	"github.com/google/uuid"
)

// Event is one message to the page.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

const (
	EventPlayerMute   = "player.mute"
	EventPlayerUnmute = "player.unmute"
	EventClipOpen     = "clip.open"
	EventClipPlay     = "clip.play"
	EventClipPause    = "clip.pause"
	EventClipSeek     = "clip.seek"
	EventClipVolume   = "clip.volume"
	EventClipRelease  = "clip.release"
	EventSnapshot     = "session.snapshot"
)

// Hub fans events out to every subscriber. Slow subscribers lose events
// instead of blocking publishers.
type Hub struct {
	buffer int

	mu   sync.RWMutex
	subs map[string]chan Event
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{buffer: buffer, subs: map[string]chan Event{}}
}

// Subscribe registers a subscriber. The returned cancel func closes the channel.
func (h *Hub) Subscribe() (string, <-chan Event, func()) {
	id := uuid.NewString()
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return id, ch, cancel
}

// Publish sends an event to every subscriber without blocking.
func (h *Hub) Publish(eventType string, data any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs {
		select {
		case ch <- Event{Type: eventType, Data: data}:
		default:
			log.Debug("Dropped %s event for subscriber %s", eventType, id)
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
