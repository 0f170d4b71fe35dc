package remote

import (
	"fmt"
	"sync"
	"time"

	"github.com/MimeLyc/syncdub/internal/clock"
)

// PlayerState is the transport state reported by the page.
type PlayerState string

const (
	PlayerPlaying   PlayerState = "playing"
	PlayerPaused    PlayerState = "paused"
	PlayerBuffering PlayerState = "buffering"
	PlayerEnded     PlayerState = "ended"
	PlayerUnknown   PlayerState = "unknown"
)

func ParsePlayerState(s string) (PlayerState, error) {
	switch st := PlayerState(s); st {
	case PlayerPlaying, PlayerPaused, PlayerBuffering, PlayerEnded:
		return st, nil
	}
	return PlayerUnknown, fmt.Errorf("unknown player state %q", s)
}

// Player mirrors the page's video player. Between reports the position is
// extrapolated from the last report while playing.
type Player struct {
	clock clock.Clock
	hub   *Hub

	mu         sync.Mutex
	position   time.Duration
	reportedAt time.Time
	state      PlayerState
	muted      bool
}

func NewPlayer(c clock.Clock, hub *Hub) *Player {
	if c == nil {
		c = clock.Real{}
	}
	return &Player{clock: c, hub: hub, state: PlayerUnknown, reportedAt: c.Now()}
}

// Report records a position and state from the page and returns the
// previous state.
func (p *Player) Report(position time.Duration, state PlayerState) PlayerState {
	if position < 0 {
		position = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	prev := p.state
	p.position = position
	p.reportedAt = p.clock.Now()
	p.state = state
	return prev
}

func (p *Player) CurrentTime() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != PlayerPlaying {
		return p.position
	}
	return p.position + p.clock.Now().Sub(p.reportedAt)
}

func (p *Player) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Player) Mute() {
	p.setMuted(true, EventPlayerMute)
}

func (p *Player) Unmute() {
	p.setMuted(false, EventPlayerUnmute)
}

func (p *Player) setMuted(muted bool, event string) {
	p.mu.Lock()
	p.muted = muted
	p.mu.Unlock()
	if p.hub != nil {
		p.hub.Publish(event, nil)
	}
}

func (p *Player) Muted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muted
}
