package dubbing

import (
	"slices"
	"time"

	"github.com/MimeLyc/syncdub/internal/subtitle"
)

// Snapshot is a read-only view of the session for display and diagnostics.
// Progress is the position through the active segment, 0..100.
type Snapshot struct {
	State         string        `json:"state"`
	Generation    uint64        `json:"generation"`
	Cursor        time.Duration `json:"-"`
	CursorSeconds float64       `json:"cursor"`
	CursorText    string        `json:"cursor_text"`
	ActiveIndex   int           `json:"active_index"`
	Original      string        `json:"original_text,omitempty"`
	Translated    string        `json:"translated_text,omitempty"`
	Progress      float64       `json:"progress"`
	SegmentEnd    string        `json:"segment_end,omitempty"`
	Segments      int           `json:"segments"`
	Cached        []int         `json:"cached"`
	InFlight      int           `json:"in_flight"`
	Retrying      int           `json:"retrying"`
	Abandoned     int           `json:"abandoned"`
	Volume        float64       `json:"volume"`
	TargetLang    string        `json:"target_language,omitempty"`
}

// Snapshot returns the view refreshed by the last tick or transition.
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot
	snap.Cached = slices.Clone(snap.Cached)
	return snap
}

func (s *Synchronizer) publishLocked(cursor time.Duration) {
	s.snapshot = s.buildSnapshot(cursor)
	if s.onSnapshot != nil {
		snap := s.snapshot
		snap.Cached = slices.Clone(snap.Cached)
		s.onSnapshot(snap)
	}
}

func (s *Synchronizer) buildSnapshot(cursor time.Duration) Snapshot {
	sess := s.sess
	snap := Snapshot{
		State:         sess.State.String(),
		Generation:    sess.Generation,
		Cursor:        cursor,
		CursorSeconds: cursor.Seconds(),
		CursorText:    subtitle.FormatClock(cursor),
		ActiveIndex:   sess.active,
		Segments:      len(sess.Segments),
		Cached:        sess.cache.Indices(),
		InFlight:      len(sess.inFlight),
		Retrying:      len(sess.retries),
		Abandoned:     len(sess.abandoned),
		Volume:        s.controller.Volume(),
		TargetLang:    sess.Options.TargetLanguage,
	}

	if i := sess.active; i >= 0 && i < len(sess.Segments) {
		seg := sess.Segments[i]
		snap.Original = seg.Text
		snap.Translated = seg.Text
		if d := s.controller.Display(); d.Index == i && d.Translated != "" {
			snap.Translated = d.Translated
		} else if e := sess.cache[i]; e != nil && e.TranslatedText != "" {
			snap.Translated = e.TranslatedText
		}
		snap.Progress = Progress(seg, cursor)
		snap.SegmentEnd = subtitle.FormatClock(seg.EndTime)
	}
	return snap
}

// Progress returns how far cursor is through seg as a percentage clamped to 0..100.
func Progress(seg subtitle.Segment, cursor time.Duration) float64 {
	span := seg.Duration()
	if span <= 0 {
		return 100
	}
	p := float64(cursor-seg.StartTime) / float64(span) * 100
	return min(100, max(0, p))
}
