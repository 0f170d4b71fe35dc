package dubbing

import (
	"maps"
	"slices"
	"time"

	"github.com/MimeLyc/syncdub/pkg/log"
)

// Window holds the produced entries keyed by segment index.
type Window map[int]*Entry

// Indices returns the cached segment indices in ascending order.
func (w Window) Indices() []int {
	indices := slices.AppendSeq(make([]int, 0, len(w)), maps.Keys(w))
	slices.Sort(indices)
	return indices
}

// scheduleAhead starts production for every segment whose start lies in
// [cursor-ScheduleBehind, cursor+ScheduleAhead]. Caller holds the lock.
func (s *Synchronizer) scheduleAhead(cursor time.Duration) {
	lo, hi := cursor-ScheduleBehind, cursor+ScheduleAhead
	for i, seg := range s.sess.Segments {
		if seg.StartTime >= lo && seg.StartTime <= hi {
			s.pipeline.produce(i)
		}
	}
}

// evictBehind releases every entry whose segment ended more than
// EvictBehind before cursor. Caller holds the lock.
func (s *Synchronizer) evictBehind(cursor time.Duration) {
	limit := cursor - EvictBehind
	for i, entry := range s.sess.cache {
		if i >= len(s.sess.Segments) || s.sess.Segments[i].EndTime < limit {
			s.releaseEntry(entry)
			delete(s.sess.cache, i)
		}
	}
}

func (s *Synchronizer) releaseEntry(entry *Entry) {
	if entry == nil || entry.Audio == "" {
		return
	}
	if err := s.output.Release(entry.Audio); err != nil {
		log.Debug("Release clip %s failed: %v", entry.Audio, err)
	}
}

func (s *Synchronizer) releaseAll() {
	for i, entry := range s.sess.cache {
		s.releaseEntry(entry)
		delete(s.sess.cache, i)
	}
}
