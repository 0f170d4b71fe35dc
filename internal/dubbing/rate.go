package dubbing

import (
	"math"
	"time"

	"github.com/MimeLyc/syncdub/internal/subtitle"
)

const (
	referenceWordsPerMinute = 140.0
	minRateDuration         = 500 * time.Millisecond
	minSegmentDuration      = 200 * time.Millisecond

	slowRate = 0.95
	fastRate = 1.25
	minRate  = 0.95
	maxRate  = 1.15
)

// SpeakingRate returns the synthesis rate multiplier that lets text fit in
// duration. Sparse lines get a fixed relaxed rate and dense lines a fixed
// fast rate; everything in between is clamped to [0.95, 1.15].
func SpeakingRate(text string, duration time.Duration) float64 {
	words := max(1, subtitle.WordCount(text))
	seconds := max(minRateDuration, duration).Seconds()

	needed := float64(words) / seconds
	ratio := needed / (referenceWordsPerMinute / 60.0)

	switch {
	case ratio < 0.8:
		return slowRate
	case ratio > 1.4:
		return fastRate
	}
	return math.Min(maxRate, math.Max(minRate, ratio))
}

func segmentRate(text string, seg subtitle.Segment) float64 {
	return SpeakingRate(text, max(minSegmentDuration, seg.Duration()))
}
