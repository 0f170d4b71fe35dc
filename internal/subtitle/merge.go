package subtitle

import (
	"slices"
	"strings"
	"time"
)

const (
	// MaxSegmentSpan caps the span of a merged segment unless one cue alone exceeds it.
	MaxSegmentSpan = 12 * time.Second
	// MaxSegmentWords caps the word count of a merged segment.
	MaxSegmentWords = 25

	minMergeGap = -50 * time.Millisecond
	maxMergeGap = 600 * time.Millisecond
)

// Merge folds consecutive cues into speakable segments. Cues are ordered by
// start time first; a cue joins the running segment only when the segment
// text has no sentence terminator, the gap fits the merge window and the
// combined span and word count stay within bounds. Cues are never split.
func Merge(cues []Cue) []Segment {
	if len(cues) == 0 {
		return []Segment{}
	}

	sorted := slices.Clone(cues)
	slices.SortStableFunc(sorted, func(a, b Cue) int {
		switch {
		case a.StartTime < b.StartTime:
			return -1
		case a.StartTime > b.StartTime:
			return 1
		}
		return 0
	})

	segments := make([]Segment, 0, len(sorted))
	acc := Segment{StartTime: sorted[0].StartTime, EndTime: sorted[0].EndTime, Text: sorted[0].Text}

	for _, cue := range sorted[1:] {
		if canFold(acc, cue) {
			acc.Text = strings.TrimSpace(acc.Text + " " + cue.Text)
			acc.EndTime = cue.EndTime
			continue
		}
		segments = append(segments, acc)
		acc = Segment{StartTime: cue.StartTime, EndTime: cue.EndTime, Text: cue.Text}
	}
	return append(segments, acc)
}

func canFold(acc Segment, cue Cue) bool {
	if EndsSentence(acc.Text) {
		return false
	}
	gap := cue.StartTime - acc.EndTime
	if gap < minMergeGap || gap > maxMergeGap {
		return false
	}
	if cue.EndTime-acc.StartTime > MaxSegmentSpan {
		return false
	}
	return WordCount(acc.Text+" "+cue.Text) <= MaxSegmentWords
}

// EndsSentence reports whether trimmed text ends in . ! ? or an ellipsis.
func EndsSentence(text string) bool {
	text = strings.TrimSpace(text)
	return strings.HasSuffix(text, ".") ||
		strings.HasSuffix(text, "!") ||
		strings.HasSuffix(text, "?") ||
		strings.HasSuffix(text, "…")
}

// WordCount counts whitespace separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// ActiveIndex returns the first segment whose window, widened by tolerance
// on both sides, contains cursor. It returns -1 when none does.
func ActiveIndex(segments []Segment, cursor, tolerance time.Duration) int {
	for i, seg := range segments {
		if cursor >= seg.StartTime-tolerance && cursor < seg.EndTime+tolerance {
			return i
		}
	}
	return -1
}
