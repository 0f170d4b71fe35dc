package subtitle

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sec(v float64) time.Duration { return Seconds(v) }

func TestMerge_SentenceBoundaryAndFold(t *testing.T) {
	cues := []Cue{
		{StartTime: sec(0), EndTime: sec(1), Text: "Hello."},
		{StartTime: sec(1.1), EndTime: sec(2), Text: "world"},
		{StartTime: sec(2.2), EndTime: sec(3), Text: "today"},
	}

	got := Merge(cues)

	require.Len(t, got, 2)
	assert.Equal(t, Segment{StartTime: sec(0), EndTime: sec(1), Text: "Hello."}, got[0])
	assert.Equal(t, Segment{StartTime: sec(1.1), EndTime: sec(3), Text: "world today"}, got[1])
}

func TestMerge_Empty(t *testing.T) {
	assert.Empty(t, Merge(nil))
}

func TestMerge_SortsByStart(t *testing.T) {
	cues := []Cue{
		{StartTime: sec(5), EndTime: sec(6), Text: "later."},
		{StartTime: sec(0), EndTime: sec(1), Text: "first."},
	}

	got := Merge(cues)

	require.Len(t, got, 2)
	assert.Equal(t, "first.", got[0].Text)
	assert.Equal(t, "later.", got[1].Text)
}

func TestMerge_GapWindow(t *testing.T) {
	tests := []struct {
		name   string
		start  float64
		folded bool
	}{
		{"small overlap", 0.96, true},
		{"overlap too large", 0.9, false},
		{"gap at limit", 1.6, true},
		{"gap too large", 1.7, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cues := []Cue{
				{StartTime: sec(0), EndTime: sec(1), Text: "one"},
				{StartTime: sec(tt.start), EndTime: sec(2.5), Text: "two"},
			}
			got := Merge(cues)
			if tt.folded {
				assert.Len(t, got, 1)
			} else {
				assert.Len(t, got, 2)
			}
		})
	}
}

func TestMerge_SpanAndWordBounds(t *testing.T) {
	var cues []Cue
	for i := 0; i < 40; i++ {
		start := float64(i) * 0.8
		cues = append(cues, Cue{StartTime: sec(start), EndTime: sec(start + 0.7), Text: "one two three"})
	}

	got := Merge(cues)

	require.NotEmpty(t, got)
	for i, seg := range got {
		assert.LessOrEqual(t, seg.Duration(), MaxSegmentSpan, "segment %d span", i)
		assert.LessOrEqual(t, WordCount(seg.Text), MaxSegmentWords, "segment %d words", i)
		if i > 0 {
			assert.LessOrEqual(t, got[i-1].StartTime, seg.StartTime)
		}
	}
}

func TestMerge_LongCueKeptWhole(t *testing.T) {
	long := strings.Repeat("word ", 40)
	cues := []Cue{
		{StartTime: sec(0), EndTime: sec(20), Text: long},
		{StartTime: sec(20.1), EndTime: sec(21), Text: "tail"},
	}

	got := Merge(cues)

	require.Len(t, got, 2)
	assert.Equal(t, sec(20), got[0].EndTime)
}

func TestMerge_Idempotent(t *testing.T) {
	cues := []Cue{
		{StartTime: sec(0), EndTime: sec(1), Text: "so we went"},
		{StartTime: sec(1.2), EndTime: sec(2), Text: "to the shop."},
		{StartTime: sec(2.1), EndTime: sec(3), Text: "It was closed"},
		{StartTime: sec(4), EndTime: sec(5), Text: "again!"},
	}

	once := Merge(cues)
	asCues := make([]Cue, len(once))
	for i, s := range once {
		asCues[i] = Cue{StartTime: s.StartTime, EndTime: s.EndTime, Text: s.Text}
	}

	assert.Equal(t, once, Merge(asCues))
}

func TestEndsSentence(t *testing.T) {
	assert.True(t, EndsSentence("done. "))
	assert.True(t, EndsSentence("what?"))
	assert.True(t, EndsSentence("wow!"))
	assert.True(t, EndsSentence("and then…"))
	assert.False(t, EndsSentence("and then"))
	assert.False(t, EndsSentence(""))
}

func TestActiveIndex_FirstMatchWins(t *testing.T) {
	segs := []Segment{
		{StartTime: sec(0), EndTime: sec(5)},
		{StartTime: sec(5), EndTime: sec(10)},
	}

	assert.Equal(t, 0, ActiveIndex(segs, sec(4.98), 50*time.Millisecond))
	assert.Equal(t, 1, ActiveIndex(segs, sec(5.06), 50*time.Millisecond))
	assert.Equal(t, -1, ActiveIndex(segs, sec(10.05), 50*time.Millisecond))
	assert.Equal(t, 0, ActiveIndex(segs, sec(-0.04), 50*time.Millisecond))
}
