package subtitle

import (
	"io"
	"time"
)

// Reader parses a subtitle document into cues
type Reader interface {
	Read(r io.Reader) ([]Cue, error)
}

// Writer serialises merged segments
type Writer interface {
	Write(w io.Writer, segments []Segment, translated map[int]string) error
}

// Cue is one raw subtitle line as supplied by the source.
type Cue struct {
	StartTime time.Duration
	EndTime   time.Duration
	Text      string
}

// Segment is one speakable unit made of one or more consecutive cues.
type Segment struct {
	StartTime time.Duration
	EndTime   time.Duration
	Text      string
}

// Duration returns the segment span.
func (s Segment) Duration() time.Duration {
	return s.EndTime - s.StartTime
}

// Video is the acquisition result for one video URL.
type Video struct {
	URL              string
	ID               string
	Title            string
	Duration         time.Duration
	SubtitleLanguage string
	Cues             []Cue
}
