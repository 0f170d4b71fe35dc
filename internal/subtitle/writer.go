package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"time"
)

// SRTWriter writes merged segments as SubRip
type SRTWriter struct{}

// NewWriter creates an SRT writer
func NewWriter() Writer {
	return &SRTWriter{}
}

// Write emits one SRT block per segment, preferring the translated text for
// an index when present.
func (w *SRTWriter) Write(out io.Writer, segments []Segment, translated map[int]string) error {
	if segments == nil {
		return fmt.Errorf("no segments to write")
	}

	writer := bufio.NewWriter(out)
	for i, seg := range segments {
		text := translated[i]
		if text == "" {
			text = seg.Text
		}
		if _, err := fmt.Fprintf(writer, "%d\n%s --> %s\n%s\n\n",
			i+1, formatSRTTime(seg.StartTime), formatSRTTime(seg.EndTime), text); err != nil {
			return fmt.Errorf("failed to write segment %d: %w", i, err)
		}
	}
	return writer.Flush()
}

func formatSRTTime(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	milliseconds := int(d.Milliseconds()) % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, milliseconds)
}

// FormatClock renders a position as m:ss, or h:mm:ss past the hour.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
