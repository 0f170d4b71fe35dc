package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	tagPattern   = regexp.MustCompile(`<[^>]+>`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// VTTReader reads WebVTT documents
type VTTReader struct{}

// NewReader creates a WebVTT reader
func NewReader() Reader {
	return &VTTReader{}
}

// Read parses cues from a WebVTT body. Cue settings after the end timestamp
// are ignored, inline tags stripped, and cues without text dropped.
func (r *VTTReader) Read(in io.Reader) ([]Cue, error) {
	var cues []Cue
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		current   Cue
		inCue     bool
		textParts []string
	)

	flush := func() {
		if inCue {
			text := CleanText(strings.Join(textParts, " "))
			if text != "" {
				current.Text = text
				cues = append(cues, current)
			}
		}
		inCue = false
		current = Cue{}
		textParts = nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case strings.Contains(line, "-->"):
			flush()
			start, end, err := parseTimingLine(line)
			if err != nil {
				// malformed timing lines are skipped
				continue
			}
			current = Cue{StartTime: start, EndTime: end}
			inCue = true
		case line == "":
			flush()
		case inCue:
			textParts = append(textParts, line)
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read subtitle body: %w", err)
	}
	return cues, nil
}

// ReadVTTString parses a WebVTT document held in memory.
func ReadVTTString(body string) ([]Cue, error) {
	return NewReader().Read(strings.NewReader(body))
}

func parseTimingLine(line string) (time.Duration, time.Duration, error) {
	parts := strings.SplitN(line, "-->", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid timing line: %s", line)
	}
	endFields := strings.Fields(parts[1])
	if len(endFields) == 0 {
		return 0, 0, fmt.Errorf("invalid timing line: %s", line)
	}
	start, err := ParseTimestamp(parts[0])
	if err != nil {
		return 0, 0, err
	}
	end, err := ParseTimestamp(endFields[0])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// ParseTimestamp accepts HH:MM:SS.mmm, MM:SS.mmm or plain seconds; a comma
// may replace the decimal point.
func ParseTimestamp(s string) (time.Duration, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	parts := strings.Split(s, ":")

	var hours, minutes int
	var secondsPart string
	var err error
	switch len(parts) {
	case 3:
		if hours, err = strconv.Atoi(parts[0]); err != nil {
			return 0, fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		if minutes, err = strconv.Atoi(parts[1]); err != nil {
			return 0, fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		secondsPart = parts[2]
	case 2:
		if minutes, err = strconv.Atoi(parts[0]); err != nil {
			return 0, fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		secondsPart = parts[1]
	case 1:
		secondsPart = parts[0]
	default:
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}

	seconds, err := strconv.ParseFloat(secondsPart, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}

	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		Seconds(seconds), nil
}

// CleanText removes markup tags and collapses whitespace.
func CleanText(text string) string {
	text = tagPattern.ReplaceAllString(text, "")
	text = spacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Seconds converts floating point seconds to a Duration, rounded to the millisecond.
func Seconds(sec float64) time.Duration {
	return time.Duration(sec*1000+copysignHalf(sec)) * time.Millisecond
}

func copysignHalf(v float64) float64 {
	if v < 0 {
		return -0.5
	}
	return 0.5
}
