package persistence

import (
	"time"

	"github.com/MimeLyc/syncdub/internal/subtitle"
)

// CachedVideo is a stored subtitle acquisition.
type CachedVideo struct {
	Video     subtitle.Video
	FetchedAt time.Time
}

// Stats summarises the cache contents.
type Stats struct {
	Videos int
	Cues   int
}
