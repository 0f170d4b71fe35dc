package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/MimeLyc/syncdub/internal/apperr"
	"github.com/MimeLyc/syncdub/internal/backend"
	"github.com/MimeLyc/syncdub/internal/config"
	"github.com/MimeLyc/syncdub/internal/subtitle"
	"github.com/MimeLyc/syncdub/pkg/log"
)

const defaultFetchTimeout = 30 * time.Second

var videoIDPattern = regexp.MustCompile(`(?:youtube\.com\/(?:[^\/]+\/.+\/|(?:v|e(?:mbed)?)\/|.*[?&]v=)|youtu\.be\/)([^"&?\/\s]{11})`)

// ExtractVideoID returns the 11 character id of a YouTube watch, embed or
// short link.
func ExtractVideoID(videoURL string) (string, error) {
	m := videoIDPattern.FindStringSubmatch(strings.TrimSpace(videoURL))
	if m == nil {
		return "", apperr.New(apperr.Validation, "invalid YouTube URL").
			WithContext("video_url", videoURL)
	}
	return m[1], nil
}

// VideoInfo describes the loaded video. SubtitleCount is the number of
// merged segments.
type VideoInfo struct {
	ID               string        `json:"video_id"`
	URL              string        `json:"video_url"`
	Title            string        `json:"title"`
	Duration         float64       `json:"duration"`
	DurationText     string        `json:"duration_text"`
	SubtitleLanguage string        `json:"subtitle_language"`
	CueCount         int           `json:"cue_count"`
	SubtitleCount    int           `json:"subtitle_count"`
	FromCache        bool          `json:"from_cache"`
	LoadedAt         time.Time     `json:"loaded_at"`
	Segments         []SegmentInfo `json:"segments,omitempty"`
}

type SegmentInfo struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type fetchResult struct {
	video     *subtitle.Video
	fromCache bool
}

// LoadVideo acquires the subtitles of videoURL, merges them and makes them
// the current video. A running session is stopped. Concurrent loads of the
// same video share one fetch.
func (s *Service) LoadVideo(ctx context.Context, videoURL string) (*VideoInfo, error) {
	videoURL = strings.TrimSpace(videoURL)
	id, err := ExtractVideoID(videoURL)
	if err != nil {
		return nil, err
	}

	cfg := s.Config()
	v, err, _ := s.loads.Do(id, func() (any, error) {
		// shared by every waiter, so one caller going away must not cancel it
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout(cfg))
		defer cancel()
		return s.fetch(fetchCtx, cfg, videoURL, id)
	})
	if err != nil {
		return nil, err
	}
	res := v.(fetchResult)

	segments := subtitle.Merge(res.video.Cues)
	if len(segments) == 0 {
		return nil, apperr.New(apperr.Acquisition, "video has no speakable subtitles").
			WithContext("video_id", id)
	}
	s.sync.Load(segments)

	info := newVideoInfo(res.video, segments, res.fromCache, s.clock.Now())
	s.mu.Lock()
	s.current = info
	s.mu.Unlock()

	log.Info("Loaded video %s (%q): %d cues merged into %d segments, language %q, cached=%v",
		id, info.Title, info.CueCount, info.SubtitleCount, info.SubtitleLanguage, res.fromCache)
	return info, nil
}

// CurrentVideo returns the loaded video, if any.
func (s *Service) CurrentVideo() (*VideoInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.current != nil
}

func (s *Service) fetch(ctx context.Context, cfg config.Config, videoURL, id string) (fetchResult, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.LoadVideo(ctx, id, s.clock.Now().Add(-cacheTTL(cfg)))
		switch {
		case err != nil:
			log.Warn("Subtitle cache lookup for %s failed: %v", id, err)
		case ok:
			log.Debug("Subtitle cache hit for %s (fetched %s)", id, cached.FetchedAt.Format(time.RFC3339))
			video := cached.Video
			if video.URL == "" {
				video.URL = videoURL
			}
			return fetchResult{video: &video, fromCache: true}, nil
		}
	}

	be := backend.NewClient(cfg.Backend.BaseURL, time.Duration(cfg.Backend.Timeout)*time.Second)
	video, err := be.FetchSubtitles(ctx, videoURL)
	if err != nil {
		return fetchResult{}, err
	}
	video.ID = id
	if video.SubtitleLanguage == "" {
		video.SubtitleLanguage = subtitle.DetectLanguage(video.Cues)
	}

	if s.cache != nil {
		if err := s.cache.SaveVideo(ctx, *video, s.clock.Now().UTC()); err != nil {
			log.Warn("Failed to cache subtitles for %s: %v", id, err)
		}
	}
	return fetchResult{video: video}, nil
}

func newVideoInfo(video *subtitle.Video, segments []subtitle.Segment, fromCache bool, now time.Time) *VideoInfo {
	info := &VideoInfo{
		ID:               video.ID,
		URL:              video.URL,
		Title:            video.Title,
		Duration:         video.Duration.Seconds(),
		DurationText:     subtitle.FormatClock(video.Duration),
		SubtitleLanguage: video.SubtitleLanguage,
		CueCount:         len(video.Cues),
		SubtitleCount:    len(segments),
		FromCache:        fromCache,
		LoadedAt:         now,
		Segments:         make([]SegmentInfo, 0, len(segments)),
	}
	for i, seg := range segments {
		info.Segments = append(info.Segments, SegmentInfo{
			Index: i,
			Start: seg.StartTime.Seconds(),
			End:   seg.EndTime.Seconds(),
			Text:  seg.Text,
		})
	}
	return info
}

func fetchTimeout(cfg config.Config) time.Duration {
	if cfg.Backend.Timeout <= 0 {
		return defaultFetchTimeout
	}
	return time.Duration(cfg.Backend.Timeout) * time.Second
}

func cacheTTL(cfg config.Config) time.Duration {
	return time.Duration(cfg.Storage.CacheTTLHours) * time.Hour
}
