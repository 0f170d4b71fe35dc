package backend

import (
	"fmt"
	"strings"
	"time"

	"github.com/MimeLyc/syncdub/internal/subtitle"
)

type subtitlesRequest struct {
	VideoURL string `json:"video_url"`
}

type subtitleItem struct {
	StartTime *float64 `json:"start_time"`
	EndTime   *float64 `json:"end_time"`
	Text      string   `json:"text"`
}

type subtitlesResponse struct {
	Subtitles        []subtitleItem `json:"subtitles"`
	VideoTitle       string         `json:"video_title"`
	VideoDuration    float64        `json:"video_duration"`
	SubtitleLanguage string         `json:"subtitle_language"`
	SubtitlesCount   int            `json:"subtitles_count"`
}

func (r subtitlesResponse) toVideo(videoURL string) (*subtitle.Video, error) {
	if len(r.Subtitles) == 0 {
		return nil, fmt.Errorf("response carries no subtitles")
	}
	cues := make([]subtitle.Cue, 0, len(r.Subtitles))
	for i, item := range r.Subtitles {
		if item.StartTime == nil || item.EndTime == nil {
			return nil, fmt.Errorf("subtitle %d is missing timing", i)
		}
		text := strings.TrimSpace(item.Text)
		if text == "" {
			continue
		}
		cues = append(cues, subtitle.Cue{
			StartTime: subtitle.Seconds(*item.StartTime),
			EndTime:   subtitle.Seconds(*item.EndTime),
			Text:      text,
		})
	}
	if len(cues) == 0 {
		return nil, fmt.Errorf("response carries only empty subtitles")
	}
	return &subtitle.Video{
		URL:              videoURL,
		Title:            r.VideoTitle,
		Duration:         time.Duration(r.VideoDuration * float64(time.Second)),
		SubtitleLanguage: r.SubtitleLanguage,
		Cues:             cues,
	}, nil
}

type translateRequest struct {
	Text       string `json:"text"`
	TargetLang string `json:"target_lang"`
}

type translateResponse struct {
	TranslatedText *string `json:"translatedText"`
}

type polishRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type polishResponse struct {
	Polished *string `json:"polished"`
}

// SynthesizeRequest describes one speech synthesis call.
type SynthesizeRequest struct {
	Text         string  `json:"text"`
	LanguageCode string  `json:"language_code"`
	VoiceName    string  `json:"voice_name"`
	SpeakingRate float64 `json:"speaking_rate"`
	Pitch        float64 `json:"pitch"`
}

type synthesizeResponse struct {
	AudioContent *string `json:"audioContent"`
	Encoding     string  `json:"encoding"`
}
