package backend

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/MimeLyc/syncdub/internal/apperr"
	"github.com/MimeLyc/syncdub/internal/subtitle"
)

// FetchSubtitles asks the backend for the subtitle track of a video.
// Any failure is an acquisition error.
func (c *Client) FetchSubtitles(ctx context.Context, videoURL string) (*subtitle.Video, error) {
	var resp subtitlesResponse
	if err := c.post(ctx, "/get-subtitles", subtitlesRequest{VideoURL: videoURL}, &resp); err != nil {
		return nil, apperr.Wrap(err, apperr.Acquisition, "failed to fetch subtitles").
			WithContext("video_url", videoURL)
	}
	video, err := resp.toVideo(videoURL)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.Acquisition, "invalid subtitle response").
			WithContext("video_url", videoURL)
	}
	return video, nil
}

// Translate translates text into the target language.
func (c *Client) Translate(ctx context.Context, text, targetLang string) (string, error) {
	var resp translateResponse
	if err := c.post(ctx, "/translate", translateRequest{Text: text, TargetLang: targetLang}, &resp); err != nil {
		return "", fmt.Errorf("backend translate: %w", err)
	}
	if resp.TranslatedText == nil || strings.TrimSpace(*resp.TranslatedText) == "" {
		return "", apperr.New(apperr.API, "backend translate returned no text")
	}
	return *resp.TranslatedText, nil
}

// Polish rewrites text to sound natural when spoken.
func (c *Client) Polish(ctx context.Context, text, lang string) (string, error) {
	var resp polishResponse
	if err := c.post(ctx, "/gemini-polish", polishRequest{Text: text, Language: lang}, &resp); err != nil {
		return "", fmt.Errorf("backend polish: %w", err)
	}
	if resp.Polished == nil || strings.TrimSpace(*resp.Polished) == "" {
		return "", apperr.New(apperr.API, "backend polish returned no text")
	}
	return strings.TrimSpace(*resp.Polished), nil
}

// Synthesize returns the decoded audio bytes for the request.
func (c *Client) Synthesize(ctx context.Context, req SynthesizeRequest) ([]byte, error) {
	var resp synthesizeResponse
	if err := c.post(ctx, "/synthesize", req, &resp); err != nil {
		return nil, fmt.Errorf("backend synthesize: %w", err)
	}
	if resp.AudioContent == nil || *resp.AudioContent == "" {
		return nil, apperr.New(apperr.API, "backend synthesize returned no audio")
	}
	audio, err := base64.StdEncoding.DecodeString(*resp.AudioContent)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.API, "backend synthesize returned invalid audio")
	}
	return audio, nil
}
