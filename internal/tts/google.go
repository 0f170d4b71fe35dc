package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/MimeLyc/syncdub/internal/apperr"
	"github.com/MimeLyc/syncdub/internal/backend"
)

const DefaultGoogleTTSEndpoint = "https://texttospeech.googleapis.com/v1/text:synthesize"

// GoogleSynthesizer calls the Cloud Text-to-Speech v1 REST API directly.
type GoogleSynthesizer struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

func NewGoogleSynthesizer(apiKey string, httpClient *http.Client) *GoogleSynthesizer {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GoogleSynthesizer{apiKey: apiKey, endpoint: DefaultGoogleTTSEndpoint, httpClient: httpClient}
}

func (g *GoogleSynthesizer) WithEndpoint(endpoint string) *GoogleSynthesizer {
	g.endpoint = endpoint
	return g
}

type googleTTSRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name,omitempty"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string  `json:"audioEncoding"`
		SpeakingRate  float64 `json:"speakingRate"`
		Pitch         float64 `json:"pitch"`
	} `json:"audioConfig"`
}

type googleTTSResponse struct {
	AudioContent string `json:"audioContent"`
}

func (g *GoogleSynthesizer) Synthesize(ctx context.Context, req backend.SynthesizeRequest) ([]byte, error) {
	if strings.TrimSpace(g.apiKey) == "" {
		return nil, apperr.New(apperr.Config, "google tts api key is not configured")
	}

	var body googleTTSRequest
	body.Input.Text = req.Text
	body.Voice.LanguageCode = req.LanguageCode
	body.Voice.Name = req.VoiceName
	body.AudioConfig.AudioEncoding = "MP3"
	body.AudioConfig.SpeakingRate = req.SpeakingRate
	body.AudioConfig.Pitch = req.Pitch

	var resp googleTTSResponse
	if err := backend.PostJSON(ctx, g.httpClient, g.endpoint+"?key="+url.QueryEscape(g.apiKey), body, &resp); err != nil {
		return nil, fmt.Errorf("google tts: %w", err)
	}
	if resp.AudioContent == "" {
		return nil, apperr.New(apperr.API, "google tts returned no audio")
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.API, "google tts returned invalid audio")
	}
	return audio, nil
}
