package translator

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/MimeLyc/syncdub/internal/apperr"
	"github.com/MimeLyc/syncdub/internal/backend"
)

const DefaultGoogleTranslateEndpoint = "https://translation.googleapis.com/language/translate/v2"

// GoogleTranslator calls the Cloud Translation v2 REST API directly.
type GoogleTranslator struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

func NewGoogleTranslator(apiKey string, httpClient *http.Client) *GoogleTranslator {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GoogleTranslator{
		apiKey:     apiKey,
		endpoint:   DefaultGoogleTranslateEndpoint,
		httpClient: httpClient,
	}
}

// WithEndpoint points the translator at another base address.
func (g *GoogleTranslator) WithEndpoint(endpoint string) *GoogleTranslator {
	g.endpoint = endpoint
	return g
}

type googleTranslateRequest struct {
	Q      string `json:"q"`
	Target string `json:"target"`
	Format string `json:"format"`
}

type googleTranslateResponse struct {
	Data *struct {
		Translations []struct {
			TranslatedText string `json:"translatedText"`
		} `json:"translations"`
	} `json:"data"`
}

func (g *GoogleTranslator) Translate(ctx context.Context, text, targetLang string) (string, error) {
	if strings.TrimSpace(g.apiKey) == "" {
		return "", apperr.New(apperr.Config, "google translate api key is not configured")
	}

	target := g.endpoint + "?key=" + url.QueryEscape(g.apiKey)
	var resp googleTranslateResponse
	err := backend.PostJSON(ctx, g.httpClient, target, googleTranslateRequest{
		Q:      text,
		Target: targetLang,
		Format: "text",
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("google translate: %w", err)
	}
	if resp.Data == nil || len(resp.Data.Translations) == 0 || resp.Data.Translations[0].TranslatedText == "" {
		return "", apperr.New(apperr.API, "google translate returned no translation")
	}
	return resp.Data.Translations[0].TranslatedText, nil
}
