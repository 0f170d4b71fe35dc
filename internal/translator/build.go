package translator

import (
	"time"

	"github.com/MimeLyc/syncdub/internal/backend"
	"github.com/MimeLyc/syncdub/internal/config"
)

// FromConfig assembles the translate and polish chains: backend first, then
// the direct providers that have credentials.
func FromConfig(cfg *config.Config, be *backend.Client) (*Chain, *PolishChain) {
	tr := NewChain()
	pol := NewPolishChain()

	if be.Configured() {
		tr.With("backend", be)
		pol.With("backend", be)
	}
	if cfg.Backend.TranslateAPIKey != "" {
		tr.With("google", NewGoogleTranslator(cfg.Backend.TranslateAPIKey, be.HTTPClient()))
	}
	if cfg.LLM.Enabled() {
		pol.With("llm", NewLLMPolisher(cfg.LLM.APIKey, cfg.LLM.APIURL, cfg.LLM.Model,
			time.Duration(cfg.LLM.Timeout)*time.Second))
	}
	return tr, pol
}
