package tts

import (
	"context"
	"errors"

	"github.com/MimeLyc/syncdub/internal/backend"
	"github.com/MimeLyc/syncdub/internal/config"
	"github.com/MimeLyc/syncdub/pkg/log"
)

// ErrNoAudio is returned when no provider produced audio.
var ErrNoAudio = errors.New("no audio produced")

// AudioFormat is the encoding every provider is asked for.
const AudioFormat = "audio/mpeg"

// Provider turns a request into encoded audio.
type Provider interface {
	Synthesize(ctx context.Context, req backend.SynthesizeRequest) ([]byte, error)
}

type namedProvider struct {
	name string
	p    Provider
}

// Synthesizer resolves the voice for a language and tries each provider in
// order until one returns audio.
type Synthesizer struct {
	voices    *VoiceTable
	providers []namedProvider
}

func NewSynthesizer(voices *VoiceTable) *Synthesizer {
	if voices == nil {
		voices = DefaultVoices()
	}
	return &Synthesizer{voices: voices}
}

// With appends a provider. Nil providers are skipped.
func (s *Synthesizer) With(name string, p Provider) *Synthesizer {
	if p != nil {
		s.providers = append(s.providers, namedProvider{name: name, p: p})
	}
	return s
}

// Synthesize returns MP3 audio for text spoken at rate in lang.
func (s *Synthesizer) Synthesize(ctx context.Context, text, lang string, rate float64) ([]byte, error) {
	voice := s.voices.Lookup(lang)
	req := backend.SynthesizeRequest{
		Text:         text,
		LanguageCode: voice.LanguageCode,
		VoiceName:    voice.Name,
		SpeakingRate: rate,
		Pitch:        0,
	}

	var lastErr error
	for _, np := range s.providers {
		audio, err := np.p.Synthesize(ctx, req)
		if err == nil && len(audio) > 0 {
			return audio, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err == nil {
			err = ErrNoAudio
		}
		log.Warn("Synthesize via %s failed: %v", np.name, err)
		lastErr = err
	}
	if lastErr != nil {
		return nil, errors.Join(ErrNoAudio, lastErr)
	}
	return nil, ErrNoAudio
}

// FromConfig builds the synthesizer with the backend and, when a key is
// set, the direct Google provider.
func FromConfig(cfg *config.Config, be *backend.Client) (*Synthesizer, error) {
	voices, err := LoadVoiceTable(cfg.Dub.VoiceTableFile)
	if err != nil {
		return nil, err
	}
	s := NewSynthesizer(voices)
	if be.Configured() {
		s.With("backend", be)
	}
	if cfg.Backend.TTSAPIKey != "" {
		s.With("google", NewGoogleSynthesizer(cfg.Backend.TTSAPIKey, be.HTTPClient()))
	}
	return s, nil
}
