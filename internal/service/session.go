package service

import (
	"errors"
	"strings"
	"time"

	"github.com/MimeLyc/syncdub/internal/apperr"
	"github.com/MimeLyc/syncdub/internal/backend"
	"github.com/MimeLyc/syncdub/internal/config"
	"github.com/MimeLyc/syncdub/internal/dubbing"
	"github.com/MimeLyc/syncdub/internal/remote"
	"github.com/MimeLyc/syncdub/internal/translator"
	"github.com/MimeLyc/syncdub/internal/tts"
	"golang.org/x/text/language"
)

// Start begins dubbing the current video. targetLanguage overrides the
// configured language when set. Starting a running session changes nothing.
func (s *Service) Start(targetLanguage string) (dubbing.Snapshot, error) {
	if s.sync.State() != dubbing.StateIdle {
		return s.sync.Snapshot(), nil
	}

	cfg := s.Config()
	lang := cfg.Dub.TargetLanguage
	if tl := strings.TrimSpace(targetLanguage); tl != "" {
		tag, err := language.Parse(tl)
		if err != nil {
			return dubbing.Snapshot{}, apperr.Wrap(err, apperr.Validation, "invalid target language").
				WithContext("target_language", targetLanguage)
		}
		lang = tag
	}

	stages, err := buildStages(&cfg)
	if err != nil {
		return dubbing.Snapshot{}, err
	}
	// a concurrent start may have won the race; its stages stay in place
	_, err = s.sync.StartWithStages(dubbing.Options{
		TargetLanguage: lang.String(),
		Polish:         cfg.Dub.PolishEnabled,
	}, stages)
	if errors.Is(err, dubbing.ErrNoSegments) {
		return dubbing.Snapshot{}, apperr.Wrap(err, apperr.Validation, "load a video with subtitles first")
	}
	if err != nil {
		return dubbing.Snapshot{}, err
	}
	return s.sync.Snapshot(), nil
}

// Stop ends the session and releases its clips.
func (s *Service) Stop() dubbing.Snapshot {
	s.sync.Stop()
	return s.sync.Snapshot()
}

func (s *Service) Snapshot() dubbing.Snapshot {
	return s.sync.Snapshot()
}

// ReportPlayer records a position and transport state from the page and
// forwards play and pause transitions to the synchronizer.
func (s *Service) ReportPlayer(position time.Duration, state string) error {
	st, err := remote.ParsePlayerState(state)
	if err != nil {
		return apperr.Wrap(err, apperr.Validation, "invalid player state")
	}
	prev := s.player.Report(position, st)
	if st == prev {
		return nil
	}
	switch st {
	case remote.PlayerPlaying:
		s.sync.OnPlaying()
	case remote.PlayerPaused:
		s.sync.OnPaused()
	}
	return nil
}

// SetVolume sets the dub volume from a 0..100 percentage.
func (s *Service) SetVolume(percent float64) error {
	if percent < 0 || percent > 100 {
		return apperr.Newf(apperr.Validation, "volume must be between 0 and 100, got %v", percent)
	}
	s.sync.SetVolume(percent / 100)
	return nil
}

// Audio returns the bytes of a prepared clip.
func (s *Service) Audio(handle string) ([]byte, string, bool) {
	return s.output.Source(dubbing.AudioHandle(handle))
}

// ClipLoaded records the metadata the page reported for a clip.
func (s *Service) ClipLoaded(clipID string, duration time.Duration) error {
	if err := s.output.Loaded(clipID, duration); err != nil {
		return apperr.Wrap(err, apperr.Resource, "unknown clip").WithContext("clip_id", clipID)
	}
	return nil
}

func buildStages(cfg *config.Config) (dubbing.Stages, error) {
	be := backend.NewClient(cfg.Backend.BaseURL, time.Duration(cfg.Backend.Timeout)*time.Second)
	if !be.Configured() && cfg.Backend.TTSAPIKey == "" {
		return dubbing.Stages{}, apperr.New(apperr.Config, "no speech provider configured: set a backend address or a TTS key")
	}

	tr, pol := translator.FromConfig(cfg, be)
	synth, err := tts.FromConfig(cfg, be)
	if err != nil {
		return dubbing.Stages{}, apperr.Wrap(err, apperr.Config, "failed to load voice table").
			WithContext("file", cfg.Dub.VoiceTableFile)
	}
	return dubbing.Stages{
		Translator:  tr,
		Polisher:    pol,
		Synthesizer: synth,
		Format:      tts.AudioFormat,
	}, nil
}
