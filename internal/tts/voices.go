package tts

import (
	"fmt"
	"maps"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"golang.org/x/text/language"
)

// Voice selects the synthesis locale and voice for a language.
type Voice struct {
	LanguageCode string `yaml:"language_code" json:"language_code"`
	Name         string `yaml:"name" json:"name"`
}

// DefaultVoice is used for languages missing from the table.
var DefaultVoice = Voice{LanguageCode: "en-US", Name: "en-US-Wavenet-D"}

var builtinVoices = map[string]Voice{
	"tr": {LanguageCode: "tr-TR", Name: "tr-TR-Wavenet-A"},
	"en": {LanguageCode: "en-US", Name: "en-US-Wavenet-D"},
	"es": {LanguageCode: "es-ES", Name: "es-ES-Wavenet-A"},
	"fr": {LanguageCode: "fr-FR", Name: "fr-FR-Wavenet-A"},
	"de": {LanguageCode: "de-DE", Name: "de-DE-Wavenet-A"},
	"it": {LanguageCode: "it-IT", Name: "it-IT-Wavenet-A"},
	"pt": {LanguageCode: "pt-BR", Name: "pt-BR-Wavenet-A"},
	"ru": {LanguageCode: "ru-RU", Name: "ru-RU-Wavenet-A"},
	"ja": {LanguageCode: "ja-JP", Name: "ja-JP-Wavenet-A"},
	"ko": {LanguageCode: "ko-KR", Name: "ko-KR-Wavenet-A"},
	"zh": {LanguageCode: "zh-CN", Name: "zh-CN-Wavenet-A"},
	"ar": {LanguageCode: "ar-XA", Name: "ar-XA-Wavenet-A"},
}

// VoiceTable maps base language tags to voices.
type VoiceTable struct {
	voices map[string]Voice
}

func DefaultVoices() *VoiceTable {
	return &VoiceTable{voices: maps.Clone(builtinVoices)}
}

type voiceFile struct {
	Voices map[string]Voice `yaml:"voices"`
}

// LoadVoiceTable returns the builtin table extended by the YAML file at
// path. An empty path returns the builtin table.
func LoadVoiceTable(path string) (*VoiceTable, error) {
	table := DefaultVoices()
	if strings.TrimSpace(path) == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read voice table: %w", err)
	}
	var file voiceFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse voice table: %w", err)
	}
	for lang, v := range file.Voices {
		key := normalize(lang)
		if key == "" {
			return nil, fmt.Errorf("invalid language %q in voice table", lang)
		}
		if v.LanguageCode == "" {
			return nil, fmt.Errorf("voice for %q is missing language_code", lang)
		}
		table.voices[key] = v
	}
	return table, nil
}

// Lookup returns the voice for a language tag such as "tr" or "pt-BR".
func (t *VoiceTable) Lookup(lang string) Voice {
	if v, ok := t.voices[normalize(lang)]; ok {
		return v
	}
	return DefaultVoice
}

func normalize(lang string) string {
	tag, err := language.Parse(strings.TrimSpace(lang))
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	return base.String()
}
