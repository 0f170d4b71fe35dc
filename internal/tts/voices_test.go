package tts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoiceTable_Lookup(t *testing.T) {
	table := DefaultVoices()

	assert.Equal(t, Voice{LanguageCode: "tr-TR", Name: "tr-TR-Wavenet-A"}, table.Lookup("tr"))
	assert.Equal(t, "pt-BR", table.Lookup("pt-BR").LanguageCode)
	assert.Equal(t, "zh-CN", table.Lookup("zh-Hant").LanguageCode)
	assert.Equal(t, DefaultVoice, table.Lookup("sw"))
	assert.Equal(t, DefaultVoice, table.Lookup("??"))
}

func TestLoadVoiceTable_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voices.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`voices:
  tr:
    language_code: tr-TR
    name: tr-TR-Wavenet-B
  sw:
    language_code: sw-KE
    name: sw-KE-Standard-A
`), 0o644))

	table, err := LoadVoiceTable(path)
	require.NoError(t, err)

	assert.Equal(t, "tr-TR-Wavenet-B", table.Lookup("tr").Name)
	assert.Equal(t, "sw-KE", table.Lookup("sw").LanguageCode)
	assert.Equal(t, "de-DE-Wavenet-A", table.Lookup("de").Name)

	// builtin table untouched by the override
	assert.Equal(t, "tr-TR-Wavenet-A", DefaultVoices().Lookup("tr").Name)
}

func TestLoadVoiceTable_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voices.yaml")
	require.NoError(t, os.WriteFile(path, []byte("voices:\n  tr:\n    name: only-name\n"), 0o644))

	_, err := LoadVoiceTable(path)
	assert.Error(t, err)

	_, err = LoadVoiceTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	table, err := LoadVoiceTable("")
	require.NoError(t, err)
	assert.Equal(t, "en-US-Wavenet-D", table.Lookup("en").Name)
}
