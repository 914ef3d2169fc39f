package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, cfg.MidiDevices)
	assert.Empty(t, cfg.AudioDevice)
	assert.Equal(t, 44100, cfg.AudioSampleRate)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	text := "midi_devices:\n  - nanoKONTROL\naudio_device: Scarlett\naudio_sample_rate: 48000\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(text), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"nanoKONTROL"}, cfg.MidiDevices)
	assert.Equal(t, "Scarlett", cfg.AudioDevice)
	assert.Equal(t, 48000, cfg.AudioSampleRate)
}

func TestLoadBadYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("midi_devices: [oops\n"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
}
