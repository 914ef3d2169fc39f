// Package config loads the per-project config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is looked up in the project directory.
const FileName = "config.yaml"

// Config selects the input devices a project wants. Every field is
// optional; an absent file means defaults throughout.
type Config struct {
	// MidiDevices are case-sensitive substrings matched against port
	// names. Empty means connect every port.
	MidiDevices []string `yaml:"midi_devices"`

	// AudioDevice is a substring matched against input device names.
	// Empty picks the system default input.
	AudioDevice string `yaml:"audio_device"`

	// AudioFile, when set, feeds the analyzer from a media file instead
	// of a capture device.
	AudioFile string `yaml:"audio_file"`

	// AudioSampleRate overrides the 44.1kHz default.
	AudioSampleRate int `yaml:"audio_sample_rate"`

	// VideoSources maps source names to media files. Pipelines bind them
	// with a sources entry matching the name by substring.
	VideoSources map[string]string `yaml:"video_sources"`
}

// Load reads dir/config.yaml. A missing file is not an error.
func Load(dir string) (*Config, error) {
	cfg := &Config{AudioSampleRate: 44100}

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	if cfg.AudioSampleRate <= 0 {
		cfg.AudioSampleRate = 44100
	}
	return cfg, nil
}
