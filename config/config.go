package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// ErrNoSamples is returned when the sample list is missing or empty
var ErrNoSamples = errors.New("no samples configured")

// Sound is one row of the grid: a sample file plus an optional stable id
// and MIDI note for the mirror output.
type Sound struct {
	Path string `yaml:"path"`
	ID   string `yaml:"id,omitempty"`
	Note uint8  `yaml:"note,omitempty"`
}

// UnmarshalYAML accepts either a bare path string or a mapping
func (s *Sound) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		s.Path = value.Value
		return nil
	}
	type plain Sound
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*s = Sound(p)
	return nil
}

// MIDIOutConfig mirrors triggers to a MIDI port (empty port = disabled)
type MIDIOutConfig struct {
	Port    string `yaml:"port,omitempty"`
	Channel int    `yaml:"channel,omitempty"` // 1-16
	Kit     string `yaml:"kit,omitempty"`
}

// MIDIInConfig plays rows from a pad controller or keyboard (empty port = disabled).
// Incoming notes are matched against the same kit mapping as the output.
type MIDIInConfig struct {
	Port string `yaml:"port,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Sounds []Sound `yaml:"sounds"`

	Steps        int  `yaml:"steps,omitempty"`
	BPM          int  `yaml:"bpm,omitempty"`
	MasterVolume *int `yaml:"volume,omitempty"` // 0 starts muted

	// Tuning. Both relate the highlighted step to audio trigger timing and
	// have no derivable value; they are empirical.
	Lookahead     *int    `yaml:"lookahead,omitempty"`
	JitterDivisor float64 `yaml:"jitterDivisor,omitempty"`

	FadeInMs         int   `yaml:"fadeInMs,omitempty"`
	RetriggerFadeMs  int   `yaml:"retriggerFadeMs,omitempty"`
	AuditionOnToggle *bool `yaml:"auditionOnToggle,omitempty"`
	Prewarm          *bool `yaml:"prewarm,omitempty"`

	SaveDir string        `yaml:"saveDir,omitempty"`
	MIDIOut MIDIOutConfig `yaml:"midiOut,omitempty"`
	MIDIIn  MIDIInConfig  `yaml:"midiIn,omitempty"`
	Palette string        `yaml:"palette,omitempty"`
	Debug   bool          `yaml:"debug,omitempty"`
}

// Defaults
const (
	DefaultSteps         = 16
	DefaultBPM           = 120
	DefaultMasterVolume  = 100
	DefaultLookahead     = 2
	DefaultJitterDivisor = 8.0
	DefaultFadeInMs      = 2
	DefaultMIDIChannel   = 10
)

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-drum"), nil
}

// ConfigPath returns the default config file (~/.config/go-drum/sounds.yaml)
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sounds.yaml"), nil
}

// Load reads a YAML (or JSON) config. Unlike UI preferences, the sample list
// cannot be defaulted: a missing file or an empty list is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data, filepath.Dir(path))
}

// Parse decodes config data. Relative sample paths resolve against baseDir.
func Parse(data []byte, baseDir string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.normalize(baseDir); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize(baseDir string) error {
	if len(c.Sounds) == 0 {
		return ErrNoSamples
	}

	seen := make(map[string]bool, len(c.Sounds))
	for i := range c.Sounds {
		s := &c.Sounds[i]
		if strings.TrimSpace(s.Path) == "" {
			return fmt.Errorf("sound %d: empty path", i)
		}
		if s.ID == "" {
			s.ID = s.Path // the drafts key saved sounds by their file name
		}
		if seen[s.ID] {
			return fmt.Errorf("sound %d: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = true

		p, err := expand(s.Path, baseDir)
		if err != nil {
			return fmt.Errorf("sound %q: %w", s.ID, err)
		}
		s.Path = p
	}

	if c.Steps <= 0 {
		c.Steps = DefaultSteps
	}
	if c.BPM <= 0 {
		c.BPM = DefaultBPM
	}
	if c.MasterVolume == nil || *c.MasterVolume < 0 {
		v := DefaultMasterVolume
		c.MasterVolume = &v
	}
	if c.Lookahead == nil || *c.Lookahead < 0 {
		n := DefaultLookahead
		c.Lookahead = &n
	}
	if c.JitterDivisor <= 0 {
		c.JitterDivisor = DefaultJitterDivisor
	}
	if c.FadeInMs <= 0 {
		c.FadeInMs = DefaultFadeInMs
	}
	if c.MIDIOut.Channel < 1 || c.MIDIOut.Channel > 16 {
		c.MIDIOut.Channel = DefaultMIDIChannel
	}

	if c.SaveDir == "" {
		dir, err := ConfigDir()
		if err != nil {
			return err
		}
		c.SaveDir = filepath.Join(dir, "saves")
	} else {
		dir, err := expand(c.SaveDir, baseDir)
		if err != nil {
			return fmt.Errorf("saveDir: %w", err)
		}
		c.SaveDir = dir
	}

	if c.Palette != "" {
		p, err := expand(c.Palette, baseDir)
		if err != nil {
			return fmt.Errorf("palette: %w", err)
		}
		c.Palette = p
	}
	return nil
}

// AuditionEnabled reports whether toggling a cell on plays the sound (default true)
func (c *Config) AuditionEnabled() bool {
	return c.AuditionOnToggle == nil || *c.AuditionOnToggle
}

// PrewarmEnabled reports whether the pitch table is computed at startup (default true)
func (c *Config) PrewarmEnabled() bool {
	return c.Prewarm == nil || *c.Prewarm
}

// Volume is the starting master volume in percent
func (c *Config) Volume() int {
	if c.MasterVolume == nil {
		return DefaultMasterVolume
	}
	return *c.MasterVolume
}

// LookaheadSteps is the distance between the highlighted step and the step being scheduled
func (c *Config) LookaheadSteps() int {
	if c.Lookahead == nil {
		return DefaultLookahead
	}
	return *c.Lookahead
}

// SampleIDs returns the row ids in grid order
func (c *Config) SampleIDs() []string {
	ids := make([]string, len(c.Sounds))
	for i, s := range c.Sounds {
		ids[i] = s.ID
	}
	return ids
}

func expand(path, baseDir string) (string, error) {
	p, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(p) && baseDir != "" {
		p = filepath.Join(baseDir, p)
	}
	return p, nil
}
