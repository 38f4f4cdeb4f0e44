package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Field kinds
const (
	KindText        = "text"
	KindTextarea    = "textarea"
	KindSelect      = "select"
	KindMultiSelect = "multiselect"
	KindSlider      = "slider"
	KindDate        = "date"
	KindTime        = "time"
)

var validKinds = map[string]bool{
	KindText:        true,
	KindTextarea:    true,
	KindSelect:      true,
	KindMultiSelect: true,
	KindSlider:      true,
	KindDate:        true,
	KindTime:        true,
}

// Config holds the tracker definitions and storage settings
type Config struct {
	// Directory for dataset files. Relative paths are resolved against the
	// directory of the executable.
	DataDir  string    `yaml:"data_dir"`
	Format   string    `yaml:"format"`    // xlsx, csv, parquet, sqlite, memory
	LogLevel string    `yaml:"log_level"` // debug, info, warning, error, none
	Trackers []Tracker `yaml:"trackers"`
}

// Tracker is one form page and the dataset it appends to
type Tracker struct {
	Name    string `yaml:"name"`
	Title   string `yaml:"title"`
	Dataset string `yaml:"dataset"`
	// Columns is the header the dataset is created with at start. Trackers
	// without columns get their dataset on the first append.
	Columns []string `yaml:"columns"`
	Submit  string   `yaml:"submit"`
	Success string   `yaml:"success"`
	Fields  []Field  `yaml:"fields"`
}

// Field is one question of a tracker form
type Field struct {
	Name    string   `yaml:"name"`
	Prompt  string   `yaml:"prompt"`
	Kind    string   `yaml:"kind"`
	Options []string `yaml:"options"`
	Min     float64  `yaml:"min"`
	Max     float64  `yaml:"max"`
	Step    float64  `yaml:"step"`
	Default string   `yaml:"default"`
	// OtherOption, when picked in a select, asks OtherPrompt and records
	// the typed text instead.
	OtherOption string `yaml:"other_option"`
	OtherPrompt string `yaml:"other_prompt"`
	// Join separates multiselect answers; defaults to ", "
	Join string     `yaml:"join"`
	When *Condition `yaml:"when"`
}

// Condition makes a field depend on the answer to an earlier field. When
// the condition does not hold the field is skipped and recorded empty.
type Condition struct {
	Field  string `yaml:"field"`
	Equals string `yaml:"equals"`
}

// Default returns the built-in configuration
func Default() (*Config, error) {
	return Parse(defaultYAML)
}

// Parse decodes and validates a YAML configuration
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig reads a YAML file. An empty filename yields the built-in configuration.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		return Default()
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

func (c *Config) applyDefaults() {
	if c.Format == "" {
		c.Format = "xlsx"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	for i := range c.Trackers {
		t := &c.Trackers[i]
		if t.Title == "" {
			t.Title = t.Name
		}
		if t.Dataset == "" {
			t.Dataset = t.Name
		}
		for j := range t.Fields {
			f := &t.Fields[j]
			if f.Prompt == "" {
				f.Prompt = f.Name
			}
			if f.Kind == KindMultiSelect && f.Join == "" {
				f.Join = ", "
			}
			if f.Kind == KindSlider && f.Step == 0 {
				f.Step = 1
			}
		}
	}
}

// Validate checks that every tracker can be rendered as a form
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for _, t := range c.Trackers {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("tracker with empty name")
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate tracker name: %s", t.Name)
		}
		seen[t.Name] = true
		if len(t.Fields) == 0 {
			return fmt.Errorf("tracker %s has no fields", t.Name)
		}
		if err := t.validateFields(); err != nil {
			return fmt.Errorf("tracker %s: %w", t.Name, err)
		}
	}
	return nil
}

func (t *Tracker) validateFields() error {
	earlier := make(map[string]bool)
	for _, f := range t.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("field with empty name")
		}
		if earlier[f.Name] {
			return fmt.Errorf("duplicate field name: %s", f.Name)
		}
		if !validKinds[f.Kind] {
			return fmt.Errorf("field %s: unknown kind %q", f.Name, f.Kind)
		}
		switch f.Kind {
		case KindSelect, KindMultiSelect:
			if len(f.Options) == 0 {
				return fmt.Errorf("field %s: %s needs options", f.Name, f.Kind)
			}
		case KindSlider:
			if f.Min >= f.Max {
				return fmt.Errorf("field %s: min %v must be below max %v", f.Name, f.Min, f.Max)
			}
			if f.Step <= 0 {
				return fmt.Errorf("field %s: step must be positive", f.Name)
			}
		}
		if f.When != nil && !earlier[f.When.Field] {
			return fmt.Errorf("field %s: condition refers to %q, which is not an earlier field", f.Name, f.When.Field)
		}
		earlier[f.Name] = true
	}
	return nil
}

// Tracker looks up a tracker by name
func (c *Config) Tracker(name string) (*Tracker, bool) {
	for i := range c.Trackers {
		if c.Trackers[i].Name == name {
			return &c.Trackers[i], true
		}
	}
	return nil, false
}

// TrackerNames returns the tracker names in configuration order
func (c *Config) TrackerNames() []string {
	names := make([]string, len(c.Trackers))
	for i, t := range c.Trackers {
		names[i] = t.Name
	}
	return names
}
