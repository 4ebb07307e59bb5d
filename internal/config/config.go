package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models hireline.yml.
type Config struct {
	Pipeline struct {
		InterviewStages int `yaml:"interview_stages"`
		DefaultDueDays  int `yaml:"default_due_days"`
	} `yaml:"pipeline"`
	Platforms []Platform      `yaml:"platforms"`
	Webhooks  []WebhookConfig `yaml:"webhooks"`
}

// Platform is one job board a campaign can be allocated to.
type Platform struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Default bool   `yaml:"default"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty"`
	Actions        []string `yaml:"actions,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run hl init or create it from the default template", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Pipeline.InterviewStages < 0 {
		return fmt.Errorf("config.pipeline.interview_stages must be >= 0")
	}
	if c.Pipeline.DefaultDueDays < 0 {
		return fmt.Errorf("config.pipeline.default_due_days must be >= 0")
	}
	seen := map[string]bool{}
	for _, p := range c.Platforms {
		if p.ID == "" {
			return fmt.Errorf("config.platforms contains entry without id")
		}
		if seen[p.ID] {
			return fmt.Errorf("config.platforms has duplicate id %s", p.ID)
		}
		seen[p.ID] = true
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
	}
	return nil
}

// DefaultPlatforms returns the platform ids flagged default.
func (c *Config) DefaultPlatforms() []string {
	var ids []string
	for _, p := range c.Platforms {
		if p.Default {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// HasPlatform reports whether the catalog contains the id.
func (c *Config) HasPlatform(id string) bool {
	for _, p := range c.Platforms {
		if p.ID == id {
			return true
		}
	}
	return false
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "hireline.yml")
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `pipeline:
  interview_stages: 3
  default_due_days: 14

platforms:
  - id: linkedin
    name: "LinkedIn"
    default: true
  - id: indeed
    name: "Indeed"
    default: true
  - id: glassdoor
    name: "Glassdoor"
  - id: company-site
    name: "Company careers page"
    default: true

webhooks: []
`
