// Package config loads and validates the typed pipeline configuration.
//
// Configuration is a single YAML document with explicit, known fields.
// Unknown keys and missing required fields are rejected at load time so
// a bad config never makes it into a run.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// ErrConfig marks a fatal configuration problem: no run can be created.
var ErrConfig = errors.New("invalid configuration")

// Duration is a time.Duration that unmarshals from YAML strings like "60s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler. Accepts duration strings
// ("90s", "2m") and bare numbers (seconds).
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if parsed, err := time.ParseDuration(value.Value); err == nil {
		*d = Duration(parsed)
		return nil
	}
	var secs float64
	if err := value.Decode(&secs); err != nil {
		return fmt.Errorf("bad duration value %q", value.Value)
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

// MarshalYAML renders the duration in time.Duration string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Endpoint describes one LLM chat-completions endpoint.
type Endpoint struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// Config is the immutable startup configuration for a pipeline run.
type Config struct {
	Event string `yaml:"event"` // event/conference name, required

	// Input sources.
	RosterPath    string `yaml:"roster_path"`    // sessions JSON, required
	TalksPath     string `yaml:"talks_path"`     // lightning talks CSV, optional
	AttendeesPath string `yaml:"attendees_path"` // attendees CSV, optional
	InputsDir     string `yaml:"inputs_dir"`     // artifact files, required
	Track         string `yaml:"track"`          // restrict a run to one track, optional

	// Output locations.
	DataDir   string `yaml:"data_dir"`   // run state root, default ".symposium"
	ReportDir string `yaml:"report_dir"` // rendered reports, default "<data_dir>/reports"

	// Tuning.
	MatchThreshold float64  `yaml:"match_threshold"` // default 0.70
	ScoreFloor     int      `yaml:"score_floor"`     // QA floor of 5, default 3
	Workers        int      `yaml:"workers"`         // default 4
	CallTimeout    Duration `yaml:"call_timeout"`    // per LLM call, default 60s
	Retries        int      `yaml:"retries"`         // per LLM call, default 2

	// Summarization backend: "outline" (offline, deterministic) or "llm".
	Summarizer     string              `yaml:"summarizer"`
	ActiveEndpoint string              `yaml:"active_endpoint"`
	Endpoints      map[string]Endpoint `yaml:"endpoints"`
}

// Default returns a Config with all tuning knobs at their defaults.
func Default() *Config {
	return &Config{
		DataDir:        ".symposium",
		MatchThreshold: 0.70,
		ScoreFloor:     3,
		Workers:        4,
		CallTimeout:    Duration(60 * time.Second),
		Retries:        2,
		Summarizer:     "outline",
	}
}

// Load reads, parses, and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrConfig, path, err)
	}
	return Parse(data)
}

// Parse parses config YAML bytes, applies defaults, and validates.
// Unknown fields are an error.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: parse yaml: %v", ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	var problems []string
	if c.Event == "" {
		problems = append(problems, "event is required")
	}
	if c.RosterPath == "" {
		problems = append(problems, "roster_path is required")
	}
	if c.InputsDir == "" {
		problems = append(problems, "inputs_dir is required")
	}
	if c.MatchThreshold < 0 || c.MatchThreshold > 1 {
		problems = append(problems, "match_threshold must be in [0,1]")
	}
	if c.ScoreFloor < 0 || c.ScoreFloor > 5 {
		problems = append(problems, "score_floor must be in [0,5]")
	}
	if c.Workers < 1 {
		problems = append(problems, "workers must be >= 1")
	}
	if c.Retries < 0 {
		problems = append(problems, "retries must be >= 0")
	}
	switch c.Summarizer {
	case "outline", "llm":
	default:
		problems = append(problems, fmt.Sprintf("summarizer must be outline or llm, got %q", c.Summarizer))
	}
	if c.Summarizer == "llm" {
		if c.ActiveEndpoint == "" {
			problems = append(problems, "active_endpoint is required when summarizer is llm")
		} else if _, ok := c.Endpoints[c.ActiveEndpoint]; !ok {
			problems = append(problems, fmt.Sprintf("active_endpoint %q not found in endpoints", c.ActiveEndpoint))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %v", ErrConfig, problems)
	}
	if c.ReportDir == "" {
		c.ReportDir = c.DataDir + "/reports"
	}
	return nil
}

// Active resolves the active endpoint, loading the API key from the
// environment variable named by api_key_env.
func (c *Config) Active() (Endpoint, string, error) {
	ep, ok := c.Endpoints[c.ActiveEndpoint]
	if !ok {
		return Endpoint{}, "", fmt.Errorf("%w: endpoint %q not configured", ErrConfig, c.ActiveEndpoint)
	}
	key := ""
	if ep.APIKeyEnv != "" {
		key = os.Getenv(ep.APIKeyEnv)
		if key == "" {
			return Endpoint{}, "", fmt.Errorf("%w: API key env %s is not set", ErrConfig, ep.APIKeyEnv)
		}
	}
	return ep, key, nil
}
