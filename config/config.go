// Package config defines the declarative configuration of a vetflow
// deployment: workspace location, policy rules, watcher intervals and
// connector endpoints.
package config

import (
	"fmt"
	"os"
	"path"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/viant/vetflow/policy"
	"github.com/viant/vetflow/service/connector/erp"
	"github.com/viant/vetflow/service/connector/social"
	gmailsource "github.com/viant/vetflow/service/watcher/gmail"
)

// Watcher configures one polling source. Durations are expressed as Go
// duration strings ("45s", "5m").
type Watcher struct {
	// Name selects the source: dropfolder or gmail.
	Name     string `yaml:"name"`
	Interval string `yaml:"interval,omitempty"`

	// Gmail holds source options when Name is gmail.
	Gmail *gmailsource.Config `yaml:"gmail,omitempty"`
}

// Google locates the OAuth artifacts shared by the gmail source and the
// email connector.
type Google struct {
	CredentialsFile string `yaml:"credentialsFile,omitempty"`
	TokenFile       string `yaml:"tokenFile,omitempty"`
	From            string `yaml:"from,omitempty"`
}

// Connectors enables the concrete vendor bindings. A nil section leaves the
// kind without a connector.
type Connectors struct {
	Social *social.Config `yaml:"social,omitempty"`
	Email  *Google        `yaml:"email,omitempty"`
	ERP    *erp.Config    `yaml:"erp,omitempty"`
}

// Engine carries the execution engine knobs.
type Engine struct {
	ScanInterval  string `yaml:"scanInterval,omitempty"`
	SubmitTimeout string `yaml:"submitTimeout,omitempty"`
	CallDelay     string `yaml:"callDelay,omitempty"`
}

// Tracing toggles the OpenTelemetry stdout exporter.
type Tracing struct {
	Enabled    bool   `yaml:"enabled,omitempty"`
	OutputFile string `yaml:"outputFile,omitempty"`
}

// Config is the root configuration document.
type Config struct {
	// BaseURL is the workspace root; all stores live under it, on one
	// filesystem so transitions stay atomic.
	BaseURL string `yaml:"baseURL"`

	// Ledger overrides the audit ledger location (default
	// <BaseURL>/audit.log).
	Ledger string `yaml:"ledger,omitempty"`

	Policy     policy.Config `yaml:"policy,omitempty"`
	Engine     Engine        `yaml:"engine,omitempty"`
	Watchers   []Watcher     `yaml:"watchers,omitempty"`
	Connectors Connectors    `yaml:"connectors,omitempty"`
	Tracing    Tracing       `yaml:"tracing,omitempty"`
}

// Load reads and validates a YAML configuration file.
func Load(location string) (*Config, error) {
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", location, err)
	}
	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", location, err)
	}
	config.Init()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Init fills defaults.
func (c *Config) Init() {
	if c.BaseURL == "" {
		c.BaseURL = "workspace"
	}
	if c.Ledger == "" {
		c.Ledger = path.Join(c.BaseURL, "audit.log")
	}
	if len(c.Watchers) == 0 {
		c.Watchers = []Watcher{{Name: "dropfolder"}}
	}
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	for i, w := range c.Watchers {
		switch w.Name {
		case "dropfolder", "gmail":
		case "":
			return fmt.Errorf("watcher[%d] has no name", i)
		default:
			return fmt.Errorf("unknown watcher: %s", w.Name)
		}
		if _, err := ParseInterval(w.Interval, time.Minute); err != nil {
			return fmt.Errorf("watcher %s: %w", w.Name, err)
		}
	}
	for _, value := range []string{c.Engine.ScanInterval, c.Engine.SubmitTimeout, c.Engine.CallDelay} {
		if _, err := ParseInterval(value, time.Second); err != nil {
			return fmt.Errorf("engine: %w", err)
		}
	}
	return nil
}

// ParseInterval parses a duration string, returning fallback for empty
// input.
func ParseInterval(value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", value)
	}
	return d, nil
}
