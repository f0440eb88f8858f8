package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	location := filepath.Join(t.TempDir(), "vetflow.yaml")
	document := `
baseURL: /var/lib/vetflow
policy:
  maxLength: 280
  overflow: truncate
  forbidden: [password]
engine:
  scanInterval: 10s
  callDelay: 500ms
watchers:
  - name: dropfolder
    interval: 30s
  - name: gmail
    interval: 2m
    gmail:
      maxResults: 5
      markRead: true
connectors:
  social:
    visibility: CONNECTIONS
  erp:
    url: https://erp.example.com
    database: acme
    username: bot
`
	require.NoError(t, os.WriteFile(location, []byte(document), 0o644))

	cfg, err := Load(location)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/vetflow", cfg.BaseURL)
	assert.Equal(t, "/var/lib/vetflow/audit.log", cfg.Ledger)
	assert.Equal(t, 280, cfg.Policy.MaxLength)
	assert.Equal(t, "truncate", cfg.Policy.Overflow)
	require.Len(t, cfg.Watchers, 2)
	assert.Equal(t, "gmail", cfg.Watchers[1].Name)
	require.NotNil(t, cfg.Watchers[1].Gmail)
	assert.True(t, cfg.Watchers[1].Gmail.MarkRead)
	assert.Equal(t, int64(5), cfg.Watchers[1].Gmail.MaxResults)
	require.NotNil(t, cfg.Connectors.Social)
	assert.Equal(t, "CONNECTIONS", cfg.Connectors.Social.Visibility)
	require.NotNil(t, cfg.Connectors.ERP)
	assert.Equal(t, "acme", cfg.Connectors.ERP.Database)
	assert.Nil(t, cfg.Connectors.Email)
}

func TestConfig_Init(t *testing.T) {
	cfg := &Config{}
	cfg.Init()
	assert.Equal(t, "workspace", cfg.BaseURL)
	assert.Equal(t, "workspace/audit.log", cfg.Ledger)
	require.Len(t, cfg.Watchers, 1)
	assert.Equal(t, "dropfolder", cfg.Watchers[0].Name)
}

func TestConfig_Validate(t *testing.T) {
	var testCases = []struct {
		description string
		config      Config
		valid       bool
	}{
		{
			description: "known watchers pass",
			config:      Config{Watchers: []Watcher{{Name: "dropfolder"}, {Name: "gmail", Interval: "45s"}}},
			valid:       true,
		},
		{
			description: "unknown watcher fails",
			config:      Config{Watchers: []Watcher{{Name: "carrier-pigeon"}}},
		},
		{
			description: "unnamed watcher fails",
			config:      Config{Watchers: []Watcher{{Interval: "1m"}}},
		},
		{
			description: "bad interval fails",
			config:      Config{Watchers: []Watcher{{Name: "dropfolder", Interval: "soon"}}},
		},
		{
			description: "negative engine interval fails",
			config:      Config{Engine: Engine{ScanInterval: "-5s"}},
		},
	}
	for _, testCase := range testCases {
		err := testCase.config.Validate()
		if testCase.valid {
			assert.NoError(t, err, testCase.description)
		} else {
			assert.Error(t, err, testCase.description)
		}
	}
}

func TestParseInterval(t *testing.T) {
	d, err := ParseInterval("", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)

	d, err = ParseInterval("2m", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, d)

	_, err = ParseInterval("whenever", time.Second)
	assert.Error(t, err)
	_, err = ParseInterval("0s", time.Second)
	assert.Error(t, err)
}
