package config

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata" // zone names must resolve on hosts without zoneinfo

	"gopkg.in/yaml.v3"

	"github.com/obsidianstack/seedmonitor/pkg/types"
)

// Default values for the configuration.
const (
	DefaultHTTPPort       = 8080
	DefaultReportInterval = time.Minute
	DefaultTimezone       = "CET"
	DefaultRowRule        = "legacy"
	DefaultStatusPageURL  = "http://localhost:8080/api/v1/report.html"
	DefaultElevatedPct    = 5.0
	DefaultCriticalPct    = 10.0
	DefaultDispatchPct    = 20.0
	DefaultSlowRTT        = 30 * time.Second
	DefaultAlertTimeout   = 10 * time.Second
	DefaultAlertHistory   = 200
)

// Config is the parsed contents of config.yaml.
type Config struct {
	Server ServerConfig `yaml:"server"`

	// SeedNodes is the operator directory.
	SeedNodes []SeedNodeConfig `yaml:"seed_nodes"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort is the port the ingestion endpoints, REST API and WebSocket
	// feed listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// Auth configures how ingestion clients authenticate.
	Auth AuthConfig `yaml:"auth"`

	Report ReportConfig `yaml:"report"`

	// Alerts holds the alert recipient fallback and webhook targets.
	Alerts AlertsConfig `yaml:"alerts"`
}

// AuthConfig controls client authentication on the ingestion endpoints.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	// Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header to read the key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// ReportConfig controls report generation.
type ReportConfig struct {
	Interval time.Duration `yaml:"interval"`

	// Timezone is an IANA zone name used for the check timestamp.
	Timezone string `yaml:"timezone"`

	// RowRule selects how a node row is flagged: legacy | trailing.
	RowRule string `yaml:"row_rule"`

	// StatusPageURL is linked from alert messages.
	StatusPageURL string `yaml:"status_page_url"`

	Thresholds ThresholdsConfig `yaml:"thresholds"`
}

// Location resolves Timezone. Validate guarantees it succeeds after Load.
func (r ReportConfig) Location() (*time.Location, error) {
	return time.LoadLocation(r.Timezone)
}

// ThresholdsConfig holds deviation thresholds in percentage points away from
// the fleet baseline, plus the slow round trip threshold.
type ThresholdsConfig struct {
	ElevatedPct float64       `yaml:"elevated_pct"`
	CriticalPct float64       `yaml:"critical_pct"`
	DispatchPct float64       `yaml:"dispatch_pct"`
	SlowRTT     time.Duration `yaml:"slow_rtt"`
}

// AlertsConfig holds alert delivery settings.
type AlertsConfig struct {
	// DefaultRecipient is used for nodes without a recipient of their own.
	DefaultRecipient string `yaml:"default_recipient"`

	// Timeout bounds a single notification attempt.
	Timeout time.Duration `yaml:"timeout"`

	// History is how many sent or failed alerts are kept for the API.
	History int `yaml:"history"`

	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | teams | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`

	// Channel overrides the Slack channel of the incoming webhook.
	Channel string `yaml:"channel"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// SeedNodeConfig is one entry of the operator directory.
type SeedNodeConfig struct {
	// Address is host:port.
	Address string `yaml:"address"`

	// Operator is the display name used to order the report.
	Operator string `yaml:"operator"`

	// Recipient is the chat handle alerts for this node mention.
	Recipient string `yaml:"recipient"`
}

// NodeAddress parses Address.
func (s SeedNodeConfig) NodeAddress() (types.NodeAddress, error) {
	return types.ParseNodeAddress(s.Address)
}

// Load reads and parses the config file at path.
// Missing fields are filled with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a Config pre-populated with default values. It is also the
// configuration used when no file is given.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			Report: ReportConfig{
				Interval:      DefaultReportInterval,
				Timezone:      DefaultTimezone,
				RowRule:       DefaultRowRule,
				StatusPageURL: DefaultStatusPageURL,
				Thresholds: ThresholdsConfig{
					ElevatedPct: DefaultElevatedPct,
					CriticalPct: DefaultCriticalPct,
					DispatchPct: DefaultDispatchPct,
					SlowRTT:     DefaultSlowRTT,
				},
			},
			Alerts: AlertsConfig{
				Timeout: DefaultAlertTimeout,
				History: DefaultAlertHistory,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	switch s.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", s.Auth.Mode)
	}
	if s.Report.Interval <= 0 {
		return fmt.Errorf("server.report.interval must be positive")
	}
	if _, err := s.Report.Location(); err != nil {
		return fmt.Errorf("server.report.timezone %q: %w", s.Report.Timezone, err)
	}
	switch s.Report.RowRule {
	case "legacy", "trailing", "":
	default:
		return fmt.Errorf("server.report.row_rule %q unknown: want legacy|trailing", s.Report.RowRule)
	}

	t := s.Report.Thresholds
	if t.ElevatedPct <= 0 || t.CriticalPct <= 0 || t.DispatchPct <= 0 {
		return fmt.Errorf("server.report.thresholds must be positive")
	}
	if t.ElevatedPct > t.CriticalPct {
		return fmt.Errorf("server.report.thresholds.elevated_pct %.2f exceeds critical_pct %.2f", t.ElevatedPct, t.CriticalPct)
	}
	if t.SlowRTT <= 0 {
		return fmt.Errorf("server.report.thresholds.slow_rtt must be positive")
	}

	if s.Alerts.Timeout <= 0 {
		return fmt.Errorf("server.alerts.timeout must be positive")
	}
	if s.Alerts.History < 0 {
		return fmt.Errorf("server.alerts.history must not be negative")
	}
	for i, wh := range s.Alerts.Webhooks {
		switch wh.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("server.alerts.webhooks[%d].type %q unknown: want slack|teams|http", i, wh.Type)
		}
	}

	seen := make(map[types.NodeAddress]bool, len(cfg.SeedNodes))
	for i, n := range cfg.SeedNodes {
		addr, err := n.NodeAddress()
		if err != nil {
			return fmt.Errorf("seed_nodes[%d]: %w", i, err)
		}
		if seen[addr] {
			return fmt.Errorf("seed_nodes[%d]: duplicate address %s", i, addr)
		}
		seen[addr] = true
	}
	return nil
}
