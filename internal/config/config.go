package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// maxPolicyPrefixLen leaves room in IAM's 128 character policy name for the
// resource part and the hash suffix.
const maxPolicyPrefixLen = 64

var policyPrefixPattern = regexp.MustCompile(`^[\w+=,.@-]+$`)

// Config holds settings loaded from ~/.config/cloud-gatekeeper/config.yaml.
type Config struct {
	DefaultProfile string `yaml:"default_profile"`
	DefaultRegion  string `yaml:"default_region"`

	DBPath     string `yaml:"db_path"`
	ListenAddr string `yaml:"listen_addr"`
	APIToken   string `yaml:"api_token"`

	Log      LogConfig      `yaml:"log"`
	Slack    SlackConfig    `yaml:"slack"`
	Timeouts TimeoutsConfig `yaml:"timeouts"`

	// DefaultPermissions are granted per resource kind when a request names
	// no actions. Empty means the built-in defaults.
	DefaultPermissions map[string][]string `yaml:"default_permissions"`
	PolicyPrefix       string              `yaml:"policy_prefix"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SlackConfig struct {
	BotToken      string `yaml:"bot_token"`
	SigningSecret string `yaml:"signing_secret"`
	AdminChannel  string `yaml:"admin_channel"`
	APIURL        string `yaml:"api_url"`
}

// TimeoutsConfig holds per-collaborator timeouts in seconds.
type TimeoutsConfig struct {
	Discovery    int `yaml:"discovery"`
	Identity     int `yaml:"identity"`
	Notification int `yaml:"notification"`
}

const (
	defaultDiscoveryTimeout    = 5
	defaultIdentityTimeout     = 5
	defaultNotificationTimeout = 10
	defaultListenAddr          = ":8080"
)

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// DefaultPath returns the config file location under the user's home.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "cloud-gatekeeper", "config.yaml")
}

// Load reads the config file at path, or DefaultPath when path is empty.
// A missing file yields defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv(os.Getenv)
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.DBPath, "GATEKEEPER_DB_PATH")
	set(&c.ListenAddr, "GATEKEEPER_LISTEN_ADDR")
	set(&c.APIToken, "GATEKEEPER_API_TOKEN")
	set(&c.Log.Level, "GATEKEEPER_LOG_LEVEL")
	set(&c.Slack.BotToken, "SLACK_BOT_TOKEN")
	set(&c.Slack.SigningSecret, "SLACK_SIGNING_SECRET")
	set(&c.Slack.AdminChannel, "SLACK_ADMIN_CHANNEL")
	set(&c.DefaultProfile, "AWS_PROFILE")
	set(&c.DefaultRegion, "AWS_REGION")
}

func (c *Config) applyDefaults() {
	if c.DBPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.DBPath = filepath.Join(home, ".local", "share", "cloud-gatekeeper", "gatekeeper.db")
		} else {
			c.DBPath = "gatekeeper.db"
		}
	}
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Timeouts.Discovery == 0 {
		c.Timeouts.Discovery = defaultDiscoveryTimeout
	}
	if c.Timeouts.Identity == 0 {
		c.Timeouts.Identity = defaultIdentityTimeout
	}
	if c.Timeouts.Notification == 0 {
		c.Timeouts.Notification = defaultNotificationTimeout
	}
}

// Validate reports settings the gatekeeper cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Timeouts.Discovery <= 0 {
		errs = append(errs, fmt.Errorf("timeouts.discovery must be positive, got %d", c.Timeouts.Discovery))
	}
	if c.Timeouts.Identity <= 0 {
		errs = append(errs, fmt.Errorf("timeouts.identity must be positive, got %d", c.Timeouts.Identity))
	}
	if c.Timeouts.Notification <= 0 {
		errs = append(errs, fmt.Errorf("timeouts.notification must be positive, got %d", c.Timeouts.Notification))
	}
	if strings.TrimSpace(c.Slack.AdminChannel) == "" {
		errs = append(errs, errors.New("slack.admin_channel is required"))
	}
	for kind, actions := range c.DefaultPermissions {
		if len(actions) == 0 {
			errs = append(errs, fmt.Errorf("default_permissions.%s is empty", kind))
		}
	}
	if c.PolicyPrefix != "" {
		if !policyPrefixPattern.MatchString(c.PolicyPrefix) {
			errs = append(errs, fmt.Errorf("policy_prefix %q may only contain letters, digits and +=,.@_-", c.PolicyPrefix))
		} else if len(c.PolicyPrefix) > maxPolicyPrefixLen {
			errs = append(errs, fmt.Errorf("policy_prefix is longer than %d characters", maxPolicyPrefixLen))
		}
	}
	return errors.Join(errs...)
}

// Merge applies CLI flag overrides. Flags take precedence over config defaults.
func (c *Config) Merge(profile, region string) (string, string) {
	p := c.DefaultProfile
	if profile != "" {
		p = profile
	}
	r := c.DefaultRegion
	if region != "" {
		r = region
	}
	return p, r
}

func (c *Config) DiscoveryTimeout() time.Duration {
	return time.Duration(c.Timeouts.Discovery) * time.Second
}

func (c *Config) IdentityTimeout() time.Duration {
	return time.Duration(c.Timeouts.Identity) * time.Second
}

func (c *Config) NotificationTimeout() time.Duration {
	return time.Duration(c.Timeouts.Notification) * time.Second
}
