// Package config loads social-sync settings from a YAML file, the
// environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when --config is not given. It may be absent.
const DefaultFile = "social-sync.yaml"

// EnvPrefix namespaces environment overrides, e.g. SOCIAL_SYNC_SYNC_MAX_POSTS.
const EnvPrefix = "SOCIAL_SYNC"

// DefaultLookback applies when no start date is configured.
const DefaultLookback = 7 * 24 * time.Hour

const redacted = "********"

// Config is the effective configuration.
type Config struct {
	Bluesky     Bluesky  `mapstructure:"bluesky" yaml:"bluesky" json:"bluesky"`
	Mastodon    Mastodon `mapstructure:"mastodon" yaml:"mastodon" json:"mastodon"`
	Sync        Sync     `mapstructure:"sync" yaml:"sync" json:"sync"`
	Log         Log      `mapstructure:"log" yaml:"log" json:"log"`
	StateFile   string   `mapstructure:"state_file" yaml:"state_file" json:"state_file"`
	JournalFile string   `mapstructure:"journal_file" yaml:"journal_file" json:"journal_file"`
}

// Bluesky holds source account settings.
type Bluesky struct {
	Service  string `mapstructure:"service" yaml:"service" json:"service"`
	Handle   string `mapstructure:"handle" yaml:"handle" json:"handle"`
	Password string `mapstructure:"password" yaml:"password" json:"password"`
}

// Mastodon holds destination account settings.
type Mastodon struct {
	BaseURL     string `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	AccessToken string `mapstructure:"access_token" yaml:"access_token" json:"access_token"`
}

// Sync tunes a run.
type Sync struct {
	StartDate             string        `mapstructure:"start_date" yaml:"start_date" json:"start_date"`
	MaxPosts              int           `mapstructure:"max_posts" yaml:"max_posts" json:"max_posts"`
	DryRun                bool          `mapstructure:"dry_run" yaml:"dry_run" json:"dry_run"`
	DisableSourcePlatform bool          `mapstructure:"disable_source_platform" yaml:"disable_source_platform" json:"disable_source_platform"`
	SkipQuotesOfOthers    bool          `mapstructure:"skip_quotes_of_others" yaml:"skip_quotes_of_others" json:"skip_quotes_of_others"`
	MediaStrategy         string        `mapstructure:"media_strategy" yaml:"media_strategy" json:"media_strategy"`
	ItemDelay             time.Duration `mapstructure:"item_delay" yaml:"item_delay" json:"item_delay"`
	OptOutTag             string        `mapstructure:"opt_out_tag" yaml:"opt_out_tag" json:"opt_out_tag"`
}

// Log configures the logger.
type Log struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	File   string `mapstructure:"file" yaml:"file" json:"file"`
}

var defaults = map[string]any{
	"bluesky.service":              "https://bsky.social",
	"bluesky.handle":               "",
	"bluesky.password":             "",
	"mastodon.base_url":            "",
	"mastodon.access_token":        "",
	"sync.start_date":              "",
	"sync.max_posts":               10,
	"sync.dry_run":                 false,
	"sync.disable_source_platform": false,
	"sync.skip_quotes_of_others":   false,
	"sync.media_strategy":          "text-placeholder",
	"sync.item_delay":              time.Second,
	"sync.opt_out_tag":             "#no-sync",
	"log.level":                    "info",
	"log.format":                   "text",
	"log.file":                     "social_sync.log",
	"state_file":                   "sync_state.json",
	"journal_file":                 "social_sync_runs.db",
}

// legacyEnv lists the unprefixed variable names accepted for
// compatibility with existing deployments.
var legacyEnv = map[string]string{
	"bluesky.handle":               "BLUESKY_HANDLE",
	"bluesky.password":             "BLUESKY_PASSWORD",
	"mastodon.base_url":            "MASTODON_API_BASE_URL",
	"mastodon.access_token":        "MASTODON_ACCESS_TOKEN",
	"sync.start_date":              "SYNC_START_DATE",
	"sync.max_posts":               "MAX_POSTS_PER_SYNC",
	"sync.dry_run":                 "DRY_RUN",
	"sync.disable_source_platform": "DISABLE_SOURCE_PLATFORM",
	"log.level":                    "LOG_LEVEL",
	"state_file":                   "STATE_FILE",
}

// FlagKeys maps command-line flag names to configuration keys. Only flags
// present in the flag set passed to Load are bound.
var FlagKeys = map[string]string{
	"dry-run":                 "sync.dry_run",
	"since-date":              "sync.start_date",
	"disable-source-platform": "sync.disable_source_platform",
	"max-posts":               "sync.max_posts",
	"media-strategy":          "sync.media_strategy",
	"log-file":                "log.file",
	"log-level":               "log.level",
	"state-file":              "state_file",
}

// Load resolves the configuration. Precedence, highest first: changed
// flags, environment, config file, defaults.
//
// An empty path reads DefaultFile if it exists. A non-empty path must exist.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("binding env %s: %w", legacy, err)
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("binding flag --%s: %w", name, err)
			}
		}
	}

	if err := readFile(v, path); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Sync.OptOutTag = strings.TrimSpace(cfg.Sync.OptOutTag)
	cfg.Mastodon.BaseURL = strings.TrimRight(cfg.Mastodon.BaseURL, "/")

	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readFile(v *viper.Viper, path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("config file %s: %w", path, err)
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	return nil
}

// Check validates value ranges and formats. Credentials are checked
// separately by RequireCredentials because read-only commands do not need
// them.
func (c *Config) Check() error {
	if err := validateSchema(c); err != nil {
		return err
	}
	if c.Sync.StartDate != "" {
		if _, err := ParseStartDate(c.Sync.StartDate); err != nil {
			return &ValidationError{Problems: []string{err.Error()}}
		}
	}
	return nil
}

// RequireCredentials reports every missing credential at once.
func (c *Config) RequireCredentials() error {
	var problems []string
	if c.Bluesky.Handle == "" {
		problems = append(problems, "bluesky.handle is required (BLUESKY_HANDLE)")
	}
	if c.Bluesky.Password == "" {
		problems = append(problems, "bluesky.password is required (BLUESKY_PASSWORD)")
	}
	if c.Mastodon.BaseURL == "" {
		problems = append(problems, "mastodon.base_url is required (MASTODON_API_BASE_URL)")
	}
	if c.Mastodon.AccessToken == "" {
		problems = append(problems, "mastodon.access_token is required (MASTODON_ACCESS_TOKEN)")
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Since returns the earliest creation time a run considers.
func (c *Config) Since(now time.Time) time.Time {
	if c.Sync.StartDate == "" {
		return now.Add(-DefaultLookback)
	}
	t, err := ParseStartDate(c.Sync.StartDate)
	if err != nil {
		return now.Add(-DefaultLookback)
	}
	return t
}

// ParseStartDate accepts YYYY-MM-DD (midnight UTC) or RFC3339.
func ParseStartDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid start date %q: want YYYY-MM-DD or RFC3339", s)
}

// Redacted returns a copy with secrets masked.
func (c Config) Redacted() Config {
	if c.Bluesky.Password != "" {
		c.Bluesky.Password = redacted
	}
	if c.Mastodon.AccessToken != "" {
		c.Mastodon.AccessToken = redacted
	}
	return c
}

// YAML renders the redacted configuration. Durations are written in
// time.Duration string form.
func (c Config) YAML() ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(c.Redacted()); err != nil {
		return nil, err
	}
	if n := lookupNode(lookupNode(&doc, "sync"), "item_delay"); n != nil {
		n.Tag = "!!str"
		n.Value = c.Sync.ItemDelay.String()
	}
	return yaml.Marshal(&doc)
}

func lookupNode(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

// ValidationError lists every problem found in a configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// IsValidationError reports whether err is a configuration problem.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
