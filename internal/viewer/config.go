package viewer

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"threadview/media"
)

// FetchMode selects how thread pages are retrieved.
type FetchMode string

const (
	FetchHTTP    FetchMode = "http"
	FetchBrowser FetchMode = "browser"
)

// Config describes the page wiring and runtime behaviour.
type Config struct {
	// URL is the thread page being viewed.
	URL string `yaml:"url"`
	// Updates enables the refresh trigger on the page.
	Updates  bool      `yaml:"updates"`
	Fetch    FetchMode `yaml:"fetch"`
	Sanitize bool      `yaml:"sanitize"`
	// SitesDir holds per-host overrides, see siteConfigStore.
	SitesDir string `yaml:"sites_dir"`

	PollInterval    time.Duration `yaml:"poll_interval"`
	MaxPollInterval time.Duration `yaml:"max_poll_interval"`
	LoadTimeout     time.Duration `yaml:"load_timeout"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
	ScrollMargin    int           `yaml:"scroll_margin"`
	// MutationLog is how many recent mutations /mutations keeps.
	MutationLog int  `yaml:"mutation_log"`
	LogMutation bool `yaml:"log_mutations"`

	Logger *log.Logger `yaml:"-"`
}

// DefaultConfig populates configuration from THREADVIEW_* environment
// variables.
func DefaultConfig() Config {
	def := media.DefaultConfig()
	cfg := Config{
		URL:             strings.TrimSpace(os.Getenv("THREADVIEW_URL")),
		Updates:         true,
		Fetch:           FetchHTTP,
		Sanitize:        true,
		SitesDir:        strings.TrimSpace(os.Getenv("THREADVIEW_SITES_DIR")),
		PollInterval:    def.PollInterval,
		MaxPollInterval: def.MaxPollInterval,
		LoadTimeout:     def.LoadTimeout,
		FetchTimeout:    15 * time.Second,
		ScrollMargin:    def.ScrollMargin,
		MutationLog:     256,
		Logger:          log.Default(),
	}
	if v, ok := envBool("THREADVIEW_UPDATES"); ok {
		cfg.Updates = v
	}
	if v, ok := envBool("THREADVIEW_SANITIZE"); ok {
		cfg.Sanitize = v
	}
	if v, ok := envBool("THREADVIEW_LOG_MUTATIONS"); ok {
		cfg.LogMutation = v
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("THREADVIEW_FETCH"))) {
	case "browser", "chrome", "js":
		cfg.Fetch = FetchBrowser
	case "http", "":
	}
	if d, ok := envDuration("THREADVIEW_POLL_INTERVAL"); ok {
		cfg.PollInterval = d
	}
	if d, ok := envDuration("THREADVIEW_MAX_POLL_INTERVAL"); ok {
		cfg.MaxPollInterval = d
	}
	if d, ok := envDuration("THREADVIEW_LOAD_TIMEOUT"); ok {
		cfg.LoadTimeout = d
	}
	if d, ok := envDuration("THREADVIEW_FETCH_TIMEOUT"); ok {
		cfg.FetchTimeout = d
	}
	if raw := strings.TrimSpace(os.Getenv("THREADVIEW_SCROLL_MARGIN")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			cfg.ScrollMargin = n
		}
	}
	return cfg
}

// LoadFile overlays the YAML file at path onto base. Keys missing from the
// file keep their base value.
func LoadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Logger = base.Logger
	switch cfg.Fetch {
	case FetchHTTP, FetchBrowser:
	case "":
		cfg.Fetch = FetchHTTP
	default:
		return base, fmt.Errorf("config %s: unknown fetch mode %q", path, cfg.Fetch)
	}
	return cfg, nil
}

// Media returns the media controller tuning.
func (c Config) Media() media.Config {
	m := media.DefaultConfig()
	m.PollInterval = c.PollInterval
	m.MaxPollInterval = c.MaxPollInterval
	m.LoadTimeout = c.LoadTimeout
	m.ScrollMargin = c.ScrollMargin
	m.Logger = c.Logger
	return m
}

func envBool(name string) (bool, bool) {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	switch raw {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

func envDuration(name string) (time.Duration, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, false
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, false
	}
	return d, true
}
