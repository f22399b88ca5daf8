// Package config loads and validates exporter configuration via Viper.
package config

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/logbook-exporter/internal/collector"
	"github.com/JakeFAU/logbook-exporter/internal/extract"
	"github.com/JakeFAU/logbook-exporter/internal/fetch"
	"github.com/JakeFAU/logbook-exporter/internal/logging"
)

// EnvPrefix prefixes every environment override, e.g. LOGBOOK_FETCH_MODE.
const EnvPrefix = "LOGBOOK"

// Config captures all exporter configuration knobs loaded via Viper.
type Config struct {
	SourceURL string            `mapstructure:"source_url"`
	OutputDir string            `mapstructure:"output_dir"`
	Fetch     FetchConfig       `mapstructure:"fetch"`
	Pacing    PacingConfig      `mapstructure:"pacing"`
	Listing   ListingConfig     `mapstructure:"listing"`
	Selectors extract.Selectors `mapstructure:"selectors"`
	Logging   logging.Config    `mapstructure:"logging"`
	Metrics   MetricsConfig     `mapstructure:"metrics"`
}

// FetchConfig controls page rendering and retry behavior.
type FetchConfig struct {
	Mode              fetch.Mode        `mapstructure:"mode"`
	MaxRetries        int               `mapstructure:"max_retries"`
	RetryDelay        time.Duration     `mapstructure:"retry_delay"`
	NavigationTimeout time.Duration     `mapstructure:"navigation_timeout"`
	PageTimeout       time.Duration     `mapstructure:"page_timeout"`
	WaitSelector      string            `mapstructure:"wait_selector"`
	Settle            time.Duration     `mapstructure:"settle"`
	UserAgent         string            `mapstructure:"user_agent"`
	Headers           map[string]string `mapstructure:"headers"`
	Headless          bool              `mapstructure:"headless"`
	NoSandbox         bool              `mapstructure:"no_sandbox"`
	WindowWidth       int               `mapstructure:"window_width"`
	WindowHeight      int               `mapstructure:"window_height"`
	ExecPath          string            `mapstructure:"exec_path"`
}

// PacingConfig sets the waits between requests.
type PacingConfig struct {
	PageDelay time.Duration `mapstructure:"page_delay"`
	PostDelay time.Duration `mapstructure:"post_delay"`
}

// ListingConfig controls pagination.
type ListingConfig struct {
	PageParam string `mapstructure:"page_param"`
	MaxPages  int    `mapstructure:"max_pages"`
}

// MetricsConfig controls the end-of-run metrics dump.
type MetricsConfig struct {
	// Textfile is the path the run metrics are written to. Empty disables it.
	Textfile string `mapstructure:"textfile"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Selectors = cfg.Selectors.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source_url", "")
	v.SetDefault("output_dir", "")
	v.SetDefault("fetch.mode", fetch.ModeHeadless)
	v.SetDefault("fetch.max_retries", fetch.DefaultMaxRetries)
	v.SetDefault("fetch.retry_delay", fetch.DefaultRetryDelay)
	v.SetDefault("fetch.navigation_timeout", fetch.DefaultNavigationTimeout)
	v.SetDefault("fetch.page_timeout", fetch.DefaultPageTimeout)
	v.SetDefault("fetch.wait_selector", fetch.DefaultWaitSelector)
	v.SetDefault("fetch.settle", 0)
	v.SetDefault("fetch.user_agent", "")
	v.SetDefault("fetch.headless", true)
	v.SetDefault("fetch.no_sandbox", false)
	v.SetDefault("fetch.window_width", 1366)
	v.SetDefault("fetch.window_height", 768)
	v.SetDefault("fetch.exec_path", "")
	v.SetDefault("pacing.page_delay", collector.DefaultPageDelay)
	v.SetDefault("pacing.post_delay", 2*time.Second)
	v.SetDefault("listing.page_param", collector.DefaultPageParameter)
	v.SetDefault("listing.max_pages", 0)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("metrics.textfile", "")
}

// Validate enforces reasonable limits on everything except the run target.
func (c Config) Validate() error {
	switch c.Fetch.Mode {
	case fetch.ModeHeadless, fetch.ModeStatic:
	default:
		return fmt.Errorf("fetch.mode must be %q or %q, got %q", fetch.ModeHeadless, fetch.ModeStatic, c.Fetch.Mode)
	}
	if c.Fetch.MaxRetries <= 0 {
		return fmt.Errorf("fetch.max_retries must be > 0")
	}
	if c.Fetch.RetryDelay < 0 {
		return fmt.Errorf("fetch.retry_delay must be >= 0")
	}
	if c.Fetch.NavigationTimeout <= 0 {
		return fmt.Errorf("fetch.navigation_timeout must be > 0")
	}
	if c.Fetch.PageTimeout <= 0 {
		return fmt.Errorf("fetch.page_timeout must be > 0")
	}
	if c.Pacing.PageDelay < 0 || c.Pacing.PostDelay < 0 {
		return fmt.Errorf("pacing delays must be >= 0")
	}
	if c.Listing.MaxPages < 0 {
		return fmt.Errorf("listing.max_pages must be >= 0")
	}
	return nil
}

// ValidateRun additionally requires an absolute http(s) source URL and an
// output directory.
func (c Config) ValidateRun() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.SourceURL) == "" {
		return fmt.Errorf("source_url is required")
	}
	u, err := url.Parse(c.SourceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("source_url must be an absolute http(s) URL, got %q", c.SourceURL)
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("output_dir is required")
	}
	return nil
}

// FetchClientConfig converts the fetch section for fetch.NewClient.
func (c Config) FetchClientConfig() fetch.Config {
	return fetch.Config{
		MaxRetries:        c.Fetch.MaxRetries,
		RetryDelay:        c.Fetch.RetryDelay,
		NavigationTimeout: c.Fetch.NavigationTimeout,
		PageTimeout:       c.Fetch.PageTimeout,
		WaitSelector:      c.Fetch.WaitSelector,
		Settle:            c.Fetch.Settle,
	}
}

// BrowserConfig converts the fetch section for fetch.NewBrowser.
func (c Config) BrowserConfig() fetch.BrowserConfig {
	var headers http.Header
	if len(c.Fetch.Headers) > 0 {
		headers = make(http.Header, len(c.Fetch.Headers))
		for k, v := range c.Fetch.Headers {
			headers.Set(k, v)
		}
	}
	return fetch.BrowserConfig{
		UserAgent:    c.Fetch.UserAgent,
		Headers:      headers,
		Headless:     c.Fetch.Headless,
		NoSandbox:    c.Fetch.NoSandbox,
		WindowWidth:  c.Fetch.WindowWidth,
		WindowHeight: c.Fetch.WindowHeight,
		ExecPath:     c.Fetch.ExecPath,
	}
}

// CollectorConfig converts the pacing and listing sections for collector.New.
func (c Config) CollectorConfig() collector.Config {
	return collector.Config{
		PageDelay:     c.Pacing.PageDelay,
		PageParameter: c.Listing.PageParam,
		MaxPages:      c.Listing.MaxPages,
	}
}
