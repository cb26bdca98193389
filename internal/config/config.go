// Package config loads and validates scraper configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	Output   OutputConfig   `mapstructure:"output"`
	Session  SessionConfig  `mapstructure:"session"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Window   WindowConfig   `mapstructure:"window"`
	Media    MediaConfig    `mapstructure:"media"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Manifest ManifestConfig `mapstructure:"manifest"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SourceConfig describes the site being scraped.
type SourceConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// CompanyPath is a path template with one %s for the entity.
	CompanyPath string `mapstructure:"company_path"`
	LoginPath   string `mapstructure:"login_path"`
	// LoginMarker is case-insensitive text present only when signed in.
	LoginMarker  string   `mapstructure:"login_marker"`
	ExportLabels []string `mapstructure:"export_labels"`
	// ExportEndpoints are path or URL templates with one %s for the entity.
	ExportEndpoints []string `mapstructure:"export_endpoints"`
}

// OutputConfig controls where artifacts land.
type OutputConfig struct {
	Dir       string `mapstructure:"dir"`
	SavePages bool   `mapstructure:"save_pages"`
}

// SessionConfig locates the cookie file.
type SessionConfig struct {
	File string `mapstructure:"file"`
	// LoginTimeout bounds the wait for a manual login; zero waits forever.
	LoginTimeout time.Duration `mapstructure:"login_timeout"`
}

// BrowserConfig tunes the Chrome instance.
type BrowserConfig struct {
	Headless           bool          `mapstructure:"headless"`
	UserAgent          string        `mapstructure:"user_agent"`
	ExecPath           string        `mapstructure:"exec_path"`
	DownloadDir        string        `mapstructure:"download_dir"`
	NavigationTimeout  time.Duration `mapstructure:"navigation_timeout"`
	DownloadTimeout    time.Duration `mapstructure:"download_timeout"`
	LoginPollInterval  time.Duration `mapstructure:"login_poll_interval"`
	SettleDelay        time.Duration `mapstructure:"settle_delay"`
	ConcallSettleDelay time.Duration `mapstructure:"concall_settle_delay"`
}

// HTTPConfig configures the authenticated and direct fetchers.
type HTTPConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	DirectUserAgent string        `mapstructure:"direct_user_agent"`
	// RequestsPerSecond paces fetches; zero disables pacing.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	MinExportBytes    int     `mapstructure:"min_export_bytes"`
}

// WindowConfig holds the recency rules.
type WindowConfig struct {
	MonthsBack int `mapstructure:"months_back"`
}

// MediaConfig configures audio extraction.
type MediaConfig struct {
	Extractor        string `mapstructure:"extractor"`
	AutoInstall      bool   `mapstructure:"auto_install"`
	NodeInstallerURL string `mapstructure:"node_installer_url"`
}

// MetricsConfig enables the Prometheus textfile.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// ManifestConfig toggles per-entity manifests.
type ManifestConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPER")
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

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.base_url", "https://www.screener.in")
	v.SetDefault("source.company_path", "/company/%s/consolidated/")
	v.SetDefault("source.login_path", "/login/")
	v.SetDefault("source.login_marker", "logout")
	v.SetDefault("source.export_labels", []string{"EXPORT TO EXCEL", "Export to Excel"})
	v.SetDefault("source.export_endpoints", []string{"/api/company/%s/export/", "/company/%s/export/"})
	v.SetDefault("output.dir", "scraper_output")
	v.SetDefault("output.save_pages", true)
	v.SetDefault("session.file", "screener_session.json")
	v.SetDefault("session.login_timeout", "0s")
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.download_timeout", "60s")
	v.SetDefault("browser.login_poll_interval", "2s")
	v.SetDefault("browser.settle_delay", "2s")
	v.SetDefault("browser.concall_settle_delay", "1500ms")
	v.SetDefault("http.timeout", "60s")
	v.SetDefault("http.direct_user_agent", "Mozilla/5.0 Chrome/120.0.0.0")
	v.SetDefault("http.requests_per_second", 0)
	v.SetDefault("http.min_export_bytes", 5000)
	v.SetDefault("window.months_back", 18)
	v.SetDefault("media.extractor", "yt-dlp")
	v.SetDefault("media.auto_install", true)
	v.SetDefault("media.node_installer_url", "https://nodejs.org/dist/v20.11.0/node-v20.11.0-x64.msi")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("manifest.enabled", true)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	base, err := url.Parse(c.Source.BaseURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return fmt.Errorf("source.base_url must be an absolute http(s) URL")
	}
	if strings.Count(c.Source.CompanyPath, "%s") != 1 {
		return errors.New("source.company_path must contain exactly one %s")
	}
	for _, ep := range c.Source.ExportEndpoints {
		if strings.Count(ep, "%s") != 1 {
			return fmt.Errorf("source.export_endpoints entry %q must contain exactly one %%s", ep)
		}
	}
	if strings.TrimSpace(c.Source.LoginMarker) == "" {
		return errors.New("source.login_marker must be set")
	}
	if c.Output.Dir == "" {
		return errors.New("output.dir must be set")
	}
	if c.Session.File == "" {
		return errors.New("session.file must be set")
	}
	if c.Browser.NavigationTimeout <= 0 {
		return errors.New("browser.navigation_timeout must be > 0")
	}
	if c.Browser.LoginPollInterval <= 0 {
		return errors.New("browser.login_poll_interval must be > 0")
	}
	if c.Browser.SettleDelay < 0 || c.Browser.ConcallSettleDelay < 0 {
		return errors.New("browser settle delays must be >= 0")
	}
	if c.HTTP.Timeout <= 0 {
		return errors.New("http.timeout must be > 0")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return errors.New("http.requests_per_second must be >= 0")
	}
	if c.Window.MonthsBack <= 0 {
		return errors.New("window.months_back must be > 0")
	}
	if c.Media.Extractor == "" {
		return errors.New("media.extractor must be set")
	}
	return nil
}

// SiteURL is the site root opened to verify a session.
func (c Config) SiteURL() string {
	return c.resolve("/")
}

// LoginURL is the page shown for manual login.
func (c Config) LoginURL() string {
	return c.resolve(c.Source.LoginPath)
}

// CompanyURLTemplate is the absolute detail page template.
func (c Config) CompanyURLTemplate() string {
	return c.resolve(c.Source.CompanyPath)
}

// ExportEndpointTemplates returns absolute export URL templates.
func (c Config) ExportEndpointTemplates() []string {
	out := make([]string, 0, len(c.Source.ExportEndpoints))
	for _, ep := range c.Source.ExportEndpoints {
		out = append(out, c.resolve(ep))
	}
	return out
}

func (c Config) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	base := strings.TrimRight(c.Source.BaseURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
