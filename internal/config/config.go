// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Device  DeviceConfig  `mapstructure:"device" yaml:"device"`
	Scroll  ScrollConfig  `mapstructure:"scroll" yaml:"scroll"`
	Search  SearchConfig  `mapstructure:"search" yaml:"search"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig holds settings for the headless measurement browser.
// This browser never touches the device; it only measures page geometry
// on a viewport emulated to match the device screen.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	AcceptLanguage    string        `mapstructure:"accept_language" yaml:"accept_language"`
	Platform          string        `mapstructure:"platform" yaml:"platform"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PageLoadWait      time.Duration `mapstructure:"page_load_wait" yaml:"page_load_wait"`
	Debug             bool          `mapstructure:"debug" yaml:"debug"`
}

// DeviceConfig identifies the physical device and its screen.
type DeviceConfig struct {
	ADBPath        string        `mapstructure:"adb_path" yaml:"adb_path"`
	Serial         string        `mapstructure:"serial" yaml:"serial"`
	ScreenWidth    int           `mapstructure:"screen_width" yaml:"screen_width"`
	ScreenHeight   int           `mapstructure:"screen_height" yaml:"screen_height"`
	CommandTimeout time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"`

	// Browser chrome on the device eats into the usable viewport. The
	// measurement browser is sized to the remainder so document offsets line up.
	StatusBarHeight  int `mapstructure:"status_bar_height" yaml:"status_bar_height"`
	AddressBarHeight int `mapstructure:"address_bar_height" yaml:"address_bar_height"`
	NavBarHeight     int `mapstructure:"nav_bar_height" yaml:"nav_bar_height"`
}

// ScrollConfig tunes gesture synthesis and the prediction model.
type ScrollConfig struct {
	// Nominal per-gesture scroll distance in pixels. The calibration model and
	// the compensating actuator are both anchored to this value.
	Distance int `mapstructure:"distance" yaml:"distance"`
	// Full width of the per-gesture randomization window in pixels.
	RandomWindow int `mapstructure:"random_window" yaml:"random_window"`
	// Swipe-to-scroll loss factor for the search phase (< 1: a 400px swipe
	// moves the page less than 400px).
	Calibration float64 `mapstructure:"calibration" yaml:"calibration"`

	// Margin padding for the search-phase predictor.
	MarginRatio float64 `mapstructure:"margin_ratio" yaml:"margin_ratio"`
	MarginMin   int     `mapstructure:"margin_min" yaml:"margin_min"`
	MarginMax   int     `mapstructure:"margin_max" yaml:"margin_max"`

	// Where on the screen the target should land, as a fraction of the
	// effective viewport height (0 = top, 1 = bottom).
	ExpandTargetFraction float64 `mapstructure:"expand_target_fraction" yaml:"expand_target_fraction"`
	DomainTargetFraction float64 `mapstructure:"domain_target_fraction" yaml:"domain_target_fraction"`

	// Swipe geometry on the device screen. XJitter widens the swipe column by
	// +/- this many pixels per gesture.
	ScrollX      int `mapstructure:"scroll_x" yaml:"scroll_x"`
	ScrollStartY int `mapstructure:"scroll_start_y" yaml:"scroll_start_y"`
	ScrollEndY   int `mapstructure:"scroll_end_y" yaml:"scroll_end_y"`
	XJitter      int `mapstructure:"x_jitter" yaml:"x_jitter"`

	DurationMin time.Duration `mapstructure:"duration_min" yaml:"duration_min"`
	DurationMax time.Duration `mapstructure:"duration_max" yaml:"duration_max"`

	AfterScrollDelayMin time.Duration `mapstructure:"after_scroll_delay_min" yaml:"after_scroll_delay_min"`
	AfterScrollDelayMax time.Duration `mapstructure:"after_scroll_delay_max" yaml:"after_scroll_delay_max"`

	ReadingPause ReadingPauseConfig `mapstructure:"reading_pause" yaml:"reading_pause"`
}

// ReadingPauseConfig controls the probabilistic mid-scroll pauses that mimic a
// person stopping to read.
type ReadingPauseConfig struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
	Probability float64       `mapstructure:"probability" yaml:"probability"`
	MinTime     time.Duration `mapstructure:"min_time" yaml:"min_time"`
	MaxTime     time.Duration `mapstructure:"max_time" yaml:"max_time"`
}

// SearchConfig describes the result pages the planner measures against.
type SearchConfig struct {
	// AggregateURL is a printf template taking the escaped query.
	AggregateURL string `mapstructure:"aggregate_url" yaml:"aggregate_url"`
	// PagedURL is a printf template taking the escaped query and the 1-based
	// result offset of the page.
	PagedURL string `mapstructure:"paged_url" yaml:"paged_url"`
	// ExpandLabel is the rendered text of the "expand results" affordance on
	// the aggregate page.
	ExpandLabel string `mapstructure:"expand_label" yaml:"expand_label"`
	// ResultsPerPage converts a page number into the offset fed to PagedURL.
	ResultsPerPage int `mapstructure:"results_per_page" yaml:"results_per_page"`
	// MaxPages bounds the domain search across result pages.
	MaxPages int `mapstructure:"max_pages" yaml:"max_pages"`
	// DefaultExpandScrolls is the fallback gesture count when the expand
	// affordance cannot be measured.
	DefaultExpandScrolls int `mapstructure:"default_expand_scrolls" yaml:"default_expand_scrolls"`
}

// CacheConfig controls the persisted scroll-plan store.
type CacheConfig struct {
	// Path of the JSON store. Empty means a default under the user's home.
	Path string `mapstructure:"path" yaml:"path"`
	// RefreshInterval is the number of reuses before a plan is recomputed.
	RefreshInterval int `mapstructure:"refresh_interval" yaml:"refresh_interval"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "blindscroll")
	v.SetDefault("logger.log_file", "blindscroll.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Linux; Android 14; SM-S928N) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Mobile Safari/537.36")
	v.SetDefault("browser.accept_language", "ko-KR,ko;q=0.9")
	v.SetDefault("browser.platform", "Linux armv81")
	v.SetDefault("browser.navigation_timeout", "90s")
	v.SetDefault("browser.page_load_wait", "3s")
	v.SetDefault("browser.debug", false)

	// -- Device --
	v.SetDefault("device.adb_path", "adb")
	v.SetDefault("device.screen_width", 720)
	v.SetDefault("device.screen_height", 1440)
	v.SetDefault("device.command_timeout", "30s")
	v.SetDefault("device.status_bar_height", 50)
	v.SetDefault("device.address_bar_height", 56)
	v.SetDefault("device.nav_bar_height", 0)

	// -- Scroll --
	v.SetDefault("scroll.distance", 400)
	v.SetDefault("scroll.random_window", 200)
	v.SetDefault("scroll.calibration", 0.85)
	v.SetDefault("scroll.margin_ratio", 0.1)
	v.SetDefault("scroll.margin_min", 1)
	v.SetDefault("scroll.margin_max", 5)
	v.SetDefault("scroll.expand_target_fraction", 0.4)
	v.SetDefault("scroll.domain_target_fraction", 0.35)
	v.SetDefault("scroll.scroll_x", 360)
	v.SetDefault("scroll.scroll_start_y", 1100)
	v.SetDefault("scroll.scroll_end_y", 400)
	v.SetDefault("scroll.x_jitter", 30)
	v.SetDefault("scroll.duration_min", "300ms")
	v.SetDefault("scroll.duration_max", "600ms")
	v.SetDefault("scroll.after_scroll_delay_min", "500ms")
	v.SetDefault("scroll.after_scroll_delay_max", "1500ms")
	v.SetDefault("scroll.reading_pause.enabled", true)
	v.SetDefault("scroll.reading_pause.probability", 0.1)
	v.SetDefault("scroll.reading_pause.min_time", "2s")
	v.SetDefault("scroll.reading_pause.max_time", "4s")

	// -- Search --
	v.SetDefault("search.aggregate_url", "https://m.search.naver.com/search.naver?query=%s")
	v.SetDefault("search.paged_url", "https://m.search.naver.com/search.naver?where=m_web&query=%s&sm=mtb_pge&start=%d")
	v.SetDefault("search.expand_label", "검색결과 더보기")
	v.SetDefault("search.results_per_page", 10)
	v.SetDefault("search.max_pages", 5)
	v.SetDefault("search.default_expand_scrolls", 30)

	// -- Cache --
	v.SetDefault("cache.path", "")
	v.SetDefault("cache.refresh_interval", 10)
}

// NewDefaultConfig creates a configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Scroll.Distance <= 0 {
		return fmt.Errorf("scroll.distance must be a positive pixel count")
	}
	if c.Scroll.RandomWindow < 0 {
		return fmt.Errorf("scroll.random_window must not be negative")
	}
	if c.Scroll.Calibration <= 0 || c.Scroll.Calibration > 1.0 {
		return fmt.Errorf("scroll.calibration must be in (0.0, 1.0]")
	}
	if c.Scroll.ExpandTargetFraction < 0 || c.Scroll.ExpandTargetFraction > 1 {
		return fmt.Errorf("scroll.expand_target_fraction must be between 0.0 and 1.0")
	}
	if c.Scroll.DomainTargetFraction < 0 || c.Scroll.DomainTargetFraction > 1 {
		return fmt.Errorf("scroll.domain_target_fraction must be between 0.0 and 1.0")
	}
	if c.Scroll.MarginMin > c.Scroll.MarginMax {
		return fmt.Errorf("scroll.margin_min must not exceed scroll.margin_max")
	}
	if c.Search.MaxPages <= 0 {
		return fmt.Errorf("search.max_pages must be a positive integer")
	}
	if c.Search.ResultsPerPage <= 0 {
		return fmt.Errorf("search.results_per_page must be a positive integer")
	}
	if c.Cache.RefreshInterval <= 0 {
		return fmt.Errorf("cache.refresh_interval must be a positive integer")
	}
	if c.Device.ScreenWidth <= 0 || c.Device.ScreenHeight <= 0 {
		return fmt.Errorf("device.screen_width and device.screen_height must be positive")
	}
	return nil
}
