package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"daycal/internal/aggregate"
	"daycal/internal/model"
	"daycal/internal/solar"
	"daycal/internal/source"
	"daycal/internal/theme"
	"daycal/internal/window"
)

const (
	ProviderCalDAV = "caldav"
	ProviderICS    = "ics"
)

// FeedConfig describes a single ICS subscription.
type FeedConfig struct {
	// ID is an internal identifier used as calendar ID and for logging.
	ID string `koanf:"id" yaml:"id"`
	// Name is the label shown in the UI and matched by "calendars".
	Name  string `koanf:"name" yaml:"name"`
	URL   string `koanf:"url" yaml:"url"`
	Color string `koanf:"color" yaml:"color,omitempty"`
}

// SourceConfig selects and configures the calendar provider.
type SourceConfig struct {
	// Provider is "caldav" (default) or "ics".
	Provider string `koanf:"provider" yaml:"provider"`

	URL      string `koanf:"url" yaml:"url"`
	Username string `koanf:"username" yaml:"username"`
	Password string `koanf:"password" yaml:"password"`

	// Calendars is the "Name:#hex,Other" list, or "*" for all calendars.
	Calendars string `koanf:"calendars" yaml:"calendars"`
	// CalendarName is the single-calendar setting of older deployments.
	CalendarName string `koanf:"calendar_name" yaml:"calendar_name,omitempty"`

	TimeoutSeconds int  `koanf:"timeout_seconds" yaml:"timeout_seconds"`
	ClientExpand   bool `koanf:"client_expand" yaml:"client_expand"`

	// Feeds and CacheDir apply to the ics provider.
	Feeds    []FeedConfig `koanf:"feeds" yaml:"feeds"`
	CacheDir string       `koanf:"cache_dir" yaml:"cache_dir"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the board and API.
type BasicAuthConfig struct {
	Username string `koanf:"username" yaml:"username"`
	Password string `koanf:"password" yaml:"password"`
}

// CaptureConfig controls the headless browser snapshot.
type CaptureConfig struct {
	// Output is the PNG path served at /preview.png.
	Output string `koanf:"output" yaml:"output"`
	Width  int    `koanf:"width" yaml:"width"`
	Height int    `koanf:"height" yaml:"height"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the board and API.
	Listen string `koanf:"listen" yaml:"listen"`

	// Timezone is the IANA display zone (e.g. "Europe/Berlin").
	Timezone string `koanf:"timezone" yaml:"timezone"`

	// Days is the window size; TodayOffset is today's index in it.
	Days        int `koanf:"days" yaml:"days"`
	TodayOffset int `koanf:"today_offset" yaml:"today_offset"`

	// Language picks UI strings and day/month names ("en", "de", ...).
	Language string `koanf:"language" yaml:"language"`

	// Theme is "auto", "light" or "dark". ThemeFallback applies to "auto"
	// when no coordinates are set.
	Theme              string `koanf:"theme" yaml:"theme"`
	ThemeFallback      string `koanf:"theme_fallback" yaml:"theme_fallback"`
	LightMarginMinutes int    `koanf:"light_margin_minutes" yaml:"light_margin_minutes"`
	DarkMarginMinutes  int    `koanf:"dark_margin_minutes" yaml:"dark_margin_minutes"`

	Latitude  *float64 `koanf:"latitude" yaml:"latitude,omitempty"`
	Longitude *float64 `koanf:"longitude" yaml:"longitude,omitempty"`

	// Refresh is an optional cron expression ("*/15 * * * *", "@every 10m")
	// after whose next tick cached events expire. Empty uses TTLMinutes.
	Refresh    string `koanf:"refresh" yaml:"refresh"`
	TTLMinutes int    `koanf:"ttl_minutes" yaml:"ttl_minutes"`

	Source  SourceConfig  `koanf:"source" yaml:"source"`
	Capture CaptureConfig `koanf:"capture" yaml:"capture"`

	// BasicAuth, if set, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `koanf:"basic_auth" yaml:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:             "127.0.0.1:8080",
		Timezone:           "Europe/Berlin",
		Days:               5,
		TodayOffset:        1,
		Language:           "en",
		Theme:              string(theme.Auto),
		ThemeFallback:      string(theme.Dark),
		LightMarginMinutes: int(theme.DefaultLightMargin / time.Minute),
		DarkMarginMinutes:  int(theme.DefaultDarkMargin / time.Minute),
		TTLMinutes:         int(aggregate.DefaultTTL / time.Minute),
		Source: SourceConfig{
			Provider:       ProviderCalDAV,
			URL:            "https://caldav.icloud.com/",
			TimeoutSeconds: 20,
			Feeds:          []FeedConfig{},
			CacheDir:       "./var/ics-cache",
		},
		Capture: CaptureConfig{
			Output: "./var/preview.png",
			Width:  800,
			Height: 480,
		},
	}
}

// Normalize fills in missing/zero values so partially-filled configs
// still behave. Invalid values are left for Validate.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.Days == 0 {
		c.Days = d.Days
	}
	if c.Language == "" {
		c.Language = d.Language
	}
	c.Theme = strings.ToLower(strings.TrimSpace(c.Theme))
	if c.Theme == "" {
		c.Theme = d.Theme
	}
	c.ThemeFallback = strings.ToLower(strings.TrimSpace(c.ThemeFallback))
	if c.ThemeFallback == "" {
		c.ThemeFallback = d.ThemeFallback
	}
	if c.TTLMinutes <= 0 {
		c.TTLMinutes = d.TTLMinutes
	}
	c.Source.Provider = strings.ToLower(strings.TrimSpace(c.Source.Provider))
	if c.Source.Provider == "" {
		c.Source.Provider = d.Source.Provider
	}
	if c.Source.TimeoutSeconds <= 0 {
		c.Source.TimeoutSeconds = d.Source.TimeoutSeconds
	}
	if c.Source.Feeds == nil {
		c.Source.Feeds = []FeedConfig{}
	}
	for i := range c.Source.Feeds {
		if c.Source.Feeds[i].ID == "" {
			c.Source.Feeds[i].ID = fmt.Sprintf("feed-%d", i+1)
		}
		if c.Source.Feeds[i].Name == "" {
			c.Source.Feeds[i].Name = c.Source.Feeds[i].ID
		}
	}
	if c.Source.CacheDir == "" {
		c.Source.CacheDir = d.Source.CacheDir
	}
	if c.Capture.Output == "" {
		c.Capture.Output = d.Capture.Output
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = d.Capture.Width
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = d.Capture.Height
	}
}

// Validate reports every deployment mistake at once. All errors match
// model.ErrInvalidConfiguration.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{model.ErrInvalidConfiguration}, args...)...))
	}

	if err := window.Validate(c.Days, c.TodayOffset); err != nil {
		errs = append(errs, err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		invalid("timezone %q: %v", c.Timezone, err)
	}
	if _, err := theme.ParseMode(c.Theme); err != nil {
		errs = append(errs, err)
	}
	switch theme.Mode(c.ThemeFallback) {
	case theme.Light, theme.Dark:
	default:
		invalid("theme_fallback %q is not light or dark", c.ThemeFallback)
	}
	if c.LightMarginMinutes < 0 || c.DarkMarginMinutes < 0 {
		invalid("theme margins must not be negative")
	}

	switch {
	case (c.Latitude == nil) != (c.Longitude == nil):
		invalid("latitude and longitude must be set together")
	case c.Latitude != nil && (*c.Latitude < -90 || *c.Latitude > 90):
		invalid("latitude %v out of range", *c.Latitude)
	case c.Longitude != nil && (*c.Longitude < -180 || *c.Longitude > 180):
		invalid("longitude %v out of range", *c.Longitude)
	}

	if _, err := aggregate.ParseSchedule(c.Refresh, c.TTL()); err != nil {
		invalid("%v", err)
	}

	switch c.Source.Provider {
	case ProviderCalDAV:
		if c.Source.URL == "" {
			invalid("source.url is required for caldav")
		}
	case ProviderICS:
		if len(c.Source.Feeds) == 0 {
			invalid("source.feeds is empty")
		}
		seen := make(map[string]bool)
		for _, f := range c.Source.Feeds {
			if f.URL == "" {
				invalid("feed %q has no url", f.ID)
			}
			if seen[f.ID] {
				invalid("duplicate feed id %q", f.ID)
			}
			seen[f.ID] = true
		}
	default:
		invalid("unknown source.provider %q", c.Source.Provider)
	}

	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		invalid("basic_auth needs both username and password")
	}

	return errors.Join(errs...)
}

// Location loads the display zone. Call after Validate.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) Selector() source.Selector {
	return source.ParseSelector(c.Source.Calendars, c.Source.CalendarName)
}

// Coordinates is nil when no location is configured.
func (c *Config) Coordinates() *solar.Coordinates {
	if c.Latitude == nil || c.Longitude == nil {
		return nil
	}
	return &solar.Coordinates{Latitude: *c.Latitude, Longitude: *c.Longitude}
}

func (c *Config) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

func (c *Config) LightMargin() time.Duration {
	return time.Duration(c.LightMarginMinutes) * time.Minute
}

func (c *Config) DarkMargin() time.Duration {
	return time.Duration(c.DarkMarginMinutes) * time.Minute
}

func (c *Config) SourceTimeout() time.Duration {
	return time.Duration(c.Source.TimeoutSeconds) * time.Second
}

// Redacted returns a copy safe to log.
func (c *Config) Redacted() Config {
	out := *c
	if out.Source.Password != "" {
		out.Source.Password = "******"
	}
	if out.BasicAuth != nil {
		ba := *out.BasicAuth
		ba.Password = "******"
		out.BasicAuth = &ba
	}
	out.Source.Feeds = make([]FeedConfig, len(c.Source.Feeds))
	for i, f := range c.Source.Feeds {
		f.URL = source.RedactURL(f.URL)
		out.Source.Feeds[i] = f
	}
	return out
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Temp file in the same directory so the rename is atomic.
	tmp, err := os.CreateTemp(dir, ".daycal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}

// ensureFile writes the default config on first run. A missing file is not
// an error for Load; a failed first-run write is logged by the caller.
func ensureFile(path string) (created bool, err error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	return true, Save(path, DefaultConfig())
}
