package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Site    SiteConfig        `yaml:"site"`
	Paths   PathsConfig       `yaml:"paths"`
	Build   BuildConfig       `yaml:"build"`
	Render  RenderConfig      `yaml:"render"`
	Preview PreviewConfig     `yaml:"preview"`
	Index   IndexConfig       `yaml:"index"`
	Auth    AuthConfig        `yaml:"auth"`
	Watch   WatchConfig       `yaml:"watch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Site.Validate(); err != nil {
		return err
	}
	if err := c.Paths.Validate(); err != nil {
		return err
	}
	if err := c.Build.Validate(); err != nil {
		return err
	}
	if err := c.Preview.Validate(); err != nil {
		return err
	}
	if err := c.Index.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SiteConfig holds values substituted into page templates.
//
// BaseURL replaces &baseurl&. When empty it is derived from the output
// directory, see ResolveBaseURL.
type SiteConfig struct {
	BaseURL        string `yaml:"base_url"`
	HistoryBaseURL string `yaml:"history_base_url"`
	ImgRoot        string `yaml:"img_root"`
}

// Validate validates the site configuration.
func (c *SiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.HistoryBaseURL, validation.By(absoluteURL)),
	)
}

// PathsConfig holds the directories a build reads from and writes to.
type PathsConfig struct {
	Input     string `yaml:"input"`
	Output    string `yaml:"output"`
	Templates string `yaml:"templates"`
	// Static is optional; its files are copied over the output after a build.
	Static string `yaml:"static"`
}

// Validate validates the paths configuration.
func (c *PathsConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Input, validation.Required),
		validation.Field(&c.Output, validation.Required),
		validation.Field(&c.Templates, validation.Required),
	); err != nil {
		return err
	}
	if filepath.Clean(c.Input) == filepath.Clean(c.Output) {
		return errors.New("paths: input and output must differ")
	}
	return nil
}

// BuildConfig controls batch builds.
type BuildConfig struct {
	Workers      int  `yaml:"workers"`
	Force        bool `yaml:"force"`
	ShowProgress bool `yaml:"show_progress"`
}

// Validate validates the build configuration.
func (c *BuildConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Required, validation.Min(1)),
	)
}

// RenderConfig holds renderer options.
type RenderConfig struct {
	Highlight      bool   `yaml:"highlight"`
	HighlightStyle string `yaml:"highlight_style"`
}

// PreviewConfig holds settings for the /api/convert preview endpoint.
type PreviewConfig struct {
	BaseURL  string `yaml:"base_url"`
	Sanitize bool   `yaml:"sanitize"`
}

// Validate validates the preview configuration.
func (c *PreviewConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.By(absoluteURL)),
	)
}

// IndexConfig holds SQLite build index configuration.
type IndexConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
//
// The preview endpoint is public in both modes.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// WatchConfig controls source watching in serve mode.
type WatchConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ResolveBaseURL returns the configured base URL, or the absolute output
// directory with a trailing slash when none is set.
func (c *Config) ResolveBaseURL() string {
	if c.Site.BaseURL != "" {
		return c.Site.BaseURL
	}
	out, err := filepath.Abs(c.Paths.Output)
	if err != nil {
		out = c.Paths.Output
	}
	return strings.TrimSuffix(filepath.ToSlash(out), "/") + "/"
}

func absoluteURL(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return errors.New("must be an absolute URL")
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Paths: PathsConfig{
			Input:     "./src",
			Output:    "./public",
			Templates: "./templates",
		},
		Build: BuildConfig{
			Workers: runtime.GOMAXPROCS(0),
		},
		Render: RenderConfig{
			HighlightStyle: "github",
		},
		Index: IndexConfig{
			Path: "./cpbuild.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Watch: WatchConfig{
			Enabled: true,
		},
	}
}
