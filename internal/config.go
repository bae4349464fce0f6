package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gobwas/glob"

	"github.com/lzhbhlrPython/Markdown-Note-System/internal/archive"
	"github.com/lzhbhlrPython/Markdown-Note-System/internal/blob"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Data    DataConfig        `yaml:"data"`
	Images  ImagesConfig      `yaml:"images"`
	Archive ArchiveConfig     `yaml:"archive"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	Metrics MetricsConfig     `yaml:"metrics"`
	Watcher WatcherConfig     `yaml:"watcher"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Data, &c.Images, &c.Archive, &c.SQLite, &c.Auth, &c.Metrics,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
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

// DataConfig points at the directory holding projects and the image registry.
type DataConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the data configuration.
func (c *DataConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ImagesConfig selects where uploaded image bytes live and how they are addressed.
type ImagesConfig struct {
	Driver            string        `yaml:"driver"`
	BaseURL           string        `yaml:"base_url"`
	AllowedExtensions []string      `yaml:"allowed_extensions"`
	FS                ImagesFSConfig `yaml:"fs"`
	S3                ImagesS3Config `yaml:"s3"`
}

// ImagesFSConfig configures the filesystem blob driver.
type ImagesFSConfig struct {
	Root string `yaml:"root"`
}

// ImagesS3Config configures the S3/MinIO blob driver.
type ImagesS3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyle       bool   `yaml:"path_style"`
}

// Validate validates the images configuration.
func (c *ImagesConfig) Validate() error {
	if c.Driver == "" {
		c.Driver = string(blob.DriverFilesystem)
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(
			string(blob.DriverFilesystem), string(blob.DriverS3), string(blob.DriverMemory))),
		validation.Field(&c.BaseURL, validation.Required),
		validation.Field(&c.FS, validation.By(func(any) error {
			if c.Driver == string(blob.DriverFilesystem) && c.FS.Root == "" {
				return fmt.Errorf("root is required for the %s driver", blob.DriverFilesystem)
			}
			return nil
		})),
		validation.Field(&c.S3, validation.By(func(any) error {
			if c.Driver == string(blob.DriverS3) && c.S3.Bucket == "" {
				return fmt.Errorf("bucket is required for the %s driver", blob.DriverS3)
			}
			return nil
		})),
	)
}

// Blob converts the section into a blob driver configuration.
func (c *ImagesConfig) Blob() blob.Config {
	return blob.Config{
		Driver: blob.Driver(c.Driver),
		Root:   c.FS.Root,
		S3: blob.S3Config{
			Bucket:          c.S3.Bucket,
			Region:          c.S3.Region,
			Endpoint:        c.S3.Endpoint,
			AccessKeyID:     c.S3.AccessKeyID,
			SecretAccessKey: c.S3.SecretAccessKey,
			PathStyle:       c.S3.PathStyle,
		},
	}
}

// ArchiveConfig bounds and filters project archive imports.
type ArchiveConfig struct {
	MaxBytes int64    `yaml:"max_bytes"`
	Allow    []string `yaml:"allow"`
	Deny     []string `yaml:"deny"`
}

// Validate validates the archive configuration.
func (c *ArchiveConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxBytes, validation.Required, validation.Min(int64(1<<10))),
		validation.Field(&c.Allow, validation.Each(validation.By(compilesAsGlob))),
		validation.Field(&c.Deny, validation.Each(validation.By(compilesAsGlob))),
	)
}

func compilesAsGlob(v any) error {
	p, _ := v.(string)
	if _, err := glob.Compile(p, '/'); err != nil {
		return fmt.Errorf("invalid pattern %q: %w", p, err)
	}
	return nil
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
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

// MetricsConfig controls the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Validate validates the metrics configuration.
func (c *MetricsConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// WatcherConfig toggles detection of edits made outside the notebook.
type WatcherConfig struct {
	Enabled bool `yaml:"enabled"`
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
		Data: DataConfig{
			Path: "./data",
		},
		Images: ImagesConfig{
			Driver:  string(blob.DriverFilesystem),
			BaseURL: "/uploads",
			FS:      ImagesFSConfig{Root: "./uploads"},
		},
		Archive: ArchiveConfig{
			MaxBytes: archive.DefaultMaxBytes,
			Allow:    append([]string(nil), archive.DefaultAllow...),
		},
		SQLite: SQLiteConfig{
			Path: "./mdnotes.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Watcher: WatcherConfig{
			Enabled: true,
		},
	}
}
