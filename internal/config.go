package internal

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/jstcode/internal/importer"
	"github.com/starford/jstcode/internal/kvstore"
	"github.com/starford/jstcode/internal/persist"
	"github.com/starford/jstcode/internal/preview"
)

var httpURL = regexp.MustCompile(`^https?://[^\s/]+`)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	Preview     PreviewConfig     `yaml:"preview"`
	Bundler     BundlerConfig     `yaml:"bundler"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Import      ImportConfig      `yaml:"import"`
	MCP         MCPConfig         `yaml:"mcp"`
	Auth        AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{&c.App, &c.Preview, &c.Bundler, &c.Persistence, &c.Import, &c.MCP} {
		if err := v.Validate(); err != nil {
			return err
		}
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

// PreviewConfig holds rebuild debounce and preview document settings.
type PreviewConfig struct {
	DebounceFile    time.Duration `yaml:"debounce_file"`
	DebounceProject time.Duration `yaml:"debounce_project"`
	CDNBase         string        `yaml:"cdn_base"`
	LogCapacity     int           `yaml:"log_capacity"`
	Title           string        `yaml:"title"`
	BoundaryRetries int           `yaml:"boundary_retries"`
	BoundaryDelay   time.Duration `yaml:"boundary_delay"`
}

// Validate validates the preview configuration.
func (c *PreviewConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DebounceFile, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.DebounceProject, validation.Required, validation.Min(c.DebounceFile)),
		validation.Field(&c.CDNBase, validation.Required, validation.Match(httpURL)),
		validation.Field(&c.LogCapacity, validation.Min(0)),
		validation.Field(&c.BoundaryRetries, validation.Min(0)),
	)
}

// Bridge converts the section into preview bridge settings.
func (c *PreviewConfig) Bridge() preview.Config {
	return preview.Config{
		Title:       c.Title,
		CDN:         c.CDNBase,
		LogCapacity: c.LogCapacity,
		MaxRetries:  c.BoundaryRetries,
		RetryDelay:  c.BoundaryDelay,
	}
}

// BundlerConfig holds toolchain settings.
type BundlerConfig struct {
	InitTimeout time.Duration `yaml:"init_timeout"`
}

// Validate validates the bundler configuration.
func (c *BundlerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.InitTimeout, validation.Required, validation.Min(time.Second)),
	)
}

// PersistenceConfig selects where the project snapshot is saved.
type PersistenceConfig struct {
	Driver           string `yaml:"driver"`
	Path             string `yaml:"path"`
	Key              string `yaml:"key"`
	MaxSnapshotBytes int64  `yaml:"max_snapshot_bytes"`
	QuotaBytes       int64  `yaml:"quota_bytes"`
}

// Validate validates the persistence configuration.
func (c *PersistenceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required,
			validation.In(kvstore.DriverSQLite, kvstore.DriverFS, kvstore.DriverMemory)),
		validation.Field(&c.Path, validation.When(c.Driver != kvstore.DriverMemory, validation.Required)),
		validation.Field(&c.Key, validation.Required),
		validation.Field(&c.MaxSnapshotBytes, validation.Required, validation.Min(int64(1024))),
		validation.Field(&c.QuotaBytes, validation.Min(int64(0))),
	)
}

// Store converts the section into key-value store settings.
func (c *PersistenceConfig) Store() kvstore.Config {
	return kvstore.Config{Driver: c.Driver, Path: c.Path, QuotaBytes: c.QuotaBytes}
}

// Persister converts the section into persister settings.
func (c *PersistenceConfig) Persister() persist.Config {
	return persist.Config{Key: c.Key, MaxBytes: c.MaxSnapshotBytes}
}

// ImportConfig holds bulk import limits and the optional watched folder.
type ImportConfig struct {
	WatchDir      string `yaml:"watch_dir"`
	MaxFileBytes  int64  `yaml:"max_file_bytes"`
	MaxTotalBytes int64  `yaml:"max_total_bytes"`
	MaxFiles      int    `yaml:"max_files"`
}

// Validate validates the import configuration.
func (c *ImportConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxFileBytes, validation.Min(int64(0))),
		validation.Field(&c.MaxTotalBytes, validation.Min(c.MaxFileBytes)),
		validation.Field(&c.MaxFiles, validation.Min(0)),
	)
}

// Limits converts the section into importer limits.
func (c *ImportConfig) Limits() importer.Limits {
	return importer.Limits{
		MaxFileBytes:  c.MaxFileBytes,
		MaxTotalBytes: c.MaxTotalBytes,
		MaxFiles:      c.MaxFiles,
	}
}

// MCPConfig controls the MCP endpoint mounted next to the API.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Validate validates the MCP configuration.
func (c *MCPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled".
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

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Preview: PreviewConfig{
			DebounceFile:    300 * time.Millisecond,
			DebounceProject: time.Second,
			CDNBase:         "https://esm.sh",
			LogCapacity:     1000,
			Title:           "Preview",
			BoundaryRetries: preview.DefaultBoundaryRetries,
			BoundaryDelay:   preview.DefaultBoundaryDelay,
		},
		Bundler: BundlerConfig{
			InitTimeout: 30 * time.Second,
		},
		Persistence: PersistenceConfig{
			Driver:           kvstore.DriverSQLite,
			Path:             "./jstcode.db",
			Key:              persist.DefaultKey,
			MaxSnapshotBytes: persist.DefaultMaxBytes,
		},
		Import: ImportConfig{
			MaxFileBytes:  importer.DefaultLimits.MaxFileBytes,
			MaxTotalBytes: importer.DefaultLimits.MaxTotalBytes,
			MaxFiles:      importer.DefaultLimits.MaxFiles,
		},
		MCP: MCPConfig{
			Enabled: true,
			Path:    "/mcp",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
