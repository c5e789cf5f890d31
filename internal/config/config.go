package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Files   FilesConfig   `yaml:"files" mapstructure:"files"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Import  ImportConfig  `yaml:"import" mapstructure:"import"`
	Search  SearchConfig  `yaml:"search" mapstructure:"search"`
	Events  EventsConfig  `yaml:"events" mapstructure:"events"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// FilesConfig names the disks uploaded spreadsheets are read from.
type FilesConfig struct {
	DefaultDisk string                `yaml:"default_disk" mapstructure:"default_disk"`
	Disks       map[string]DiskConfig `yaml:"disks" mapstructure:"disks"`
}

// DiskConfig configures one named disk.
type DiskConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // local, ftp or http
	Root        string `yaml:"root" mapstructure:"root"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// GeocodeConfig selects and tunes the geocoding provider.
type GeocodeConfig struct {
	Provider         string  `yaml:"provider" mapstructure:"provider"` // nominatim, google or none
	GoogleKey        string  `yaml:"google_key" mapstructure:"google_key"`
	NominatimURL     string  `yaml:"nominatim_url" mapstructure:"nominatim_url"`
	UserAgent        string  `yaml:"user_agent" mapstructure:"user_agent"`
	RateLimit        float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxResults       int     `yaml:"max_results" mapstructure:"max_results"`
	Retries          int     `yaml:"retries" mapstructure:"retries"`
	BreakerThreshold int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// ImportConfig configures spreadsheet imports.
type ImportConfig struct {
	PersistPlaces      bool   `yaml:"persist_places" mapstructure:"persist_places"`
	DefaultCallingCode string `yaml:"default_calling_code" mapstructure:"default_calling_code"`
	Workers            int    `yaml:"workers" mapstructure:"workers"`
}

// SearchConfig configures place search.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit" mapstructure:"default_limit"`
}

// EventsConfig configures import notifications. An empty NATSURL disables them.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url" mapstructure:"nats_url"`
	Subject string `yaml:"subject" mapstructure:"subject"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FLEETOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("files.default_disk", "local")
	v.SetDefault("files.disks", map[string]any{
		"local": map[string]any{"driver": "local", "root": "storage/uploads"},
	})
	v.SetDefault("geocode.provider", "nominatim")
	v.SetDefault("geocode.google_key", "")
	v.SetDefault("geocode.nominatim_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "fleetops/1.0")
	v.SetDefault("geocode.rate_limit", 1)
	v.SetDefault("geocode.timeout_secs", 15)
	v.SetDefault("geocode.max_results", 5)
	v.SetDefault("geocode.retries", 2)
	v.SetDefault("geocode.breaker_threshold", 5)
	v.SetDefault("geocode.breaker_reset_secs", 30)
	v.SetDefault("import.persist_places", false)
	v.SetDefault("import.default_calling_code", "1")
	v.SetDefault("import.workers", 4)
	v.SetDefault("search.default_limit", 30)
	v.SetDefault("events.nats_url", "")
	v.SetDefault("events.subject", "fleetops.import.completed")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes: serve,
// import, search, geocode, export, delete, migrate, statuses.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve", "import", "search", "export", "delete", "migrate", "statuses":
		errs = append(errs, c.validateStore()...)
	case "geocode":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		errs = append(errs, c.validateFiles()...)
		errs = append(errs, c.validateGeocode()...)
		errs = append(errs, c.validateImport()...)
	case "import":
		errs = append(errs, c.validateFiles()...)
		errs = append(errs, c.validateImport()...)
	case "search", "geocode":
		errs = append(errs, c.validateGeocode()...)
	}

	if c.Search.DefaultLimit < 0 {
		errs = append(errs, "search.default_limit must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	case "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}
	return errs
}

func (c *Config) validateFiles() []string {
	var errs []string
	if _, ok := c.Files.Disks[c.Files.DefaultDisk]; !ok {
		errs = append(errs, fmt.Sprintf("files.default_disk %q is not configured", c.Files.DefaultDisk))
	}
	for name, d := range c.Files.Disks {
		switch d.Driver {
		case "local":
		case "ftp", "http":
			if d.BaseURL == "" {
				errs = append(errs, fmt.Sprintf("files.disks.%s.base_url is required", name))
			}
		default:
			errs = append(errs, fmt.Sprintf("files.disks.%s.driver %q is not supported", name, d.Driver))
		}
	}
	return errs
}

func (c *Config) validateGeocode() []string {
	var errs []string
	switch c.Geocode.Provider {
	case "google":
		if c.Geocode.GoogleKey == "" {
			errs = append(errs, "geocode.google_key is required")
		}
	case "nominatim":
		if c.Geocode.NominatimURL == "" {
			errs = append(errs, "geocode.nominatim_url is required")
		}
	case "none", "":
	default:
		errs = append(errs, fmt.Sprintf("geocode.provider %q is not supported", c.Geocode.Provider))
	}
	if c.Geocode.RateLimit < 0 {
		errs = append(errs, "geocode.rate_limit must be >= 0")
	}
	return errs
}

func (c *Config) validateImport() []string {
	if c.Import.Workers < 1 || c.Import.Workers > 64 {
		return []string{"import.workers must be between 1 and 64"}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
