package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/acled-ingest/internal/acled"
	"github.com/sells-group/acled-ingest/internal/db"
	"github.com/sells-group/acled-ingest/internal/fetcher"
)

// Config holds the full application configuration.
type Config struct {
	ACLED    ACLEDConfig         `yaml:"acled" mapstructure:"acled"`
	Fetch    FetchConfig         `yaml:"fetch" mapstructure:"fetch"`
	Database db.ConnectionParams `yaml:"database" mapstructure:"database"`
	Sink     SinkConfig          `yaml:"sink" mapstructure:"sink"`
	Log      LogConfig           `yaml:"log" mapstructure:"log"`
}

// ACLEDConfig configures the ACLED read API source.
type ACLEDConfig struct {
	URL        string             `yaml:"url" mapstructure:"url"`
	Email      string             `yaml:"email" mapstructure:"email"`
	Key        string             `yaml:"key" mapstructure:"key"`
	StartDate  string             `yaml:"start_date" mapstructure:"start_date"`
	EndDate    string             `yaml:"end_date" mapstructure:"end_date"`
	Codes      []acled.RegionCode `yaml:"codes" mapstructure:"codes"`
	SchemaFile string             `yaml:"schema_file" mapstructure:"schema_file"`
}

// DateRange parses the configured dates. A missing end date means today.
func (c ACLEDConfig) DateRange(now time.Time) (acled.DateRange, error) {
	return acled.ParseDateRange(c.StartDate, c.EndDate, now)
}

// FetchConfig configures the HTTP client.
type FetchConfig struct {
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// HTTPOptions converts the fetch settings for fetcher.NewHTTPFetcher.
func (c FetchConfig) HTTPOptions() fetcher.HTTPOptions {
	return fetcher.HTTPOptions{
		UserAgent:         c.UserAgent,
		Timeout:           time.Duration(c.TimeoutSecs) * time.Second,
		RequestsPerSecond: c.RequestsPerSecond,
	}
}

// SinkConfig names the destination table.
type SinkConfig struct {
	Schema string `yaml:"schema" mapstructure:"schema"`
	Table  string `yaml:"table" mapstructure:"table"`
	RunLog bool   `yaml:"run_log" mapstructure:"run_log"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. An empty path searches
// for config.yaml in . and ./configs; a missing file there is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}
	v.SetConfigType("yaml")

	// Environment
	v.SetEnvPrefix("ACLED_INGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Empty defaults register the key so env overrides reach Unmarshal.
	v.SetDefault("acled.url", "https://api.acleddata.com/acled/read")
	v.SetDefault("acled.email", "")
	v.SetDefault("acled.key", "")
	v.SetDefault("acled.start_date", "")
	v.SetDefault("acled.end_date", "")
	v.SetDefault("acled.schema_file", "")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.user_agent", "acled-ingest/1.0")
	v.SetDefault("fetch.requests_per_second", 0)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "")
	v.SetDefault("sink.schema", "acled")
	v.SetDefault("sink.table", "events")
	v.SetDefault("sink.run_log", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings needed to run an ingest.
func (c *Config) Validate() error {
	var missing []string
	if c.ACLED.URL == "" {
		missing = append(missing, "acled.url")
	}
	if c.ACLED.Email == "" {
		missing = append(missing, "acled.email")
	}
	if c.ACLED.Key == "" {
		missing = append(missing, "acled.key")
	}
	if c.ACLED.StartDate == "" {
		missing = append(missing, "acled.start_date")
	}
	if len(c.ACLED.Codes) == 0 {
		missing = append(missing, "acled.codes")
	}
	if c.Database.Database == "" {
		missing = append(missing, "database.name")
	}
	if c.Sink.Schema == "" {
		missing = append(missing, "sink.schema")
	}
	if c.Sink.Table == "" {
		missing = append(missing, "sink.table")
	}
	if len(missing) > 0 {
		return eris.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
	}

	seen := make(map[string]bool, len(c.ACLED.Codes))
	for _, rc := range c.ACLED.Codes {
		iso3 := strings.ToUpper(rc.ISO3)
		if iso3 == "" || rc.Code <= 0 {
			return eris.Errorf("config: invalid region code %q=%d", rc.ISO3, rc.Code)
		}
		if seen[iso3] {
			return eris.Errorf("config: duplicate region code %q", rc.ISO3)
		}
		seen[iso3] = true
	}

	if _, err := c.ACLED.DateRange(time.Now()); err != nil {
		return eris.Wrap(err, "config: dates")
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
