package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/newthinker/chartgen/internal/alert"
	"github.com/newthinker/chartgen/internal/core"
	"github.com/newthinker/chartgen/internal/render"
	"github.com/newthinker/chartgen/internal/symbol"
)

// EnvPrefix prefixes environment overrides, e.g. CHARTGEN_CHART_PERIOD.
const EnvPrefix = "CHARTGEN"

type Config struct {
	Symbols   []any                     `mapstructure:"symbols"`
	Chart     ChartConfig               `mapstructure:"chart"`
	Provider  ProviderConfig            `mapstructure:"provider"`
	Storage   StorageConfig             `mapstructure:"storage"`
	Ledger    LedgerConfig              `mapstructure:"ledger"`
	Metrics   MetricsConfig             `mapstructure:"metrics"`
	Server    ServerConfig              `mapstructure:"server"`
	Alerts    AlertsConfig              `mapstructure:"alerts"`
	Notifiers map[string]NotifierConfig `mapstructure:"notifiers"`
}

type ChartConfig struct {
	Period        string        `mapstructure:"period"`
	OutputDir     string        `mapstructure:"output_dir"`
	Style         string        `mapstructure:"style"`
	Width         int           `mapstructure:"width"`
	Height        int           `mapstructure:"height"`
	AssetsHost    string        `mapstructure:"assets_host"`
	ChromePath    string        `mapstructure:"chrome_path"`
	RenderTimeout time.Duration `mapstructure:"render_timeout"`
}

type ProviderConfig struct {
	Name              string        `mapstructure:"name"` // "yahoo", "eastmoney" or "alpaca"
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Timeout           time.Duration `mapstructure:"timeout"`
	Alpaca            AlpacaConfig  `mapstructure:"alpaca"`
}

type AlpacaConfig struct {
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	BaseURL   string `mapstructure:"base_url"`
	Feed      string `mapstructure:"feed"`
}

type StorageConfig struct {
	Type string   `mapstructure:"type"` // "localfs" or "s3"
	S3   S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// LedgerConfig enables the SQLite run ledger when Path is set.
type LedgerConfig struct {
	Path string `mapstructure:"path"`
}

// MetricsConfig holds metrics export settings. Both targets are optional.
type MetricsConfig struct {
	Textfile    string `mapstructure:"textfile"`
	Pushgateway string `mapstructure:"pushgateway"`
	Job         string `mapstructure:"job"`
}

// ServerConfig is used by the serve command only.
type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	APIKey      string `mapstructure:"api_key"`
	JobTTLHours int    `mapstructure:"job_ttl_hours"`
	MaxJobs     int    `mapstructure:"max_jobs"`
}

// AlertsConfig holds rules checked after every run.
type AlertsConfig struct {
	Cooldown time.Duration `mapstructure:"cooldown"`
	Rules    []alert.Rule  `mapstructure:"rules"`
}

type NotifierConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	BotToken string            `mapstructure:"bot_token"`
	ChatID   string            `mapstructure:"chat_id"`
	URL      string            `mapstructure:"url"`
	Headers  map[string]string `mapstructure:"headers"`
}

// DefaultSymbols is the HK watchlist charted when no symbols are configured.
var DefaultSymbols = []any{
	1310, 2573, 3626, 8007, 1693, 2312, 2350, 8401, 1715, 7841,
	94, 1664, 2440, 8137, 1529, 1726, 205, 6877, 1948, 1920,
	1728, 1788, 8087, 8500, 6128, 204, 2699, 2974, 2550, 1143,
	620, 243, 381, 720, 476, 1159, 2159, 2503, 1991, 1025,
	8050, 2569, 2566, 2610, 2629, 2597, 613, 770, 2340,
}

// LoadEnvFile loads KEY=VALUE pairs from a .env file into the process
// environment. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from file on top of Defaults. An empty path
// uses defaults and environment overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Defaults())

	// Support environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val, ok := v.Get(key).(string)
		if ok && strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("symbols", d.Symbols)
	v.SetDefault("chart.period", d.Chart.Period)
	v.SetDefault("chart.output_dir", d.Chart.OutputDir)
	v.SetDefault("chart.style", d.Chart.Style)
	v.SetDefault("chart.width", d.Chart.Width)
	v.SetDefault("chart.height", d.Chart.Height)
	v.SetDefault("chart.assets_host", d.Chart.AssetsHost)
	v.SetDefault("chart.chrome_path", d.Chart.ChromePath)
	v.SetDefault("chart.render_timeout", d.Chart.RenderTimeout)
	v.SetDefault("provider.name", d.Provider.Name)
	v.SetDefault("provider.requests_per_second", d.Provider.RequestsPerSecond)
	v.SetDefault("provider.timeout", d.Provider.Timeout)
	v.SetDefault("provider.alpaca.api_key", "")
	v.SetDefault("provider.alpaca.api_secret", "")
	v.SetDefault("provider.alpaca.base_url", "")
	v.SetDefault("provider.alpaca.feed", d.Provider.Alpaca.Feed)
	v.SetDefault("storage.type", d.Storage.Type)
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.region", d.Storage.S3.Region)
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("storage.s3.prefix", "")
	v.SetDefault("ledger.path", d.Ledger.Path)
	v.SetDefault("metrics.textfile", d.Metrics.Textfile)
	v.SetDefault("metrics.pushgateway", d.Metrics.Pushgateway)
	v.SetDefault("metrics.job", d.Metrics.Job)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.job_ttl_hours", d.Server.JobTTLHours)
	v.SetDefault("server.max_jobs", d.Server.MaxJobs)
	v.SetDefault("alerts.cooldown", d.Alerts.Cooldown)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Symbols: append([]any(nil), DefaultSymbols...),
		Chart: ChartConfig{
			Period:        "1y",
			OutputDir:     "stock_charts",
			Style:         "dark",
			Width:         1200,
			Height:        800,
			RenderTimeout: 30 * time.Second,
		},
		Provider: ProviderConfig{
			Name:              "yahoo",
			RequestsPerSecond: 0.5,
			Timeout:           10 * time.Second,
			Alpaca: AlpacaConfig{
				Feed: "iex",
			},
		},
		Storage: StorageConfig{
			Type: "localfs",
			S3: S3Config{
				Region: "us-east-1",
			},
		},
		Metrics: MetricsConfig{
			Job: "chartgen",
		},
		Server: ServerConfig{
			Host:        "127.0.0.1",
			Port:        8080,
			JobTTLHours: 24,
			MaxJobs:     100,
		},
		Alerts: AlertsConfig{
			Cooldown: time.Hour,
		},
	}
}

// SymbolList returns the configured symbols as raw tokens. String entries
// may hold several comma or space separated symbols, as set through
// CHARTGEN_SYMBOLS.
func (c *Config) SymbolList() []symbol.Raw {
	var out []symbol.Raw
	for _, v := range c.Symbols {
		s, ok := v.(string)
		if !ok {
			out = append(out, symbol.FromAny(v))
			continue
		}
		for _, tok := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
			out = append(out, symbol.Raw(tok))
		}
	}
	return out
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Chart validation
	if !core.Period(c.Chart.Period).Valid() {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown chart period %q", c.Chart.Period))
	}
	if _, err := render.LookupStyle(c.Chart.Style); err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}
	if c.Chart.Width < 0 || c.Chart.Height < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("chart size cannot be negative, got %dx%d", c.Chart.Width, c.Chart.Height))
	}

	// Provider validation
	if c.Provider.RequestsPerSecond < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("requests_per_second cannot be negative, got %f", c.Provider.RequestsPerSecond))
	}
	switch c.Provider.Name {
	case "yahoo", "eastmoney":
	case "alpaca":
		if c.Provider.Alpaca.APIKey == "" || c.Provider.Alpaca.APISecret == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("alpaca api_key and api_secret required when provider is alpaca"))
		}
	default:
		return core.WrapError(core.ErrUnknownProvider, fmt.Errorf("%q", c.Provider.Name))
	}

	// Storage validation
	switch c.Storage.Type {
	case "", "localfs":
		if c.Chart.OutputDir == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("chart.output_dir required for localfs storage"))
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("storage.s3.bucket required when storage type is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown storage type %q", c.Storage.Type))
	}

	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.MaxJobs < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("server.max_jobs must be positive, got %d", c.Server.MaxJobs))
	}

	// Alert validation
	for i := range c.Alerts.Rules {
		if err := c.Alerts.Rules[i].Validate(); err != nil {
			return core.WrapError(core.ErrConfigInvalid, err)
		}
	}

	// Notifier validation
	for name, n := range c.Notifiers {
		if !n.Enabled {
			continue
		}
		switch name {
		case "webhook":
			if n.URL == "" {
				return core.WrapError(core.ErrConfigMissing, fmt.Errorf("webhook url required"))
			}
		case "telegram":
			if n.BotToken == "" || n.ChatID == "" {
				return core.WrapError(core.ErrConfigMissing, fmt.Errorf("telegram bot_token and chat_id required"))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown notifier %q", name))
		}
	}

	return nil
}
