package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"candleview/internal/market"
)

// DefaultPath is read when Load is given no path and the file exists.
const DefaultPath = "config.yaml"

type Provider struct {
	APIKey               string `yaml:"api_key" validate:"required"`
	BaseURL              string `yaml:"base_url" default:"https://www.alphavantage.co" validate:"required,url"`
	RequestTimeoutSec    int    `yaml:"request_timeout_sec" default:"15" validate:"gte=1,lte=120"`
	MaxRequestsPerMinute int    `yaml:"max_requests_per_minute" validate:"gte=0"`
	Burst                int    `yaml:"burst" default:"1" validate:"gte=1"`
}

type Series struct {
	Granularity string `yaml:"granularity" default:"intraday" validate:"oneof=intraday daily"`
	Interval    string `yaml:"interval" default:"5min" validate:"oneof=1min 5min 15min 30min 60min"`
	Symbol      string `yaml:"symbol" default:"RELIANCE.BSE"`
	RawRecords  int    `yaml:"raw_records" default:"10" validate:"gte=0"`
}

type Cycle struct {
	CooldownSeconds int `yaml:"cooldown_seconds" default:"60" validate:"gte=0"`
}

type Log struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"console" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stderr"`
}

type Server struct {
	Port string `yaml:"port" default:"8080" validate:"required,numeric"`
}

type Config struct {
	Provider Provider `yaml:"provider"`
	Series   Series   `yaml:"series"`
	Cycle    Cycle    `yaml:"cycle"`
	Log      Log      `yaml:"log"`
	Server   Server   `yaml:"server"`
}

// Default returns a config with every default applied. The API key is left
// empty; it must come from the file or the environment.
// It panics if the default tags on Config are malformed.
func Default() Config {
	var cfg Config
	if err := applyDefaults(&cfg); err != nil {
		panic(err)
	}
	return cfg
}

func applyDefaults(v any) error {
	if err := defaults.Set(v); err != nil {
		return fmt.Errorf("apply defaults: %w", err)
	}
	return nil
}

// Load reads YAML config from path. If path is empty it falls back to
// DefaultPath when that file exists. A .env file in the working directory
// is loaded next, then environment variables override the file.
func Load(path string) (Config, error) {
	var cfg Config
	if err := applyDefaults(&cfg); err != nil {
		return cfg, err
	}
	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	if err := LoadDotEnv(".env"); err != nil {
		return cfg, err
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv exports the variables in path that are not already set. A
// missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"ALPHAVANTAGE_API_KEY":  &cfg.Provider.APIKey,
		"ALPHAVANTAGE_BASE_URL": &cfg.Provider.BaseURL,
		"GRANULARITY":           &cfg.Series.Granularity,
		"INTERVAL":              &cfg.Series.Interval,
		"SYMBOL":                &cfg.Series.Symbol,
		"LOG_LEVEL":             &cfg.Log.Level,
		"LOG_FORMAT":            &cfg.Log.Format,
		"PORT":                  &cfg.Server.Port,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	ints := map[string]*int{
		"REQUEST_TIMEOUT_SEC":  &cfg.Provider.RequestTimeoutSec,
		"ALPHAVANTAGE_MAX_RPM": &cfg.Provider.MaxRequestsPerMinute,
		"COOLDOWN_SECONDS":     &cfg.Cycle.CooldownSeconds,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		x, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = x
	}
	cfg.Series.Granularity = strings.ToLower(cfg.Series.Granularity)
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field rules and reports every violation.
func (c Config) Validate() error {
	err := validate.Struct(c)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, message(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func message(fe validator.FieldError) string {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

// Granularity returns the configured series granularity.
func (c Config) Granularity() (market.Granularity, error) {
	return market.ParseGranularity(c.Series.Granularity, c.Series.Interval)
}

// Cooldown is the minimum time between the starts of two fetch cycles.
func (c Config) Cooldown() time.Duration {
	return time.Duration(c.Cycle.CooldownSeconds) * time.Second
}

// RequestTimeout bounds a single provider call.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Provider.RequestTimeoutSec) * time.Second
}
