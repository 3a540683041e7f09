// Package config loads the dashboard configuration from defaults, an
// optional YAML file, an optional .env file and LAUNDRY_* environment
// variables, in that order of precedence (last wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the dashboard reads.
const EnvPrefix = "LAUNDRY_"

type Config struct {
	Port              string        `yaml:"port"`
	APIBase           string        `yaml:"api_base"`
	DBPath            string        `yaml:"db_path"`
	LogLevel          string        `yaml:"log_level"`
	LogFormat         string        `yaml:"log_format"`
	TokenSecret       string        `yaml:"token_secret"`
	TokenTTL          time.Duration `yaml:"token_ttl"`
	ForceTokenRefresh bool          `yaml:"force_token_refresh"`
	SessionTTL        time.Duration `yaml:"session_ttl"`
	GoogleClientID    string        `yaml:"google_client_id"`
	ServiceToken      string        `yaml:"service_token"`
	APITimeout        time.Duration `yaml:"api_timeout"`
}

func Default() Config {
	return Config{
		Port:       "8090",
		APIBase:    "http://localhost:8080",
		DBPath:     "laundrydash.db",
		LogLevel:   "info",
		LogFormat:  "text",
		TokenTTL:   5 * time.Minute,
		SessionTTL: 30 * 24 * time.Hour,
	}
}

// Options name the optional files Load reads. Empty paths are skipped.
type Options struct {
	File    string
	EnvFile string
}

// Load builds the configuration. A missing file is not an error; a
// malformed one is.
func Load(opts Options) (Config, error) {
	cfg := Default()

	if opts.File != "" {
		data, err := os.ReadFile(opts.File)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("reading config %s: %w", opts.File, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config %s: %w", opts.File, err)
			}
		}
	}

	env := map[string]string{}
	if opts.EnvFile != "" {
		vals, err := godotenv.Read(opts.EnvFile)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("reading env file %s: %w", opts.EnvFile, err)
		default:
			env = vals
		}
	}
	for _, kv := range os.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(k, EnvPrefix) {
			env[k] = v
		}
	}

	if err := cfg.apply(env); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) apply(env map[string]string) error {
	str := func(key string, dst *string) {
		if v, ok := env[EnvPrefix+key]; ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := env[EnvPrefix+key]
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = d
		return nil
	}

	str("PORT", &c.Port)
	str("API_BASE", &c.APIBase)
	str("DB_PATH", &c.DBPath)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("TOKEN_SECRET", &c.TokenSecret)
	str("GOOGLE_CLIENT_ID", &c.GoogleClientID)
	str("SERVICE_TOKEN", &c.ServiceToken)

	if v, ok := env[EnvPrefix+"FORCE_TOKEN_REFRESH"]; ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sFORCE_TOKEN_REFRESH: %w", EnvPrefix, err)
		}
		c.ForceTokenRefresh = b
	}
	if err := dur("TOKEN_TTL", &c.TokenTTL); err != nil {
		return err
	}
	if err := dur("SESSION_TTL", &c.SessionTTL); err != nil {
		return err
	}
	return dur("API_TIMEOUT", &c.APITimeout)
}

// Validate checks the settings the dashboard server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.TokenSecret == "" {
		errs = append(errs, fmt.Errorf("%sTOKEN_SECRET is required", EnvPrefix))
	}
	if c.APIBase == "" {
		errs = append(errs, fmt.Errorf("%sAPI_BASE is required", EnvPrefix))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token_ttl must be positive"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("session_ttl must be positive"))
	}
	if c.APITimeout < 0 {
		errs = append(errs, errors.New("api_timeout must not be negative"))
	}
	return errors.Join(errs...)
}
