package config

import (
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const devSessionSecret = "dev-session-secret-change-me"

type Config struct {
	Port   string `yaml:"port" envconfig:"PORT"`
	Env    string `yaml:"env" envconfig:"ENV"`
	AppURL string `yaml:"app_url" envconfig:"APP_URL"`

	DBDriver    string `yaml:"db_driver" envconfig:"DB_DRIVER"`
	DatabaseURL string `yaml:"database_url" envconfig:"DATABASE_URL"`

	SessionSecret string `yaml:"session_secret" envconfig:"SESSION_SECRET"`
	RedisAddr     string `yaml:"redis_addr" envconfig:"REDIS_ADDR"`

	// Email Configuration
	SMTPHost     string `yaml:"smtp_host" envconfig:"SMTP_HOST"`
	SMTPPort     int    `yaml:"smtp_port" envconfig:"SMTP_PORT"`
	SMTPUsername string `yaml:"smtp_username" envconfig:"SMTP_USERNAME"`
	SMTPPassword string `yaml:"smtp_password" envconfig:"SMTP_PASSWORD"`
	FromEmail    string `yaml:"from_email" envconfig:"FROM_EMAIL"`
	FromName     string `yaml:"from_name" envconfig:"FROM_NAME"`

	LogLevel  string `yaml:"log_level" envconfig:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" envconfig:"LOG_FORMAT"`

	SignInRatePerMinute int `yaml:"sign_in_rate_per_minute" envconfig:"SIGN_IN_RATE_PER_MINUTE"`
	SignInBurst         int `yaml:"sign_in_burst" envconfig:"SIGN_IN_BURST"`

	SessionCleanupInterval time.Duration `yaml:"session_cleanup_interval" envconfig:"SESSION_CLEANUP_INTERVAL"`

	OTLPEndpoint string `yaml:"otlp_endpoint" envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Default returns the development configuration every other source is layered on.
func Default() *Config {
	return &Config{
		Port:        "8080",
		Env:         "development",
		AppURL:      "http://localhost:8080",
		DBDriver:    "mysql",
		DatabaseURL: "user:password@tcp(localhost:3306)/bikes?charset=utf8mb4&parseTime=True&loc=Local",

		SessionSecret: devSessionSecret,

		SMTPHost:  "sandbox.smtp.mailtrap.io",
		SMTPPort:  2525,
		FromEmail: "noreply@bikes.local",
		FromName:  "Bikes",

		LogLevel:  "info",
		LogFormat: "text",

		SignInRatePerMinute: 10,
		SignInBurst:         5,

		SessionCleanupInterval: time.Hour,
	}
}

// Load builds the configuration from defaults, then the optional YAML file at
// path, then the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config file %s", path)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, errors.Wrap(err, "process environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port must not be empty")
	}
	switch c.DBDriver {
	case "mysql", "sqlite":
	default:
		return errors.Errorf("unsupported db driver %q", c.DBDriver)
	}
	if c.IsProduction() && (c.SessionSecret == "" || c.SessionSecret == devSessionSecret) {
		return errors.New("SESSION_SECRET must be set in production")
	}
	if c.SignInRatePerMinute <= 0 || c.SignInBurst <= 0 {
		return errors.New("sign-in rate limit must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
