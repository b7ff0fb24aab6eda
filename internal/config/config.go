package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Push transports.
const (
	PushTransportWebSocket = "websocket"
	PushTransportMQTT      = "mqtt"
	PushTransportNone      = "none"
)

// Config holds dashboard configuration loaded from YAML, .env and env.
type Config struct {
	BackendURL     string        `validate:"required,url"`
	BackendTimeout time.Duration `validate:"gt=0s"`

	RecordLimit     int           `validate:"gte=1,lte=100"`
	RefreshInterval time.Duration `validate:"gte=1s"`

	PushTransport        string `validate:"oneof=websocket mqtt none"`
	PushURL              string `validate:"required_if=PushTransport websocket"`
	PushHandshakeTimeout time.Duration
	MQTTBroker           string `validate:"required_if=PushTransport mqtt"`
	MQTTTopic            string `validate:"required_if=PushTransport mqtt"`
	MQTTQoS              int    `validate:"gte=0,lte=2"`

	StatusPort     string `validate:"omitempty,numeric"`
	RateLimitRPS   int
	RateLimitBurst int

	HealthWindow           time.Duration `validate:"gte=1s"`
	HealthDegradedErrorPct int           `validate:"gte=1,lte=100"`
	HealthMinSamples       int           `validate:"gte=1"`

	ShutdownTimeout time.Duration
}

type fileConfig struct {
	Backend struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"backend"`

	Dashboard struct {
		Limit           int    `yaml:"limit"`
		RefreshInterval string `yaml:"refresh_interval"`
	} `yaml:"dashboard"`

	Push struct {
		Transport        string `yaml:"transport"`
		URL              string `yaml:"url"`
		HandshakeTimeout string `yaml:"handshake_timeout"`
		MQTT             struct {
			Broker string `yaml:"broker"`
			Topic  string `yaml:"topic"`
			QoS    int    `yaml:"qos"`
		} `yaml:"mqtt"`
	} `yaml:"push"`

	Status struct {
		Port           string `yaml:"port"`
		RateLimitRPS   int    `yaml:"rate_limit_rps"`
		RateLimitBurst int    `yaml:"rate_limit_burst"`
	} `yaml:"status"`

	Health struct {
		Window           string `yaml:"window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
		MinSamples       int    `yaml:"min_samples"`
	} `yaml:"health"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

var validate = validator.New()

// Load reads config/{ENV_NAME}.yaml (default dev) relative to the working
// directory. A .env file there, if present, seeds the environment first;
// variables already set win. Call from project root.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.BackendURL = firstNonEmpty(os.Getenv("DASHBOARD_BACKEND_URL"), fc.Backend.URL, "http://localhost:8000")
	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")
	cfg.BackendTimeout = parseDuration(fc.Backend.Timeout, 10*time.Second)

	cfg.RecordLimit = fc.Dashboard.Limit
	if cfg.RecordLimit == 0 {
		cfg.RecordLimit = 10
	}
	cfg.RefreshInterval = parseDuration(fc.Dashboard.RefreshInterval, 5*time.Minute)

	cfg.PushTransport = strings.ToLower(firstNonEmpty(os.Getenv("DASHBOARD_PUSH_TRANSPORT"), fc.Push.Transport, PushTransportWebSocket))
	cfg.PushURL = firstNonEmpty(os.Getenv("DASHBOARD_PUSH_URL"), fc.Push.URL)
	if cfg.PushURL == "" && cfg.PushTransport == PushTransportWebSocket {
		cfg.PushURL = "ws://localhost:8000/ws"
	}
	cfg.PushHandshakeTimeout = parseDuration(fc.Push.HandshakeTimeout, 10*time.Second)
	cfg.MQTTBroker = strings.TrimSpace(fc.Push.MQTT.Broker)
	cfg.MQTTTopic = strings.TrimSpace(fc.Push.MQTT.Topic)
	cfg.MQTTQoS = fc.Push.MQTT.QoS

	cfg.StatusPort = firstNonEmpty(os.Getenv("DASHBOARD_STATUS_PORT"), fc.Status.Port)
	cfg.RateLimitRPS = fc.Status.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 10
	}
	cfg.RateLimitBurst = fc.Status.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 20
	}

	cfg.HealthWindow = parseDuration(fc.Health.Window, time.Minute)
	cfg.HealthDegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.HealthDegradedErrorPct <= 0 {
		cfg.HealthDegradedErrorPct = 50
	}
	cfg.HealthMinSamples = fc.Health.MinSamples
	if cfg.HealthMinSamples <= 0 {
		cfg.HealthMinSamples = 3
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 10*time.Second)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// validateConfig runs struct-tag validation, then the checks tags cannot express.
func validateConfig(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	u, err := url.Parse(cfg.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid config: backend.url must be http(s), got %q", cfg.BackendURL)
	}
	if cfg.PushTransport == PushTransportWebSocket {
		u, err := url.Parse(cfg.PushURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			return fmt.Errorf("invalid config: push.url must be ws(s), got %q", cfg.PushURL)
		}
	}
	return nil
}
