package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v2"
)

const DefaultPath = "config/config.yaml"

type Config struct {
	Server struct {
		Address string `yaml:"address" env:"SERVER_ADDRESS"`
	} `yaml:"server"`
	Database struct {
		Driver string `yaml:"driver" env:"DATABASE_DRIVER"`
		URL    string `yaml:"url" env:"DATABASE_URL"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers string `yaml:"brokers" env:"KAFKA_BROKERS"`
		Topic   string `yaml:"topic" env:"KAFKA_TOPIC"`
	} `yaml:"kafka"`
	Gateway struct {
		AppID          string `yaml:"app_id" env:"GATEWAY_APP_ID"`
		GatewayURL     string `yaml:"gateway_url" env:"GATEWAY_URL"`
		PrivateKeyPath string `yaml:"private_key_path" env:"GATEWAY_PRIVATE_KEY_PATH"`
		PublicKeyPath  string `yaml:"public_key_path" env:"GATEWAY_PUBLIC_KEY_PATH"`
		SignType       string `yaml:"sign_type" env:"GATEWAY_SIGN_TYPE"`
		NotifyURL      string `yaml:"notify_url" env:"GATEWAY_NOTIFY_URL"`
		ReturnURL      string `yaml:"return_url" env:"GATEWAY_RETURN_URL"`
		SuccessStatus  string `yaml:"success_status" env:"GATEWAY_SUCCESS_STATUS"`
		Charset        string `yaml:"charset" env:"GATEWAY_CHARSET"`
	} `yaml:"gateway"`
	AppStore struct {
		SharedSecret   string `yaml:"shared_secret" env:"APPSTORE_SHARED_SECRET"`
		ProductionURL  string `yaml:"production_url" env:"APPSTORE_PRODUCTION_URL"`
		SandboxURL     string `yaml:"sandbox_url" env:"APPSTORE_SANDBOX_URL"`
		TimeoutSeconds int    `yaml:"timeout_seconds" env:"APPSTORE_TIMEOUT_SECONDS"`
	} `yaml:"appstore"`
	Audit struct {
		Dir string `yaml:"dir" env:"AUDIT_DIR"`
	} `yaml:"audit"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	} `yaml:"auth"`
	Timezone string `yaml:"timezone" env:"TIMEZONE"`
}

// Load reads the YAML file at path and overlays environment variables. A missing
// file is fine; a malformed one is not.
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: env: %w", err)
	}
	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":4000"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "successful_payments"
	}
	if c.Gateway.SignType == "" {
		c.Gateway.SignType = "RSA2"
	}
	if c.Gateway.Charset == "" {
		c.Gateway.Charset = "utf-8"
	}
	if c.Gateway.SuccessStatus == "" {
		c.Gateway.SuccessStatus = "TRADE_SUCCESS"
	}
	if c.AppStore.TimeoutSeconds <= 0 {
		c.AppStore.TimeoutSeconds = 15
	}
	if c.Audit.Dir == "" {
		c.Audit.Dir = "logs"
	}
	if c.Timezone == "" {
		c.Timezone = "Asia/Shanghai"
	}
}

// Validate reports the first missing required setting.
func (c Config) Validate() error {
	required := []struct {
		name, value string
	}{
		{"database.url", c.Database.URL},
		{"gateway.app_id", c.Gateway.AppID},
		{"gateway.gateway_url", c.Gateway.GatewayURL},
		{"gateway.private_key_path", c.Gateway.PrivateKeyPath},
		{"gateway.public_key_path", c.Gateway.PublicKeyPath},
		{"gateway.notify_url", c.Gateway.NotifyURL},
		{"auth.jwt_secret", c.Auth.JWTSecret},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("config: %s is required", r.name)
		}
	}
	if c.Gateway.SignType != "RSA2" && c.Gateway.SignType != "RSA" {
		return fmt.Errorf("config: gateway.sign_type %q is not RSA2 or RSA", c.Gateway.SignType)
	}
	return nil
}

func (c Config) AppStoreTimeout() time.Duration {
	return time.Duration(c.AppStore.TimeoutSeconds) * time.Second
}
