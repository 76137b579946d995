package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type serviceConfig struct {
	Server struct {
		Addr            string        `koanf:"addr"`
		ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	} `koanf:"server"`

	Redis struct {
		Addr     string `koanf:"addr" validate:"required"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`

	Database struct {
		DSN string `koanf:"dsn" validate:"required"`
	} `koanf:"database"`

	OTP struct {
		Digits   int           `koanf:"digits" validate:"min=4,max=10"`
		Validity time.Duration `koanf:"validity"`
	} `koanf:"otp"`

	Throttle struct {
		MaxAttempts int           `koanf:"max_attempts" validate:"min=1"`
		Decay       time.Duration `koanf:"decay"`
	} `koanf:"throttle"`

	Token struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"token"`

	Mail struct {
		// "smtp" or "filesystem".
		Mode      string `koanf:"mode" validate:"oneof=smtp filesystem"`
		Directory string `koanf:"directory"`
		SMTP      struct {
			Host          string `koanf:"host"`
			Port          int    `koanf:"port"`
			Username      string `koanf:"username"`
			Password      string `koanf:"password"`
			From          string `koanf:"from"`
			EnableTLS     bool   `koanf:"enable_tls"`
			SkipVerifyTLS bool   `koanf:"skip_verify_tls"`
		} `koanf:"smtp"`
	} `koanf:"mail"`

	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`
}

var configFileSearchPaths = []string{
	"authgated.yaml",
	"/etc/authgated/config.yaml",
}

func loadConfig() (serviceConfig, error) {
	// .env is optional; real env always wins.
	_ = godotenv.Load()

	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.addr":             ":8080",
		"server.shutdown_timeout": "10s",
		"redis.addr":              "localhost:6379",
		"redis.db":                0,
		"otp.digits":              6,
		"otp.validity":            "5m",
		"throttle.max_attempts":   1,
		"throttle.decay":          "60s",
		"token.ttl":               "720h",
		"mail.mode":               "filesystem",
		"mail.directory":          "var/outbox",
		"mail.smtp.port":          587,
		"log_level":               "info",
	}
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return serviceConfig{}, fmt.Errorf("load defaults: %w", err)
	}

	path := os.Getenv("CONFIG_FILE_PATH")
	if path == "" {
		for _, candidate := range configFileSearchPaths {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return serviceConfig{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// AUTHGATE_REDIS__ADDR=... maps to redis.addr.
	err := k.Load(env.Provider("AUTHGATE_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "AUTHGATE_"))
		return strings.ReplaceAll(s, "__", ".")
	}), nil)
	if err != nil {
		return serviceConfig{}, fmt.Errorf("load env: %w", err)
	}

	var cfg serviceConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return serviceConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return serviceConfig{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
