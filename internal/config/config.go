// Package config loads the service configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Storage struct {
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MinIdleConns    int    `yaml:"min_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Driver string `yaml:"driver"` // memory | redis
		Redis  struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
		Prefix string `yaml:"prefix"`
		// PrincipalTTL is the upper bound for cached principals; the
		// effective TTL is also capped by the credential lifetime.
		PrincipalTTL string `yaml:"principal_ttl"`
	} `yaml:"cache"`

	JWT struct {
		Issuer     string `yaml:"issuer"`
		SeedFile   string `yaml:"seed_file"`
		AccessTTL  string `yaml:"access_ttl"`
		RefreshTTL string `yaml:"refresh_ttl"`
	} `yaml:"jwt"`

	Auth struct {
		Cookie struct {
			AccessName  string `yaml:"access_name"`
			RefreshName string `yaml:"refresh_name"`
			CSRFName    string `yaml:"csrf_name"`
			Domain      string `yaml:"domain"`
			SameSite    string `yaml:"samesite"`
			Secure      bool   `yaml:"secure"`
		} `yaml:"cookie"`
	} `yaml:"auth"`
}

// Load reads path (optional) and applies env overrides + defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, validate(cfg)
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("CACHE_DRIVER"); v != "" {
		cfg.Cache.Driver = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Cache.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.Redis.DB = n
		}
	}
	if v := os.Getenv("JWT_ISSUER"); v != "" {
		cfg.JWT.Issuer = v
	}
	if v := os.Getenv("JWT_SEED_FILE"); v != "" {
		cfg.JWT.SeedFile = v
	}
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		cfg.Auth.Cookie.Secure = strings.EqualFold(v, "true") || v == "1"
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Env == "" {
		cfg.App.Env = "dev"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Cache.Driver == "" {
		cfg.Cache.Driver = "memory"
	}
	if cfg.Cache.Prefix == "" {
		cfg.Cache.Prefix = "tenantgate"
	}
	if cfg.Cache.PrincipalTTL == "" {
		cfg.Cache.PrincipalTTL = "5m"
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "tenantgate"
	}
	if cfg.JWT.SeedFile == "" {
		cfg.JWT.SeedFile = "tenantgate.seed"
	}
	if cfg.JWT.AccessTTL == "" {
		cfg.JWT.AccessTTL = "15m"
	}
	if cfg.JWT.RefreshTTL == "" {
		cfg.JWT.RefreshTTL = "720h"
	}
	if cfg.Auth.Cookie.AccessName == "" {
		cfg.Auth.Cookie.AccessName = "tg_access"
	}
	if cfg.Auth.Cookie.RefreshName == "" {
		cfg.Auth.Cookie.RefreshName = "tg_refresh"
	}
	if cfg.Auth.Cookie.CSRFName == "" {
		cfg.Auth.Cookie.CSRFName = "csrf_token"
	}
	if cfg.Auth.Cookie.SameSite == "" {
		cfg.Auth.Cookie.SameSite = "lax"
	}
}

func validate(cfg *Config) error {
	for _, d := range []struct{ name, val string }{
		{"cache.principal_ttl", cfg.Cache.PrincipalTTL},
		{"jwt.access_ttl", cfg.JWT.AccessTTL},
		{"jwt.refresh_ttl", cfg.JWT.RefreshTTL},
	} {
		if _, err := time.ParseDuration(d.val); err != nil {
			return fmt.Errorf("config: %s: %w", d.name, err)
		}
	}
	return nil
}

// Duration parses an already-validated duration field.
func Duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
