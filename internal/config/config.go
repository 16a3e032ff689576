package config

import (
	"log/slog"

	"github.com/joho/godotenv"

	pkgconfig "github.com/Skotchmaster/storefront/pkg/config"
)

type Config struct {
	pkgconfig.Config
}

// Load reads an optional .env file and the process environment. A missing
// JWT_SECRET is fatal.
func Load() *Config {
	if err := godotenv.Load(".env"); err != nil {
		slog.Default().Info("dotenv_not_loaded", "reason", err.Error())
	}

	cfg := &Config{Config: pkgconfig.Load()}
	pkgconfig.MustNonEmptyBytes(cfg.JWTAccessSecret, "JWT_SECRET")
	return cfg
}

func (c *Config) SearchEnabled() bool {
	return c.ESURL != ""
}
