// Package config loads process settings from the environment (and an
// optional .env file) plus an optional YAML tuning file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/talgya/vertifarm/internal/engine"
	"github.com/talgya/vertifarm/internal/farm"
)

// Config holds process settings.
type Config struct {
	DBPath      string
	APIPort     int
	AdminKey    string
	CropsPath   string // empty = built-in catalog
	TuningPath  string // empty = default economics
	JournalDir  string // empty = no journal
	Seed        int64  // 0 = fresh entropy
	RandomOrg   string
	LogLevel    slog.Level
	Autoplay    time.Duration // 0 = step only on request
	CORSOrigins []string      // extra allowed browser origins
}

// Load reads .env (if present) and the FARM_* environment variables.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Debug("no .env loaded", "error", err)
	}

	get := func(k, def string) string {
		if v := os.Getenv(k); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		DBPath:     get("FARM_DB_PATH", "data/vertifarm.db"),
		AdminKey:   get("FARM_ADMIN_KEY", ""),
		CropsPath:  get("FARM_CROPS_PATH", ""),
		TuningPath: get("FARM_TUNING_PATH", ""),
		JournalDir: get("FARM_JOURNAL_DIR", ""),
		RandomOrg:  get("RANDOM_ORG_KEY", ""),
	}

	port, err := strconv.Atoi(get("FARM_API_PORT", "8080"))
	if err != nil || port <= 0 {
		return cfg, fmt.Errorf("%w: FARM_API_PORT %q", farm.ErrConfiguration, os.Getenv("FARM_API_PORT"))
	}
	cfg.APIPort = port

	if s := get("FARM_SEED", ""); s != "" {
		seed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("%w: FARM_SEED %q", farm.ErrConfiguration, s)
		}
		cfg.Seed = seed
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(strings.ToUpper(get("FARM_LOG_LEVEL", "INFO")))); err != nil {
		return cfg, fmt.Errorf("%w: FARM_LOG_LEVEL: %v", farm.ErrConfiguration, err)
	}

	for _, origin := range strings.Split(get("FARM_CORS_ORIGINS", ""), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}

	if s := get("FARM_AUTOPLAY", ""); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return cfg, fmt.Errorf("%w: FARM_AUTOPLAY %q", farm.ErrConfiguration, s)
		}
		cfg.Autoplay = d
	}
	return cfg, nil
}

// LoadEconomics reads a YAML tuning file over the defaults. Fields the file
// omits keep their default values. An empty path returns the defaults.
func LoadEconomics(path string) (engine.Economics, error) {
	econ := engine.DefaultEconomics()
	if path == "" {
		return econ, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return econ, fmt.Errorf("%w: read tuning %s: %v", farm.ErrConfiguration, path, err)
	}
	return ParseEconomics(raw)
}

// ParseEconomics decodes YAML tuning over the defaults.
func ParseEconomics(raw []byte) (engine.Economics, error) {
	econ := engine.DefaultEconomics()
	if err := yaml.Unmarshal(raw, &econ); err != nil {
		return econ, fmt.Errorf("%w: tuning.yaml: %v", farm.ErrConfiguration, err)
	}
	if err := econ.Validate(); err != nil {
		return econ, err
	}
	return econ, nil
}
