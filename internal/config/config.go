package config

import (
	"log"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const configPathEnv = "CARTS_CONFIG"

// SourceConfig describes one CSV feed: where it lives and how its
// locale-sensitive columns are named and formatted. The schema differences
// between feed revisions live here instead of in copy-pasted loader code.
type SourceConfig struct {
	URL         string `yaml:"url"`
	DateColumn  string `yaml:"dateColumn"`
	ValueColumn string `yaml:"valueColumn"`
	StageColumn string `yaml:"stageColumn"`
	DateFormat  string `yaml:"dateFormat"` // iso | day-first | day-first-time
	Headerless  bool   `yaml:"headerless"`
}

type Config struct {
	Carts              SourceConfig  `yaml:"carts"`
	Spend              SourceConfig  `yaml:"spend"`
	Port               string        `yaml:"port"`
	HTTPTimeoutSeconds int           `yaml:"httpTimeoutSeconds"`
	HTTPTimeout        time.Duration `yaml:"-"`
	LogLevel           slog.Level    `yaml:"-"`
}

// Load reads the YAML file named by CARTS_CONFIG (if any) over the defaults
// and then applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			cfg = defaultConfig()
		}
	}

	cfg.applyEnvOverrides()

	cfg.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSeconds) * time.Second
	cfg.LogLevel = slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		cfg.LogLevel = slog.LevelDebug
	}
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CARTS_CSV_URL"); v != "" {
		c.Carts.URL = v
	}
	if v := os.Getenv("SPEND_CSV_URL"); v != "" {
		c.Spend.URL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("HTTP_TIMEOUT_SECONDS"); v != "" {
		if d, err := time.ParseDuration(v + "s"); err == nil {
			c.HTTPTimeoutSeconds = int(d / time.Second)
		}
	}
}

func defaultConfig() Config {
	return Config{
		Carts: SourceConfig{
			DateColumn:  "DATA INICIAL",
			ValueColumn: "VALOR",
			StageColumn: "ABANDONOU EM",
			DateFormat:  "day-first-time",
		},
		Spend: SourceConfig{
			DateColumn:  "Data",
			ValueColumn: "Investimento",
			DateFormat:  "iso",
		},
		Port:               "8080",
		HTTPTimeoutSeconds: 15,
	}
}
