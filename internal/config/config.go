package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when neither -config nor STOCKTICKER_CONFIG is given.
const DefaultPath = "config/stockticker.yaml"

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration shared by the ticker binaries.
type Config struct {
	Client  Client  `yaml:"client"`
	Server  Server  `yaml:"server"`
	Storage Storage `yaml:"storage"`
	Alpaca  Alpaca  `yaml:"alpaca"`
	Logging Logging `yaml:"logging"`
}

// Client configures the terminal dashboard and its session pipeline.
type Client struct {
	APIBaseURL      string        `yaml:"api_base_url"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	CountdownFrom   int           `yaml:"countdown_from"`
	ChartDelay      time.Duration `yaml:"chart_delay"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	SessionDir      string        `yaml:"session_dir"`
}

// Server holds network listener configuration.
type Server struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	GRPCPort        int           `yaml:"grpc_port"`
	TokenTTL        time.Duration `yaml:"token_ttl"`
	PublishInterval time.Duration `yaml:"publish_interval"`
}

// Storage holds paths for data persistence.
type Storage struct {
	SQLitePath string `yaml:"sqlite_path"`
	SeedPath   string `yaml:"seed_path"`
}

// Alpaca holds credentials for the optional live price source. The source is
// only used when both keys are present.
type Alpaca struct {
	APIKey    string   `yaml:"api_key"`
	APISecret string   `yaml:"api_secret"`
	DataURL   string   `yaml:"data_url"`
	Symbols   []string `yaml:"symbols"`
}

// Enabled reports whether credentials are configured.
func (a Alpaca) Enabled() bool {
	return a.APIKey != "" && a.APISecret != ""
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Default returns a Config with every field populated.
func Default() *Config {
	return &Config{
		Client: Client{
			APIBaseURL:      "http://localhost:8080/api",
			RefreshInterval: 60 * time.Second,
			CountdownFrom:   60,
			ChartDelay:      100 * time.Millisecond,
			RequestTimeout:  15 * time.Second,
			SessionDir:      defaultSessionDir(),
		},
		Server: Server{
			Host:            "0.0.0.0",
			Port:            8080,
			GRPCPort:        9090,
			TokenTTL:        24 * time.Hour,
			PublishInterval: 60 * time.Second,
		},
		Storage: Storage{
			SQLitePath: "data/stockticker.db",
			SeedPath:   "data/stock_data.csv",
		},
		Alpaca: Alpaca{
			DataURL: "https://data.alpaca.markets",
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
	}
}

func defaultSessionDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".stockticker/session"
	}
	return home + "/.stockticker/session"
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Path resolves the config file location: the explicit flag value wins, then
// STOCKTICKER_CONFIG, then DefaultPath.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv("STOCKTICKER_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads the YAML configuration file at the given path on top of
// Default(), loads a .env file from the working directory if one exists, and
// then applies environment variable overrides. A missing config file is not
// an error; the defaults are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	// .env is optional.
	_ = godotenv.Load()

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STOCKTICKER_API_URL"); v != "" {
		cfg.Client.APIBaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Client.RefreshInterval = d
		}
	}
	if v := os.Getenv("SESSION_DIR"); v != "" {
		cfg.Client.SessionDir = v
	}

	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("GRPC_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.GRPCPort = p
		}
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("SEED_PATH"); v != "" {
		cfg.Storage.SeedPath = v
	}

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}
	if v := os.Getenv("ALPACA_SYMBOLS"); v != "" {
		cfg.Alpaca.Symbols = strings.Split(v, ",")
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}

	// Standard Alpaca env vars (canonical names used by the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
