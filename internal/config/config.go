package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment override, e.g. DOXSEARCH_ADDR
	EnvPrefix = "DOXSEARCH"

	// ConfigName is searched for (any viper-supported extension) when no config file is given
	ConfigName = "doxsearch"

	dataDirName = ".doxsearch"
)

// Keys, shared by flags, config files and the environment
const (
	KeyDataDir       = "data_dir"
	KeySearchDir     = "search_dir"
	KeyManifest      = "manifest"
	KeyAddr          = "addr"
	KeyStrict        = "strict"
	KeyWorkers       = "workers"
	KeyLimit         = "limit"
	KeyWatchDebounce = "watch_debounce"
	KeyShutdown      = "shutdown_timeout"
)

// Config is the resolved configuration of the CLI, the MCP server and the HTTP server
type Config struct {
	DataDir         string        `mapstructure:"data_dir"`
	SearchDir       string        `mapstructure:"search_dir"`
	Manifest        string        `mapstructure:"manifest"`
	Addr            string        `mapstructure:"addr"`
	Strict          bool          `mapstructure:"strict"`
	Workers         int           `mapstructure:"workers"`
	Limit           int           `mapstructure:"limit"`
	WatchDebounce   time.Duration `mapstructure:"watch_debounce"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// ConfigFile is the file the values were read from, empty if none
	ConfigFile string `mapstructure:"-"`
}

// LoadOptions selects the optional files read by Load
type LoadOptions struct {
	ConfigFile string // explicit config file; otherwise doxsearch.* is searched in . and the data dir
	EnvFile    string // .env file; missing files are ignored
}

// SetDefaults registers the default value of every key
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDataDir, "")
	v.SetDefault(KeySearchDir, "")
	v.SetDefault(KeyManifest, "")
	v.SetDefault(KeyAddr, ":8080")
	v.SetDefault(KeyStrict, false)
	v.SetDefault(KeyWorkers, 0)
	v.SetDefault(KeyLimit, 20)
	v.SetDefault(KeyWatchDebounce, 300*time.Millisecond)
	v.SetDefault(KeyShutdown, 5*time.Second)
}

// Load resolves the configuration from defaults, config file, .env and DOXSEARCH_* variables.
// Flags bound to v with BindPFlag take precedence over all of them.
func Load(v *viper.Viper, opts LoadOptions) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName(ConfigName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, dataDirName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()

	if cfg.DataDir == "" {
		cfg.DataDir = DiscoverDataDir()
	}
	if cfg.SearchDir == "" {
		cfg.SearchDir = filepath.Join(cfg.DataDir, "search")
	}
	if cfg.Limit <= 0 {
		return nil, fmt.Errorf("invalid configuration: %s must be positive, got %d", KeyLimit, cfg.Limit)
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("invalid configuration: %s must not be negative, got %d", KeyWorkers, cfg.Workers)
	}
	return &cfg, nil
}

// SymbolIndexPath is where the bleve symbol index of the configured search directory is kept
func (c *Config) SymbolIndexPath() string {
	return c.SymbolIndexPathFor(c.SearchDir)
}

// SymbolIndexPathFor is where the bleve symbol index of searchDir is kept.
// Every search directory gets its own index, named after a hash of its absolute path.
func (c *Config) SymbolIndexPathFor(searchDir string) string {
	if abs, err := filepath.Abs(searchDir); err == nil {
		searchDir = abs
	}
	sum := sha256.Sum256([]byte(filepath.Clean(searchDir)))
	return filepath.Join(c.DataDir, "index", "symbols-"+hex.EncodeToString(sum[:6])+".bleve")
}

// DiscoverDataDir picks the directory holding search data and indexes
func DiscoverDataDir() string {
	// Strategy 1: user home directory (standalone installation)
	// ~/.doxsearch/ on Unix, C:\Users\...\.doxsearch\ on Windows
	homeDir, err := os.UserHomeDir()
	if err == nil {
		userDataDir := filepath.Join(homeDir, dataDirName)

		if info, err := os.Stat(userDataDir); err == nil && info.IsDir() {
			log.Printf("✓ Data directory: %s (user home)", userDataDir)
			return userDataDir
		}

		if err := os.MkdirAll(filepath.Join(userDataDir, "search"), 0755); err == nil {
			log.Printf("✓ Data directory created: %s", userDataDir)
			return userDataDir
		}

		log.Printf("Warning: Could not create user data directory at %s: %v", userDataDir, err)
	} else {
		log.Printf("Warning: Could not determine user home directory: %v", err)
	}

	// Strategy 2: relative to executable (bin/doxsearch next to data/)
	if execPath, err := os.Executable(); err == nil {
		relativeDataDir := filepath.Join(filepath.Dir(execPath), "..", "data")
		if info, err := os.Stat(relativeDataDir); err == nil && info.IsDir() {
			abs, _ := filepath.Abs(relativeDataDir)
			log.Printf("✓ Data directory: %s (relative to binary)", abs)
			return abs
		}
	}

	// Strategy 3: current working directory
	fallback := filepath.Join(".", "data")
	log.Printf("⚠️  Data directory (fallback): %s", fallback)
	os.MkdirAll(filepath.Join(fallback, "search"), 0755)
	return fallback
}
