package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	ServerAddress string        `mapstructure:"server_address"`
	DatabaseURL   string        `mapstructure:"database_url"`
	JWTSecret     string        `mapstructure:"jwt_secret"`
	SessionSecret string        `mapstructure:"session_secret"`
	SecureCookies bool          `mapstructure:"secure_cookies"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	AllowedOrigin string        `mapstructure:"allowed_origin"`
	UploadDir     string        `mapstructure:"upload_dir"`
	LogLevel      string        `mapstructure:"log_level"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	ActiveWindow  time.Duration `mapstructure:"active_window"`
}

// Load reads the configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence. A .env file in the working
// directory is loaded into the environment first when present.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetDefault("server_address", ":8080")
	v.SetDefault("database_url", "sqlite://"+filepath.Join("data", "playerhub.db"))
	v.SetDefault("jwt_secret", "change-me")
	v.SetDefault("session_secret", "change-me-too")
	v.SetDefault("secure_cookies", false)
	v.SetDefault("token_ttl", 30*24*time.Hour)
	v.SetDefault("allowed_origin", "http://localhost:3000")
	v.SetDefault("upload_dir", filepath.Join("data", "uploads"))
	v.SetDefault("log_level", "info")
	v.SetDefault("read_timeout", 15*time.Second)
	v.SetDefault("write_timeout", 15*time.Second)
	v.SetDefault("active_window", 5*time.Minute)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if c.TokenTTL <= 0 {
		return nil, fmt.Errorf("token_ttl must be positive, got %s", c.TokenTTL)
	}

	return &c, nil
}

// CleanDatabasePath returns a clean filesystem path from a database URL
func (c *Config) CleanDatabasePath() string {
	// Strip sqlite:// prefix if present
	dbPath := strings.TrimPrefix(c.DatabaseURL, "sqlite://")
	if strings.HasPrefix(dbPath, "file:") {
		return dbPath
	}

	// If it's not an absolute path, make it relative to the current directory
	if !filepath.IsAbs(dbPath) {
		cwd, err := os.Getwd()
		if err != nil {
			return dbPath
		}
		dbPath = filepath.Join(cwd, dbPath)
	}

	return dbPath
}

// UpdateDatabasePath updates the database path, maintaining the sqlite:// prefix if it was present
func (c *Config) UpdateDatabasePath(newPath string) {
	if strings.HasPrefix(c.DatabaseURL, "sqlite://") {
		c.DatabaseURL = "sqlite://" + newPath
	} else {
		c.DatabaseURL = newPath
	}
}
