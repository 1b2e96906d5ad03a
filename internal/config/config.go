package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

type Config struct {
	Token       string        `mapstructure:"token"`
	BasePath    string        `mapstructure:"base_path"`
	CloudBase   string        `mapstructure:"cloud_base"`
	APIURL      string        `mapstructure:"api_url"`
	Threads     int           `mapstructure:"threads"`
	PageLimit   int           `mapstructure:"page_limit"`
	DBPath      string        `mapstructure:"db_path"`
	MetricsFile string        `mapstructure:"metrics_file"`
	WatchDelay  time.Duration `mapstructure:"watch_delay"`
}

var Default = Config{
	CloudBase:  "app:/",
	APIURL:     "https://cloud-api.yandex.net/v1/disk/resources",
	Threads:    16,
	PageLimit:  10000,
	DBPath:     "~/.kbsync/kbsync.db",
	WatchDelay: 2 * time.Second,
}

// Dir returns ~/.kbsync, creating it if needed.
func Dir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to get home dir: %w", err)
	}

	dir := filepath.Join(home, ".kbsync")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config dir: %w", err)
	}

	return dir, nil
}

func Load() (*Config, error) {
	configDir, err := Dir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	v.SetDefault("cloud_base", Default.CloudBase)
	v.SetDefault("api_url", Default.APIURL)
	v.SetDefault("threads", Default.Threads)
	v.SetDefault("page_limit", Default.PageLimit)
	v.SetDefault("db_path", Default.DBPath)
	v.SetDefault("metrics_file", "")
	v.SetDefault("watch_delay", Default.WatchDelay)

	v.SetEnvPrefix("KBSYNC")
	v.AutomaticEnv()

	// The first releases read these two from a .env file without a prefix.
	_ = v.BindEnv("token", "KBSYNC_TOKEN", "YANDEX_DISK_TOKEN")
	_ = v.BindEnv("base_path", "KBSYNC_BASE_PATH", "BASE_PATH")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := errors.AsType[viper.ConfigFileNotFoundError](err); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.expand(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) expand() error {
	var err error
	if c.BasePath != "" {
		if c.BasePath, err = homedir.Expand(c.BasePath); err != nil {
			return fmt.Errorf("failed to expand base_path: %w", err)
		}
	}

	if c.DBPath, err = homedir.Expand(c.DBPath); err != nil {
		return fmt.Errorf("failed to expand db_path: %w", err)
	}

	if c.Threads < 1 {
		c.Threads = Default.Threads
	}

	if c.PageLimit < 1 || c.PageLimit > Default.PageLimit {
		c.PageLimit = Default.PageLimit
	}

	return nil
}

// Validate checks the settings every cloud-facing command needs.
func (c *Config) Validate() error {
	if c.Token == "" {
		return errors.New("token is not set (KBSYNC_TOKEN or token in ~/.kbsync/config.yaml)")
	}

	if c.BasePath == "" {
		return errors.New("base_path is not set (KBSYNC_BASE_PATH or base_path in ~/.kbsync/config.yaml)")
	}

	return nil
}
