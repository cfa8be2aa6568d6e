// Package config loads the application configuration with viper.
//
// The file is YAML (or any format viper reads) and is located by the
// --conf flag or, failing that, by searching for "config.*" in
// /etc/blobjob, $HOME/.blobjob, the working directory and the directory
// of the executable. Every key can be overridden by an environment
// variable prefixed BLOBJOB_, with dots replaced by underscores:
//
//	BLOBJOB_STORAGE_PROVIDER=minio
//	BLOBJOB_REDIS_ADDR=redis:6379
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/ncobase/blobjob/events"
	logcfg "github.com/ncobase/blobjob/logging/logger/config"
	"github.com/ncobase/blobjob/metrics"
	"github.com/ncobase/blobjob/oss"
	"github.com/ncobase/blobjob/scheduler"
	"github.com/ncobase/blobjob/store"
	"github.com/spf13/viper"
)

var (
	config *Config
	path   string
	once   sync.Once
	mu     sync.RWMutex
)

// Config represents the configuration implementation.
type Config struct {
	AppName   string
	RunMode   string
	Logger    *logcfg.Config
	Storage   *oss.Config
	Redis     *store.RedisConfig
	Jobs      *Jobs
	Events    *events.Config
	Scheduler *scheduler.Config
	Observes  *Observes
	Metrics   *metrics.Config
	Viper     *viper.Viper
}

// Init loads the configuration once from configPath (empty to search the
// default locations).
func Init(configPath string) (cfg *Config, err error) {
	once.Do(func() {
		path = configPath
		cfg, err = LoadConfig(configPath)
		if err == nil {
			mu.Lock()
			config = cfg
			mu.Unlock()
		}
	})
	if err == nil && cfg == nil {
		cfg, err = GetConfig()
	}
	return cfg, err
}

// GetConfig returns the configuration loaded by Init.
func GetConfig() (*Config, error) {
	mu.RLock()
	defer mu.RUnlock()
	if config == nil {
		return nil, fmt.Errorf("config is not initialized")
	}
	return config, nil
}

// LoadConfig reads the configuration file into a new Config.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("blobjob")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		ex, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to get executable path: %w", err)
		}
		v.SetConfigName("config")
		v.AddConfigPath("/etc/blobjob")
		v.AddConfigPath("$HOME/.blobjob")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Dir(ex))
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppName:   getStringOrDefault(v, "app_name", "blobjob"),
		RunMode:   getStringOrDefault(v, "run_mode", "release"),
		Logger:    logcfg.GetConfig(v),
		Storage:   getStorageConfig(v),
		Redis:     getRedisConfig(v),
		Jobs:      getJobsConfig(v),
		Events:    getEventsConfig(v),
		Scheduler: getSchedulerConfig(v),
		Observes:  getObservesConfig(v),
		Metrics:   getMetricsConfig(v),
		Viper:     v,
	}
	if err := cfg.Storage.Validate(); err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	if err := cfg.Metrics.Validate(); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	if err := cfg.Scheduler.Validate(); err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	return cfg, nil
}

// Reload reloads the configuration from the file.
func Reload() error {
	newConfig, err := LoadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}

	mu.Lock()
	config = newConfig
	mu.Unlock()
	return nil
}

// Watch watches the configuration file and reloads it when it changes.
// Invalid changes are reported to onError and the previous configuration
// stays in place.
func Watch(callback func(*Config), onError func(error)) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	cfg.Viper.OnConfigChange(func(fsnotify.Event) {
		if err := Reload(); err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		current, _ := GetConfig()
		callback(current)
	})
	cfg.Viper.WatchConfig()
	return nil
}
