// Package config resolves settings from ~/.outline/config.{json,yaml} and
// the environment. Environment variables take precedence over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

const (
	dirName    = ".outline"
	configName = "config"
)

var (
	mu sync.RWMutex
	v  = newViper()
)

func newViper() *viper.Viper {
	nv := viper.New()
	nv.AutomaticEnv()
	nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	nv.SetDefault("OUTLINE_DEFAULT_INPUT", "test.py")
	nv.SetDefault("OUTLINE_WORKERS", 4)
	return nv
}

// Dir returns ~/.outline.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, dirName), nil
}

// LoadFromUserConfig reads ~/.outline/config.json (or .yaml). A missing
// file, or an unresolvable home directory, is not an error.
func LoadFromUserConfig() error {
	dir, err := Dir()
	if err != nil {
		return nil
	}
	return LoadFrom(dir)
}

// LoadFrom reads the config file from dir into the shared settings.
func LoadFrom(dir string) error {
	mu.Lock()
	defer mu.Unlock()

	v.SetConfigName(configName)
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Get returns the first non-empty value among the provided keys. Keys are
// case-insensitive and each is looked up in the environment first, then in
// the config file.
func Get(keys ...string) string {
	mu.RLock()
	defer mu.RUnlock()

	for _, key := range keys {
		if key == "" {
			continue
		}
		if value := strings.TrimSpace(v.GetString(key)); value != "" {
			return value
		}
	}
	return ""
}

// GetInt returns key as an int, or def when unset or not a positive number.
func GetInt(key string, def int) int {
	mu.RLock()
	defer mu.RUnlock()

	if n := v.GetInt(key); n > 0 {
		return n
	}
	return def
}

// Reset discards everything loaded so far.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	v = newViper()
}
