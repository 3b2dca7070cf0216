package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Manager provides configuration management functionality
type Manager interface {
	GetString(key string) (string, error)
	GetStringWithDefault(key, defaultValue string) string
	GetInt(key string) (int, error)
	GetIntWithDefault(key string, defaultValue int) int
	GetBoolWithDefault(key string, defaultValue bool) bool
	GetDurationWithDefault(key string, defaultValue time.Duration) time.Duration
}

// DefaultManager reads configuration from environment variables.
type DefaultManager struct {
}

// NewConfigManager creates a new default config manager
func NewConfigManager() Manager {
	return &DefaultManager{}
}

// GetString gets a configuration value by key, returns error if not found
func (m *DefaultManager) GetString(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("configuration key %s not found", key)
	}
	return value, nil
}

// GetStringWithDefault gets a configuration value by key, returns default if not found
func (m *DefaultManager) GetStringWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetInt gets an integer configuration value by key, returns error if not found or invalid
func (m *DefaultManager) GetInt(key string) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return 0, fmt.Errorf("configuration key %s not found", key)
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("configuration key %s has invalid integer value: %s", key, value)
	}
	return intValue, nil
}

// GetIntWithDefault gets an integer configuration value by key, returns default if not found or invalid
func (m *DefaultManager) GetIntWithDefault(key string, defaultValue int) int {
	intValue, err := m.GetInt(key)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// GetBoolWithDefault gets a boolean configuration value by key, returns default if not found or invalid
func (m *DefaultManager) GetBoolWithDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

// GetDurationWithDefault parses a Go duration such as "500ms" or "1h",
// returning the default if missing or invalid
func (m *DefaultManager) GetDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
