package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
)

// Environment keys read by Load.
const (
	KeyCacheCapacity     = "TOKENEST_CACHE_CAPACITY"
	KeyTextCacheCapacity = "TOKENEST_TEXT_CACHE_CAPACITY"
	KeyStateCapacity     = "TOKENEST_STATE_CAPACITY"
	KeyStateTTL          = "TOKENEST_STATE_TTL"
	KeySequenceGap       = "TOKENEST_SEQUENCE_GAP"
	KeyStore             = "TOKENEST_STORE"
	KeyStorePath         = "TOKENEST_STORE_PATH"
	KeyModelsFile        = "TOKENEST_MODELS_FILE"
)

const defaultStateDir = "~/.tokenest"

// Settings holds everything needed to build an estimator.
type Settings struct {
	CacheCapacity     int
	TextCacheCapacity int
	StateCapacity     int
	StateTTL          time.Duration
	SequenceGap       time.Duration
	StoreBackend      string
	StorePath         string
	ModelsFile        string
}

// DefaultSettings returns the built-in defaults with an unexpanded store path.
func DefaultSettings() Settings {
	return Settings{
		CacheCapacity:     5000,
		TextCacheCapacity: 10000,
		StateCapacity:     100,
		StateTTL:          time.Hour,
		SequenceGap:       500 * time.Millisecond,
		StoreBackend:      "file",
	}
}

// Load builds Settings from mgr, expanding "~" in paths.
func Load(mgr Manager) (Settings, error) {
	s := DefaultSettings()
	s.CacheCapacity = mgr.GetIntWithDefault(KeyCacheCapacity, s.CacheCapacity)
	s.TextCacheCapacity = mgr.GetIntWithDefault(KeyTextCacheCapacity, s.TextCacheCapacity)
	s.StateCapacity = mgr.GetIntWithDefault(KeyStateCapacity, s.StateCapacity)
	s.StateTTL = mgr.GetDurationWithDefault(KeyStateTTL, s.StateTTL)
	s.SequenceGap = mgr.GetDurationWithDefault(KeySequenceGap, s.SequenceGap)
	s.StoreBackend = mgr.GetStringWithDefault(KeyStore, s.StoreBackend)
	s.ModelsFile = mgr.GetStringWithDefault(KeyModelsFile, "")

	path := mgr.GetStringWithDefault(KeyStorePath, defaultStorePath(s.StoreBackend))
	expanded, err := homedir.Expand(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to expand store path %q: %w", path, err)
	}
	s.StorePath = expanded

	if s.ModelsFile != "" {
		if s.ModelsFile, err = homedir.Expand(s.ModelsFile); err != nil {
			return Settings{}, fmt.Errorf("failed to expand models file %q: %w", s.ModelsFile, err)
		}
	}
	return s, nil
}

// LoadDotEnv loads .env files into the environment without overriding
// variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if ok, _ := fileExists(f); ok {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

func defaultStorePath(backend string) string {
	if backend == "sqlite" {
		return filepath.Join(defaultStateDir, "state.db")
	}
	return filepath.Join(defaultStateDir, "state.json")
}

func fileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}
