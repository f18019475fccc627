package cmd

import (
	"fmt"
	"os"

	"github.com/ragcore/ragcore/internal/config"
)

// loadConfig reads and validates the configuration at path, or returns the
// documented defaults if path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	return config.Load(data)
}

// configStore wraps cfg in a Store, ready for components that need live
// hot-swap/invalidation (the router's threshold cache, the retriever).
func configStore(cfg *config.Config) *config.Store {
	return config.NewStore(cfg)
}
