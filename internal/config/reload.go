/*-------------------------------------------------------------------------
 *
 * DB Query Gateway
 *
 * Copyright (c) 2026, the DB Query Gateway authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package config

import (
	"fmt"
	"sync"

	"dbquery-gateway/internal/logging"
)

// ReloadableConfig wraps a Config with thread-safe access and reload
// capability
type ReloadableConfig struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	cliFlags CLIFlags
	onReload []func(*Config)
}

// NewReloadableConfig creates a new reloadable configuration
func NewReloadableConfig(config *Config, path string, cliFlags CLIFlags) *ReloadableConfig {
	return &ReloadableConfig{
		config:   config,
		path:     path,
		cliFlags: cliFlags,
		onReload: make([]func(*Config), 0),
	}
}

// Get returns the current configuration (read-only access)
func (rc *ReloadableConfig) Get() *Config {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.config
}

// Reload reloads the configuration from the file. On failure the old config
// stays in effect.
func (rc *ReloadableConfig) Reload() error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.path == "" {
		return fmt.Errorf("no configuration file path set")
	}

	newConfig, err := LoadConfig(rc.path, rc.cliFlags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	rc.logRestartRequiredSettings(newConfig)

	rc.config = newConfig

	for _, callback := range rc.onReload {
		callback(newConfig)
	}

	logging.Info("configuration reloaded", "path", rc.path)
	return nil
}

// logRestartRequiredSettings logs settings that changed but only take
// effect after a restart
func (rc *ReloadableConfig) logRestartRequiredSettings(newConfig *Config) {
	old := rc.config

	if old.HTTP.Address != newConfig.HTTP.Address {
		logging.Warn("http.address changed, requires restart",
			"old", old.HTTP.Address, "new", newConfig.HTTP.Address)
	}
	if old.Store.DataDir != newConfig.Store.DataDir {
		logging.Warn("store.data_dir changed, requires restart",
			"old", old.Store.DataDir, "new", newConfig.Store.DataDir)
	}
	if old.LLM.Provider != newConfig.LLM.Provider {
		logging.Info("llm.provider changed", "provider", newConfig.LLM.Provider)
	}
	if old.LLM.Model != newConfig.LLM.Model {
		logging.Info("llm.model changed", "model", newConfig.LLM.Model)
	}
}

// OnReload registers a callback invoked with the new configuration after
// every successful reload
func (rc *ReloadableConfig) OnReload(fn func(*Config)) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.onReload = append(rc.onReload, fn)
}

// GetPath returns the configuration file path
func (rc *ReloadableConfig) GetPath() string {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.path
}
