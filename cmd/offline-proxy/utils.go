package main

import (
	"os"
	"strings"

	"go.uber.org/zap"

	"go-offline-proxy/internal/config"
)

// GetConfigPath returns the configuration file path
func GetConfigPath() string {
	if path := os.Getenv("OFFLINE_PROXY_CONFIG"); path != "" {
		return path
	}
	return "/app/offline_proxy.yaml"
}

// GetKeyDBURL returns KeyDB URL with the following priority:
// 1. keydb.url from configuration (OFFLINE_PROXY_KEYDB_URL overrides it)
// 2. OFFLINE_PROXY_KEYDB_URL_FILE file content
// 3. Default value
func GetKeyDBURL(cfg *config.KeyDBConfig, logger *zap.Logger) string {
	// Priority 1: Configuration
	if cfg.URL != "" {
		logger.Debug("Using KeyDB URL from configuration")
		return cfg.URL
	}

	// Priority 2: Configurable connection file path
	connectionFile := os.Getenv("OFFLINE_PROXY_KEYDB_URL_FILE")
	if connectionFile == "" {
		connectionFile = "/app/.keydb-url"
	}

	if content, err := os.ReadFile(connectionFile); err == nil {
		keydbURL := strings.TrimSpace(string(content))
		if len(keydbURL) > 0 {
			logger.Debug("Using KeyDB URL from connection file", zap.String("file", connectionFile))
			return keydbURL
		}
	} else {
		logger.Debug("KeyDB connection file not found or empty", zap.String("file", connectionFile))
	}

	// Priority 3: Default
	logger.Debug("Using default KeyDB URL")
	return "redis://keydb:6379"
}
