package cache_rules

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// LoadRoutingRules loads routing rules from a YAML file. An empty path returns the defaults.
func LoadRoutingRules(rulesPath string, logger *zap.Logger) (*RoutingRules, error) {
	if rulesPath == "" {
		logger.Info("No routing rules file configured, using defaults")
		return DefaultRoutingRules(), nil
	}

	logger.Info("Loading routing rules", zap.String("path", rulesPath))

	file, err := os.Open(rulesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open routing rules file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var rules RoutingRules
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&rules); err != nil {
		return nil, fmt.Errorf("failed to decode YAML routing rules: %w", err)
	}

	rules.applyDefaults()

	if err := validateRules(&rules); err != nil {
		return nil, fmt.Errorf("routing rules validation failed: %w", err)
	}

	logger.Info("Routing rules loaded successfully")
	return &rules, nil
}

// validateRules validates the routing rules structure
func validateRules(rules *RoutingRules) error {
	if !strings.HasPrefix(rules.APIPrefix, "/") {
		return fmt.Errorf("api_prefix must start with '/': %q", rules.APIPrefix)
	}

	for class := range rules.Strategies {
		if _, ok := partitionByClass[class]; !ok {
			return fmt.Errorf("unknown resource class %q in strategies", class)
		}
	}

	for _, ext := range append(append([]string{}, rules.AssetExtensions...), rules.ImageExtensions...) {
		if ext == "" || strings.ContainsAny(ext, "./\\") {
			return fmt.Errorf("invalid extension %q", ext)
		}
	}

	return nil
}
