package cache_rules

import (
	"go-offline-proxy/internal/models"
)

// applyDefaults fills every section missing from a loaded rules file
func (r *RoutingRules) applyDefaults() {
	defaults := DefaultRoutingRules()

	if r.APIPrefix == "" {
		r.APIPrefix = defaults.APIPrefix
	}
	if len(r.AssetExtensions) == 0 {
		r.AssetExtensions = defaults.AssetExtensions
	}
	if len(r.ImageExtensions) == 0 {
		r.ImageExtensions = defaults.ImageExtensions
	}
	if r.Strategies == nil {
		r.Strategies = make(map[models.ResourceClass]models.Strategy, len(defaults.Strategies))
	}
	for class, strategy := range defaults.Strategies {
		if _, ok := r.Strategies[class]; !ok {
			r.Strategies[class] = strategy
		}
	}
}

// StrategyFor returns the caching strategy of a resource class
func (r *RoutingRules) StrategyFor(class models.ResourceClass) models.Strategy {
	if strategy, ok := r.Strategies[class]; ok {
		return strategy
	}
	return models.StrategyNetworkFirst
}

// PartitionFor returns the partition prefix of a resource class
func PartitionFor(class models.ResourceClass) string {
	if prefix, ok := partitionByClass[class]; ok {
		return prefix
	}
	return models.PartitionDynamic
}
