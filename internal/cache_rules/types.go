package cache_rules

import (
	"go-offline-proxy/internal/models"
)

// RoutingRules represents the resource routing configuration
type RoutingRules struct {
	APIPrefix       string                                   `yaml:"api_prefix"`
	AssetExtensions []string                                 `yaml:"asset_extensions"`
	ImageExtensions []string                                 `yaml:"image_extensions"`
	Strategies      map[models.ResourceClass]models.Strategy `yaml:"strategies"`
}

// DefaultRoutingRules returns the built-in routing table
func DefaultRoutingRules() *RoutingRules {
	return &RoutingRules{
		APIPrefix:       "/api/",
		AssetExtensions: []string{"js", "css", "woff", "woff2", "ttf"},
		ImageExtensions: []string{"png", "jpg", "jpeg", "gif", "svg", "webp"},
		Strategies: map[models.ResourceClass]models.Strategy{
			models.ResourceClassAPI:   models.StrategyNetworkFirst,
			models.ResourceClassAsset: models.StrategyCacheFirst,
			models.ResourceClassImage: models.StrategyCacheFirst,
			models.ResourceClassPage:  models.StrategyStaleWhileRevalidate,
		},
	}
}

// partitionByClass maps every resource class to the partition prefix it is stored in
var partitionByClass = map[models.ResourceClass]string{
	models.ResourceClassAPI:   models.PartitionAPI,
	models.ResourceClassAsset: models.PartitionStatic,
	models.ResourceClassImage: models.PartitionImages,
	models.ResourceClassPage:  models.PartitionDynamic,
}
