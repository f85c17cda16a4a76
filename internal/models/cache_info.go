package models

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ResourceClass groups intercepted requests by URL shape
type ResourceClass string

const (
	ResourceClassAPI   ResourceClass = "api"
	ResourceClassAsset ResourceClass = "asset" // scripts, styles, fonts
	ResourceClassImage ResourceClass = "image"
	ResourceClassPage  ResourceClass = "page"
)

// Strategy is the caching strategy applied to a resource class
type Strategy string

const (
	StrategyNetworkFirst         Strategy = "network-first"
	StrategyCacheFirst           Strategy = "cache-first"
	StrategyStaleWhileRevalidate Strategy = "stale-while-revalidate"
)

// UnmarshalYAML implements custom YAML unmarshaling for Strategy
func (s *Strategy) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}

	switch Strategy(str) {
	case StrategyNetworkFirst, StrategyCacheFirst, StrategyStaleWhileRevalidate:
		*s = Strategy(str)
		return nil
	default:
		return fmt.Errorf("invalid strategy '%s': must be one of 'network-first', 'cache-first', 'stale-while-revalidate'", str)
	}
}

// Partition prefixes, combined with the build version as {prefix}-{version}
const (
	PartitionStatic  = "static"
	PartitionDynamic = "dynamic"
	PartitionAPI     = "api"
	PartitionImages  = "images"
)

// PartitionPrefixes lists every prefix owned by the agent
var PartitionPrefixes = []string{PartitionStatic, PartitionDynamic, PartitionAPI, PartitionImages}

// RouteInfo is the routing decision for one request
type RouteInfo struct {
	Class     ResourceClass `json:"class"`
	Strategy  Strategy      `json:"strategy"`
	Partition string        `json:"partition"` // prefix only
}
