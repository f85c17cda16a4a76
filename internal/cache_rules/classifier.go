package cache_rules

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"go-offline-proxy/internal/interfaces"
	"go-offline-proxy/internal/models"
)

// Classifier implements the ResourceClassifier interface
type Classifier struct {
	logger  *zap.Logger
	rules   *RoutingRules
	assetRe *regexp.Regexp
	imageRe *regexp.Regexp
}

// Ensure Classifier implements the ResourceClassifier interface
var _ interfaces.ResourceClassifier = (*Classifier)(nil)

// NewClassifier creates a new Classifier instance
func NewClassifier(logger *zap.Logger, rules *RoutingRules) *Classifier {
	if rules == nil {
		rules = DefaultRoutingRules()
	}
	return &Classifier{
		logger:  logger,
		rules:   rules,
		assetRe: extensionPattern(rules.AssetExtensions),
		imageRe: extensionPattern(rules.ImageExtensions),
	}
}

// extensionPattern builds \.(a|b|c)$
func extensionPattern(exts []string) *regexp.Regexp {
	quoted := make([]string, len(exts))
	for i, ext := range exts {
		quoted[i] = regexp.QuoteMeta(ext)
	}
	return regexp.MustCompile(`\.(` + strings.Join(quoted, "|") + `)$`)
}

// Classify implements ResourceClassifier interface. The API prefix is checked
// before file extensions, so /api/report.js is an API call.
func (c *Classifier) Classify(path string) models.RouteInfo {
	class := c.classOf(path)
	return models.RouteInfo{
		Class:     class,
		Strategy:  c.rules.StrategyFor(class),
		Partition: PartitionFor(class),
	}
}

func (c *Classifier) classOf(path string) models.ResourceClass {
	switch {
	case strings.HasPrefix(path, c.rules.APIPrefix):
		return models.ResourceClassAPI
	case c.assetRe.MatchString(path):
		return models.ResourceClassAsset
	case c.imageRe.MatchString(path):
		return models.ResourceClassImage
	default:
		return models.ResourceClassPage
	}
}

// Rules returns the routing rules in use
func (c *Classifier) Rules() *RoutingRules {
	return c.rules
}
