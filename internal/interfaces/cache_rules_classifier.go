package interfaces

import (
	"go-offline-proxy/internal/models"
)

// ResourceClassifier maps a request path to its resource class, strategy and partition
type ResourceClassifier interface {
	Classify(path string) models.RouteInfo
}
