package agent

import (
	"time"

	"go-offline-proxy/internal/config"
)

func testBreakerConfig() config.BreakerConfig {
	return config.BreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 1,
		MinRequests:      10,
	}
}
