package offline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"go-offline-proxy/internal/interfaces"
	"go-offline-proxy/internal/models"
)

// IdempotencyKeyHeader carries the mutation id so receivers can drop duplicates
const IdempotencyKeyHeader = "Idempotency-Key"

// Ensure HTTPDeliverer implements interfaces.Deliverer
var _ interfaces.Deliverer = (*HTTPDeliverer)(nil)

// HTTPDeliverer replays mutations as POST {baseURL}/{key}
type HTTPDeliverer struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPDeliverer creates a deliverer for the sync endpoint at baseURL
func NewHTTPDeliverer(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPDeliverer {
	return &HTTPDeliverer{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Deliver posts the mutation payload; any non-2xx status is a failure
func (d *HTTPDeliverer) Deliver(ctx context.Context, m *models.QueuedMutation) error {
	target := d.baseURL + "/" + url.PathEscape(m.Key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(m.Payload))
	if err != nil {
		return fmt.Errorf("build sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(IdempotencyKeyHeader, m.ID)
	req.Header.Set("X-Enqueued-At", strconv.FormatInt(m.EnqueuedAt, 10))

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("sync %s: %w", m.Key, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sync %s: unexpected status %d", m.Key, resp.StatusCode)
	}
	d.logger.Debug("Delivered mutation", zap.String("key", m.Key), zap.String("id", m.ID))
	return nil
}
