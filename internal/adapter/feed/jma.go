package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/quake-map-etl/internal/domain"
)

// JMAClient reads the JMA quake list (bosai/quake/data/list.json).
type JMAClient struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewJMAClient creates a client for the JMA event list at url.
func NewJMAClient(url string, timeout time.Duration, logger *slog.Logger) *JMAClient {
	return &JMAClient{
		url:        url,
		httpClient: newHTTPClient(timeout),
		logger:     logger,
	}
}

// Name returns the source label used in logs, metrics and snapshot status.
func (c *JMAClient) Name() string { return domain.SourceJMA }

// Fetch downloads and decodes the event list. Records come back in feed order.
func (c *JMAClient) Fetch(ctx context.Context) ([]domain.QuakeRecord, error) {
	body, err := get(ctx, c.httpClient, c.url)
	if err != nil {
		return nil, fmt.Errorf("jma: %w", err)
	}

	records, err := DecodeJMA(body)
	if err != nil {
		return nil, fmt.Errorf("jma: %w", err)
	}

	c.logger.Debug("jma feed fetched", "records", len(records))
	return records, nil
}

// DecodeJMA parses a JMA list.json document.
func DecodeJMA(data []byte) ([]domain.QuakeRecord, error) {
	var records []domain.QuakeRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	for i := range records {
		records[i].Source = domain.SourceJMA
	}
	return records, nil
}
