// Package thredds checks that an OPeNDAP data source on a THREDDS server is
// reachable before a batch commits to hours of simulation.
package thredds

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/drift-batch/internal/observability"
)

// Client probes OPeNDAP endpoints.
type Client struct {
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a probe client with the given request timeout.
func NewClient(timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Probe fetches the dataset descriptor (<source>.dds) and fails unless the
// server answers 200 with a DDS document.
func (c *Client) Probe(ctx context.Context, source string) error {
	start := time.Now()
	err := c.probe(ctx, source)
	c.metrics.ProbeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.ProbeFailures.Inc()
		return err
	}
	c.logger.Info("data source reachable", "source", source, "elapsed", time.Since(start))
	return nil
}

func (c *Client) probe(ctx context.Context, source string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ddsURL(source), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("probe data source: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("data source error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if !strings.HasPrefix(strings.TrimSpace(string(body)), "Dataset") {
		return fmt.Errorf("data source %s did not return a DDS document", source)
	}
	return nil
}

// ddsURL appends the OPeNDAP .dds suffix, keeping any query string last.
func ddsURL(source string) string {
	base, query, found := strings.Cut(source, "?")
	if found {
		return base + ".dds?" + query
	}
	return base + ".dds"
}
