// Package stats forwards device reports to an upstream analytics endpoint.
package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/bs3vcenk/Netrix-sub000/internal/config"
	"github.com/bs3vcenk/Netrix-sub000/internal/logger"
	"github.com/bs3vcenk/Netrix-sub000/internal/model"

	"github.com/rs/zerolog"
)

type Client struct {
	url        string
	httpClient *http.Client
	log        zerolog.Logger
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		url:        cfg.Stats.ForwardURL,
		httpClient: &http.Client{Timeout: cfg.Stats.Timeout},
		log:        logger.Component("stats"),
	}
}

// Enabled reports whether a forward URL is configured.
func (c *Client) Enabled() bool {
	return c.url != ""
}

func (c *Client) Send(ctx context.Context, report model.StatsReport) error {
	if !c.Enabled() {
		return nil
	}

	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal stats report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create stats request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("stats request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("stats endpoint returned status %d", resp.StatusCode)
	}

	c.log.Debug().Str("platform", report.Platform).Msg("Forwarded device report")
	return nil
}
