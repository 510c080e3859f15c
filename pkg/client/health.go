package client

import (
	"context"

	"github.com/localparts/tokenbridge/internal/api"
)

type HealthResponse struct {
	Status string `json:"status"`
}

// Health reports whether the proxy is up.
func (c *Client) Health(ctx context.Context) (*HealthResponse, string, error) {
	var resp HealthResponse
	correlation, err := c.get(ctx, c.url().
		setPath(api.HealthCheckRoute).
		build(), &resp)
	if err != nil {
		return nil, correlation, err
	}
	return &resp, correlation, nil
}
