package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/whotalks/internal/errors"
	"github.com/coral-mesh/whotalks/pkg/version"
)

// Lookuper resolves one IP address to a location.
type Lookuper interface {
	Lookup(ctx context.Context, ip string) (Location, error)
}

// IPInfoClient queries the ipinfo.io JSON API.
type IPInfoClient struct {
	logger   zerolog.Logger
	client   *http.Client
	endpoint string
	token    string
}

// NewIPInfoClient creates a client for endpoint (e.g. https://ipinfo.io)
// authenticating with token.
func NewIPInfoClient(logger zerolog.Logger, endpoint, token string, timeout time.Duration) *IPInfoClient {
	return &IPInfoClient{
		logger:   logger.With().Str("component", "ipinfo").Logger(),
		client:   &http.Client{Timeout: timeout},
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
	}
}

// ipinfoResponse is the subset of the ipinfo.io record whotalks consumes.
type ipinfoResponse struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

// Lookup implements Lookuper.
func (c *IPInfoClient) Lookup(ctx context.Context, ip string) (Location, error) {
	ip = strings.Trim(ip, "[]")

	u := fmt.Sprintf("%s/%s/json?token=%s", c.endpoint, url.PathEscape(ip), url.QueryEscape(c.token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Location{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.client.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("request failed: %w", err)
	}
	defer errors.DeferClose(c.logger, resp.Body, "failed to close ipinfo response body")

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("%w: %s returned status %d", ErrLookupFailed, ip, resp.StatusCode)
	}

	var body ipinfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Trace().Str("ip", ip).Str("city", body.City).Str("country", body.Country).Msg("Geolocation lookup")

	return Location{Country: body.Country, City: body.City}, nil
}
