// Package rentcast provides a client for the RentCast property and market
// data API.
package rentcast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dmv-price-tracker/internal/listing"
	"github.com/sells-group/dmv-price-tracker/internal/resilience"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.rentcast.io"

// Client defines the RentCast operations used by the region fetcher.
type Client interface {
	// Listings returns the property records for one zip code.
	Listings(ctx context.Context, zip string) ([]listing.RawListing, error)
	// MarketSummary returns aggregate market statistics for one zip code.
	MarketSummary(ctx context.Context, zip string) (*MarketSummary, error)
}

// MarketSummary is the /v1/markets response. Every field is optional.
type MarketSummary struct {
	ID         string      `json:"id,omitempty"`
	ZipCode    string      `json:"zipCode,omitempty"`
	SaleData   *SaleData   `json:"saleData,omitempty"`
	RentalData *RentalData `json:"rentalData,omitempty"`
}

// SaleData holds sale market statistics.
type SaleData struct {
	AveragePrice    *float64 `json:"averagePrice,omitempty"`
	MedianPrice     *float64 `json:"medianPrice,omitempty"`
	TotalListings   *int     `json:"totalListings,omitempty"`
	LastUpdatedDate string   `json:"lastUpdatedDate,omitempty"`
}

// RentalData holds rental market statistics.
type RentalData struct {
	AverageRent   *float64 `json:"averageRent,omitempty"`
	MedianRent    *float64 `json:"medianRent,omitempty"`
	TotalListings *int     `json:"totalListings,omitempty"`
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("rentcast: status %d", e.StatusCode)
	}
	return fmt.Sprintf("rentcast: status %d: %s", e.StatusCode, e.Body)
}

// Option configures the RentCast client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout bounds each individual request.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetry replaces the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	retry   resilience.RetryConfig
	http    *http.Client
}

// NewClient creates a new RentCast client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		timeout: 15 * time.Second,
		retry:   resilience.DefaultRetryConfig(),
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Listings(ctx context.Context, zip string) ([]listing.RawListing, error) {
	body, err := c.get(ctx, "/v1/properties", url.Values{"zipcode": {zip}}, zip)
	if err != nil {
		return nil, eris.Wrapf(err, "rentcast: listings %s", zip)
	}
	raw, err := listing.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrapf(err, "rentcast: listings %s", zip)
	}
	return raw, nil
}

func (c *httpClient) MarketSummary(ctx context.Context, zip string) (*MarketSummary, error) {
	body, err := c.get(ctx, "/v1/markets", url.Values{"zip": {zip}}, zip)
	if err != nil {
		return nil, eris.Wrapf(err, "rentcast: market summary %s", zip)
	}
	var ms MarketSummary
	if err := json.Unmarshal(body, &ms); err != nil {
		return nil, eris.Wrapf(err, "rentcast: decode market summary %s", zip)
	}
	return &ms, nil
}

// get issues one GET with retry on transient failures. Non-2xx responses
// come back as *StatusError, wrapped as transient when worth retrying.
func (c *httpClient) get(ctx context.Context, path string, query url.Values, zip string) ([]byte, error) {
	reqURL := c.baseURL + path + "?" + query.Encode()

	retry := c.retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(path, zip)
	}

	return resilience.Do(ctx, retry, func(ctx context.Context) ([]byte, error) {
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "rentcast: create request")
		}
		req.Header.Set("X-Api-Key", c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "rentcast: request failed")
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "rentcast: read response body")
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			se := &StatusError{StatusCode: resp.StatusCode, Body: truncate(body, 256)}
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(se, resp.StatusCode)
			}
			return nil, se
		}
		return body, nil
	})
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
