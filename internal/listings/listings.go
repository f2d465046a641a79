// File path: internal/listings/listings.go
package listings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Listing is a competing rental currently advertised on the open market.
type Listing struct {
	Address    string  `json:"address"`
	Price      float64 `json:"price"`
	Bedrooms   int     `json:"bedrooms"`
	Bathrooms  float64 `json:"bathrooms,omitempty"`
	Sqft       int     `json:"sqft,omitempty"`
	ListingURL string  `json:"listing_url,omitempty"`
}

// Provider fetches competing listings for a market. Implementations may
// fail; callers treat failure as "no listings" rather than an error worth
// surfacing.
type Provider interface {
	Fetch(ctx context.Context, town string, bedrooms int) ([]Listing, error)
}

// Client talks to an external listing-scraper service over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClientFromEnv builds a Client from LISTINGS_BASE_URL and
// LISTINGS_API_KEY. It returns nil when no base URL is configured, which
// callers treat as "listings disabled".
func NewClientFromEnv() *Client {
	base := strings.TrimSpace(os.Getenv("LISTINGS_BASE_URL"))
	if base == "" {
		return nil
	}
	return NewClient(base, os.Getenv("LISTINGS_API_KEY"))
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(apiKey),
	}
}

// Fetch returns current listings for a town and bedroom count.
func (c *Client) Fetch(ctx context.Context, town string, bedrooms int) ([]Listing, error) {
	if c == nil || c.httpClient == nil {
		return nil, errors.New("listings client not initialised")
	}
	query := url.Values{}
	query.Set("town", town)
	query.Set("bedrooms", strconv.Itoa(bedrooms))
	endpoint := fmt.Sprintf("%s/v1/listings?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build listings request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch listings: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listings service returned %d", resp.StatusCode)
	}

	var payload struct {
		Listings []Listing `json:"listings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode listings: %w", err)
	}
	cleaned := make([]Listing, 0, len(payload.Listings))
	for _, listing := range payload.Listings {
		if listing.Price > 0 {
			cleaned = append(cleaned, listing)
		}
	}
	return cleaned, nil
}
