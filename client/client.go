// Package client talks to the bikes JSON API and renders the listing the same
// way the browser client does.
package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Bike is one item of the JSON listing.
type Bike struct {
	ID        uint   `json:"id"`
	Brand     string `json:"brand"`
	Model     string `json:"model"`
	ModelYear int    `json:"model_year"`
	UserID    uint   `json:"user_id"`
	URL       string `json:"url"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the app at baseURL, e.g. "http://localhost:8080".
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListBikes fetches /bikes.json once. No session is needed.
func (c *Client) ListBikes(ctx context.Context) ([]Bike, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/bikes.json", nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch bikes")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("fetch bikes: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var bikes []Bike
	if err := json.NewDecoder(resp.Body).Decode(&bikes); err != nil {
		return nil, errors.Wrap(err, "decode bikes")
	}
	return bikes, nil
}
