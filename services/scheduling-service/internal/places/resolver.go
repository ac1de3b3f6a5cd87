// Package places resolves free-text property addresses into structured
// records via the address verification vendor. Resolution is best effort:
// booking proceeds with the raw string when the vendor is down.
package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Address is the structured record the vendor returns.
type Address struct {
	Street1    string  `json:"street1"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postalCode"`
	County     string  `json:"county"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	PlaceID    string  `json:"placeId"`
}

// ErrNoMatch is returned when the vendor found nothing for the query.
var ErrNoMatch = errors.New("no address match")

type Resolver interface {
	Resolve(ctx context.Context, query string) (Address, error)
}

type HTTPResolver struct {
	url   string
	token string
	http  *http.Client
}

func NewHTTPResolver(baseURL string, token string) *HTTPResolver {
	return &HTTPResolver{
		url:   strings.TrimSpace(baseURL),
		token: strings.TrimSpace(token),
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (r *HTTPResolver) Resolve(ctx context.Context, query string) (Address, error) {
	if r.url == "" {
		return Address{}, errors.New("places url not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return Address{}, err
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return Address{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return Address{}, ErrNoMatch
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Address{}, fmt.Errorf("places returned status %d", resp.StatusCode)
	}

	var results []Address
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return Address{}, err
	}
	if len(results) == 0 {
		return Address{}, ErrNoMatch
	}
	return results[0], nil
}
