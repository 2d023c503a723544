// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package geoip

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/riskguard/internal/detection"
)

// DefaultHTTPURL is the ip-api compatible endpoint used when none is configured.
const DefaultHTTPURL = "http://ip-api.com"

const ipAPIFields = "status,message,country,countryCode,city,lat,lon,proxy,hosting"

// ipAPIResponse is the ip-api.com JSON shape.
type ipAPIResponse struct {
	Status      string  `json:"status"`
	Message     string  `json:"message"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Proxy       bool    `json:"proxy"`
	Hosting     bool    `json:"hosting"`
}

// HTTPResolver queries an ip-api compatible service.
type HTTPResolver struct {
	baseURL string
	client  *http.Client
}

// NewHTTPResolver creates a resolver for baseURL with the given client timeout.
func NewHTTPResolver(baseURL string, timeout time.Duration) *HTTPResolver {
	if baseURL == "" {
		baseURL = DefaultHTTPURL
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPResolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Resolve implements Resolver.
func (r *HTTPResolver) Resolve(ctx context.Context, ip string) (*detection.LocationData, error) {
	endpoint := fmt.Sprintf("%s/json/%s?fields=%s", r.baseURL, url.PathEscape(ip), ipAPIFields)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query location service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("location service returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload ipAPIResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode location response: %w", err)
	}

	if payload.Status != "success" {
		switch payload.Message {
		case "invalid query":
			return nil, fmt.Errorf("%w: %q", ErrInvalidIP, ip)
		default:
			return nil, fmt.Errorf("%w: %s", ErrLocationNotFound, payload.Message)
		}
	}

	country := payload.CountryCode
	if country == "" {
		country = payload.Country
	}
	return &detection.LocationData{
		IP:        ip,
		Country:   country,
		City:      payload.City,
		Latitude:  payload.Lat,
		Longitude: payload.Lon,
		IsProxy:   payload.Proxy || payload.Hosting,
	}, nil
}
