// Package mapbox provides a client for the Mapbox Directions API.
package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/swasthyasetu/swasthyasetu/internal/provider/resilience"
	"github.com/swasthyasetu/swasthyasetu/internal/routing"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "mapbox"

	// DefaultBaseURL is the Mapbox API base URL.
	DefaultBaseURL = "https://api.mapbox.com"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
)

var mapboxProfiles = map[routing.RouteProfile]string{
	routing.ProfileDriving: "mapbox/driving",
	routing.ProfileWalking: "mapbox/walking",
}

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Mapbox client.
type ClientConfig struct {
	// AccessToken is the Mapbox access token (required).
	AccessToken string

	// BaseURL is the API base URL (optional).
	BaseURL string

	// HTTPClient overrides the resilient default client (optional).
	HTTPClient HTTPDoer

	// Timeout is the request timeout (default: 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	Logger zerolog.Logger
}

// Client is a Mapbox Directions API client.
type Client struct {
	token      string
	baseURL    string
	httpClient HTTPDoer
	registry   *resilience.Registry
	logger     zerolog.Logger
}

// NewClient creates a new Mapbox client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.Registry = cfg.Registry
		clientCfg.Logger = cfg.Logger
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		token:      cfg.AccessToken,
		baseURL:    baseURL,
		httpClient: httpClient,
		registry:   cfg.Registry,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string { return ProviderName }

// SupportedProfiles returns the supported routing profiles.
func (c *Client) SupportedProfiles() []routing.RouteProfile {
	return []routing.RouteProfile{routing.ProfileDriving, routing.ProfileWalking}
}

// GetDirections requests a route with alternatives. Mapbox decides how many
// alternatives to return (at most two); MaxAlternatives is not forwarded.
func (c *Client) GetDirections(ctx context.Context, req routing.DirectionsRequest) (*routing.DirectionsResponse, error) {
	profile, ok := mapboxProfiles[req.Profile]
	if !ok {
		if req.Profile != "" {
			return nil, &routing.Error{
				Provider: ProviderName,
				Code:     "UNSUPPORTED_PROFILE",
				Message:  fmt.Sprintf("profile %q is not supported", req.Profile),
				Err:      routing.ErrUnsupportedProfile,
			}
		}
		profile = mapboxProfiles[routing.ProfileDriving]
	}

	coords := fmt.Sprintf("%f,%f;%f,%f",
		req.Origin.Lng, req.Origin.Lat,
		req.Destination.Lng, req.Destination.Lat,
	)

	q := url.Values{}
	q.Set("alternatives", "true")
	q.Set("geometries", "polyline")
	q.Set("overview", "full")
	q.Set("steps", "false")
	q.Set("access_token", c.token)

	endpoint := fmt.Sprintf("%s/directions/v5/%s/%s?%s", c.baseURL, profile, coords, q.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("profile", profile).
		Str("origin", req.Origin.String()).
		Str("destination", req.Destination.String()).
		Msg("requesting directions from Mapbox")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.recordFailure(err)
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach routing provider",
			Err:      fmt.Errorf("%w: %w", routing.ErrProviderUnavailable, err),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordFailure(err)
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "READ_FAILED",
			Message:  "failed to read routing response",
			Err:      fmt.Errorf("%w: %w", routing.ErrProviderUnavailable, err),
		}
	}

	var payload directionsResponse
	decodeErr := json.Unmarshal(body, &payload)

	if resp.StatusCode != http.StatusOK {
		mapped := mapError(resp.StatusCode, payload, decodeErr)
		if routing.IsProviderError(mapped) {
			c.recordFailure(mapped)
		}
		return nil, mapped
	}
	if decodeErr != nil {
		c.recordFailure(decodeErr)
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "DECODE_FAILED",
			Message:  "could not decode directions response",
			Err:      fmt.Errorf("%w: %w", routing.ErrMalformedResponse, decodeErr),
		}
	}
	if payload.Code != "" && payload.Code != codeOK {
		return nil, mapError(resp.StatusCode, payload, nil)
	}

	result, err := toDirectionsResponse(payload)
	if err != nil {
		c.recordFailure(err)
		return nil, err
	}
	c.recordSuccess()

	c.logger.Debug().Int("route_count", len(result.Routes)).Msg("received directions from Mapbox")
	return result, nil
}

// mapError converts a non-OK answer into a routing error. Mapbox reports
// unroutable requests with a code in the body, sometimes alongside 200.
func mapError(status int, payload directionsResponse, decodeErr error) error {
	if decodeErr == nil {
		switch payload.Code {
		case codeNoRoute, codeNoSegment:
			return &routing.Error{Provider: ProviderName, Code: "NO_ROUTE", Message: payload.message(), Err: routing.ErrNoRouteFound}
		case codeInvalidInput:
			return &routing.Error{Provider: ProviderName, Code: "BAD_REQUEST", Message: payload.message(), Err: routing.ErrInvalidCoordinates}
		case codeProfileNotFound:
			return &routing.Error{Provider: ProviderName, Code: "UNSUPPORTED_PROFILE", Message: payload.message(), Err: routing.ErrUnsupportedProfile}
		}
	}

	switch {
	case status == http.StatusTooManyRequests:
		return &routing.Error{Provider: ProviderName, Code: "RATE_LIMIT", Message: "API rate limit exceeded, please try again later", Err: routing.ErrRateLimitExceeded}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &routing.Error{Provider: ProviderName, Code: "FORBIDDEN", Message: "API access denied - check access token", Err: routing.ErrProviderUnavailable}
	case status == http.StatusNotFound:
		return &routing.Error{Provider: ProviderName, Code: "NOT_FOUND", Message: "directions endpoint not found", Err: routing.ErrProviderUnavailable}
	case status >= 500:
		return &routing.Error{Provider: ProviderName, Code: fmt.Sprintf("SERVER_%d", status), Message: "routing provider is temporarily unavailable", Err: routing.ErrProviderUnavailable}
	}
	return &routing.Error{
		Provider: ProviderName,
		Code:     fmt.Sprintf("HTTP_%d", status),
		Message:  fmt.Sprintf("routing provider returned status %d", status),
		Err:      routing.ErrProviderUnavailable,
	}
}

func toDirectionsResponse(payload directionsResponse) (*routing.DirectionsResponse, error) {
	routes := make([]routing.Route, 0, len(payload.Routes))
	for i, r := range payload.Routes {
		geometry, err := routing.DecodeGeometry(r.Geometry, 1e5)
		if err != nil {
			return nil, &routing.Error{
				Provider: ProviderName,
				Code:     "BAD_GEOMETRY",
				Message:  fmt.Sprintf("route %d has undecodable geometry", i),
				Err:      fmt.Errorf("%w: %w", routing.ErrMalformedResponse, err),
			}
		}

		var summaries []string
		for _, leg := range r.Legs {
			if leg.Summary != "" {
				summaries = append(summaries, leg.Summary)
			}
		}

		route := routing.Route{
			Geometry:        geometry,
			DistanceMeters:  r.Distance,
			DurationSeconds: r.Duration,
			BoundingBox:     routing.BoundsOf(geometry),
		}
		if len(summaries) > 0 {
			route.Summary = "via " + strings.Join(summaries, ", ")
		}
		routes = append(routes, route)
	}

	return &routing.DirectionsResponse{
		Routes:    routes,
		Provider:  ProviderName,
		FetchedAt: time.Now(),
	}, nil
}

func (c *Client) recordSuccess() {
	if c.registry != nil {
		c.registry.RecordSuccess(ProviderName)
	}
}

func (c *Client) recordFailure(err error) {
	if c.registry != nil {
		c.registry.RecordFailure(ProviderName, err)
	}
}
