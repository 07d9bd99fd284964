// Package openrouteservice provides a client for the OpenRouteService directions API.
package openrouteservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/swasthyasetu/swasthyasetu/internal/provider/resilience"
	"github.com/swasthyasetu/swasthyasetu/internal/routing"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "openrouteservice"

	// DefaultBaseURL is the OpenRouteService API base URL.
	DefaultBaseURL = "https://api.openrouteservice.org"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
)

// orsProfiles maps routing profiles onto ORS profile path segments.
var orsProfiles = map[routing.RouteProfile]string{
	routing.ProfileDriving: "driving-car",
	routing.ProfileWalking: "foot-walking",
}

// HTTPDoer sends a request; *http.Client and *resilience.Client satisfy it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig configures a Client. Only APIKey is required. Without an
// HTTPClient, calls go through a circuit-breaking resilience.Client that
// reports to Registry.
type ClientConfig struct {
	APIKey     string
	BaseURL    string
	HTTPClient HTTPDoer
	Timeout    time.Duration
	Registry   *resilience.Registry
	Logger     zerolog.Logger
}

// Client is an OpenRouteService API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	registry   *resilience.Registry
	logger     zerolog.Logger
}

// NewClient creates a new OpenRouteService client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
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
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		registry:   cfg.Registry,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// SupportedProfiles returns the supported routing profiles.
func (c *Client) SupportedProfiles() []routing.RouteProfile {
	return []routing.RouteProfile{routing.ProfileDriving, routing.ProfileWalking}
}

// GetDirections asks ORS for the fastest route between two points plus up
// to MaxAlternatives alternatives (two when unset). Routes keep ORS's order.
func (c *Client) GetDirections(ctx context.Context, req routing.DirectionsRequest) (*routing.DirectionsResponse, error) {
	profile, err := profileFor(req.Profile)
	if err != nil {
		return nil, err
	}

	httpReq, err := c.newDirectionsRequest(ctx, profile, req)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("profile", profile).
		Str("origin", req.Origin.String()).
		Str("destination", req.Destination.String()).
		Msg("requesting directions from ORS")

	body, status, err := c.send(httpReq)
	if err != nil {
		c.recordFailure(err)
		return nil, providerError("REQUEST_FAILED", "failed to reach routing provider",
			fmt.Errorf("%w: %w", routing.ErrProviderUnavailable, err))
	}

	if status != http.StatusOK {
		mapped := mapStatus(status, body)
		if routing.IsProviderError(mapped) {
			c.recordFailure(mapped)
		}
		return nil, mapped
	}

	result, err := decodeDirections(body)
	if err != nil {
		c.recordFailure(err)
		return nil, err
	}
	c.recordSuccess()

	c.logger.Debug().Int("route_count", len(result.Routes)).Msg("received directions from ORS")
	return result, nil
}

func profileFor(p routing.RouteProfile) (string, error) {
	if p == "" {
		return orsProfiles[routing.ProfileDriving], nil
	}
	if profile, ok := orsProfiles[p]; ok {
		return profile, nil
	}
	return "", providerError("UNSUPPORTED_PROFILE", fmt.Sprintf("profile %q is not supported", p), routing.ErrUnsupportedProfile)
}

func (c *Client) newDirectionsRequest(ctx context.Context, profile string, req routing.DirectionsRequest) (*http.Request, error) {
	alternatives := req.MaxAlternatives
	if alternatives <= 0 {
		alternatives = 2
	}

	body, err := json.Marshal(directionsRequest{
		Coordinates: [][]float64{
			{req.Origin.Lng, req.Origin.Lat},
			{req.Destination.Lng, req.Destination.Lat},
		},
		// target_count counts the primary route too.
		AlternativeRoutes: &alternativeRoutes{TargetCount: alternatives + 1, ShareFactor: 0.6, WeightFactor: 1.4},
		Instructions:      true,
		Geometry:          true,
		Units:             "m",
		Language:          "en",
		Preference:        "fastest",
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/directions/"+profile, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, application/geo+json")
	httpReq.Header.Set("Authorization", c.apiKey)
	return httpReq, nil
}

func (c *Client) send(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("reading response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func providerError(code, message string, err error) *routing.Error {
	return &routing.Error{Provider: ProviderName, Code: code, Message: message, Err: err}
}

// mapStatus turns a non-200 ORS reply into a routing error. A 400 is a
// missing route when ORS says so in its error code and bad input otherwise.
func mapStatus(status int, body []byte) error {
	var payload apiError
	if err := json.Unmarshal(body, &payload); err != nil {
		return providerError(fmt.Sprintf("HTTP_%d", status),
			fmt.Sprintf("routing provider returned status %d", status), routing.ErrProviderUnavailable)
	}
	msg := payload.Error.Message

	switch {
	case status == http.StatusTooManyRequests:
		return providerError("RATE_LIMIT", "API rate limit exceeded, please try again later", routing.ErrRateLimitExceeded)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return providerError("FORBIDDEN", "API access denied, check the ORS API key", routing.ErrProviderUnavailable)
	case status == http.StatusNotFound:
		return providerError("NO_ROUTE", "no route found between the given points", routing.ErrNoRouteFound)
	case status == http.StatusBadRequest:
		if code := payload.Error.Code; code == errCodeRouteNotFound || code == errCodePointNotFound {
			return providerError("NO_ROUTE", msg, routing.ErrNoRouteFound)
		}
		return providerError("BAD_REQUEST", msg, routing.ErrInvalidCoordinates)
	case status >= http.StatusInternalServerError:
		return providerError(fmt.Sprintf("SERVER_%d", status), "routing provider is temporarily unavailable", routing.ErrProviderUnavailable)
	default:
		return providerError(fmt.Sprintf("HTTP_%d", status), msg, routing.ErrProviderUnavailable)
	}
}

func decodeDirections(body []byte) (*routing.DirectionsResponse, error) {
	var payload directionsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, providerError("DECODE_FAILED", "could not decode directions response",
			fmt.Errorf("%w: %w", routing.ErrMalformedResponse, err))
	}

	routes := make([]routing.Route, 0, len(payload.Routes))
	for i, r := range payload.Routes {
		geometry, err := routing.DecodeGeometry(r.Geometry, 1e5)
		if err != nil {
			return nil, providerError("BAD_GEOMETRY", fmt.Sprintf("route %d has undecodable geometry", i),
				fmt.Errorf("%w: %w", routing.ErrMalformedResponse, err))
		}

		route := routing.Route{
			Geometry:        geometry,
			DistanceMeters:  r.Summary.Distance,
			DurationSeconds: r.Summary.Duration,
			Summary:         summarize(r.Segments),
			BoundingBox:     routing.BoundsOf(geometry),
		}
		if len(r.BBox) >= 4 {
			route.BoundingBox = &routing.BoundingBox{MinLng: r.BBox[0], MinLat: r.BBox[1], MaxLng: r.BBox[2], MaxLat: r.BBox[3]}
		}
		routes = append(routes, route)
	}

	return &routing.DirectionsResponse{Routes: routes, Provider: ProviderName, FetchedAt: time.Now()}, nil
}

// summarize names the road carrying the longest step, e.g. "via Ghodbunder Road".
func summarize(legs []routeLeg) string {
	var longest legStep
	for _, leg := range legs {
		for _, step := range leg.Steps {
			if step.Name != "" && step.Name != "-" && step.Distance > longest.Distance {
				longest = step
			}
		}
	}
	if longest.Name == "" {
		return ""
	}
	return "via " + longest.Name
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
