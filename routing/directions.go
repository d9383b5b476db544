// Package routing resolves driving routes through the Mapbox Directions
// API. One request per call, no caching; the caller owns waypoint order.
package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"food-delivery/tracking/geo"
)

const (
	ProfileDriving = "driving"
	ProfileWalking = "walking"
	ProfileCycling = "cycling"
)

var (
	// ErrInvalidWaypoints means fewer than two valid waypoints were
	// supplied; no request is issued in that case.
	ErrInvalidWaypoints = errors.New("routing: need at least two valid waypoints")
	// ErrNoRouteFound means the provider answered with an empty route
	// set. Callers surface it without retrying; the user may explicitly
	// request navigation again.
	ErrNoRouteFound = errors.New("routing: no routes found between these locations")
	// ErrMissingToken means no provider access token is configured.
	ErrMissingToken = errors.New("routing: access token is missing")
)

// LineString is the GeoJSON geometry returned by the provider.
type LineString struct {
	Type        string           `json:"type"`
	Coordinates []geo.Coordinate `json:"coordinates"`
}

// Route is the resolved path with its trip estimates. Duration is rounded
// up to whole minutes, distance to one decimal kilometer.
type Route struct {
	Geometry        LineString `json:"geometry"`
	DurationMinutes int        `json:"durationMinutes"`
	DistanceKm      float64    `json:"distanceKm"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

// ComputeRoute requests directions through the given waypoints, in order.
// Precondition: at least two waypoints, all within GPS range; violations
// fail with ErrInvalidWaypoints before any network traffic.
func (c *Client) ComputeRoute(ctx context.Context, waypoints []geo.Coordinate, profile string) (*Route, error) {
	if len(waypoints) < 2 {
		return nil, ErrInvalidWaypoints
	}
	for _, w := range waypoints {
		if !geo.IsValidGPS(w) {
			return nil, ErrInvalidWaypoints
		}
	}
	if c.token == "" {
		return nil, ErrMissingToken
	}
	if profile == "" {
		profile = ProfileDriving
	}

	url := fmt.Sprintf(
		"%s/directions/v5/mapbox/%s/%s?alternatives=false&geometries=geojson&overview=full&steps=false&access_token=%s",
		c.baseURL, profile, coordinateString(waypoints), c.token,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("routing: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("routing: directions request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("routing: directions API returned %d: %s", resp.StatusCode, resp.Status)
	}

	var out struct {
		Routes []struct {
			Geometry LineString `json:"geometry"`
			Duration float64    `json:"duration"`
			Distance float64    `json:"distance"`
		} `json:"routes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("routing: decode directions response: %w", err)
	}
	if len(out.Routes) == 0 {
		return nil, ErrNoRouteFound
	}

	best := out.Routes[0]
	return &Route{
		Geometry:        best.Geometry,
		DurationMinutes: int(math.Ceil(best.Duration / 60)),
		DistanceKm:      math.Round(best.Distance/100) / 10,
	}, nil
}

// Ping probes provider reachability; the map lifecycle watchdog uses it as
// the readiness check during initialization.
func (c *Client) Ping(ctx context.Context) error {
	if c.token == "" {
		return ErrMissingToken
	}
	url := fmt.Sprintf("%s/styles/v1/mapbox/streets-v12?access_token=%s", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("routing: provider unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("routing: provider returned %d", resp.StatusCode)
	}
	return nil
}

func coordinateString(waypoints []geo.Coordinate) string {
	parts := make([]string, len(waypoints))
	for i, w := range waypoints {
		parts[i] = strconv.FormatFloat(w.Lng(), 'f', -1, 64) + "," +
			strconv.FormatFloat(w.Lat(), 'f', -1, 64)
	}
	return strings.Join(parts, ";")
}
