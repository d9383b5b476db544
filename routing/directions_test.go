package routing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"food-delivery/tracking/geo"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(token string, fn roundTripFunc) (*Client, *int) {
	calls := 0
	c := NewClient("https://api.mapbox.com", token)
	c.httpClient = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		calls++
		return fn(req)
	})}
	return c, &calls
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestComputeRouteRejectsShortWaypointLists(t *testing.T) {
	c, calls := newTestClient("tok", func(req *http.Request) (*http.Response, error) {
		t.Fatal("no request should be issued")
		return nil, nil
	})

	_, err := c.ComputeRoute(context.Background(), []geo.Coordinate{{79.86, 6.92}}, ProfileDriving)
	assert.ErrorIs(t, err, ErrInvalidWaypoints)
	assert.Zero(t, *calls)
}

func TestComputeRouteRejectsOutOfRangeWaypoints(t *testing.T) {
	c, calls := newTestClient("tok", func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("unexpected")
	})

	_, err := c.ComputeRoute(context.Background(), []geo.Coordinate{{200, 0}, {79.86, 6.92}}, ProfileDriving)
	assert.ErrorIs(t, err, ErrInvalidWaypoints)
	assert.Zero(t, *calls)
}

func TestComputeRouteRequiresToken(t *testing.T) {
	c, calls := newTestClient("", nil)
	_, err := c.ComputeRoute(context.Background(), []geo.Coordinate{{79.86, 6.92}, {79.88, 6.90}}, ProfileDriving)
	assert.ErrorIs(t, err, ErrMissingToken)
	assert.Zero(t, *calls)
}

func TestComputeRouteSuccess(t *testing.T) {
	var gotURL string
	c, calls := newTestClient("tok", func(req *http.Request) (*http.Response, error) {
		gotURL = req.URL.String()
		return jsonResponse(200, `{
			"routes": [{
				"geometry": {"type": "LineString", "coordinates": [[79.86,6.92],[79.87,6.91],[79.88,6.90]]},
				"duration": 847.2,
				"distance": 5440
			}]
		}`), nil
	})

	waypoints := []geo.Coordinate{{79.8612, 6.9271}, {79.9171, 6.903}, {79.8800, 6.9}}
	route, err := c.ComputeRoute(context.Background(), waypoints, ProfileDriving)
	require.NoError(t, err)

	assert.Equal(t, 1, *calls)
	// Waypoints must appear lng,lat in caller order, semicolon separated.
	assert.Contains(t, gotURL, "/directions/v5/mapbox/driving/79.8612,6.9271;79.9171,6.903;79.88,6.9")
	assert.Contains(t, gotURL, "geometries=geojson")
	assert.Contains(t, gotURL, "access_token=tok")

	assert.Equal(t, 15, route.DurationMinutes) // ceil(847.2/60)
	assert.Equal(t, 5.4, route.DistanceKm)
	assert.Equal(t, "LineString", route.Geometry.Type)
	assert.Len(t, route.Geometry.Coordinates, 3)
}

func TestComputeRouteEmptyRouteSet(t *testing.T) {
	c, _ := newTestClient("tok", func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"routes": []}`), nil
	})

	_, err := c.ComputeRoute(context.Background(), []geo.Coordinate{{79.86, 6.92}, {79.88, 6.90}}, ProfileDriving)
	assert.ErrorIs(t, err, ErrNoRouteFound)
}

func TestComputeRouteProviderError(t *testing.T) {
	c, _ := newTestClient("tok", func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusUnprocessableEntity, `{"message":"bad"}`), nil
	})

	_, err := c.ComputeRoute(context.Background(), []geo.Coordinate{{79.86, 6.92}, {79.88, 6.90}}, ProfileDriving)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoRouteFound)
	assert.Contains(t, err.Error(), "422")
}
