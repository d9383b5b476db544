package mapview

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"food-delivery/tracking/geo"
	"food-delivery/tracking/routing"
)

func TestInitMissingTokenIsFatal(t *testing.T) {
	v := NewView(nil)
	err := v.Init(context.Background(), "")
	require.ErrorIs(t, err, ErrMissingAccessToken)

	state, stateErr := v.State()
	assert.Equal(t, StateError, state)
	assert.ErrorIs(t, stateErr, ErrMissingAccessToken)
}

func TestInitLoadsOnProbeSuccess(t *testing.T) {
	v := NewView(func(context.Context) error { return nil })
	require.NoError(t, v.Init(context.Background(), "tok"))

	assert.Eventually(t, func() bool {
		state, _ := v.State()
		return state == StateLoaded
	}, time.Second, 5*time.Millisecond)
}

func TestInitProbeFailureMovesToError(t *testing.T) {
	probeErr := errors.New("style not reachable")
	v := NewView(func(context.Context) error { return probeErr })
	require.NoError(t, v.Init(context.Background(), "tok"))

	assert.Eventually(t, func() bool {
		state, _ := v.State()
		return state == StateError
	}, time.Second, 5*time.Millisecond)
	_, stateErr := v.State()
	assert.ErrorIs(t, stateErr, probeErr)
}

func TestWatchdogTimesOutSlowInit(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	v := NewView(func(ctx context.Context) error {
		<-block
		return nil
	})
	v.SetInitTimeout(20 * time.Millisecond)
	require.NoError(t, v.Init(context.Background(), "tok"))

	assert.Eventually(t, func() bool {
		state, _ := v.State()
		return state == StateTimedOut
	}, time.Second, 5*time.Millisecond)
	_, stateErr := v.State()
	assert.ErrorIs(t, stateErr, ErrInitTimedOut)
}

func TestRetryResetsFailedView(t *testing.T) {
	v := NewView(nil)
	_ = v.Init(context.Background(), "")

	require.True(t, v.Retry())
	state, stateErr := v.State()
	assert.Equal(t, StateUninitialized, state)
	assert.NoError(t, stateErr)

	// Retry only applies to error and timed-out states.
	assert.False(t, v.Retry())

	require.NoError(t, v.Init(context.Background(), "tok"))
	assert.Eventually(t, func() bool {
		state, _ := v.State()
		return state == StateLoaded
	}, time.Second, 5*time.Millisecond)
}

func TestInitFromLoadedRejected(t *testing.T) {
	v := NewView(nil)
	require.NoError(t, v.Init(context.Background(), "tok"))
	assert.Eventually(t, func() bool {
		state, _ := v.State()
		return state == StateLoaded
	}, time.Second, 5*time.Millisecond)

	assert.Error(t, v.Init(context.Background(), "tok"))
}

func TestUpsertMarkerIsIdempotentPerRole(t *testing.T) {
	v := NewView(nil)

	require.True(t, v.UpsertMarker(RoleDeliveryPerson, geo.Coordinate{79.86, 6.92}, "Courier", "#00cc66"))
	for i := 0; i < 5; i++ {
		require.True(t, v.UpsertMarker(RoleDeliveryPerson, geo.Coordinate{79.87, 6.93}, "Courier", "#00cc66"))
	}

	markers := v.Markers()
	require.Len(t, markers, 1)
	assert.Equal(t, geo.Coordinate{79.87, 6.93}, markers[0].Coordinate)
}

func TestUpsertMarkerSkipsInvalidCoordinates(t *testing.T) {
	v := NewView(nil)

	assert.False(t, v.UpsertMarker(RoleCustomer, geo.Coordinate{200, 6.92}, "Customer", "#3366ff"))
	assert.Empty(t, v.Markers())
}

func TestSetApproximateFlagsExistingMarker(t *testing.T) {
	v := NewView(nil)
	v.UpsertMarker(RoleDeliveryPerson, geo.Coordinate{79.86, 6.92}, "Courier", "#00cc66")

	v.SetApproximate(RoleDeliveryPerson, true)
	m, ok := v.Marker(RoleDeliveryPerson)
	require.True(t, ok)
	assert.True(t, m.Approximate)

	// A fresh upsert means a real position again.
	v.UpsertMarker(RoleDeliveryPerson, geo.Coordinate{79.88, 6.94}, "Courier", "#00cc66")
	m, _ = v.Marker(RoleDeliveryPerson)
	assert.False(t, m.Approximate)
}

func TestPruneOrderMarkersKeepsActiveAndNonOrderRoles(t *testing.T) {
	v := NewView(nil)
	v.UpsertMarker(RoleRestaurant, geo.Coordinate{79.86, 6.92}, "Spice Garden", "#ff3333")
	v.UpsertMarker(OrderRole("ord-1"), geo.Coordinate{79.87, 6.93}, "Order #1", "#ffaa00")
	v.UpsertMarker(OrderRole("ord-2"), geo.Coordinate{79.88, 6.94}, "Order #2", "#ffaa00")

	v.PruneOrderMarkers([]string{"ord-2"})

	_, ok := v.Marker(OrderRole("ord-1"))
	assert.False(t, ok)
	_, ok = v.Marker(OrderRole("ord-2"))
	assert.True(t, ok)
	_, ok = v.Marker(RoleRestaurant)
	assert.True(t, ok)
}

func TestSetRouteReplacesWholesale(t *testing.T) {
	v := NewView(nil)
	first := &routing.Route{DurationMinutes: 10, DistanceKm: 3.2}
	second := &routing.Route{DurationMinutes: 14, DistanceKm: 4.8}

	v.SetRoute(first)
	v.SetRoute(second)
	assert.Same(t, second, v.Route())

	v.ClearRoute()
	assert.Nil(t, v.Route())
}

func TestFitToPointsNeedsTwoValidPoints(t *testing.T) {
	v := NewView(nil)

	assert.False(t, v.FitToPoints([]geo.Coordinate{{79.86, 6.92}}))
	assert.False(t, v.FitToPoints([]geo.Coordinate{{79.86, 6.92}, {200, 95}}))
	_, ok := v.Viewport()
	assert.False(t, ok)

	require.True(t, v.FitToPoints([]geo.Coordinate{{79.86, 6.92}, {79.92, 6.90}, {79.88, 6.95}}))
	vp, ok := v.Viewport()
	require.True(t, ok)
	assert.Equal(t, geo.Coordinate{79.86, 6.90}, vp.SouthWest)
	assert.Equal(t, geo.Coordinate{79.92, 6.95}, vp.NorthEast)
	assert.Equal(t, 80, vp.Padding)
	assert.Equal(t, 15.0, vp.MaxZoom)
}

func TestSnapshotCarriesStateMarkersAndRoute(t *testing.T) {
	v := NewView(nil)
	v.UpsertMarker(RoleCustomer, geo.Coordinate{79.88, 6.90}, "Customer", "#3366ff")
	v.SetRoute(&routing.Route{DurationMinutes: 9, DistanceKm: 2.7})

	snap := v.Snapshot()
	assert.Equal(t, StateUninitialized, snap.State)
	assert.Len(t, snap.Markers, 1)
	assert.NotNil(t, snap.Route)
}

func TestCloseReleasesStateAndIgnoresLaterWrites(t *testing.T) {
	v := NewView(nil)
	v.UpsertMarker(RoleCustomer, geo.Coordinate{79.88, 6.90}, "Customer", "#3366ff")
	v.SetRoute(&routing.Route{})

	v.Close()
	assert.Empty(t, v.Markers())
	assert.Nil(t, v.Route())

	assert.False(t, v.UpsertMarker(RoleCustomer, geo.Coordinate{79.88, 6.90}, "Customer", "#3366ff"))
	v.SetRoute(&routing.Route{})
	assert.Nil(t, v.Route())
}
