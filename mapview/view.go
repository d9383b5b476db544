// Package mapview owns the per-order map state: labeled markers keyed by
// semantic role, a single route layer, and the viewport. One View belongs
// to exactly one tracking session; there is no cross-view sharing.
package mapview

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"food-delivery/tracking/geo"
	"food-delivery/tracking/routing"
)

// State is the map lifecycle: uninitialized -> initializing -> loaded,
// error or timed-out. Retry resets a failed view to uninitialized.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateLoaded        State = "loaded"
	StateError         State = "error"
	StateTimedOut      State = "timed-out"
)

// Marker roles. Every role holds at most one marker per view; upserting an
// existing role repositions instead of duplicating.
const (
	RoleRestaurant     = "restaurant"
	RoleCustomer       = "customer"
	RoleDeliveryPerson = "deliveryPerson"

	orderRolePrefix = "order-"
)

// OrderRole is the marker role for a nearby order pin.
func OrderRole(orderID string) string { return orderRolePrefix + orderID }

// RouteLayerKey identifies the single route layer a view may hold.
const RouteLayerKey = "route-to-customer"

var (
	// ErrMissingAccessToken makes initialization fail fatally; it is not
	// retried automatically.
	ErrMissingAccessToken = errors.New("mapview: map access token is missing")
	// ErrInitTimedOut is set when the watchdog fires before the provider
	// probe settles.
	ErrInitTimedOut = errors.New("mapview: map initialization timed out")
)

type Marker struct {
	Role        string         `json:"role"`
	Coordinate  geo.Coordinate `json:"coordinate"`
	Title       string         `json:"title"`
	Color       string         `json:"color"`
	Approximate bool           `json:"approximate,omitempty"`
}

// Viewport is the bounding box fitted around the active points.
type Viewport struct {
	SouthWest geo.Coordinate `json:"southWest"`
	NorthEast geo.Coordinate `json:"northEast"`
	Padding   int            `json:"padding"`
	MaxZoom   float64        `json:"maxZoom"`
}

type View struct {
	mu       sync.Mutex
	state    State
	stateErr error
	closed   bool

	probe       func(context.Context) error
	initTimeout time.Duration
	watchdog    *time.Timer

	markers  map[string]*Marker
	route    *routing.Route
	viewport *Viewport
}

// NewView creates an uninitialized view. probe checks provider readiness
// during Init; a nil probe loads immediately.
func NewView(probe func(context.Context) error) *View {
	return &View{
		state:       StateUninitialized,
		probe:       probe,
		initTimeout: 15 * time.Second,
		markers:     make(map[string]*Marker),
	}
}

// SetInitTimeout overrides the watchdog interval. Tests use short values.
func (v *View) SetInitTimeout(d time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.initTimeout = d
}

// Init starts map initialization. An empty token fails fatally and is
// reported immediately; otherwise the provider probe runs in the
// background and the watchdog moves the view to timed-out if neither
// loaded nor error is reached in time.
func (v *View) Init(ctx context.Context, token string) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return errors.New("mapview: view is closed")
	}
	if v.state != StateUninitialized {
		state := v.state
		v.mu.Unlock()
		return fmt.Errorf("mapview: cannot initialize from state %s", state)
	}
	if token == "" {
		v.state = StateError
		v.stateErr = ErrMissingAccessToken
		v.mu.Unlock()
		return ErrMissingAccessToken
	}
	v.state = StateInitializing
	v.stateErr = nil
	v.watchdog = time.AfterFunc(v.initTimeout, v.watchdogFired)
	probe := v.probe
	v.mu.Unlock()

	go func() {
		var err error
		if probe != nil {
			err = probe(ctx)
		}
		v.settle(err)
	}()
	return nil
}

func (v *View) settle(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state != StateInitializing {
		// Watchdog or Close won the race; this result no longer matters.
		return
	}
	if v.watchdog != nil {
		v.watchdog.Stop()
	}
	if err != nil {
		v.state = StateError
		v.stateErr = err
		return
	}
	v.state = StateLoaded
}

func (v *View) watchdogFired() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == StateInitializing {
		v.state = StateTimedOut
		v.stateErr = ErrInitTimedOut
	}
}

// Retry resets a failed or timed-out view back to uninitialized so the
// caller can attempt Init again. No-op in other states.
func (v *View) Retry() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state != StateError && v.state != StateTimedOut {
		return false
	}
	v.state = StateUninitialized
	v.stateErr = nil
	return true
}

// State returns the lifecycle state and the error that produced it, if any.
func (v *View) State() (State, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state, v.stateErr
}

// UpsertMarker places or repositions the marker for a role. Coordinates
// failing the GPS range check are skipped with a logged warning; no error
// reaches the caller.
func (v *View) UpsertMarker(role string, c geo.Coordinate, title, color string) bool {
	if !geo.IsValidGPS(c) {
		log.Printf("mapview: skipping marker %q: coordinates %v outside GPS range", role, c)
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return false
	}
	if m, ok := v.markers[role]; ok {
		m.Coordinate = c
		m.Title = title
		m.Color = color
		m.Approximate = false
		return true
	}
	v.markers[role] = &Marker{Role: role, Coordinate: c, Title: title, Color: color}
	return true
}

// SetApproximate flags a marker as synthesized rather than measured.
func (v *View) SetApproximate(role string, approx bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if m, ok := v.markers[role]; ok {
		m.Approximate = approx
	}
}

// Marker returns a copy of the marker for a role.
func (v *View) Marker(role string) (Marker, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	m, ok := v.markers[role]
	if !ok {
		return Marker{}, false
	}
	return *m, true
}

// Markers returns copies of all markers, ordered by role for stable output.
func (v *View) Markers() []Marker {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Marker, 0, len(v.markers))
	for _, m := range v.markers {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out
}

// PruneOrderMarkers removes order pins whose id is no longer in the active
// nearby set. Non-order roles are never touched.
func (v *View) PruneOrderMarkers(activeOrderIDs []string) {
	active := make(map[string]struct{}, len(activeOrderIDs))
	for _, id := range activeOrderIDs {
		active[id] = struct{}{}
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	for role := range v.markers {
		if !strings.HasPrefix(role, orderRolePrefix) {
			continue
		}
		if _, ok := active[strings.TrimPrefix(role, orderRolePrefix)]; !ok {
			delete(v.markers, role)
		}
	}
}

// SetRoute replaces the route layer wholesale. There is never more than
// one route layer per view; replacement is remove-then-add under the same
// key.
func (v *View) SetRoute(r *routing.Route) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.route = nil
	v.route = r
}

// ClearRoute drops the route layer, if any.
func (v *View) ClearRoute() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.route = nil
}

// Route returns the current route layer or nil.
func (v *View) Route() *routing.Route {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.route
}

// FitToPoints computes a viewport bounding every valid point, with fixed
// padding and zoom cap. Fewer than two valid points logs and leaves the
// viewport unchanged.
func (v *View) FitToPoints(points []geo.Coordinate) bool {
	valid := points[:0:0]
	for _, p := range points {
		if geo.IsValidGPS(p) {
			valid = append(valid, p)
		}
	}
	if len(valid) < 2 {
		log.Printf("mapview: not enough valid points to fit bounds (%d)", len(valid))
		return false
	}

	sw := valid[0]
	ne := valid[0]
	for _, p := range valid[1:] {
		if p.Lng() < sw[0] {
			sw[0] = p.Lng()
		}
		if p.Lat() < sw[1] {
			sw[1] = p.Lat()
		}
		if p.Lng() > ne[0] {
			ne[0] = p.Lng()
		}
		if p.Lat() > ne[1] {
			ne[1] = p.Lat()
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.viewport = &Viewport{SouthWest: sw, NorthEast: ne, Padding: 80, MaxZoom: 15}
	return true
}

// Viewport returns the last fitted viewport.
func (v *View) Viewport() (Viewport, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.viewport == nil {
		return Viewport{}, false
	}
	return *v.viewport, true
}

// Snapshot is the wire form pushed to tracking subscribers.
type Snapshot struct {
	State    State          `json:"state"`
	Error    string         `json:"error,omitempty"`
	Markers  []Marker       `json:"markers"`
	Route    *routing.Route `json:"route,omitempty"`
	Viewport *Viewport      `json:"viewport,omitempty"`
}

func (v *View) Snapshot() Snapshot {
	markers := v.Markers()
	v.mu.Lock()
	defer v.mu.Unlock()
	snap := Snapshot{State: v.state, Markers: markers, Route: v.route, Viewport: v.viewport}
	if v.stateErr != nil {
		snap.Error = v.stateErr.Error()
	}
	return snap
}

// Close tears the view down: watchdog stopped, markers and route released.
// A closed view ignores further mutations.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	if v.watchdog != nil {
		v.watchdog.Stop()
	}
	v.markers = make(map[string]*Marker)
	v.route = nil
	v.viewport = nil
	v.state = StateUninitialized
}
