package server

import (
	"time"

	"food-delivery/tracking/mapview"
	"food-delivery/tracking/routing"
)

// newProviderView builds a map view whose readiness probe pings the map
// provider through the routing client.
func newProviderView(routes *routing.Client, initTimeout time.Duration) *mapview.View {
	view := mapview.NewView(routes.Ping)
	if initTimeout > 0 {
		view.SetInitTimeout(initTimeout)
	}
	return view
}
