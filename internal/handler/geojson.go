package handler

import (
	"github.com/UnknownOlympus/trafficmodeler/internal/planner"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// MapFeatures renders a session snapshot as a feature collection: the active
// route as a LineString followed by one Point per obstacle marker.
func MapFeatures(snap planner.Snapshot) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	if plan := snap.Plan; plan != nil {
		line := make(orb.LineString, 0, len(plan.Route.Path))
		for _, p := range plan.Route.Path {
			line = append(line, orb.Point{p.Longitude, p.Latitude})
		}

		route := geojson.NewFeature(line)
		route.ID = plan.ID.String()
		route.Properties["kind"] = "route"
		route.Properties["origin"] = plan.Origin
		route.Properties["destination"] = plan.Destination
		route.Properties["distance"] = plan.Summary.Distance
		route.Properties["duration"] = plan.Summary.Duration
		if plan.Risk != nil {
			route.Properties["risk"] = plan.Summary.Risk
			route.Properties["riskLevel"] = plan.Risk.RiskLevel
			route.Properties["riskScore"] = plan.Risk.Score
		}
		fc.Append(route)
	}

	for _, m := range snap.Markers {
		marker := geojson.NewFeature(orb.Point{m.Data.Lng, m.Data.Lat})
		marker.Properties["kind"] = "obstacle"
		marker.Properties["type"] = m.Data.Type
		marker.Properties["receivedAt"] = m.ReceivedAt
		fc.Append(marker)
	}

	return fc
}
