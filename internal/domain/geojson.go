package domain

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ToFeature converts a quake into a GeoJSON point feature. Properties carry
// every original record member plus the derived position, depth, numeric
// magnitude and bucket; derived values override same-named originals.
func ToFeature(q Quake) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{q.Position.Longitude, q.Position.Latitude})
	f.ID = q.ID

	for k, v := range q.Fields {
		f.Properties[k] = v
	}

	f.Properties["id"] = q.ID
	f.Properties["source"] = q.Source
	f.Properties["latitude"] = q.Position.Latitude
	f.Properties["longitude"] = q.Position.Longitude
	f.Properties["mag"] = q.Magnitude
	if q.DepthKm != nil {
		f.Properties["depth_km"] = *q.DepthKm
	}
	if q.Bucket != nil {
		f.Properties["bucket"] = *q.Bucket
	}
	if !q.OriginTime.IsZero() {
		f.Properties["origin_time"] = q.OriginTime.UTC().Format(time.RFC3339)
	}
	if q.PlaceName != "" {
		f.Properties["place_name"] = q.PlaceName
	}
	if q.GeoSource != "" {
		f.Properties["geo_source"] = q.GeoSource
	}
	return f
}

// ToFeatureCollection converts quakes into a FeatureCollection in input order.
func ToFeatureCollection(quakes []Quake) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Features = make([]*geojson.Feature, 0, len(quakes))
	for i := range quakes {
		fc.Append(ToFeature(quakes[i]))
	}
	return fc
}

// FilterByBucket returns the quakes whose magnitude lies in b.
func FilterByBucket(quakes []Quake, b Bucket) []Quake {
	out := make([]Quake, 0, len(quakes))
	for i := range quakes {
		if b.Contains(quakes[i].Magnitude) {
			out = append(out, quakes[i])
		}
	}
	return out
}
