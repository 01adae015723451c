package domain

// SourceID names the GeoJSON source and circle layer on the map widget.
const SourceID = "earthquakes"

// Layer is a Mapbox GL layer definition.
type Layer struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Source string         `json:"source"`
	Paint  map[string]any `json:"paint,omitempty"`
	Filter []any          `json:"filter,omitempty"`
}

// Slider describes the magnitude slider bounds.
type Slider struct {
	Min   int `json:"min"`
	Max   int `json:"max"`
	Value int `json:"value"`
}

// MapConfig is everything the map widget needs to render the quake layer.
type MapConfig struct {
	Style      string     `json:"style"`
	Projection string     `json:"projection"`
	Center     [2]float64 `json:"center"` // [lon, lat]
	Zoom       float64    `json:"zoom"`
	Layer      Layer      `json:"layer"`
	Slider     Slider     `json:"slider"`
	Buckets    []Bucket   `json:"buckets"`
}

// DefaultLayer is the red circle layer, filtered to the first bucket.
func DefaultLayer() Layer {
	first := ClampBucket(0)
	return Layer{
		ID:     SourceID,
		Type:   "circle",
		Source: SourceID,
		Paint: map[string]any{
			"circle-radius": 10,
			"circle-color":  "#B42222",
		},
		Filter: first.FilterExpression(),
	}
}

// DefaultMapConfig centres a globe on Tokyo.
func DefaultMapConfig() MapConfig {
	return MapConfig{
		Style:      "mapbox://styles/mapbox/light-v11",
		Projection: "globe",
		Center:     [2]float64{139.76, 35.68},
		Zoom:       5,
		Layer:      DefaultLayer(),
		Slider:     Slider{Min: 0, Max: BucketCount - 1, Value: 0},
		Buckets:    Buckets(),
	}
}
