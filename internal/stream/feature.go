package stream

import (
	json "github.com/goccy/go-json"
)

// Feature is one decoded GeoJSON feature. Geometry and Properties are kept
// raw: the streamer's job is chunked delivery, not geometry modelling, and
// consumers (map layers, grids) each want a different decoded shape.
type Feature struct {
	Type       string          `json:"type"`
	ID         json.RawMessage `json:"id,omitempty"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties json.RawMessage `json:"properties,omitempty"`
}
