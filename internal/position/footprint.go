package position

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/roman-kulish/gantry-extractors/internal/utm"
)

// LatLon is a WGS84 position in degrees
type LatLon struct {
	Lat float64
	Lon float64
}

// Point returns the position as a GeoJSON ordered point (lon, lat)
func (ll LatLon) Point() orb.Point {
	return orb.Point{ll.Lon, ll.Lat}
}

// Triple returns the position as [lon, lat, 0]
func (ll LatLon) Triple() []float64 {
	return []float64{ll.Lon, ll.Lat, 0}
}

// Footprint is the geographic placement of a sensor and the ground area it observes
type Footprint struct {
	Centroid LatLon
	NW       LatLon
	NE       LatLon
	SE       LatLon
	SW       LatLon

	// Sensor is the sensor position in the reference UTM zone
	Sensor utm.Coordinate

	// FOV edges in the reference UTM zone, meters
	FOVNorth float64
	FOVSouth float64
	FOVWest  float64
	FOVEast  float64
}

// Ring returns the closed field of view ring NW, NE, SE, SW, NW in (lon, lat)
func (f *Footprint) Ring() orb.Ring {
	return orb.Ring{
		f.NW.Point(),
		f.NE.Point(),
		f.SE.Point(),
		f.SW.Point(),
		f.NW.Point(),
	}
}

// Polygon returns the field of view as a polygon
func (f *Footprint) Polygon() orb.Polygon {
	return orb.Polygon{f.Ring()}
}

// Corners returns the minimal NW/SE pair as [lon, lat, 0] triples
func (f *Footprint) Corners() [][]float64 {
	return [][]float64{f.NW.Triple(), f.SE.Triple()}
}

// Coordinates returns the closed ring as [lon, lat, 0] triples, ready to be
// used as the single ring of a GeoJSON polygon.
func (f *Footprint) Coordinates() [][]float64 {
	ring := f.Ring()
	coords := make([][]float64, len(ring))
	for i, p := range ring {
		coords[i] = []float64{p.Lon(), p.Lat(), 0}
	}
	return coords
}

// Bound returns the lon/lat bounding box of the field of view
func (f *Footprint) Bound() orb.Bound {
	return f.Ring().Bound()
}

// Feature returns the field of view polygon as a GeoJSON feature with the
// sensor position in its properties.
func (f *Footprint) Feature() *geojson.Feature {
	feature := geojson.NewFeature(f.Polygon())
	feature.Properties["centroid"] = []float64{f.Centroid.Lon, f.Centroid.Lat}
	return feature
}
