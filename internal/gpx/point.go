package gpx

import "time"

// Point is one recorded location sample. Latitude and longitude are decimal
// degrees; the timestamp is a UTC instant with second precision. All other
// fields are optional and nil/empty when the source point did not carry them.
type Point struct {
	Lat  float64
	Lon  float64
	Time time.Time

	Elevation    *float64
	Satellites   *int
	Speed        *float64
	Course       *float64
	Accuracy     *float64
	BatteryLevel *float64
	UserAgent    string
}

// Key identifies a sample for deduplication. Two points with equal
// coordinates and timestamp are the same sample regardless of their optional
// fields.
type Key struct {
	Lat  float64
	Lon  float64
	Unix int64
}

// Key returns the deduplication identity of the point.
func (p Point) Key() Key {
	return Key{Lat: p.Lat, Lon: p.Lon, Unix: p.Time.Unix()}
}

// Document is a decoded point track.
type Document struct {
	Session string // metadata name
	Track   string // track name, the exporting user/device
	Points  []Point
	Skipped int // malformed points dropped during decode
}
