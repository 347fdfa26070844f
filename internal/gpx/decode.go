package gpx

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedPoint marks a track point missing a mandatory field or carrying
// an unparsable timestamp. Decode absorbs these per point; the sentinel is
// exported for callers converting individual points.
var ErrMalformedPoint = errors.New("malformed track point")

type xmlGPX struct {
	Metadata struct {
		Name string `xml:"name"`
	} `xml:"metadata"`
	Tracks []xmlTrack `xml:"trk"`
}

type xmlTrack struct {
	Name     string       `xml:"name"`
	Segments []xmlSegment `xml:"trkseg"`
}

type xmlSegment struct {
	Points []xmlTrackPoint `xml:"trkpt"`
}

type xmlTrackPoint struct {
	Lat        string         `xml:"lat,attr"`
	Lon        string         `xml:"lon,attr"`
	Time       string         `xml:"time"`
	Elevation  string         `xml:"ele"`
	Satellites string         `xml:"sat"`
	Extensions *xmlExtensions `xml:"extensions"`
}

type xmlExtensions struct {
	Speed        string `xml:"speed"`
	Course       string `xml:"course"`
	Accuracy     string `xml:"accuracy"`
	BatteryLevel string `xml:"batterylevel"`
	UserAgent    string `xml:"useragent"`
}

// Decode parses a GPX document into its ordered point sequence. Malformed
// points are skipped and counted in Document.Skipped; only a structurally
// unreadable document returns an error.
func Decode(r io.Reader) (*Document, error) {
	var raw xmlGPX
	if err := xml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse gpx: %w", err)
	}

	doc := &Document{Session: raw.Metadata.Name}
	for _, trk := range raw.Tracks {
		if doc.Track == "" {
			doc.Track = trk.Name
		}
		for _, seg := range trk.Segments {
			for _, rawPoint := range seg.Points {
				point, err := convertPoint(rawPoint)
				if err != nil {
					doc.Skipped++
					continue
				}
				doc.Points = append(doc.Points, point)
			}
		}
	}
	return doc, nil
}

// DecodeFile reads and decodes the GPX document at path.
func DecodeFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func convertPoint(raw xmlTrackPoint) (Point, error) {
	lat, err := parseCoordinate(raw.Lat)
	if err != nil {
		return Point{}, fmt.Errorf("%w: latitude %q", ErrMalformedPoint, raw.Lat)
	}
	lon, err := parseCoordinate(raw.Lon)
	if err != nil {
		return Point{}, fmt.Errorf("%w: longitude %q", ErrMalformedPoint, raw.Lon)
	}
	ts, err := ParseTimestamp(raw.Time)
	if err != nil {
		return Point{}, fmt.Errorf("%w: timestamp %q", ErrMalformedPoint, raw.Time)
	}

	point := Point{Lat: lat, Lon: lon, Time: ts}
	point.Elevation = optionalFloat(raw.Elevation)
	point.Satellites = optionalInt(raw.Satellites)
	if ext := raw.Extensions; ext != nil {
		point.Speed = optionalFloat(ext.Speed)
		point.Course = optionalFloat(ext.Course)
		point.Accuracy = optionalFloat(ext.Accuracy)
		point.BatteryLevel = optionalFloat(ext.BatteryLevel)
		point.UserAgent = strings.TrimSpace(ext.UserAgent)
	}
	return point, nil
}

// ParseTimestamp parses a GPX time element. PhoneTrack writes RFC 3339 with a
// Z suffix; a zone-less local form is accepted as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if ts, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.ParseInLocation("2006-01-02T15:04:05", trimmed, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return ts, nil
}

func parseCoordinate(value string) (float64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, errors.New("missing coordinate")
	}
	return strconv.ParseFloat(trimmed, 64)
}

// Optional attributes that fail to parse are dropped rather than failing the
// point; only the mandatory triple decides validity.
func optionalFloat(value string) *float64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return nil
	}
	return &parsed
}

func optionalInt(value string) *int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil {
		return nil
	}
	return &parsed
}
