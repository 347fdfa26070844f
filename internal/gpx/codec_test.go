package gpx

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

const sampleDoc = `<?xml version="1.0" encoding="UTF-8" standalone="no" ?>
<gpx xmlns="http://www.topografix.com/GPX/1/1" version="1.1" creator="PhoneTrack Nextcloud app 0.9.1">
<metadata>
 <time>2026-01-17T09:00:00Z</time>
 <name>Trip</name>
</metadata>
<trk>
 <name>Gabor</name>
 <trkseg>
  <trkpt lat="47.4979" lon="19.0402">
   <time>2026-01-17T08:00:00Z</time>
   <ele>120.5</ele>
   <sat>7</sat>
   <extensions>
     <speed>3.2</speed>
     <accuracy>5</accuracy>
     <batterylevel>88</batterylevel>
     <useragent>TestApp</useragent>
   </extensions>
  </trkpt>
  <trkpt lat="47.4981" lon="19.0405">
   <time>2026-01-17T08:05:00Z</time>
  </trkpt>
 </trkseg>
</trk>
</gpx>`

func TestDecode(t *testing.T) {
	doc, err := Decode(strings.NewReader(sampleDoc))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Session != "Trip" || doc.Track != "Gabor" {
		t.Errorf("names: session=%q track=%q", doc.Session, doc.Track)
	}
	if len(doc.Points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(doc.Points))
	}
	if doc.Skipped != 0 {
		t.Errorf("expected no skipped points, got %d", doc.Skipped)
	}

	p := doc.Points[0]
	if p.Lat != 47.4979 || p.Lon != 19.0402 {
		t.Errorf("coordinates: %v %v", p.Lat, p.Lon)
	}
	want := time.Date(2026, 1, 17, 8, 0, 0, 0, time.UTC)
	if !p.Time.Equal(want) {
		t.Errorf("timestamp: %v, want %v", p.Time, want)
	}
	if p.Elevation == nil || *p.Elevation != 120.5 {
		t.Errorf("elevation: %v", p.Elevation)
	}
	if p.Satellites == nil || *p.Satellites != 7 {
		t.Errorf("satellites: %v", p.Satellites)
	}
	if p.Speed == nil || *p.Speed != 3.2 {
		t.Errorf("speed: %v", p.Speed)
	}
	if p.Accuracy == nil || *p.Accuracy != 5 {
		t.Errorf("accuracy: %v", p.Accuracy)
	}
	if p.BatteryLevel == nil || *p.BatteryLevel != 88 {
		t.Errorf("battery: %v", p.BatteryLevel)
	}
	if p.UserAgent != "TestApp" {
		t.Errorf("useragent: %q", p.UserAgent)
	}

	bare := doc.Points[1]
	if bare.Elevation != nil || bare.Satellites != nil || bare.Speed != nil || bare.UserAgent != "" {
		t.Errorf("bare point grew optional fields: %+v", bare)
	}
}

func TestDecodeSkipsMalformedPoints(t *testing.T) {
	const broken = `<gpx xmlns="http://www.topografix.com/GPX/1/1"><trk><trkseg>
  <trkpt lon="19.0402"><time>2026-01-17T08:00:00Z</time></trkpt>
  <trkpt lat="47.4981" lon="19.0405"><time>2026-01-17T08:05:00Z</time></trkpt>
  <trkpt lat="47.4982" lon="19.0406"><time>not-a-time</time></trkpt>
  <trkpt lat="47.4983" lon="19.0407"></trkpt>
</trkseg></trk></gpx>`

	doc, err := Decode(strings.NewReader(broken))
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Points) != 1 {
		t.Fatalf("expected 1 valid point, got %d", len(doc.Points))
	}
	if doc.Skipped != 3 {
		t.Fatalf("expected 3 skipped points, got %d", doc.Skipped)
	}
}

func TestDecodeUnreadableDocument(t *testing.T) {
	if _, err := Decode(strings.NewReader("not xml at all")); err == nil {
		t.Fatal("expected error for non-XML input")
	}
}

func TestRoundTripPreservesOptionalFields(t *testing.T) {
	doc, err := Decode(strings.NewReader(sampleDoc))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		t.Fatal(err)
	}

	again, err := Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("decode of encoded output: %v", err)
	}
	if again.Session != doc.Session || again.Track != doc.Track {
		t.Errorf("names changed: %q/%q -> %q/%q", doc.Session, doc.Track, again.Session, again.Track)
	}
	if len(again.Points) != len(doc.Points) {
		t.Fatalf("point count changed: %d -> %d", len(doc.Points), len(again.Points))
	}
	for i := range doc.Points {
		if !pointsEqual(doc.Points[i], again.Points[i]) {
			t.Errorf("point %d changed:\n before %+v\n after  %+v", i, doc.Points[i], again.Points[i])
		}
	}

	out := buf.String()
	for _, fragment := range []string{
		`lat="47.4979"`, `lon="19.0402"`,
		"<ele>120.5</ele>", "<sat>7</sat>",
		"<speed>3.2</speed>", "<accuracy>5</accuracy>",
		"<batterylevel>88</batterylevel>", "<useragent>TestApp</useragent>",
	} {
		if !strings.Contains(out, fragment) {
			t.Errorf("encoded output missing %s", fragment)
		}
	}
	if strings.Contains(out, "<extensions>\n   </extensions>") {
		t.Error("empty extensions block emitted")
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2026, 1, 17, 8, 0, 0, 0, time.UTC)
	for _, value := range []string{
		"2026-01-17T08:00:00Z",
		"2026-01-17T08:00:00+00:00",
		"2026-01-17T08:00:00",
	} {
		ts, err := ParseTimestamp(value)
		if err != nil {
			t.Errorf("ParseTimestamp(%q): %v", value, err)
			continue
		}
		if !ts.Equal(want) {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", value, ts, want)
		}
	}
	for _, value := range []string{"", "yesterday", "2026-13-40T99:00:00Z"} {
		if _, err := ParseTimestamp(value); err == nil {
			t.Errorf("ParseTimestamp(%q): expected error", value)
		}
	}
}

func pointsEqual(a, b Point) bool {
	if a.Lat != b.Lat || a.Lon != b.Lon || !a.Time.Equal(b.Time) || a.UserAgent != b.UserAgent {
		return false
	}
	return floatPtrEqual(a.Elevation, b.Elevation) &&
		intPtrEqual(a.Satellites, b.Satellites) &&
		floatPtrEqual(a.Speed, b.Speed) &&
		floatPtrEqual(a.Course, b.Course) &&
		floatPtrEqual(a.Accuracy, b.Accuracy) &&
		floatPtrEqual(a.BatteryLevel, b.BatteryLevel)
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
