package gpx

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// gpxHeader mirrors the document shape PhoneTrack itself exports so merged
// timelines open in the same tools the raw exports do.
const gpxHeader = `<?xml version="1.0" encoding="UTF-8" standalone="no" ?>
<gpx xmlns="http://www.topografix.com/GPX/1/1" xmlns:gpxx="http://www.garmin.com/xmlschemas/GpxExtensions/v3" xmlns:wptx1="http://www.garmin.com/xmlschemas/WaypointExtension/v1" xmlns:gpxtpx="http://www.garmin.com/xmlschemas/TrackPointExtension/v1" creator="trackline" version="1.1" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:schemaLocation="http://www.topografix.com/GPX/1/1 http://www.topografix.com/GPX/1/1/gpx.xsd">`

const timestampLayout = "2006-01-02T15:04:05Z"

// Encode writes the document as a PhoneTrack-shaped GPX file. Optional fields
// present on a point are emitted; absent ones are omitted entirely. Point
// order is written as given; ordering is the merge step's concern.
func Encode(w io.Writer, doc *Document) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, gpxHeader)
	fmt.Fprintln(bw, "<metadata>")
	fmt.Fprintf(bw, " <time>%s</time>\n", time.Now().UTC().Format(timestampLayout))
	if doc.Session != "" {
		fmt.Fprintf(bw, " <name>%s</name>\n", escapeText(doc.Session))
	}
	fmt.Fprintln(bw, "</metadata>")
	fmt.Fprintln(bw, "<trk>")
	if doc.Track != "" {
		fmt.Fprintf(bw, " <name>%s</name>\n", escapeText(doc.Track))
	}
	fmt.Fprintln(bw, " <trkseg>")

	for _, p := range doc.Points {
		writePoint(bw, p)
	}

	fmt.Fprintln(bw, " </trkseg>")
	fmt.Fprintln(bw, "</trk>")
	fmt.Fprintln(bw, "</gpx>")
	return bw.Flush()
}

func writePoint(w *bufio.Writer, p Point) {
	fmt.Fprintf(w, "  <trkpt lat=\"%s\" lon=\"%s\">\n", formatFloat(p.Lat), formatFloat(p.Lon))
	fmt.Fprintf(w, "   <time>%s</time>\n", p.Time.UTC().Format(timestampLayout))
	if p.Elevation != nil {
		fmt.Fprintf(w, "   <ele>%s</ele>\n", formatFloat(*p.Elevation))
	}
	if p.Satellites != nil {
		fmt.Fprintf(w, "   <sat>%d</sat>\n", *p.Satellites)
	}
	if p.hasExtensions() {
		fmt.Fprintln(w, "   <extensions>")
		writeOptionalFloat(w, "speed", p.Speed)
		writeOptionalFloat(w, "course", p.Course)
		writeOptionalFloat(w, "accuracy", p.Accuracy)
		writeOptionalFloat(w, "batterylevel", p.BatteryLevel)
		if p.UserAgent != "" {
			fmt.Fprintf(w, "     <useragent>%s</useragent>\n", escapeText(p.UserAgent))
		}
		fmt.Fprintln(w, "   </extensions>")
	}
	fmt.Fprintln(w, "  </trkpt>")
}

func (p Point) hasExtensions() bool {
	return p.Speed != nil || p.Course != nil || p.Accuracy != nil || p.BatteryLevel != nil || p.UserAgent != ""
}

func writeOptionalFloat(w *bufio.Writer, tag string, value *float64) {
	if value == nil {
		return
	}
	fmt.Fprintf(w, "     <%s>%s</%s>\n", tag, formatFloat(*value), tag)
}

// formatFloat keeps the shortest decimal form, so "47.4979" survives a
// decode/encode cycle unchanged.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func escapeText(s string) string {
	var sb strings.Builder
	if err := xml.EscapeText(&sb, []byte(s)); err != nil {
		return s
	}
	return sb.String()
}
