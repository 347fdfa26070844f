package merger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"trackline/internal/config"
	"trackline/internal/gpx"
	"trackline/internal/identity"
	"trackline/internal/journal"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	root := t.TempDir()
	cfg.Paths.ExportRoot = root
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Journal.Enabled = false
	cfg.Merge.LockBackoffMS = 1
	return &cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeExport writes a minimal daily export named fileName into dir. Each
// entry is "lat,lon,time"; an empty lat leaves the attribute off entirely.
func writeExport(t *testing.T, dir, fileName string, entries ...string) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="no" ?>` + "\n")
	sb.WriteString(`<gpx xmlns="http://www.topografix.com/GPX/1/1" version="1.1"><trk><trkseg>` + "\n")
	for _, entry := range entries {
		parts := strings.SplitN(entry, ",", 3)
		if parts[0] == "" {
			fmt.Fprintf(&sb, `<trkpt lon="%s"><time>%s</time></trkpt>`+"\n", parts[1], parts[2])
		} else {
			fmt.Fprintf(&sb, `<trkpt lat="%s" lon="%s"><time>%s</time></trkpt>`+"\n", parts[0], parts[1], parts[2])
		}
	}
	sb.WriteString(`</trkseg></trk></gpx>` + "\n")

	path := filepath.Join(dir, fileName)
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func decodeTimeline(t *testing.T, path string) *gpx.Document {
	t.Helper()
	doc, err := gpx.DecodeFile(path)
	if err != nil {
		t.Fatalf("decode timeline %s: %v", path, err)
	}
	return doc
}

func TestMergeFileCreatesTimeline(t *testing.T) {
	cfg := testConfig(t)
	m := New(cfg, testLogger(), nil)

	path := writeExport(t, t.TempDir(), "Trip_daily_2026-01-17_Gabor.gpx",
		"47.0,19.0,2026-01-17T08:00:00Z",
		"47.1,19.1,2026-01-17T08:05:00Z",
	)

	result, err := m.MergeFile(context.Background(), path, "", false)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Written {
		t.Error("result not marked written")
	}
	want := filepath.Join(cfg.TimelinesPath(), "Trip_Gabor_TIMELINE.gpx")
	if result.TimelinePath != want {
		t.Errorf("timeline path = %q, want %q", result.TimelinePath, want)
	}
	if result.PointsBefore != 0 || result.PointsAdded != 2 || result.PointsTotal != 2 {
		t.Errorf("counts: %+v", result)
	}

	doc := decodeTimeline(t, want)
	if len(doc.Points) != 2 {
		t.Fatalf("timeline has %d points", len(doc.Points))
	}
	if doc.Session != "Trip" || doc.Track != "Gabor" {
		t.Errorf("timeline names: %q/%q", doc.Session, doc.Track)
	}
}

func TestMergeFileDedupScenario(t *testing.T) {
	cfg := testConfig(t)
	m := New(cfg, testLogger(), nil)
	dir := t.TempDir()
	ctx := context.Background()

	day1 := writeExport(t, dir, "Trip_daily_2026-01-17_Gabor.gpx",
		"47.0,19.0,2026-01-17T08:00:00Z",
		"47.1,19.1,2026-01-17T08:05:00Z",
	)
	if _, err := m.MergeFile(ctx, day1, "", false); err != nil {
		t.Fatal(err)
	}

	day2 := writeExport(t, dir, "Trip_daily_2026-01-18_Gabor.gpx",
		"47.1,19.1,2026-01-17T08:05:00Z", // duplicate of day1
		"47.2,19.2,2026-01-17T08:10:00Z",
	)
	result, err := m.MergeFile(ctx, day2, "", false)
	if err != nil {
		t.Fatal(err)
	}
	if result.PointsBefore != 2 || result.PointsAdded != 1 || result.PointsTotal != 3 {
		t.Errorf("counts after second merge: %+v", result)
	}

	doc := decodeTimeline(t, result.TimelinePath)
	times := make(map[string]int)
	for i, p := range doc.Points {
		times[p.Time.Format("15:04:05")]++
		if i > 0 && doc.Points[i-1].Time.After(p.Time) {
			t.Errorf("timeline out of order at %d", i)
		}
	}
	for _, ts := range []string{"08:00:00", "08:05:00", "08:10:00"} {
		if times[ts] != 1 {
			t.Errorf("timestamp %s appears %d times", ts, times[ts])
		}
	}
}

func TestMergeFileIdempotent(t *testing.T) {
	cfg := testConfig(t)
	m := New(cfg, testLogger(), nil)
	ctx := context.Background()

	path := writeExport(t, t.TempDir(), "Trip_daily_2026-01-17_Gabor.gpx",
		"47.0,19.0,2026-01-17T08:00:00Z",
		"47.1,19.1,2026-01-17T08:05:00Z",
	)

	first, err := m.MergeFile(ctx, path, "", false)
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.MergeFile(ctx, path, "", false)
	if err != nil {
		t.Fatal(err)
	}
	if second.PointsAdded != 0 || second.PointsTotal != first.PointsTotal {
		t.Errorf("re-merge changed timeline: first %+v, second %+v", first, second)
	}

	doc := decodeTimeline(t, first.TimelinePath)
	if len(doc.Points) != 2 {
		t.Fatalf("timeline has %d points after re-merge", len(doc.Points))
	}
}

func TestAccentVariantsShareDestination(t *testing.T) {
	cfg := testConfig(t)
	m := New(cfg, testLogger(), nil)
	dir := t.TempDir()
	ctx := context.Background()

	accented := writeExport(t, dir, "Trip_daily_2026-01-17_Ágy.gpx",
		"47.0,19.0,2026-01-17T08:00:00Z",
	)
	plain := writeExport(t, dir, "Trip_daily_2026-01-18_Agy.gpx",
		"47.1,19.1,2026-01-18T08:00:00Z",
	)

	first, err := m.MergeFile(ctx, accented, "", false)
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.MergeFile(ctx, plain, "", false)
	if err != nil {
		t.Fatal(err)
	}
	if first.TimelinePath != second.TimelinePath {
		t.Fatalf("accent variants wrote different timelines: %q vs %q", first.TimelinePath, second.TimelinePath)
	}
	doc := decodeTimeline(t, second.TimelinePath)
	if len(doc.Points) != 2 {
		t.Fatalf("shared timeline has %d points, want 2", len(doc.Points))
	}
}

func TestMalformedIdentityFailsWithoutWriting(t *testing.T) {
	cfg := testConfig(t)
	m := New(cfg, testLogger(), nil)

	path := writeExport(t, t.TempDir(), "whatever.gpx", "47.0,19.0,2026-01-17T08:00:00Z")
	_, err := m.MergeFile(context.Background(), path, "whatever.gpx", false)
	if !errors.Is(err, identity.ErrMalformedName) {
		t.Fatalf("err = %v, want ErrMalformedName", err)
	}
	if _, statErr := os.Stat(cfg.TimelinesPath()); !errors.Is(statErr, os.ErrNotExist) {
		t.Error("timelines directory created despite identity failure")
	}
}

func TestMalformedPointSkippedNotFatal(t *testing.T) {
	cfg := testConfig(t)
	m := New(cfg, testLogger(), nil)

	path := writeExport(t, t.TempDir(), "Trip_daily_2026-01-17_Gabor.gpx",
		",19.0,2026-01-17T08:00:00Z", // missing latitude
		"47.1,19.1,2026-01-17T08:05:00Z",
		"47.2,19.2,2026-01-17T08:10:00Z",
	)

	result, err := m.MergeFile(context.Background(), path, "", false)
	if err != nil {
		t.Fatal(err)
	}
	if result.PointsSkipped != 1 {
		t.Errorf("PointsSkipped = %d, want 1", result.PointsSkipped)
	}
	if result.PointsTotal != 2 {
		t.Errorf("PointsTotal = %d, want 2", result.PointsTotal)
	}
}

func TestDropYear2000Points(t *testing.T) {
	cfg := testConfig(t)
	m := New(cfg, testLogger(), nil)

	path := writeExport(t, t.TempDir(), "Trip_daily_2026-01-17_Gabor.gpx",
		"47.0,19.0,2000-01-01T00:02:11Z",
		"47.1,19.1,2026-01-17T08:05:00Z",
	)

	result, err := m.MergeFile(context.Background(), path, "", false)
	if err != nil {
		t.Fatal(err)
	}
	if result.PointsTotal != 1 {
		t.Fatalf("PointsTotal = %d, want 1 (year-2000 point dropped)", result.PointsTotal)
	}
}

func TestDryRunWritesNothing(t *testing.T) {
	cfg := testConfig(t)
	m := New(cfg, testLogger(), nil)

	path := writeExport(t, t.TempDir(), "Trip_daily_2026-01-17_Gabor.gpx",
		"47.0,19.0,2026-01-17T08:00:00Z",
	)

	result, err := m.MergeFile(context.Background(), path, "", true)
	if err != nil {
		t.Fatal(err)
	}
	if result.Written {
		t.Error("dry run marked written")
	}
	if result.PointsAdded != 1 {
		t.Errorf("dry run should still report counts: %+v", result)
	}
	if _, err := os.Stat(result.TimelinePath); !errors.Is(err, os.ErrNotExist) {
		t.Error("dry run wrote the timeline")
	}
}

func TestLockContention(t *testing.T) {
	cfg := testConfig(t)
	cfg.Merge.LockAttempts = 2
	m := New(cfg, testLogger(), nil)

	path := writeExport(t, t.TempDir(), "Trip_daily_2026-01-17_Gabor.gpx",
		"47.0,19.0,2026-01-17T08:00:00Z",
	)

	if err := os.MkdirAll(cfg.TimelinesPath(), 0o755); err != nil {
		t.Fatal(err)
	}
	holder := flock.New(filepath.Join(cfg.TimelinesPath(), "Trip_Gabor_TIMELINE.gpx.lock"))
	locked, err := holder.TryLock()
	if err != nil {
		t.Fatal(err)
	}
	if !locked {
		t.Fatal("test could not acquire lock")
	}
	defer func() { _ = holder.Unlock() }()

	_, err = m.MergeFile(context.Background(), path, "", false)
	if !errors.Is(err, ErrLockContention) {
		t.Fatalf("err = %v, want ErrLockContention", err)
	}
}

func TestJournalRecordsRun(t *testing.T) {
	cfg := testConfig(t)
	store, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	m := New(cfg, testLogger(), store)
	ctx := context.Background()

	path := writeExport(t, t.TempDir(), "Trip_daily_2026-01-17_Ági.gpx",
		"47.0,19.0,2026-01-17T08:00:00Z",
	)
	result, err := m.MergeFile(ctx, path, "", false)
	if err != nil {
		t.Fatal(err)
	}

	entries, err := store.Recent(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("journal has %d entries", len(entries))
	}
	entry := entries[0]
	if entry.RunID != result.RunID || entry.User != "Agi" || entry.PointsAdded != 1 {
		t.Errorf("journal entry %+v does not match result %+v", entry, result)
	}
}

func TestScanDirMergesGroups(t *testing.T) {
	cfg := testConfig(t)
	m := New(cfg, testLogger(), nil)
	exports := filepath.Join(cfg.Paths.ExportRoot, "PhoneTrack_export")
	if err := os.MkdirAll(exports, 0o755); err != nil {
		t.Fatal(err)
	}

	writeExport(t, exports, "Trip_daily_2026-01-17_Gabor.gpx",
		"47.0,19.0,2026-01-17T08:00:00Z")
	writeExport(t, exports, "Trip_daily_2026-01-18_Gabor.gpx",
		"47.1,19.1,2026-01-18T08:00:00Z")
	writeExport(t, exports, "Trip_daily_2026-01-17_Ági.gpx",
		"47.2,19.2,2026-01-17T09:00:00Z")
	writeExport(t, exports, "Trip_daily_2026-01-18_Agi.gpx",
		"47.3,19.3,2026-01-18T09:00:00Z")

	results, err := m.ScanDir(context.Background(), "", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(results))
	}

	gabor := decodeTimeline(t, filepath.Join(cfg.TimelinesPath(), "Trip_Gabor_TIMELINE.gpx"))
	if len(gabor.Points) != 2 {
		t.Errorf("Gabor timeline has %d points", len(gabor.Points))
	}
	agi := decodeTimeline(t, filepath.Join(cfg.TimelinesPath(), "Trip_Agi_TIMELINE.gpx"))
	if len(agi.Points) != 2 {
		t.Errorf("Agi timeline has %d points (accent variants should group)", len(agi.Points))
	}

	// A second scan must not duplicate anything, including re-reading its
	// own TIMELINE outputs.
	if _, err := m.ScanDir(context.Background(), "", false); err != nil {
		t.Fatal(err)
	}
	gabor = decodeTimeline(t, filepath.Join(cfg.TimelinesPath(), "Trip_Gabor_TIMELINE.gpx"))
	if len(gabor.Points) != 2 {
		t.Errorf("re-scan changed Gabor timeline to %d points", len(gabor.Points))
	}
}
