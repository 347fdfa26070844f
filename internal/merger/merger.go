package merger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"trackline/internal/config"
	"trackline/internal/gpx"
	"trackline/internal/identity"
	"trackline/internal/journal"
	"trackline/internal/timeline"
)

// ErrLockContention indicates the destination timeline stayed locked by a
// concurrent merge through every retry attempt.
var ErrLockContention = errors.New("timeline locked by another merge")

// Merger wires the merge pipeline for a configuration. The journal store is
// optional; when nil, runs are not recorded.
type Merger struct {
	cfg     *config.Config
	log     *slog.Logger
	journal *journal.Store
}

// New constructs a Merger.
func New(cfg *config.Config, logger *slog.Logger, jr *journal.Store) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{cfg: cfg, log: logger, journal: jr}
}

// Result summarizes one merge against one timeline.
type Result struct {
	RunID         string
	Identity      identity.Identity
	TimelinePath  string
	SourceFiles   []string
	PointsBefore  int
	PointsAdded   int
	PointsSkipped int // malformed points dropped during decode
	PointsTotal   int
	Written       bool
	DryRun        bool
}

// MergeFile merges a single daily export into its timeline. filePath is the
// readable location of the export; fileName is the base name the identity is
// parsed from and defaults to the base of filePath. This is the entry point
// the workflow trigger invokes.
func (m *Merger) MergeFile(ctx context.Context, filePath, fileName string, dryRun bool) (*Result, error) {
	if fileName == "" {
		fileName = filepath.Base(filePath)
	}
	id, err := identity.ParseDailyName(fileName)
	if err != nil {
		return nil, fmt.Errorf("parse identity: %w", err)
	}
	return m.mergeGroup(ctx, id, []string{filePath}, dryRun)
}

// mergeGroup merges one or more export files belonging to a single identity
// into its timeline, holding the destination lock from the pre-merge read
// through the final rename.
func (m *Merger) mergeGroup(ctx context.Context, id identity.Identity, files []string, dryRun bool) (*Result, error) {
	runID := uuid.NewString()
	log := m.log.With(
		"run_id", runID,
		"session", id.NormalizedSession(),
		"user", id.NormalizedUser(),
	)

	destDir := m.cfg.TimelinesPath()
	destPath := filepath.Join(destDir, id.TimelineFileName())

	result := &Result{
		RunID:        runID,
		Identity:     id,
		TimelinePath: destPath,
		SourceFiles:  files,
		DryRun:       dryRun,
	}

	incoming, skipped, err := m.decodeExports(log, files)
	if err != nil {
		return nil, err
	}
	result.PointsSkipped = skipped

	if !dryRun {
		if err := os.MkdirAll(destDir, 0o755); err != nil {
			return nil, fmt.Errorf("create timelines directory: %w", err)
		}
		unlock, err := m.lockTimeline(ctx, destPath)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	existing, err := loadTimeline(destPath)
	if err != nil {
		return nil, err
	}
	result.PointsBefore = len(existing)

	if len(incoming) == 0 {
		log.Warn("no valid points in export, timeline unchanged",
			"skipped", skipped, "files", len(files))
		result.PointsTotal = len(existing)
		return result, nil
	}

	merged := timeline.Merge(existing, incoming)
	result.PointsTotal = len(merged)
	result.PointsAdded = len(merged) - len(existing)

	if dryRun {
		log.Info("dry run, timeline not written",
			"timeline", destPath,
			"would_add", result.PointsAdded,
			"total", result.PointsTotal)
		return result, nil
	}

	doc := &gpx.Document{
		Session: id.Session,
		Track:   id.User,
		Points:  merged,
	}
	if err := writeTimeline(destPath, doc); err != nil {
		return nil, fmt.Errorf("write timeline: %w", err)
	}
	result.Written = true

	if skipped > 0 {
		log.Warn("skipped malformed points", "skipped", skipped)
	}
	log.Info("timeline updated",
		"timeline", destPath,
		"before", result.PointsBefore,
		"added", result.PointsAdded,
		"total", result.PointsTotal)

	m.recordRun(ctx, log, result)
	return result, nil
}

// decodeExports decodes every source file, applying the year-2000 filter when
// configured. A file that cannot be decoded at all is fatal; malformed points
// inside a readable file are only counted.
func (m *Merger) decodeExports(log *slog.Logger, files []string) ([]gpx.Point, int, error) {
	var incoming []gpx.Point
	skipped := 0
	for _, file := range files {
		doc, err := gpx.DecodeFile(file)
		if err != nil {
			return nil, 0, fmt.Errorf("decode export: %w", err)
		}
		points := doc.Points
		if m.cfg.Merge.DropYear2000 {
			var dropped int
			points, dropped = timeline.DropYear2000(points)
			if dropped > 0 {
				log.Debug("dropped year-2000 clock-bug points", "file", file, "dropped", dropped)
			}
		}
		incoming = append(incoming, points...)
		skipped += doc.Skipped
	}
	return incoming, skipped, nil
}

// lockTimeline acquires the flock sidecar for a timeline path, retrying with
// exponential backoff up to the configured attempt count.
func (m *Merger) lockTimeline(ctx context.Context, destPath string) (func(), error) {
	lock := flock.New(destPath + ".lock")
	backoff := time.Duration(m.cfg.Merge.LockBackoffMS) * time.Millisecond

	for attempt := 1; ; attempt++ {
		locked, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire timeline lock: %w", err)
		}
		if locked {
			return func() { _ = lock.Unlock() }, nil
		}
		if attempt >= m.cfg.Merge.LockAttempts {
			return nil, fmt.Errorf("%w after %d attempts: %s", ErrLockContention, attempt, destPath)
		}
		m.log.Debug("timeline locked, retrying", "attempt", attempt, "backoff", backoff)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// loadTimeline reads the existing timeline points; a missing file is an empty
// timeline.
func loadTimeline(path string) ([]gpx.Point, error) {
	doc, err := gpx.DecodeFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read timeline: %w", err)
	}
	return doc.Points, nil
}

// writeTimeline encodes the document next to the destination and renames it
// into place, so readers never observe a partial file.
func writeTimeline(destPath string, doc *gpx.Document) error {
	tmp, err := os.CreateTemp(filepath.Dir(destPath), "."+filepath.Base(destPath)+".*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := gpx.Encode(tmp, doc); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return err
	}
	tmpPath = ""
	return nil
}

func (m *Merger) recordRun(ctx context.Context, log *slog.Logger, result *Result) {
	if m.journal == nil {
		return
	}
	source := ""
	if len(result.SourceFiles) > 0 {
		source = result.SourceFiles[0]
	}
	entry := &journal.Entry{
		RunID:         result.RunID,
		Session:       result.Identity.NormalizedSession(),
		User:          result.Identity.NormalizedUser(),
		SourceFile:    source,
		TimelineFile:  result.TimelinePath,
		PointsBefore:  result.PointsBefore,
		PointsAdded:   result.PointsAdded,
		PointsSkipped: result.PointsSkipped,
		PointsTotal:   result.PointsTotal,
	}
	if err := m.journal.Record(ctx, entry); err != nil {
		log.Warn("journal write failed", "error", err)
	}
}
