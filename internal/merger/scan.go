package merger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"trackline/internal/identity"
)

type exportGroup struct {
	id    identity.Identity
	daily []string
	full  []string
}

// ScanDir walks a directory of PhoneTrack exports, groups them by normalized
// session/user identity, and merges every group into its timeline. Files that
// do not look like exports are skipped; a group that fails to merge does not
// stop the others.
func (m *Merger) ScanDir(ctx context.Context, dir string, dryRun bool) ([]*Result, error) {
	if dir == "" {
		dir = m.cfg.ExportsPath()
	}

	groups, err := m.collectGroups(dir)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		m.log.Info("no export files found", "dir", dir)
		return nil, nil
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var results []*Result
	var failures []error
	for _, key := range keys {
		group := groups[key]
		// Daily exports in name order (dates sort lexically), then full
		// exports, so the older full dump cannot shadow fresher samples.
		sort.Strings(group.daily)
		sort.Strings(group.full)
		files := append(append([]string{}, group.daily...), group.full...)

		result, err := m.mergeGroup(ctx, group.id, files, dryRun)
		if err != nil {
			m.log.Error("group merge failed",
				"session", group.id.Session, "user", group.id.User, "error", err)
			failures = append(failures, fmt.Errorf("%s_%s: %w", group.id.Session, group.id.User, err))
			continue
		}
		results = append(results, result)
	}
	return results, errors.Join(failures...)
}

// collectGroups gathers export files under dir keyed by normalized identity.
// The first file seen for a group supplies the raw session/user spelling.
func (m *Merger) collectGroups(dir string) (map[string]*exportGroup, error) {
	groups := make(map[string]*exportGroup)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".gpx") {
			return nil
		}
		id, parseErr := identity.ParseExportName(d.Name())
		if parseErr != nil {
			m.log.Debug("skipping unrecognized file", "file", d.Name())
			return nil
		}
		group, ok := groups[id.Key()]
		if !ok {
			group = &exportGroup{id: id}
			groups[id.Key()] = group
		}
		if id.Daily {
			group.daily = append(group.daily, path)
		} else {
			group.full = append(group.full, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan exports: %w", err)
	}
	return groups, nil
}
