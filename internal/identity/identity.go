package identity

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformedName indicates an export file name that does not follow the
// PhoneTrack naming convention.
var ErrMalformedName = errors.New("malformed export name")

var (
	// The date segment is any underscore-free run; PhoneTrack emits
	// YYYY-MM-DD but the date is positional only. The session group is
	// greedy so sessions may themselves contain underscores.
	dailyPattern = regexp.MustCompile(`^(.+)_daily_([^_]+)_(.+)\.gpx$`)
	fullPattern  = regexp.MustCompile(`^(.+)_([^_]+)\.gpx$`)
)

// reserved trailing segments that mark a file as an output, not an export.
var reservedUserSegments = map[string]struct{}{
	"timeline": {},
	"merged":   {},
	"combined": {},
}

// Identity is the logical key of one tracked session/user pair as written in
// an export file name. Session and User hold the raw spelling from the name;
// canonical forms come from the Normalized accessors.
type Identity struct {
	Session string
	User    string
	Date    string // daily exports only, never interpreted
	Daily   bool
}

// ParseDailyName parses a `<Session>_daily_<Date>_<User>.gpx` file name.
func ParseDailyName(name string) (Identity, error) {
	m := dailyPattern.FindStringSubmatch(name)
	if m == nil {
		return Identity{}, fmt.Errorf("%w: %q does not match <session>_daily_<date>_<user>.gpx", ErrMalformedName, name)
	}
	return Identity{Session: m[1], Date: m[2], User: m[3], Daily: true}, nil
}

// ParseExportName recognizes both daily and full export names. Timeline
// output files are rejected so a scan never feeds its own output back in.
func ParseExportName(name string) (Identity, error) {
	if strings.HasSuffix(name, "_TIMELINE.gpx") {
		return Identity{}, fmt.Errorf("%w: %q is a timeline output", ErrMalformedName, name)
	}
	if id, err := ParseDailyName(name); err == nil {
		return id, nil
	}
	m := fullPattern.FindStringSubmatch(name)
	if m == nil {
		return Identity{}, fmt.Errorf("%w: %q has no user segment", ErrMalformedName, name)
	}
	if _, reserved := reservedUserSegments[strings.ToLower(m[2])]; reserved {
		return Identity{}, fmt.Errorf("%w: %q ends in a reserved segment", ErrMalformedName, name)
	}
	return Identity{Session: m[1], User: m[2]}, nil
}

// NormalizedSession returns the session name with diacritics stripped.
func (id Identity) NormalizedSession() string {
	return Normalize(id.Session)
}

// NormalizedUser returns the user name with diacritics stripped.
func (id Identity) NormalizedUser() string {
	return Normalize(id.User)
}

// TimelineFileName is the destination file name for this identity. Accent
// variants of the same session/user pair map to the same file.
func (id Identity) TimelineFileName() string {
	return fmt.Sprintf("%s_%s_TIMELINE.gpx", id.NormalizedSession(), id.NormalizedUser())
}

// Key is a case-insensitive grouping key for batch scans.
func (id Identity) Key() string {
	return strings.ToLower(id.NormalizedSession()) + "\x00" + strings.ToLower(id.NormalizedUser())
}
