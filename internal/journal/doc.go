// Package journal persists a record of merge runs in SQLite.
//
// Each successful merge appends one row: which identity was merged, which
// source file fed it, and the point accounting. The journal is diagnostic
// history read back by `trackline history`; the timeline files themselves
// remain the only authoritative state, so journal failures never fail a
// merge.
package journal
