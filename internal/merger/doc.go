// Package merger orchestrates one merge invocation: derive the identity from
// the export file name, lock the destination timeline, load it, decode the
// new export, merge, and atomically replace the timeline file.
//
// The read-merge-write sequence against one timeline is a critical section.
// The triggering service can fire two merges for the same session/user in
// quick succession, and without exclusion both would read the same pre-merge
// state and one would overwrite the other's points. An flock sidecar next to
// the timeline file guards the whole sequence; the write itself is a temp
// file plus rename so a failed run never leaves a partial timeline visible.
package merger
