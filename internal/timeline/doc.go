// Package timeline merges point sequences into the cumulative, deduplicated,
// chronologically ordered form a timeline file holds on disk.
package timeline
