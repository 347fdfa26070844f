// Package gpx decodes and encodes PhoneTrack-flavored GPX track documents.
//
// Decoding tolerates malformed track points: a point missing a coordinate or
// carrying an unparsable timestamp is skipped and counted instead of failing
// the whole document, so a single bad sample never loses a day's export.
// Encoding writes the same structure PhoneTrack emits, including the optional
// per-point fields (elevation, satellites, and the extensions block), and
// omits fields that are absent. Decode followed by Encode preserves every
// point and every populated optional field.
package gpx
