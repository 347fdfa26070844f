// Package identity derives the logical session/user key from PhoneTrack
// export file names.
//
// Daily exports follow `<Session>_daily_<Date>_<User>.gpx`; full exports
// follow `<Session>_<User>.gpx`. The date segment is located positionally and
// never interpreted. User names may arrive with or without diacritics
// depending on which device exported them, so the canonical form strips
// combining marks before any grouping or file naming happens. Misparsing a
// name would merge points into the wrong timeline, which is why parsing fails
// loudly instead of defaulting.
package identity
