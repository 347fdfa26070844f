// Package logging constructs slog loggers for trackline.
//
// Two formats exist: a console handler emitting one key=value line per record
// and a JSON handler for machine consumption. Output always goes to stdout
// and, when a log directory is configured, additionally to a log file.
package logging
