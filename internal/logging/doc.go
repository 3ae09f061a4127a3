// Package logging sets up structured slog logging for userindex.
// Logs are JSON lines written to a size-rotated file under ~/.userindex/logs/
// and, unless the process speaks a protocol on stdio, mirrored to stderr.
package logging
