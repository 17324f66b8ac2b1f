// Package logging sets up docsift's structured logger and the plain-text
// failure logs written by batch stages.
//
// The logger is a JSON slog handler over a size-rotated file under
// ~/.docsift/logs/, optionally teed to stderr. It is created once by the
// root command and handed to every component constructor.
package logging
