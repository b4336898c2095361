package main

import "log/slog"

// LevelFromFlags returns the logging level from the verbosity flags
//
// vv takes precedence over v, which takes precedence over q; the default is warn
func LevelFromFlags(vv, v, q bool) slog.Level {
	switch {
	case vv:
		return slog.LevelDebug
	case v:
		return slog.LevelInfo
	case q:
		return slog.LevelError
	}
	return slog.LevelWarn
}
