package match

import (
	"log/slog"
	"os"
)

var logger = slog.New(slog.NewJSONHandler(os.Stderr, nil)).With("component", "match")

// SetLogger allows setting a custom logger
func SetLogger(l *slog.Logger) {
	logger = l
}
