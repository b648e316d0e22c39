package indexpool

import (
	"log/slog"

	"github.com/kbforge/indexpool/internal/logging"
)

// SetLogger replaces the package-level logger used by indexpool.
// This allows applications to integrate indexpool logging with their own
// logging infrastructure. The provided logger should already have any
// desired attributes; indexpool will not add additional attributes.
//
// If l is nil, the logger resets to the default: slog.Default() with
// "component" attribute, re-derived on the next internal logger read and
// then cached. Call SetLogger(nil) after slog.SetDefault() to pick up
// changes.
//
// SetLogger is safe to call concurrently with other indexpool operations;
// the logger is stored behind an atomic pointer. For a strict
// happens-before guarantee, call SetLogger before Initialize.
func SetLogger(l *slog.Logger) {
	logging.SetLogger(l)
}
