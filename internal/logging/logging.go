package logging

import (
	"io"

	"github.com/charmbracelet/log"
)

// New returns a logger for diagnostics. level is one of debug, info, warn or
// error; anything else falls back to info.
func New(w io.Writer, level string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		Prefix:          "inboxdomains",
		ReportTimestamp: true,
	})
}
