package logger

import (
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// New builds the process logger. Unknown levels fall back to info.
func New(level string, json bool, out io.Writer) *charmlog.Logger {
	if out == nil {
		out = os.Stderr
	}
	lvl, err := charmlog.ParseLevel(level)
	if err != nil {
		lvl = charmlog.InfoLevel
	}
	l := charmlog.NewWithOptions(out, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05",
		Level:           lvl,
		Prefix:          "noticeboard",
	})
	if json {
		l.SetFormatter(charmlog.JSONFormatter)
	}
	return l
}

// Nop discards everything; used by tests and CLI subcommands that print directly.
func Nop() *charmlog.Logger {
	return charmlog.New(io.Discard)
}
