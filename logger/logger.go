package logger

import (
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

type Logger = *log.Logger

var global Logger

func Init(level string) {
	global = New(level)
}

func L() Logger {
	if global == nil {
		global = New("info")
	}
	return global
}

// Named returns the package logger scoped to one component, so stage and
// store logs stay attributable.
func Named(component string) Logger {
	return L().With("component", component)
}

func New(level string) Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05",
	})

	switch strings.ToLower(level) {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	return logger
}
