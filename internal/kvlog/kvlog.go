// Package kvlog is the server's process-wide logger, grounded on
// cmd/tempo/main.go's pkg/util/log.Logger global: a single logfmt logger
// constructed once in main and referenced everywhere else as
// level.Info(kvlog.Logger).Log("msg", ..., "k", v).
package kvlog

import (
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Logger is the process-wide logger. InitLogger replaces it; until then it
// logs at info level to stderr so package init order never leaves it nil.
var Logger = newDefault()

func newDefault() log.Logger {
	l := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	l = log.With(l, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	return level.NewFilter(l, level.AllowInfo())
}

// InitLogger rebuilds Logger at the given level name ("debug", "info",
// "warn", "error"), defaulting to "info" for an unrecognized name.
func InitLogger(levelName string) {
	l := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	l = log.With(l, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	Logger = level.NewFilter(l, allowOption(levelName))
}

func allowOption(name string) level.Option {
	switch name {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}
