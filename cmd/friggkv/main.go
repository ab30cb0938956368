// Command friggkv runs the in-memory key-value server: no required
// arguments, listens until signaled (spec §6).
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/log/level"

	"github.com/grafana/friggkv/internal/engine"
	"github.com/grafana/friggkv/internal/kvlog"
)

func main() {
	var cfg engine.Config
	logLevel := flag.String("log.level", "info", "Log level: debug, info, warn, error.")
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	kvlog.InitLogger(*logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := engine.New(cfg)
	if err := srv.ListenAndServe(ctx); err != nil {
		level.Error(kvlog.Logger).Log("msg", "friggkv exited with error", "err", err)
		os.Exit(1)
	}

	level.Info(kvlog.Logger).Log("msg", "friggkv shut down cleanly")
}
