// Package serverrun wires and runs the HeadCache server process: open
// the runtime, start the HTTP query gateway, block until shutdown.
package serverrun

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cfgpkg "github.com/rzbill/headcache/internal/config"
	"github.com/rzbill/headcache/internal/runtime"
	httpserver "github.com/rzbill/headcache/internal/server/http"
	logpkg "github.com/rzbill/headcache/pkg/log"
)

// Options configures Run.
type Options struct {
	HTTPAddr string
	Config   cfgpkg.Config
}

// Run opens the runtime, starts the HTTP server, and blocks until ctx is
// cancelled or an interrupt/SIGTERM is received.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	procLogger := logpkg.ApplyConfig(opts.Config.Log)
	restoreStdLog := logpkg.RedirectStdLog(procLogger)
	defer restoreStdLog()

	procLogger.Info("starting headcache server",
		logpkg.Str("http", opts.HTTPAddr),
		logpkg.Str("dataDir", opts.Config.Storage.DataDir),
		logpkg.Field{Key: "brokers", Value: opts.Config.Kafka.Brokers},
		logpkg.Field{Key: "topics", Value: opts.Config.Kafka.Topics},
	)

	rt, err := runtime.Open(runtime.Options{Config: opts.Config, Logger: procLogger})
	if err != nil {
		return err
	}
	defer rt.Close()
	procLogger.Info("runtime ready", logpkg.Str("instanceId", rt.InstanceID()))

	hsrv := httpserver.New(rt)
	errCh := make(chan error, 1)
	go func() { errCh <- hsrv.ListenAndServe(sctx, opts.HTTPAddr) }()

	select {
	case <-sctx.Done():
		hsrv.Close()
		return nil
	case err := <-errCh:
		return err
	}
}
