package main

import (
	"context"
	"expvar"
	"flag"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	"go.uber.org/dig"

	dig_container "github.com/alphazero/academy/apps/api/di/dig"
	echoapi "github.com/alphazero/academy/apps/api/echo"
	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/services/jobs"
	"github.com/alphazero/academy/services/metrics"
)

type app struct {
	dig.In

	Conf      *core.Config
	Logger    core.Logger
	DBLogger  core.Logger `name:"dbLogger"`
	Metrics   *metrics.Metrics
	Scheduler *jobs.Scheduler
	Server    *echoapi.Server
	Closers   []dig_container.Closer `group:"closers"`
}

func main() {
	graph := flag.Bool("graph", false, "print the dependency graph (DOT) and exit")
	flag.Parse()

	c := dig_container.New()
	if *graph {
		must(c.Invoke(func(*echoapi.Server, *jobs.Scheduler) {}))
		must(dig_container.Visualize(c))
		return
	}
	must(c.Invoke(run))
}

func run(a app) {
	conf, apiLogger := a.Conf, a.Logger

	// =========================================================================
	// Initialize App

	apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

	defer func() {
		for _, c := range a.Closers {
			if err := c.Close(); err != nil {
				a.DBLogger.Error(fmt.Sprintf("failed to close %s: %v", c.Name, err), err)
			}
		}
	}()
	defer apiLogger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - Prometheus collectors.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	http.Handle("/metrics", a.Metrics.Handler())

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Scheduled Jobs

	a.Scheduler.Start()

	// =========================================================================
	// Start API Service

	go func() {
		a.Server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-a.Server.Errors():
		apiLogger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-a.Server.ShutdownSignal():
		apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
	}

	// give outstanding requests and jobs a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()

	a.Scheduler.Stop(ctx)

	// asking listener to shut down and shed load
	if err := a.Server.Shutdown(ctx); err != nil {
		apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

		if err = a.Server.Close(); err != nil {
			apiLogger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
		}
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
