// Package handlers manages the different versions of the API.
package handlers

import (
	"context"
	"expvar"
	"net/http"
	"net/http/pprof"
	"os"

	"github.com/decent-stuff/decent-cloud-sub003/app/services/ledger/handlers/debug/checkgrp"
	v1 "github.com/decent-stuff/decent-cloud-sub003/app/services/ledger/handlers/v1"
	"github.com/decent-stuff/decent-cloud-sub003/business/core/ledger"
	"github.com/decent-stuff/decent-cloud-sub003/business/web/mid"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/events"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/replica"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/state"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/nameservice"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MuxConfig contains all the mandatory systems required by handlers.
type MuxConfig struct {
	Shutdown    chan os.Signal
	Log         *zap.SugaredLogger
	State       *state.State
	Core        *ledger.Core
	Source      *replica.Source
	NS          *nameservice.NameService
	Evts        *events.Events
	RateLimiter *mid.RateLimiter
	Origins     []string
}

// PublicMux constructs a http.Handler with all application routes defined.
func PublicMux(cfg MuxConfig) http.Handler {
	origins := cfg.Origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	app := web.NewApp(
		cfg.Shutdown,
		mid.Logger(cfg.Log),
		mid.Errors(cfg.Log),
		mid.Metrics(),
		mid.Cors(origins...),
		mid.Panics(),
	)

	// Accept CORS 'OPTIONS' preflight requests.
	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return nil
	}
	app.Handle(http.MethodOptions, "", "/*", h)

	v1.Routes(app, v1.Config{
		Log:         cfg.Log,
		State:       cfg.State,
		Core:        cfg.Core,
		Source:      cfg.Source,
		NS:          cfg.NS,
		Evts:        cfg.Evts,
		RateLimiter: cfg.RateLimiter,
	})

	return app
}

// DebugStandardLibraryMux registers all the debug routes from the standard library
// into a new mux bypassing the use of the DefaultServerMux. Using the
// DefaultServerMux would be a security risk since a dependency could inject a
// handler into our service without us knowing it.
func DebugStandardLibraryMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/vars", expvar.Handler())

	return mux
}

// DebugMux registers all the debug standard library routes, the health
// checks and the prometheus metrics of the service.
func DebugMux(build string, log *zap.SugaredLogger, st *state.State) http.Handler {
	mux := DebugStandardLibraryMux()

	cgh := checkgrp.Handlers{
		Build: build,
		Log:   log,
		State: st,
	}
	mux.HandleFunc("/debug/readiness", cgh.Readiness)
	mux.HandleFunc("/debug/liveness", cgh.Liveness)
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}
