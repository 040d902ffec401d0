package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/index"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/replica"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/state"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/store"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/worker"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags.
var build = "develop"

func main() {
	log, err := logger.New("MIRROR", os.Getenv("MIRROR_LOG_FILE"))
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Remote struct {
			URL     string        `conf:"default:http://0.0.0.0:8080"`
			Timeout time.Duration `conf:"default:30s"`
		}
		Mirror struct {
			DataPath     string        `conf:"default:zmirror/ledger.bin"`
			IndexPath    string        `conf:"default:zmirror/index"`
			SyncInterval time.Duration `conf:"default:10s"`
			SyncTimeout  time.Duration `conf:"default:5m"`
		}
		Web struct {
			DebugHost string `conf:"default:0.0.0.0:7090"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "ledger mirror and entry index",
		},
	}

	const prefix = "MIRROR"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	ev := func(v string, args ...any) {
		log.Infow(fmt.Sprintf(v, args...), "traceid", "00000000-0000-0000-0000-000000000000")
	}

	// =========================================================================
	// Remote Support

	client := replica.NewClient(replica.ClientConfig{
		URL:     cfg.Remote.URL,
		Timeout: cfg.Remote.Timeout,
	})

	// The local log must share the remote's data start so positions line up.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Remote.Timeout)
	md, err := client.Metadata(ctx)
	cancel()
	if err != nil {
		return fmt.Errorf("reading remote metadata: %w", err)
	}
	log.Infow("startup", "status", "remote", "url", cfg.Remote.URL, "data_start", md.DataStart, "blocks", md.BlocksCount)

	// =========================================================================
	// Mirror Support

	backing, err := store.OpenFile(cfg.Mirror.DataPath)
	if err != nil {
		return err
	}

	strg, err := store.New(store.Config{
		Backing:   backing,
		DataStart: md.DataStart,
		EvHandler: ev,
	})
	if err != nil {
		backing.Close()
		return fmt.Errorf("opening mirror log: %w", err)
	}

	st, err := state.New(state.Config{
		Store:     strg,
		EvHandler: ev,
	})
	if err != nil {
		strg.Close()
		return err
	}
	defer st.Shutdown()

	idx, err := index.Open(cfg.Mirror.IndexPath)
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	defer idx.Close()

	// The worker runs a first sync immediately and then one per interval.
	wrk := worker.Run(worker.Config{
		State:        st,
		Syncer:       replica.NewSyncer(client, ev),
		Index:        idx,
		SyncInterval: cfg.Mirror.SyncInterval,
		SyncTimeout:  cfg.Mirror.SyncTimeout,
		EvHandler:    ev,
	})
	defer wrk.Shutdown()

	// =========================================================================
	// Start Debug Service

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		log.Infow("startup", "status", "debug router started", "host", cfg.Web.DebugHost)
		if err := http.ListenAndServe(cfg.Web.DebugHost, mux); err != nil {
			log.Errorw("shutdown", "status", "debug router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Shutdown

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	sig := <-shutdown
	log.Infow("shutdown", "status", "shutdown started", "signal", sig)

	return nil
}
