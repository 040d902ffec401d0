package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/decent-stuff/decent-cloud-sub003/app/services/ledger/handlers"
	"github.com/decent-stuff/decent-cloud-sub003/business/core/ledger"
	"github.com/decent-stuff/decent-cloud-sub003/business/web/mid"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/events"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/genesis"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/replica"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/state"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/store"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/worker"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/logger"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/nameservice"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags.
var build = "develop"

func main() {

	// The logger exists before the configuration is parsed, so the rotated
	// log file is only taken from the environment.
	log, err := logger.New("LEDGER", os.Getenv("LEDGER_LOG_FILE"))
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
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:30s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
			CorsOrigins     []string      `conf:"default:*"`
		}
		Ledger struct {
			DataPath      string        `conf:"default:zledger/ledger.bin"`
			DataStart     uint64        `conf:"default:4096"`
			GenesisPath   string        `conf:"default:zledger/genesis.json"`
			KeysFolder    string        `conf:"default:zledger/accounts/"`
			NodeKeyName   string        `conf:"default:node"`
			Pusher        string        `conf:"help:hex public key allowed to push log data"`
			AgingInterval time.Duration `conf:"default:24h"`
		}
		RateLimit struct {
			PerSecond float64 `conf:"default:5"`
			Burst     int     `conf:"default:20"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "decentralized marketplace ledger",
		},
	}

	const prefix = "LEDGER"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Name Service Support

	ns, err := nameservice.New(cfg.Ledger.KeysFolder)
	if err != nil {
		return fmt.Errorf("unable to load account name service: %w", err)
	}

	for account, name := range ns.Copy() {
		log.Infow("startup", "status", "nameservice", "name", name, "account", account)
	}

	// =========================================================================
	// Ledger Support

	// The node key signs the metadata replicas verify.
	nodeKey, err := crypto.LoadECDSA(filepath.Join(cfg.Ledger.KeysFolder, cfg.Ledger.NodeKeyName+".ecdsa"))
	if err != nil {
		return fmt.Errorf("unable to load private key for node: %w", err)
	}

	var pusher []byte
	if cfg.Ledger.Pusher != "" {
		if pusher, err = hexutil.Decode(cfg.Ledger.Pusher); err != nil {
			return fmt.Errorf("parsing pusher key: %w", err)
		}
	}

	// The ledger packages accept a function of this signature to allow the
	// application to log. The raw messages are also sent to any websocket
	// client that is connected through the events package.
	evts := events.NewEvents()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		if err := evts.Send(events.New(s)); err != nil {
			log.Errorw("events", "ERROR", err)
		}
	}

	backing, err := store.OpenFile(cfg.Ledger.DataPath)
	if err != nil {
		return err
	}

	strg, err := store.New(store.Config{
		Backing:   backing,
		DataStart: cfg.Ledger.DataStart,
		EvHandler: ev,
	})
	if err != nil {
		backing.Close()
		return fmt.Errorf("opening ledger: %w", err)
	}

	var gen *genesis.Genesis
	if cfg.Ledger.GenesisPath != "" {
		g, err := genesis.Load(cfg.Ledger.GenesisPath)
		if err != nil {
			return fmt.Errorf("loading genesis: %w", err)
		}
		gen = &g
	}

	st, err := state.New(state.Config{
		Store:     strg,
		Genesis:   gen,
		EvHandler: ev,
	})
	if err != nil {
		strg.Close()
		return err
	}
	defer st.Shutdown()

	src, err := replica.NewSource(replica.SourceConfig{
		State:     st,
		NodeKey:   nodeKey,
		Pusher:    pusher,
		EvHandler: ev,
	})
	if err != nil {
		return err
	}

	core := ledger.NewCore(st, func() uint64 { return uint64(time.Now().UnixNano()) })

	// The worker ages reputations on the configured interval.
	wrk := worker.Run(worker.Config{
		State:         st,
		AgingInterval: cfg.Ledger.AgingInterval,
		EvHandler:     ev,
	})
	defer wrk.Shutdown()

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	debugMux := handlers.DebugMux(build, log, st)

	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown:    shutdown,
		Log:         log,
		State:       st,
		Core:        core,
		Source:      src,
		NS:          ns,
		Evts:        evts,
		RateLimiter: mid.NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst),
		Origins:     cfg.Web.CorsOrigins,
	})

	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}
