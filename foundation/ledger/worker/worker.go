// Package worker runs the background operations of a ledger node and of a
// mirror: periodic reputation aging and periodic log sync from a remote.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/database"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/index"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/replica"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/state"
)

// Config represents the set of operations a worker runs. An operation with
// a zero interval is not started.
type Config struct {
	State *state.State

	// Reputation aging on the canonical node.
	AgingInterval time.Duration
	AgingPPM      uint64

	// Log sync on a mirror.
	Syncer       *replica.Syncer
	Index        *index.Index
	SyncInterval time.Duration
	SyncTimeout  time.Duration

	EvHandler state.EventHandler
}

// Worker manages the background workflows for the ledger.
type Worker struct {
	state     *state.State
	wg        sync.WaitGroup
	shut      chan struct{}
	evHandler state.EventHandler

	agingPPM      uint64
	agingInterval time.Duration

	syncer       *replica.Syncer
	index        *index.Index
	syncInterval time.Duration
	syncTimeout  time.Duration
}

// Run creates a worker and starts up all the configured background
// operations.
func Run(cfg Config) *Worker {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	ppm := cfg.AgingPPM
	if ppm == 0 {
		ppm = database.ReputationAgingPPM
	}

	timeout := cfg.SyncTimeout
	if timeout == 0 {
		timeout = time.Minute
	}

	w := Worker{
		state:         cfg.State,
		shut:          make(chan struct{}),
		evHandler:     ev,
		agingPPM:      ppm,
		agingInterval: cfg.AgingInterval,
		syncer:        cfg.Syncer,
		index:         cfg.Index,
		syncInterval:  cfg.SyncInterval,
		syncTimeout:   timeout,
	}

	// Bring a mirror up to date before starting any support G's.
	if w.syncer != nil {
		w.Sync()
	}

	// Load the set of operations we need to run.
	var operations []func()
	if w.agingInterval > 0 {
		operations = append(operations, w.agingOperations)
	}
	if w.syncer != nil && w.syncInterval > 0 {
		operations = append(operations, w.syncOperations)
	}

	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	for range g {
		<-hasStarted
	}

	return &w
}

// Shutdown terminates the goroutines performing work.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.evHandler("worker: shutdown: terminate goroutines")
	close(w.shut)
	w.wg.Wait()
}

// =============================================================================

// agingOperations appends a reputation aging entry on every tick.
func (w *Worker) agingOperations() {
	w.evHandler("worker: agingOperations: G started")
	defer w.evHandler("worker: agingOperations: G completed")

	ticker := time.NewTicker(w.agingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !w.isShutdown() {
				w.Age()
			}
		case <-w.shut:
			w.evHandler("worker: agingOperations: received shut signal")
			return
		}
	}
}

// Age appends one reputation aging entry.
func (w *Worker) Age() {
	w.evHandler("worker: Age: started")
	defer w.evHandler("worker: Age: completed")

	if err := w.state.AgeReputations(w.agingPPM); err != nil {
		w.evHandler("worker: Age: ERROR: %s", err)
	}
}

// syncOperations pulls new log data from the remote on every tick.
func (w *Worker) syncOperations() {
	w.evHandler("worker: syncOperations: G started")
	defer w.evHandler("worker: syncOperations: G completed")

	ticker := time.NewTicker(w.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !w.isShutdown() {
				w.Sync()
			}
		case <-w.shut:
			w.evHandler("worker: syncOperations: received shut signal")
			return
		}
	}
}

// Sync fetches until the local log matches the remote, rebuilds the views
// when anything arrived and indexes the new entries.
func (w *Worker) Sync() {
	w.evHandler("worker: Sync: started")
	defer w.evHandler("worker: Sync: completed")

	ctx, cancel := context.WithTimeout(context.Background(), w.syncTimeout)
	defer cancel()

	// Stop fetching as soon as a shutdown is signaled.
	go func() {
		select {
		case <-w.shut:
			cancel()
		case <-ctx.Done():
		}
	}()

	strg := w.state.Store()

	res, err := w.syncer.FetchAll(ctx, strg)
	if err != nil {
		w.evHandler("worker: Sync: fetch: ERROR: %s", err)
		return
	}

	if res.Bytes > 0 {
		stats, err := w.state.Rebuild()
		if err != nil {
			w.evHandler("worker: Sync: rebuild: ERROR: %s", err)
			return
		}
		w.evHandler("worker: Sync: rebuild: blocks[%d] transactions[%d] skipped[%d]", stats.Blocks, stats.Transactions, stats.Skipped)
	}

	if w.index == nil {
		return
	}

	n, err := w.index.Sync(strg, strg.NextBlockStartPosition())
	if err != nil {
		w.evHandler("worker: Sync: index: ERROR: %s", err)
		return
	}

	if n > 0 {
		w.evHandler("worker: Sync: index: entries[%d] position[%d]", n, strg.NextBlockStartPosition())
	}
}

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
