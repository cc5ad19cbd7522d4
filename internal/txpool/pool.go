// Package txpool implements the concurrent transaction pool engine: the
// admission pipeline, the sealer-facing batch operations, and the
// background pools that keep ledger writes and callback delivery off the
// hot path. The public surface other packages program against (Tx,
// Status, the collaborator interfaces, Metrics) lives one level up in
// github.com/morebtcg/bcos-txpool/txpool; this package is the thing that
// actually stores, seals and removes them.
package txpool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/morebtcg/bcos-txpool/config"
	"github.com/morebtcg/bcos-txpool/libs/log"
	"github.com/morebtcg/bcos-txpool/txpool"
)

// stalledPoolThreshold is how long the pool may sit non-empty and fully
// sealed, with the block number unmoving, before logStalledPool fires.
// Matches the original's 50-second printPendingTxs threshold.
const stalledPoolThreshold = 50 * time.Second

// Pool is the concurrent transaction pool. All exported methods are safe
// for concurrent use from RPC-handling goroutines, the sealer, and the
// block importer simultaneously.
type Pool struct {
	cfg     *config.Config
	logger  log.Logger
	metrics *txpool.Metrics

	validator   txpool.TxValidator
	ledgerNonce txpool.LedgerNonceChecker
	poolNonce   txpool.PoolNonceChecker
	ledger      txpool.Ledger
	decoder     txpool.TxDecoder

	// L is the mempool-wide structural lock. It serialises
	// multi-step TxTable operations (enforce-submit's check-then-insert,
	// batch-remove's iterate-and-erase, invalid-tx purge); single-key
	// reads/writes on txs itself do not need it.
	L sync.RWMutex

	txs     *TxTable
	missed  *MissedSet
	invalid *InvalidSet
	sealed  SealCounter

	chainMu            sync.Mutex
	blockNumber        txpool.BatchID
	blockNumberUpdated int64

	hooksMu          sync.Mutex
	onReady          func()
	unsealedNotifier func(size int, ack func(error))

	stallMu       sync.Mutex
	stallSince    int64
	stallReported bool

	stopped atomic.Bool

	workerJobs   chan func()
	notifierJobs chan func()
	wg           sync.WaitGroup
}

// NewPool constructs a Pool and starts its background pools. Callers must
// call Stop when done to drain them.
func NewPool(
	cfg *config.Config,
	logger log.Logger,
	metrics *txpool.Metrics,
	validator txpool.TxValidator,
	ledgerNonce txpool.LedgerNonceChecker,
	poolNonce txpool.PoolNonceChecker,
	ledger txpool.Ledger,
	decoder txpool.TxDecoder,
) *Pool {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if metrics == nil {
		metrics = txpool.NopMetrics()
	}
	p := &Pool{
		cfg:          cfg,
		logger:       logger,
		metrics:      metrics,
		validator:    validator,
		ledgerNonce:  ledgerNonce,
		poolNonce:    poolNonce,
		ledger:       ledger,
		decoder:      decoder,
		txs:          newTxTable(),
		missed:       newMissedSet(),
		invalid:      newInvalidSet(),
		workerJobs:   make(chan func(), 4096),
		notifierJobs: make(chan func(), 4096),
	}
	p.startWorkerPool()
	p.startNotifierPool(cfg.NotifierWorkerNum)
	return p
}

// SetOnReady registers the hook fired after every successful insert, used
// by the sealer to learn a new transaction is available.
func (p *Pool) SetOnReady(hook func()) {
	p.hooksMu.Lock()
	defer p.hooksMu.Unlock()
	p.onReady = hook
}

// SetUnsealedNotifier registers the hook fired with the current unsealed
// size after any mutation that could change it. ack is invoked by
// the notifier with the delivery outcome.
func (p *Pool) SetUnsealedNotifier(hook func(size int, ack func(error))) {
	p.hooksMu.Lock()
	defer p.hooksMu.Unlock()
	p.unsealedNotifier = hook
}

func (p *Pool) fireOnReady() {
	p.hooksMu.Lock()
	hook := p.onReady
	p.hooksMu.Unlock()
	if hook != nil {
		hook()
	}
}

// updateSizeMetrics refreshes the size and sealed-size gauges from current
// state. Cheap enough to call after every structural mutation.
func (p *Pool) updateSizeMetrics() {
	p.metrics.Size.Set(float64(p.txs.Len()))
	p.metrics.SealedSize.Set(float64(p.sealed.Load()))
}

// Size returns the total number of pending transactions.
func (p *Pool) Size() int {
	return p.txs.Len()
}

// UnsealedSize returns max(0, |TxTable| - sealed_count).
func (p *Pool) UnsealedSize() int {
	unsealed := int64(p.txs.Len()) - p.sealed.Load()
	if unsealed < 0 {
		return 0
	}
	return int(unsealed)
}

// BlockNumber returns the highest committed block id the pool has
// observed, and the wall-clock millisecond timestamp of that observation.
func (p *Pool) BlockNumber() (txpool.BatchID, int64) {
	p.chainMu.Lock()
	defer p.chainMu.Unlock()
	return p.blockNumber, p.blockNumberUpdated
}

func (p *Pool) advanceBlockNumber(batchID txpool.BatchID) {
	p.chainMu.Lock()
	defer p.chainMu.Unlock()
	// Strict comparison per the open-question resolution in DESIGN.md:
	// ported from the original's `_batchId > m_blockNumber`, not >=.
	if batchID > p.blockNumber {
		p.blockNumber = batchID
	}
	p.blockNumberUpdated = txpool.NowMillis()
}

// Clear empties the table outright. Used by tests and around resyncs; not
// part of normal operation.
func (p *Pool) Clear() {
	p.L.Lock()
	defer p.L.Unlock()
	p.txs.Clear()
	p.missed.Clear()
	p.invalid.DrainAndClear()
	p.sealed.Set(0)
}

// Stop drains and stops both background pools. Jobs already queued still
// run to completion; submitWorkerJob/submitNotifierJob observe the stopped
// flag and drop any job submitted afterwards: the Go analogue of the
// original's weak-pointer "mempool gone" check.
func (p *Pool) Stop(ctx context.Context) error {
	if !p.stopped.CompareAndSwap(false, true) {
		return nil
	}
	close(p.workerJobs)
	close(p.notifierJobs)
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// logStalledPool reports once per stall when the pool has been non-empty
// and fully sealed (every tx handed to a proposal) for more than
// stalledPoolThreshold without the block number advancing: a sign sealing
// is keeping up but commits aren't landing. Ported from the original's
// printPendingTxs/m_printed diagnostic, which skips when there is still
// unsealed work (unSealedTxsSize() > 0) or the pool is empty.
func (p *Pool) logStalledPool() {
	size := p.Size()
	unsealed := p.UnsealedSize()
	if size == 0 || unsealed > 0 {
		p.stallMu.Lock()
		p.stallSince = 0
		p.stallReported = false
		p.stallMu.Unlock()
		return
	}

	_, blockUpdated := p.BlockNumber()
	now := txpool.NowMillis()
	p.stallMu.Lock()
	defer p.stallMu.Unlock()
	if p.stallSince == 0 || blockUpdated > p.stallSince {
		// First observation, or a block was committed since the stall
		// began: restart the window.
		p.stallSince = now
		p.stallReported = false
		return
	}
	if p.stallReported {
		return
	}
	if time.Duration(now-p.stallSince)*time.Millisecond >= stalledPoolThreshold {
		p.stallReported = true
		p.logger.Error("pool appears stalled: non-empty and fully sealed past threshold",
			"size", size, "threshold", stalledPoolThreshold.String())
	}
}
