package txpool

import (
	"golang.org/x/sync/errgroup"

	"github.com/morebtcg/bcos-txpool/libs/log"
	"github.com/morebtcg/bcos-txpool/txpool"
)

// startWorkerPool launches the single-worker pool that serialises ledger
// pre-commit writes: a single worker, strict FIFO.
func (p *Pool) startWorkerPool() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for job := range p.workerJobs {
			p.runJob(job)
		}
	}()
}

// startNotifierPool launches n parallel notifier goroutines that deliver
// submit callbacks and drive the invalid-tx purge. No ordering guarantee
// between jobs.
func (p *Pool) startNotifierPool(n int) {
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.notifierJobs {
				p.runJob(job)
			}
		}()
	}
}

// runJob executes job, recovering any panic at the job boundary and
// logging it. This mirrors the catch(std::exception...) blocks the original
// wraps every pool job body in. Pool jobs never propagate a panic out to
// the worker/notifier goroutine.
func (p *Pool) runJob(job func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pool job panicked", "panic", r)
		}
	}()
	job()
}

// submitWorkerJob enqueues job on the pre-commit worker pool. It is a
// no-op once the pool is stopped. In-flight submitters that observe a
// stopped pool simply drop the job, matching the "gone" signal the original
// surfaces via a weak-pointer check.
func (p *Pool) submitWorkerJob(job func()) {
	if p.stopped.Load() {
		return
	}
	defer func() { recover() }() //nolint:errcheck // channel may close concurrently with Stop
	p.workerJobs <- job
}

// submitNotifierJob enqueues job on the notifier pool. See submitWorkerJob.
func (p *Pool) submitNotifierJob(job func()) {
	if p.stopped.Load() {
		return
	}
	defer func() { recover() }() //nolint:errcheck
	p.notifierJobs <- job
}

// notifyUnsealedSize pushes the current unsealed size to the registered
// notifier, retrying up to cfg.MaxRetryTime times if the ack reports an
// error. Runs on the notifier pool so callers never block on it.
func (p *Pool) notifyUnsealedSize() {
	p.logStalledPool()

	p.hooksMu.Lock()
	hook := p.unsealedNotifier
	p.hooksMu.Unlock()
	if hook == nil {
		return
	}
	p.submitNotifierJob(func() {
		size := p.UnsealedSize()
		attempts := 0
		var ack func(error)
		ack = func(err error) {
			if err == nil {
				return
			}
			attempts++
			if attempts > p.cfg.MaxRetryTime {
				p.logger.Error("giving up on unsealed-size notification", "size", size, "attempts", attempts, "err", err)
				return
			}
			p.logger.Debug("retrying unsealed-size notification", "size", size, "attempt", attempts, "err", err)
			hook(size, ack)
		}
		hook(size, ack)
	})
}

// notifyTxResult delivers tx's one-shot submit callback, if any, on the
// notifier pool. Whether notification is warranted must already have been
// decided by the caller, notifyTxResult always fires whatever callback it
// finds.
func (p *Pool) notifyTxResult(tx *txpool.Tx, status txpool.Status, nonce txpool.Nonce) {
	cb := tx.TakeSubmitCallback()
	if cb == nil {
		return
	}
	result := &txpool.TxSubmitResult{TxHash: tx.Hash(), Status: status, Nonce: nonce}
	p.submitNotifierJob(func() {
		var err error
		if !status.OK() {
			err = txpool.StatusError(status)
		}
		deliver(p.logger, cb, err, result)
	})
}

// deliver invokes cb, recovering and logging any panic so a misbehaving
// callback can never take down a notifier goroutine.
func deliver(logger log.Logger, cb txpool.TxSubmitCallback, err error, result *txpool.TxSubmitResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("submit callback panicked", "panic", r, "hash", result.TxHash.String())
		}
	}()
	cb(err, result)
}

// removeInvalidTxs drains InvalidSet under the structural lock and, in
// parallel, removes the invalid hashes from TxTable and the invalid nonces
// from PoolNonceChecker; after releasing the lock it notifies each removed
// tx's submitter of BlockLimitCheckFail. It is always run as a notifier
// job, matching the original's tbb::parallel_invoke inside
// removeInvalidTxs.
func (p *Pool) removeInvalidTxs() {
	p.submitNotifierJob(func() {
		p.L.Lock()
		hashes, nonces := p.invalid.DrainAndClear()
		var removedTxs []*txpool.Tx
		var g errgroup.Group
		g.Go(func() error {
			for _, h := range hashes {
				if tx, ok := p.txs.Get(h); ok {
					p.txs.Remove(h)
					if sealed, _, _ := tx.Batch(); sealed {
						p.sealed.Dec()
					}
					removedTxs = append(removedTxs, tx)
				}
			}
			return nil
		})
		g.Go(func() error {
			if len(nonces) > 0 && p.poolNonce != nil {
				p.poolNonce.BatchRemove(nonces)
			}
			return nil
		})
		_ = g.Wait()
		p.L.Unlock()

		for _, tx := range removedTxs {
			p.notifyTxResult(tx, txpool.StatusBlockLimitCheckFail, tx.Nonce())
			p.metrics.EvictedTxs.Add(1)
		}

		p.notifyUnsealedSize()
	})
}
