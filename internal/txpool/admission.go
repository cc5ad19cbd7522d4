package txpool

import (
	"context"

	"github.com/avast/retry-go"

	"github.com/morebtcg/bcos-txpool/txpool"
)

// Submit decodes raw transaction bytes, builds a Tx, and runs it through
// the verify pipeline. Decode failure yields Malform and, if cb is
// non-nil, fires it immediately with a zero-hash invalid receipt. There is
// no Tx yet to attach the callback to.
func (p *Pool) Submit(raw []byte, cb txpool.TxSubmitCallback) txpool.Status {
	tx, err := p.decoder.Decode(raw)
	if err != nil {
		p.logger.Debug("failed to decode submitted transaction", "err", err)
		if cb != nil {
			deliver(p.logger, cb, txpool.StatusError(txpool.StatusMalform),
				&txpool.TxSubmitResult{TxHash: txpool.ZeroHash, Status: txpool.StatusMalform, Nonce: txpool.NoNonce})
		}
		return txpool.StatusMalform
	}
	return p.SubmitTx(tx, cb, false)
}

// SubmitTx dispatches to the verify or enforce path depending on enforce.
func (p *Pool) SubmitTx(tx *txpool.Tx, cb txpool.TxSubmitCallback, enforce bool) txpool.Status {
	if enforce {
		return p.EnforceSubmit(tx)
	}
	return p.verifyAndSubmit(tx, cb)
}

// verifyAndSubmit runs the admission pipeline: pool-full check, dedup,
// validation, then insert.
func (p *Pool) verifyAndSubmit(tx *txpool.Tx, cb txpool.TxSubmitCallback) txpool.Status {
	if p.txs.Len() >= p.cfg.PoolLimit {
		p.metrics.RejectedTxs.Add(1)
		return txpool.StatusTxPoolIsFull
	}

	tx.SetSubmitCallback(cb)

	if p.txs.Has(tx.Hash()) {
		p.metrics.RejectedTxs.Add(1)
		p.failAdmission(tx, txpool.StatusAlreadyInTxPool)
		return txpool.StatusAlreadyInTxPool
	}

	status := p.validator.Verify(tx)
	if !status.OK() {
		p.metrics.RejectedTxs.Add(1)
		p.failAdmission(tx, status)
		return status
	}

	tx.SetImportTime(txpool.NowMillis())
	p.insert(tx)
	p.missed.Remove(tx.Hash())
	return txpool.StatusNone
}

// BatchInsert inserts a batch of already-validated transactions directly,
// skipping the verify pipeline, then clears their hashes from MissedSet.
// Used when a caller has a batch of transactions obtained out of band (for
// example recovered from a peer's response to an earlier missed-hash
// request) and already knows they are valid.
func (p *Pool) BatchInsert(txs []*txpool.Tx) {
	for _, tx := range txs {
		tx.SetImportTime(txpool.NowMillis())
		p.insert(tx)
	}
	for _, tx := range txs {
		p.missed.Remove(tx.Hash())
	}
}

// failAdmission delivers an invalid-receipt callback for a tx that never
// made it into the table: if a callback was attached, deliver an
// invalid-receipt through it.
func (p *Pool) failAdmission(tx *txpool.Tx, status txpool.Status) {
	if !tx.HasSubmitCallback() {
		return
	}
	p.notifyTxResult(tx, status, tx.Nonce())
}

// EnforceSubmit implements the proposal-driven import path, used
// when consensus instructs the node to accept a transaction whose
// signature is already validated.
func (p *Pool) EnforceSubmit(tx *txpool.Tx) txpool.Status {
	if p.validator.SubmittedToChain(tx) == txpool.StatusNonceCheckFail {
		return txpool.StatusNonceCheckFail
	}

	_, newBatchID, newBatchHash := tx.Batch()

	p.L.Lock()
	existing, ok := p.txs.Get(tx.Hash())
	if ok {
		sealed, batchID, batchHash := existing.Batch()
		switch {
		case !sealed:
			existing.Seal(newBatchID, newBatchHash)
			p.sealed.Inc()
			p.L.Unlock()
			p.missed.Remove(tx.Hash())
			return txpool.StatusNone
		case batchID == newBatchID && batchHash == newBatchHash:
			p.L.Unlock()
			return txpool.StatusNone
		default:
			p.L.Unlock()
			return txpool.StatusAlreadyInTxPool
		}
	}

	tx.Seal(newBatchID, newBatchHash)
	tx.SetImportTime(txpool.NowMillis())
	p.txs.Set(tx.Hash(), tx)
	p.sealed.Inc()
	p.L.Unlock()

	p.missed.Remove(tx.Hash())
	p.fireOnReady()
	p.submitPreCommit(tx)
	p.notifyUnsealedSize()
	return txpool.StatusNone
}

// insert publishes a freshly admitted tx into the table, wakes the
// sealer, kick off the async pre-commit, and notify the sealer of the new
// unsealed size. Single-key writes to the concurrent table are safe
// without the structural lock, matching the original's read-lock scope
// here.
func (p *Pool) insert(tx *txpool.Tx) {
	p.L.RLock()
	p.txs.Set(tx.Hash(), tx)
	p.L.RUnlock()

	p.updateSizeMetrics()
	p.metrics.TxSizeBytes.Observe(float64(len(tx.Payload())))

	p.fireOnReady()
	p.submitPreCommit(tx)
	p.notifyUnsealedSize()
}

// submitPreCommit enqueues the bounded-retry ledger pre-commit job on the
// single-worker pool. 4 attempts total (initial + 3 retries),
// 100ms backoff, then give up silently. The tx stays in memory and a
// later seal+commit re-drives persistence upstream.
func (p *Pool) submitPreCommit(tx *txpool.Tx) {
	if p.ledger == nil {
		return
	}
	p.submitWorkerJob(func() {
		err := retry.Do(
			func() error {
				errCh := make(chan error, 1)
				p.ledger.AsyncStoreTransactions(context.Background(),
					[][]byte{tx.Payload()}, []txpool.Hash{tx.Hash()},
					func(err error) { errCh <- err })
				return <-errCh
			},
			retry.Attempts(p.cfg.PreCommitAttempts),
			retry.Delay(p.cfg.PreCommitBackoff),
			retry.DelayType(retry.FixedDelay),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			p.metrics.PreCommitFailures.Add(1)
			p.logger.Debug("ledger pre-commit exhausted retries, leaving tx in memory",
				"hash", tx.Hash().String(), "err", err)
		}
	})
}
