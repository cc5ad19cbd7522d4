package txpool

import (
	"github.com/morebtcg/bcos-txpool/txpool"
)

// FetchTxs splits the requested hashes into those held locally and those
// missing, under read lock. Ported directly from the original's
// MemoryStorage::fetchTxs.
func (p *Pool) FetchTxs(hashes []txpool.Hash) (found []*txpool.Tx, missing []txpool.Hash) {
	p.L.RLock()
	defer p.L.RUnlock()
	for _, h := range hashes {
		if tx, ok := p.txs.Get(h); ok {
			found = append(found, tx)
		} else {
			missing = append(missing, h)
		}
	}
	return found, missing
}

// FetchNewTxs is a read-locked scan yielding
// up to limit transactions whose synced flag is still false, marking each
// as synced as it is emitted. Iteration order follows the table's natural
// (unordered) order.
func (p *Pool) FetchNewTxs(limit int) []*txpool.Tx {
	p.L.RLock()
	snapshot := p.txs.Snapshot()
	p.L.RUnlock()

	out := make([]*txpool.Tx, 0, limit)
	for _, tx := range snapshot {
		if len(out) >= limit {
			break
		}
		if tx.MarkSynced() {
			out = append(out, tx)
		}
	}
	return out
}

// BatchFetchTxs implements the sealer's primary operation. It scans
// the table under read lock, skipping invalid, already-chain-committed, and
// avoided hashes, consumes each selected tx's submit callback (the sealer
// now owns notifying the submitter), and routes it to the user or system
// output slice. avoidSet may be nil.
func (p *Pool) BatchFetchTxs(limit int, avoidSet map[txpool.Hash]struct{}, avoidDuplicate bool) (outUser, outSystem []txpool.TransactionMetaData) {
	p.L.RLock()
	snapshot := p.txs.Snapshot()
	p.L.RUnlock()

	for _, tx := range snapshot {
		if len(outUser)+len(outSystem) >= limit {
			break
		}
		hash := tx.Hash()

		if p.invalid.HasHash(hash) {
			continue
		}

		switch p.validator.SubmittedToChain(tx) {
		case txpool.StatusNonceCheckFail:
			continue
		case txpool.StatusBlockLimitCheckFail:
			if !tx.Sealed() {
				p.invalid.AddHash(hash)
				p.invalid.AddNonce(tx.Nonce())
			}
			continue
		}

		if avoidSet != nil {
			if _, skip := avoidSet[hash]; skip {
				continue
			}
		}
		if avoidDuplicate && tx.Sealed() {
			continue
		}

		meta := txpool.TransactionMetaData{Hash: hash, To: tx.To(), Source: "From rpc"}
		_ = tx.TakeSubmitCallback()

		wasSealed := tx.Seal(txpool.NoBatchID, txpool.ZeroHash)
		if !wasSealed {
			p.sealed.Inc()
		}

		if tx.SystemTx() {
			outSystem = append(outSystem, meta)
		} else {
			outUser = append(outUser, meta)
		}
	}

	p.notifyUnsealedSize()
	p.removeInvalidTxs()
	return outUser, outSystem
}

// BatchMarkTxs marks a set of hashes sealed or unsealed into the given
// batch. When unsealing, a tx
// whose current batch hash is nonzero and differs from batchHash is left
// alone: it was re-sealed by a newer proposal and must not be unsealed
// out from under it.
func (p *Pool) BatchMarkTxs(hashes []txpool.Hash, batchID txpool.BatchID, batchHash txpool.Hash, seal bool) {
	p.L.RLock()
	defer p.L.RUnlock()
	for _, h := range hashes {
		tx, ok := p.txs.Get(h)
		if !ok {
			continue
		}
		p.markOne(tx, batchID, batchHash, seal)
	}
}

func (p *Pool) markOne(tx *txpool.Tx, batchID txpool.BatchID, batchHash txpool.Hash, seal bool) {
	if !seal {
		_, _, currentHash := tx.Batch()
		if !currentHash.IsZero() && currentHash != batchHash {
			return
		}
	}

	wasSealed := tx.Sealed()
	if seal {
		tx.Seal(batchID, batchHash)
		if !wasSealed {
			p.sealed.Inc()
		}
	} else {
		tx.Unseal()
		if wasSealed {
			p.sealed.Dec()
		}
	}
}

// BatchMarkAllTxs sets the seal flag on
// every tx, resetting (batch_id, batch_hash) on unseal, then recompute
// sealed_count exactly (|TxTable| if sealing, 0 otherwise) rather than
// incrementally, since every tx transitions at once.
func (p *Pool) BatchMarkAllTxs(seal bool) {
	p.L.RLock()
	snapshot := p.txs.Snapshot()
	p.L.RUnlock()

	for _, tx := range snapshot {
		if seal {
			tx.Seal(txpool.NoBatchID, txpool.ZeroHash)
		} else {
			// Seal overwrites the batch identity with the sentinels;
			// Unseal then clears the flag and keeps them.
			tx.Seal(txpool.NoBatchID, txpool.ZeroHash)
			tx.Unseal()
		}
	}

	if seal {
		p.sealed.Set(int64(len(snapshot)))
	} else {
		p.sealed.Set(0)
	}
}

// BatchRemoveResult pairs a hash with the outcome the block importer
// reached for it, for BatchRemove's callback delivery.
type BatchRemoveResult struct {
	Hash   txpool.Hash
	Status txpool.Status
	Nonce  txpool.Nonce
}

// BatchRemove is called on block commit. It
// removes each committed tx from the table under write lock, advances the
// observed block number. Outside the lock, it pushes collected nonces
// to the ledger-nonce checker and removes them from the pool-nonce
// checker, then delivers each removed tx's submit callback via the
// notifier pool.
func (p *Pool) BatchRemove(batchID txpool.BatchID, results []BatchRemoveResult) {
	type removed struct {
		tx     *txpool.Tx
		status txpool.Status
		nonce  txpool.Nonce
	}
	var removedTxs []removed
	var nonces []txpool.Nonce

	p.L.Lock()
	for _, r := range results {
		tx, ok := p.txs.Get(r.Hash)
		nonce := r.Nonce
		if ok {
			p.txs.Remove(r.Hash)
			if sealed, _, _ := tx.Batch(); sealed {
				p.sealed.Dec()
			}
			nonce = tx.Nonce()
			removedTxs = append(removedTxs, removed{tx: tx, status: r.Status, nonce: nonce})
		}
		if nonce != txpool.NoNonce {
			nonces = append(nonces, nonce)
		}
	}
	p.advanceBlockNumber(batchID)
	p.L.Unlock()

	if len(nonces) > 0 {
		if p.ledgerNonce != nil {
			p.ledgerNonce.BatchInsert(batchID, nonces)
		}
		if p.poolNonce != nil {
			p.poolNonce.BatchRemove(nonces)
		}
	}

	for _, r := range removedTxs {
		p.notifyTxResult(r.tx, r.status, r.nonce)
		p.metrics.CommittedTxs.Add(1)
	}
	p.updateSizeMetrics()
	p.notifyUnsealedSize()
}

// BatchVerifyProposalBlock is a read-locked membership check returning the
// hashes from the proposal that the pool does not currently hold.
func (p *Pool) BatchVerifyProposalBlock(hashes []txpool.Hash) []txpool.Hash {
	p.L.RLock()
	defer p.L.RUnlock()
	var missing []txpool.Hash
	for _, h := range hashes {
		if !p.txs.Has(h) {
			missing = append(missing, h)
		}
	}
	return missing
}

// BatchVerifyProposalHashes reports true iff every hash in the proposal is
// present in the pool.
func (p *Pool) BatchVerifyProposalHashes(hashes []txpool.Hash) bool {
	return len(p.BatchVerifyProposalBlock(hashes)) == 0
}

// FilterUnknownTxs tags the sending peer on hashes the pool already holds
// and returns the newly-missed subset of the rest: hashes absent from the
// table that were not already tracked in MissedSet. A hash already in
// MissedSet has an outstanding request in flight and is not reported
// again. Returned hashes are inserted into MissedSet; if that pushes it to
// its safety-valve threshold (pool_limit), the whole set is cleared rather
// than left to grow unbounded.
func (p *Pool) FilterUnknownTxs(hashes []txpool.Hash, peer txpool.PeerID) []txpool.Hash {
	var unknown []txpool.Hash

	p.L.RLock()
	for _, h := range hashes {
		if tx, ok := p.txs.Get(h); ok {
			tx.AppendKnownPeer(peer)
			continue
		}
		unknown = append(unknown, h)
	}
	p.L.RUnlock()

	var newlyMissed []txpool.Hash
	for _, h := range unknown {
		if !p.missed.Has(h) {
			newlyMissed = append(newlyMissed, h)
		}
	}
	for _, h := range newlyMissed {
		p.missed.Add(h)
	}
	if p.missed.Len() >= p.cfg.PoolLimit {
		p.missed.Clear()
	}

	return newlyMissed
}

// Remove is the single-hash counterpart of BatchRemove, without callback
// delivery.
func (p *Pool) Remove(hash txpool.Hash) {
	p.L.Lock()
	tx, ok := p.txs.Get(hash)
	if ok {
		p.txs.Remove(hash)
		if sealed, _, _ := tx.Batch(); sealed {
			p.sealed.Dec()
		}
	}
	p.L.Unlock()
	if ok {
		p.updateSizeMetrics()
		p.notifyUnsealedSize()
	}
}

// RemoveSubmittedTx is Remove, plus delivery of the tx's submit callback
// via the notifier.
func (p *Pool) RemoveSubmittedTx(hash txpool.Hash, status txpool.Status, nonce txpool.Nonce) {
	p.L.Lock()
	tx, ok := p.txs.Get(hash)
	if ok {
		p.txs.Remove(hash)
		if sealed, _, _ := tx.Batch(); sealed {
			p.sealed.Dec()
		}
	}
	p.L.Unlock()
	if !ok {
		return
	}
	p.notifyTxResult(tx, status, nonce)
	p.updateSizeMetrics()
	p.notifyUnsealedSize()
}
