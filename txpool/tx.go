package txpool

import (
	"sync"
	"time"
)

// Tx is an admitted transaction together with the sealing and gossip state
// the pool tracks alongside it. Field access is safe for concurrent use;
// sealed/batch updates and the submit callback are guarded by a per-tx
// mutex so hot-path mutations never need the pool's structural lock.
type Tx struct {
	hash    Hash
	nonce   Nonce
	to      []byte
	payload []byte

	systemTx bool

	importTimeMillis int64

	mu        sync.Mutex
	sealed    bool
	batchID   BatchID
	batchHash Hash

	syncedMu sync.Mutex
	synced   bool

	peersMu    sync.Mutex
	knownPeers map[PeerID]struct{}

	cbMu     sync.Mutex
	submitCB TxSubmitCallback
}

// NewTx constructs a Tx in its initial, unsealed state. BatchID starts at
// NoBatchID and batch hash at ZeroHash, the sentinels for "no batch
// assigned".
func NewTx(hash Hash, nonce Nonce, to, payload []byte, systemTx bool) *Tx {
	return &Tx{
		hash:      hash,
		nonce:     nonce,
		to:        to,
		payload:   payload,
		systemTx:  systemTx,
		batchID:   NoBatchID,
		batchHash: ZeroHash,
	}
}

func (t *Tx) Hash() Hash       { return t.hash }
func (t *Tx) Nonce() Nonce     { return t.nonce }
func (t *Tx) To() []byte       { return t.to }
func (t *Tx) Payload() []byte  { return t.payload }
func (t *Tx) SystemTx() bool   { return t.systemTx }

// ImportTime returns the wall-clock millisecond timestamp at which the
// transaction was first admitted. Zero until SetImportTime is called.
func (t *Tx) ImportTime() int64 { return t.importTimeMillis }

func (t *Tx) SetImportTime(millis int64) { t.importTimeMillis = millis }

// Sealed reports whether the transaction is currently claimed by a local or
// observed proposal.
func (t *Tx) Sealed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sealed
}

// Batch returns the (sealed, batchID, batchHash) triple atomically.
func (t *Tx) Batch() (sealed bool, batchID BatchID, batchHash Hash) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sealed, t.batchID, t.batchHash
}

// Seal marks the transaction sealed under the given batch identity. It
// returns the previous sealed state so callers can decide whether to bump a
// seal counter.
func (t *Tx) Seal(batchID BatchID, batchHash Hash) (wasSealed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasSealed = t.sealed
	t.sealed = true
	t.batchID = batchID
	t.batchHash = batchHash
	return wasSealed
}

// Unseal clears the sealed flag. The caller is responsible for deciding
// whether a stale batch hash should block the unseal; Unseal itself always
// performs the transition, leaving batchID/batchHash as-is (they are
// overwritten on the next Seal).
func (t *Tx) Unseal() (wasSealed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasSealed = t.sealed
	t.sealed = false
	return wasSealed
}

// Synced reports whether the transaction has already been offered for
// gossip via FetchNewTxs.
func (t *Tx) Synced() bool {
	t.syncedMu.Lock()
	defer t.syncedMu.Unlock()
	return t.synced
}

// MarkSynced flips synced to true and reports whether this call was the
// one that did so (false if it was already synced).
func (t *Tx) MarkSynced() (changed bool) {
	t.syncedMu.Lock()
	defer t.syncedMu.Unlock()
	changed = !t.synced
	t.synced = true
	return changed
}

// AppendKnownPeer records that peer has advertised or received this
// transaction.
func (t *Tx) AppendKnownPeer(peer PeerID) {
	t.peersMu.Lock()
	defer t.peersMu.Unlock()
	if t.knownPeers == nil {
		t.knownPeers = make(map[PeerID]struct{})
	}
	t.knownPeers[peer] = struct{}{}
}

// KnownPeers returns a snapshot of the peers known to hold this
// transaction.
func (t *Tx) KnownPeers() []PeerID {
	t.peersMu.Lock()
	defer t.peersMu.Unlock()
	peers := make([]PeerID, 0, len(t.knownPeers))
	for p := range t.knownPeers {
		peers = append(peers, p)
	}
	return peers
}

// SetSubmitCallback attaches the at-most-once submit callback. It is a
// no-op if cb is nil.
func (t *Tx) SetSubmitCallback(cb TxSubmitCallback) {
	if cb == nil {
		return
	}
	t.cbMu.Lock()
	defer t.cbMu.Unlock()
	t.submitCB = cb
}

// TakeSubmitCallback atomically consumes and returns the stored callback,
// or nil if there is none (already taken, or never set). Any caller that
// wins the race to call this is the only caller that may invoke the
// callback.
func (t *Tx) TakeSubmitCallback() TxSubmitCallback {
	t.cbMu.Lock()
	defer t.cbMu.Unlock()
	cb := t.submitCB
	t.submitCB = nil
	return cb
}

// HasSubmitCallback reports whether a callback is currently attached,
// without consuming it.
func (t *Tx) HasSubmitCallback() bool {
	t.cbMu.Lock()
	defer t.cbMu.Unlock()
	return t.submitCB != nil
}

// NowMillis is the wall-clock source Tx import timestamps are stamped
// with; a function variable so tests can fake time without a clock
// injection threaded through every constructor.
var NowMillis = func() int64 { return time.Now().UnixMilli() }
