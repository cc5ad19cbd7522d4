package txpool

import (
	"strconv"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/morebtcg/bcos-txpool/txpool"
)

// TxTable is the concurrent hash -> Tx map holding the authoritative set
// of pending transactions. It wraps
// concurrent-map so single-key inserts, erases and lookups are safe without
// the pool's structural lock; only multi-step operations (enforce-submit's
// check-then-insert, batch-remove's iterate-and-erase) take the Pool's L.
type TxTable struct {
	m cmap.ConcurrentMap[string, *txpool.Tx]
}

func newTxTable() *TxTable {
	return &TxTable{m: cmap.New[*txpool.Tx]()}
}

func (t *TxTable) Get(hash txpool.Hash) (*txpool.Tx, bool) {
	return t.m.Get(hash.String())
}

func (t *TxTable) Has(hash txpool.Hash) bool {
	return t.m.Has(hash.String())
}

func (t *TxTable) Set(hash txpool.Hash, tx *txpool.Tx) {
	t.m.Set(hash.String(), tx)
}

func (t *TxTable) Remove(hash txpool.Hash) {
	t.m.Remove(hash.String())
}

func (t *TxTable) Len() int {
	return t.m.Count()
}

func (t *TxTable) Clear() {
	t.m.Clear()
}

// Snapshot returns every Tx currently in the table. It uses IterBuffered,
// which fully materializes into a channel at call time, giving callers a
// snapshot-style iterator rather than a live view: a concurrently-inserted
// key never surfaces as a transient nil here, because the snapshot is
// taken up front instead of walked live against the underlying shards.
func (t *TxTable) Snapshot() []*txpool.Tx {
	out := make([]*txpool.Tx, 0, t.m.Count())
	for item := range t.m.IterBuffered() {
		if item.Val == nil {
			continue
		}
		out = append(out, item.Val)
	}
	return out
}

// MissedSet is the set of hashes advertised by peers but not yet held
// locally.
type MissedSet struct {
	m cmap.ConcurrentMap[string, struct{}]
}

func newMissedSet() *MissedSet {
	return &MissedSet{m: cmap.New[struct{}]()}
}

func (s *MissedSet) Has(hash txpool.Hash) bool {
	return s.m.Has(hash.String())
}

func (s *MissedSet) Add(hash txpool.Hash) {
	s.m.Set(hash.String(), struct{}{})
}

func (s *MissedSet) Remove(hash txpool.Hash) {
	s.m.Remove(hash.String())
}

func (s *MissedSet) Len() int {
	return s.m.Count()
}

func (s *MissedSet) Clear() {
	s.m.Clear()
}

// InvalidSet accumulates hashes and nonces awaiting the asynchronous purge.
// The two sets are drained together by Pool.removeInvalidTxs and then
// cleared.
type InvalidSet struct {
	hashes cmap.ConcurrentMap[string, txpool.Hash]
	nonces cmap.ConcurrentMap[string, txpool.Nonce]
}

func newInvalidSet() *InvalidSet {
	return &InvalidSet{
		hashes: cmap.New[txpool.Hash](),
		nonces: cmap.New[txpool.Nonce](),
	}
}

func (s *InvalidSet) AddHash(hash txpool.Hash) {
	s.hashes.Set(hash.String(), hash)
}

func (s *InvalidSet) HasHash(hash txpool.Hash) bool {
	return s.hashes.Has(hash.String())
}

func (s *InvalidSet) AddNonce(nonce txpool.Nonce) {
	if nonce == txpool.NoNonce {
		return
	}
	s.nonces.Set(strconv.FormatInt(int64(nonce), 10), nonce)
}

// DrainAndClear returns a snapshot of both sets and empties them
// atomically from the caller's perspective (the caller holds the Pool's
// structural lock while calling this).
func (s *InvalidSet) DrainAndClear() (hashes []txpool.Hash, nonces []txpool.Nonce) {
	for item := range s.hashes.IterBuffered() {
		hashes = append(hashes, item.Val)
	}
	for item := range s.nonces.IterBuffered() {
		nonces = append(nonces, item.Val)
	}
	s.hashes.Clear()
	s.nonces.Clear()
	return hashes, nonces
}

func (s *InvalidSet) Len() int {
	return s.hashes.Count()
}
