package txpool

import (
	"encoding/hex"
)

// Hash is a content-addressed, fixed-width transaction or batch digest.
type Hash [32]byte

// ZeroHash is the sentinel "no hash" value. A sealed transaction carries
// ZeroHash as its batch hash when it has been locally fetched but the
// sealer has not yet assigned it to a proposal.
var ZeroHash = Hash{}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the sentinel ZeroHash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// HashFromBytes truncates or zero-pads b into a Hash. Callers that already
// hold a correctly sized digest should prefer a direct conversion; this is a
// convenience for tests and for decoders that hand back a []byte.
func HashFromBytes(b []byte) Hash {
	var h Hash
	copy(h[:], b)
	return h
}

// Nonce is a chain-level uniqueness token. Nonce uniqueness is enforced by
// the nonce checkers, never by the pool itself.
type Nonce int64

// NoNonce is the explicit sentinel for "no nonce available", used when a
// batch-remove result names a transaction the pool never held. Preferred
// over a silently coerced -1: callers must test NoNonce, not compare against
// a magic literal.
const NoNonce Nonce = -1

// BatchID identifies a consensus proposal. NoBatchID means "sealed locally,
// not yet assigned to a proposal by the sealer".
type BatchID int64

// NoBatchID is the sentinel for "sealed but the owning batch is not yet
// known".
const NoBatchID BatchID = -1

// PeerID is an opaque identifier for a gossip peer. The pool never
// interprets it; it is only tracked per transaction and handed back to the
// gossip layer.
type PeerID string

// TransactionMetaData is the lightweight record BatchFetchTxs hands to the
// sealer in place of the full transaction: enough to place it in a proposal
// without copying the payload again.
type TransactionMetaData struct {
	Hash   Hash
	To     []byte
	Source string
}

// TxSubmitResult is delivered to a transaction's submit callback at most
// once: on rejection at admission, on removal by BatchRemove or
// RemoveSubmittedTx, or on removal by the invalid-tx purge. BatchFetchTxs
// consumes the callback without invoking it, and EnforceSubmit delivers no
// result.
type TxSubmitResult struct {
	TxHash Hash
	Status Status
	Nonce  Nonce
}

// TxSubmitCallback is the at-most-once closure carried by a Tx from
// submission to its terminal outcome. err is non-nil whenever result.Status
// != StatusNone.
type TxSubmitCallback func(err error, result *TxSubmitResult)
