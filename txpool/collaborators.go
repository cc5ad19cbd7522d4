package txpool

import "context"

// TxValidator performs the chain-level checks the pool itself does not
// implement: signature verification, nonce-window checks, and block-limit
// enforcement. It is assumed thread-safe and shared across the pool's
// lifetime.
type TxValidator interface {
	// Verify runs full validation on a freshly submitted transaction.
	Verify(tx *Tx) Status
	// SubmittedToChain is a cheap check: has the transaction's nonce
	// already been consumed on chain, or has its block-limit window
	// expired?
	SubmittedToChain(tx *Tx) Status
}

// LedgerNonceChecker records nonces as they are committed to durable
// storage, by block.
type LedgerNonceChecker interface {
	BatchInsert(batchID BatchID, nonces []Nonce)
}

// PoolNonceChecker tracks nonces currently claimed by pending pool
// transactions, independent of the durable ledger.
type PoolNonceChecker interface {
	BatchRemove(nonces []Nonce)
}

// Ledger is the durable transaction store. AsyncStoreTransactions is
// fire-and-forget from the caller's perspective; ack is invoked exactly
// once, with a non-nil error on failure.
type Ledger interface {
	AsyncStoreTransactions(ctx context.Context, payloads [][]byte, hashes []Hash, ack func(error))
}

// TxDecoder turns raw submitted bytes into a Tx. Signature verification is
// out of scope here; TxDecoder only needs to parse the wire format far
// enough to populate a Tx's fields.
type TxDecoder interface {
	Decode(raw []byte) (*Tx, error)
}

// Tx itself is declared in tx.go, in this package, so that TxValidator and
// TxDecoder implementations outside the pool can reference it directly. The
// engine that stores, seals and removes Tx values lives in internal/txpool.
