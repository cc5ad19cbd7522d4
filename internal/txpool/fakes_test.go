package txpool_test

import (
	"context"
	"sync"

	"github.com/morebtcg/bcos-txpool/txpool"
)

// fakeValidator lets tests script per-hash Verify/SubmittedToChain
// responses, defaulting to success.
type fakeValidator struct {
	mu               sync.Mutex
	verifyResult     map[txpool.Hash]txpool.Status
	submittedResult  map[txpool.Hash]txpool.Status
}

func newFakeValidator() *fakeValidator {
	return &fakeValidator{
		verifyResult:    make(map[txpool.Hash]txpool.Status),
		submittedResult: make(map[txpool.Hash]txpool.Status),
	}
}

func (f *fakeValidator) SetVerify(hash txpool.Hash, status txpool.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyResult[hash] = status
}

func (f *fakeValidator) SetSubmittedToChain(hash txpool.Hash, status txpool.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submittedResult[hash] = status
}

func (f *fakeValidator) Verify(tx *txpool.Tx) txpool.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.verifyResult[tx.Hash()]; ok {
		return s
	}
	return txpool.StatusNone
}

func (f *fakeValidator) SubmittedToChain(tx *txpool.Tx) txpool.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.submittedResult[tx.Hash()]; ok {
		return s
	}
	return txpool.StatusNone
}

type fakeLedgerNonceChecker struct {
	mu      sync.Mutex
	inserts []pendingInsert
}

type pendingInsert struct {
	batchID txpool.BatchID
	nonces  []txpool.Nonce
}

func (f *fakeLedgerNonceChecker) BatchInsert(batchID txpool.BatchID, nonces []txpool.Nonce) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts = append(f.inserts, pendingInsert{batchID: batchID, nonces: nonces})
}

type fakePoolNonceChecker struct {
	mu     sync.Mutex
	removed []txpool.Nonce
}

func (f *fakePoolNonceChecker) BatchRemove(nonces []txpool.Nonce) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, nonces...)
}

// fakeLedger acks every store immediately and successfully unless
// configured to fail.
type fakeLedger struct {
	mu      sync.Mutex
	failN   int
	calls   int
}

func (f *fakeLedger) AsyncStoreTransactions(ctx context.Context, payloads [][]byte, hashes []txpool.Hash, ack func(error)) {
	f.mu.Lock()
	f.calls++
	shouldFail := f.calls <= f.failN
	f.mu.Unlock()
	go func() {
		if shouldFail {
			ack(context.DeadlineExceeded)
			return
		}
		ack(nil)
	}()
}

// fakeDecoder decodes raw bytes whose first 32 bytes are taken verbatim as
// the tx hash, so tests can control hashes precisely by constructing raw
// payloads themselves.
type fakeDecoder struct {
	decodeErr error
}

func (f *fakeDecoder) Decode(raw []byte) (*txpool.Tx, error) {
	if f.decodeErr != nil {
		return nil, f.decodeErr
	}
	var hash txpool.Hash
	copy(hash[:], raw)
	return txpool.NewTx(hash, txpool.Nonce(0), nil, raw, false), nil
}

func hashFromByte(b byte) txpool.Hash {
	var h txpool.Hash
	h[31] = b
	return h
}
