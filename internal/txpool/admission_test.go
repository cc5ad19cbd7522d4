package txpool_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/morebtcg/bcos-txpool/config"
	"github.com/morebtcg/bcos-txpool/txpool"
)

func TestSubmit_DecodeFailure(t *testing.T) {
	cfg := config.TestConfig()
	validator := newFakeValidator()
	ledger := &fakeLedger{}
	ledgerNonce := &fakeLedgerNonceChecker{}
	poolNonce := &fakePoolNonceChecker{}
	decoder := &fakeDecoder{decodeErr: errors.New("bad wire format")}

	pool := newPoolWithDecoder(t, cfg, validator, ledger, ledgerNonce, poolNonce, decoder)

	var gotStatus txpool.Status
	var gotErr error
	done := make(chan struct{})
	status := pool.Submit([]byte("garbage"), func(err error, result *txpool.TxSubmitResult) {
		gotErr = err
		gotStatus = result.Status
		close(done)
	})
	require.Equal(t, txpool.StatusMalform, status)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback never delivered")
	}
	require.Error(t, gotErr)
	require.Equal(t, txpool.StatusMalform, gotStatus)
}

func TestVerifyAndSubmit_ValidatorRejects(t *testing.T) {
	hash := hashFromByte(1)
	tx := txpool.NewTx(hash, 1, nil, []byte("payload"), false)

	validator := newFakeValidator()
	validator.SetVerify(hash, txpool.StatusNonceCheckFail)
	pool, _, _, _ := newTestPool(t, nil, validator)

	var gotStatus txpool.Status
	done := make(chan struct{})
	status := pool.SubmitTx(tx, func(err error, result *txpool.TxSubmitResult) {
		gotStatus = result.Status
		close(done)
	}, false)
	require.Equal(t, txpool.StatusNonceCheckFail, status)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback never delivered")
	}
	require.Equal(t, txpool.StatusNonceCheckFail, gotStatus)

	found, _ := pool.FetchTxs([]txpool.Hash{hash})
	require.Empty(t, found)
}

// TestSubmit_RemovesFromMissedSetOnAdmit checks that admitting a
// previously-missed hash through Submit clears it from MissedSet, the same
// way EnforceSubmit already does. FilterUnknownTxs itself can't observe
// this directly once a hash is admitted (it short-circuits on table
// presence before ever consulting MissedSet), so this drives the safety
// valve instead: MissedSet clears once its size reaches PoolLimit. If the
// admitted hash were left in MissedSet, the leftover entry would count
// toward that threshold and the valve would trip one genuinely-new miss
// early.
func TestSubmit_RemovesFromMissedSetOnAdmit(t *testing.T) {
	cfg := config.TestConfig()
	cfg.PoolLimit = 4
	pool, _, _, _ := newTestPool(t, cfg, newFakeValidator())

	admittedHash := hashFromByte(2)
	unknown := pool.FilterUnknownTxs([]txpool.Hash{admittedHash}, txpool.PeerID("peer-1"))
	require.Equal(t, []txpool.Hash{admittedHash}, unknown)

	tx := txpool.NewTx(admittedHash, 1, nil, []byte("payload"), false)
	require.Equal(t, txpool.StatusNone, pool.SubmitTx(tx, nil, false))

	// Three more genuinely new misses, against a PoolLimit-4 safety valve.
	// If admittedHash was correctly cleared on admission, MissedSet holds
	// exactly {hashB, hashC, hashD} (3) after these calls, one below the
	// valve's threshold. If it leaked, the leftover entry pads the count to
	// 4 and the valve clears early, losing track of hashB before this test
	// ever re-requests it.
	hashB, hashC, hashD := hashFromByte(3), hashFromByte(4), hashFromByte(5)
	require.Equal(t, []txpool.Hash{hashB}, pool.FilterUnknownTxs([]txpool.Hash{hashB}, txpool.PeerID("peer-2")))
	require.Equal(t, []txpool.Hash{hashC}, pool.FilterUnknownTxs([]txpool.Hash{hashC}, txpool.PeerID("peer-2")))
	require.Equal(t, []txpool.Hash{hashD}, pool.FilterUnknownTxs([]txpool.Hash{hashD}, txpool.PeerID("peer-2")))

	repeat := pool.FilterUnknownTxs([]txpool.Hash{hashB}, txpool.PeerID("peer-3"))
	require.Empty(t, repeat, "MissedSet safety valve tripped early: admittedHash was not cleared on admission")
}

func TestBatchInsert(t *testing.T) {
	pool, _, _, _ := newTestPool(t, nil, newFakeValidator())

	hash1, hash2 := hashFromByte(3), hashFromByte(4)
	pool.FilterUnknownTxs([]txpool.Hash{hash1, hash2}, txpool.PeerID("peer-1"))

	tx1 := txpool.NewTx(hash1, 1, nil, []byte("a"), false)
	tx2 := txpool.NewTx(hash2, 2, nil, []byte("b"), false)
	pool.BatchInsert([]*txpool.Tx{tx1, tx2})

	found, missing := pool.FetchTxs([]txpool.Hash{hash1, hash2})
	require.Len(t, found, 2)
	require.Empty(t, missing)

	unknown := pool.FilterUnknownTxs([]txpool.Hash{hash1, hash2}, txpool.PeerID("peer-2"))
	require.Empty(t, unknown)
}

func TestPreCommit_RetriesThenSucceeds(t *testing.T) {
	cfg := config.TestConfig()
	validator := newFakeValidator()
	ledger := &fakeLedger{failN: 2}
	ledgerNonce := &fakeLedgerNonceChecker{}
	poolNonce := &fakePoolNonceChecker{}
	pool := newPoolWithDecoder(t, cfg, validator, ledger, ledgerNonce, poolNonce, &fakeDecoder{})

	tx := txpool.NewTx(hashFromByte(1), 1, nil, []byte("payload"), false)
	status := pool.SubmitTx(tx, nil, false)
	require.Equal(t, txpool.StatusNone, status)

	require.Eventually(t, func() bool {
		ledger.mu.Lock()
		defer ledger.mu.Unlock()
		return ledger.calls >= 3
	}, time.Second, 10*time.Millisecond)
}
