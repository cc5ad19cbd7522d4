// Command txpool-bench exercises the pool end-to-end against in-memory
// fakes of its collaborator interfaces, for manual smoke-testing of the
// admission and batch-fetch paths without a full node around it.
package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/morebtcg/bcos-txpool/config"
	"github.com/morebtcg/bcos-txpool/internal/txpool"
	"github.com/morebtcg/bcos-txpool/libs/log"
	pooltypes "github.com/morebtcg/bcos-txpool/txpool"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		numTxs     int
		poolLimit  int
		numWorkers int
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "txpool-bench",
		Short: "Drives the transaction pool with synthetic submissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(numTxs, poolLimit, numWorkers, verbose)
		},
	}

	cmd.Flags().IntVar(&numTxs, "txs", 10000, "number of synthetic transactions to submit")
	cmd.Flags().IntVar(&poolLimit, "pool-limit", 15000, "pool capacity")
	cmd.Flags().IntVar(&numWorkers, "concurrency", 8, "number of concurrent submitting goroutines")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log every submission result")

	return cmd
}

func run(numTxs, poolLimit, numWorkers int, verbose bool) error {
	logger := log.NewNopLogger()
	if verbose {
		var err error
		logger, err = log.NewDefaultLogger(log.LogFormatText, log.LogLevelDebug)
		if err != nil {
			return err
		}
	}

	cfg := config.DefaultConfig()
	cfg.PoolLimit = poolLimit
	if err := cfg.Validate(); err != nil {
		return err
	}

	validator := &fakeValidator{}
	ledgerNonce := &fakeLedgerNonceChecker{}
	poolNonce := &fakePoolNonceChecker{}
	ledger := &fakeLedger{}
	decoder := &fakeDecoder{}

	pool := txpool.NewPool(cfg, logger, pooltypes.NopMetrics(), validator, ledgerNonce, poolNonce, ledger, decoder)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = pool.Stop(ctx)
	}()

	pool.SetOnReady(func() {})
	pool.SetUnsealedNotifier(func(size int, ack func(error)) { ack(nil) })

	start := time.Now()

	var accepted, rejected atomic.Int64
	var wg sync.WaitGroup
	txsPerWorker := numTxs / numWorkers
	for w := 0; w < numWorkers; w++ {
		n := txsPerWorker
		if w < numTxs%numWorkers {
			n++
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < n; i++ {
				raw := randomBytes(64)
				status := pool.Submit(raw, nil)
				if status.OK() {
					accepted.Add(1)
				} else {
					rejected.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	elapsed := time.Since(start)
	fmt.Printf("submitted %d txs in %s (accepted=%d rejected=%d)\n",
		numTxs, elapsed, accepted.Load(), rejected.Load())
	fmt.Printf("pool size=%d unsealed=%d\n", pool.Size(), pool.UnsealedSize())

	outUser, outSystem := pool.BatchFetchTxs(poolLimit, nil, true)
	fmt.Printf("batch-fetched user=%d system=%d\n", len(outUser), len(outSystem))

	return nil
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return b
}

// fakeValidator accepts everything and never finds a nonce or block-limit
// problem: good enough to drive admission throughput, not to exercise the
// invalidation paths (unit tests cover those).
type fakeValidator struct{}

func (f *fakeValidator) Verify(tx *pooltypes.Tx) pooltypes.Status             { return pooltypes.StatusNone }
func (f *fakeValidator) SubmittedToChain(tx *pooltypes.Tx) pooltypes.Status   { return pooltypes.StatusNone }

type fakeLedgerNonceChecker struct{}

func (f *fakeLedgerNonceChecker) BatchInsert(batchID pooltypes.BatchID, nonces []pooltypes.Nonce) {}

type fakePoolNonceChecker struct{}

func (f *fakePoolNonceChecker) BatchRemove(nonces []pooltypes.Nonce) {}

// fakeLedger acks every store immediately and successfully.
type fakeLedger struct{}

func (f *fakeLedger) AsyncStoreTransactions(ctx context.Context, payloads [][]byte, hashes []pooltypes.Hash, ack func(error)) {
	ack(nil)
}

// fakeDecoder treats the raw payload itself as the hash seed, skipping any
// real wire format.
type fakeDecoder struct {
	counter atomic.Int64
}

func (f *fakeDecoder) Decode(raw []byte) (*pooltypes.Tx, error) {
	n := f.counter.Add(1)
	var hash pooltypes.Hash
	copy(hash[:], raw)
	hash[31] = byte(n)
	hash[30] = byte(n >> 8)
	return pooltypes.NewTx(hash, pooltypes.Nonce(n), nil, raw, false), nil
}
