// Package monitor polls in-flight transactions until they reach a terminal
// state and settles the owning swap records. Entries are mirrored into
// durable storage so a restart resumes exactly where the process stopped.
package monitor

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"omni-swap/pkg/executor"
	"omni-swap/pkg/swap"
	"omni-swap/pkg/types"
)

// maxMonitorAge is the ceiling on how long any transaction stays under
// watch; past it the swap is forcibly failed
const maxMonitorAge = 30 * time.Minute

const forcedTimeoutMessage = "transaction monitoring timeout"

// checkIntervals sets the polling cadence per chain family; fast-finality
// chains poll tighter
var checkIntervals = map[types.ChainFamily]time.Duration{
	types.FamilyEVM:    15 * time.Second,
	types.FamilySolana: 5 * time.Second,
	types.FamilySui:    5 * time.Second,
	types.FamilyCEX:    30 * time.Second,
	types.FamilyBridge: 30 * time.Second,
}

// Publisher announces freshly tracked entries to other processes
type Publisher interface {
	Publish(ctx context.Context, tx *types.MonitoredTransaction) error
}

// StatusChecker resolves a transaction reference to its current state.
// Bridge adapters satisfy it for their own transfers; executors cover the
// on-chain families.
type StatusChecker interface {
	GetStatus(ctx context.Context, txHash string) (*types.TransactionStatus, error)
}

// Service owns the per-family polling loops
type Service struct {
	store     TxStore
	swaps     swap.Store
	executors *executor.Registry

	// bridgeCheckers maps a route source name to its provider status API
	bridgeCheckers map[string]StatusChecker

	publisher Publisher

	mu      sync.Mutex
	pending map[string]*types.MonitoredTransaction

	logger   zerolog.Logger
	now      func() time.Time
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewService creates a monitor over the durable store, swap records and
// executor registry. Bridge sources that report status off-chain register
// their checkers by route source name.
func NewService(store TxStore, swaps swap.Store, executors *executor.Registry, bridgeCheckers map[string]StatusChecker, logger zerolog.Logger) *Service {
	if bridgeCheckers == nil {
		bridgeCheckers = make(map[string]StatusChecker)
	}
	return &Service{
		store:          store,
		swaps:          swaps,
		executors:      executors,
		bridgeCheckers: bridgeCheckers,
		pending:        make(map[string]*types.MonitoredTransaction),
		logger:         logger.With().Str("component", "tx_monitor").Logger(),
		now:            time.Now,
		stopChan:       make(chan struct{}),
	}
}

// SetPublisher enables cross-process announcements for new entries
func (s *Service) SetPublisher(p Publisher) { s.publisher = p }

// Track enqueues a freshly broadcast transaction: mirror first, then
// memory, so a crash between the two never drops the entry
func (s *Service) Track(ctx context.Context, tx *types.MonitoredTransaction) error {
	if err := s.store.Save(ctx, tx); err != nil {
		return err
	}
	s.mu.Lock()
	s.pending[tx.Key()] = tx
	s.mu.Unlock()

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, tx); err != nil {
			s.logger.Error().Err(err).Str("key", tx.Key()).Msg("failed to announce monitor entry")
		}
	}

	s.logger.Info().
		Str("key", tx.Key()).
		Str("chain_id", tx.ChainID).
		Str("family", string(tx.Family)).
		Msg("tracking transaction")
	return nil
}

// LoadPersistedTransactions restores the mirror into memory; call once
// before Start
func (s *Service) LoadPersistedTransactions(ctx context.Context) error {
	txs, err := s.store.LoadAll(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	for _, tx := range txs {
		s.pending[tx.Key()] = tx
	}
	s.mu.Unlock()

	if len(txs) > 0 {
		s.logger.Info().Int("count", len(txs)).Msg("restored monitored transactions")
	}
	return nil
}

// Start launches one polling loop per chain family. Loops run until Stop.
func (s *Service) Start(ctx context.Context) {
	for family, interval := range checkIntervals {
		s.wg.Add(1)
		go s.runLoop(ctx, family, interval)
	}
}

// Stop halts the polling loops and waits for in-flight checks to finish
func (s *Service) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

func (s *Service) runLoop(ctx context.Context, family types.ChainFamily, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CheckFamily(ctx, family)
		}
	}
}

// CheckFamily runs one polling pass over every pending entry of a family,
// sequentially. Exported so a watch command can force a pass.
func (s *Service) CheckFamily(ctx context.Context, family types.ChainFamily) {
	s.mu.Lock()
	batch := make([]*types.MonitoredTransaction, 0)
	for _, tx := range s.pending {
		if tx.Family == family {
			batch = append(batch, tx)
		}
	}
	s.mu.Unlock()

	for _, tx := range batch {
		s.checkTransaction(ctx, tx)
	}
}

// checkTransaction resolves one entry's state and settles the swap when a
// terminal state is reached. Settlement and removal happen exactly once;
// transient check errors leave the entry in place for the next pass.
func (s *Service) checkTransaction(ctx context.Context, tx *types.MonitoredTransaction) {
	logger := s.logger.With().Str("key", tx.Key()).Str("tx_hash", tx.TxHash).Logger()

	if s.now().Sub(tx.StartedAt) > maxMonitorAge {
		logger.Warn().Msg("monitoring ceiling reached, failing swap")
		s.settle(ctx, tx, types.SwapFailed, 0, forcedTimeoutMessage)
		return
	}

	status, err := s.resolveStatus(ctx, tx)
	if err != nil {
		logger.Error().Err(err).Msg("status check failed")
		s.touch(tx)
		return
	}

	switch status.State {
	case types.TxConfirmed:
		logger.Info().
			Uint64("confirmations", status.Confirmations).
			Msg("transaction confirmed")
		s.settle(ctx, tx, types.SwapConfirmed, status.BlockNumber, "")
	case types.TxFailed:
		logger.Warn().Str("reason", status.Error).Msg("transaction failed")
		s.settle(ctx, tx, types.SwapFailed, status.BlockNumber, status.Error)
	default:
		s.touch(tx)
	}
}

// resolveStatus picks the right status source: bridge transfers go through
// the provider that quoted them, everything else through the chain executor
func (s *Service) resolveStatus(ctx context.Context, tx *types.MonitoredTransaction) (*types.TransactionStatus, error) {
	if tx.Family == types.FamilyBridge {
		sw, err := s.swaps.GetByID(ctx, tx.SwapID)
		if err != nil {
			return nil, err
		}
		if checker, ok := s.bridgeCheckers[sw.RouteSource]; ok {
			return checker.GetStatus(ctx, tx.TxHash)
		}
		// No provider API; fall through to the source chain's executor
	}

	exec, err := s.executors.GetExecutorForChain(tx.ChainID)
	if err != nil {
		return nil, err
	}
	return exec.GetTransactionStatus(ctx, tx.ChainID, tx.TxHash)
}

// settle moves the swap to its terminal status and removes the entry from
// both memory and the mirror
func (s *Service) settle(ctx context.Context, tx *types.MonitoredTransaction, status types.SwapStatus, blockNumber int64, errMsg string) {
	if err := s.swaps.UpdateStatus(ctx, tx.SwapID, status, tx.TxHash, blockNumber, errMsg); err != nil {
		s.logger.Error().Err(err).Str("swap_id", tx.SwapID).Msg("failed to settle swap")
		// Entry stays for retry next pass
		return
	}

	s.mu.Lock()
	delete(s.pending, tx.Key())
	s.mu.Unlock()

	if err := s.store.Remove(ctx, tx.Key()); err != nil {
		s.logger.Error().Err(err).Str("key", tx.Key()).Msg("failed to remove monitor entry")
	}
}

func (s *Service) touch(tx *types.MonitoredTransaction) {
	s.mu.Lock()
	tx.LastChecked = s.now()
	s.mu.Unlock()
}

// PendingCount reports how many transactions are currently under watch
func (s *Service) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// RunSubscriber consumes pubsub announcements from other processes and
// folds them into the local pending set. Returns when ctx is cancelled.
func (s *Service) RunSubscriber(ctx context.Context, messages <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case payload, ok := <-messages:
			if !ok {
				return
			}
			var tx types.MonitoredTransaction
			if err := json.Unmarshal([]byte(payload), &tx); err != nil {
				s.logger.Error().Err(err).Msg("malformed monitor announcement")
				continue
			}
			s.mu.Lock()
			if _, exists := s.pending[tx.Key()]; !exists {
				s.pending[tx.Key()] = &tx
			}
			s.mu.Unlock()
		}
	}
}
