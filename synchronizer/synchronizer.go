package synchronizer

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"plasma-rootchain/common"
	"plasma-rootchain/database/historydb"
	"plasma-rootchain/log"
	"plasma-rootchain/metric"
	"plasma-rootchain/rootchain"
)

// LedgerReader is the read side of the underlying ledger needed to follow
// the chain of blocks
type LedgerReader interface {
	LastBlock() *common.Block
}

// Stats of the synchronizer
type Stats struct {
	Ledger struct {
		FirstBlockNum int64
		LastBlock     common.Block
	}
	Sync struct {
		Updated           time.Time
		LastBlock         common.Block
		LastChildBlockNum int64
		PendingDeposits   int
	}
}

// StatsHolder stores stats and that allows reading and writing them
// concurrently
type StatsHolder struct {
	Stats
	rw sync.RWMutex
}

// NewStatsHolder creates a new StatsHolder
func NewStatsHolder(firstBlockNum int64) *StatsHolder {
	stats := Stats{}
	stats.Ledger.FirstBlockNum = firstBlockNum
	return &StatsHolder{Stats: stats}
}

// UpdateSync updates the synchronizer stats
func (s *StatsHolder) UpdateSync(lastBlock *common.Block, lastChildBlockNum int64,
	pendingDeposits int) {
	now := time.Now()
	s.rw.Lock()
	s.Sync.LastBlock = *lastBlock
	s.Sync.LastChildBlockNum = lastChildBlockNum
	s.Sync.PendingDeposits = pendingDeposits
	s.Sync.Updated = now
	s.rw.Unlock()
}

// UpdateLedger updates the ledger stats
func (s *StatsHolder) UpdateLedger(ledger LedgerReader) {
	lastBlock := ledger.LastBlock()
	s.rw.Lock()
	s.Ledger.LastBlock = *lastBlock
	s.rw.Unlock()
}

// CopyStats returns a copy of the inner Stats
func (s *StatsHolder) CopyStats() *Stats {
	s.rw.RLock()
	defer s.rw.RUnlock()
	sCopy := s.Stats
	return &sCopy
}

// BlockData is everything the synchronizer persisted for one ledger block
type BlockData struct {
	Block       common.Block
	ChildBlocks []historydb.ChildBlockRow
	Deposits    []historydb.DepositRow
	Exits       []historydb.ExitRow
	Withdrawals []historydb.WithdrawalRow
}

// Synchronizer drains the root chain events block by block and persists them
// into the history DB
type Synchronizer struct {
	rootChain    *rootchain.RootChain
	ledger       LedgerReader
	historyDB    *historydb.HistoryDB
	stats        *StatsHolder
	lastSavedNum int64
}

// NewSynchronizer creates a new Synchronizer, resuming after the last block
// already saved in the history DB
func NewSynchronizer(rootChain *rootchain.RootChain, ledger LedgerReader,
	historyDB *historydb.HistoryDB) (*Synchronizer, error) {
	firstBlockNum := int64(-1)
	lastSavedBlock, err := historyDB.GetLastBlock()
	if err != nil && !errors.Is(common.Unwrap(err), sql.ErrNoRows) {
		return nil, common.Wrap(err)
	}
	if err == nil {
		firstBlockNum = lastSavedBlock.Num
	}
	stats := NewStatsHolder(firstBlockNum)
	s := &Synchronizer{
		rootChain:    rootChain,
		ledger:       ledger,
		historyDB:    historyDB,
		stats:        stats,
		lastSavedNum: firstBlockNum,
	}
	s.stats.UpdateLedger(ledger)
	if err == nil {
		s.stats.rw.Lock()
		s.stats.Sync.LastBlock = *lastSavedBlock
		s.stats.rw.Unlock()
	}
	log.Infow("Sync init", "firstBlockNum", firstBlockNum)
	return s, nil
}

// Stats returns a copy of the synchronizer stats
func (s *Synchronizer) Stats() *Stats {
	return s.stats.CopyStats()
}

// Sync persists the root chain activity up to the current ledger block.
// Returns nil BlockData when there is no new block to process.
func (s *Synchronizer) Sync(ctx context.Context) (*BlockData, error) {
	start := time.Now()
	s.stats.UpdateLedger(s.ledger)

	lastBlock := s.ledger.LastBlock()
	if lastBlock.Num <= s.lastSavedNum {
		metric.MeasureDuration(metric.SyncDuration, start, "noop")
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, common.Wrap(err)
	}

	events, _ := s.rootChain.FlushEvents()
	blockData, err := s.persist(lastBlock, &events)
	if err != nil {
		metric.MeasureDuration(metric.SyncDuration, start, "error")
		return nil, common.Wrap(err)
	}
	s.lastSavedNum = lastBlock.Num

	pendingDeposits := s.rootChain.NumPendingDeposits()
	lastChildBlockNum := int64(s.rootChain.CurrentChildBlock()) - common.ChildBlockInterval
	s.stats.UpdateSync(lastBlock, lastChildBlockNum, pendingDeposits)
	s.updateMetrics(blockData, lastBlock, lastChildBlockNum, pendingDeposits)
	metric.ExitsChallenged.Add(float64(len(events.ExitChallenged)))
	metric.ExitsFinalized.Add(float64(len(events.ExitFinalized)))

	log.Debugw("Synced block", "blockNum", lastBlock.Num,
		"childBlocks", len(blockData.ChildBlocks),
		"deposits", len(blockData.Deposits),
		"exits", len(blockData.Exits))
	metric.MeasureDuration(metric.SyncDuration, start, "block")
	return blockData, nil
}

func (s *Synchronizer) persist(block *common.Block, events *rootchain.Events) (*BlockData, error) {
	if err := s.historyDB.AddBlock(block); err != nil {
		return nil, common.Wrap(err)
	}
	blockData := &BlockData{Block: *block}

	for _, e := range events.BlockSubmitted {
		blockData.ChildBlocks = append(blockData.ChildBlocks, historydb.ChildBlockRow{
			BlockNum:       int64(e.BlockNum),
			Root:           e.Root,
			Deposit:        e.Deposit,
			LedgerBlockNum: block.Num,
			CreatedAt:      e.CreatedAt,
		})
	}
	if err := s.historyDB.AddChildBlocks(blockData.ChildBlocks); err != nil {
		return nil, common.Wrap(err)
	}

	for _, e := range events.Deposit {
		blockData.Deposits = append(blockData.Deposits, historydb.DepositRow{
			Digest:         e.Digest,
			Owner:          e.Owner,
			Amount:         e.Amount,
			Nonce:          int64(e.Nonce),
			State:          historydb.DepositStatePending,
			LedgerBlockNum: block.Num,
		})
	}
	if err := s.historyDB.AddDeposits(blockData.Deposits); err != nil {
		return nil, common.Wrap(err)
	}
	// a deposit derived child block consumes the pending deposit whose
	// digest it carries as root
	for _, cb := range blockData.ChildBlocks {
		if !cb.Deposit {
			continue
		}
		err := s.historyDB.SetDepositState(cb.Root, historydb.DepositStateFlushed)
		if err != nil && !errors.Is(common.Unwrap(err), sql.ErrNoRows) {
			return nil, common.Wrap(err)
		}
	}

	for _, e := range events.ExitStarted {
		blockData.Exits = append(blockData.Exits, historydb.ExitRow{
			Priority:       int64(e.Priority),
			Owner:          e.Owner,
			Amount:         e.Amount,
			BlkNum:         int64(e.Position.BlkNum),
			TxIndex:        int64(e.Position.TxIndex),
			OIndex:         int64(e.Position.OIndex),
			State:          historydb.ExitStatePending,
			LedgerBlockNum: block.Num,
			CreatedAt:      e.CreatedAt,
		})
	}
	if err := s.historyDB.AddExits(blockData.Exits); err != nil {
		return nil, common.Wrap(err)
	}
	for _, e := range events.ExitChallenged {
		if err := s.historyDB.SetExitChallenged(int64(e.Priority), e.Challenger); err != nil {
			return nil, common.Wrap(err)
		}
	}
	for _, e := range events.ExitFinalized {
		if err := s.historyDB.SetExitFinalized(int64(e.Priority)); err != nil {
			return nil, common.Wrap(err)
		}
	}

	for _, e := range events.Withdraw {
		blockData.Withdrawals = append(blockData.Withdrawals, historydb.WithdrawalRow{
			Owner:          e.Owner,
			Amount:         e.Amount,
			Kind:           historydb.WithdrawalKindBalance,
			LedgerBlockNum: block.Num,
		})
	}
	for _, e := range events.DepositWithdraw {
		err := s.historyDB.SetDepositState(e.Digest, historydb.DepositStateWithdrawn)
		if err != nil {
			return nil, common.Wrap(err)
		}
		if e.Credited {
			// the payout fell back to the balance ledger, it will show
			// up as a balance withdrawal later
			continue
		}
		blockData.Withdrawals = append(blockData.Withdrawals, historydb.WithdrawalRow{
			Owner:          e.Owner,
			Amount:         e.Amount,
			Kind:           historydb.WithdrawalKindDeposit,
			LedgerBlockNum: block.Num,
		})
	}
	if err := s.historyDB.AddWithdrawals(blockData.Withdrawals); err != nil {
		return nil, common.Wrap(err)
	}
	return blockData, nil
}

func (s *Synchronizer) updateMetrics(blockData *BlockData, lastBlock *common.Block,
	lastChildBlockNum int64, pendingDeposits int) {
	metric.LastBlockNum.Set(float64(lastBlock.Num))
	metric.LastChildBlockNum.Set(float64(lastChildBlockNum))
	metric.PendingDeposits.Set(float64(pendingDeposits))
	metric.ChildBlocks.Add(float64(len(blockData.ChildBlocks)))
	metric.Deposits.Add(float64(len(blockData.Deposits)))
	metric.ExitsStarted.Add(float64(len(blockData.Exits)))
	metric.Withdrawals.Add(float64(len(blockData.Withdrawals)))
}
