package test

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"
	"time"

	"plasma-rootchain/common"
	"plasma-rootchain/log"

	ethCommon "github.com/ethereum/go-ethereum/common"
)

// Timer is an interface to simulate a source of time, useful to advance time
// virtually
type Timer interface {
	Time() int64
}

type hasher struct {
	counter uint64
}

// Next returns the next hash
func (h *hasher) Next() ethCommon.Hash {
	var hash ethCommon.Hash
	binary.LittleEndian.PutUint64(hash[:], h.counter)
	h.counter++
	return hash
}

type ledgerBlock struct {
	Num        int64
	Time       int64
	Hash       ethCommon.Hash
	ParentHash ethCommon.Hash
}

// Ledger simulates the underlying ledger with deterministic results: a chain
// of blocks advanced by CtlMineBlock, per account balances and an opaque
// transfer capability whose failure can be injected to exercise the payout
// fallback paths.
type Ledger struct {
	rw            *sync.RWMutex
	blocks        map[int64]*ledgerBlock
	blockNum      int64
	blockTime     int64
	timeStep      int64
	hasher        hasher
	balances      map[ethCommon.Address]*big.Int
	failTransfers bool
}

// NewLedger returns a Ledger at block 0 with the given genesis timestamp.
// Each mined block advances the timestamp by 15 seconds unless the time is
// moved explicitly.
func NewLedger(genesis time.Time) *Ledger {
	l := &Ledger{
		rw:        &sync.RWMutex{},
		blocks:    make(map[int64]*ledgerBlock),
		blockTime: genesis.Unix(),
		timeStep:  15,
		balances:  make(map[ethCommon.Address]*big.Int),
	}
	l.blocks[0] = &ledgerBlock{
		Num:  0,
		Time: l.blockTime,
		Hash: l.hasher.Next(),
	}
	return l
}

// BlockNum returns the last mined block number
func (l *Ledger) BlockNum() int64 {
	l.rw.RLock()
	defer l.rw.RUnlock()

	return l.blockNum
}

// BlockTime returns the timestamp of the last mined block
func (l *Ledger) BlockTime() time.Time {
	l.rw.RLock()
	defer l.rw.RUnlock()

	return time.Unix(l.blocks[l.blockNum].Time, 0)
}

// Transfer credits amount to the account, or fails when transfer failure is
// injected
func (l *Ledger) Transfer(to ethCommon.Address, amount *big.Int) error {
	l.rw.Lock()
	defer l.rw.Unlock()

	if l.failTransfers {
		return common.Wrap(fmt.Errorf("transfer of %v to %s rejected", amount, to.Hex()))
	}
	bal, ok := l.balances[to]
	if !ok {
		bal = big.NewInt(0)
	}
	l.balances[to] = new(big.Int).Add(bal, amount)
	return nil
}

// CtlMineBlock moves one block forward
func (l *Ledger) CtlMineBlock() {
	l.rw.Lock()
	defer l.rw.Unlock()

	parent := l.blocks[l.blockNum]
	l.blockNum++
	l.blockTime += l.timeStep
	l.blocks[l.blockNum] = &ledgerBlock{
		Num:        l.blockNum,
		Time:       l.blockTime,
		Hash:       l.hasher.Next(),
		ParentHash: parent.Hash,
	}
	log.Debugw("TestLedger mined block", "blockNum", l.blockNum)
}

// CtlMineBlocks mines n blocks
func (l *Ledger) CtlMineBlocks(n int) {
	for i := 0; i < n; i++ {
		l.CtlMineBlock()
	}
}

// CtlAdvanceTime moves the clock of the next mined blocks forward by d
func (l *Ledger) CtlAdvanceTime(d time.Duration) {
	l.rw.Lock()
	defer l.rw.Unlock()

	l.blockTime += int64(d.Seconds())
	l.blocks[l.blockNum].Time = l.blockTime
}

// CtlSetFailTransfers toggles injected transfer failure
func (l *Ledger) CtlSetFailTransfers(fail bool) {
	l.rw.Lock()
	defer l.rw.Unlock()

	l.failTransfers = fail
}

// CtlBalance returns the ledger balance of an account
func (l *Ledger) CtlBalance(account ethCommon.Address) *big.Int {
	l.rw.RLock()
	defer l.rw.RUnlock()

	bal, ok := l.balances[account]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(bal)
}

// LastBlock returns the last mined block
func (l *Ledger) LastBlock() *common.Block {
	l.rw.RLock()
	defer l.rw.RUnlock()

	block := l.blocks[l.blockNum]
	return &common.Block{
		Num:        block.Num,
		Timestamp:  time.Unix(block.Time, 0),
		Hash:       block.Hash,
		ParentHash: block.ParentHash,
	}
}
