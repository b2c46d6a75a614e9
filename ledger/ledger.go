// Package ledger implements the underlying ledger the root chain is anchored
// on: a wall clock driven chain of blocks plus an account credit registry
// that stands in for native value transfers.
package ledger

import (
	"encoding/binary"
	"math/big"
	"sync"
	"time"

	"plasma-rootchain/common"
	"plasma-rootchain/log"

	ethCommon "github.com/ethereum/go-ethereum/common"
	ethCrypto "github.com/ethereum/go-ethereum/crypto"
)

// Ledger derives the block height from the wall clock: one block every
// interval since the genesis timestamp. Block hashes are derived from the
// block number so the chain is deterministic.
type Ledger struct {
	rw       sync.RWMutex
	genesis  time.Time
	interval time.Duration
	balances map[ethCommon.Address]*big.Int
}

// New returns a Ledger with the given genesis time and block interval
func New(genesis time.Time, interval time.Duration) *Ledger {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Ledger{
		genesis:  genesis,
		interval: interval,
		balances: make(map[ethCommon.Address]*big.Int),
	}
}

// BlockNum returns the current block number
func (l *Ledger) BlockNum() int64 {
	elapsed := time.Since(l.genesis)
	if elapsed < 0 {
		return 0
	}
	return int64(elapsed / l.interval)
}

// BlockTime returns the timestamp of the current block
func (l *Ledger) BlockTime() time.Time {
	return l.genesis.Add(time.Duration(l.BlockNum()) * l.interval)
}

func blockHash(num int64) ethCommon.Hash {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(num))
	return ethCrypto.Keccak256Hash(buf[:])
}

// LastBlock returns the current block
func (l *Ledger) LastBlock() *common.Block {
	num := l.BlockNum()
	block := &common.Block{
		Num:       num,
		Timestamp: l.BlockTime(),
		Hash:      blockHash(num),
	}
	if num > 0 {
		block.ParentHash = blockHash(num - 1)
	}
	return block
}

// Transfer credits amount to the account
func (l *Ledger) Transfer(to ethCommon.Address, amount *big.Int) error {
	l.rw.Lock()
	defer l.rw.Unlock()

	bal, ok := l.balances[to]
	if !ok {
		bal = big.NewInt(0)
	}
	l.balances[to] = new(big.Int).Add(bal, amount)
	log.Debugw("Ledger transfer", "to", to, "amount", amount)
	return nil
}

// Balance returns the credited balance of an account
func (l *Ledger) Balance(account ethCommon.Address) *big.Int {
	l.rw.RLock()
	defer l.rw.RUnlock()

	bal, ok := l.balances[account]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(bal)
}
