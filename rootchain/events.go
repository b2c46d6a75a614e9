package rootchain

import (
	"math/big"
	"time"

	"plasma-rootchain/common"

	ethCommon "github.com/ethereum/go-ethereum/common"
)

// EventBlockSubmitted is emitted for every child block committed by
// submitBlock, both operator submitted roots and flushed deposit blocks
type EventBlockSubmitted struct {
	BlockNum  uint64
	Root      ethCommon.Hash
	Deposit   bool
	CreatedAt time.Time
}

// EventDeposit is emitted when a deposit is admitted into the pending buffer
type EventDeposit struct {
	Digest ethCommon.Hash
	Owner  ethCommon.Address
	Amount *big.Int
	Nonce  uint64
}

// EventExitStarted is emitted when an exit claim is accepted
type EventExitStarted struct {
	Priority  uint64
	Owner     ethCommon.Address
	Amount    *big.Int
	Position  common.Position
	CreatedAt time.Time
}

// EventExitChallenged is emitted when a fraudulent exit is deleted and its
// bond forfeited to the challenger
type EventExitChallenged struct {
	Priority   uint64
	Challenger ethCommon.Address
	Bounty     *big.Int
}

// EventExitFinalized is emitted when a matured exit is credited to its owner
type EventExitFinalized struct {
	Priority uint64
	Owner    ethCommon.Address
	Amount   *big.Int
}

// EventWithdraw is emitted when a balance is paid out to its owner
type EventWithdraw struct {
	Owner  ethCommon.Address
	Amount *big.Int
}

// EventDepositWithdraw is emitted when an un-flushed pending deposit is
// reclaimed by its owner. Credited is true when the direct payout failed and
// the amount fell back to the balance ledger.
type EventDepositWithdraw struct {
	Digest   ethCommon.Hash
	Owner    ethCommon.Address
	Amount   *big.Int
	Credited bool
}

// Events is the set of events accumulated by the root chain since the last
// drain by the synchronizer
type Events struct {
	BlockSubmitted  []EventBlockSubmitted
	Deposit         []EventDeposit
	ExitStarted     []EventExitStarted
	ExitChallenged  []EventExitChallenged
	ExitFinalized   []EventExitFinalized
	Withdraw        []EventWithdraw
	DepositWithdraw []EventDepositWithdraw
}

// NewEvents creates an empty Events with the slices initialized
func NewEvents() Events {
	return Events{
		BlockSubmitted:  make([]EventBlockSubmitted, 0),
		Deposit:         make([]EventDeposit, 0),
		ExitStarted:     make([]EventExitStarted, 0),
		ExitChallenged:  make([]EventExitChallenged, 0),
		ExitFinalized:   make([]EventExitFinalized, 0),
		Withdraw:        make([]EventWithdraw, 0),
		DepositWithdraw: make([]EventDepositWithdraw, 0),
	}
}
