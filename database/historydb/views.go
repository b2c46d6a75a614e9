package historydb

import (
	"math/big"
	"time"

	"plasma-rootchain/common"

	ethCommon "github.com/ethereum/go-ethereum/common"
)

// DepositState is the lifecycle state of a tracked deposit
type DepositState string

const (
	// DepositStatePending marks a deposit buffered and not yet committed
	DepositStatePending DepositState = "Pending"
	// DepositStateFlushed marks a deposit committed as a child block
	DepositStateFlushed DepositState = "Flushed"
	// DepositStateWithdrawn marks a deposit reclaimed by its owner
	DepositStateWithdrawn DepositState = "Withdrawn"
)

// ExitState is the lifecycle state of a tracked exit
type ExitState string

const (
	// ExitStatePending marks an exit waiting out the challenge period
	ExitStatePending ExitState = "Pending"
	// ExitStateChallenged marks an exit deleted by a successful challenge
	ExitStateChallenged ExitState = "Challenged"
	// ExitStateFinalized marks an exit credited to its owner
	ExitStateFinalized ExitState = "Finalized"
)

// ChildBlockRow is a committed child block as stored in the history
type ChildBlockRow struct {
	BlockNum       int64          `meddler:"block_num"`
	Root           ethCommon.Hash `meddler:"root"`
	Deposit        bool           `meddler:"deposit"`
	LedgerBlockNum int64          `meddler:"ledger_block_num"`
	CreatedAt      time.Time      `meddler:"created_at,utctime"`
}

// DepositRow is a tracked deposit as stored in the history
type DepositRow struct {
	Digest         ethCommon.Hash    `meddler:"digest"`
	Owner          ethCommon.Address `meddler:"owner"`
	Amount         *big.Int          `meddler:"amount,bigint"`
	Nonce          int64             `meddler:"nonce"`
	State          DepositState      `meddler:"state"`
	LedgerBlockNum int64             `meddler:"ledger_block_num"`
}

// ExitRow is a tracked exit as stored in the history. Challenger carries the
// zero address until the exit is challenged.
type ExitRow struct {
	Priority       int64             `meddler:"priority"`
	Owner          ethCommon.Address `meddler:"owner"`
	Amount         *big.Int          `meddler:"amount,bigint"`
	BlkNum         int64             `meddler:"blk_num"`
	TxIndex        int64             `meddler:"tx_index"`
	OIndex         int64             `meddler:"o_index"`
	State          ExitState         `meddler:"state"`
	Challenger     ethCommon.Address `meddler:"challenger"`
	LedgerBlockNum int64             `meddler:"ledger_block_num"`
	CreatedAt      time.Time         `meddler:"created_at,utctime"`
}

// Position rebuilds the child chain position of the exited output
func (e *ExitRow) Position() common.Position {
	return common.NewPosition(uint64(e.BlkNum), uint64(e.TxIndex), uint64(e.OIndex))
}

// WithdrawalKind distinguishes the source of a payout
type WithdrawalKind string

const (
	// WithdrawalKindBalance is a payout of an accumulated balance
	WithdrawalKindBalance WithdrawalKind = "Balance"
	// WithdrawalKindDeposit is a reclaim of a buffered deposit
	WithdrawalKindDeposit WithdrawalKind = "Deposit"
)

// WithdrawalRow is a payout as stored in the history
type WithdrawalRow struct {
	ItemID         int64             `meddler:"item_id,pk"`
	Owner          ethCommon.Address `meddler:"owner"`
	Amount         *big.Int          `meddler:"amount,bigint"`
	Kind           WithdrawalKind    `meddler:"kind"`
	LedgerBlockNum int64             `meddler:"ledger_block_num"`
}
