package common

import (
	"math/big"
	"time"

	ethCommon "github.com/ethereum/go-ethereum/common"
)

// PendingDeposit is a deposit admitted into the root chain but not yet
// flushed into a child block. It is keyed by the digest of its encoded
// transaction record.
type PendingDeposit struct {
	Digest ethCommon.Hash    `meddler:"digest"`
	Owner  ethCommon.Address `meddler:"owner"`
	Amount *big.Int          `meddler:"amount,bigint"`
	Nonce  uint64            `meddler:"nonce"`
}

// Exit is a live claim to withdraw a child chain output back to the
// underlying ledger. It is keyed by the priority packed from its position.
// A challenged exit keeps its table entry with the owner zeroed until the
// finalization scan pops the orphaned queue slot.
type Exit struct {
	Owner     ethCommon.Address `meddler:"owner"`
	Amount    *big.Int          `meddler:"amount,bigint"`
	CreatedAt time.Time         `meddler:"created_at,utctime"`
	Position  Position          `meddler:"-"`
}

// Tombstoned reports whether the exit was deleted by a successful challenge
func (e *Exit) Tombstoned() bool {
	return e.Owner == (ethCommon.Address{})
}

// Matured reports whether the exit has aged past the exit period at the
// given instant
func (e *Exit) Matured(now time.Time) bool {
	return now.Sub(e.CreatedAt) > ExitPeriod
}
