package common

import (
	"time"

	ethCommon "github.com/ethereum/go-ethereum/common"
)

// Block represents a block of the underlying ledger
type Block struct {
	Num        int64          `meddler:"ledger_block_num"`
	Timestamp  time.Time      `meddler:"timestamp,utctime"`
	Hash       ethCommon.Hash `meddler:"hash"`
	ParentHash ethCommon.Hash `meddler:"-" json:"-"`
}

// ChildBlock is a committed child chain block: a Merkle root and the time it
// was committed. Immutable once written.
type ChildBlock struct {
	BlockNum  uint64         `meddler:"block_num"`
	Root      ethCommon.Hash `meddler:"root"`
	CreatedAt time.Time      `meddler:"created_at,utctime"`
}
