package common

import (
	"math/big"
	"time"
)

const (
	// ChildBlockInterval is the distance between two operator submitted
	// child block numbers. The numbers in between are reserved for deposit
	// derived blocks flushed during the next submission.
	ChildBlockInterval = 1000

	// SubmitBlockGap is the minimum number of underlying ledger blocks that
	// must elapse between two child block submissions. It acts as a coarse
	// finality gate for the previous submission.
	SubmitBlockGap = 6

	// ExitPeriod is the time an exit must age before it can be finalized
	ExitPeriod = 7 * 24 * time.Hour

	// SigLen is the byte length of a standard ECDSA signature
	SigLen = 65

	// TxSigsLen is the byte length of the two transaction signatures that
	// prefix a signature bundle and are folded into the Merkle leaf
	TxSigsLen = 2 * SigLen

	// MaxSigsLen is the maximum byte length of a signature bundle: two
	// transaction signatures plus two confirmation signatures
	MaxSigsLen = 4 * SigLen
)

// ExitBond is the exact value that must be attached to startExit. It is
// forfeited to a successful challenger and returned with the proceeds on
// finalization.
var ExitBond = big.NewInt(10000)
