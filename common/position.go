package common

import "fmt"

// Priority packing factors. A packed priority is
// blkNum*1e9 + txIndex*1e4 + oIndex, which totally orders outputs by the
// block that created them, then by transaction index, then by output index.
const (
	priorityBlkNumFactor  = 1000000000
	priorityTxIndexFactor = 10000

	// maxTxIndex is bounded by the packing: txIndex*1e4 must stay below the
	// blkNum factor. The fixed depth 16 tree holds at most 65536
	// transactions per block, well inside this bound.
	maxTxIndex = priorityBlkNumFactor / priorityTxIndexFactor

	// maxOIndex is bounded by the txIndex factor. Transactions have two
	// outputs, so only 0 and 1 occur in practice.
	maxOIndex = priorityTxIndexFactor

	// maxBlkNum keeps blkNum*1e9 inside uint64. The child block counter
	// advances by ChildBlockInterval per commit and stays far below this.
	maxBlkNum = (1<<64 - 1) / priorityBlkNumFactor
)

// Position identifies a single output of the child chain: the child block
// number, the transaction index inside the block and the output index inside
// the transaction.
type Position struct {
	BlkNum  uint64
	TxIndex uint64
	OIndex  uint64
}

// NewPosition returns the Position for the given coordinates
func NewPosition(blkNum, txIndex, oIndex uint64) Position {
	return Position{BlkNum: blkNum, TxIndex: txIndex, OIndex: oIndex}
}

// Valid checks that every field of the position fits its packing width
func (p Position) Valid() error {
	if p.BlkNum > maxBlkNum {
		return Wrap(fmt.Errorf("position blkNum %d overflows priority packing", p.BlkNum))
	}
	if p.TxIndex >= maxTxIndex {
		return Wrap(fmt.Errorf("position txIndex %d overflows priority packing", p.TxIndex))
	}
	if p.OIndex >= maxOIndex {
		return Wrap(fmt.Errorf("position oIndex %d overflows priority packing", p.OIndex))
	}
	return nil
}

// Priority packs the position into the composite key used to both identify
// and order exits. Smaller keys exit first.
func (p Position) Priority() uint64 {
	return p.BlkNum*priorityBlkNumFactor + p.TxIndex*priorityTxIndexFactor + p.OIndex
}

// PositionFromPriority inverts Priority
func PositionFromPriority(priority uint64) Position {
	return Position{
		BlkNum:  priority / priorityBlkNumFactor,
		TxIndex: (priority % priorityBlkNumFactor) / priorityTxIndexFactor,
		OIndex:  priority % priorityTxIndexFactor,
	}
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.BlkNum, p.TxIndex, p.OIndex)
}
