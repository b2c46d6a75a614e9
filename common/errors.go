package common

import (
	"errors"

	"github.com/hermeznetwork/tracerr"
)

// ErrInvalidTxRecord is used when a transaction record does not decode to the
// fixed 11 field shape or violates a structural rule of the operation
var ErrInvalidTxRecord = errors.New("invalid transaction record")

// ErrNotAuthority is used when a restricted call is made by an account that is
// not the chain authority
var ErrNotAuthority = errors.New("caller is not the authority")

// ErrNotOwner is used when the caller is not the recorded owner of the
// referenced output, deposit or balance
var ErrNotOwner = errors.New("caller is not the owner")

// ErrValueMismatch is used when the attached value does not match the value
// the operation requires (deposit amount or exit bond)
var ErrValueMismatch = errors.New("attached value mismatch")

// ErrInvalidProof is used when a Merkle inclusion proof does not verify
// against the committed root
var ErrInvalidProof = errors.New("invalid inclusion proof")

// ErrInvalidSignature is used when a transaction or confirmation signature
// does not recover to the expected signer
var ErrInvalidSignature = errors.New("invalid signature")

// ErrBlockGapNotPassed is used when submitBlock is called before the minimum
// number of underlying ledger blocks have elapsed since the last submission
var ErrBlockGapNotPassed = errors.New("block submission gap not passed")

// ErrExitSlotOccupied is used when an exit already occupies the priority slot
// derived from the output position
var ErrExitSlotOccupied = errors.New("exit slot already occupied")

// ErrExitNotFound is used when no live exit exists at the given priority
var ErrExitNotFound = errors.New("exit not found")

// ErrPositionMismatch is used when a challenge references a spending
// transaction whose inputs do not include the exiting output position
var ErrPositionMismatch = errors.New("spending tx does not reference the exit position")

// ErrChildBlockNotFound is used when the referenced child block number has no
// committed root
var ErrChildBlockNotFound = errors.New("child block not found")

// ErrDepositNotFound is used when no pending deposit exists for the given
// digest
var ErrDepositNotFound = errors.New("pending deposit not found")

// ErrQueueEmpty is used when PriorityQueue.GetMin() or DelMin() is called and
// the queue has no elements
var ErrQueueEmpty = errors.New("priority queue empty")

// ErrTransferFailed is used when the underlying ledger rejects a payout
var ErrTransferFailed = errors.New("ledger transfer failed")

// Wrap attaches a stack trace to the error
func Wrap(err error) error {
	return tracerr.Wrap(err)
}

// Unwrap returns the error wrapped by Wrap
func Unwrap(err error) error {
	return tracerr.Unwrap(err)
}
