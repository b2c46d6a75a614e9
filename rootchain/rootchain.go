// Package rootchain implements the on-chain anchor of the Plasma scheme: the
// deposit and block submission pipeline, the priority ordered exit game and
// the per account balance ledger. Every operation executes atomically under
// a single writer lock; a failed operation leaves no trace in the state.
package rootchain

import (
	"fmt"
	"math/big"
	"reflect"
	"sync"
	"time"

	"plasma-rootchain/common"
	"plasma-rootchain/log"
	"plasma-rootchain/merkle"
	"plasma-rootchain/priorityqueue"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/mitchellh/copystructure"
)

func init() {
	copystructure.Copiers[reflect.TypeOf(big.Int{})] =
		func(raw interface{}) (interface{}, error) {
			in := raw.(big.Int)
			out := new(big.Int).Set(&in)
			return *out, nil
		}
	copystructure.Copiers[reflect.TypeOf(time.Time{})] =
		func(raw interface{}) (interface{}, error) {
			return raw, nil
		}
}

// Ledger is the capability surface of the underlying ledger: a block number
// and timestamp source plus an opaque value transfer that either fully
// succeeds or fails.
type Ledger interface {
	BlockNum() int64
	BlockTime() time.Time
	Transfer(to ethCommon.Address, amount *big.Int) error
}

// state is the full mutable registry set of the root chain. Fields are
// exported so the whole struct can be deep copied for the pre-operation
// snapshot.
type state struct {
	ChildChain   map[uint64]*common.ChildBlock
	Deposits     map[ethCommon.Hash]*common.PendingDeposit
	DepositRoots map[uint64]ethCommon.Hash // deposit nonce -> deposit digest
	DepositQueue *priorityqueue.Queue
	Exits        map[uint64]*common.Exit
	ExitQueue    *priorityqueue.Queue
	Balances     map[ethCommon.Address]*big.Int

	CurrentChildBlock uint64
	DepositNonce      uint64
	LastParentBlock   int64
}

func (s *state) copy() *state {
	sCopyRaw, err := copystructure.Copy(s)
	if err != nil {
		panic(err)
	}
	return sCopyRaw.(*state)
}

// RootChain is the root ledger contract state machine
type RootChain struct {
	rw        *sync.RWMutex
	ledger    Ledger
	authority ethCommon.Address
	state     *state
	events    Events
}

// New returns a RootChain anchored on the given ledger with the given
// operator authority. The construction block acts as the previous
// submission for the first block gap check.
func New(ledger Ledger, authority ethCommon.Address) *RootChain {
	return &RootChain{
		rw:        &sync.RWMutex{},
		ledger:    ledger,
		authority: authority,
		state: &state{
			ChildChain:        make(map[uint64]*common.ChildBlock),
			Deposits:          make(map[ethCommon.Hash]*common.PendingDeposit),
			DepositRoots:      make(map[uint64]ethCommon.Hash),
			DepositQueue:      priorityqueue.New(),
			Exits:             make(map[uint64]*common.Exit),
			ExitQueue:         priorityqueue.New(),
			Balances:          make(map[ethCommon.Address]*big.Int),
			CurrentChildBlock: common.ChildBlockInterval,
			DepositNonce:      1,
			LastParentBlock:   ledger.BlockNum(),
		},
		events: NewEvents(),
	}
}

// revertIfErr restores the pre-operation snapshot when the operation failed
func (rc *RootChain) revertIfErr(err error, cpy *state) {
	if err != nil {
		log.Debugw("RootChain revert", "err", err)
		rc.state = cpy
	}
}

func (rc *RootChain) credit(owner ethCommon.Address, amount *big.Int) {
	bal, ok := rc.state.Balances[owner]
	if !ok {
		bal = big.NewInt(0)
	}
	rc.state.Balances[owner] = new(big.Int).Add(bal, amount)
}

// SubmitBlock commits the operator root as a new child block, first flushing
// every buffered deposit into its own child block. Restricted to the
// authority and rate limited to one submission per SubmitBlockGap underlying
// blocks.
func (rc *RootChain) SubmitBlock(caller ethCommon.Address, root ethCommon.Hash) (err error) {
	rc.rw.Lock()
	defer rc.rw.Unlock()
	cpy := rc.state.copy()
	defer func() { rc.revertIfErr(err, cpy) }()

	if caller != rc.authority {
		return common.Wrap(common.ErrNotAuthority)
	}
	if rc.ledger.BlockNum() < rc.state.LastParentBlock+common.SubmitBlockGap {
		return common.Wrap(common.ErrBlockGapNotPassed)
	}
	now := rc.ledger.BlockTime()
	st := rc.state

	for st.DepositQueue.CurrentSize() > 0 {
		nonce, errMin := st.DepositQueue.DelMin()
		if errMin != nil {
			return common.Wrap(errMin)
		}
		digest := st.DepositRoots[nonce]
		delete(st.DepositRoots, nonce)
		// NOTE: the pending deposit lookup is keyed by the submitted
		// root, not by the per nonce digest. Kept byte for byte from
		// the contract; see DESIGN.md, open questions.
		if _, ok := st.Deposits[root]; ok {
			st.ChildChain[st.CurrentChildBlock] = &common.ChildBlock{
				BlockNum:  st.CurrentChildBlock,
				Root:      digest,
				CreatedAt: now,
			}
			rc.events.BlockSubmitted = append(rc.events.BlockSubmitted, EventBlockSubmitted{
				BlockNum:  st.CurrentChildBlock,
				Root:      digest,
				Deposit:   true,
				CreatedAt: now,
			})
			st.CurrentChildBlock += common.ChildBlockInterval
			delete(st.Deposits, root)
		}
	}
	st.DepositNonce = 1

	st.ChildChain[st.CurrentChildBlock] = &common.ChildBlock{
		BlockNum:  st.CurrentChildBlock,
		Root:      root,
		CreatedAt: now,
	}
	rc.events.BlockSubmitted = append(rc.events.BlockSubmitted, EventBlockSubmitted{
		BlockNum:  st.CurrentChildBlock,
		Root:      root,
		CreatedAt: now,
	})
	log.Debugw("RootChain block submitted", "blockNum", st.CurrentChildBlock, "root", root)
	st.CurrentChildBlock += common.ChildBlockInterval
	st.LastParentBlock = rc.ledger.BlockNum()
	return nil
}

// Deposit admits a claim of funds into the child chain. The encoded record
// must be deposit shaped and its first output must carry exactly the
// attached value. Returns the content digest under which the pending deposit
// is stored.
func (rc *RootChain) Deposit(caller ethCommon.Address, value *big.Int,
	txBytes []byte) (digest ethCommon.Hash, err error) {
	rc.rw.Lock()
	defer rc.rw.Unlock()
	cpy := rc.state.copy()
	defer func() { rc.revertIfErr(err, cpy) }()

	tx, err := common.DecodeTx(txBytes)
	if err != nil {
		return ethCommon.Hash{}, err
	}
	if err := tx.ValidateDeposit(value); err != nil {
		return ethCommon.Hash{}, err
	}
	digest = common.TxDigest(txBytes)
	st := rc.state
	if _, ok := st.Deposits[digest]; ok {
		return ethCommon.Hash{}, common.Wrap(
			fmt.Errorf("%w: duplicate digest %s", common.ErrInvalidTxRecord, digest))
	}

	nonce := st.DepositNonce
	st.Deposits[digest] = &common.PendingDeposit{
		Digest: digest,
		Owner:  tx.Owner1,
		Amount: new(big.Int).Set(value),
		Nonce:  nonce,
	}
	st.DepositRoots[nonce] = digest
	st.DepositQueue.Insert(nonce)
	st.DepositNonce++

	rc.events.Deposit = append(rc.events.Deposit, EventDeposit{
		Digest: digest,
		Owner:  tx.Owner1,
		Amount: new(big.Int).Set(value),
		Nonce:  nonce,
	})
	log.Debugw("RootChain deposit", "owner", tx.Owner1, "amount", value, "nonce", nonce)
	return digest, nil
}

// StartExit opens a withdrawal claim for the output at pos. The caller must
// be the recorded owner of the output, must attach exactly the exit bond and
// must prove both the input owner signatures and the Merkle inclusion of the
// transaction in the committed child block.
func (rc *RootChain) StartExit(caller ethCommon.Address, value *big.Int, pos common.Position,
	txBytes, proof, sigs []byte) (err error) {
	rc.rw.Lock()
	defer rc.rw.Unlock()
	cpy := rc.state.copy()
	defer func() { rc.revertIfErr(err, cpy) }()

	if err := pos.Valid(); err != nil {
		return err
	}
	cb, ok := rc.state.ChildChain[pos.BlkNum]
	if !ok {
		return common.Wrap(common.ErrChildBlockNotFound)
	}
	tx, err := common.DecodeTx(txBytes)
	if err != nil {
		return err
	}
	owner, amount, err := tx.Output(pos.OIndex)
	if err != nil {
		return err
	}
	if owner != caller {
		return common.Wrap(common.ErrNotOwner)
	}
	if value == nil || value.Cmp(common.ExitBond) != 0 {
		return common.Wrap(common.ErrValueMismatch)
	}

	txDigest := common.TxDigest(txBytes)
	leaf, err := common.MerkleLeaf(txDigest, sigs)
	if err != nil {
		return err
	}
	sigsOK, err := common.CheckSigs(txDigest, cb.Root, tx.BlkNum1, tx.BlkNum2, sigs)
	if err != nil {
		return err
	}
	if !sigsOK {
		return common.Wrap(common.ErrInvalidSignature)
	}
	if !merkle.CheckMembership(leaf, pos.TxIndex, cb.Root, proof) {
		return common.Wrap(common.ErrInvalidProof)
	}

	priority := pos.Priority()
	st := rc.state
	if _, ok := st.Exits[priority]; ok {
		return common.Wrap(common.ErrExitSlotOccupied)
	}
	createdAt := rc.ledger.BlockTime()
	st.ExitQueue.Insert(priority)
	st.Exits[priority] = &common.Exit{
		Owner:     owner,
		Amount:    new(big.Int).Set(amount),
		CreatedAt: createdAt,
		Position:  pos,
	}
	rc.events.ExitStarted = append(rc.events.ExitStarted, EventExitStarted{
		Priority:  priority,
		Owner:     owner,
		Amount:    new(big.Int).Set(amount),
		Position:  pos,
		CreatedAt: createdAt,
	})
	log.Debugw("RootChain exit started", "priority", priority, "owner", owner, "amount", amount)
	return nil
}

// ChallengeExit deletes an exit whose output was already spent. The
// challenger must show the spending transaction in a committed block at
// spendingPos, referencing the exiting position as one of its inputs, with a
// confirmation signature by the exit owner over the spend. The exit bond is
// forfeited to the challenger's balance.
func (rc *RootChain) ChallengeExit(caller ethCommon.Address, exitPos, spendingPos common.Position,
	txBytes, proof, sigs, confirmationSig []byte) (err error) {
	rc.rw.Lock()
	defer rc.rw.Unlock()
	cpy := rc.state.copy()
	defer func() { rc.revertIfErr(err, cpy) }()

	st := rc.state
	cb, ok := st.ChildChain[spendingPos.BlkNum]
	if !ok {
		return common.Wrap(common.ErrChildBlockNotFound)
	}
	priority := exitPos.Priority()
	ex, ok := st.Exits[priority]
	if !ok || ex.Tombstoned() {
		return common.Wrap(common.ErrExitNotFound)
	}
	tx, err := common.DecodeTx(txBytes)
	if err != nil {
		return err
	}
	if tx.InputPosition(0) != exitPos && tx.InputPosition(1) != exitPos {
		return common.Wrap(common.ErrPositionMismatch)
	}

	txDigest := common.TxDigest(txBytes)
	confirmationDigest := common.ChallengeDigest(txDigest, sigs, cb.Root)
	signer, err := common.RecoverSigner(confirmationDigest, confirmationSig)
	if err != nil {
		return err
	}
	if signer != ex.Owner {
		return common.Wrap(common.ErrInvalidSignature)
	}
	leaf, err := common.MerkleLeaf(txDigest, sigs)
	if err != nil {
		return err
	}
	if !merkle.CheckMembership(leaf, spendingPos.TxIndex, cb.Root, proof) {
		return common.Wrap(common.ErrInvalidProof)
	}

	// tombstone the exit: the queue slot stays and is skipped during
	// finalization
	ex.Owner = ethCommon.Address{}
	rc.credit(caller, common.ExitBond)
	rc.events.ExitChallenged = append(rc.events.ExitChallenged, EventExitChallenged{
		Priority:   priority,
		Challenger: caller,
		Bounty:     new(big.Int).Set(common.ExitBond),
	})
	log.Debugw("RootChain exit challenged", "priority", priority, "challenger", caller)
	return nil
}

// FinalizeExits processes the exit queue from the minimum priority upward:
// orphaned slots left by challenges are popped and skipped, and processing
// stops at the first exit that has not yet aged past the exit period. Every
// matured exit is credited amount plus bond to its owner exactly once.
// Callable by anyone; a no-op on an empty or immature queue. Returns the
// number of exits finalized.
func (rc *RootChain) FinalizeExits() int {
	rc.rw.Lock()
	defer rc.rw.Unlock()

	now := rc.ledger.BlockTime()
	st := rc.state
	finalized := 0
	for st.ExitQueue.CurrentSize() > 0 {
		priority, err := st.ExitQueue.GetMin()
		if err != nil {
			break
		}
		ex, ok := st.Exits[priority]
		if !ok || ex.Tombstoned() {
			if _, err := st.ExitQueue.DelMin(); err != nil {
				break
			}
			delete(st.Exits, priority)
			continue
		}
		if !ex.Matured(now) {
			// the scan is bounded here on purpose: priority order is
			// the processing order, maturity is the gate
			break
		}
		payout := new(big.Int).Add(ex.Amount, common.ExitBond)
		rc.credit(ex.Owner, payout)
		rc.events.ExitFinalized = append(rc.events.ExitFinalized, EventExitFinalized{
			Priority: priority,
			Owner:    ex.Owner,
			Amount:   payout,
		})
		log.Debugw("RootChain exit finalized", "priority", priority, "owner", ex.Owner,
			"amount", payout)
		if _, err := st.ExitQueue.DelMin(); err != nil {
			break
		}
		delete(st.Exits, priority)
		finalized++
	}
	return finalized
}

// Withdraw pays out the caller's full balance through the underlying ledger.
// A zero balance is a no-op returning zero. The balance is zeroed before the
// transfer; if the transfer fails the whole operation rolls back so the
// zeroing is never observable.
func (rc *RootChain) Withdraw(caller ethCommon.Address) (amount *big.Int, err error) {
	rc.rw.Lock()
	defer rc.rw.Unlock()
	cpy := rc.state.copy()
	defer func() { rc.revertIfErr(err, cpy) }()

	bal, ok := rc.state.Balances[caller]
	if !ok || bal.Sign() == 0 {
		return big.NewInt(0), nil
	}
	amount = new(big.Int).Set(bal)
	delete(rc.state.Balances, caller)
	if terr := rc.ledger.Transfer(caller, amount); terr != nil {
		return nil, common.Wrap(fmt.Errorf("%w: %s", common.ErrTransferFailed, terr))
	}
	rc.events.Withdraw = append(rc.events.Withdraw, EventWithdraw{
		Owner:  caller,
		Amount: new(big.Int).Set(amount),
	})
	log.Debugw("RootChain withdraw", "owner", caller, "amount", amount)
	return amount, nil
}

// WithdrawDeposit reclaims an un-flushed pending deposit. Only the recorded
// owner may reclaim; the payout is attempted directly and falls back to a
// balance credit if the ledger rejects it, so funds are never dropped.
func (rc *RootChain) WithdrawDeposit(caller ethCommon.Address, digest ethCommon.Hash) (err error) {
	rc.rw.Lock()
	defer rc.rw.Unlock()
	cpy := rc.state.copy()
	defer func() { rc.revertIfErr(err, cpy) }()

	dep, ok := rc.state.Deposits[digest]
	if !ok {
		return common.Wrap(common.ErrDepositNotFound)
	}
	if dep.Owner != caller {
		return common.Wrap(common.ErrNotOwner)
	}
	amount := new(big.Int).Set(dep.Amount)
	delete(rc.state.Deposits, digest)
	credited := false
	if terr := rc.ledger.Transfer(caller, amount); terr != nil {
		rc.credit(caller, amount)
		credited = true
		log.Warnw("RootChain deposit payout failed, credited balance",
			"owner", caller, "amount", amount, "err", terr)
	}
	rc.events.DepositWithdraw = append(rc.events.DepositWithdraw, EventDepositWithdraw{
		Digest:   digest,
		Owner:    caller,
		Amount:   amount,
		Credited: credited,
	})
	return nil
}

//
// Read operations
//

// GetChildChain returns the committed child block at blkNum
func (rc *RootChain) GetChildChain(blkNum uint64) (*common.ChildBlock, error) {
	rc.rw.RLock()
	defer rc.rw.RUnlock()

	cb, ok := rc.state.ChildChain[blkNum]
	if !ok {
		return nil, common.Wrap(common.ErrChildBlockNotFound)
	}
	cbCopy := *cb
	return &cbCopy, nil
}

// GetExit returns the live exit recorded at the given priority
func (rc *RootChain) GetExit(priority uint64) (*common.Exit, error) {
	rc.rw.RLock()
	defer rc.rw.RUnlock()

	ex, ok := rc.state.Exits[priority]
	if !ok || ex.Tombstoned() {
		return nil, common.Wrap(common.ErrExitNotFound)
	}
	exCopy := *ex
	exCopy.Amount = new(big.Int).Set(ex.Amount)
	return &exCopy, nil
}

// GetDeposit returns the pending deposit stored under digest
func (rc *RootChain) GetDeposit(digest ethCommon.Hash) (*common.PendingDeposit, error) {
	rc.rw.RLock()
	defer rc.rw.RUnlock()

	dep, ok := rc.state.Deposits[digest]
	if !ok {
		return nil, common.Wrap(common.ErrDepositNotFound)
	}
	depCopy := *dep
	depCopy.Amount = new(big.Int).Set(dep.Amount)
	return &depCopy, nil
}

// GetBalance returns the withdrawable balance of an account
func (rc *RootChain) GetBalance(owner ethCommon.Address) *big.Int {
	rc.rw.RLock()
	defer rc.rw.RUnlock()

	bal, ok := rc.state.Balances[owner]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(bal)
}

// NumPendingDeposits returns the number of buffered deposits awaiting the
// next block submission. Deposits reclaimed directly through WithdrawDeposit
// keep their queue slot until the next flush but are not counted.
func (rc *RootChain) NumPendingDeposits() int {
	rc.rw.RLock()
	defer rc.rw.RUnlock()

	count := 0
	for _, digest := range rc.state.DepositRoots {
		if _, ok := rc.state.Deposits[digest]; ok {
			count++
		}
	}
	return count
}

// CurrentChildBlock returns the number the next committed child block will
// take
func (rc *RootChain) CurrentChildBlock() uint64 {
	rc.rw.RLock()
	defer rc.rw.RUnlock()

	return rc.state.CurrentChildBlock
}

// DepositNonce returns the nonce the next deposit will take
func (rc *RootChain) DepositNonce() uint64 {
	rc.rw.RLock()
	defer rc.rw.RUnlock()

	return rc.state.DepositNonce
}

// LastParentBlock returns the underlying ledger block of the previous child
// block submission
func (rc *RootChain) LastParentBlock() int64 {
	rc.rw.RLock()
	defer rc.rw.RUnlock()

	return rc.state.LastParentBlock
}

// Authority returns the operator account allowed to submit blocks
func (rc *RootChain) Authority() ethCommon.Address {
	return rc.authority
}

// FlushEvents returns the events accumulated since the previous call and
// resets the accumulator, together with the ledger block at which they were
// drained
func (rc *RootChain) FlushEvents() (Events, int64) {
	rc.rw.Lock()
	defer rc.rw.Unlock()

	events := rc.events
	rc.events = NewEvents()
	return events, rc.ledger.BlockNum()
}
