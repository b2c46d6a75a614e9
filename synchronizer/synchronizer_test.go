package synchronizer

import (
	"context"
	"math/big"
	"os"
	"testing"
	"time"

	"plasma-rootchain/common"
	"plasma-rootchain/database"
	"plasma-rootchain/database/historydb"
	"plasma-rootchain/log"
	"plasma-rootchain/rootchain"
	"plasma-rootchain/test"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var historyDB *historydb.HistoryDB

func wipeDB(db *sqlx.DB) {
	if err := database.MigrationsDown(db.DB, 0); err != nil {
		panic(err)
	}
	if err := database.MigrationsUp(db.DB); err != nil {
		panic(err)
	}
}

func TestMain(m *testing.M) {
	db, err := database.InitTestSQLDB()
	if err != nil {
		panic(err)
	}
	historyDB = historydb.NewHistoryDB(db, db, nil)

	result := m.Run()
	if err := db.Close(); err != nil {
		log.Error("Error closing the history DB: ", err)
	}
	os.Exit(result)
}

func newTestSetup(t *testing.T) (*test.Ledger, *rootchain.RootChain, []*test.User, *Synchronizer) {
	wipeDB(historyDB.DB())
	ledger := test.NewLedger(time.Unix(1700000000, 0))
	users := test.NewUsers(4)
	rc := rootchain.New(ledger, users[0].Addr)
	s, err := NewSynchronizer(rc, ledger, historyDB)
	require.NoError(t, err)
	return ledger, rc, users, s
}

func TestSyncDepositAndBlocks(t *testing.T) {
	ledger, rc, users, s := newTestSetup(t)
	ctx := context.Background()

	// genesis block, nothing happened yet
	blockData, err := s.Sync(ctx)
	require.NoError(t, err)
	require.NotNil(t, blockData)
	assert.Equal(t, int64(0), blockData.Block.Num)
	assert.Len(t, blockData.ChildBlocks, 0)

	// no new block, nothing to do
	blockData, err = s.Sync(ctx)
	require.NoError(t, err)
	assert.Nil(t, blockData)

	amount := big.NewInt(5000)
	digest, err := rc.Deposit(users[1].Addr, amount,
		test.Encode(test.DepositTx(users[1].Addr, amount)))
	require.NoError(t, err)
	ledger.CtlMineBlocks(common.SubmitBlockGap)
	require.NoError(t, rc.SubmitBlock(users[0].Addr, digest))

	blockData, err = s.Sync(ctx)
	require.NoError(t, err)
	require.NotNil(t, blockData)
	require.Len(t, blockData.Deposits, 1)
	require.Len(t, blockData.ChildBlocks, 2)
	assert.True(t, blockData.ChildBlocks[0].Deposit)

	// persisted rows
	dep, err := historyDB.GetDeposit(digest)
	require.NoError(t, err)
	assert.Equal(t, historydb.DepositStateFlushed, dep.State)
	cb, err := historyDB.GetChildBlock(int64(common.ChildBlockInterval))
	require.NoError(t, err)
	assert.Equal(t, digest, cb.Root)
	lastCb, err := historyDB.GetLastChildBlock()
	require.NoError(t, err)
	assert.Equal(t, int64(2*common.ChildBlockInterval), lastCb.BlockNum)

	stats := s.Stats()
	assert.Equal(t, ledger.BlockNum(), stats.Sync.LastBlock.Num)
	assert.Equal(t, int64(2*common.ChildBlockInterval), stats.Sync.LastChildBlockNum)
	assert.Equal(t, 0, stats.Sync.PendingDeposits)
}

func TestSyncExitLifecycle(t *testing.T) {
	ledger, rc, users, s := newTestSetup(t)
	ctx := context.Background()

	amount := big.NewInt(5000)
	txBytes := test.Encode(test.DepositTx(users[1].Addr, amount))
	bb := &test.ChildBlockBuilder{}
	bb.Add(txBytes, test.ZeroSigs())
	ledger.CtlMineBlocks(common.SubmitBlockGap)
	blockNum := rc.CurrentChildBlock()
	require.NoError(t, rc.SubmitBlock(users[0].Addr, bb.Build().Root()))
	pos := common.NewPosition(blockNum, 0, 0)
	require.NoError(t, rc.StartExit(users[1].Addr, common.ExitBond, pos,
		txBytes, bb.Proof(0), test.ZeroSigs()))

	blockData, err := s.Sync(ctx)
	require.NoError(t, err)
	require.NotNil(t, blockData)
	require.Len(t, blockData.Exits, 1)

	row, err := historyDB.GetExit(int64(pos.Priority()))
	require.NoError(t, err)
	assert.Equal(t, historydb.ExitStatePending, row.State)
	assert.Equal(t, pos, row.Position())

	// mature, finalize and withdraw
	ledger.CtlAdvanceTime(common.ExitPeriod + time.Hour)
	ledger.CtlMineBlock()
	require.Equal(t, 1, rc.FinalizeExits())
	withdrawn, err := rc.Withdraw(users[1].Addr)
	require.NoError(t, err)
	require.Positive(t, withdrawn.Sign())

	blockData, err = s.Sync(ctx)
	require.NoError(t, err)
	require.NotNil(t, blockData)
	require.Len(t, blockData.Withdrawals, 1)

	row, err = historyDB.GetExit(int64(pos.Priority()))
	require.NoError(t, err)
	assert.Equal(t, historydb.ExitStateFinalized, row.State)

	withdrawals, err := historyDB.GetAllWithdrawals()
	require.NoError(t, err)
	require.Len(t, withdrawals, 1)
	assert.Equal(t, historydb.WithdrawalKindBalance, withdrawals[0].Kind)
	assert.Zero(t, withdrawn.Cmp(withdrawals[0].Amount))
}
