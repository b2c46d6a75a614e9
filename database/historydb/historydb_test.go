package historydb

import (
	"database/sql"
	"errors"
	"math/big"
	"os"
	"testing"
	"time"

	"plasma-rootchain/common"
	"plasma-rootchain/database"
	"plasma-rootchain/log"

	ethCommon "github.com/ethereum/go-ethereum/common"
	ethCrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var historyDB *HistoryDB
var historyDBWithACC *HistoryDB

// WipeDB redo all the migrations of the SQL DB, efectively recreating the
// original state
func WipeDB(db *sqlx.DB) {
	if err := database.MigrationsDown(db.DB, 0); err != nil {
		panic(err)
	}
	if err := database.MigrationsUp(db.DB); err != nil {
		panic(err)
	}
}

func TestMain(m *testing.M) {
	// init DB
	db, err := database.InitTestSQLDB()
	if err != nil {
		panic(err)
	}
	historyDB = NewHistoryDB(db, db, nil)
	apiConnCon := database.NewAPIConnectionController(1, time.Second)
	historyDBWithACC = NewHistoryDB(db, db, apiConnCon)

	// Run tests
	result := m.Run()
	// Close DB
	if err := db.Close(); err != nil {
		log.Error("Error closing the history DB: ", err)
	}
	os.Exit(result)
}

func addTestBlocks(t *testing.T, fromBlock, toBlock int64) []common.Block {
	t.Helper()
	var blocks []common.Block
	for i := fromBlock; i < toBlock; i++ {
		var hash ethCommon.Hash
		hash[0] = byte(i)
		blocks = append(blocks, common.Block{
			Num:       i,
			Timestamp: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * 15 * time.Second),
			Hash:      hash,
		})
	}
	require.NoError(t, historyDB.AddBlocks(blocks))
	return blocks
}

func TestBlocks(t *testing.T) {
	WipeDB(historyDB.DB())

	blocks := addTestBlocks(t, 0, 7)

	last, err := historyDB.GetLastBlock()
	require.NoError(t, err)
	assert.Equal(t, int64(6), last.Num)

	block, err := historyDB.GetBlock(3)
	require.NoError(t, err)
	assert.Equal(t, blocks[3].Num, block.Num)
	assert.Equal(t, blocks[3].Hash, block.Hash)
	assert.Equal(t, blocks[3].Timestamp.Unix(), block.Timestamp.Unix())

	all, err := historyDB.GetAllBlocks()
	require.NoError(t, err)
	assert.Len(t, all, 7)

	_, err = historyDB.GetBlock(42)
	require.Error(t, err)
	assert.True(t, errors.Is(common.Unwrap(err), sql.ErrNoRows))
}

func TestChildBlocks(t *testing.T) {
	WipeDB(historyDB.DB())
	addTestBlocks(t, 0, 3)

	rows := []ChildBlockRow{
		{
			BlockNum:       1000,
			Root:           ethCrypto.Keccak256Hash([]byte("d1")),
			Deposit:        true,
			LedgerBlockNum: 1,
			CreatedAt:      time.Date(2026, 8, 1, 0, 0, 15, 0, time.UTC),
		},
		{
			BlockNum:       2000,
			Root:           ethCrypto.Keccak256Hash([]byte("r1")),
			LedgerBlockNum: 1,
			CreatedAt:      time.Date(2026, 8, 1, 0, 0, 15, 0, time.UTC),
		},
	}
	require.NoError(t, historyDB.AddChildBlocks(rows))

	got, err := historyDB.GetChildBlock(1000)
	require.NoError(t, err)
	assert.Equal(t, rows[0].Root, got.Root)
	assert.True(t, got.Deposit)

	last, err := historyDB.GetLastChildBlock()
	require.NoError(t, err)
	assert.Equal(t, int64(2000), last.BlockNum)
	assert.False(t, last.Deposit)

	all, err := historyDB.GetAllChildBlocks()
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, int64(1000), all[0].BlockNum)
}

func TestDeposits(t *testing.T) {
	WipeDB(historyDB.DB())
	addTestBlocks(t, 0, 2)

	digest := ethCrypto.Keccak256Hash([]byte("dep"))
	rows := []DepositRow{{
		Digest:         digest,
		Owner:          ethCommon.HexToAddress("0x1111111111111111111111111111111111111111"),
		Amount:         big.NewInt(5000),
		Nonce:          1,
		State:          DepositStatePending,
		LedgerBlockNum: 1,
	}}
	require.NoError(t, historyDB.AddDeposits(rows))

	got, err := historyDB.GetDeposit(digest)
	require.NoError(t, err)
	assert.Equal(t, DepositStatePending, got.State)
	assert.Zero(t, big.NewInt(5000).Cmp(got.Amount))

	pending, err := historyDB.GetDepositsByState(DepositStatePending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, historyDB.SetDepositState(digest, DepositStateFlushed))
	got, err = historyDB.GetDeposit(digest)
	require.NoError(t, err)
	assert.Equal(t, DepositStateFlushed, got.State)

	pending, err = historyDB.GetDepositsByState(DepositStatePending)
	require.NoError(t, err)
	assert.Len(t, pending, 0)

	// updating an untracked deposit reports no rows
	err = historyDB.SetDepositState(ethCrypto.Keccak256Hash([]byte("other")), DepositStateWithdrawn)
	require.Error(t, err)
	assert.True(t, errors.Is(common.Unwrap(err), sql.ErrNoRows))
}

func TestExits(t *testing.T) {
	WipeDB(historyDB.DB())
	addTestBlocks(t, 0, 2)

	owner := ethCommon.HexToAddress("0x2222222222222222222222222222222222222222")
	challenger := ethCommon.HexToAddress("0x3333333333333333333333333333333333333333")
	pos := common.NewPosition(1000, 0, 0)
	rows := []ExitRow{
		{
			Priority:       int64(pos.Priority()),
			Owner:          owner,
			Amount:         big.NewInt(5000),
			BlkNum:         1000,
			State:          ExitStatePending,
			LedgerBlockNum: 1,
			CreatedAt:      time.Date(2026, 8, 1, 0, 0, 15, 0, time.UTC),
		},
		{
			Priority:       int64(common.NewPosition(2000, 0, 0).Priority()),
			Owner:          owner,
			Amount:         big.NewInt(7000),
			BlkNum:         2000,
			State:          ExitStatePending,
			LedgerBlockNum: 1,
			CreatedAt:      time.Date(2026, 8, 1, 0, 0, 15, 0, time.UTC),
		},
	}
	require.NoError(t, historyDB.AddExits(rows))

	got, err := historyDB.GetExit(rows[0].Priority)
	require.NoError(t, err)
	assert.Equal(t, owner, got.Owner)
	assert.Equal(t, pos, got.Position())
	assert.Equal(t, ethCommon.Address{}, got.Challenger)

	require.NoError(t, historyDB.SetExitChallenged(rows[0].Priority, challenger))
	got, err = historyDB.GetExit(rows[0].Priority)
	require.NoError(t, err)
	assert.Equal(t, ExitStateChallenged, got.State)
	assert.Equal(t, challenger, got.Challenger)

	require.NoError(t, historyDB.SetExitFinalized(rows[1].Priority))

	pendingExits, err := historyDB.GetExitsByState(ExitStatePending)
	require.NoError(t, err)
	assert.Len(t, pendingExits, 0)
	finalized, err := historyDB.GetExitsByState(ExitStateFinalized)
	require.NoError(t, err)
	require.Len(t, finalized, 1)
	assert.Equal(t, rows[1].Priority, finalized[0].Priority)
}

func TestWithdrawals(t *testing.T) {
	WipeDB(historyDB.DB())
	addTestBlocks(t, 0, 2)

	owner := ethCommon.HexToAddress("0x4444444444444444444444444444444444444444")
	rows := []WithdrawalRow{
		{Owner: owner, Amount: big.NewInt(15000), Kind: WithdrawalKindBalance, LedgerBlockNum: 1},
		{Owner: owner, Amount: big.NewInt(5000), Kind: WithdrawalKindDeposit, LedgerBlockNum: 1},
	}
	require.NoError(t, historyDB.AddWithdrawals(rows))

	all, err := historyDB.GetAllWithdrawals()
	require.NoError(t, err)
	require.Len(t, all, 2)
	// serial ids follow insertion order
	assert.Less(t, all[0].ItemID, all[1].ItemID)
	assert.Equal(t, WithdrawalKindBalance, all[0].Kind)
	assert.Zero(t, big.NewInt(5000).Cmp(all[1].Amount))
}

func TestAPIQueries(t *testing.T) {
	WipeDB(historyDB.DB())
	addTestBlocks(t, 0, 2)

	require.NoError(t, historyDB.AddChildBlocks([]ChildBlockRow{{
		BlockNum:       1000,
		Root:           ethCrypto.Keccak256Hash([]byte("r")),
		LedgerBlockNum: 1,
		CreatedAt:      time.Date(2026, 8, 1, 0, 0, 15, 0, time.UTC),
	}}))

	got, err := historyDBWithACC.GetChildBlockAPI(1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.BlockNum)

	all, err := historyDBWithACC.GetAllChildBlocksAPI()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
