package historydb

import (
	"database/sql"

	"plasma-rootchain/common"
	"plasma-rootchain/database"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/jmoiron/sqlx"
	"github.com/russross/meddler"
)

// HistoryDB persist the historic of the root chain
type HistoryDB struct {
	dbRead     *sqlx.DB
	dbWrite    *sqlx.DB
	apiConnCon *database.APIConnectionController
}

// NewHistoryDB initialize the DB
func NewHistoryDB(dbRead, dbWrite *sqlx.DB, apiConnCon *database.APIConnectionController) *HistoryDB {
	return &HistoryDB{
		dbRead:     dbRead,
		dbWrite:    dbWrite,
		apiConnCon: apiConnCon,
	}
}

// DB returns a pointer to the D of the HistoryDB
func (hdb *HistoryDB) DB() *sqlx.DB {
	return hdb.dbWrite
}

// AddBlock insert a block into the DB
func (hdb *HistoryDB) AddBlock(block *common.Block) error { return hdb.addBlock(hdb.dbWrite, block) }
func (hdb *HistoryDB) addBlock(d meddler.DB, block *common.Block) error {
	return common.Wrap(meddler.Insert(d, "block", block))
}

// AddBlocks inserts many blocks into the DB
func (hdb *HistoryDB) AddBlocks(blocks []common.Block) error {
	return hdb.addBlocks(hdb.dbWrite, blocks)
}

func (hdb *HistoryDB) addBlocks(d meddler.DB, blocks []common.Block) error {
	if len(blocks) == 0 {
		return nil
	}
	return common.Wrap(database.BulkInsert(
		d,
		"INSERT INTO block (ledger_block_num, timestamp, hash) VALUES ",
		blocks,
	))
}

// GetBlock retrieve a block from the DB, given a block number
func (hdb *HistoryDB) GetBlock(blockNum int64) (*common.Block, error) {
	block := &common.Block{}
	err := meddler.QueryRow(
		hdb.dbRead, block,
		"SELECT * FROM block WHERE ledger_block_num = $1;", blockNum,
	)
	return block, common.Wrap(err)
}

// GetLastBlock retrieve the block with the highest block number from the DB
func (hdb *HistoryDB) GetLastBlock() (*common.Block, error) {
	block := &common.Block{}
	err := meddler.QueryRow(
		hdb.dbRead, block, "SELECT * FROM block ORDER BY ledger_block_num DESC LIMIT 1;",
	)
	return block, common.Wrap(err)
}

// GetAllBlocks retrieve all blocks from the DB
func (hdb *HistoryDB) GetAllBlocks() ([]common.Block, error) {
	var blocks []*common.Block
	err := meddler.QueryAll(
		hdb.dbRead, &blocks,
		"SELECT * FROM block ORDER BY ledger_block_num;",
	)
	return database.SlicePtrsToSlice(blocks).([]common.Block), common.Wrap(err)
}

// AddChildBlocks inserts committed child blocks into the DB
func (hdb *HistoryDB) AddChildBlocks(childBlocks []ChildBlockRow) error {
	return hdb.addChildBlocks(hdb.dbWrite, childBlocks)
}

func (hdb *HistoryDB) addChildBlocks(d meddler.DB, childBlocks []ChildBlockRow) error {
	if len(childBlocks) == 0 {
		return nil
	}
	return common.Wrap(database.BulkInsert(
		d,
		`INSERT INTO child_block (block_num, root, deposit, ledger_block_num, created_at)
		 VALUES `,
		childBlocks,
	))
}

// GetChildBlock retrieve a committed child block, given its child block number
func (hdb *HistoryDB) GetChildBlock(blockNum int64) (*ChildBlockRow, error) {
	row := &ChildBlockRow{}
	err := meddler.QueryRow(
		hdb.dbRead, row,
		"SELECT * FROM child_block WHERE block_num = $1;", blockNum,
	)
	return row, common.Wrap(err)
}

// GetLastChildBlock retrieve the child block with the highest block number
func (hdb *HistoryDB) GetLastChildBlock() (*ChildBlockRow, error) {
	row := &ChildBlockRow{}
	err := meddler.QueryRow(
		hdb.dbRead, row, "SELECT * FROM child_block ORDER BY block_num DESC LIMIT 1;",
	)
	return row, common.Wrap(err)
}

// GetAllChildBlocks retrieve all committed child blocks from the DB
func (hdb *HistoryDB) GetAllChildBlocks() ([]ChildBlockRow, error) {
	var rows []*ChildBlockRow
	err := meddler.QueryAll(
		hdb.dbRead, &rows,
		"SELECT * FROM child_block ORDER BY block_num;",
	)
	return database.SlicePtrsToSlice(rows).([]ChildBlockRow), common.Wrap(err)
}

// AddDeposits inserts tracked deposits into the DB
func (hdb *HistoryDB) AddDeposits(deposits []DepositRow) error {
	return hdb.addDeposits(hdb.dbWrite, deposits)
}

func (hdb *HistoryDB) addDeposits(d meddler.DB, deposits []DepositRow) error {
	if len(deposits) == 0 {
		return nil
	}
	return common.Wrap(database.BulkInsert(
		d,
		`INSERT INTO deposit (digest, owner, amount, nonce, state, ledger_block_num)
		 VALUES `,
		deposits,
	))
}

// GetDeposit retrieve a tracked deposit, given the digest of its record
func (hdb *HistoryDB) GetDeposit(digest ethCommon.Hash) (*DepositRow, error) {
	row := &DepositRow{}
	err := meddler.QueryRow(
		hdb.dbRead, row,
		"SELECT * FROM deposit WHERE digest = $1;", digest,
	)
	return row, common.Wrap(err)
}

// GetDepositsByState retrieve all tracked deposits in the given state
func (hdb *HistoryDB) GetDepositsByState(state DepositState) ([]DepositRow, error) {
	var rows []*DepositRow
	err := meddler.QueryAll(
		hdb.dbRead, &rows,
		"SELECT * FROM deposit WHERE state = $1 ORDER BY nonce;", state,
	)
	return database.SlicePtrsToSlice(rows).([]DepositRow), common.Wrap(err)
}

// SetDepositState moves a tracked deposit to the given lifecycle state
func (hdb *HistoryDB) SetDepositState(digest ethCommon.Hash, state DepositState) error {
	res, err := hdb.dbWrite.Exec(
		"UPDATE deposit SET state = $1 WHERE digest = $2;", state, digest,
	)
	if err != nil {
		return common.Wrap(err)
	}
	return rowUpdated(res)
}

// AddExits inserts tracked exits into the DB
func (hdb *HistoryDB) AddExits(exits []ExitRow) error {
	return hdb.addExits(hdb.dbWrite, exits)
}

func (hdb *HistoryDB) addExits(d meddler.DB, exits []ExitRow) error {
	if len(exits) == 0 {
		return nil
	}
	return common.Wrap(database.BulkInsert(
		d,
		`INSERT INTO exit (priority, owner, amount, blk_num, tx_index, o_index,
		 state, challenger, ledger_block_num, created_at) VALUES `,
		exits,
	))
}

// GetExit retrieve a tracked exit, given its priority
func (hdb *HistoryDB) GetExit(priority int64) (*ExitRow, error) {
	row := &ExitRow{}
	err := meddler.QueryRow(
		hdb.dbRead, row,
		"SELECT * FROM exit WHERE priority = $1;", priority,
	)
	return row, common.Wrap(err)
}

// GetExitsByState retrieve all tracked exits in the given state, lowest
// priority first
func (hdb *HistoryDB) GetExitsByState(state ExitState) ([]ExitRow, error) {
	var rows []*ExitRow
	err := meddler.QueryAll(
		hdb.dbRead, &rows,
		"SELECT * FROM exit WHERE state = $1 ORDER BY priority;", state,
	)
	return database.SlicePtrsToSlice(rows).([]ExitRow), common.Wrap(err)
}

// SetExitChallenged marks a tracked exit as deleted by a challenge and
// records the challenger that earned the bond
func (hdb *HistoryDB) SetExitChallenged(priority int64, challenger ethCommon.Address) error {
	res, err := hdb.dbWrite.Exec(
		"UPDATE exit SET state = $1, challenger = $2 WHERE priority = $3;",
		ExitStateChallenged, challenger, priority,
	)
	if err != nil {
		return common.Wrap(err)
	}
	return rowUpdated(res)
}

// SetExitFinalized marks a tracked exit as credited to its owner
func (hdb *HistoryDB) SetExitFinalized(priority int64) error {
	res, err := hdb.dbWrite.Exec(
		"UPDATE exit SET state = $1 WHERE priority = $2;",
		ExitStateFinalized, priority,
	)
	if err != nil {
		return common.Wrap(err)
	}
	return rowUpdated(res)
}

// rowUpdated turns an update that matched no row into sql.ErrNoRows
func rowUpdated(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return common.Wrap(err)
	}
	if n == 0 {
		return common.Wrap(sql.ErrNoRows)
	}
	return nil
}

// AddWithdrawals inserts payout records into the DB
func (hdb *HistoryDB) AddWithdrawals(withdrawals []WithdrawalRow) error {
	for i := range withdrawals {
		if err := meddler.Insert(hdb.dbWrite, "withdrawal", &withdrawals[i]); err != nil {
			return common.Wrap(err)
		}
	}
	return nil
}

// GetAllWithdrawals retrieve all payout records from the DB in insertion order
func (hdb *HistoryDB) GetAllWithdrawals() ([]WithdrawalRow, error) {
	var rows []*WithdrawalRow
	err := meddler.QueryAll(
		hdb.dbRead, &rows,
		"SELECT * FROM withdrawal ORDER BY item_id;",
	)
	return database.SlicePtrsToSlice(rows).([]WithdrawalRow), common.Wrap(err)
}
