package historydb

import (
	"plasma-rootchain/common"

	ethCommon "github.com/ethereum/go-ethereum/common"
)

// The API queries take a slot from the connection controller so that API
// traffic cannot starve the synchronizer writes.

// GetChildBlockAPI retrieve a committed child block for the API
func (hdb *HistoryDB) GetChildBlockAPI(blockNum int64) (*ChildBlockRow, error) {
	cancel, err := hdb.apiConnCon.Acquire()
	defer cancel()
	if err != nil {
		return nil, common.Wrap(err)
	}
	defer hdb.apiConnCon.Release()
	return hdb.GetChildBlock(blockNum)
}

// GetAllChildBlocksAPI retrieve all committed child blocks for the API
func (hdb *HistoryDB) GetAllChildBlocksAPI() ([]ChildBlockRow, error) {
	cancel, err := hdb.apiConnCon.Acquire()
	defer cancel()
	if err != nil {
		return nil, common.Wrap(err)
	}
	defer hdb.apiConnCon.Release()
	return hdb.GetAllChildBlocks()
}

// GetDepositAPI retrieve a tracked deposit for the API
func (hdb *HistoryDB) GetDepositAPI(digest ethCommon.Hash) (*DepositRow, error) {
	cancel, err := hdb.apiConnCon.Acquire()
	defer cancel()
	if err != nil {
		return nil, common.Wrap(err)
	}
	defer hdb.apiConnCon.Release()
	return hdb.GetDeposit(digest)
}

// GetDepositsByStateAPI retrieve tracked deposits in a state for the API
func (hdb *HistoryDB) GetDepositsByStateAPI(state DepositState) ([]DepositRow, error) {
	cancel, err := hdb.apiConnCon.Acquire()
	defer cancel()
	if err != nil {
		return nil, common.Wrap(err)
	}
	defer hdb.apiConnCon.Release()
	return hdb.GetDepositsByState(state)
}

// GetExitAPI retrieve a tracked exit for the API
func (hdb *HistoryDB) GetExitAPI(priority int64) (*ExitRow, error) {
	cancel, err := hdb.apiConnCon.Acquire()
	defer cancel()
	if err != nil {
		return nil, common.Wrap(err)
	}
	defer hdb.apiConnCon.Release()
	return hdb.GetExit(priority)
}

// GetExitsByStateAPI retrieve tracked exits in a state for the API
func (hdb *HistoryDB) GetExitsByStateAPI(state ExitState) ([]ExitRow, error) {
	cancel, err := hdb.apiConnCon.Acquire()
	defer cancel()
	if err != nil {
		return nil, common.Wrap(err)
	}
	defer hdb.apiConnCon.Release()
	return hdb.GetExitsByState(state)
}

// GetAllWithdrawalsAPI retrieve all payout records for the API
func (hdb *HistoryDB) GetAllWithdrawalsAPI() ([]WithdrawalRow, error) {
	cancel, err := hdb.apiConnCon.Acquire()
	defer cancel()
	if err != nil {
		return nil, common.Wrap(err)
	}
	defer hdb.apiConnCon.Release()
	return hdb.GetAllWithdrawals()
}
