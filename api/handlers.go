package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"plasma-rootchain/common"
	"plasma-rootchain/database/historydb"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

type errorMsg struct {
	Message string
}

func retBadReq(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorMsg{Message: err.Error()})
}

func retSQLErr(c *gin.Context, err error) {
	unwrapped := common.Unwrap(err)
	if errors.Is(unwrapped, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, errorMsg{Message: "resource not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, errorMsg{Message: unwrapped.Error()})
}

func (a *API) noRoute(c *gin.Context) {
	c.JSON(http.StatusNotFound, errorMsg{Message: "endpoint not found"})
}

func (a *API) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "UP",
		"version":   a.version,
		"timestamp": time.Now().UTC(),
	})
}

func (a *API) getChildBlocks(c *gin.Context) {
	rows, err := a.historyDB.GetAllChildBlocksAPI()
	if err != nil {
		retSQLErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocks": rows})
}

func (a *API) getChildBlock(c *gin.Context) {
	blockNum, err := strconv.ParseInt(c.Param("blockNum"), 10, 64)
	if err != nil {
		retBadReq(c, fmt.Errorf("invalid blockNum: %w", err))
		return
	}
	row, err := a.historyDB.GetChildBlockAPI(blockNum)
	if err != nil {
		retSQLErr(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func parseDepositState(raw string) (historydb.DepositState, error) {
	switch raw {
	case "":
		return historydb.DepositStatePending, nil
	case string(historydb.DepositStatePending),
		string(historydb.DepositStateFlushed),
		string(historydb.DepositStateWithdrawn):
		return historydb.DepositState(raw), nil
	}
	return "", fmt.Errorf("invalid deposit state \"%v\"", raw)
}

func (a *API) getDeposits(c *gin.Context) {
	state, err := parseDepositState(c.Query("state"))
	if err != nil {
		retBadReq(c, err)
		return
	}
	rows, err := a.historyDB.GetDepositsByStateAPI(state)
	if err != nil {
		retSQLErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deposits": rows})
}

func (a *API) getDeposit(c *gin.Context) {
	raw := c.Param("digest")
	if len(raw) != 2+2*ethCommon.HashLength || raw[:2] != "0x" {
		retBadReq(c, fmt.Errorf("invalid digest \"%v\"", raw))
		return
	}
	row, err := a.historyDB.GetDepositAPI(ethCommon.HexToHash(raw))
	if err != nil {
		retSQLErr(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func parseExitState(raw string) (historydb.ExitState, error) {
	switch raw {
	case "":
		return historydb.ExitStatePending, nil
	case string(historydb.ExitStatePending),
		string(historydb.ExitStateChallenged),
		string(historydb.ExitStateFinalized):
		return historydb.ExitState(raw), nil
	}
	return "", fmt.Errorf("invalid exit state \"%v\"", raw)
}

func (a *API) getExits(c *gin.Context) {
	state, err := parseExitState(c.Query("state"))
	if err != nil {
		retBadReq(c, err)
		return
	}
	rows, err := a.historyDB.GetExitsByStateAPI(state)
	if err != nil {
		retSQLErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exits": rows})
}

func (a *API) getExit(c *gin.Context) {
	priority, err := strconv.ParseInt(c.Param("priority"), 10, 64)
	if err != nil {
		retBadReq(c, fmt.Errorf("invalid priority: %w", err))
		return
	}
	row, err := a.historyDB.GetExitAPI(priority)
	if err != nil {
		retSQLErr(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (a *API) getWithdrawals(c *gin.Context) {
	rows, err := a.historyDB.GetAllWithdrawalsAPI()
	if err != nil {
		retSQLErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": rows})
}

func (a *API) getBalance(c *gin.Context) {
	raw := c.Param("address")
	if !ethCommon.IsHexAddress(raw) {
		retBadReq(c, fmt.Errorf("invalid address \"%v\"", raw))
		return
	}
	addr := ethCommon.HexToAddress(raw)
	c.JSON(http.StatusOK, gin.H{
		"address": addr,
		"balance": a.rootChain.GetBalance(addr).String(),
	})
}

func (a *API) getState(c *gin.Context) {
	state := gin.H{
		"currentChildBlock":  a.rootChain.CurrentChildBlock(),
		"depositNonce":       a.rootChain.DepositNonce(),
		"pendingDeposits":    a.rootChain.NumPendingDeposits(),
		"lastSubmittedBlock": a.rootChain.LastParentBlock(),
		"authority":          a.rootChain.Authority(),
	}
	if a.stats != nil {
		state["sync"] = a.stats.Stats()
	}
	c.JSON(http.StatusOK, state)
}
