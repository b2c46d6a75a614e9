package api

import (
	"errors"

	"plasma-rootchain/database/historydb"
	"plasma-rootchain/rootchain"
	"plasma-rootchain/synchronizer"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsGetter reports the synchronizer progress for the state endpoint
type StatsGetter interface {
	Stats() *synchronizer.Stats
}

// API serves HTTP requests to allow external interaction with the plasma node
type API struct {
	historyDB *historydb.HistoryDB
	rootChain *rootchain.RootChain
	stats     StatsGetter
	version   string
}

// Config wraps the parameters needed to start the API
type Config struct {
	Version           string
	ExplorerEndpoints bool
	Server            *gin.Engine
	HistoryDB         *historydb.HistoryDB
	RootChain         *rootchain.RootChain
	Stats             StatsGetter
}

// NewAPI sets the endpoints and the appropriate handlers, but doesn't start the server
func NewAPI(setup Config) (*API, error) {
	// Check input
	if setup.RootChain == nil {
		return nil, errors.New("cannot serve without a root chain")
	}
	if setup.ExplorerEndpoints && setup.HistoryDB == nil {
		return nil, errors.New("cannot serve Explorer endpoints without HistoryDB")
	}

	a := &API{
		historyDB: setup.HistoryDB,
		rootChain: setup.RootChain,
		stats:     setup.Stats,
		version:   setup.Version,
	}

	setup.Server.NoRoute(a.noRoute)

	v1 := setup.Server.Group("/v1")

	v1.GET("/health", a.getHealth)
	v1.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Explorer endpoints
	if setup.ExplorerEndpoints {
		v1.GET("/blocks", a.getChildBlocks)
		v1.GET("/blocks/:blockNum", a.getChildBlock)
		v1.GET("/deposits", a.getDeposits)
		v1.GET("/deposits/:digest", a.getDeposit)
		v1.GET("/exits", a.getExits)
		v1.GET("/exits/:priority", a.getExit)
		v1.GET("/withdrawals", a.getWithdrawals)
		v1.GET("/balances/:address", a.getBalance)
		v1.GET("/state", a.getState)
	}

	return a, nil
}
