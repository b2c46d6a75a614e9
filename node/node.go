/*
Package node does the initialization of all the required objects to run the
plasma node.

The Node contains several goroutines that run in the background or that
periodically perform tasks. One of these goroutines periodically calls the
`Synchronizer.Sync` function, persisting the root chain activity of one
ledger block at a time into the history DB. Another one runs the http API
server.
*/
package node

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"plasma-rootchain/api"
	"plasma-rootchain/common"
	"plasma-rootchain/config"
	"plasma-rootchain/database"
	"plasma-rootchain/database/historydb"
	"plasma-rootchain/ledger"
	"plasma-rootchain/log"
	"plasma-rootchain/rootchain"
	"plasma-rootchain/synchronizer"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

// Node is the plasma node
type Node struct {
	nodeAPI *NodeAPI
	sync    *synchronizer.Synchronizer

	ledger    *ledger.Ledger
	rootChain *rootchain.RootChain

	cfg          *config.Node
	sqlConnRead  *sqlx.DB
	sqlConnWrite *sqlx.DB
	historyDB    *historydb.HistoryDB
	ctx          context.Context
	wg           sync.WaitGroup
	cancel       context.CancelFunc
}

// NewNode creates a Node
func NewNode(cfg *config.Node, version string) (*Node, error) {
	dbWrite, err := database.InitSQLDB(
		cfg.PostgreSQL.PortWrite,
		cfg.PostgreSQL.HostWrite,
		cfg.PostgreSQL.UserWrite,
		cfg.PostgreSQL.PasswordWrite,
		cfg.PostgreSQL.NameWrite,
	)
	if err != nil {
		return nil, common.Wrap(fmt.Errorf("database.InitSQLDB: %w", err))
	}
	var dbRead *sqlx.DB
	if cfg.PostgreSQL.HostRead == "" {
		dbRead = dbWrite
	} else if cfg.PostgreSQL.HostRead == cfg.PostgreSQL.HostWrite {
		return nil, common.Wrap(fmt.Errorf(
			"PostgreSQL.HostRead and PostgreSQL.HostWrite must be different"))
	} else {
		dbRead, err = database.InitSQLDB(
			cfg.PostgreSQL.PortRead,
			cfg.PostgreSQL.HostRead,
			cfg.PostgreSQL.UserRead,
			cfg.PostgreSQL.PasswordRead,
			cfg.PostgreSQL.NameRead,
		)
		if err != nil {
			return nil, common.Wrap(fmt.Errorf("database.InitSQLDB: %w", err))
		}
	}
	apiConnCon := database.NewAPIConnectionController(
		cfg.API.MaxSQLConnections,
		cfg.API.SQLConnectionTimeout.Duration,
	)
	historyDB := historydb.NewHistoryDB(dbRead, dbWrite, apiConnCon)

	l := ledger.New(time.Unix(cfg.Ledger.GenesisTimestamp, 0), cfg.Ledger.BlockInterval.Duration)
	authority := ethCommon.HexToAddress(cfg.RootChain.Authority)
	rc := rootchain.New(l, authority)

	s, err := synchronizer.NewSynchronizer(rc, l, historyDB)
	if err != nil {
		return nil, common.Wrap(fmt.Errorf("synchronizer.NewSynchronizer: %w", err))
	}

	var nodeAPI *NodeAPI
	if cfg.API.Address != "" {
		server := gin.Default()
		if _, err := api.NewAPI(api.Config{
			Version:           version,
			ExplorerEndpoints: cfg.API.Explorer,
			Server:            server,
			HistoryDB:         historyDB,
			RootChain:         rc,
			Stats:             s,
		}); err != nil {
			return nil, common.Wrap(fmt.Errorf("api.NewAPI: %w", err))
		}
		nodeAPI = &NodeAPI{
			engine:       server,
			addr:         cfg.API.Address,
			readtimeout:  cfg.API.ReadTimeout.Duration,
			writetimeout: cfg.API.WriteTimeout.Duration,
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Node{
		nodeAPI:      nodeAPI,
		sync:         s,
		ledger:       l,
		rootChain:    rc,
		cfg:          cfg,
		sqlConnRead:  dbRead,
		sqlConnWrite: dbWrite,
		historyDB:    historyDB,
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// RootChain returns the root chain state machine hosted by the node
func (n *Node) RootChain() *rootchain.RootChain {
	return n.rootChain
}

// Start runs the synchronizer loop and the API server
func (n *Node) Start() {
	log.Infow("Starting node...")
	if n.nodeAPI != nil {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			if err := n.nodeAPI.Run(n.ctx); err != nil {
				log.Errorw("NodeAPI.Run", "err", err)
			}
		}()
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.syncLoop()
	}()
}

func (n *Node) syncLoop() {
	ticker := time.NewTicker(n.cfg.Synchronizer.SyncLoopInterval.Duration)
	defer ticker.Stop()
	for {
		select {
		case <-n.ctx.Done():
			log.Info("syncLoop done")
			return
		case <-ticker.C:
			if _, err := n.sync.Sync(n.ctx); err != nil {
				log.Errorw("Synchronizer.Sync", "err", err)
			}
		}
	}
}

// Stop the node
func (n *Node) Stop() {
	log.Infow("Stopping node...")
	n.cancel()
	n.wg.Wait()
	if err := n.sqlConnWrite.Close(); err != nil {
		log.Errorw("sqlConnWrite.Close", "err", err)
	}
	if n.sqlConnRead != n.sqlConnWrite {
		if err := n.sqlConnRead.Close(); err != nil {
			log.Errorw("sqlConnRead.Close", "err", err)
		}
	}
}

// NodeAPI holds the node http API
type NodeAPI struct { //nolint:golint
	engine       *gin.Engine
	addr         string
	readtimeout  time.Duration
	writetimeout time.Duration
}

// Run starts the http server of the NodeAPI. To stop it, cancel the context.
func (a *NodeAPI) Run(ctx context.Context) error {
	server := &http.Server{
		Handler:        a.engine,
		Addr:           a.addr,
		ReadTimeout:    a.readtimeout,
		WriteTimeout:   a.writetimeout,
		MaxHeaderBytes: 1 << 20,
	}
	go func() {
		log.Infof("NodeAPI is ready at %v", a.addr)
		if err := server.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			log.Fatalf("Listen: %s\n", err)
		}
	}()

	<-ctx.Done()
	log.Info("Stopping NodeAPI...")
	ctxTimeout, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxTimeout); err != nil {
		return common.Wrap(err)
	}
	log.Info("NodeAPI done")
	return nil
}
