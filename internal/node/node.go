/*
SPDX-License-Identifier: Apache-2.0
*/

// Package node runs the auction engine outside Fabric, as a single process
// dev node over a tm-db world state.
package node

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	dbm "github.com/tendermint/tm-db"

	"github.com/nandlab/fabric-dutch-auction/internal/config"
	"github.com/nandlab/fabric-dutch-auction/internal/engine"
	"github.com/nandlab/fabric-dutch-auction/internal/ledger"
	"github.com/nandlab/fabric-dutch-auction/internal/log"
	"github.com/nandlab/fabric-dutch-auction/internal/registry"
	"github.com/nandlab/fabric-dutch-auction/internal/state"
)

const dbName = "auction"

// Node executes auction, token and asset operations one at a time. Each
// operation runs in its own journal and reaches the database only when it
// succeeds.
type Node struct {
	mtx    sync.Mutex
	db     dbm.DB
	store  state.DBStore
	engCfg engine.Config

	now     func() time.Time
	logger  log.Logger
	metrics *engine.Metrics

	subsMtx sync.Mutex
	subs    map[string]chan engine.Receipt
}

// Option sets an optional parameter on the Node.
type Option func(*Node)

func WithClock(now func() time.Time) Option {
	return func(n *Node) { n.now = now }
}

func WithLogger(logger log.Logger) Option {
	return func(n *Node) { n.logger = logger }
}

func WithMetrics(metrics *engine.Metrics) Option {
	return func(n *Node) { n.metrics = metrics }
}

// New returns a node over db. An empty database is initialized from
// genesis with engCfg.Organizer as the token owner.
func New(db dbm.DB, engCfg engine.Config, genesis *GenesisDoc, options ...Option) (*Node, error) {
	n := &Node{
		db:      db,
		store:   state.NewDBStore(db),
		engCfg:  engCfg,
		now:     time.Now,
		logger:  log.NewNopLogger(),
		metrics: engine.NopMetrics(),
		subs:    make(map[string]chan engine.Receipt),
	}
	for _, option := range options {
		option(n)
	}

	if err := n.initChain(genesis); err != nil {
		return nil, err
	}
	return n, nil
}

// OpenDB opens the database configured for the node.
func OpenDB(cfg *config.Config) (dbm.DB, error) {
	return dbm.NewDB(dbName, dbm.BackendType(cfg.DBBackend), cfg.DBDir())
}

// LoadGenesis reads the configured genesis file, falling back to the
// default document when there is none.
func LoadGenesis(cfg *config.Config) (*GenesisDoc, error) {
	path := cfg.GenesisFile()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultGenesisDoc(), nil
	}
	return GenesisDocFromFile(path)
}

func (n *Node) initChain(genesis *GenesisDoc) error {
	if genesis == nil {
		genesis = DefaultGenesisDoc()
	}
	_, err := n.execute("init chain", func(tx *Tx) error {
		if _, err := tx.Ledger.Metadata(); err == nil {
			return errAlreadyInitialized
		}
		return genesis.apply(tx.Ledger, tx.Registry, n.engCfg.Organizer)
	})
	if err == errAlreadyInitialized {
		n.logger.Info("found existing state, skipping genesis")
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not apply genesis: %w", err)
	}
	n.logger.Info("applied genesis", "token", genesis.Token.Symbol, "assets", len(genesis.Assets))
	return nil
}

var errAlreadyInitialized = fmt.Errorf("state already initialized")

// Close closes the database.
func (n *Node) Close() error {
	n.subsMtx.Lock()
	for id, ch := range n.subs {
		close(ch)
		delete(n.subs, id)
	}
	n.subsMtx.Unlock()
	return n.db.Close()
}

// Tx is the state one operation runs against.
type Tx struct {
	ID       string
	Ledger   *ledger.Ledger
	Registry *registry.Registry
	Engine   *engine.Engine

	journal *state.Journal
}

func (n *Node) newTx() *Tx {
	journal := state.NewJournal(n.store)
	tx := &Tx{
		ID:       uuid.NewString(),
		Ledger:   ledger.New(journal),
		Registry: registry.New(journal),
		journal:  journal,
	}
	tx.Engine = engine.New(journal, tx.Ledger, tx.Registry, n.engCfg,
		engine.WithClock(n.now),
		engine.WithLogger(n.logger.With("tx", tx.ID)),
		engine.WithMetrics(n.metrics),
	)
	return tx
}

// execute runs fn under the node lock and commits its writes if it succeeds.
func (n *Node) execute(op string, fn func(tx *Tx) error) (string, error) {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	tx := n.newTx()
	if err := fn(tx); err != nil {
		tx.journal.Discard()
		return tx.ID, err
	}
	if err := tx.journal.Commit(); err != nil {
		n.logger.Error("failed to commit", "op", op, "tx", tx.ID, "err", err)
		return tx.ID, fmt.Errorf("could not commit %s: %w", op, err)
	}
	n.logger.Debug("committed", "op", op, "tx", tx.ID)
	return tx.ID, nil
}

// query runs fn under the node lock and drops anything it wrote.
func (n *Node) query(fn func(tx *Tx) error) error {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	tx := n.newTx()
	defer tx.journal.Discard()
	return fn(tx)
}

// Subscribe returns a channel receiving every receipt committed from now
// on. A subscriber that falls capacity receipts behind is dropped and its
// channel closed.
func (n *Node) Subscribe(capacity int) (string, <-chan engine.Receipt) {
	id := uuid.NewString()
	ch := make(chan engine.Receipt, capacity)
	n.subsMtx.Lock()
	n.subs[id] = ch
	n.subsMtx.Unlock()
	return id, ch
}

// Unsubscribe closes the channel of a subscriber.
func (n *Node) Unsubscribe(id string) {
	n.subsMtx.Lock()
	defer n.subsMtx.Unlock()
	if ch, ok := n.subs[id]; ok {
		close(ch)
		delete(n.subs, id)
	}
}

func (n *Node) publish(receipt engine.Receipt) {
	n.subsMtx.Lock()
	defer n.subsMtx.Unlock()
	for id, ch := range n.subs {
		select {
		case ch <- receipt:
		default:
			n.logger.Error("dropping slow receipt subscriber", "subscriber", id)
			close(ch)
			delete(n.subs, id)
		}
	}
}
