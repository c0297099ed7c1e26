/*
SPDX-License-Identifier: Apache-2.0
*/

package node

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tm-db"

	"github.com/nandlab/fabric-dutch-auction/internal/engine"
	"github.com/nandlab/fabric-dutch-auction/internal/log"
)

const (
	organizer = "organizer"
	seller    = "seller"
	buyer     = "buyer"
	escrow    = "dutch-auction-escrow"

	week = uint64(7 * 24 * 60 * 60)
)

var testGenesis = []byte(`
token:
  name: TestToken
  symbol: TTK
  supply: 1000000
balances:
  buyer: 10000
allowances:
  - owner: buyer
    spender: dutch-auction-escrow
    amount: 10000
assets:
  - id: "1"
    owner: seller
    approved: dutch-auction-escrow
`)

type testNode struct {
	*Node
	db  dbm.DB
	now time.Time
}

func newTestNode(t *testing.T, genesis []byte) *testNode {
	t.Helper()
	doc, err := GenesisDocFromYAML(genesis)
	require.NoError(t, err)

	tn := &testNode{db: dbm.NewMemDB(), now: time.Unix(1_700_000_000, 0)}
	tn.Node, err = New(tn.db, engine.Config{EscrowAccount: escrow, Organizer: organizer}, doc,
		WithClock(func() time.Time { return tn.now }),
		WithLogger(log.TestingLogger()),
	)
	require.NoError(t, err)
	return tn
}

// dump returns every key and value in the database
func dump(t *testing.T, db dbm.DB) map[string]string {
	t.Helper()
	it, err := db.Iterator(nil, nil)
	require.NoError(t, err)
	defer it.Close()
	out := make(map[string]string)
	for ; it.Valid(); it.Next() {
		out[string(it.Key())] = string(it.Value())
	}
	require.NoError(t, it.Error())
	return out
}

func TestGenesis(t *testing.T) {
	n := newTestNode(t, testGenesis)

	acc, err := n.Account(buyer)
	require.NoError(t, err)
	assert.Equal(t, &Account{Account: buyer, Balance: 10_000}, acc)

	acc, err = n.Account(organizer)
	require.NoError(t, err)
	assert.EqualValues(t, 1_000_000-10_000, acc.Balance)

	allowance, err := n.Allowance(buyer, escrow)
	require.NoError(t, err)
	assert.EqualValues(t, 10_000, allowance)

	asset, err := n.Asset("1")
	require.NoError(t, err)
	assert.Equal(t, seller, asset.Owner)
	assert.Equal(t, escrow, asset.Approved)

	meta, err := n.Token()
	require.NoError(t, err)
	assert.Equal(t, "TTK", meta.Symbol)
	assert.Equal(t, organizer, meta.Owner)
}

func TestGenesisSkippedOnExistingState(t *testing.T) {
	n := newTestNode(t, testGenesis)
	require.NoError(t, n.Transfer(buyer, seller, 100))

	doc, err := GenesisDocFromYAML(testGenesis)
	require.NoError(t, err)
	reopened, err := New(n.db, engine.Config{EscrowAccount: escrow, Organizer: organizer}, doc)
	require.NoError(t, err)

	acc, err := reopened.Account(buyer)
	require.NoError(t, err)
	assert.EqualValues(t, 10_000-100, acc.Balance)
}

func TestInvalidGenesis(t *testing.T) {
	testCases := map[string]string{
		"no symbol":       "token: {name: T, supply: 10}",
		"over supply":     "token: {symbol: T, supply: 10}\nbalances: {a: 11}",
		"asset no owner":  "token: {symbol: T, supply: 10}\nassets: [{id: '1'}]",
		"duplicate asset": "token: {symbol: T, supply: 10}\nassets: [{id: '1', owner: a}, {id: '1', owner: b}]",
		"malformed yaml":  "token: [",
	}
	for name, doc := range testCases {
		_, err := GenesisDocFromYAML([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestAuctionLifecycle(t *testing.T) {
	n := newTestNode(t, testGenesis)
	subID, receipts := n.Subscribe(1)
	defer n.Unsubscribe(subID)

	auction, err := n.RegisterAuction(seller, "1", 100, 10, week)
	require.NoError(t, err)

	active, err := n.ActiveAuctionFor("1")
	require.NoError(t, err)
	assert.Equal(t, auction, active)

	n.now = n.now.Add(time.Duration(week/2) * time.Second)
	price, err := n.CurrentPrice(auction.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 55, price)

	receipt, err := n.Settle(auction.ID, buyer)
	require.NoError(t, err)
	assert.EqualValues(t, 55, receipt.PricePaid)

	select {
	case published := <-receipts:
		assert.Equal(t, *receipt, published)
	default:
		t.Fatal("receipt was not published")
	}

	stored, err := n.Receipt(auction.ID)
	require.NoError(t, err)
	assert.Equal(t, receipt, stored)

	acc, err := n.Account(seller)
	require.NoError(t, err)
	assert.EqualValues(t, 55, acc.Balance)
}

func TestFailedOperationLeavesDatabaseUnchanged(t *testing.T) {
	n := newTestNode(t, testGenesis)
	auction, err := n.RegisterAuction(seller, "1", 100, 10, week)
	require.NoError(t, err)
	require.NoError(t, n.Freeze(organizer, seller))

	before := dump(t, n.db)
	_, err = n.Settle(auction.ID, buyer)
	require.ErrorIs(t, err, engine.ErrTransferBlocked)
	assert.Equal(t, before, dump(t, n.db))

	_, err = n.Cancel(auction.ID, buyer)
	require.ErrorIs(t, err, engine.ErrNotAuthorized)
	assert.Equal(t, before, dump(t, n.db))

	_, err = n.CurrentPrice(auction.ID)
	require.NoError(t, err)
	assert.Equal(t, before, dump(t, n.db))
}

func TestConcurrentSettleHasOneWinner(t *testing.T) {
	const buyers = 8
	genesis := "token: {name: TestToken, symbol: TTK, supply: 1000000}\nbalances:\n"
	allowances := "allowances:\n"
	for i := 0; i < buyers; i++ {
		genesis += fmt.Sprintf("  buyer%d: 1000\n", i)
		allowances += fmt.Sprintf("  - {owner: buyer%d, spender: %s, amount: 1000}\n", i, escrow)
	}
	genesis += allowances + "assets:\n  - {id: '1', owner: seller, approved: " + escrow + "}\n"
	n := newTestNode(t, []byte(genesis))

	auction, err := n.RegisterAuction(seller, "1", 100, 10, week)
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		errs = make([]error, buyers)
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = n.Settle(auction.ID, fmt.Sprintf("buyer%d", i))
		}(i)
	}
	wg.Wait()

	winners := 0
	var spent uint64
	for i, err := range errs {
		acc, accErr := n.Account(fmt.Sprintf("buyer%d", i))
		require.NoError(t, accErr)
		spent += 1000 - acc.Balance
		if err == nil {
			winners++
			continue
		}
		require.ErrorIs(t, err, engine.ErrAuctionNotActive)
	}
	assert.Equal(t, 1, winners)
	assert.EqualValues(t, 100, spent)

	acc, err := n.Account(seller)
	require.NoError(t, err)
	assert.EqualValues(t, 100, acc.Balance)
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	n := newTestNode(t, testGenesis)
	require.NoError(t, n.MintAsset(seller, "2"))
	require.NoError(t, n.ApproveAsset(seller, escrow, "2"))
	_, receipts := n.Subscribe(1)

	for _, assetID := range []string{"1", "2"} {
		auction, err := n.RegisterAuction(seller, assetID, 100, 10, week)
		require.NoError(t, err)
		_, err = n.Settle(auction.ID, buyer)
		require.NoError(t, err)
	}

	_, ok := <-receipts
	assert.True(t, ok)
	_, ok = <-receipts
	assert.False(t, ok, "channel should be closed after overflow")
}

func TestAssetOperations(t *testing.T) {
	n := newTestNode(t, testGenesis)

	require.NoError(t, n.MintAsset(seller, "7"))
	require.Error(t, n.MintAsset(buyer, "7"))
	require.Error(t, n.TransferAsset(buyer, seller, buyer, "7"))
	require.NoError(t, n.TransferAsset(seller, seller, buyer, "7"))
	require.NoError(t, n.BurnAsset(buyer, "7"))

	_, err := n.Asset("7")
	require.Error(t, err)
}

func TestEscrowHoldingsOnlyMoveThroughAuctions(t *testing.T) {
	n := newTestNode(t, testGenesis)
	auction, err := n.RegisterAuction(seller, "1", 100, 10, week)
	require.NoError(t, err)
	before := dump(t, n.db)

	cases := []struct {
		name string
		op   func() error
	}{
		{"transfer listed asset", func() error { return n.TransferAsset(escrow, escrow, "thief", "1") }},
		{"approve listed asset", func() error { return n.ApproveAsset(escrow, "thief", "1") }},
		{"burn listed asset", func() error { return n.BurnAsset(escrow, "1") }},
		{"transfer asset into escrow", func() error { return n.TransferAsset(seller, seller, escrow, "1") }},
		{"mint asset to escrow", func() error { return n.MintAsset(escrow, "9") }},
		{"transfer from escrow", func() error { return n.Transfer(escrow, buyer, 1) }},
		{"transfer to escrow", func() error { return n.Transfer(buyer, escrow, 1) }},
		{"approve from escrow", func() error { return n.Approve(escrow, "thief", 1) }},
		{"mint to escrow", func() error { return n.Mint(organizer, escrow, 1) }},
		{"freeze as escrow", func() error { return n.Freeze(escrow, buyer) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.op()
			require.ErrorIs(t, err, engine.ErrInvalidCaller)
			assert.Equal(t, engine.ValidationError, engine.KindOf(err))
		})
	}
	assert.Equal(t, before, dump(t, n.db))

	active, err := n.Auction(auction.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.Active, active.State)

	_, err = n.Settle(auction.ID, buyer)
	require.NoError(t, err)
	asset, err := n.Asset("1")
	require.NoError(t, err)
	assert.Equal(t, buyer, asset.Owner)
}

func TestClose(t *testing.T) {
	n := newTestNode(t, testGenesis)
	_, receipts := n.Subscribe(1)
	require.NoError(t, n.Close())
	_, ok := <-receipts
	assert.False(t, ok)
}
