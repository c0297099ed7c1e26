/*
SPDX-License-Identifier: Apache-2.0
*/

package auction

import (
	"crypto/x509"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/golang/protobuf/ptypes"
	"github.com/hyperledger/fabric-chaincode-go/shimtest"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric-protos-go/peer"
	"github.com/stretchr/testify/require"

	"github.com/nandlab/fabric-dutch-auction/internal/engine"
	"github.com/nandlab/fabric-dutch-auction/internal/log"
)

const (
	organizer = "x509::CN=organizer,OU=client::CN=ca.org1.example.com"
	seller    = "x509::CN=seller,OU=client::CN=ca.org1.example.com"
	buyer     = "x509::CN=buyer,OU=client::CN=ca.org1.example.com"
	stranger  = "x509::CN=stranger,OU=client::CN=ca.org1.example.com"

	week = uint64(7 * 24 * 60 * 60)
)

// fakeIdentity is a client identity with a fixed id
type fakeIdentity struct {
	id string
}

func (f fakeIdentity) GetID() (string, error) { return f.id, nil }
func (f fakeIdentity) GetMSPID() (string, error) { return "Org1MSP", nil }
func (f fakeIdentity) GetAttributeValue(string) (string, bool, error) { return "", false, nil }
func (f fakeIdentity) AssertAttributeValue(string, string) error { return nil }
func (f fakeIdentity) GetX509Certificate() (*x509.Certificate, error) {
	return nil, fmt.Errorf("no certificate")
}

// network submits transactions to the contract on a mock peer
type network struct {
	t        *testing.T
	stub     *shimtest.MockStub
	contract *SmartContract
	now      time.Time
	txCount  int
}

func newNetwork(t *testing.T) *network {
	return &network{
		t:        t,
		stub:     shimtest.NewMockStub("dutch-auction", nil),
		contract: NewSmartContract(log.TestingLogger()),
		now:      time.Unix(1_700_000_000, 0),
	}
}

// submit runs fn as one transaction of the given client
func (n *network) submit(clientID string, fn func(ctx contractapi.TransactionContextInterface) error) error {
	n.t.Helper()
	n.txCount++
	txID := fmt.Sprintf("tx%d", n.txCount)
	n.stub.MockTransactionStart(txID)
	defer n.stub.MockTransactionEnd(txID)

	txTimestamp, err := ptypes.TimestampProto(n.now)
	require.NoError(n.t, err)
	n.stub.TxTimestamp = txTimestamp

	ctx := new(contractapi.TransactionContext)
	ctx.SetStub(n.stub)
	ctx.SetClientIdentity(fakeIdentity{id: clientID})
	return fn(ctx)
}

// mustSubmit is submit for transactions expected to succeed
func (n *network) mustSubmit(clientID string, fn func(ctx contractapi.TransactionContextInterface) error) {
	n.t.Helper()
	require.NoError(n.t, n.submit(clientID, fn))
}

// lastEvent drains the event channel and returns the most recent event
func (n *network) lastEvent() *peer.ChaincodeEvent {
	var event *peer.ChaincodeEvent
	for {
		select {
		case event = <-n.stub.ChaincodeEventsChannel:
		default:
			return event
		}
	}
}

func (n *network) balanceOf(account string) uint64 {
	n.t.Helper()
	var balance uint64
	n.mustSubmit(stranger, func(ctx contractapi.TransactionContextInterface) (err error) {
		balance, err = n.contract.BalanceOf(ctx, account)
		return err
	})
	return balance
}

func (n *network) ownerOf(assetID string) string {
	n.t.Helper()
	var owner string
	n.mustSubmit(stranger, func(ctx contractapi.TransactionContextInterface) (err error) {
		owner, err = n.contract.OwnerOf(ctx, assetID)
		return err
	})
	return owner
}

// setup mirrors the deployment: the organizer creates the token and funds
// the buyer, the seller mints asset 1 and both approve the escrow account
func (n *network) setup() {
	c := n.contract
	n.mustSubmit(organizer, func(ctx contractapi.TransactionContextInterface) error {
		return c.InitLedger(ctx, "TestToken", "TTK", 1_000_000)
	})
	n.mustSubmit(organizer, func(ctx contractapi.TransactionContextInterface) error {
		return c.Transfer(ctx, buyer, 10_000)
	})
	n.mustSubmit(buyer, func(ctx contractapi.TransactionContextInterface) error {
		return c.Approve(ctx, EscrowAccountID, 10_000)
	})
	n.mustSubmit(seller, func(ctx contractapi.TransactionContextInterface) error {
		return c.MintAsset(ctx, "1")
	})
	n.mustSubmit(seller, func(ctx contractapi.TransactionContextInterface) error {
		return c.ApproveAsset(ctx, EscrowAccountID, "1")
	})
	n.lastEvent()
}

func (n *network) registerAuction() *AuctionSummary {
	n.t.Helper()
	var summary *AuctionSummary
	n.mustSubmit(seller, func(ctx contractapi.TransactionContextInterface) (err error) {
		summary, err = n.contract.RegisterAuction(ctx, "1", 100, 10, week)
		return err
	})
	return summary
}

func TestInitLedger(t *testing.T) {
	n := newNetwork(t)
	n.setup()

	require.EqualValues(t, 1_000_000-10_000, n.balanceOf(organizer))
	require.EqualValues(t, 10_000, n.balanceOf(buyer))

	err := n.submit(stranger, func(ctx contractapi.TransactionContextInterface) error {
		return n.contract.InitLedger(ctx, "Other", "OTH", 1)
	})
	require.ErrorContains(t, err, "already initialized")

	n.mustSubmit(stranger, func(ctx contractapi.TransactionContextInterface) error {
		meta, err := n.contract.TokenMetadata(ctx)
		require.NoError(t, err)
		require.Equal(t, "TTK", meta.Symbol)
		require.Equal(t, organizer, meta.Owner)
		return nil
	})
}

func TestRegisterAndSettle(t *testing.T) {
	n := newNetwork(t)
	n.setup()

	summary := n.registerAuction()
	require.Equal(t, "Active", summary.Status)
	require.Equal(t, n.now.Unix()+int64(week), summary.EndTime)
	require.Equal(t, EscrowAccountID, n.ownerOf("1"))

	event := n.lastEvent()
	require.NotNil(t, event)
	require.Equal(t, engine.EventAuctionRegistered, event.EventName)

	n.now = n.now.Add(time.Duration(week/2) * time.Second)
	n.mustSubmit(buyer, func(ctx contractapi.TransactionContextInterface) error {
		price, err := n.contract.CurrentPrice(ctx, summary.ID)
		require.NoError(t, err)
		require.EqualValues(t, 55, price)
		return nil
	})

	var receipt *engine.Receipt
	n.mustSubmit(buyer, func(ctx contractapi.TransactionContextInterface) (err error) {
		receipt, err = n.contract.Settle(ctx, summary.ID)
		return err
	})
	require.EqualValues(t, 55, receipt.PricePaid)
	require.Equal(t, buyer, receipt.Buyer)

	event = n.lastEvent()
	require.NotNil(t, event)
	require.Equal(t, engine.EventAuctionSettled, event.EventName)
	var emitted engine.Receipt
	require.NoError(t, json.Unmarshal(event.Payload, &emitted))
	require.Equal(t, *receipt, emitted)

	require.EqualValues(t, 55, n.balanceOf(seller))
	require.EqualValues(t, 10_000-55, n.balanceOf(buyer))
	require.Equal(t, buyer, n.ownerOf("1"))

	n.mustSubmit(stranger, func(ctx contractapi.TransactionContextInterface) error {
		settled, err := n.contract.ReadAuction(ctx, summary.ID)
		require.NoError(t, err)
		require.Equal(t, "Settled", settled.Status)
		require.Equal(t, &AuctionResult{Buyer: buyer, PricePaid: 55}, settled.Result)

		stored, err := n.contract.ReadReceipt(ctx, summary.ID)
		require.NoError(t, err)
		require.Equal(t, receipt, stored)
		return nil
	})

	err := n.submit(buyer, func(ctx contractapi.TransactionContextInterface) error {
		_, err := n.contract.Settle(ctx, summary.ID)
		return err
	})
	require.ErrorIs(t, err, engine.ErrAuctionNotActive)
}

func TestFailedSettleLeavesWorldStateUnchanged(t *testing.T) {
	n := newNetwork(t)
	n.setup()
	summary := n.registerAuction()
	n.mustSubmit(organizer, func(ctx contractapi.TransactionContextInterface) error {
		return n.contract.FreezeAccount(ctx, buyer)
	})
	n.lastEvent()

	before := make(map[string][]byte, len(n.stub.State))
	for k, v := range n.stub.State {
		before[k] = v
	}

	err := n.submit(buyer, func(ctx contractapi.TransactionContextInterface) error {
		_, err := n.contract.Settle(ctx, summary.ID)
		return err
	})
	require.ErrorIs(t, err, engine.ErrTransferBlocked)
	require.Equal(t, before, n.stub.State)
	require.Nil(t, n.lastEvent())

	n.mustSubmit(stranger, func(ctx contractapi.TransactionContextInterface) error {
		active, err := n.contract.ActiveAuctionFor(ctx, "1")
		require.NoError(t, err)
		require.Equal(t, summary.ID, active.ID)
		require.Nil(t, active.Result)
		return nil
	})
}

func TestCancel(t *testing.T) {
	n := newNetwork(t)
	n.setup()
	summary := n.registerAuction()
	n.lastEvent()

	err := n.submit(stranger, func(ctx contractapi.TransactionContextInterface) error {
		_, err := n.contract.Cancel(ctx, summary.ID)
		return err
	})
	require.ErrorIs(t, err, engine.ErrNotAuthorized)

	n.mustSubmit(organizer, func(ctx contractapi.TransactionContextInterface) error {
		cancelled, err := n.contract.Cancel(ctx, summary.ID)
		require.NoError(t, err)
		require.Equal(t, "Cancelled", cancelled.Status)
		return nil
	})
	event := n.lastEvent()
	require.NotNil(t, event)
	require.Equal(t, engine.EventAuctionCancelled, event.EventName)
	require.Equal(t, seller, n.ownerOf("1"))

	err = n.submit(buyer, func(ctx contractapi.TransactionContextInterface) error {
		_, err := n.contract.Settle(ctx, summary.ID)
		return err
	})
	require.ErrorIs(t, err, engine.ErrAuctionNotActive)
	require.EqualValues(t, 10_000, n.balanceOf(buyer))
}

func TestLedgerEvents(t *testing.T) {
	n := newNetwork(t)
	n.setup()
	c := n.contract

	requireEvent := func(name string, want, got interface{}) {
		t.Helper()
		event := n.lastEvent()
		require.NotNil(t, event)
		require.Equal(t, name, event.EventName)
		require.NoError(t, json.Unmarshal(event.Payload, got))
		require.Equal(t, want, got)
	}

	n.mustSubmit(buyer, func(ctx contractapi.TransactionContextInterface) error {
		return c.Transfer(ctx, stranger, 5)
	})
	requireEvent(EventTransfer, &TransferEvent{From: buyer, To: stranger, Value: 5}, &TransferEvent{})

	n.mustSubmit(stranger, func(ctx contractapi.TransactionContextInterface) error {
		return c.Approve(ctx, seller, 3)
	})
	requireEvent(EventApproval, &ApprovalEvent{Owner: stranger, Spender: seller, Value: 3}, &ApprovalEvent{})

	n.mustSubmit(seller, func(ctx contractapi.TransactionContextInterface) error {
		return c.TransferFrom(ctx, stranger, seller, 3)
	})
	requireEvent(EventTransfer, &TransferEvent{From: stranger, To: seller, Value: 3}, &TransferEvent{})

	n.mustSubmit(organizer, func(ctx contractapi.TransactionContextInterface) error {
		return c.Mint(ctx, stranger, 100)
	})
	requireEvent(EventTransfer, &TransferEvent{To: stranger, Value: 100}, &TransferEvent{})

	n.mustSubmit(organizer, func(ctx contractapi.TransactionContextInterface) error {
		return c.FreezeAccount(ctx, stranger)
	})
	requireEvent(EventAccountFrozen, &AccountEvent{Account: stranger}, &AccountEvent{})

	err := n.submit(stranger, func(ctx contractapi.TransactionContextInterface) error {
		return c.Transfer(ctx, buyer, 1)
	})
	require.Error(t, err)
	require.Nil(t, n.lastEvent())

	n.mustSubmit(organizer, func(ctx contractapi.TransactionContextInterface) error {
		return c.UnfreezeAccount(ctx, stranger)
	})
	requireEvent(EventAccountUnfrozen, &AccountEvent{Account: stranger}, &AccountEvent{})

	n.mustSubmit(stranger, func(ctx contractapi.TransactionContextInterface) error {
		return c.MintAsset(ctx, "2")
	})
	requireEvent(EventAssetTransfer, &AssetTransferEvent{To: stranger, AssetID: "2"}, &AssetTransferEvent{})

	n.mustSubmit(stranger, func(ctx contractapi.TransactionContextInterface) error {
		return c.ApproveAsset(ctx, seller, "2")
	})
	requireEvent(EventAssetApproval, &AssetApprovalEvent{Owner: stranger, Operator: seller, AssetID: "2"}, &AssetApprovalEvent{})

	n.mustSubmit(seller, func(ctx contractapi.TransactionContextInterface) error {
		return c.TransferAsset(ctx, stranger, buyer, "2")
	})
	requireEvent(EventAssetTransfer, &AssetTransferEvent{From: stranger, To: buyer, AssetID: "2"}, &AssetTransferEvent{})

	n.mustSubmit(buyer, func(ctx contractapi.TransactionContextInterface) error {
		return c.BurnAsset(ctx, "2")
	})
	requireEvent(EventAssetTransfer, &AssetTransferEvent{From: buyer, AssetID: "2"}, &AssetTransferEvent{})
}

func TestAssetFunctions(t *testing.T) {
	n := newNetwork(t)
	n.setup()

	n.mustSubmit(stranger, func(ctx contractapi.TransactionContextInterface) error {
		asset, err := n.contract.ReadAsset(ctx, "1")
		require.NoError(t, err)
		require.Equal(t, &AssetSummary{ID: "1", Owner: seller, Approved: EscrowAccountID}, asset)
		return nil
	})

	err := n.submit(stranger, func(ctx contractapi.TransactionContextInterface) error {
		return n.contract.TransferAsset(ctx, seller, stranger, "1")
	})
	require.Error(t, err)

	n.mustSubmit(seller, func(ctx contractapi.TransactionContextInterface) error {
		return n.contract.TransferAsset(ctx, seller, buyer, "1")
	})
	require.Equal(t, buyer, n.ownerOf("1"))

	n.mustSubmit(buyer, func(ctx contractapi.TransactionContextInterface) error {
		return n.contract.BurnAsset(ctx, "1")
	})
	err = n.submit(stranger, func(ctx contractapi.TransactionContextInterface) error {
		_, err := n.contract.OwnerOf(ctx, "1")
		return err
	})
	require.Error(t, err)
}

func TestClientAccountID(t *testing.T) {
	n := newNetwork(t)
	n.mustSubmit(seller, func(ctx contractapi.TransactionContextInterface) error {
		id, err := n.contract.ClientAccountID(ctx)
		require.NoError(t, err)
		require.Equal(t, seller, id)
		require.Equal(t, EscrowAccountID, n.contract.EscrowAccount(ctx))
		return nil
	})
}
