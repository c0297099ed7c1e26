/*
SPDX-License-Identifier: Apache-2.0
*/

// Package engine runs descending price auctions of non-fungible assets paid
// in a fungible balance, settling each one as a single atomic exchange.
//
// Every operation takes the caller identity explicitly. The engine moves a
// listed asset into the custody of its escrow account, so the seller cannot
// dispose of it while the auction is active, and pulls payments through the
// allowance buyers grant to that same account.
//
// Settlement advances the auction to its terminal state before calling the
// balance ledger or asset registry. A callee that re-enters the engine
// during those calls observes the auction as no longer active. Any failure
// after the state change reverts the store to a snapshot taken before it,
// undoing the state change and every transfer made since.
package engine

import (
	"errors"
	"time"

	"github.com/nandlab/fabric-dutch-auction/internal/ledger"
	"github.com/nandlab/fabric-dutch-auction/internal/log"
	"github.com/nandlab/fabric-dutch-auction/internal/pricing"
	"github.com/nandlab/fabric-dutch-auction/internal/registry"
	"github.com/nandlab/fabric-dutch-auction/internal/state"
)

// Store is the world state the engine keeps its records in. Collaborators
// must write to the same store so that RevertToSnapshot undoes their
// transfers as well.
type Store interface {
	state.Store
	Snapshot() int
	RevertToSnapshot(id int)
}

// BalanceLedger is the fungible ledger payments are pulled from. Transfers
// into or out of a frozen account must fail with ledger.ErrTransferBlocked.
type BalanceLedger interface {
	TransferFrom(owner, spender, to string, amount uint64) error
}

// AssetRegistry tracks ownership of the assets being sold.
type AssetRegistry interface {
	OwnerOf(assetID string) (string, error)
	TransferFrom(operator, from, to, assetID string) error
}

// Config holds the identities the engine acts with.
type Config struct {
	// EscrowAccount holds listed assets and is the spender of buyer
	// allowances.
	EscrowAccount string
	// Organizer may cancel any active auction. Empty disables the role.
	Organizer string
}

// Engine executes auction operations against one Store.
// It is not safe for concurrent use; hosts serialize operations.
type Engine struct {
	store    Store
	ledger   BalanceLedger
	registry AssetRegistry
	cfg      Config

	now     func() time.Time
	logger  log.Logger
	metrics *Metrics
}

// Option sets an optional parameter on the Engine.
type Option func(*Engine)

// WithClock sets the time source used for pricing and timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(logger log.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(metrics *Metrics) Option {
	return func(e *Engine) { e.metrics = metrics }
}

func New(store Store, ledger BalanceLedger, registry AssetRegistry, cfg Config, options ...Option) *Engine {
	e := &Engine{
		store:    store,
		ledger:   ledger,
		registry: registry,
		cfg:      cfg,
		now:      time.Now,
		logger:   log.NewNopLogger(),
		metrics:  NopMetrics(),
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// RegisterAuction lists assetID for sale by seller. The asset is moved to
// the escrow account before the auction record is written; the seller must
// own it and have approved the escrow account as its operator.
func (e *Engine) RegisterAuction(seller, assetID string, startPrice, endPrice, duration uint64) (*Auction, error) {
	auction, err := e.registerAuction(seller, assetID, startPrice, endPrice, duration)
	if err != nil {
		return nil, e.reject("register", err, "seller", seller, "asset", assetID)
	}
	e.metrics.Registrations.Add(1)
	e.logger.Info("auction registered",
		"auction", auction.ID, "asset", assetID, "seller", seller,
		"startPrice", startPrice, "endPrice", endPrice, "duration", duration)
	return auction, nil
}

func (e *Engine) registerAuction(seller, assetID string, startPrice, endPrice, duration uint64) (*Auction, error) {
	if seller == "" || seller == e.cfg.EscrowAccount {
		return nil, wrapError(ErrInvalidCaller, "seller %q cannot list assets", seller)
	}
	schedule := pricing.Schedule{StartPrice: startPrice, EndPrice: endPrice, Duration: duration}
	if err := schedule.ValidateBasic(); err != nil {
		if duration == 0 {
			return nil, wrapError(ErrInvalidDuration, "%v", err)
		}
		return nil, wrapError(ErrInvalidPricing, "%v", err)
	}

	// Check that the asset is not already on sale
	listed, err := e.listedAuction(assetID)
	if err != nil {
		return nil, err
	}
	if listed != "" {
		return nil, wrapError(ErrDuplicateListing, "asset %s is on sale in auction %s", assetID, listed)
	}

	// Check ownership against the registry, never a cached value
	owner, err := e.registry.OwnerOf(assetID)
	if errors.Is(err, registry.ErrNotFound) {
		return nil, wrapError(ErrAssetNotFound, "asset %s", assetID)
	}
	if err != nil {
		return nil, wrapError(ErrStorage, "could not get the asset owner: %v", err)
	}
	if owner != seller {
		return nil, wrapError(ErrNotAssetOwner, "asset %s is not owned by %s", assetID, seller)
	}

	now := e.now().Unix()
	auction := &Auction{
		Seller:     seller,
		AssetID:    assetID,
		StartPrice: startPrice,
		EndPrice:   endPrice,
		StartTime:  now,
		Duration:   duration,
		State:      Active,
	}

	snap := e.store.Snapshot()
	if err := e.openAuction(auction); err != nil {
		e.rollback(snap)
		return nil, err
	}
	return auction, nil
}

// openAuction secures the asset in escrow, then writes the active record.
func (e *Engine) openAuction(auction *Auction) error {
	escrow := e.cfg.EscrowAccount
	if err := e.registry.TransferFrom(escrow, auction.Seller, escrow, auction.AssetID); err != nil {
		if errors.Is(err, registry.ErrNotAuthorized) {
			return wrapError(ErrEscrowNotApproved, "escrow account %s is not approved for asset %s: %v", escrow, auction.AssetID, err)
		}
		return wrapError(ErrAssetTransferFailed, "could not move asset %s to escrow: %v", auction.AssetID, err)
	}

	seq, err := e.nextSequence()
	if err != nil {
		return err
	}
	auction.ID, err = deriveAuctionID(auction.Seller, auction.AssetID, auction.StartTime, seq)
	if err != nil {
		return wrapError(ErrStorage, "could not derive the auction id: %v", err)
	}
	if err := e.putAuction(auction); err != nil {
		return err
	}
	return e.putListing(auction.AssetID, auction.ID)
}

// CurrentPrice returns the ask price of an active auction at the current
// time. Past its end time an auction stays purchasable at the floor price.
func (e *Engine) CurrentPrice(auctionID string) (uint64, error) {
	auction, err := e.getAuction(auctionID)
	if err != nil {
		return 0, err
	}
	if auction.State != Active {
		return 0, wrapError(ErrAuctionNotActive, "auction %s is %s", auctionID, auction.State)
	}
	return auction.Schedule().Price(e.now().Unix()), nil
}

// Settle sells the asset of an active auction to buyer at the current price.
//
// The auction is marked settled before any transfer. The price is then
// pulled from buyer to the seller through the escrow account's allowance
// and the asset is delivered from escrow to buyer. If either transfer fails
// the store is reverted and the auction is active again.
func (e *Engine) Settle(auctionID, buyer string) (*Receipt, error) {
	receipt, err := e.settle(auctionID, buyer)
	if err != nil {
		return nil, e.reject("settle", err, "auction", auctionID, "buyer", buyer)
	}
	e.metrics.Settlements.Add(1)
	e.metrics.SettlementPrice.Observe(float64(receipt.PricePaid))
	e.logger.Info("auction settled",
		"auction", auctionID, "asset", receipt.AssetID, "buyer", buyer, "price", receipt.PricePaid)
	return receipt, nil
}

func (e *Engine) settle(auctionID, buyer string) (*Receipt, error) {
	if buyer == "" || buyer == e.cfg.EscrowAccount {
		return nil, wrapError(ErrInvalidCaller, "buyer %q cannot settle auctions", buyer)
	}
	auction, err := e.getAuction(auctionID)
	if err != nil {
		return nil, err
	}
	if auction.State != Active {
		return nil, wrapError(ErrAuctionNotActive, "auction %s is %s", auctionID, auction.State)
	}

	now := e.now().Unix()
	price := auction.Schedule().Price(now)

	snap := e.store.Snapshot()

	// Effects first: from here on a re-entrant call sees a settled auction
	auction.State = Settled
	auction.Buyer = buyer
	auction.PricePaid = price
	auction.ClosedAt = now
	if err := e.putAuction(auction); err != nil {
		e.rollback(snap)
		return nil, err
	}
	if err := e.deleteListing(auction.AssetID); err != nil {
		e.rollback(snap)
		return nil, err
	}

	// Interactions
	escrow := e.cfg.EscrowAccount
	if err := e.ledger.TransferFrom(buyer, escrow, auction.Seller, price); err != nil {
		e.rollback(snap)
		return nil, paymentError(err)
	}
	if err := e.registry.TransferFrom(escrow, escrow, buyer, auction.AssetID); err != nil {
		e.rollback(snap)
		return nil, wrapError(ErrAssetTransferFailed, "could not deliver asset %s: %v", auction.AssetID, err)
	}

	receipt := &Receipt{
		AuctionID: auction.ID,
		Seller:    auction.Seller,
		Buyer:     buyer,
		AssetID:   auction.AssetID,
		PricePaid: price,
		Timestamp: now,
	}
	if err := e.putReceipt(receipt); err != nil {
		e.rollback(snap)
		return nil, err
	}
	return receipt, nil
}

// paymentError maps a ledger rejection into the engine taxonomy.
func paymentError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrTransferBlocked):
		return wrapError(ErrTransferBlocked, "%v", err)
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return wrapError(ErrInsufficientFunds, "%v", err)
	case errors.Is(err, ledger.ErrInsufficientAllowance):
		return wrapError(ErrInsufficientAllowance, "%v", err)
	default:
		return wrapError(ErrPaymentFailed, "%v", err)
	}
}

// Cancel closes an active auction and returns the asset to its seller.
// Only the seller or the organizer may cancel.
func (e *Engine) Cancel(auctionID, caller string) (*Auction, error) {
	auction, err := e.cancel(auctionID, caller)
	if err != nil {
		return nil, e.reject("cancel", err, "auction", auctionID, "account", caller)
	}
	e.metrics.Cancellations.Add(1)
	e.logger.Info("auction cancelled", "auction", auctionID, "asset", auction.AssetID, "account", caller)
	return auction, nil
}

func (e *Engine) cancel(auctionID, caller string) (*Auction, error) {
	auction, err := e.getAuction(auctionID)
	if err != nil {
		return nil, err
	}
	if auction.State != Active {
		return nil, wrapError(ErrAuctionNotActive, "auction %s is %s", auctionID, auction.State)
	}
	if caller == "" || (caller != auction.Seller && caller != e.cfg.Organizer) {
		return nil, wrapError(ErrNotAuthorized, "only the seller or the organizer can cancel auction %s", auctionID)
	}

	snap := e.store.Snapshot()

	auction.State = Cancelled
	auction.ClosedAt = e.now().Unix()
	if err := e.putAuction(auction); err != nil {
		e.rollback(snap)
		return nil, err
	}
	if err := e.deleteListing(auction.AssetID); err != nil {
		e.rollback(snap)
		return nil, err
	}

	escrow := e.cfg.EscrowAccount
	if err := e.registry.TransferFrom(escrow, escrow, auction.Seller, auction.AssetID); err != nil {
		e.rollback(snap)
		return nil, wrapError(ErrAssetTransferFailed, "could not release asset %s: %v", auction.AssetID, err)
	}
	return auction, nil
}

// Auction returns the record of an auction in any state.
func (e *Engine) Auction(auctionID string) (*Auction, error) {
	return e.getAuction(auctionID)
}

// Receipt returns the settlement receipt of an auction.
func (e *Engine) Receipt(auctionID string) (*Receipt, error) {
	if _, err := e.getAuction(auctionID); err != nil {
		return nil, err
	}
	return e.getReceipt(auctionID)
}

// ActiveAuctionFor returns the active auction of an asset.
func (e *Engine) ActiveAuctionFor(assetID string) (*Auction, error) {
	auctionID, err := e.listedAuction(assetID)
	if err != nil {
		return nil, err
	}
	if auctionID == "" {
		return nil, wrapError(ErrAuctionNotFound, "asset %s is not on sale", assetID)
	}
	return e.getAuction(auctionID)
}

func (e *Engine) rollback(snap int) {
	e.store.RevertToSnapshot(snap)
	e.metrics.Rollbacks.Add(1)
}

func (e *Engine) reject(op string, err error, keyvals ...interface{}) error {
	kind := KindOf(err)
	e.metrics.Rejections.With("kind", kind.String()).Add(1)
	e.logger.Debug("auction operation rejected",
		append([]interface{}{"op", op, "kind", kind.String(), "err", err.Error()}, keyvals...)...)
	return err
}
