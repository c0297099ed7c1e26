/*
SPDX-License-Identifier: Apache-2.0
*/

package auction

import (
	"fmt"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/nandlab/fabric-dutch-auction/internal/engine"
	"github.com/nandlab/fabric-dutch-auction/internal/log"
)

// EscrowAccountID is the account that holds listed assets and spends the
// allowances buyers grant for payments. Fabric client ids have the form
// "x509::<subject>::<issuer>" and never collide with it.
const EscrowAccountID = "dutch-auction-escrow"

// This contract implements a Dutch auction settled against a token ledger
// and an asset registry kept in the same world state
type SmartContract struct {
	contractapi.Contract
	logger log.Logger
}

func NewSmartContract(logger log.Logger) *SmartContract {
	return &SmartContract{logger: logger}
}

func (s *SmartContract) log() log.Logger {
	if s.logger == nil {
		return log.NewNopLogger()
	}
	return s.logger
}

// InitLedger creates the token with the given supply. The submitting client
// becomes the organizer, who owns the token supply and may cancel any auction.
func (s *SmartContract) InitLedger(ctx contractapi.TransactionContextInterface, name string, symbol string, supply uint64) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}

	organizer, err := tx.journal.Get(organizerKey)
	if err != nil {
		return fmt.Errorf("could not get the organizer: %v", err)
	}
	if organizer != nil {
		return fmt.Errorf("the ledger is already initialized")
	}
	if err := tx.journal.Set(organizerKey, []byte(tx.caller)); err != nil {
		return err
	}
	if err := tx.ledger.Init(name, symbol, tx.caller, supply); err != nil {
		return fmt.Errorf("could not initialize the token: %v", err)
	}
	if err := tx.commit(); err != nil {
		return err
	}
	s.log().Info("ledger initialized", "organizer", tx.caller, "symbol", symbol, "supply", supply)
	return nil
}

// ClientAccountID returns the account id of the submitting client
func (s *SmartContract) ClientAccountID(ctx contractapi.TransactionContextInterface) (string, error) {
	return getSubmittingClientIdentity(ctx)
}

// EscrowAccount returns the account sellers and buyers must approve
func (s *SmartContract) EscrowAccount(ctx contractapi.TransactionContextInterface) string {
	return EscrowAccountID
}

/**************** AUCTION SELLER METHODS ****************/

// RegisterAuction lists an asset of the submitting client for sale. The
// escrow account must be approved for the asset; it keeps the asset until
// the auction is settled or cancelled.
func (s *SmartContract) RegisterAuction(ctx contractapi.TransactionContextInterface, assetID string, startPrice uint64, endPrice uint64, duration uint64) (*AuctionSummary, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	auction, err := tx.engine.RegisterAuction(tx.caller, assetID, startPrice, endPrice, duration)
	if err != nil {
		return nil, err
	}
	if err := tx.commit(); err != nil {
		return nil, err
	}

	summary := newAuctionSummary(auction)
	if err := setEvent(ctx, engine.EventAuctionRegistered, summary); err != nil {
		return nil, fmt.Errorf("could not set the auction event: %v", err)
	}
	return summary, nil
}

// Cancel ends an active auction and returns the asset to the seller.
// Only the seller and the organizer can cancel.
func (s *SmartContract) Cancel(ctx contractapi.TransactionContextInterface, auctionID string) (*AuctionSummary, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	auction, err := tx.engine.Cancel(auctionID, tx.caller)
	if err != nil {
		return nil, err
	}
	if err := tx.commit(); err != nil {
		return nil, err
	}

	summary := newAuctionSummary(auction)
	if err := setEvent(ctx, engine.EventAuctionCancelled, summary); err != nil {
		return nil, fmt.Errorf("could not set the auction event: %v", err)
	}
	return summary, nil
}

/**************** AUCTION BUYER METHODS ****************/

// CurrentPrice returns the price of an active auction at the transaction time
func (s *SmartContract) CurrentPrice(ctx contractapi.TransactionContextInterface, auctionID string) (uint64, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return 0, err
	}
	return tx.engine.CurrentPrice(auctionID)
}

// Settle buys the asset of an active auction at the current price. The
// submitting client must have approved the escrow account to spend the price.
func (s *SmartContract) Settle(ctx contractapi.TransactionContextInterface, auctionID string) (*engine.Receipt, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	receipt, err := tx.engine.Settle(auctionID, tx.caller)
	if err != nil {
		return nil, err
	}
	if err := tx.commit(); err != nil {
		return nil, err
	}

	if err := setEvent(ctx, engine.EventAuctionSettled, receipt); err != nil {
		return nil, fmt.Errorf("could not set the receipt event: %v", err)
	}
	return receipt, nil
}

/**************** QUERIES ****************/

// ReadAuction returns an auction in any state
func (s *SmartContract) ReadAuction(ctx contractapi.TransactionContextInterface, auctionID string) (*AuctionSummary, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	auction, err := tx.engine.Auction(auctionID)
	if err != nil {
		return nil, err
	}
	return newAuctionSummary(auction), nil
}

// ReadReceipt returns the settlement receipt of an auction
func (s *SmartContract) ReadReceipt(ctx contractapi.TransactionContextInterface, auctionID string) (*engine.Receipt, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	return tx.engine.Receipt(auctionID)
}

// ActiveAuctionFor returns the active auction of an asset
func (s *SmartContract) ActiveAuctionFor(ctx contractapi.TransactionContextInterface, assetID string) (*AuctionSummary, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	auction, err := tx.engine.ActiveAuctionFor(assetID)
	if err != nil {
		return nil, err
	}
	return newAuctionSummary(auction), nil
}
