/*
SPDX-License-Identifier: Apache-2.0
*/

package auction

import (
	"github.com/nandlab/fabric-dutch-auction/internal/engine"
	"github.com/nandlab/fabric-dutch-auction/internal/registry"
)

// Auction status information, which is returned to clients and presented
// to the users in an event
type AuctionSummary struct {
	ID         string         `json:"id"`
	Seller     string         `json:"seller"`
	AssetID    string         `json:"assetId"`
	Status     string         `json:"status"` // Active, Settled or Cancelled
	StartPrice uint64         `json:"startPrice"`
	EndPrice   uint64         `json:"endPrice"`
	StartTime  int64          `json:"startTime"`
	EndTime    int64          `json:"endTime"`
	ClosedAt   int64          `json:"closedAt"`
	Result     *AuctionResult `json:"result,omitempty" metadata:",optional"` // It is set when the auction is settled
}

type AuctionResult struct {
	Buyer     string `json:"buyer"`
	PricePaid uint64 `json:"pricePaid"`
}

func newAuctionSummary(auction *engine.Auction) *AuctionSummary {
	summary := &AuctionSummary{
		ID:         auction.ID,
		Seller:     auction.Seller,
		AssetID:    auction.AssetID,
		Status:     auction.State.String(),
		StartPrice: auction.StartPrice,
		EndPrice:   auction.EndPrice,
		StartTime:  auction.StartTime,
		EndTime:    auction.EndTime(),
		ClosedAt:   auction.ClosedAt,
	}
	if auction.State == engine.Settled {
		summary.Result = &AuctionResult{
			Buyer:     auction.Buyer,
			PricePaid: auction.PricePaid,
		}
	}
	return summary
}

// Asset as presented to clients
type AssetSummary struct {
	ID       string `json:"id"`
	Owner    string `json:"owner"`
	Approved string `json:"approved"` // empty when no operator is approved
}

func newAssetSummary(asset *registry.Asset) *AssetSummary {
	return &AssetSummary{
		ID:       asset.ID,
		Owner:    asset.Owner,
		Approved: asset.Approved,
	}
}

// Names of the ledger and registry events
const (
	EventTransfer        = "Transfer"
	EventApproval        = "Approval"
	EventAccountFrozen   = "AccountFrozen"
	EventAccountUnfrozen = "AccountUnfrozen"
	EventAssetTransfer   = "AssetTransfer"
	EventAssetApproval   = "AssetApproval"
)

// TransferEvent reports moved tokens. From is empty for minted tokens.
type TransferEvent struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value uint64 `json:"value"`
}

type ApprovalEvent struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Value   uint64 `json:"value"`
}

// AccountEvent reports a frozen or unfrozen account
type AccountEvent struct {
	Account string `json:"account"`
}

// AssetTransferEvent reports a moved asset. From is empty when the asset is
// minted, To is empty when it is burned.
type AssetTransferEvent struct {
	From    string `json:"from"`
	To      string `json:"to"`
	AssetID string `json:"assetId"`
}

type AssetApprovalEvent struct {
	Owner    string `json:"owner"`
	Operator string `json:"operator"`
	AssetID  string `json:"assetId"`
}
