/*
SPDX-License-Identifier: Apache-2.0
*/

package engine

import (
	"github.com/nandlab/fabric-dutch-auction/internal/pricing"
)

// AuctionState is the lifecycle state of an auction: active, settled or cancelled
type AuctionState int

const (
	Active    AuctionState = iota // Buyers can settle at the current price
	Settled                       // A buyer paid and received the asset
	Cancelled                     // The asset went back to the seller
)

func (s AuctionState) String() string {
	switch s {
	case Active:
		return "Active"
	case Settled:
		return "Settled"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transition is allowed.
func (s AuctionState) Terminal() bool {
	return s == Settled || s == Cancelled
}

// Auction data
type Auction struct {
	ID         string       `json:"id"`
	Seller     string       `json:"seller"`
	AssetID    string       `json:"assetId"`
	StartPrice uint64       `json:"startPrice"`
	EndPrice   uint64       `json:"endPrice"`
	StartTime  int64        `json:"startTime"` // unix seconds
	Duration   uint64       `json:"duration"`  // seconds
	State      AuctionState `json:"state"`
	Buyer      string       `json:"buyer,omitempty"`     // set on settlement only
	PricePaid  uint64       `json:"pricePaid,omitempty"` // set on settlement only
	ClosedAt   int64        `json:"closedAt,omitempty"`  // settlement or cancellation time
}

// Schedule returns the pricing parameters of the auction.
func (a *Auction) Schedule() pricing.Schedule {
	return pricing.Schedule{
		StartPrice: a.StartPrice,
		EndPrice:   a.EndPrice,
		StartTime:  a.StartTime,
		Duration:   a.Duration,
	}
}

// EndTime is the time from which the price sits on the floor.
func (a *Auction) EndTime() int64 {
	return a.Schedule().EndTime()
}

// Receipt is the immutable record of a settlement, emitted for audit and
// indexing by external observers.
type Receipt struct {
	AuctionID string `json:"auctionId"`
	Seller    string `json:"seller"`
	Buyer     string `json:"buyer"`
	AssetID   string `json:"assetId"`
	PricePaid uint64 `json:"pricePaid"`
	Timestamp int64  `json:"timestamp"`
}

// Names of the events hosts emit after a successful operation.
const (
	EventAuctionRegistered = "AuctionRegistered"
	EventAuctionSettled    = "AuctionSettled"
	EventAuctionCancelled  = "AuctionCancelled"
)
