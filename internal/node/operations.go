/*
SPDX-License-Identifier: Apache-2.0
*/

package node

import (
	"fmt"

	"github.com/nandlab/fabric-dutch-auction/internal/engine"
	"github.com/nandlab/fabric-dutch-auction/internal/ledger"
	"github.com/nandlab/fabric-dutch-auction/internal/registry"
)

// EscrowAccount returns the account sellers and buyers approve.
func (n *Node) EscrowAccount() string {
	return n.engCfg.EscrowAccount
}

// outsideEscrow rejects direct ledger and registry operations that act for
// the escrow account or pay into it. Only auctions move escrow holdings.
func (n *Node) outsideEscrow(accounts ...string) error {
	for _, account := range accounts {
		if account == n.engCfg.EscrowAccount {
			return fmt.Errorf("%w: %s is reserved for auctions", engine.ErrInvalidCaller, account)
		}
	}
	return nil
}

//----------------------------------------
// auctions

func (n *Node) RegisterAuction(seller, assetID string, startPrice, endPrice, duration uint64) (auction *engine.Auction, err error) {
	_, err = n.execute("register", func(tx *Tx) error {
		auction, err = tx.Engine.RegisterAuction(seller, assetID, startPrice, endPrice, duration)
		return err
	})
	return auction, err
}

func (n *Node) CurrentPrice(auctionID string) (price uint64, err error) {
	err = n.query(func(tx *Tx) error {
		price, err = tx.Engine.CurrentPrice(auctionID)
		return err
	})
	return price, err
}

// Settle buys an auction for buyer and publishes the receipt to subscribers
// once it is committed.
func (n *Node) Settle(auctionID, buyer string) (receipt *engine.Receipt, err error) {
	_, err = n.execute("settle", func(tx *Tx) error {
		receipt, err = tx.Engine.Settle(auctionID, buyer)
		return err
	})
	if err != nil {
		return nil, err
	}
	n.publish(*receipt)
	return receipt, nil
}

func (n *Node) Cancel(auctionID, caller string) (auction *engine.Auction, err error) {
	_, err = n.execute("cancel", func(tx *Tx) error {
		auction, err = tx.Engine.Cancel(auctionID, caller)
		return err
	})
	return auction, err
}

func (n *Node) Auction(auctionID string) (auction *engine.Auction, err error) {
	err = n.query(func(tx *Tx) error {
		auction, err = tx.Engine.Auction(auctionID)
		return err
	})
	return auction, err
}

func (n *Node) Receipt(auctionID string) (receipt *engine.Receipt, err error) {
	err = n.query(func(tx *Tx) error {
		receipt, err = tx.Engine.Receipt(auctionID)
		return err
	})
	return receipt, err
}

func (n *Node) ActiveAuctionFor(assetID string) (auction *engine.Auction, err error) {
	err = n.query(func(tx *Tx) error {
		auction, err = tx.Engine.ActiveAuctionFor(assetID)
		return err
	})
	return auction, err
}

//----------------------------------------
// token

// Account is the ledger view of one account.
type Account struct {
	Account string `json:"account"`
	Balance uint64 `json:"balance"`
	Frozen  bool   `json:"frozen"`
}

func (n *Node) Token() (meta *ledger.Metadata, err error) {
	err = n.query(func(tx *Tx) error {
		meta, err = tx.Ledger.Metadata()
		return err
	})
	return meta, err
}

func (n *Node) Account(account string) (*Account, error) {
	acc := &Account{Account: account}
	err := n.query(func(tx *Tx) (err error) {
		if acc.Balance, err = tx.Ledger.BalanceOf(account); err != nil {
			return err
		}
		acc.Frozen, err = tx.Ledger.IsFrozen(account)
		return err
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func (n *Node) Allowance(owner, spender string) (amount uint64, err error) {
	err = n.query(func(tx *Tx) error {
		amount, err = tx.Ledger.Allowance(owner, spender)
		return err
	})
	return amount, err
}

func (n *Node) Transfer(from, to string, amount uint64) error {
	_, err := n.execute("transfer", func(tx *Tx) error {
		if err := n.outsideEscrow(from, to); err != nil {
			return err
		}
		return tx.Ledger.Transfer(from, to, amount)
	})
	return err
}

func (n *Node) Approve(owner, spender string, amount uint64) error {
	_, err := n.execute("approve", func(tx *Tx) error {
		if err := n.outsideEscrow(owner); err != nil {
			return err
		}
		return tx.Ledger.Approve(owner, spender, amount)
	})
	return err
}

func (n *Node) Mint(caller, account string, amount uint64) error {
	_, err := n.execute("mint", func(tx *Tx) error {
		if err := n.outsideEscrow(caller, account); err != nil {
			return err
		}
		return tx.Ledger.Mint(caller, account, amount)
	})
	return err
}

func (n *Node) Freeze(caller, account string) error {
	_, err := n.execute("freeze", func(tx *Tx) error {
		if err := n.outsideEscrow(caller); err != nil {
			return err
		}
		return tx.Ledger.Freeze(caller, account)
	})
	return err
}

func (n *Node) Unfreeze(caller, account string) error {
	_, err := n.execute("unfreeze", func(tx *Tx) error {
		if err := n.outsideEscrow(caller); err != nil {
			return err
		}
		return tx.Ledger.Unfreeze(caller, account)
	})
	return err
}

//----------------------------------------
// assets

func (n *Node) MintAsset(owner, assetID string) error {
	_, err := n.execute("mint asset", func(tx *Tx) error {
		if err := n.outsideEscrow(owner); err != nil {
			return err
		}
		return tx.Registry.Mint(owner, assetID)
	})
	return err
}

func (n *Node) Asset(assetID string) (asset *registry.Asset, err error) {
	err = n.query(func(tx *Tx) error {
		asset, err = tx.Registry.Asset(assetID)
		return err
	})
	return asset, err
}

func (n *Node) ApproveAsset(caller, operator, assetID string) error {
	_, err := n.execute("approve asset", func(tx *Tx) error {
		if err := n.outsideEscrow(caller); err != nil {
			return err
		}
		return tx.Registry.Approve(caller, operator, assetID)
	})
	return err
}

func (n *Node) TransferAsset(operator, from, to, assetID string) error {
	_, err := n.execute("transfer asset", func(tx *Tx) error {
		if err := n.outsideEscrow(operator, from, to); err != nil {
			return err
		}
		return tx.Registry.TransferFrom(operator, from, to, assetID)
	})
	return err
}

func (n *Node) BurnAsset(caller, assetID string) error {
	_, err := n.execute("burn asset", func(tx *Tx) error {
		if err := n.outsideEscrow(caller); err != nil {
			return err
		}
		return tx.Registry.Burn(caller, assetID)
	})
	return err
}
