/*
SPDX-License-Identifier: Apache-2.0
*/

package engine

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"golang.org/x/crypto/sha3"
)

const sequenceKey = "auction sequence"

// auctionKey gets a world state key from the auction id
func auctionKey(auctionID string) string {
	return fmt.Sprintf("auction %s", auctionID)
}

// listingKey indexes the active auction of an asset
func listingKey(assetID string) string {
	return fmt.Sprintf("listing %s", assetID)
}

func receiptKey(auctionID string) string {
	return fmt.Sprintf("receipt %s", auctionID)
}

// getAuction retrieves the auction with the given id from the world state
func (e *Engine) getAuction(auctionID string) (*Auction, error) {
	auctionBin, err := e.store.Get(auctionKey(auctionID))
	if err != nil {
		return nil, wrapError(ErrStorage, "could not get the auction: %v", err)
	}
	if auctionBin == nil {
		return nil, wrapError(ErrAuctionNotFound, "auction %s", auctionID)
	}
	var auction Auction
	if err := json.Unmarshal(auctionBin, &auction); err != nil {
		return nil, wrapError(ErrStorage, "could not decode auction %s: %v", auctionID, err)
	}
	return &auction, nil
}

// putAuction saves the given auction in the world state
func (e *Engine) putAuction(auction *Auction) error {
	auctionBin, err := json.Marshal(auction)
	if err != nil {
		return wrapError(ErrStorage, "could not encode auction: %v", err)
	}
	if err := e.store.Set(auctionKey(auction.ID), auctionBin); err != nil {
		return wrapError(ErrStorage, "could not save the auction: %v", err)
	}
	return nil
}

// listedAuction returns the id of the active auction of an asset, empty if
// there is none
func (e *Engine) listedAuction(assetID string) (string, error) {
	idBin, err := e.store.Get(listingKey(assetID))
	if err != nil {
		return "", wrapError(ErrStorage, "could not get the listing: %v", err)
	}
	return string(idBin), nil
}

func (e *Engine) putListing(assetID, auctionID string) error {
	if err := e.store.Set(listingKey(assetID), []byte(auctionID)); err != nil {
		return wrapError(ErrStorage, "could not save the listing: %v", err)
	}
	return nil
}

func (e *Engine) deleteListing(assetID string) error {
	if err := e.store.Delete(listingKey(assetID)); err != nil {
		return wrapError(ErrStorage, "could not delete the listing: %v", err)
	}
	return nil
}

func (e *Engine) getReceipt(auctionID string) (*Receipt, error) {
	receiptBin, err := e.store.Get(receiptKey(auctionID))
	if err != nil {
		return nil, wrapError(ErrStorage, "could not get the receipt: %v", err)
	}
	if receiptBin == nil {
		return nil, wrapError(ErrReceiptNotFound, "auction %s has no receipt", auctionID)
	}
	var receipt Receipt
	if err := json.Unmarshal(receiptBin, &receipt); err != nil {
		return nil, wrapError(ErrStorage, "could not decode receipt: %v", err)
	}
	return &receipt, nil
}

func (e *Engine) putReceipt(receipt *Receipt) error {
	receiptBin, err := json.Marshal(receipt)
	if err != nil {
		return wrapError(ErrStorage, "could not encode receipt: %v", err)
	}
	if err := e.store.Set(receiptKey(receipt.AuctionID), receiptBin); err != nil {
		return wrapError(ErrStorage, "could not save the receipt: %v", err)
	}
	return nil
}

// nextSequence increments and returns the auction counter
func (e *Engine) nextSequence() (uint64, error) {
	seqBin, err := e.store.Get(sequenceKey)
	if err != nil {
		return 0, wrapError(ErrStorage, "could not get the auction sequence: %v", err)
	}
	var seq uint64
	if seqBin != nil {
		seq, err = strconv.ParseUint(string(seqBin), 10, 64)
		if err != nil {
			return 0, wrapError(ErrStorage, "corrupt auction sequence: %v", err)
		}
	}
	seq++
	if err := e.store.Set(sequenceKey, []byte(strconv.FormatUint(seq, 10))); err != nil {
		return 0, wrapError(ErrStorage, "could not save the auction sequence: %v", err)
	}
	return seq, nil
}

// deriveAuctionID hashes the listing parameters into an opaque id.
// The sequence number makes it unique even for relistings in the same second.
func deriveAuctionID(seller, assetID string, startTime int64, seq uint64) (string, error) {
	shake := sha3.NewShake256()
	var numbers [16]byte
	binary.BigEndian.PutUint64(numbers[:8], uint64(startTime))
	binary.BigEndian.PutUint64(numbers[8:], seq)
	for _, data := range [][]byte{lengthPrefixed(seller), lengthPrefixed(assetID), numbers[:]} {
		if _, err := shake.Write(data); err != nil {
			return "", fmt.Errorf("failed to write data to SHAKE: %v", err)
		}
	}
	id := make([]byte, 16)
	if _, err := shake.Read(id); err != nil {
		return "", fmt.Errorf("failed to read data from SHAKE: %v", err)
	}
	return hex.EncodeToString(id), nil
}

func lengthPrefixed(s string) []byte {
	b := make([]byte, 4+len(s))
	binary.BigEndian.PutUint32(b, uint32(len(s)))
	copy(b[4:], s)
	return b
}
