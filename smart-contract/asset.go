/*
SPDX-License-Identifier: Apache-2.0
*/

package auction

import (
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// MintAsset creates a new asset owned by the submitting client
func (s *SmartContract) MintAsset(ctx contractapi.TransactionContextInterface, assetID string) error {
	return s.updateLedger(ctx, "mint asset", func(tx *transaction) (*ledgerEvent, error) {
		if err := tx.registry.Mint(tx.caller, assetID); err != nil {
			return nil, err
		}
		return assetTransferEvent("", tx.caller, assetID), nil
	})
}

// ReadAsset returns the owner and approved operator of an asset
func (s *SmartContract) ReadAsset(ctx contractapi.TransactionContextInterface, assetID string) (*AssetSummary, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	asset, err := tx.registry.Asset(assetID)
	if err != nil {
		return nil, err
	}
	return newAssetSummary(asset), nil
}

// OwnerOf returns the owner of an asset
func (s *SmartContract) OwnerOf(ctx contractapi.TransactionContextInterface, assetID string) (string, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return "", err
	}
	return tx.registry.OwnerOf(assetID)
}

// ApproveAsset lets operator transfer an asset of the submitting client.
// Sellers approve the escrow account before registering an auction.
func (s *SmartContract) ApproveAsset(ctx contractapi.TransactionContextInterface, operator string, assetID string) error {
	return s.updateLedger(ctx, "approve asset", func(tx *transaction) (*ledgerEvent, error) {
		if err := tx.registry.Approve(tx.caller, operator, assetID); err != nil {
			return nil, err
		}
		return &ledgerEvent{EventAssetApproval, AssetApprovalEvent{Owner: tx.caller, Operator: operator, AssetID: assetID}}, nil
	})
}

// TransferAsset moves an asset on behalf of the submitting client, who must
// own it or be its approved operator
func (s *SmartContract) TransferAsset(ctx contractapi.TransactionContextInterface, from string, to string, assetID string) error {
	return s.updateLedger(ctx, "transfer asset", func(tx *transaction) (*ledgerEvent, error) {
		if err := tx.registry.TransferFrom(tx.caller, from, to, assetID); err != nil {
			return nil, err
		}
		return assetTransferEvent(from, to, assetID), nil
	})
}

// BurnAsset destroys an asset of the submitting client
func (s *SmartContract) BurnAsset(ctx contractapi.TransactionContextInterface, assetID string) error {
	return s.updateLedger(ctx, "burn asset", func(tx *transaction) (*ledgerEvent, error) {
		if err := tx.registry.Burn(tx.caller, assetID); err != nil {
			return nil, err
		}
		return assetTransferEvent(tx.caller, "", assetID), nil
	})
}

func assetTransferEvent(from, to, assetID string) *ledgerEvent {
	return &ledgerEvent{EventAssetTransfer, AssetTransferEvent{From: from, To: to, AssetID: assetID}}
}
