/*
SPDX-License-Identifier: Apache-2.0
*/

package auction

import (
	"fmt"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/nandlab/fabric-dutch-auction/internal/ledger"
)

// TokenMetadata returns the name, symbol, owner and supply of the token
func (s *SmartContract) TokenMetadata(ctx contractapi.TransactionContextInterface) (*ledger.Metadata, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	return tx.ledger.Metadata()
}

// BalanceOf returns the token balance of an account
func (s *SmartContract) BalanceOf(ctx contractapi.TransactionContextInterface, account string) (uint64, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return 0, err
	}
	return tx.ledger.BalanceOf(account)
}

// Allowance returns how much spender may still transfer out of owner's account
func (s *SmartContract) Allowance(ctx contractapi.TransactionContextInterface, owner string, spender string) (uint64, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return 0, err
	}
	return tx.ledger.Allowance(owner, spender)
}

// IsAccountFrozen reports whether transfers into and out of an account are blocked
func (s *SmartContract) IsAccountFrozen(ctx contractapi.TransactionContextInterface, account string) (bool, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return false, err
	}
	return tx.ledger.IsFrozen(account)
}

// Transfer sends tokens from the submitting client to another account
func (s *SmartContract) Transfer(ctx contractapi.TransactionContextInterface, to string, amount uint64) error {
	return s.updateLedger(ctx, "transfer", func(tx *transaction) (*ledgerEvent, error) {
		if err := tx.ledger.Transfer(tx.caller, to, amount); err != nil {
			return nil, err
		}
		return transferEvent(tx.caller, to, amount), nil
	})
}

// Approve sets the allowance of spender over the submitting client's account
func (s *SmartContract) Approve(ctx contractapi.TransactionContextInterface, spender string, amount uint64) error {
	return s.updateLedger(ctx, "approve", func(tx *transaction) (*ledgerEvent, error) {
		if err := tx.ledger.Approve(tx.caller, spender, amount); err != nil {
			return nil, err
		}
		return &ledgerEvent{EventApproval, ApprovalEvent{Owner: tx.caller, Spender: spender, Value: amount}}, nil
	})
}

// TransferFrom moves tokens out of another account using the submitting
// client's allowance
func (s *SmartContract) TransferFrom(ctx contractapi.TransactionContextInterface, from string, to string, amount uint64) error {
	return s.updateLedger(ctx, "transfer from", func(tx *transaction) (*ledgerEvent, error) {
		if err := tx.ledger.TransferFrom(from, tx.caller, to, amount); err != nil {
			return nil, err
		}
		return transferEvent(from, to, amount), nil
	})
}

// Mint creates new tokens. Only the token owner can mint.
func (s *SmartContract) Mint(ctx contractapi.TransactionContextInterface, account string, amount uint64) error {
	return s.updateLedger(ctx, "mint", func(tx *transaction) (*ledgerEvent, error) {
		if err := tx.ledger.Mint(tx.caller, account, amount); err != nil {
			return nil, err
		}
		return transferEvent("", account, amount), nil
	})
}

// FreezeAccount blocks transfers into and out of an account. Only the token
// owner can freeze.
func (s *SmartContract) FreezeAccount(ctx contractapi.TransactionContextInterface, account string) error {
	return s.updateLedger(ctx, "freeze", func(tx *transaction) (*ledgerEvent, error) {
		if err := tx.ledger.Freeze(tx.caller, account); err != nil {
			return nil, err
		}
		return &ledgerEvent{EventAccountFrozen, AccountEvent{Account: account}}, nil
	})
}

// UnfreezeAccount lifts a freeze
func (s *SmartContract) UnfreezeAccount(ctx contractapi.TransactionContextInterface, account string) error {
	return s.updateLedger(ctx, "unfreeze", func(tx *transaction) (*ledgerEvent, error) {
		if err := tx.ledger.Unfreeze(tx.caller, account); err != nil {
			return nil, err
		}
		return &ledgerEvent{EventAccountUnfrozen, AccountEvent{Account: account}}, nil
	})
}

func transferEvent(from, to string, amount uint64) *ledgerEvent {
	return &ledgerEvent{EventTransfer, TransferEvent{From: from, To: to, Value: amount}}
}

// ledgerEvent is the event of one committed ledger or registry change
type ledgerEvent struct {
	name    string
	payload interface{}
}

// updateLedger runs one ledger or registry change, commits it and sets the
// event describing it
func (s *SmartContract) updateLedger(ctx contractapi.TransactionContextInterface, op string, update func(tx *transaction) (*ledgerEvent, error)) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	event, err := update(tx)
	if err != nil {
		return fmt.Errorf("%s failed: %w", op, err)
	}
	if err := tx.commit(); err != nil {
		return err
	}
	if err := setEvent(ctx, event.name, event.payload); err != nil {
		return fmt.Errorf("could not set the %s event: %v", event.name, err)
	}
	s.log().Debug("ledger updated", "op", op, "account", tx.caller)
	return nil
}
