/*
SPDX-License-Identifier: Apache-2.0
*/

// Package ledger is the fungible balance ledger the auction engine pulls
// payments from: balances, allowances and an account freeze flag kept in
// world state.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/nandlab/fabric-dutch-auction/internal/state"
)

var (
	ErrNotInitialized        = errors.New("ledger not initialized")
	ErrAlreadyInitialized    = errors.New("ledger already initialized")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrTransferBlocked       = errors.New("transfer blocked")
	ErrNotAuthorized         = errors.New("not authorized")
	ErrInvalidAccount        = errors.New("invalid account")
	ErrOverflow              = errors.New("amount overflow")
)

const tokenKey = "token"

// Metadata describes the token kept by the ledger.
type Metadata struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Owner       string `json:"owner"` // may mint, freeze and unfreeze
	TotalSupply uint64 `json:"totalSupply"`
}

// Ledger operates on balances stored in a state.Store.
type Ledger struct {
	store state.Store
}

func New(store state.Store) *Ledger {
	return &Ledger{store: store}
}

func balanceKey(account string) string {
	return fmt.Sprintf("balance %s", account)
}

func allowanceKey(owner, spender string) string {
	return fmt.Sprintf("allowance %s %s", owner, spender)
}

func frozenKey(account string) string {
	return fmt.Sprintf("frozen %s", account)
}

// Init creates the token and credits the whole supply to owner. It can only
// run once.
func (l *Ledger) Init(name, symbol, owner string, supply uint64) error {
	if owner == "" {
		return fmt.Errorf("%w: empty owner", ErrInvalidAccount)
	}
	existing, err := l.store.Get(tokenKey)
	if err != nil {
		return fmt.Errorf("failed to read token metadata: %w", err)
	}
	if existing != nil {
		return ErrAlreadyInitialized
	}

	if err := l.putMetadata(&Metadata{Name: name, Symbol: symbol, Owner: owner, TotalSupply: supply}); err != nil {
		return err
	}
	return l.putAmount(balanceKey(owner), supply)
}

// Metadata returns the token metadata.
func (l *Ledger) Metadata() (*Metadata, error) {
	metaBin, err := l.store.Get(tokenKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read token metadata: %w", err)
	}
	if metaBin == nil {
		return nil, ErrNotInitialized
	}
	var meta Metadata
	if err := json.Unmarshal(metaBin, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode token metadata: %w", err)
	}
	return &meta, nil
}

func (l *Ledger) putMetadata(meta *Metadata) error {
	metaBin, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return l.store.Set(tokenKey, metaBin)
}

// Mint credits amount to account. Only the token owner may mint.
func (l *Ledger) Mint(caller, account string, amount uint64) error {
	meta, err := l.requireOwner(caller)
	if err != nil {
		return err
	}
	if account == "" {
		return fmt.Errorf("%w: empty account", ErrInvalidAccount)
	}
	if meta.TotalSupply > math.MaxUint64-amount {
		return fmt.Errorf("%w: total supply", ErrOverflow)
	}
	if err := l.credit(account, amount); err != nil {
		return err
	}
	meta.TotalSupply += amount
	return l.putMetadata(meta)
}

// BalanceOf returns the balance of account, zero if it never held funds.
func (l *Ledger) BalanceOf(account string) (uint64, error) {
	return l.getAmount(balanceKey(account))
}

// Allowance returns how much spender may still move out of owner's account.
func (l *Ledger) Allowance(owner, spender string) (uint64, error) {
	return l.getAmount(allowanceKey(owner, spender))
}

// Approve sets the allowance of spender over owner's account.
func (l *Ledger) Approve(owner, spender string, amount uint64) error {
	if owner == "" || spender == "" {
		return fmt.Errorf("%w: empty owner or spender", ErrInvalidAccount)
	}
	return l.putAmount(allowanceKey(owner, spender), amount)
}

// IsFrozen reports whether account is frozen.
func (l *Ledger) IsFrozen(account string) (bool, error) {
	v, err := l.store.Get(frozenKey(account))
	if err != nil {
		return false, fmt.Errorf("failed to read freeze flag: %w", err)
	}
	return v != nil, nil
}

// Freeze blocks every transfer into or out of account. Only the token owner
// may freeze.
func (l *Ledger) Freeze(caller, account string) error {
	if _, err := l.requireOwner(caller); err != nil {
		return err
	}
	return l.store.Set(frozenKey(account), []byte("1"))
}

// Unfreeze lifts a freeze. Only the token owner may unfreeze.
func (l *Ledger) Unfreeze(caller, account string) error {
	if _, err := l.requireOwner(caller); err != nil {
		return err
	}
	return l.store.Delete(frozenKey(account))
}

// Transfer moves amount from from to to.
func (l *Ledger) Transfer(from, to string, amount uint64) error {
	if from == "" || to == "" {
		return fmt.Errorf("%w: empty sender or recipient", ErrInvalidAccount)
	}
	if err := l.checkNotFrozen(from, to); err != nil {
		return err
	}
	if err := l.debit(from, amount); err != nil {
		return err
	}
	return l.credit(to, amount)
}

// TransferFrom lets spender move amount from owner to to, consuming
// owner's allowance for spender.
func (l *Ledger) TransferFrom(owner, spender, to string, amount uint64) error {
	if owner == "" || spender == "" || to == "" {
		return fmt.Errorf("%w: empty owner, spender or recipient", ErrInvalidAccount)
	}
	if err := l.checkNotFrozen(owner, to); err != nil {
		return err
	}

	allowed, err := l.Allowance(owner, spender)
	if err != nil {
		return err
	}
	if allowed < amount {
		return fmt.Errorf("%w: %s may move %d of %s, needs %d", ErrInsufficientAllowance, spender, allowed, owner, amount)
	}
	if err := l.debit(owner, amount); err != nil {
		return err
	}
	if err := l.credit(to, amount); err != nil {
		return err
	}
	return l.putAmount(allowanceKey(owner, spender), allowed-amount)
}

func (l *Ledger) checkNotFrozen(accounts ...string) error {
	for _, account := range accounts {
		frozen, err := l.IsFrozen(account)
		if err != nil {
			return err
		}
		if frozen {
			return fmt.Errorf("%w: account %s is frozen", ErrTransferBlocked, account)
		}
	}
	return nil
}

func (l *Ledger) requireOwner(caller string) (*Metadata, error) {
	meta, err := l.Metadata()
	if err != nil {
		return nil, err
	}
	if caller != meta.Owner {
		return nil, fmt.Errorf("%w: only the token owner can do this", ErrNotAuthorized)
	}
	return meta, nil
}

func (l *Ledger) debit(account string, amount uint64) error {
	balance, err := l.BalanceOf(account)
	if err != nil {
		return err
	}
	if balance < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientFunds, account, balance, amount)
	}
	return l.putAmount(balanceKey(account), balance-amount)
}

func (l *Ledger) credit(account string, amount uint64) error {
	balance, err := l.BalanceOf(account)
	if err != nil {
		return err
	}
	if balance > math.MaxUint64-amount {
		return fmt.Errorf("%w: balance of %s", ErrOverflow, account)
	}
	return l.putAmount(balanceKey(account), balance+amount)
}

func (l *Ledger) getAmount(key string) (uint64, error) {
	v, err := l.store.Get(key)
	if err != nil {
		return 0, fmt.Errorf("failed to read %q: %w", key, err)
	}
	if v == nil {
		return 0, nil
	}
	amount, err := strconv.ParseUint(string(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt amount under %q: %w", key, err)
	}
	return amount, nil
}

func (l *Ledger) putAmount(key string, amount uint64) error {
	return l.store.Set(key, []byte(strconv.FormatUint(amount, 10)))
}
