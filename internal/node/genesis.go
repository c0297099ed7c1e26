/*
SPDX-License-Identifier: Apache-2.0
*/

package node

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nandlab/fabric-dutch-auction/internal/ledger"
	"github.com/nandlab/fabric-dutch-auction/internal/registry"
)

// GenesisDoc defines the initial state of a dev node: the token, the
// balances funded from the organizer and the assets that exist at start.
type GenesisDoc struct {
	Token      GenesisToken       `yaml:"token"`
	Balances   map[string]uint64  `yaml:"balances,omitempty"`
	Allowances []GenesisAllowance `yaml:"allowances,omitempty"`
	Frozen     []string           `yaml:"frozen,omitempty"`
	Assets     []GenesisAsset     `yaml:"assets,omitempty"`
}

type GenesisToken struct {
	Name   string `yaml:"name"`
	Symbol string `yaml:"symbol"`
	Supply uint64 `yaml:"supply"`
}

type GenesisAllowance struct {
	Owner   string `yaml:"owner"`
	Spender string `yaml:"spender"`
	Amount  uint64 `yaml:"amount"`
}

type GenesisAsset struct {
	ID       string `yaml:"id"`
	Owner    string `yaml:"owner"`
	Approved string `yaml:"approved,omitempty"`
}

// DefaultGenesisDoc funds nobody and mints nothing.
func DefaultGenesisDoc() *GenesisDoc {
	return &GenesisDoc{
		Token: GenesisToken{Name: "TestToken", Symbol: "TTK", Supply: 1_000_000},
	}
}

// ValidateBasic checks the genesis document is self consistent.
func (g *GenesisDoc) ValidateBasic() error {
	if g.Token.Symbol == "" {
		return errors.New("token symbol can't be empty")
	}
	var funded uint64
	for account, amount := range g.Balances {
		if account == "" {
			return errors.New("balance for empty account")
		}
		if funded+amount < funded {
			return errors.New("balances overflow")
		}
		funded += amount
	}
	if funded > g.Token.Supply {
		return fmt.Errorf("balances total %d exceeds supply %d", funded, g.Token.Supply)
	}
	seen := make(map[string]bool, len(g.Assets))
	for _, asset := range g.Assets {
		if asset.ID == "" || asset.Owner == "" {
			return errors.New("asset needs an id and an owner")
		}
		if seen[asset.ID] {
			return fmt.Errorf("duplicate asset %s", asset.ID)
		}
		seen[asset.ID] = true
	}
	return nil
}

// GenesisDocFromFile reads a YAML genesis document.
func GenesisDocFromFile(path string) (*GenesisDoc, error) {
	bz, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("couldn't read GenesisDoc file: %w", err)
	}
	return GenesisDocFromYAML(bz)
}

func GenesisDocFromYAML(bz []byte) (*GenesisDoc, error) {
	var g GenesisDoc
	if err := yaml.Unmarshal(bz, &g); err != nil {
		return nil, fmt.Errorf("error reading GenesisDoc: %w", err)
	}
	if err := g.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid GenesisDoc: %w", err)
	}
	return &g, nil
}

// SaveAs writes the genesis document as YAML.
func (g *GenesisDoc) SaveAs(path string) error {
	bz, err := yaml.Marshal(g)
	if err != nil {
		return err
	}
	return os.WriteFile(path, bz, 0644)
}

// apply writes the genesis state: the organizer receives the supply and
// funds every balance from it.
func (g *GenesisDoc) apply(l *ledger.Ledger, r *registry.Registry, organizer string) error {
	if err := l.Init(g.Token.Name, g.Token.Symbol, organizer, g.Token.Supply); err != nil {
		return err
	}
	for account, amount := range g.Balances {
		if account == organizer {
			continue
		}
		if err := l.Transfer(organizer, account, amount); err != nil {
			return fmt.Errorf("funding %s: %w", account, err)
		}
	}
	for _, a := range g.Allowances {
		if err := l.Approve(a.Owner, a.Spender, a.Amount); err != nil {
			return fmt.Errorf("allowance of %s for %s: %w", a.Owner, a.Spender, err)
		}
	}
	for _, asset := range g.Assets {
		if err := r.Mint(asset.Owner, asset.ID); err != nil {
			return fmt.Errorf("minting %s: %w", asset.ID, err)
		}
		if asset.Approved != "" {
			if err := r.Approve(asset.Owner, asset.Approved, asset.ID); err != nil {
				return fmt.Errorf("approving %s: %w", asset.ID, err)
			}
		}
	}
	// freeze last so genesis funding is not blocked
	for _, account := range g.Frozen {
		if err := l.Freeze(organizer, account); err != nil {
			return fmt.Errorf("freezing %s: %w", account, err)
		}
	}
	return nil
}
