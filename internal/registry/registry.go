/*
SPDX-License-Identifier: Apache-2.0
*/

// Package registry keeps ownership of non-fungible assets in world state.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nandlab/fabric-dutch-auction/internal/state"
)

var (
	ErrNotFound      = errors.New("asset not found")
	ErrAlreadyExists = errors.New("asset already exists")
	ErrNotAuthorized = errors.New("not authorized")
	ErrInvalidAsset  = errors.New("invalid asset")
)

// Asset is one non-fungible token.
type Asset struct {
	ID       string `json:"id"`
	Owner    string `json:"owner"`
	Approved string `json:"approved,omitempty"` // operator allowed to transfer, cleared on transfer
}

// Registry operates on assets stored in a state.Store.
type Registry struct {
	store state.Store
}

func New(store state.Store) *Registry {
	return &Registry{store: store}
}

func assetKey(assetID string) string {
	return fmt.Sprintf("asset %s", assetID)
}

// Asset returns the asset with the given id.
func (r *Registry) Asset(assetID string) (*Asset, error) {
	assetBin, err := r.store.Get(assetKey(assetID))
	if err != nil {
		return nil, fmt.Errorf("failed to read asset %s: %w", assetID, err)
	}
	if assetBin == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, assetID)
	}
	var asset Asset
	if err := json.Unmarshal(assetBin, &asset); err != nil {
		return nil, fmt.Errorf("failed to decode asset %s: %w", assetID, err)
	}
	return &asset, nil
}

func (r *Registry) putAsset(asset *Asset) error {
	assetBin, err := json.Marshal(asset)
	if err != nil {
		return err
	}
	return r.store.Set(assetKey(asset.ID), assetBin)
}

// OwnerOf returns the current owner of the asset.
func (r *Registry) OwnerOf(assetID string) (string, error) {
	asset, err := r.Asset(assetID)
	if err != nil {
		return "", err
	}
	return asset.Owner, nil
}

// Exists reports whether the asset has been minted and not burned.
func (r *Registry) Exists(assetID string) (bool, error) {
	assetBin, err := r.store.Get(assetKey(assetID))
	if err != nil {
		return false, fmt.Errorf("failed to read asset %s: %w", assetID, err)
	}
	return assetBin != nil, nil
}

// Mint creates a new asset owned by to.
func (r *Registry) Mint(to, assetID string) error {
	if assetID == "" || to == "" {
		return fmt.Errorf("%w: empty id or owner", ErrInvalidAsset)
	}
	exists, err := r.Exists(assetID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, assetID)
	}
	return r.putAsset(&Asset{ID: assetID, Owner: to})
}

// Approve lets operator transfer the asset once. Only the owner may approve;
// an empty operator clears the approval.
func (r *Registry) Approve(caller, operator, assetID string) error {
	asset, err := r.Asset(assetID)
	if err != nil {
		return err
	}
	if asset.Owner != caller {
		return fmt.Errorf("%w: only the owner of %s can approve an operator", ErrNotAuthorized, assetID)
	}
	asset.Approved = operator
	return r.putAsset(asset)
}

// Approved returns the operator currently approved for the asset.
func (r *Registry) Approved(assetID string) (string, error) {
	asset, err := r.Asset(assetID)
	if err != nil {
		return "", err
	}
	return asset.Approved, nil
}

// TransferFrom moves the asset from from to to on behalf of operator, who
// must be the owner or the approved operator.
func (r *Registry) TransferFrom(operator, from, to, assetID string) error {
	if to == "" {
		return fmt.Errorf("%w: empty recipient", ErrInvalidAsset)
	}
	asset, err := r.Asset(assetID)
	if err != nil {
		return err
	}
	if asset.Owner != from {
		return fmt.Errorf("%w: %s is not owned by %s", ErrNotAuthorized, assetID, from)
	}
	if operator != asset.Owner && operator != asset.Approved {
		return fmt.Errorf("%w: %s may not transfer %s", ErrNotAuthorized, operator, assetID)
	}
	asset.Owner = to
	asset.Approved = ""
	return r.putAsset(asset)
}

// Burn destroys the asset. Only its owner may burn it.
func (r *Registry) Burn(caller, assetID string) error {
	asset, err := r.Asset(assetID)
	if err != nil {
		return err
	}
	if asset.Owner != caller {
		return fmt.Errorf("%w: only the owner of %s can burn it", ErrNotAuthorized, assetID)
	}
	return r.store.Delete(assetKey(assetID))
}
