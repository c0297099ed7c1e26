/*
SPDX-License-Identifier: Apache-2.0
*/

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nandlab/fabric-dutch-auction/internal/engine"
	"github.com/nandlab/fabric-dutch-auction/internal/ledger"
	"github.com/nandlab/fabric-dutch-auction/internal/registry"
)

type RegisterAuctionRequest struct {
	AssetID    string `json:"assetId"`
	StartPrice uint64 `json:"startPrice"`
	EndPrice   uint64 `json:"endPrice"`
	Duration   uint64 `json:"duration"`
}

type PriceResponse struct {
	AuctionID string `json:"auctionId"`
	Price     uint64 `json:"price"`
}

type TransferRequest struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type ApproveRequest struct {
	Spender string `json:"spender"`
	Amount  uint64 `json:"amount"`
}

type MintRequest struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

type AllowanceResponse struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  uint64 `json:"amount"`
}

type MintAssetRequest struct {
	ID string `json:"id"`
}

type ApproveAssetRequest struct {
	Operator string `json:"operator"`
}

type TransferAssetRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Kind  string `json:"kind"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

var errMissingAccount = errors.New("missing " + AccountHeader + " header")

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"escrow": s.node.EscrowAccount(),
	})
}

/**************** AUCTIONS ****************/

func (s *Server) registerAuction(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req RegisterAuctionRequest
	if !s.decode(w, r, &req) {
		return
	}
	auction, err := s.node.RegisterAuction(caller, req.AssetID, req.StartPrice, req.EndPrice, req.Duration)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, auction)
}

func (s *Server) getAuction(w http.ResponseWriter, r *http.Request) {
	auction, err := s.node.Auction(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, auction)
}

func (s *Server) currentPrice(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "id")
	price, err := s.node.CurrentPrice(auctionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PriceResponse{AuctionID: auctionID, Price: price})
}

func (s *Server) settle(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	receipt, err := s.node.Settle(chi.URLParam(r, "id"), caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	auction, err := s.node.Cancel(chi.URLParam(r, "id"), caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, auction)
}

func (s *Server) getReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.node.Receipt(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) activeAuction(w http.ResponseWriter, r *http.Request) {
	auction, err := s.node.ActiveAuctionFor(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, auction)
}

/**************** TOKEN ****************/

func (s *Server) getToken(w http.ResponseWriter, r *http.Request) {
	meta, err := s.node.Token()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.node.Account(chi.URLParam(r, "account"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (s *Server) getAllowance(w http.ResponseWriter, r *http.Request) {
	owner, spender := chi.URLParam(r, "account"), chi.URLParam(r, "spender")
	amount, err := s.node.Allowance(owner, spender)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AllowanceResponse{Owner: owner, Spender: spender, Amount: amount})
}

func (s *Server) transfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req TransferRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.writeResult(w, s.node.Transfer(caller, req.To, req.Amount))
}

func (s *Server) approve(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req ApproveRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.writeResult(w, s.node.Approve(caller, req.Spender, req.Amount))
}

func (s *Server) mint(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req MintRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.writeResult(w, s.node.Mint(caller, req.Account, req.Amount))
}

func (s *Server) freeze(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	s.writeResult(w, s.node.Freeze(caller, chi.URLParam(r, "account")))
}

func (s *Server) unfreeze(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	s.writeResult(w, s.node.Unfreeze(caller, chi.URLParam(r, "account")))
}

/**************** ASSETS ****************/

func (s *Server) mintAsset(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req MintAssetRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.node.MintAsset(caller, req.ID); err != nil {
		s.writeError(w, err)
		return
	}
	asset, err := s.node.Asset(req.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

func (s *Server) getAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := s.node.Asset(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (s *Server) approveAsset(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req ApproveAssetRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.writeResult(w, s.node.ApproveAsset(caller, req.Operator, chi.URLParam(r, "id")))
}

func (s *Server) transferAsset(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req TransferAssetRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.writeResult(w, s.node.TransferAsset(caller, req.From, req.To, chi.URLParam(r, "id")))
}

func (s *Server) burnAsset(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	s.writeResult(w, s.node.BurnAsset(caller, chi.URLParam(r, "id")))
}

/**************** HELPERS ****************/

// caller returns the account in the request header, answering 401 when
// there is none
func (s *Server) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	account := r.Header.Get(AccountHeader)
	if account == "" {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Kind:  engine.AuthorizationError.String(),
			Error: errMissingAccount.Error(),
		})
		return "", false
	}
	return account, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Kind:  engine.ValidationError.String(),
			Error: fmt.Sprintf("failed to parse request: %v", err),
		})
		return false
	}
	return true
}

func (s *Server) writeResult(w http.ResponseWriter, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, kind := classify(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	writeJSON(w, status, ErrorResponse{
		Kind:  kind,
		Code:  engine.CodeOf(err),
		Error: err.Error(),
	})
}

// classify maps an error to an HTTP status and an error kind. Engine errors
// carry their kind; ledger and registry errors are classified by sentinel.
func classify(err error) (int, string) {
	var engineErr *engine.Error
	if errors.As(err, &engineErr) {
		return kindStatus(engineErr.Kind), engineErr.Kind.String()
	}

	var kind engine.Kind
	switch {
	case errors.Is(err, ledger.ErrInvalidAccount), errors.Is(err, ledger.ErrOverflow),
		errors.Is(err, registry.ErrInvalidAsset):
		kind = engine.ValidationError
	case errors.Is(err, registry.ErrAlreadyExists), errors.Is(err, ledger.ErrAlreadyInitialized):
		kind = engine.StateError
	case errors.Is(err, ledger.ErrNotAuthorized), errors.Is(err, registry.ErrNotAuthorized):
		kind = engine.AuthorizationError
	case errors.Is(err, ledger.ErrInsufficientFunds), errors.Is(err, ledger.ErrInsufficientAllowance),
		errors.Is(err, ledger.ErrTransferBlocked):
		kind = engine.LedgerError
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, ledger.ErrNotInitialized):
		kind = engine.NotFoundError
	default:
		kind = engine.InternalError
	}
	return kindStatus(kind), kind.String()
}

func kindStatus(kind engine.Kind) int {
	switch kind {
	case engine.ValidationError:
		return http.StatusBadRequest
	case engine.StateError:
		return http.StatusConflict
	case engine.AuthorizationError:
		return http.StatusForbidden
	case engine.LedgerError:
		return http.StatusPaymentRequired
	case engine.NotFoundError:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
