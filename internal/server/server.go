/*
SPDX-License-Identifier: Apache-2.0
*/

// Package server exposes a dev node over HTTP/JSON, with a websocket
// stream of settlement receipts.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nandlab/fabric-dutch-auction/internal/config"
	"github.com/nandlab/fabric-dutch-auction/internal/engine"
	"github.com/nandlab/fabric-dutch-auction/internal/ledger"
	"github.com/nandlab/fabric-dutch-auction/internal/log"
	"github.com/nandlab/fabric-dutch-auction/internal/node"
	"github.com/nandlab/fabric-dutch-auction/internal/registry"
)

// AccountHeader carries the caller identity. The dev node trusts it.
const AccountHeader = "X-Account"

// Node is the set of operations the server exposes.
type Node interface {
	EscrowAccount() string

	RegisterAuction(seller, assetID string, startPrice, endPrice, duration uint64) (*engine.Auction, error)
	CurrentPrice(auctionID string) (uint64, error)
	Settle(auctionID, buyer string) (*engine.Receipt, error)
	Cancel(auctionID, caller string) (*engine.Auction, error)
	Auction(auctionID string) (*engine.Auction, error)
	Receipt(auctionID string) (*engine.Receipt, error)
	ActiveAuctionFor(assetID string) (*engine.Auction, error)

	Token() (*ledger.Metadata, error)
	Account(account string) (*node.Account, error)
	Allowance(owner, spender string) (uint64, error)
	Transfer(from, to string, amount uint64) error
	Approve(owner, spender string, amount uint64) error
	Mint(caller, account string, amount uint64) error
	Freeze(caller, account string) error
	Unfreeze(caller, account string) error

	MintAsset(owner, assetID string) error
	Asset(assetID string) (*registry.Asset, error)
	ApproveAsset(caller, operator, assetID string) error
	TransferAsset(operator, from, to, assetID string) error
	BurnAsset(caller, assetID string) error

	Subscribe(capacity int) (string, <-chan engine.Receipt)
	Unsubscribe(id string)
}

var _ Node = (*node.Node)(nil)

// receiptBuffer is how many receipts a websocket subscriber may lag behind
const receiptBuffer = 64

// Server serves the HTTP API of a node.
type Server struct {
	node   Node
	cfg    *config.Config
	logger log.Logger

	upgrader   websocket.Upgrader
	httpServer *http.Server

	quit     chan struct{}
	quitOnce sync.Once
}

func New(n Node, cfg *config.Config, logger log.Logger) *Server {
	s := &Server{
		node:   n,
		cfg:    cfg,
		logger: logger,
		quit:   make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.httpServer = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router returns the handler of every route.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", AccountHeader},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/auctions", func(r chi.Router) {
		r.Post("/", s.registerAuction)
		r.Get("/{id}", s.getAuction)
		r.Get("/{id}/price", s.currentPrice)
		r.Post("/{id}/settle", s.settle)
		r.Post("/{id}/cancel", s.cancel)
	})
	r.Get("/receipts/stream", s.streamReceipts)
	r.Get("/receipts/{id}", s.getReceipt)

	r.Get("/token", s.getToken)
	r.Post("/token/transfer", s.transfer)
	r.Post("/token/approve", s.approve)
	r.Post("/token/mint", s.mint)
	r.Get("/accounts/{account}", s.getAccount)
	r.Get("/accounts/{account}/allowances/{spender}", s.getAllowance)
	r.Post("/accounts/{account}/freeze", s.freeze)
	r.Post("/accounts/{account}/unfreeze", s.unfreeze)

	r.Route("/assets", func(r chi.Router) {
		r.Post("/", s.mintAsset)
		r.Get("/{id}", s.getAsset)
		r.Get("/{id}/auction", s.activeAuction)
		r.Post("/{id}/approve", s.approveAsset)
		r.Post("/{id}/transfer", s.transferAsset)
		r.Delete("/{id}", s.burnAsset)
	})
	return r
}

// ListenAndServe serves the API on the configured address until Shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves the API on ln. It returns nil at once when Shutdown was
// already called.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("serving API", "addr", ln.Addr().String())
	if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and ends every receipt stream.
func (s *Server) Shutdown(ctx context.Context) error {
	s.quitOnce.Do(func() { close(s.quit) })
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.CORSAllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("served request",
			"method", r.Method, "path", r.URL.Path, "status", ww.Status(),
			"duration", time.Since(start), "request_id", middleware.GetReqID(r.Context()))
	})
}
