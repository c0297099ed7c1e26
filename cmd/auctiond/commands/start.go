/*
SPDX-License-Identifier: Apache-2.0
*/

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nandlab/fabric-dutch-auction/internal/engine"
	"github.com/nandlab/fabric-dutch-auction/internal/node"
	"github.com/nandlab/fabric-dutch-auction/internal/server"
)

const shutdownTimeout = 10 * time.Second

// StartCmd runs the dev node until it receives SIGINT or SIGTERM
var StartCmd = &cobra.Command{
	Use:     "start",
	Aliases: []string{"node", "run"},
	Short:   "Run the auction dev node",
	RunE:    startNode,
}

func init() {
	AddNodeFlags(StartCmd)
}

// AddNodeFlags exposes some common configuration options on the command-line
func AddNodeFlags(cmd *cobra.Command) {
	cmd.Flags().String("listen_addr", config.ListenAddr, "HTTP API listen address")
	cmd.Flags().String("db_backend", config.DBBackend, "database backend: memdb | goleveldb")
	cmd.Flags().String("organizer", config.Organizer, "account that may cancel any auction")
	cmd.Flags().String("escrow_account", config.EscrowAccount, "account holding listed assets")
}

func startNode(cmd *cobra.Command, args []string) error {
	db, err := node.OpenDB(config)
	if err != nil {
		return fmt.Errorf("could not open database: %w", err)
	}
	genesis, err := node.LoadGenesis(config)
	if err != nil {
		return err
	}

	n, err := node.New(db,
		engine.Config{EscrowAccount: config.EscrowAccount, Organizer: config.Organizer},
		genesis,
		node.WithLogger(logger.With("module", "node")),
		node.WithMetrics(engine.PrometheusMetrics(config.MetricsNamespace)),
	)
	if err != nil {
		db.Close()
		return err
	}
	defer func() {
		if err := n.Close(); err != nil {
			logger.Error("error closing node", "err", err)
		}
	}()

	srv := server.New(n, config, logger.With("module", "server"))
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("caught signal, shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
