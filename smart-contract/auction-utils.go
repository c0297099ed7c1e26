/*
SPDX-License-Identifier: Apache-2.0
*/

package auction

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/nandlab/fabric-dutch-auction/internal/engine"
	"github.com/nandlab/fabric-dutch-auction/internal/ledger"
	"github.com/nandlab/fabric-dutch-auction/internal/registry"
	"github.com/nandlab/fabric-dutch-auction/internal/state"
)

// organizerKey holds the identity that initialized the ledger
const organizerKey = "organizer"

// transaction binds the engine and its collaborators to one journal over
// the world state of the current Fabric transaction
type transaction struct {
	journal  *state.Journal
	ledger   *ledger.Ledger
	registry *registry.Registry
	engine   *engine.Engine
	caller   string
}

// begin prepares a transaction for the submitting client
func (s *SmartContract) begin(ctx contractapi.TransactionContextInterface) (*transaction, error) {
	caller, err := getSubmittingClientIdentity(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get client identity: %v", err)
	}
	txTime, err := getTxTime(ctx)
	if err != nil {
		return nil, err
	}

	journal := state.NewJournal(state.NewStubStore(ctx.GetStub()))
	organizer, err := journal.Get(organizerKey)
	if err != nil {
		return nil, fmt.Errorf("could not get the organizer: %v", err)
	}

	tx := &transaction{
		journal:  journal,
		ledger:   ledger.New(journal),
		registry: registry.New(journal),
		caller:   caller,
	}
	tx.engine = engine.New(journal, tx.ledger, tx.registry,
		engine.Config{EscrowAccount: EscrowAccountID, Organizer: string(organizer)},
		engine.WithClock(func() time.Time { return txTime }),
		engine.WithLogger(s.log().With("tx", ctx.GetStub().GetTxID())),
	)
	return tx, nil
}

// commit writes the buffered changes to the world state
func (tx *transaction) commit() error {
	if err := tx.journal.Commit(); err != nil {
		return fmt.Errorf("could not save the world state: %v", err)
	}
	return nil
}

// setEvent sets the event of the transaction which can be received by
// contract users. Fabric keeps only one event per transaction.
func setEvent(ctx contractapi.TransactionContextInterface, name string, payload interface{}) error {
	if payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}
	payloadBin, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return ctx.GetStub().SetEvent(name, payloadBin)
}
