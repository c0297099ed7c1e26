/*
SPDX-License-Identifier: Apache-2.0
*/

package auction

import (
	"fmt"
	"time"

	"github.com/golang/protobuf/ptypes"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// getSubmittingClientIdentity returns the unique id of the submitting client,
// derived from its X.509 subject and issuer
func getSubmittingClientIdentity(ctx contractapi.TransactionContextInterface) (string, error) {
	clientID, err := ctx.GetClientIdentity().GetID()
	if err != nil {
		return "", fmt.Errorf("failed to read clientID: %v", err)
	}
	if clientID == "" {
		return "", fmt.Errorf("client identity is empty")
	}
	return clientID, nil
}

// getTxTime returns the transaction timestamp chosen by the client.
// Every endorser sees the same value, so prices computed from it agree.
func getTxTime(ctx contractapi.TransactionContextInterface) (time.Time, error) {
	txTimestamp, err := ctx.GetStub().GetTxTimestamp()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read the transaction timestamp: %v", err)
	}
	txTime, err := ptypes.Timestamp(txTimestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid transaction timestamp: %v", err)
	}
	return txTime, nil
}
