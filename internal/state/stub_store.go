/*
SPDX-License-Identifier: Apache-2.0
*/

package state

import (
	"github.com/hyperledger/fabric-chaincode-go/shim"
)

// StubStore reads and writes the world state of a Fabric transaction.
//
// Fabric does not let a transaction read its own writes, so StubStore is
// meant to back a Journal rather than be used directly.
type StubStore struct {
	stub shim.ChaincodeStubInterface
}

var _ Store = StubStore{}

func NewStubStore(stub shim.ChaincodeStubInterface) StubStore {
	return StubStore{stub: stub}
}

func (s StubStore) Get(key string) ([]byte, error) {
	return s.stub.GetState(key)
}

func (s StubStore) Set(key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	return s.stub.PutState(key, value)
}

func (s StubStore) Delete(key string) error {
	return s.stub.DelState(key)
}
