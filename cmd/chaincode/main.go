/*
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"fmt"
	"os"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/spf13/viper"

	"github.com/nandlab/fabric-dutch-auction/internal/log"
	auction "github.com/nandlab/fabric-dutch-auction/smart-contract"
)

// version is set at build time
var version = "dev"

func main() {
	v := viper.New()
	v.SetEnvPrefix("chaincode")
	v.AutomaticEnv()
	v.SetDefault("log_level", log.LogLevelInfo)
	v.SetDefault("log_format", log.LogFormatPlain)
	v.SetDefault("tls_disabled", true)

	logger, err := log.NewDefaultLogger(v.GetString("log_format"), v.GetString("log_level"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.With("module", "chaincode")

	chaincode, err := contractapi.NewChaincode(auction.NewSmartContract(logger))
	if err != nil {
		logger.Error("error creating dutch auction chaincode", "err", err)
		os.Exit(1)
	}
	chaincode.Info.Title = "dutch-auction"
	chaincode.Info.Version = version

	// Without a server address the peer launches the chaincode and we dial it
	address := v.GetString("server_address")
	if address == "" {
		if err := chaincode.Start(); err != nil {
			logger.Error("error starting dutch auction chaincode", "err", err)
			os.Exit(1)
		}
		return
	}

	tlsProps, err := tlsProperties(v)
	if err != nil {
		logger.Error("invalid TLS configuration", "err", err)
		os.Exit(1)
	}
	server := &shim.ChaincodeServer{
		CCID:     v.GetString("id"),
		Address:  address,
		CC:       chaincode,
		TLSProps: tlsProps,
	}
	logger.Info("starting chaincode server", "address", address, "ccid", server.CCID)
	if err := server.Start(); err != nil {
		logger.Error("error starting dutch auction chaincode server", "err", err)
		os.Exit(1)
	}
}

// tlsProperties reads the key and certificates named by CHAINCODE_TLS_KEY,
// CHAINCODE_TLS_CERT and CHAINCODE_CLIENT_CA_CERT
func tlsProperties(v *viper.Viper) (shim.TLSProperties, error) {
	if v.GetBool("tls_disabled") {
		return shim.TLSProperties{Disabled: true}, nil
	}
	key, err := os.ReadFile(v.GetString("tls_key"))
	if err != nil {
		return shim.TLSProperties{}, fmt.Errorf("could not read TLS key: %w", err)
	}
	cert, err := os.ReadFile(v.GetString("tls_cert"))
	if err != nil {
		return shim.TLSProperties{}, fmt.Errorf("could not read TLS certificate: %w", err)
	}
	props := shim.TLSProperties{Key: key, Cert: cert}
	if path := v.GetString("client_ca_cert"); path != "" {
		if props.ClientCACerts, err = os.ReadFile(path); err != nil {
			return shim.TLSProperties{}, fmt.Errorf("could not read client CA certificate: %w", err)
		}
	}
	return props, nil
}
