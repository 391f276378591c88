package main

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Maphikza/iqube-ops/lib/evm"
)

var evmCmd = &cobra.Command{
	Use:   "evm",
	Short: "Mint and inspect iQube tokens on the configured EVM chain",
}

// openWallet connects a key wallet to rpcURL, or to the chain's own
// endpoint when rpcURL is empty.
func openWallet(ctx context.Context, chain evm.ChainParams, rpcURL string) (*evm.RPCWallet, error) {
	key := viper.GetString("evm.private_key")
	if key == "" {
		return nil, errors.New("evm.private_key is not configured")
	}
	if rpcURL == "" {
		rpcURL = chain.RPCURLs[0]
	}
	return evm.NewRPCWallet(ctx, key, rpcURL, evm.DialEthClient)
}

var evmWalletRPC string

var evmMintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Mint an iQube token and read back its URI, owner and key",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		chain := evm.ChainParamsFromConfig()
		contract := viper.GetString("evm.contract_address")
		if !common.IsHexAddress(contract) {
			fail("Invalid contract address %q", contract)
		}

		wallet, err := openWallet(ctx, chain, evmWalletRPC)
		if err != nil {
			fail("Error opening wallet: %v", err)
		}
		defer wallet.Close()

		minter, err := evm.NewMinter(wallet, chain, common.HexToAddress(contract))
		if err != nil {
			fail("Error preparing minter: %v", err)
		}
		res, err := minter.Mint(ctx)
		if err != nil {
			fail("Error minting: %v", err)
		}
		printJSON(res)
	},
}

var evmViaLedger bool

var evmStatusCmd = &cobra.Command{
	Use:   "status [tx-hash]",
	Short: "Show whether an EVM transaction was mined successfully",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()

		chain := evm.ChainParamsFromConfig()
		if evmViaLedger {
			st, err := evm.LedgerTransactionStatus(ctx, newLedgerClient(), uint32(chain.ChainID), args[0])
			if err != nil {
				fail("Error reading status: %v", err)
			}
			printJSON(st)
			return
		}

		client, err := evm.DialEthClient(ctx, chain.RPCURLs[0])
		if err != nil {
			fail("Error connecting to %s: %v", chain.RPCURLs[0], err)
		}
		defer client.Close()

		st, err := evm.TransactionStatus(ctx, client, args[0])
		if err != nil {
			fail("Error reading status: %v", err)
		}
		printJSON(st)
	},
}

func init() {
	evmMintCmd.Flags().StringVar(&evmWalletRPC, "wallet-rpc", "", "RPC endpoint the wallet starts on (default: the target chain)")
	evmStatusCmd.Flags().BoolVar(&evmViaLedger, "via-ledger", false, "ask the evm_rpc service instead of a node")

	evmCmd.AddCommand(evmMintCmd, evmStatusCmd)
}
