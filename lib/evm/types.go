package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/spf13/viper"
)

var (
	// ErrUnrecognizedChain mirrors wallet error 4902: the chain must be added
	// before it can be selected.
	ErrUnrecognizedChain = errors.New("unrecognized chain (4902)")
	ErrNoAccounts        = errors.New("wallet returned no accounts")
	ErrReverted          = errors.New("transaction reverted")
	ErrNoTokenID         = errors.New("no Transfer event in receipt")
)

// NativeCurrency describes a chain's gas token.
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// ChainParams are the fields a wallet needs to register a network.
type ChainParams struct {
	ChainID           uint64         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
}

// HexChainID renders the chain id the way wallets expect it, e.g. 0x13882.
func (p ChainParams) HexChainID() string {
	return fmt.Sprintf("0x%x", p.ChainID)
}

// ChainParamsFromConfig builds the target chain from the evm.* keys.
func ChainParamsFromConfig() ChainParams {
	symbol := viper.GetString("evm.currency_symbol")
	return ChainParams{
		ChainID:           viper.GetUint64("evm.chain_id"),
		ChainName:         viper.GetString("evm.chain_name"),
		RPCURLs:           []string{viper.GetString("evm.rpc_url")},
		BlockExplorerURLs: []string{viper.GetString("evm.explorer_url")},
		NativeCurrency:    NativeCurrency{Name: symbol, Symbol: symbol, Decimals: 18},
	}
}

// Backend is the read side of a chain connection: receipts and calls.
type Backend interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// WalletProvider is an account holder able to select networks and submit
// transactions.
type WalletProvider interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	SwitchChain(ctx context.Context, chainID uint64) error
	AddChain(ctx context.Context, params ChainParams) error
	SendTransaction(ctx context.Context, from, to common.Address, data []byte) (*types.Transaction, error)
	Backend() Backend
}

// MintResult describes a completed mint. The token fields are empty when
// they could not be recovered.
type MintResult struct {
	TxHash        string   `json:"txHash"`
	BlockNumber   uint64   `json:"blockNumber"`
	Minter        string   `json:"minter"`
	MetaURI       string   `json:"metaUri"`
	EncryptionKey string   `json:"encryptionKey"`
	TokenID       *big.Int `json:"tokenId,omitempty"`
	TokenURI      string   `json:"tokenUri,omitempty"`
	Owner         string   `json:"owner,omitempty"`
	StoredKey     string   `json:"storedKey,omitempty"`
}

// TxStatus is the inclusion state of an EVM transaction.
type TxStatus struct {
	Confirmed   bool   `json:"confirmed"`
	BlockNumber uint64 `json:"blockNumber"`
	GasUsed     uint64 `json:"gasUsed"`
}
