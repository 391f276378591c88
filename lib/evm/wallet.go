package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/Maphikza/iqube-ops/internal/logger"
)

// EthClient is the subset of ethclient.Client used by RPCWallet.
type EthClient interface {
	Backend
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	Close()
}

// Dialer opens a connection to an RPC endpoint.
type Dialer func(ctx context.Context, rpcURL string) (EthClient, error)

// DialEthClient is the Dialer backed by ethclient.
func DialEthClient(ctx context.Context, rpcURL string) (EthClient, error) {
	c, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// RPCWallet is a WalletProvider holding one ECDSA key and a table of known
// networks. It starts on the network of its initial RPC endpoint.
type RPCWallet struct {
	key  *ecdsa.PrivateKey
	from common.Address
	dial Dialer

	mu       sync.Mutex
	networks map[uint64]string
	client   EthClient
	chainID  *big.Int
}

func NewRPCWallet(ctx context.Context, hexKey, rpcURL string, dial Dialer) (*RPCWallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	if dial == nil {
		dial = DialEthClient
	}
	w := &RPCWallet{
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		dial:     dial,
		networks: make(map[uint64]string),
	}

	client, chainID, err := w.connect(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	w.client, w.chainID = client, chainID
	w.networks[chainID.Uint64()] = rpcURL
	return w, nil
}

func (w *RPCWallet) connect(ctx context.Context, rpcURL string) (EthClient, *big.Int, error) {
	client, err := w.dial(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", rpcURL, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to get chain id from %s: %w", rpcURL, err)
	}
	return client, chainID, nil
}

func (w *RPCWallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return []common.Address{w.from}, nil
}

// SwitchChain selects a known network. Unknown chains yield
// ErrUnrecognizedChain.
func (w *RPCWallet) SwitchChain(ctx context.Context, chainID uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.chainID.Uint64() == chainID {
		return nil
	}
	rpcURL, ok := w.networks[chainID]
	if !ok {
		return ErrUnrecognizedChain
	}
	client, id, err := w.connect(ctx, rpcURL)
	if err != nil {
		return err
	}
	w.client.Close()
	w.client, w.chainID = client, id
	logger.Info("Switched chain", "chain_id", chainID)
	return nil
}

// AddChain registers params after checking that its RPC endpoint serves the
// advertised chain.
func (w *RPCWallet) AddChain(ctx context.Context, params ChainParams) error {
	if len(params.RPCURLs) == 0 || params.RPCURLs[0] == "" {
		return fmt.Errorf("chain %s has no RPC URL", params.HexChainID())
	}
	client, id, err := w.connect(ctx, params.RPCURLs[0])
	if err != nil {
		return err
	}
	client.Close()
	if id.Uint64() != params.ChainID {
		return fmt.Errorf("RPC %s serves chain %d, expected %d", params.RPCURLs[0], id.Uint64(), params.ChainID)
	}

	w.mu.Lock()
	w.networks[params.ChainID] = params.RPCURLs[0]
	w.mu.Unlock()
	logger.Info("Added chain", "chain_id", params.HexChainID(), "name", params.ChainName)
	return nil
}

// SendTransaction signs and submits an EIP-155 legacy transaction calling to
// with data.
func (w *RPCWallet) SendTransaction(ctx context.Context, from, to common.Address, data []byte) (*types.Transaction, error) {
	if from != w.from {
		return nil, fmt.Errorf("account %s is not held by this wallet", from.Hex())
	}

	w.mu.Lock()
	client, chainID := w.client, w.chainID
	w.mu.Unlock()

	nonce, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	gas, err := client.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.NewEIP155Signer(chainID), w.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := client.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	logger.Debug("Transaction submitted", "hash", signed.Hash().Hex(), "nonce", nonce, "gas", gas)
	return signed, nil
}

func (w *RPCWallet) Backend() Backend {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.client
}

func (w *RPCWallet) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.client.Close()
}
