package evm

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Maphikza/iqube-ops/internal/logger"
	"github.com/Maphikza/iqube-ops/internal/metrics"
)

// Minter mints iQube tokens on a fixed contract through a wallet.
type Minter struct {
	wallet   WalletProvider
	chain    ChainParams
	contract common.Address
	abi      abi.ABI
	now      func() time.Time
}

func NewMinter(wallet WalletProvider, chain ChainParams, contract common.Address) (*Minter, error) {
	parsed, err := parseQubeABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract ABI: %w", err)
	}
	return &Minter{
		wallet:   wallet,
		chain:    chain,
		contract: contract,
		abi:      parsed,
		now:      time.Now,
	}, nil
}

// EnsureChain selects the target chain, registering it first when the
// wallet does not know it.
func (m *Minter) EnsureChain(ctx context.Context) error {
	err := m.wallet.SwitchChain(ctx, m.chain.ChainID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUnrecognizedChain) {
		return fmt.Errorf("failed to switch chain: %w", err)
	}

	logger.Info("Chain unknown to wallet, adding it", "chain_id", m.chain.HexChainID(), "name", m.chain.ChainName)
	if err := m.wallet.AddChain(ctx, m.chain); err != nil {
		return fmt.Errorf("failed to add chain: %w", err)
	}
	if err := m.wallet.SwitchChain(ctx, m.chain.ChainID); err != nil {
		return fmt.Errorf("failed to switch chain after adding it: %w", err)
	}
	return nil
}

func randomKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Mint calls mintQube with a placeholder URI and a fresh key, waits for one
// confirmation and recovers the token id from the Transfer event. The view
// reads that follow are best-effort.
func (m *Minter) Mint(ctx context.Context) (*MintResult, error) {
	accounts, err := m.wallet.RequestAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to request accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}
	from := accounts[0]

	if err := m.EnsureChain(ctx); err != nil {
		return nil, err
	}

	key, err := randomKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	res := &MintResult{
		Minter:        from.Hex(),
		MetaURI:       fmt.Sprintf("ipfs://iqube-%d", m.now().UnixNano()),
		EncryptionKey: key,
	}

	data, err := m.abi.Pack("mintQube", res.MetaURI, res.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to pack mint call: %w", err)
	}

	tx, err := m.wallet.SendTransaction(ctx, from, m.contract, data)
	if err != nil {
		metrics.EVMMints.WithLabelValues("send_failed").Inc()
		logger.Error("Mint transaction rejected", "from", from.Hex(), "error", err)
		return nil, fmt.Errorf("failed to send mint transaction: %w", err)
	}
	res.TxHash = tx.Hash().Hex()
	logger.Info("Mint transaction sent", "tx_hash", res.TxHash, "uri", res.MetaURI)

	receipt, err := bind.WaitMined(ctx, m.wallet.Backend(), tx)
	if err != nil {
		return res, fmt.Errorf("failed waiting for mint transaction: %w", err)
	}
	res.BlockNumber = receipt.BlockNumber.Uint64()
	if receipt.Status != types.ReceiptStatusSuccessful {
		metrics.EVMMints.WithLabelValues("reverted").Inc()
		return res, ErrReverted
	}
	metrics.EVMMints.WithLabelValues("ok").Inc()

	tokenID, err := ParseTransferTokenID(receipt.Logs, m.contract)
	if err != nil {
		logger.Warn("Could not recover token id", "tx_hash", res.TxHash, "error", err)
		return res, nil
	}
	res.TokenID = tokenID
	m.readBack(ctx, res)
	logger.Info("Minted iQube", "token_id", tokenID.String(), "block", res.BlockNumber)
	return res, nil
}

// readBack fills the view fields of res, leaving any that fail empty.
func (m *Minter) readBack(ctx context.Context, res *MintResult) {
	if uri, err := callString(ctx, m, "tokenURI", res.TokenID); err == nil {
		res.TokenURI = uri
	} else {
		logger.Debug("tokenURI read failed", "error", err)
	}

	if out, err := m.call(ctx, "ownerOf", res.TokenID); err == nil {
		if owner, ok := out[0].(common.Address); ok {
			res.Owner = owner.Hex()
		}
	} else {
		logger.Debug("ownerOf read failed", "error", err)
	}

	if key, err := callString(ctx, m, "getEncryptionKey", res.TokenID); err == nil {
		res.StoredKey = key
	} else {
		logger.Debug("getEncryptionKey read failed", "error", err)
	}
}

func (m *Minter) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := m.abi.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	out, err := m.wallet.Backend().CallContract(ctx, ethereum.CallMsg{To: &m.contract, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	values, err := m.abi.Unpack(method, out)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return values, nil
}

func callString(ctx context.Context, m *Minter, method string, args ...interface{}) (string, error) {
	out, err := m.call(ctx, method, args...)
	if err != nil {
		return "", err
	}
	s, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("%s returned %T", method, out[0])
	}
	return s, nil
}

// ParseTransferTokenID returns the token id from the first ERC-721 Transfer
// event emitted by contract.
func ParseTransferTokenID(logs []*types.Log, contract common.Address) (*big.Int, error) {
	for _, l := range logs {
		if l == nil || l.Address != contract {
			continue
		}
		if len(l.Topics) == 4 && l.Topics[0] == transferTopic {
			return new(big.Int).SetBytes(l.Topics[3].Bytes()), nil
		}
	}
	return nil, ErrNoTokenID
}
