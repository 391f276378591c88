package evm

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Maphikza/iqube-ops/internal/ledger"
)

// TransactionStatus reads the receipt of txHash from b. A transaction that
// is not yet mined is reported unconfirmed without error.
func TransactionStatus(ctx context.Context, b Backend, txHash string) (TxStatus, error) {
	if !isHash(txHash) {
		return TxStatus{}, fmt.Errorf("invalid transaction hash %q", txHash)
	}
	receipt, err := b.TransactionReceipt(ctx, common.HexToHash(txHash))
	if errors.Is(err, ethereum.NotFound) {
		return TxStatus{}, nil
	}
	if err != nil {
		return TxStatus{}, fmt.Errorf("failed to fetch receipt: %w", err)
	}
	st := TxStatus{
		Confirmed: receipt.Status == types.ReceiptStatusSuccessful,
		GasUsed:   receipt.GasUsed,
	}
	if receipt.BlockNumber != nil {
		st.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return st, nil
}

// LedgerTransactionStatus asks the evm_rpc service for the receipt instead
// of a node.
func LedgerTransactionStatus(ctx context.Context, c *ledger.Client, chainID uint32, txHash string) (TxStatus, error) {
	r, err := c.GetEVMTransactionReceipt(ctx, chainID, txHash)
	if err != nil {
		return TxStatus{}, err
	}
	return TxStatus{Confirmed: r.Status, BlockNumber: r.BlockNumber, GasUsed: r.GasUsed}, nil
}

func isHash(s string) bool {
	b, err := hexutil.Decode(s)
	return err == nil && len(b) == common.HashLength
}
