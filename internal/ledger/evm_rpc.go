package ledger

import "context"

// InitChainConfigs seeds the evm_rpc service with its chain table.
func (c *Client) InitChainConfigs(ctx context.Context) error {
	return c.call(ctx, EVMRPC, "init_chain_configs", nil)
}

// GetSupportedChains lists configured chains. When the call fails and
// fallbacks are enabled, a canned chain list is returned together with an
// error matching ErrFallback.
func (c *Client) GetSupportedChains(ctx context.Context) ([]EVMChainConfig, error) {
	var chains []EVMChainConfig
	if err := c.call(ctx, EVMRPC, "get_supported_chains", &chains); err != nil {
		if !c.opts.FallbackEnabled {
			return nil, err
		}
		return cannedChains(), c.fallback(EVMRPC, "get_supported_chains", err)
	}
	return chains, nil
}

func (c *Client) GetChainConfig(ctx context.Context, chainID uint32) (*EVMChainConfig, error) {
	var cfg *EVMChainConfig
	err := c.call(ctx, EVMRPC, "get_chain_config", &cfg, chainID)
	return cfg, err
}

func (c *Client) GetEVMTransactionReceipt(ctx context.Context, chainID uint32, txHash string) (EVMTransactionReceipt, error) {
	return callVariant[EVMTransactionReceipt](ctx, c, EVMRPC, "get_transaction_receipt", chainID, txHash)
}

func (c *Client) GetLatestBlockNumber(ctx context.Context, chainID uint32) (uint64, error) {
	return callVariant[uint64](ctx, c, EVMRPC, "get_latest_block_number", chainID)
}
