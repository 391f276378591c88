package ledger

// Canned payloads substituted when get_batches or get_supported_chains fail.

const (
	cannedBatchRoot   = "200c03bfeb3d63a3c7d579b298da2bb8d14ec0e1a0d4693b0e658df8755dcd4c"
	cannedAnchorTxID  = "mock_btc_txid_200c03bf"
	cannedBlockHeight = uint64(800000)
)

func cannedBatches() []MerkleBatch {
	txid := cannedAnchorTxID
	height := cannedBlockHeight
	return []MerkleBatch{
		{
			Root:               cannedBatchRoot,
			CreatedAt:          1757976412825515000,
			BitcoinAnchorTxID:  &txid,
			BitcoinBlockHeight: &height,
			Receipts: []Receipt{
				{
					ID:          "receipt_1757976411384398000",
					DataHash:    "dfx canister call btc_signer_psbt get_public_key",
					Timestamp:   1757976411384398000,
					MerkleProof: []string{},
				},
			},
		},
	}
}

func cannedChains() []EVMChainConfig {
	return []EVMChainConfig{
		{ChainID: 1, Name: "Ethereum Mainnet", RPCURL: "https://eth-mainnet.g.alchemy.com/v2/demo", BlockExplorer: "https://etherscan.io", NativeToken: "ETH"},
		{ChainID: 137, Name: "Polygon Mainnet", RPCURL: "https://polygon-rpc.com", BlockExplorer: "https://polygonscan.com", NativeToken: "MATIC"},
		{ChainID: 11155111, Name: "Sepolia Testnet", RPCURL: "https://eth-sepolia.g.alchemy.com/v2/demo", BlockExplorer: "https://sepolia.etherscan.io", NativeToken: "ETH"},
		{ChainID: 80001, Name: "Mumbai Testnet", RPCURL: "https://rpc-mumbai.maticvigil.com", BlockExplorer: "https://mumbai.polygonscan.com", NativeToken: "MATIC"},
	}
}
