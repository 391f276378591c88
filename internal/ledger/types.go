package ledger

// Receipt is a proof-of-state receipt issued for one data hash.
type Receipt struct {
	ID          string   `ic:"id" json:"id"`
	DataHash    string   `ic:"data_hash" json:"data_hash"`
	Timestamp   uint64   `ic:"timestamp" json:"timestamp"`
	MerkleProof []string `ic:"merkle_proof" json:"merkle_proof"`
}

// MerkleBatch groups receipts under one root. The anchor fields are set once
// the batch has been anchored to Bitcoin.
type MerkleBatch struct {
	Root               string    `ic:"root" json:"root"`
	Receipts           []Receipt `ic:"receipts" json:"receipts"`
	CreatedAt          uint64    `ic:"created_at" json:"created_at"`
	BitcoinAnchorTxID  *string   `ic:"btc_anchor_txid" json:"btc_anchor_txid,omitempty"`
	BitcoinBlockHeight *uint64   `ic:"btc_block_height" json:"btc_block_height,omitempty"`
}

// HasReceipt reports whether id is one of the batch's receipts.
func (b MerkleBatch) HasReceipt(id string) bool {
	for _, r := range b.Receipts {
		if r.ID == id {
			return true
		}
	}
	return false
}

type BurnState struct {
	ReceiptID string `ic:"receipt_id" json:"receipt_id"`
	MessageID string `ic:"message_id" json:"message_id"`
	Burned    bool   `ic:"burned" json:"burned"`
	Timestamp uint64 `ic:"timestamp" json:"timestamp"`
}

// DVNMessage is a cross-chain message awaiting or holding attestations.
type DVNMessage struct {
	ID               string `ic:"id" json:"id"`
	SourceChain      uint32 `ic:"source_chain" json:"source_chain"`
	DestinationChain uint32 `ic:"destination_chain" json:"destination_chain"`
	Payload          []byte `ic:"payload" json:"payload"`
	Nonce            uint64 `ic:"nonce" json:"nonce"`
	Sender           string `ic:"sender" json:"sender"`
	Timestamp        uint64 `ic:"timestamp" json:"timestamp"`
}

type Attestation struct {
	MessageID string `ic:"message_id" json:"message_id"`
	Validator string `ic:"validator" json:"validator"`
	Signature []byte `ic:"signature" json:"signature"`
	Timestamp uint64 `ic:"timestamp" json:"timestamp"`
}

type CrossChainTransaction struct {
	ID               string `ic:"id" json:"id"`
	SourceChain      string `ic:"source_chain" json:"source_chain"`
	DestinationChain string `ic:"destination_chain" json:"destination_chain"`
	TxHash           string `ic:"tx_hash" json:"tx_hash"`
	BlockHeight      uint64 `ic:"block_height" json:"block_height"`
	Confirmations    uint32 `ic:"confirmations" json:"confirmations"`
	Status           string `ic:"status" json:"status"`
	Timestamp        uint64 `ic:"timestamp" json:"timestamp"`
}

type BitcoinAddress struct {
	Address        string   `ic:"address" json:"address"`
	PublicKey      []byte   `ic:"public_key" json:"public_key"`
	DerivationPath [][]byte `ic:"derivation_path" json:"derivation_path"`
}

// UTXO as understood by the btc signer service.
type UTXO struct {
	TxID         string `ic:"txid" json:"txid"`
	Vout         uint32 `ic:"vout" json:"vout"`
	Amount       uint64 `ic:"amount" json:"amount"`
	ScriptPubKey []byte `ic:"script_pubkey" json:"script_pubkey"`
}

type TransactionInput struct {
	UTXO     UTXO   `ic:"utxo" json:"utxo"`
	Sequence uint32 `ic:"sequence" json:"sequence"`
}

type TransactionOutput struct {
	Address string `ic:"address" json:"address"`
	Amount  uint64 `ic:"amount" json:"amount"`
}

type UnsignedTransaction struct {
	Inputs   []TransactionInput  `ic:"inputs" json:"inputs"`
	Outputs  []TransactionOutput `ic:"outputs" json:"outputs"`
	Locktime uint32              `ic:"locktime" json:"locktime"`
}

type SignedTransaction struct {
	TxID  string `ic:"txid" json:"txid"`
	RawTx string `ic:"raw_tx" json:"raw_tx"`
	Size  uint32 `ic:"size" json:"size"`
	Fee   uint64 `ic:"fee" json:"fee"`
}

type EVMChainConfig struct {
	ChainID       uint32 `ic:"chain_id" json:"chain_id"`
	Name          string `ic:"name" json:"name"`
	RPCURL        string `ic:"rpc_url" json:"rpc_url"`
	BlockExplorer string `ic:"block_explorer" json:"block_explorer"`
	NativeToken   string `ic:"native_token" json:"native_token"`
}

type EVMLog struct {
	Address  string   `ic:"address" json:"address"`
	Topics   []string `ic:"topics" json:"topics"`
	Data     string   `ic:"data" json:"data"`
	LogIndex uint32   `ic:"log_index" json:"log_index"`
}

type EVMTransactionReceipt struct {
	TxHash           string   `ic:"tx_hash" json:"tx_hash"`
	BlockNumber      uint64   `ic:"block_number" json:"block_number"`
	BlockHash        string   `ic:"block_hash" json:"block_hash"`
	TransactionIndex uint32   `ic:"transaction_index" json:"transaction_index"`
	FromAddress      string   `ic:"from_address" json:"from_address"`
	ToAddress        string   `ic:"to_address" json:"to_address"`
	GasUsed          uint64   `ic:"gas_used" json:"gas_used"`
	Status           bool     `ic:"status" json:"status"`
	Logs             []EVMLog `ic:"logs" json:"logs"`
}

// variant decodes a {"Ok": T} / {"Err": string} service result.
type variant[T any] struct {
	Ok  *T      `ic:"Ok,variant" json:"Ok,omitempty"`
	Err *string `ic:"Err,variant" json:"Err,omitempty"`
}
