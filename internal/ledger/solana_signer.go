package ledger

import "context"

// SolanaTxStatus is the confirmation record the signer keeps per signature.
type SolanaTxStatus struct {
	Slot      uint64 `ic:"slot" json:"slot"`
	Signature string `ic:"signature" json:"signature"`
}

// GetSolanaAddress returns the base58 address of the service-held ed25519 key.
func (c *Client) GetSolanaAddress(ctx context.Context) (string, error) {
	var addr string
	err := c.call(ctx, SolanaSigner, "get_solana_address", &addr)
	return addr, err
}

// GetSolanaBalance returns the balance of address in lamports.
func (c *Client) GetSolanaBalance(ctx context.Context, address string) (uint64, error) {
	var lamports uint64
	err := c.call(ctx, SolanaSigner, "get_balance", &lamports, address)
	return lamports, err
}

// RequestAirdrop asks the cluster faucet for lamports and returns the
// airdrop signature.
func (c *Client) RequestAirdrop(ctx context.Context, address string, lamports uint64) (string, error) {
	var sig string
	err := c.call(ctx, SolanaSigner, "request_airdrop", &sig, address, lamports)
	return sig, err
}

// TransferSOL signs and submits a transfer from the service key to to.
func (c *Client) TransferSOL(ctx context.Context, to string, lamports uint64) (string, error) {
	var sig string
	err := c.call(ctx, SolanaSigner, "build_and_send_transfer", &sig, to, lamports)
	return sig, err
}

// GetSolanaTransaction returns nil when the signature is not yet known.
func (c *Client) GetSolanaTransaction(ctx context.Context, signature string) (*SolanaTxStatus, error) {
	var st *SolanaTxStatus
	err := c.call(ctx, SolanaSigner, "get_transaction", &st, signature)
	return st, err
}

func (c *Client) GetLatestBlockhash(ctx context.Context) (string, error) {
	var hash string
	err := c.call(ctx, SolanaSigner, "get_latest_blockhash", &hash)
	return hash, err
}

// SendRawSolanaTransaction submits a base64 encoded signed transaction.
func (c *Client) SendRawSolanaTransaction(ctx context.Context, txBase64 string) (string, error) {
	var sig string
	err := c.call(ctx, SolanaSigner, "send_raw_transaction", &sig, txBase64)
	return sig, err
}
