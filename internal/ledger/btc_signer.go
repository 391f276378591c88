package ledger

import "context"

// GetBitcoinAddress derives the service-held address for derivationPath.
func (c *Client) GetBitcoinAddress(ctx context.Context, derivationPath [][]byte) (BitcoinAddress, error) {
	if derivationPath == nil {
		derivationPath = [][]byte{}
	}
	return callVariant[BitcoinAddress](ctx, c, BTCSigner, "get_btc_address", derivationPath)
}

// CreateAnchorTransaction asks the signer to build an unsigned transaction
// committing dataRoot, spending utxos and paying amount satoshis.
func (c *Client) CreateAnchorTransaction(ctx context.Context, dataRoot string, utxos []UTXO, amount uint64) (UnsignedTransaction, error) {
	if utxos == nil {
		utxos = []UTXO{}
	}
	return callVariant[UnsignedTransaction](ctx, c, BTCSigner, "create_anchor_transaction", dataRoot, utxos, amount)
}

func (c *Client) SignTransaction(ctx context.Context, tx UnsignedTransaction, derivationPath [][]byte) (SignedTransaction, error) {
	if derivationPath == nil {
		derivationPath = [][]byte{}
	}
	return callVariant[SignedTransaction](ctx, c, BTCSigner, "sign_transaction", tx, derivationPath)
}

// BroadcastTransaction returns the txid reported by the signer.
func (c *Client) BroadcastTransaction(ctx context.Context, rawTx string) (string, error) {
	return callVariant[string](ctx, c, BTCSigner, "broadcast_transaction", rawTx)
}

func (c *Client) GetSignedTransaction(ctx context.Context, txid string) (*SignedTransaction, error) {
	var tx *SignedTransaction
	err := c.call(ctx, BTCSigner, "get_transaction", &tx, txid)
	return tx, err
}

func (c *Client) GetAddressInfo(ctx context.Context, address string) (*BitcoinAddress, error) {
	var a *BitcoinAddress
	err := c.call(ctx, BTCSigner, "get_address_info", &a, address)
	return a, err
}

func (c *Client) GetAllAddresses(ctx context.Context) ([]BitcoinAddress, error) {
	var addrs []BitcoinAddress
	err := c.call(ctx, BTCSigner, "get_all_addresses", &addrs)
	return addrs, err
}
