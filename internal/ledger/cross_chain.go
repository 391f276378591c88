package ledger

import "context"

func (c *Client) GetPendingMessages(ctx context.Context) ([]DVNMessage, error) {
	var msgs []DVNMessage
	err := c.call(ctx, CrossChain, "get_pending_messages", &msgs)
	return msgs, err
}

// GetReadyMessages lists messages that reached attestation quorum.
func (c *Client) GetReadyMessages(ctx context.Context) ([]DVNMessage, error) {
	var msgs []DVNMessage
	err := c.call(ctx, CrossChain, "get_ready_messages", &msgs)
	return msgs, err
}

// SubmitDVNMessage returns the new message id.
func (c *Client) SubmitDVNMessage(ctx context.Context, sourceChain, destChain uint32, payload []byte, sender string) (string, error) {
	var id string
	err := c.call(ctx, CrossChain, "submit_dvn_message", &id, sourceChain, destChain, payload, sender)
	return id, err
}

func (c *Client) GetDVNMessage(ctx context.Context, id string) (*DVNMessage, error) {
	var m *DVNMessage
	err := c.call(ctx, CrossChain, "get_dvn_message", &m, id)
	return m, err
}

func (c *Client) GetMessageAttestations(ctx context.Context, id string) ([]Attestation, error) {
	var atts []Attestation
	err := c.call(ctx, CrossChain, "get_message_attestations", &atts, id)
	return atts, err
}

func (c *Client) SubmitAttestation(ctx context.Context, messageID, validator string, signature []byte) (string, error) {
	return callVariant[string](ctx, c, CrossChain, "submit_attestation", messageID, validator, signature)
}

func (c *Client) MonitorEVMTransaction(ctx context.Context, chainID uint32, txHash, rpcURL string) (string, error) {
	return callVariant[string](ctx, c, CrossChain, "monitor_evm_transaction", chainID, txHash, rpcURL)
}

func (c *Client) VerifyLayerZeroMessage(ctx context.Context, chainID uint32, messageHash, proof string) (bool, error) {
	return callVariant[bool](ctx, c, CrossChain, "verify_layerzero_message", chainID, messageHash, proof)
}

func (c *Client) GetCrossChainTransaction(ctx context.Context, id string) (*CrossChainTransaction, error) {
	var tx *CrossChainTransaction
	err := c.call(ctx, CrossChain, "get_transaction", &tx, id)
	return tx, err
}
