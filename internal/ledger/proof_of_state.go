package ledger

import "context"

// IssueReceipt registers dataHash and returns the new receipt id.
func (c *Client) IssueReceipt(ctx context.Context, dataHash string) (string, error) {
	var id string
	err := c.call(ctx, ProofOfState, "issue_receipt", &id, dataHash)
	return id, err
}

// Batch groups pending receipts into a Merkle batch and returns its root, or
// a plain message when nothing was pending.
func (c *Client) Batch(ctx context.Context) (string, error) {
	var root string
	err := c.call(ctx, ProofOfState, "batch", &root)
	return root, err
}

// Anchor anchors the latest batch to Bitcoin and returns the service's report.
func (c *Client) Anchor(ctx context.Context) (string, error) {
	var msg string
	err := c.call(ctx, ProofOfState, "anchor", &msg)
	return msg, err
}

// GetReceipt returns nil when the receipt is unknown.
func (c *Client) GetReceipt(ctx context.Context, id string) (*Receipt, error) {
	var r *Receipt
	err := c.call(ctx, ProofOfState, "get_receipt", &r, id)
	return r, err
}

// GetBatches lists all batches in insertion order. When the call fails and
// fallbacks are enabled, a canned batch list is returned together with an
// error matching ErrFallback.
func (c *Client) GetBatches(ctx context.Context) ([]MerkleBatch, error) {
	var batches []MerkleBatch
	if err := c.call(ctx, ProofOfState, "get_batches", &batches); err != nil {
		if !c.opts.FallbackEnabled {
			return nil, err
		}
		return cannedBatches(), c.fallback(ProofOfState, "get_batches", err)
	}
	return batches, nil
}

func (c *Client) GetPendingCount(ctx context.Context) (uint64, error) {
	var n uint64
	err := c.call(ctx, ProofOfState, "get_pending_count", &n)
	return n, err
}

func (c *Client) SetBurnState(ctx context.Context, receiptID, messageID string, burned bool) (string, error) {
	var msg string
	err := c.call(ctx, ProofOfState, "set_burn_state", &msg, receiptID, messageID, burned)
	return msg, err
}

// GetBurnState returns nil when no burn state is recorded for receiptID.
func (c *Client) GetBurnState(ctx context.Context, receiptID string) (*BurnState, error) {
	var s *BurnState
	err := c.call(ctx, ProofOfState, "get_burn_state", &s, receiptID)
	return s, err
}
