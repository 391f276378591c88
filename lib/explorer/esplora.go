package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Esplora talks to one esplora-compatible REST API (blockstream, mempool).
type Esplora struct {
	url    string
	client *http.Client
}

// NewEsplora returns a client for baseURL. A zero timeout leaves requests
// bounded only by their context.
func NewEsplora(baseURL string, timeout time.Duration) *Esplora {
	return &Esplora{
		url:    strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

func (e *Esplora) BaseURL() string { return e.url }

// Get performs a GET on the joined path and returns the reply as is.
func (e *Esplora) Get(ctx context.Context, elem ...string) (*Response, error) {
	endpoint, err := url.JoinPath(e.url, elem...)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return e.do(req)
}

// PostText POSTs body as text/plain to the joined path.
func (e *Esplora) PostText(ctx context.Context, body string, elem ...string) (*Response, error) {
	endpoint, err := url.JoinPath(e.url, elem...)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/plain")
	return e.do(req)
}

func (e *Esplora) do(req *http.Request) (*Response, error) {
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &Response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func upstream(resp *Response) error {
	if resp.OK() {
		return nil
	}
	if resp.Status == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSpace(string(resp.Body)))
	}
	return &UpstreamError{Status: resp.Status, Body: string(resp.Body)}
}

func (e *Esplora) FeeEstimates(ctx context.Context) (FeeEstimates, error) {
	resp, err := e.Get(ctx, "fee-estimates")
	if err != nil {
		return nil, err
	}
	if err := upstream(resp); err != nil {
		return nil, err
	}
	estimates := FeeEstimates{}
	if err := json.Unmarshal(resp.Body, &estimates); err != nil {
		return nil, fmt.Errorf("failed to decode fee estimates: %w", err)
	}
	return estimates, nil
}

func (e *Esplora) UTXOs(ctx context.Context, address string) ([]Utxo, error) {
	resp, err := e.Get(ctx, "address", address, "utxo")
	if err != nil {
		return nil, err
	}
	if err := upstream(resp); err != nil {
		return nil, err
	}
	var utxos []Utxo
	if err := json.Unmarshal(resp.Body, &utxos); err != nil {
		return nil, fmt.Errorf("failed to decode utxos: %w", err)
	}
	return utxos, nil
}

func (e *Esplora) TxHex(ctx context.Context, txid string) (string, error) {
	resp, err := e.Get(ctx, "tx", txid, "hex")
	if err != nil {
		return "", err
	}
	if err := upstream(resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(string(resp.Body)), nil
}

// Broadcast submits a raw transaction and returns the txid the explorer reports.
func (e *Esplora) Broadcast(ctx context.Context, txHex string) (string, error) {
	resp, err := e.PostText(ctx, txHex, "tx")
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", &UpstreamError{Status: resp.Status, Body: string(resp.Body)}
	}
	return strings.TrimSpace(string(resp.Body)), nil
}

func (e *Esplora) TxStatus(ctx context.Context, txid string) (TxStatus, error) {
	resp, err := e.Get(ctx, "tx", txid, "status")
	if err != nil {
		return TxStatus{}, err
	}
	if err := upstream(resp); err != nil {
		return TxStatus{}, err
	}
	var status TxStatus
	if err := json.Unmarshal(resp.Body, &status); err != nil {
		return TxStatus{}, fmt.Errorf("failed to decode tx status: %w", err)
	}
	return status, nil
}

func (e *Esplora) TipHeight(ctx context.Context) (int64, error) {
	resp, err := e.Get(ctx, "blocks", "tip", "height")
	if err != nil {
		return 0, err
	}
	if err := upstream(resp); err != nil {
		return 0, err
	}
	height, err := strconv.ParseInt(strings.TrimSpace(string(resp.Body)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse tip height: %w", err)
	}
	return height, nil
}

// Confirmations returns the depth of txid: tip - block_height + 1 once mined,
// zero while it sits in the mempool.
func (e *Esplora) Confirmations(ctx context.Context, txid string) (Depth, error) {
	status, err := e.TxStatus(ctx, txid)
	if err != nil {
		return Depth{}, err
	}
	if !status.Confirmed || status.BlockHeight == 0 {
		return Depth{}, nil
	}
	tip, err := e.TipHeight(ctx)
	if err != nil {
		return Depth{}, err
	}
	depth := tip - status.BlockHeight + 1
	if depth < 0 {
		depth = 0
	}
	return Depth{Confirmations: depth, BlockHeight: status.BlockHeight}, nil
}
