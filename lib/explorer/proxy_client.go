package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ProxyClient reads chain data through the ops server's /api/btc routes
// instead of calling an explorer directly.
type ProxyClient struct {
	base        string
	client      *http.Client
	utxoTimeout time.Duration
}

// NewProxyClient returns a client for the server at base. Only UTXO lookups
// are bounded by utxoTimeout; the other calls rely on their context.
func NewProxyClient(base string, utxoTimeout time.Duration) *ProxyClient {
	return &ProxyClient{
		base:        strings.TrimRight(base, "/"),
		client:      &http.Client{},
		utxoTimeout: utxoTimeout,
	}
}

type proxyError struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
	Body   string `json:"body"`
}

func (p *ProxyClient) do(req *http.Request) ([]byte, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return body, nil
	}

	var pe proxyError
	if json.Unmarshal(body, &pe) == nil && pe.Error != "" {
		if pe.Status != 0 {
			return nil, &UpstreamError{Status: pe.Status, Body: pe.Body}
		}
		return nil, &UpstreamError{Status: resp.StatusCode, Body: pe.Error}
	}
	return nil, &UpstreamError{Status: resp.StatusCode, Body: string(body)}
}

func (p *ProxyClient) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := p.base + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return p.do(req)
}

func (p *ProxyClient) FeeEstimates(ctx context.Context) (FeeEstimates, error) {
	body, err := p.get(ctx, "/api/btc/fee", nil)
	if err != nil {
		return nil, err
	}
	estimates := FeeEstimates{}
	if err := json.Unmarshal(body, &estimates); err != nil {
		return nil, fmt.Errorf("failed to decode fee estimates: %w", err)
	}
	return estimates, nil
}

func (p *ProxyClient) UTXOs(ctx context.Context, address string) ([]Utxo, error) {
	if p.utxoTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.utxoTimeout)
		defer cancel()
	}
	body, err := p.get(ctx, "/api/btc/utxos", url.Values{"address": {address}})
	if err != nil {
		return nil, err
	}
	var utxos []Utxo
	if err := json.Unmarshal(body, &utxos); err != nil {
		return nil, fmt.Errorf("failed to decode utxos: %w", err)
	}
	return utxos, nil
}

func (p *ProxyClient) TxHex(ctx context.Context, txid string) (string, error) {
	body, err := p.get(ctx, "/api/btc/txhex", url.Values{"txid": {txid}})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

func (p *ProxyClient) Broadcast(ctx context.Context, txHex string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base+"/api/btc/broadcast", strings.NewReader(txHex))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "text/plain")
	body, err := p.do(req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}
