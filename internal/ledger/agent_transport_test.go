package ledger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsQuery(t *testing.T) {
	tests := []struct {
		svc    Service
		method string
		want   bool
	}{
		{ProofOfState, "get_batches", true},
		{ProofOfState, "get_burn_state", true},
		{ProofOfState, "issue_receipt", false},
		{ProofOfState, "anchor", false},
		{BTCSigner, "get_transaction", true},
		{BTCSigner, "get_btc_address", false},
		{BTCSigner, "sign_transaction", false},
		{CrossChain, "get_transaction", true},
		{CrossChain, "submit_dvn_message", false},
		{EVMRPC, "get_supported_chains", true},
		{EVMRPC, "get_latest_block_number", false},
		{EVMRPC, "init_chain_configs", false},
		{SolanaSigner, "get_transaction", false},
		{SolanaSigner, "get_balance", false},
		{Service("unknown"), "get_batches", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.svc)+"/"+tt.method, func(t *testing.T) {
			assert.Equal(t, tt.want, IsQuery(tt.svc, tt.method))
		})
	}
}

func TestAgentTransportKindUsesServiceID(t *testing.T) {
	tr, err := NewAgentTransport(AgentConfig{Host: "http://127.0.0.1:4943", ServiceIDs: DefaultOptions().ServiceIDs})
	require.NoError(t, err)

	assert.Equal(t, "query", tr.kind(testIDs[BTCSigner], "get_transaction"))
	assert.Equal(t, "update", tr.kind(testIDs[BTCSigner], "broadcast_transaction"))
	assert.Equal(t, "update", tr.kind("aaaaa-aa", "get_batches"))
}

func TestNewAgentTransportRejectsBadHost(t *testing.T) {
	_, err := NewAgentTransport(AgentConfig{Host: "127.0.0.1:4943"})
	assert.Error(t, err)

	_, err = NewAgentTransport(AgentConfig{Host: "::not a url"})
	assert.Error(t, err)
}

func TestAgentTransportRejectsBadServiceID(t *testing.T) {
	tr, err := NewAgentTransport(AgentConfig{Host: "http://127.0.0.1:4943"})
	require.NoError(t, err)

	err = tr.Call(context.Background(), "not-a-principal!", "get_batches", nil, nil)
	assert.ErrorContains(t, err, "invalid service id")
}

func TestAgentTransportSpeaksReplicaAPI(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		http.Error(w, "replica unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr, err := NewAgentTransport(AgentConfig{
		Host:         srv.URL,
		FetchRootKey: true,
		ServiceIDs:   DefaultOptions().ServiceIDs,
		Timeout:      5 * time.Second,
	})
	require.NoError(t, err)

	c := NewClient(tr, DefaultOptions())
	batches, err := c.GetBatches(context.Background())
	assert.ErrorIs(t, err, ErrFallback)
	require.Len(t, batches, 1)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, paths)
	for _, p := range paths {
		assert.True(t, strings.HasPrefix(p, "/api/v2/"), p)
	}
}

func TestAgentTransportHonoursContext(t *testing.T) {
	tr, err := NewAgentTransport(AgentConfig{Host: "http://127.0.0.1:4943"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = tr.Call(ctx, testIDs[ProofOfState], "get_batches", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
