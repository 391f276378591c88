package ledger

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/aviate-labs/agent-go"
	"github.com/aviate-labs/agent-go/principal"

	"github.com/Maphikza/iqube-ops/internal/logger"
)

// queryMethods lists the read-only methods of each service. They are sent as
// queries; everything else goes through the update path and waits for the
// certified reply.
var queryMethods = map[Service]map[string]bool{
	ProofOfState: {
		"get_batches":       true,
		"get_pending_count": true,
		"get_receipt":       true,
		"get_burn_state":    true,
	},
	BTCSigner: {
		"get_address_info":  true,
		"get_all_addresses": true,
		"get_transaction":   true,
	},
	CrossChain: {
		"get_dvn_message":          true,
		"get_message_attestations": true,
		"get_pending_messages":     true,
		"get_ready_messages":       true,
		"get_transaction":          true,
	},
	EVMRPC: {
		"get_cached_block":     true,
		"get_cached_receipt":   true,
		"get_chain_config":     true,
		"get_supported_chains": true,
	},
	SolanaSigner: {},
}

// IsQuery reports whether method on svc is a query call.
func IsQuery(svc Service, method string) bool {
	return queryMethods[svc][method]
}

// AgentConfig configures an AgentTransport.
type AgentConfig struct {
	Host string
	// FetchRootKey must be set against a local replica, whose root key is
	// not the mainnet one.
	FetchRootKey bool
	ServiceIDs   map[Service]string
	// Timeout bounds each call when the caller's context has no deadline.
	Timeout time.Duration
}

// AgentTransport calls ledger services over the replica's native
// CBOR/Candid interface using an anonymous identity. The agent is created on
// first use so an unreachable replica surfaces as a call error.
type AgentTransport struct {
	host         *url.URL
	fetchRootKey bool
	services     map[string]Service
	timeout      time.Duration

	mu    sync.Mutex
	agent *agent.Agent
}

// NewAgentTransport returns a transport for cfg.Host.
func NewAgentTransport(cfg AgentConfig) (*AgentTransport, error) {
	host, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger host: %w", err)
	}
	if host.Scheme == "" || host.Host == "" {
		return nil, fmt.Errorf("invalid ledger host %q", cfg.Host)
	}
	return &AgentTransport{
		host:         host,
		fetchRootKey: cfg.FetchRootKey,
		services:     serviceIndex(cfg.ServiceIDs),
		timeout:      cfg.Timeout,
	}, nil
}

func (t *AgentTransport) connect() (*agent.Agent, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.agent != nil {
		return t.agent, nil
	}
	a, err := agent.New(agent.Config{
		ClientConfig: &agent.ClientConfig{Host: t.host},
		FetchRootKey: t.fetchRootKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reach ledger at %s: %w", t.host, err)
	}
	logger.Info("Ledger agent ready", "host", t.host.String(), "fetch_root_key", t.fetchRootKey)
	t.agent = a
	return a, nil
}

func serviceIndex(ids map[Service]string) map[string]Service {
	index := make(map[string]Service, len(ids))
	for svc, id := range ids {
		if id != "" {
			index[id] = svc
		}
	}
	return index
}

// kind returns "query" or "update" for method on the service behind serviceID.
func (t *AgentTransport) kind(serviceID, method string) string {
	if IsQuery(t.services[serviceID], method) {
		return "query"
	}
	return "update"
}

func (t *AgentTransport) Call(ctx context.Context, serviceID, method string, args []interface{}, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	canister, err := principal.Decode(serviceID)
	if err != nil {
		return fmt.Errorf("invalid service id %q: %w", serviceID, err)
	}
	if args == nil {
		args = []interface{}{}
	}
	var values []any
	if out != nil {
		values = []any{out}
	}

	if _, ok := ctx.Deadline(); !ok && t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	kind := t.kind(serviceID, method)
	done := make(chan error, 1)
	go func() {
		a, err := t.connect()
		if err != nil {
			done <- err
			return
		}
		if kind == "query" {
			done <- a.Query(canister, method, args, values)
			return
		}
		done <- a.Call(canister, method, args, values)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%s %s failed: %w", kind, method, err)
		}
		return nil
	}
}
