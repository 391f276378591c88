package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/Maphikza/iqube-ops/internal/config"
	"github.com/Maphikza/iqube-ops/internal/logger"
	"github.com/Maphikza/iqube-ops/internal/metrics"
)

// Service names one of the ledger-hosted services.
type Service string

const (
	ProofOfState Service = "proof_of_state"
	BTCSigner    Service = "btc_signer_psbt"
	CrossChain   Service = "cross_chain_service"
	EVMRPC       Service = "evm_rpc"
	SolanaSigner Service = "solana_signer_ed25519"
)

// ErrFallback marks a response that was substituted with canned data after
// the real call failed. The canned value is still returned alongside it.
var ErrFallback = errors.New("ledger call failed, canned response substituted")

// FallbackError wraps the failure that triggered a substitution.
type FallbackError struct {
	Service Service
	Method  string
	Cause   error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("%s.%s fell back to canned data: %v", e.Service, e.Method, e.Cause)
}

func (e *FallbackError) Unwrap() []error { return []error{ErrFallback, e.Cause} }

// Options configures a Client.
type Options struct {
	ServiceIDs      map[Service]string
	FallbackEnabled bool
}

// DefaultOptions returns options with the local replica ids and fallbacks on.
// The Solana signer has no local default and stays unconfigured.
func DefaultOptions() Options {
	return Options{
		ServiceIDs: map[Service]string{
			ProofOfState: config.DefaultProofOfStateID,
			BTCSigner:    config.DefaultBTCSignerID,
			CrossChain:   config.DefaultCrossChainID,
			EVMRPC:       config.DefaultEVMRPCID,
		},
		FallbackEnabled: true,
	}
}

// OptionsFromConfig reads service ids and the fallback switch from viper.
func OptionsFromConfig() Options {
	return Options{
		ServiceIDs: map[Service]string{
			ProofOfState: viper.GetString("ledger.proof_of_state_id"),
			BTCSigner:    viper.GetString("ledger.btc_signer_id"),
			CrossChain:   viper.GetString("ledger.cross_chain_id"),
			EVMRPC:       viper.GetString("ledger.evm_rpc_id"),
			SolanaSigner: viper.GetString("ledger.solana_signer_id"),
		},
		FallbackEnabled: viper.GetBool("ledger.fallback_enabled"),
	}
}

// handle is a bound connection to one service.
type handle struct {
	service   Service
	id        string
	transport Transport
}

func (h *handle) call(ctx context.Context, method string, out interface{}, args ...interface{}) error {
	start := time.Now()
	err := h.transport.Call(ctx, h.id, method, args, out)
	metrics.LedgerCallDuration.WithLabelValues(string(h.service), method).Observe(time.Since(start).Seconds())

	outcome := "ok"
	if err != nil {
		outcome = "error"
		if IsServiceError(err) {
			outcome = "service_error"
		}
	}
	metrics.LedgerCalls.WithLabelValues(string(h.service), method, outcome).Inc()
	return err
}

// Client exposes typed wrappers over the ledger services. Handles are created
// on first use and reused afterwards.
type Client struct {
	transport Transport
	opts      Options

	mu      sync.Mutex
	handles map[Service]*handle
}

// NewClient creates a Client over transport.
func NewClient(transport Transport, opts Options) *Client {
	if opts.ServiceIDs == nil {
		opts.ServiceIDs = DefaultOptions().ServiceIDs
	}
	return &Client{
		transport: transport,
		opts:      opts,
		handles:   make(map[Service]*handle),
	}
}

func (c *Client) handle(svc Service) (*handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h, ok := c.handles[svc]; ok {
		return h, nil
	}
	id := c.opts.ServiceIDs[svc]
	if id == "" {
		return nil, fmt.Errorf("no service id configured for %s", svc)
	}
	h := &handle{service: svc, id: id, transport: c.transport}
	c.handles[svc] = h
	logger.Debug("Ledger service handle created", "service", svc, "id", id)
	return h, nil
}

// call invokes method on svc and logs failures.
func (c *Client) call(ctx context.Context, svc Service, method string, out interface{}, args ...interface{}) error {
	h, err := c.handle(svc)
	if err != nil {
		return err
	}
	if err := h.call(ctx, method, out, args...); err != nil {
		logger.Warn("Ledger call failed", "service", svc, "method", method, "error", err)
		return fmt.Errorf("%s.%s: %w", svc, method, err)
	}
	return nil
}

// callVariant invokes a method returning {Ok: T} | {Err: text}.
func callVariant[T any](ctx context.Context, c *Client, svc Service, method string, args ...interface{}) (T, error) {
	var zero T
	var res variant[T]
	if err := c.call(ctx, svc, method, &res, args...); err != nil {
		return zero, err
	}
	if res.Err != nil {
		err := &ServiceError{Service: string(svc), Method: method, Message: *res.Err}
		logger.Warn("Ledger service returned error", "service", svc, "method", method, "error", err.Message)
		return zero, err
	}
	if res.Ok == nil {
		return zero, &ServiceError{Service: string(svc), Method: method, Message: "empty result"}
	}
	return *res.Ok, nil
}

func (c *Client) fallback(svc Service, method string, cause error) error {
	metrics.LedgerFallbacks.WithLabelValues(string(svc), method).Inc()
	logger.Warn("Substituting canned ledger response", "service", svc, "method", method)
	return &FallbackError{Service: svc, Method: method, Cause: cause}
}

// FallbackEnabled reports whether canned responses are substituted on failure.
func (c *Client) FallbackEnabled() bool {
	return c.opts.FallbackEnabled
}
