package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Transport performs a single method call against a ledger service.
// out receives the decoded return value and may be nil.
type Transport interface {
	Call(ctx context.Context, serviceID, method string, args []interface{}, out interface{}) error
}

// ServiceError is an explicit failure returned by a service, either as an
// error envelope or as the Err arm of a result variant.
type ServiceError struct {
	Service string
	Method  string
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Service, e.Method, e.Message)
}

type callRequest struct {
	Method string        `json:"method"`
	Args   []interface{} `json:"args"`
}

type callResponse struct {
	Ok  json.RawMessage `json:"ok"`
	Err *string         `json:"err"`
}

// HTTPTransport speaks JSON to a gateway in front of the ledger replica:
// POST {host}/api/v1/services/{id}/call with {"method","args"} and a reply of
// {"ok": value} or {"err": message}.
type HTTPTransport struct {
	Host   string
	Client *http.Client
}

// NewHTTPTransport returns a transport for host with the given per-call timeout.
func NewHTTPTransport(host string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		Host:   strings.TrimRight(host, "/"),
		Client: &http.Client{Timeout: timeout},
	}
}

func (t *HTTPTransport) Call(ctx context.Context, serviceID, method string, args []interface{}, out interface{}) error {
	if args == nil {
		args = []interface{}{}
	}
	body, err := json.Marshal(callRequest{Method: method, Args: args})
	if err != nil {
		return fmt.Errorf("failed to encode call: %w", err)
	}

	endpoint, err := url.JoinPath(t.Host, "api", "v1", "services", serviceID, "call")
	if err != nil {
		return fmt.Errorf("invalid ledger host: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach ledger: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read ledger response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("ledger returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var envelope callResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("failed to decode ledger response: %w", err)
	}
	if envelope.Err != nil {
		return &ServiceError{Service: serviceID, Method: method, Message: *envelope.Err}
	}
	if out == nil || len(envelope.Ok) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Ok, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

// IsServiceError reports whether err carries a service-provided failure.
func IsServiceError(err error) bool {
	var se *ServiceError
	return errors.As(err, &se)
}
