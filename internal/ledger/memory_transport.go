package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// RecordedCall is one call seen by a MemoryTransport.
type RecordedCall struct {
	ServiceID string
	Method    string
	Args      []interface{}
}

// MemoryTransport answers calls from a table of canned results. Methods with
// no entry fail with a transport error.
type MemoryTransport struct {
	mu      sync.Mutex
	results map[string]json.RawMessage
	errs    map[string]error
	calls   []RecordedCall
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		results: make(map[string]json.RawMessage),
		errs:    make(map[string]error),
	}
}

func memKey(serviceID, method string) string { return serviceID + "/" + method }

// On registers result as the return value of method on serviceID.
func (m *MemoryTransport) On(serviceID, method string, result interface{}) *MemoryTransport {
	raw, err := json.Marshal(result)
	if err != nil {
		panic(fmt.Sprintf("memory transport: cannot encode result for %s: %v", method, err))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[memKey(serviceID, method)] = raw
	delete(m.errs, memKey(serviceID, method))
	return m
}

// Fail makes method on serviceID return err.
func (m *MemoryTransport) Fail(serviceID, method string, err error) *MemoryTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[memKey(serviceID, method)] = err
	delete(m.results, memKey(serviceID, method))
	return m
}

func (m *MemoryTransport) Call(ctx context.Context, serviceID, method string, args []interface{}, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.calls = append(m.calls, RecordedCall{ServiceID: serviceID, Method: method, Args: args})
	key := memKey(serviceID, method)
	callErr, failing := m.errs[key]
	raw, ok := m.results[key]
	m.mu.Unlock()

	if failing {
		return callErr
	}
	if !ok {
		return fmt.Errorf("no handler for %s", key)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// Calls returns the calls made so far for method on any service.
func (m *MemoryTransport) Calls(method string) []RecordedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []RecordedCall
	for _, c := range m.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}
