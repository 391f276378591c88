package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/Maphikza/iqube-ops/internal/logger"
	"github.com/Maphikza/iqube-ops/internal/metrics"
)

// SubjectPrefix is prepended to every published subject.
const SubjectPrefix = "iqube.ops."

// Event is the envelope published for each completed operation.
type Event struct {
	ID        string      `json:"id"`
	Kind      string      `json:"kind"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

type conn interface {
	Publish(subject string, data []byte) error
}

// Publisher sends operation events to NATS.
type Publisher struct {
	conn conn
	nc   *nats.Conn
	now  func() time.Time
}

// Connect dials url with reconnects enabled and reports the connection
// state through metrics.
func Connect(url string, timeout time.Duration) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("iqube-ops"),
		nats.Timeout(timeout),
		nats.ReconnectWait(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
			metrics.NATSConnectionStatus.Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
			metrics.NATSConnectionStatus.Set(1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	metrics.NATSConnectionStatus.Set(1)
	logger.Info("Connected to NATS", "url", nc.ConnectedUrl())
	return &Publisher{conn: nc, nc: nc, now: time.Now}, nil
}

// Publish wraps v in an Event and sends it on SubjectPrefix+kind.
func (p *Publisher) Publish(kind string, v interface{}) error {
	subject := SubjectPrefix + kind
	data, err := json.Marshal(Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: p.now().UTC(),
		Data:      v,
	})
	if err != nil {
		metrics.EventsPublished.WithLabelValues(subject, "error").Inc()
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		metrics.EventsPublished.WithLabelValues(subject, "error").Inc()
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	metrics.EventsPublished.WithLabelValues(subject, "ok").Inc()
	logger.Debug("Event published", "subject", subject)
	return nil
}

// Close drains pending messages before closing the connection.
func (p *Publisher) Close() {
	if p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
	metrics.NATSConnectionStatus.Set(0)
}
