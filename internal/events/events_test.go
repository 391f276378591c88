package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingConn struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (c *recordingConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.subjects = append(c.subjects, subject)
	c.payloads = append(c.payloads, data)
	return nil
}

func TestPublishWrapsEvent(t *testing.T) {
	rc := &recordingConn{}
	ts := time.Date(2025, 9, 16, 0, 0, 0, 0, time.UTC)
	p := &Publisher{conn: rc, now: func() time.Time { return ts }}

	require.NoError(t, p.Publish("anchor_submit", map[string]string{"receiptId": "r1"}))
	require.Equal(t, []string{"iqube.ops.anchor_submit"}, rc.subjects)

	var ev struct {
		ID        string            `json:"id"`
		Kind      string            `json:"kind"`
		Timestamp time.Time         `json:"timestamp"`
		Data      map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rc.payloads[0], &ev))
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "anchor_submit", ev.Kind)
	assert.True(t, ts.Equal(ev.Timestamp))
	assert.Equal(t, "r1", ev.Data["receiptId"])
}

func TestPublishError(t *testing.T) {
	p := &Publisher{conn: &recordingConn{err: errors.New("nats: connection closed")}, now: time.Now}
	err := p.Publish("dvn_submit", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "iqube.ops.dvn_submit")
}

func TestCloseWithoutConnection(t *testing.T) {
	p := &Publisher{conn: &recordingConn{}, now: time.Now}
	assert.NotPanics(t, p.Close)
}
