package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldsPairsKeysAndValues(t *testing.T) {
	f := fields([]interface{}{"txid", "abc", "vout", 1, "dangling"})
	assert.Equal(t, "abc", f["txid"])
	assert.Equal(t, 1, f["vout"])
	assert.Equal(t, "dangling", f["extra"])
}

func TestLevelFiltersOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	SetLevel("warn")
	defer SetLevel("info")

	Info("hidden")
	Warn("shown", "route", "fee")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "route=fee")

	SetLevel("nonsense")
	Info("still hidden")
	assert.NotContains(t, buf.String(), "still hidden")
}
