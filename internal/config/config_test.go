package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsByEnvironment(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	setDefaults()
	assert.Equal(t, "development", viper.GetString("ENV"))
	assert.True(t, viper.GetBool("ledger.fallback_enabled"))
	assert.Equal(t, DefaultProofOfStateID, viper.GetString("ledger.proof_of_state_id"))
	assert.Equal(t, 546, viper.GetInt("btc.dust_limit"))

	viper.Reset()
	viper.Set("ENV", "production")
	setDefaults()
	assert.False(t, viper.GetBool("ledger.fallback_enabled"))
	assert.Equal(t, "info", viper.GetString("log_level"))
}

func TestDuration(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("a", "45s")
	viper.Set("b", "soon")
	assert.Equal(t, 45*time.Second, Duration("a", time.Minute))
	assert.Equal(t, time.Minute, Duration("b", time.Minute))
	assert.Equal(t, time.Minute, Duration("missing", time.Minute))
}

func TestLoadEnv(t *testing.T) {
	assert.NoError(t, LoadEnv(filepath.Join(t.TempDir(), "absent.env")))

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("IQUBE_TEST_LOADENV=yes\n"), 0600))
	defer os.Unsetenv("IQUBE_TEST_LOADENV")

	require.NoError(t, LoadEnv(path))
	assert.Equal(t, "yes", os.Getenv("IQUBE_TEST_LOADENV"))
}
