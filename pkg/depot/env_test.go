package depot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DepotHQ/depot_sdk_go/pkg/depot"
)

func TestNewFromEnv(t *testing.T) {
	t.Setenv("DEPOT_API_URL", "http://127.0.0.1:8787/")
	t.Setenv("DEPOT_API_KEY", "key-1")
	t.Setenv("DEPOT_BUCKET", "reports")

	client, err := depot.NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "reports", client.Bucket())
	assert.Empty(t, client.SessionToken())
}

func TestNewFromEnvMissingURL(t *testing.T) {
	t.Setenv("DEPOT_API_URL", "")
	t.Setenv("DEPOT_API_KEY", "key-1")

	_, err := depot.NewFromEnv()
	require.ErrorContains(t, err, "DEPOT_API_URL")
}

func TestNewFromEnvMissingKey(t *testing.T) {
	t.Setenv("DEPOT_API_URL", "http://127.0.0.1:8787")
	t.Setenv("DEPOT_API_KEY", "")

	_, err := depot.NewFromEnv()
	require.ErrorContains(t, err, "DEPOT_API_KEY")
}
