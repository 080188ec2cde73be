package logger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize(t *testing.T) {
	require.NoError(t, Initialize(Config{Service: "api-server", Debug: true}))
	require.NotNil(t, Default())

	// nil context falls back to the global logger
	assert.NotNil(t, FromContext(nil))

	// without a sentry DSN there is nothing to drain
	Flush(time.Millisecond)

	// production config builds too
	require.NoError(t, Initialize(Config{Service: "sweeper"}))
	require.NotNil(t, Default())
}
