package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitCLILogger(t *testing.T) {
	orig := CLILogger
	defer func() { CLILogger = orig }()

	t.Run("valid levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error"} {
			require.NoError(t, InitCLILogger(level, true), "level %s", level)
			assert.NotNil(t, CLILogger)
		}
	})

	t.Run("console profile", func(t *testing.T) {
		require.NoError(t, InitCLILogger("info", false))
		assert.NotNil(t, CLILogger)
	})

	t.Run("invalid level rejected", func(t *testing.T) {
		err := InitCLILogger("verbose", true)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestSyncSafeOnNop(t *testing.T) {
	orig := CLILogger
	defer func() { CLILogger = orig }()

	CLILogger = orig
	assert.NotPanics(t, func() { Sync() })
}
