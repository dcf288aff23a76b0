package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/jobscope/internal/config"
	"github.com/3leaps/jobscope/pkg/provider"
)

func allBackendsConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Providers.Local = config.LocalConfig{Enabled: true, Root: t.TempDir()}
	cfg.Providers.Pipelines = config.PipelinesConfig{
		Enabled:         true,
		Bucket:          "jobscope-state",
		Prefix:          "prod",
		Region:          "us-east-1",
		Endpoint:        "http://localhost:5555",
		AccessKeyID:     "testing",
		SecretAccessKey: "testing",
		ForcePathStyle:  true,
		MaxKeys:         500,
		RateLimit:       10,
	}
	cfg.Providers.Queue = config.QueueConfig{Enabled: true, Addr: "localhost:6379"}
	return cfg
}

func providerTypes(ps []provider.Provider) []provider.Type {
	out := make([]provider.Type, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Type())
	}
	return out
}

func TestBuildProviders(t *testing.T) {
	ctx := context.Background()

	t.Run("constructs every enabled backend from configuration", func(t *testing.T) {
		ps, err := buildProviders(ctx, allBackendsConfig(t), nil)
		require.NoError(t, err)
		defer closeProviders(ps)
		assert.Equal(t, []provider.Type{
			provider.TypeLocal, provider.TypePipelines, provider.TypeQueue,
		}, providerTypes(ps))
	})

	t.Run("subset restricts to the named backends", func(t *testing.T) {
		ps, err := buildProviders(ctx, allBackendsConfig(t), []string{"local", "queue"})
		require.NoError(t, err)
		defer closeProviders(ps)
		assert.Equal(t, []provider.Type{provider.TypeLocal, provider.TypeQueue}, providerTypes(ps))
	})

	t.Run("unknown name is rejected", func(t *testing.T) {
		_, err := buildProviders(ctx, allBackendsConfig(t), []string{"mainframe"})
		assert.Error(t, err)
	})

	t.Run("requesting a disabled backend fails", func(t *testing.T) {
		cfg := allBackendsConfig(t)
		cfg.Providers.Pipelines.Enabled = false
		_, err := buildProviders(ctx, cfg, []string{"pipelines"})
		assert.Error(t, err)
	})

	t.Run("no enabled backends fails", func(t *testing.T) {
		_, err := buildProviders(ctx, &config.Config{}, nil)
		assert.Error(t, err)
	})
}
