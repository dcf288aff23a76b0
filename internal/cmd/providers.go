package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/3leaps/jobscope/internal/config"
	"github.com/3leaps/jobscope/pkg/provider"
	"github.com/3leaps/jobscope/pkg/provider/local"
	"github.com/3leaps/jobscope/pkg/provider/pipelines"
	"github.com/3leaps/jobscope/pkg/provider/queue"
)

// buildProviders constructs every enabled backend, optionally
// restricted to the named subset ("local", "pipelines", "queue").
func buildProviders(ctx context.Context, cfg *config.Config, only []string) ([]provider.Provider, error) {
	wanted := make(map[string]bool, len(only))
	for _, name := range only {
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "" {
			continue
		}
		switch provider.Type(name) {
		case provider.TypeLocal, provider.TypePipelines, provider.TypeQueue:
			wanted[name] = true
		default:
			return nil, fmt.Errorf("unknown provider %q", name)
		}
	}
	include := func(t provider.Type) bool {
		return len(wanted) == 0 || wanted[t.String()]
	}

	var out []provider.Provider

	if cfg.Providers.Local.Enabled && include(provider.TypeLocal) {
		p, err := local.New(local.Config{Root: cfg.Providers.Local.Root})
		if err != nil {
			return nil, fmt.Errorf("local provider: %w", err)
		}
		out = append(out, p)
	}

	if cfg.Providers.Pipelines.Enabled && include(provider.TypePipelines) {
		pc := cfg.Providers.Pipelines
		p, err := pipelines.New(ctx, pipelines.Config{
			Bucket:          pc.Bucket,
			Prefix:          pc.Prefix,
			Region:          pc.Region,
			Endpoint:        pc.Endpoint,
			Profile:         pc.Profile,
			AccessKeyID:     pc.AccessKeyID,
			SecretAccessKey: pc.SecretAccessKey,
			ForcePathStyle:  pc.ForcePathStyle,
			MaxKeys:         pc.MaxKeys,
			RateLimit:       pc.RateLimit,
		})
		if err != nil {
			closeProviders(out)
			return nil, fmt.Errorf("pipelines provider: %w", err)
		}
		out = append(out, p)
	}

	if cfg.Providers.Queue.Enabled && include(provider.TypeQueue) {
		qc := cfg.Providers.Queue
		p, err := queue.New(queue.Config{
			Addr:      qc.Addr,
			Password:  qc.Password,
			DB:        qc.DB,
			KeyPrefix: qc.KeyPrefix,
		})
		if err != nil {
			closeProviders(out)
			return nil, fmt.Errorf("queue provider: %w", err)
		}
		out = append(out, p)
	}

	if len(wanted) > 0 && len(out) < len(wanted) {
		closeProviders(out)
		return nil, fmt.Errorf("some requested providers are not enabled in configuration")
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no providers enabled; check the providers section of the configuration")
	}
	return out, nil
}

func closeProviders(ps []provider.Provider) {
	for _, p := range ps {
		_ = p.Close()
	}
}
