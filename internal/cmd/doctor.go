package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/jobscope/internal/observability"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on the jobscope environment: configuration,
the local job registry, and every enabled backend.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	observability.CLILogger.Info("=== jobscope doctor ===")

	failed := 0
	check := func(name string, err error) {
		if err != nil {
			failed++
			observability.CLILogger.Error("FAIL "+name, zap.Error(err))
			return
		}
		observability.CLILogger.Info("OK   " + name)
	}

	check("runtime", func() error {
		observability.CLILogger.Info("Go runtime", zap.String("version", runtime.Version()))
		return nil
	}())

	check("configuration", appConfig.Validate())

	if appConfig.Providers.Local.Enabled {
		check("local registry writable", checkRegistryWritable(appConfig.Providers.Local.Root))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := buildProviders(ctx, appConfig, nil)
	check("backend construction", err)
	if err == nil {
		defer closeProviders(providers)
		for _, p := range providers {
			_, probeErr := p.Describe(ctx, []string{"doctor-probe"})
			check("backend "+p.Type().String(), probeErr)
		}
	}

	if failed > 0 {
		return exitError(foundry.ExitExternalServiceUnavailable, "Diagnostics failed",
			fmt.Errorf("%d check(s) failed", failed))
	}
	observability.CLILogger.Info("All checks passed")
	return nil
}

func checkRegistryWritable(root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}
	probe := filepath.Join(root, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return err
	}
	return os.Remove(probe)
}
