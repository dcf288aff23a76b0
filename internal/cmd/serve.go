package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/jobscope/internal/observability"
	"github.com/3leaps/jobscope/internal/server"
	"github.com/3leaps/jobscope/internal/server/handlers"
	"github.com/3leaps/jobscope/pkg/query"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP status server",
	Long: `Run an HTTP server exposing job status queries over GET /v1/jobs,
plus health and version endpoints. Query parameters mirror the status
command's flags.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := buildProviders(ctx, appConfig, nil)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to configure backends", err)
	}
	defer closeProviders(providers)

	engine := query.New(providers,
		query.WithTimeout(appConfig.Engine.Timeout),
		query.WithLogger(observability.CLILogger),
	)

	host := appConfig.Server.Host
	if serveHost != "" {
		host = serveHost
	}
	port := appConfig.Server.Port
	if servePort != 0 {
		port = servePort
	}

	srv := server.New(host, port, server.Options{
		Engine:    engine,
		Providers: providers,
		Version: handlers.VersionInfo{
			Version:   versionInfo.Version,
			Commit:    versionInfo.Commit,
			BuildDate: versionInfo.BuildDate,
		},
		ReadTimeout:  appConfig.Server.ReadTimeout,
		WriteTimeout: appConfig.Server.WriteTimeout,
		IdleTimeout:  appConfig.Server.IdleTimeout,
	})

	if err := srv.ListenAndServe(ctx, appConfig.Server.ShutdownTimeout); err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Server failed", err)
	}
	return nil
}
