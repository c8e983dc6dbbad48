// Metadata service
// Read-only HTTP API over versioned statistical metadata
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/nainya/metadata-service/internal/config"
)

var (
	// Version information, set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var configFile string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the metadata API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), v, configFile)
		},
	}

	rootCmd := &cobra.Command{
		Use:   "metadata-service",
		Short: "Read-only query service for versioned statistical metadata",
		Long: `metadata-service serves data structure definitions, their attributes and
release history from a flat JSON datastore.`,
		SilenceUsage: true,
		RunE:         serveCmd.RunE,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default ./metadata-service.yaml)")
	flags.String("root-dir", "", "datastore root directory")
	flags.Int("port", 8000, "HTTP API port")
	flags.Int("metrics-port", 9090, "observability HTTP port")
	flags.Int("grpc-port", 50051, "gRPC health port (0 disables)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("log-pretty", false, "human readable logs")
	flags.String("cache", "memory", "document cache backend (none, memory, redis)")
	flags.String("redis-addr", "localhost:6379", "redis address for the redis cache backend")
	for key, name := range map[string]string{
		"datastore.root_dir": "root-dir",
		"server.port":        "port",
		"observability.port": "metrics-port",
		"grpc.port":          "grpc-port",
		"log.level":          "log-level",
		"log.pretty":         "log-pretty",
		"cache.backend":      "cache",
		"cache.redis_addr":   "redis-addr",
	} {
		// BindPFlag only fails on a nil flag
		_ = v.BindPFlag(key, flags.Lookup(name))
	}

	rootCmd.AddCommand(serveCmd, newVersionCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "metadata-service %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit:  %s\n", GitCommit)
			fmt.Fprintf(cmd.OutOrStdout(), "  built:   %s\n", BuildDate)
			fmt.Fprintf(cmd.OutOrStdout(), "  go:      %s\n", runtime.Version())
		},
	}
}
