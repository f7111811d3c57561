package main

import (
	"context"
	"fmt"
	"os"

	serverrun "github.com/rzbill/headcache/internal/cmd/server"
	cfgpkg "github.com/rzbill/headcache/internal/config"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "headcache",
		Short: "HeadCache server CLI",
		Long:  "HeadCache is a bounded in-memory index over a partitioned event journal's tail. This CLI manages the server process.",
	}

	var configPath string
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (optional; HEADCACHE_* env vars always apply)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HeadCache server",
		RunE: func(cmd *cobra.Command, args []string) error {
			httpAddr, _ := cmd.Flags().GetString("http")
			brokers, _ := cmd.Flags().GetStringSlice("brokers")
			topics, _ := cmd.Flags().GetStringSlice("topics")
			dataDir, _ := cmd.Flags().GetString("data-dir")

			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if httpAddr != "" {
				cfg.HTTP.Addr = httpAddr
			}
			if len(brokers) > 0 {
				cfg.Kafka.Brokers = brokers
			}
			if len(topics) > 0 {
				cfg.Kafka.Topics = topics
			}
			if dataDir != "" {
				cfg.Storage.DataDir = dataDir
			}

			return serverrun.Run(context.Background(), serverrun.Options{HTTPAddr: cfg.HTTP.Addr, Config: cfg})
		},
	}
	serveCmd.Flags().String("http", "", "HTTP listen address (overrides config)")
	serveCmd.Flags().StringSlice("brokers", nil, "Kafka broker addresses (overrides config)")
	serveCmd.Flags().StringSlice("topics", nil, "Topics to track (overrides config)")
	serveCmd.Flags().String("data-dir", "", "Pointer store data directory (overrides config)")
	rootCmd.AddCommand(serveCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the HeadCache version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
