package main

import (
	"io"
	"os"

	"arbix/internal/config"
	"arbix/internal/logging"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "arbix",
		Short:         "Multi-venue token price aggregation and arbitrage signals",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./arbix.yaml)")

	root.AddCommand(newServeCommand(), newScanCommand())

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("arbix failed")
		os.Exit(1)
	}
}

// loadConfig reads the configuration and installs the global logger
func loadConfig() (*config.Config, io.Closer, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	closer, err := logging.Setup(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, closer, nil
}
