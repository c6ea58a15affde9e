// Package cmd implements the ringlist command line.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/runger/ringlist/internal/config"
)

const (
	groupServer = "server"
	groupData   = "data"
	groupSetup  = "setup"
)

// configPath overrides the default config file location.
var configPath string

var rootCmd = &cobra.Command{
	Use:   "ringlist",
	Short: "browse arbitrarily long lists through a fixed ring of rows",
	Long: `ringlist - browse arbitrarily long lists through a fixed ring of rows
  - serve items from a SQLite store over a local socket
  - scroll them page by page in the terminal`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. A cancelled browser fails silently.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, ErrCancelled) {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "%sError:%s %v\n", colorRed, colorReset, err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: XDG config dir)")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupServer, Title: "Server:"},
		&cobra.Group{ID: groupData, Title: "Data:"},
		&cobra.Group{ID: groupSetup, Title: "Setup:"},
	)

	rootCmd.AddCommand(serveCmd, stopCmd, statusCmd, logsCmd)
	rootCmd.AddCommand(seedCmd, browseCmd, walkCmd)
	rootCmd.AddCommand(configCmd, versionCmd)
}

// loadConfig reads the config file named by --config or the default one.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// commandContext returns the context cobra attached to cmd.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// configFile returns the config file in use.
func configFile() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPaths().ConfigFile()
}
