package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/runger/ringlist/internal/config"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Show or change configuration values",
	GroupID: groupSetup,
	Long: `Show or change ringlist configuration values.

Configuration is stored in ~/.config/ringlist/config.yaml (XDG compliant).
Keys have the form section.key with the sections pager, server, storage
and browse.

Examples:
  ringlist config list
  ringlist config get pager.page_size
  ringlist config set pager.capacity 400`,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every key and its value",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return listConfig(cmd.OutOrStdout(), cfg)
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the value of a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		value, err := cfg.Get(args[0])
		if err != nil {
			return err
		}
		if value == "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s(not set)%s\n", colorDim, colorReset)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a key and save the config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return setConfig(cmd.OutOrStdout(), cfg, args[0], args[1])
	},
}

func init() {
	configCmd.AddCommand(configListCmd, configGetCmd, configSetCmd)
}

func listConfig(w io.Writer, cfg *config.Config) error {
	fmt.Fprintf(w, "%sConfiguration Keys%s\n", colorBold, colorReset)
	fmt.Fprintln(w, strings.Repeat("-", 40))

	var failed []string
	for _, key := range config.ListKeys() {
		value, err := cfg.Get(key)
		if err != nil {
			failed = append(failed, key)
			continue
		}
		if value == "" {
			value = colorDim + "(not set)" + colorReset
		}
		fmt.Fprintf(w, "  %s%s%s = %s\n", colorCyan, key, colorReset, value)
	}
	if len(failed) > 0 {
		fmt.Fprintf(w, "\n%sWarning:%s failed to read keys: %s\n", colorYellow, colorReset, strings.Join(failed, ", "))
	}

	fmt.Fprintf(w, "\nConfig file: %s\n", configFile())
	return nil
}

func setConfig(w io.Writer, cfg *config.Config, key, value string) error {
	if err := cfg.Set(key, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	path := configFile()
	if err := cfg.SaveToFile(path); err != nil {
		return err
	}

	fmt.Fprintf(w, "%s%s%s = %s\n", colorCyan, key, colorReset, value)
	fmt.Fprintf(w, "Saved to: %s\n", path)
	return nil
}
