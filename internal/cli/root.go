// Package cli wires the chatrelay command line.
package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Tyrowin/chatrelay/internal/config"
)

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "chatrelay",
		Short:         "Multi-client chat relay over TCP and WebSocket",
		Long:          "chatrelay accepts length-prefixed JSON chat sessions over TCP and a WebSocket gateway, and relays direct, broadcast, group and file messages between logged-in users.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file (toml, yaml or json)")

	load := func() (config.Config, error) {
		return config.Load(viper.New(), configPath)
	}

	serveCmd := newServeCmd(load)
	rootCmd.RunE = serveCmd.RunE
	rootCmd.AddCommand(
		serveCmd,
		newConfigCmd(load),
		newVersionCmd(),
	)

	return rootCmd
}
