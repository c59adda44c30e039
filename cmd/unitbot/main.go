package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).With().Logger()
}

var configPath string

var rootCmd = &cobra.Command{
	Use:   "unitbot",
	Short: "Control systemd units from discord",
	Long:  "unitbot maps discord slash commands to systemd unit operations over D-Bus.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initConfig(configPath)
	},
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "yaml config file (default $CONFIG)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
