package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/desain-gratis/unitbot/internal/src/dispatcher"
	"github.com/desain-gratis/unitbot/src/entity"
)

var runJSON bool

var runCmd = &cobra.Command{
	Use:   "run <command> [argument]",
	Short: "Run one command locally and print the reply",
	Long:  "Run one command through the dispatcher without discord, e.g. `unitbot run status sshd`.",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runRun,
}

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List the available commands",
	RunE:  runCommands,
}

func init() {
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the reply as json")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(commandsCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	d := dispatcher.New(config.manager(), config.dispatcherConfig(io.Discard))

	command := entity.Command{Name: args[0], Actor: "cli"}
	if len(args) > 1 {
		command.Arg = args[1]
	}

	result, reply := d.Dispatch(context.Background(), command)
	if !reply {
		fmt.Fprintln(cmd.ErrOrStderr(), "no reply: command not meant for this host")
		return nil
	}

	if runJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printResult(cmd.OutOrStdout(), result)
	if !result.Success {
		return fmt.Errorf("%s failed", command.Name)
	}
	return nil
}

func printResult(w io.Writer, result entity.CommandResult) {
	fmt.Fprintf(w, "[%s] %s\n", result.Severity, result.Headline)
	if result.Detail != "" {
		fmt.Fprintln(w, result.Detail)
	}
	if result.Hint != "" {
		fmt.Fprintf(w, "-- %s\n", result.Hint)
	}
}

func runCommands(cmd *cobra.Command, _ []string) error {
	d := dispatcher.New(nil, config.dispatcherConfig(io.Discard))

	for _, def := range d.Commands() {
		usage := def.Name
		if def.ArgName != "" {
			if def.ArgRequired {
				usage += " <" + def.ArgName + ">"
			} else {
				usage += " [" + def.ArgName + "]"
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", usage, def.Description)
	}

	return nil
}
