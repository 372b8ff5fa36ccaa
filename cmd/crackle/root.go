package main

import (
	"fmt"
	"os"

	"github.com/aretw0/crackle/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "crackle",
	Short: "Crackle is a model-based protocol fuzzing engine",
	Long: `Crackle drives a target through a state model of its protocol, serializing
and cracking structured data models on every iteration and reporting faults.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "crackle.yaml", "Run file")
	rootCmd.PersistentFlags().StringP("target", "t", "", "Registered target name (overrides the run file)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().Bool("json", false, "Print machine-readable output")
}

// runOptions collects the persistent flags shared by every command.
func runOptions(cmd *cobra.Command) cli.RunOptions {
	configPath, _ := cmd.Flags().GetString("config")
	target, _ := cmd.Flags().GetString("target")
	logLevel, _ := cmd.Flags().GetString("log-level")
	jsonMode, _ := cmd.Flags().GetBool("json")
	return cli.RunOptions{
		ConfigPath: configPath,
		Target:     target,
		LogLevel:   logLevel,
		JSON:       jsonMode,
		Out:        cmd.OutOrStdout(),
	}
}
