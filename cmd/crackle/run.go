package main

import (
	"github.com/aretw0/crackle/internal/cli"
	"github.com/aretw0/crackle/internal/presentation/tui"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fuzz a registered target",
	Long:  `Runs the configured number of iterations against the target and prints a report of the faults found.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := runOptions(cmd)
		opts.Iterations, _ = cmd.Flags().GetInt("iterations")
		opts.MetricsAddr, _ = cmd.Flags().GetString("metrics-addr")
		opts.RedisAddr, _ = cmd.Flags().GetString("redis")
		opts.Quiet, _ = cmd.Flags().GetBool("quiet")
		if cmd.Flags().Changed("control") {
			control, _ := cmd.Flags().GetInt("control")
			opts.Control = &control
		}

		if !opts.JSON && !opts.Quiet {
			tui.PrintBanner(cmd.ErrOrStderr())
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()
		return cli.Run(ctx, opts)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntP("iterations", "n", 0, "Number of iterations (overrides the run file)")
	runCmd.Flags().Int("control", 0, "Unmutated recording iteration, negative to disable")
	runCmd.Flags().String("metrics-addr", "", "Serve status and metrics on this address while running")
	runCmd.Flags().String("redis", "", "Redis address for shared slurps, faults and run locks")
	runCmd.Flags().BoolP("quiet", "q", false, "Suppress logs and the report")
}
