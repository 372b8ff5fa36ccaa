package main

import (
	"github.com/aretw0/crackle/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a target behind the status server",
	Long:  `Runs the target while exposing /healthz, /metrics, /runs/last and /events over HTTP, and keeps serving after the run until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := runOptions(cmd)
		opts.Iterations, _ = cmd.Flags().GetInt("iterations")
		opts.RedisAddr, _ = cmd.Flags().GetString("redis")
		port, _ := cmd.Flags().GetString("port")

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()
		return cli.Serve(ctx, opts, ":"+port)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().IntP("iterations", "n", 0, "Number of iterations (overrides the run file)")
	serveCmd.Flags().String("redis", "", "Redis address for shared slurps, faults and run locks")
}
