package main

import (
	"github.com/aretw0/crackle/internal/cli"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the state model visualization",
	Long:  `Outputs a Mermaid diagram (graph TD) of the target's states, transitions and slurps.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Graph(runOptions(cmd))
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
