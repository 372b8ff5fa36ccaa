package main

import (
	"github.com/aretw0/crackle/internal/cli"
	"github.com/spf13/cobra"
)

var crackCmd = &cobra.Command{
	Use:   "crack [model]",
	Short: "Parse bytes against a target model",
	Long: `Cracks a hex string or a file into one data model of the target and prints
every element value. The model is named "<state>.<action>.<model>".`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.CrackOptions{RunOptions: runOptions(cmd)}
		if len(args) > 0 {
			opts.Model = args[0]
		}
		opts.Hex, _ = cmd.Flags().GetString("hex")
		opts.File, _ = cmd.Flags().GetString("file")
		return cli.Crack(cmd.Context(), opts)
	},
}

func init() {
	rootCmd.AddCommand(crackCmd)
	crackCmd.Flags().String("hex", "", "Input bytes as hex")
	crackCmd.Flags().StringP("file", "f", "", "Read input bytes from a file")
}
