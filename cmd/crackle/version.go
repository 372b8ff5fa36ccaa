package main

import (
	"fmt"

	"github.com/aretw0/crackle"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of crackle",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "crackle version %s\n", crackle.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
