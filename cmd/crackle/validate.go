package main

import (
	"fmt"

	"github.com/aretw0/crackle/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the target's state model for consistency",
	Long:  `Reports unknown states, duplicate names, malformed actions and data models that fail to compile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cli.Validate(runOptions(cmd)); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
