package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Acquire an upstream token and print its status",
	Long:  "Checks the OAuth configuration by requesting one token from the token endpoint. The token itself is never printed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		setupLogger(c)

		deps, err := newDependencies(cmd.Context(), c)
		if err != nil {
			return err
		}
		if _, err := deps.tokens.Token(cmd.Context()); err != nil {
			return fmt.Errorf("[token] %s grant: %w", deps.tokens.GrantType(), err)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(deps.tokens.Status())
	},
}
