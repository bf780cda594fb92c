package main

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/meghashyamc/docsearch/config"
	"github.com/spf13/cobra"
)

type configKey struct{}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "docsearch",
		Short: "Generate and check documentation search index payloads",
		Long: `Offline tools for search index payloads: build one from a directory of
markdown pages, or decode and validate an existing search_index.js.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			godotenv.Load()

			cfg, err := config.Load("")
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
	}

	rootCmd.AddCommand(newGenerateCmd())
	rootCmd.AddCommand(newCheckCmd())

	return rootCmd
}

func configFrom(cmd *cobra.Command) *config.Config {
	return cmd.Context().Value(configKey{}).(*config.Config)
}
