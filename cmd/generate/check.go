package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/meghashyamc/docsearch/config"
	"github.com/meghashyamc/docsearch/logger"
	"github.com/meghashyamc/docsearch/searchindex"
	"github.com/meghashyamc/docsearch/validation"
	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [payload-file]",
		Short: "Decode and validate a payload and print record counts per category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(configFrom(cmd), args[0], cmd.OutOrStdout())
		},
	}
}

func runCheck(cfg *config.Config, path string, w io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}

	idx, variable, err := searchindex.Decode(data)
	if err != nil {
		return err
	}

	validator, err := validation.New(logger.New(cfg.GetLogLevel()))
	if err != nil {
		return err
	}
	if err := validator.ValidateIndex(idx); err != nil {
		return errors.Join(errors.New("payload failed validation"), err)
	}

	counts := idx.CountByCategory()
	if variable == "" {
		variable = "(json)"
	}
	fmt.Fprintf(w, "variable: %s\n", variable)
	fmt.Fprintf(w, "records: %d\n", len(idx.Docs))
	fmt.Fprintf(w, "%s: %d\n", searchindex.CategoryPage, counts[searchindex.CategoryPage])
	fmt.Fprintf(w, "%s: %d\n", searchindex.CategorySection, counts[searchindex.CategorySection])

	return nil
}
