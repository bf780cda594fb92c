package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/meghashyamc/docsearch/config"
	"github.com/meghashyamc/docsearch/logger"
	"github.com/meghashyamc/docsearch/searchindex"
	"github.com/meghashyamc/docsearch/services/generate"
	"github.com/meghashyamc/docsearch/validation"
	"github.com/spf13/cobra"
)

const (
	formatJS   = "js"
	formatJSON = "json"
)

func newGenerateCmd() *cobra.Command {
	var src, out, format string

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a search index payload from a markdown directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), configFrom(cmd), src, out, format, cmd.OutOrStdout())
		},
	}

	generateCmd.Flags().StringVar(&src, "src", "", "markdown source directory")
	generateCmd.Flags().StringVar(&out, "out", "", "file to write the payload to (stdout when empty)")
	generateCmd.Flags().StringVar(&format, "format", formatJS, "payload format: js or json")
	generateCmd.MarkFlagRequired("src")

	return generateCmd
}

func runGenerate(ctx context.Context, cfg *config.Config, src, out, format string, stdout io.Writer) error {
	if format != formatJS && format != formatJSON {
		return fmt.Errorf("unknown format %q", format)
	}

	log := logger.New(cfg.GetLogLevel())
	validator, err := validation.New(log)
	if err != nil {
		return err
	}

	generator := generate.New(log, generate.Options{
		PrettyURLs: cfg.GetPrettyURLs(),
		Pages:      cfg.GetPageOrder(),
	})
	idx, _, err := generator.Generate(ctx, src)
	if err != nil {
		return err
	}
	if err := validator.ValidateIndex(idx); err != nil {
		return fmt.Errorf("generated an invalid search index: %w", err)
	}

	var buf bytes.Buffer
	if format == formatJSON {
		err = searchindex.EncodeJSON(&buf, idx)
	} else {
		err = searchindex.EncodeJS(&buf, cfg.GetSearchIndexVariable(), idx)
	}
	if err != nil {
		return err
	}

	if out == "" {
		_, err = stdout.Write(buf.Bytes())
		return err
	}
	if err := os.WriteFile(out, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write payload: %w", err)
	}
	log.Info("wrote search index", "path", out, "num_of_records", len(idx.Docs))

	return nil
}
