package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ironsheep/image-text-mcp/internal/extract"
)

type extractFlags struct {
	languages []string
	policy    string
	asJSON    bool
	output    string
}

func newExtractCmd(flags *rootFlags) *cobra.Command {
	ef := &extractFlags{}

	cmd := &cobra.Command{
		Use:   "extract FILE",
		Short: "Extract the text from one image",
		Example: `  image-text-mcp extract receipt.jpg
  image-text-mcp extract note.png --languages en,es --policy both --json
  image-text-mcp extract scan.webp -o scan.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := newApp(ctx, flags.appOptions())
			if err != nil {
				return err
			}
			defer a.close()

			return runExtract(ctx, cmd, a, ef, args[0])
		},
	}

	cmd.Flags().StringSliceVarP(&ef.languages, "languages", "l", nil, "Language codes, e.g. en,es (default from IMAGE_TEXT_LANGUAGES or en)")
	cmd.Flags().StringVarP(&ef.policy, "policy", "p", "", "Backend policy: remote, local, remote-then-local, both")
	cmd.Flags().BoolVar(&ef.asJSON, "json", false, "Print the full extraction result as JSON")
	cmd.Flags().StringVarP(&ef.output, "output", "o", "", "Write the extracted text to this file")
	return cmd
}

// runExtract extracts the text of one file. ctx bounds the extraction so an
// interrupt stops in-flight backend calls.
func runExtract(ctx context.Context, cmd *cobra.Command, a *app, ef *extractFlags, path string) error {
	var policy extract.Policy
	if ef.policy != "" {
		p, err := extract.ParsePolicy(ef.policy)
		if err != nil {
			return err
		}
		policy = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	res, extractErr := a.orchestrator.Extract(ctx, extract.Input{
		Image:     data,
		MIMEType:  strings.TrimPrefix(filepath.Ext(path), "."),
		Languages: ef.languages,
		Policy:    policy,
	})
	if res == nil {
		return extractErr
	}

	out := cmd.OutOrStdout()
	if ef.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	}
	if extractErr != nil {
		return extractErr
	}

	if ef.output != "" {
		if err := os.WriteFile(ef.output, []byte(res.Text), 0o644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d characters from %s to %s\n", res.Statistics.Characters, res.Backend, ef.output)
		return nil
	}
	if !ef.asJSON {
		fmt.Fprintln(out, res.Text)
	}
	return nil
}
