package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ironsheep/image-text-mcp/internal/backend"
)

func newLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List the supported language codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tNAME\tTESSERACT")
			for _, l := range backend.SupportedLanguages() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", l.Code, l.Name, l.Tesseract)
			}
			return w.Flush()
		},
	}
}
