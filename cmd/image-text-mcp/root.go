package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ironsheep/image-text-mcp/internal/config"
	"github.com/ironsheep/image-text-mcp/internal/ocr/tesseract"
	"github.com/ironsheep/image-text-mcp/internal/server"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	envFile  string
	logLevel string
}

func (f *rootFlags) appOptions() appOptions {
	return appOptions{envFile: f.envFile, logLevel: f.logLevel}
}

// newRootCmd builds the command tree. Without a subcommand the binary
// serves MCP over stdin/stdout.
func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "image-text-mcp",
		Short: "Extract text from images with a remote AI model and local OCR",
		Long: `image-text-mcp extracts readable text, including handwriting, from
PNG, JPEG and WEBP images. A remote Gemini model is tried first and the
local Tesseract engine takes over when it fails (configurable per call).

Without a subcommand it serves the MCP protocol over stdin/stdout, so it
can be configured directly in an MCP client.

Environment variables:
  ` + config.EnvAPIKey + `          Remote model API key
  ` + config.EnvPolicy + `       remote, local, remote-then-local or both
  ` + config.EnvLanguages + `    Default language codes, e.g. "en,es"
  ` + config.EnvTessdataPrefix + `         Directory holding *.traineddata
  ` + config.EnvLogLevel + `    debug, info, warn or error`,
		SilenceUsage: true,
		Version:      Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(cmd, flags)
		},
	}

	root.PersistentFlags().StringVar(&flags.envFile, "env-file", "", "Read settings from this .env file (default: ./.env when present)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override the log level (debug, info, warn, error)")

	root.AddCommand(
		newMCPCmd(flags),
		newServeCmd(flags),
		newExtractCmd(flags),
		newLanguagesCmd(),
		newVersionCmd(),
	)
	return root
}

func newMCPCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP protocol over stdin/stdout (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(cmd, flags)
		},
	}
}

func runMCP(cmd *cobra.Command, flags *rootFlags) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a, err := newApp(ctx, flags.appOptions())
	if err != nil {
		return err
	}
	defer a.close()

	a.log.Debugf("Image Text MCP Server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)

	srv := server.New(server.Options{
		Orchestrator:     a.orchestrator,
		Cache:            a.cache,
		Config:           a.cfg,
		Logger:           a.log,
		Version:          Version,
		TesseractVersion: tesseract.Version,
	})
	return srv.Run(ctx)
}

// signalContext ends on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
