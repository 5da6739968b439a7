// audiotranslatorctl drives the transcription and translation backend from a terminal.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"audiotranslator/internal/bootstrap"
	"audiotranslator/internal/config"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
)

type options struct {
	backend string
	demo    bool
	outDir  string
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "audiotranslatorctl",
		Short: "Transcribe audio and translate text through the audiotranslator backend",
		Long: `audiotranslatorctl runs the transcription and translation workflows
without the desktop UI.

Commands:
  transcribe  Upload audio files and save their transcripts
  translate   Chunk a text file, translate it and save the result
  settings    Show, update or test the translation API settings
  info        Show backend capabilities
  sim         Serve the simulated backend`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.backend, "backend", "", "Backend base URL (overrides configuration)")
	root.PersistentFlags().BoolVar(&opts.demo, "demo", false, "Use an in-process simulated backend")
	root.PersistentFlags().StringVarP(&opts.outDir, "out", "o", ".", "Directory for saved files")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug output")

	root.AddCommand(
		newTranscribeCmd(opts),
		newTranslateCmd(opts),
		newSettingsCmd(opts),
		newInfoCmd(opts),
		newSimCmd(opts),
		newVersionCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logError(os.Stderr, "%v", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "audiotranslatorctl %s (%s)\n", version, commit)
		},
	}
}

// build wires the session controller with terminal output and flag overrides.
func (o *options) build(stderr io.Writer) (bootstrap.Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return bootstrap.Services{}, err
	}
	if o.backend != "" {
		cfg.Backend.BaseURL = o.backend
	}
	if o.demo {
		cfg.Backend.Demo = true
	}

	log := &stderrLogger{out: stderr, verbose: o.verbose}
	return bootstrap.BuildWithConfig(cfg, &terminalSink{out: stderr}, &dirSaver{dir: o.outDir}, log)
}
