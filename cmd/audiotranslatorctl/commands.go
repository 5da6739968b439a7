package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"audiotranslator/internal/audio"
	"audiotranslator/internal/backendsim"
	"audiotranslator/internal/domain"
	"audiotranslator/internal/usecase"
)

func newTranscribeCmd(opts *options) *cobra.Command {
	var (
		install bool
		each    bool
	)
	cmd := &cobra.Command{
		Use:   "transcribe <file|dir>...",
		Short: "Upload audio files and save their transcripts",
		Long: `Upload audio files as one batch, wait for the backend to transcribe them
and save the transcripts into the output directory.

Directories are scanned recursively for supported audio files.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			services, err := opts.build(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer services.Close()
			controller := services.Controller

			paths, err := expandAudioPaths(ctx, args)
			if err != nil {
				return err
			}
			if _, err := controller.SelectAudio(ctx, paths); err != nil {
				return err
			}

			if install {
				if _, err := controller.InstallRuntime(ctx); err != nil {
					return err
				}
			}

			results, err := controller.StartTranscription(ctx)
			if errors.Is(err, usecase.ErrRuntimeMissing) {
				return fmt.Errorf("%w (rerun with --install)", err)
			}
			if err != nil {
				return err
			}

			var saved []string
			if each {
				for index, result := range results {
					if !result.Success {
						continue
					}
					path, err := controller.DownloadTranscription(ctx, index)
					if err != nil {
						return err
					}
					saved = append(saved, path)
				}
			} else {
				path, err := controller.DownloadAllTranscriptions(ctx)
				if err != nil {
					return err
				}
				saved = append(saved, path)
			}
			for _, path := range saved {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&install, "install", false, "Install the transcription runtime before uploading")
	cmd.Flags().BoolVar(&each, "each", false, "Save one transcript file per audio file")
	return cmd
}

// expandAudioPaths replaces directories with the audio files below them.
func expandAudioPaths(ctx context.Context, args []string) ([]string, error) {
	scanner := audio.NewScanner("-")
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		files, err := scanner.Scan(ctx, arg)
		if err != nil {
			return nil, err
		}
		paths = append(paths, lo.Map(files, func(file domain.AudioFile, _ int) string { return file.Path })...)
	}
	return lo.Uniq(paths), nil
}

func newTranslateCmd(opts *options) *cobra.Command {
	var chunk int
	cmd := &cobra.Command{
		Use:   "translate <file>",
		Short: "Chunk a text file, translate it and save the result",
		Long: `Load a text file, split it into chunks and translate it with the
configured translation API. By default every chunk is translated; --chunk
translates a single chunk (1-based).

The assembled translation is exported into the output directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			contents, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			services, err := opts.build(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer services.Close()
			controller := services.Controller

			snapshot, err := controller.LoadText(ctx, filepath.Base(args[0]), string(contents))
			if err != nil {
				return err
			}

			if chunk > 0 {
				if chunk > snapshot.Chunks {
					return fmt.Errorf("%w: chunk %d of %d", usecase.ErrIndexOutOfRange, chunk, snapshot.Chunks)
				}
				controller.Navigate(chunk - 1)
				snapshot, err = controller.TranslateCurrent(ctx)
			} else {
				snapshot, err = controller.TranslateAll(ctx)
			}
			if err != nil {
				return err
			}

			path, err := controller.Export(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d of %d chunks)\n", path, snapshot.Completed, snapshot.Chunks)
			return nil
		},
	}
	cmd.Flags().IntVar(&chunk, "chunk", 0, "Translate only this chunk (1-based)")
	return cmd
}

func newSettingsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show, update or test the translation API settings",
	}

	var (
		endpoint string
		token    string
		model    string
		prompt   string
	)
	apply := func(cmd *cobra.Command, settings domain.Settings) domain.Settings {
		if cmd.Flags().Changed("endpoint") {
			settings.APIEndpoint = endpoint
		}
		if cmd.Flags().Changed("token") {
			settings.APIToken = token
		}
		if cmd.Flags().Changed("model") {
			settings.APIModel = model
		}
		if cmd.Flags().Changed("prompt") {
			settings.SystemPrompt = prompt
		}
		return settings
	}
	bindFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringVar(&endpoint, "endpoint", "", "Chat completions endpoint")
		cmd.Flags().StringVar(&token, "token", "", "API token")
		cmd.Flags().StringVar(&model, "model", "", "Model name")
		cmd.Flags().StringVar(&prompt, "prompt", "", "System prompt")
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the current settings with the token redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := opts.build(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer services.Close()

			settings, err := services.Controller.LoadSettings(cmd.Context())
			if err != nil {
				return err
			}
			printSettings(cmd, settings.Redacted())
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set",
		Short: "Update the settings on the backend and in the local store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := opts.build(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer services.Close()

			current, err := services.Controller.LoadSettings(cmd.Context())
			if err != nil {
				return err
			}
			updated := apply(cmd, current)
			if err := services.Controller.SaveSettings(cmd.Context(), updated); err != nil {
				return err
			}
			printSettings(cmd, updated.Redacted())
			return nil
		},
	}
	bindFlags(set)

	test := &cobra.Command{
		Use:   "test",
		Short: "Send a minimal request with the settings without saving them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := opts.build(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer services.Close()

			current, err := services.Controller.LoadSettings(cmd.Context())
			if err != nil {
				return err
			}
			message, err := services.Controller.TestConnection(cmd.Context(), apply(cmd, current))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), message)
			return nil
		},
	}
	bindFlags(test)

	cmd.AddCommand(show, set, test)
	return cmd
}

func printSettings(cmd *cobra.Command, settings domain.Settings) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "endpoint: %s\n", settings.APIEndpoint)
	fmt.Fprintf(out, "token:    %s\n", settings.APIToken)
	fmt.Fprintf(out, "model:    %s\n", settings.APIModel)
	fmt.Fprintf(out, "prompt:   %s\n", settings.SystemPrompt)
}

func newInfoCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show backend capabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := opts.build(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer services.Close()

			info, err := services.Controller.SystemInfo(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "backend:        %s\n", services.BackendURL)
			fmt.Fprintf(out, "transcription:  %t\n", info.TranscriptionAvailable)
			fmt.Fprintf(out, "audio formats:  %s\n", strings.Join(info.SupportedAudioFormats, " "))
			fmt.Fprintf(out, "max file size:  %s\n", audio.HumanSize(info.MaxFileSize))
			return nil
		},
	}
}

func newSimCmd(opts *options) *cobra.Command {
	var (
		addr           string
		stepDelay      time.Duration
		runtimeMissing bool
	)
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Serve the simulated backend",
		Long: `Serve an in-memory implementation of the backend API. Translations are
tagged copies of the source text and transcripts describe the upload.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			listener, err := backendsim.Listen(addr, backendsim.Options{
				StepDelay:      stepDelay,
				RuntimeMissing: runtimeMissing,
				Log:            &stderrLogger{out: cmd.ErrOrStderr(), verbose: opts.verbose},
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), listener.URL())

			done := make(chan error, 1)
			go func() { done <- listener.Wait() }()

			select {
			case err := <-done:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := listener.Shutdown(shutdownCtx); err != nil {
				return err
			}
			return <-done
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:5000", "Listen address")
	cmd.Flags().DurationVar(&stepDelay, "step-delay", 300*time.Millisecond, "Delay between job items")
	cmd.Flags().BoolVar(&runtimeMissing, "runtime-missing", false, "Report the transcription runtime as missing until installed")
	return cmd
}
