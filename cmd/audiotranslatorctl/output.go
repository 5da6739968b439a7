package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"audiotranslator/internal/domain"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// stderrLogger adapts the colored helpers to the Wails logger interface.
type stderrLogger struct {
	out     io.Writer
	verbose bool
}

func (l *stderrLogger) Print(message string) { fmt.Fprintln(l.out, message) }

func (l *stderrLogger) Trace(message string) {
	if l.verbose {
		logInfo(l.out, "%s", message)
	}
}

func (l *stderrLogger) Debug(message string) {
	if l.verbose {
		logInfo(l.out, "%s", message)
	}
}

func (l *stderrLogger) Info(message string) {
	if l.verbose {
		logInfo(l.out, "%s", message)
	}
}

func (l *stderrLogger) Warning(message string) { logWarning(l.out, "%s", message) }
func (l *stderrLogger) Error(message string)   { logError(l.out, "%s", message) }

func (l *stderrLogger) Fatal(message string) {
	logError(l.out, "%s", message)
	os.Exit(1)
}

// terminalSink prints session events as log lines.
type terminalSink struct {
	out io.Writer

	mu           sync.Mutex
	lastProgress map[domain.WorkflowKind]int
}

func (s *terminalSink) WorkflowStateChanged(kind domain.WorkflowKind, state domain.WorkflowState, reason domain.WorkflowReason) {
	if reason == domain.WorkflowReasonReady {
		return
	}
	logInfo(s.out, "%s %s (%s)", kind, state, reason)
}

// Progress prints whole-percent changes only.
func (s *terminalSink) Progress(kind domain.WorkflowKind, percent float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastProgress == nil {
		s.lastProgress = map[domain.WorkflowKind]int{}
	}
	rounded := int(percent)
	if last, ok := s.lastProgress[kind]; ok && last == rounded {
		return
	}
	s.lastProgress[kind] = rounded
	logInfo(s.out, "%s %d%%", kind, rounded)
}

func (s *terminalSink) AudioFilesChanged(files []domain.AudioFile) {
	logInfo(s.out, "%d audio files selected", len(files))
}

func (s *terminalSink) TranscriptionResults(results []domain.TranscriptionResult) {
	for _, result := range results {
		if result.Success {
			logSuccess(s.out, "%s", result.Filename)
		} else {
			logWarning(s.out, "%s: %s", result.Filename, result.Error)
		}
	}
}

func (s *terminalSink) TranslationChanged(snapshot domain.TranslationSnapshot) {
	logInfo(s.out, "%d of %d chunks translated", snapshot.Completed, snapshot.Chunks)
}

func (s *terminalSink) Alert(level domain.AlertLevel, message string) {
	switch level {
	case domain.AlertSuccess:
		logSuccess(s.out, "%s", message)
	case domain.AlertWarning:
		logWarning(s.out, "%s", message)
	case domain.AlertDanger:
		logError(s.out, "%s", message)
	default:
		logInfo(s.out, "%s", message)
	}
}

func (s *terminalSink) SessionError(code domain.ErrorCode, detail string) {
	logError(s.out, "%s: %s", code, detail)
}

func (s *terminalSink) InstallRequired(string) {
	logWarning(s.out, "transcription runtime missing, run: audiotranslatorctl transcribe --install")
}

// dirSaver writes downloads into a fixed directory.
type dirSaver struct {
	dir string
}

func (s *dirSaver) Save(_ context.Context, download domain.Download) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", s.dir, err)
	}
	path := filepath.Join(s.dir, filepath.Base(download.Filename))
	if err := os.WriteFile(path, download.Content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
