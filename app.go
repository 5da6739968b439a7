package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"github.com/wailsapp/wails/v2/pkg/logger"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"audiotranslator/internal/audio"
	"audiotranslator/internal/bootstrap"
	"audiotranslator/internal/domain"
	"audiotranslator/internal/usecase"
)

const (
	eventWorkflow    = "audiotranslator:workflow"
	eventProgress    = "audiotranslator:progress"
	eventAudioFiles  = "audiotranslator:audio-files"
	eventResults     = "audiotranslator:results"
	eventTranslation = "audiotranslator:translation"
	eventAlert       = "audiotranslator:alert"
	eventError       = "audiotranslator:error"
	eventInstall     = "audiotranslator:install"
)

// App is the Wails application root.
type App struct {
	ctx context.Context
	log logger.Logger

	controller *usecase.SessionController
	services   bootstrap.Services
	bootErr    error
}

func NewApp(log logger.Logger) *App {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	return &App{log: log}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, &wailsFileSaver{}, a.log)
	if err != nil {
		a.bootErr = err
		a.log.Error(fmt.Sprintf("startup failed: %v", err))
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.controller = services.Controller
	a.WorkflowStateChanged(domain.WorkflowTranscription, domain.WorkflowStateIdle, domain.WorkflowReasonReady)
	a.WorkflowStateChanged(domain.WorkflowTranslation, domain.WorkflowStateIdle, domain.WorkflowReasonReady)
}

func (a *App) shutdown(context.Context) {
	if a.controller != nil {
		a.controller.StopWatching(domain.WorkflowTranscription)
		a.controller.StopWatching(domain.WorkflowTranslation)
	}
	if err := a.services.Close(); err != nil {
		a.log.Warning(fmt.Sprintf("shutdown: %v", err))
	}
}

// SelectAudioFiles opens a file picker and replaces the audio selection.
func (a *App) SelectAudioFiles() ([]domain.AudioFile, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	paths, err := runtime.OpenMultipleFilesDialog(a.ctx, runtime.OpenDialogOptions{
		Title: "Select audio files",
		Filters: []runtime.FileFilter{{
			DisplayName: "Audio files",
			Pattern:     audioPattern(),
		}},
	})
	if err != nil || len(paths) == 0 {
		return a.controller.AudioFiles(), err
	}
	return a.controller.SelectAudio(a.ctx, paths)
}

// SelectAudioFolder opens a folder picker and selects every audio file below it.
func (a *App) SelectAudioFolder() ([]domain.AudioFile, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	dir, err := runtime.OpenDirectoryDialog(a.ctx, runtime.OpenDialogOptions{Title: "Select audio folder"})
	if err != nil || dir == "" {
		return a.controller.AudioFiles(), err
	}
	return a.controller.ScanAudioFolder(a.ctx, dir)
}

// AddAudioPaths selects dropped files.
func (a *App) AddAudioPaths(paths []string) ([]domain.AudioFile, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.controller.SelectAudio(a.ctx, paths)
}

// ClearAudioFiles empties the audio selection.
func (a *App) ClearAudioFiles() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.ClearAudio()
	return nil
}

// StartTranscription uploads the selection and waits for results.
func (a *App) StartTranscription() ([]domain.TranscriptionResult, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.controller.StartTranscription(a.ctx)
}

// InstallRuntime asks the backend to install the transcription runtime.
func (a *App) InstallRuntime() (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	return a.controller.InstallRuntime(a.ctx)
}

// DownloadTranscription saves one transcript.
func (a *App) DownloadTranscription(index int) (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	return a.controller.DownloadTranscription(a.ctx, index)
}

// DownloadAllTranscriptions saves every transcript in one file.
func (a *App) DownloadAllTranscriptions() (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	return a.controller.DownloadAllTranscriptions(a.ctx)
}

// OpenTextFile picks a text file and loads it for translation.
func (a *App) OpenTextFile() (domain.TranslationSnapshot, error) {
	if err := a.requireReady(); err != nil {
		return domain.TranslationSnapshot{}, err
	}
	path, err := runtime.OpenFileDialog(a.ctx, runtime.OpenDialogOptions{
		Title:   "Select text file",
		Filters: []runtime.FileFilter{{DisplayName: "Text files", Pattern: "*.txt"}},
	})
	if err != nil || path == "" {
		return a.controller.Snapshot(), err
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		a.SessionError(domain.ErrorCodeFilesystem, err.Error())
		return a.controller.Snapshot(), err
	}
	return a.controller.LoadText(a.ctx, filepath.Base(path), string(contents))
}

// LoadText loads text dropped or pasted in the UI.
func (a *App) LoadText(name string, text string) (domain.TranslationSnapshot, error) {
	if err := a.requireReady(); err != nil {
		return domain.TranslationSnapshot{}, err
	}
	return a.controller.LoadText(a.ctx, name, text)
}

// PreviousChunk moves to the previous chunk.
func (a *App) PreviousChunk() domain.TranslationSnapshot {
	if a.controller == nil {
		return domain.TranslationSnapshot{}
	}
	return a.controller.Navigate(-1)
}

// NextChunk moves to the next chunk.
func (a *App) NextChunk() domain.TranslationSnapshot {
	if a.controller == nil {
		return domain.TranslationSnapshot{}
	}
	return a.controller.Navigate(1)
}

// TranslateCurrent translates the chunk on screen.
func (a *App) TranslateCurrent() (domain.TranslationSnapshot, error) {
	if err := a.requireReady(); err != nil {
		return domain.TranslationSnapshot{}, err
	}
	return a.controller.TranslateCurrent(a.ctx)
}

// TranslateAll translates every chunk.
func (a *App) TranslateAll() (domain.TranslationSnapshot, error) {
	if err := a.requireReady(); err != nil {
		return domain.TranslationSnapshot{}, err
	}
	return a.controller.TranslateAll(a.ctx)
}

// StopWatching stops polling a workflow ("transcription" or "translation").
func (a *App) StopWatching(kind string) bool {
	if a.controller == nil {
		return false
	}
	return a.controller.StopWatching(domain.WorkflowKind(kind))
}

// ExportTranslation saves the assembled translation.
func (a *App) ExportTranslation() (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	return a.controller.Export(a.ctx)
}

// GetSettings returns the translation API settings.
func (a *App) GetSettings() (domain.Settings, error) {
	if err := a.requireReady(); err != nil {
		return domain.Settings{}, err
	}
	return a.controller.LoadSettings(a.ctx)
}

// SaveSettings stores the translation API settings.
func (a *App) SaveSettings(settings domain.Settings) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.SaveSettings(a.ctx, settings)
}

// TestConnection checks settings against the translation API without saving them.
func (a *App) TestConnection(settings domain.Settings) (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	return a.controller.TestConnection(a.ctx, settings)
}

// GetSystemInfo reports backend capabilities.
func (a *App) GetSystemInfo() (domain.SystemInfo, error) {
	if err := a.requireReady(); err != nil {
		return domain.SystemInfo{}, err
	}
	return a.controller.SystemInfo(a.ctx)
}

// GetSnapshot returns the translation view model.
func (a *App) GetSnapshot() domain.TranslationSnapshot {
	if a.controller == nil {
		return domain.TranslationSnapshot{}
	}
	return a.controller.Snapshot()
}

// GetStatus returns the current workflow status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		if a.bootErr != nil {
			return domain.Status{Message: a.bootErr.Error()}
		}
		return domain.Status{}
	}
	return a.controller.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	cfg := a.services.Config
	return map[string]string{
		"backend":           a.services.BackendURL,
		"demoBackend":       fmt.Sprint(cfg.Backend.Demo),
		"pollInterval":      cfg.Polling.Interval.String(),
		"sentencesPerChunk": fmt.Sprint(cfg.Text.SentencesPerChunk),
		"rulesFile":         cfg.Text.RulesFile,
		"configFile":        cfg.Source,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// WorkflowStateChanged emits workflow lifecycle updates to the frontend.
func (a *App) WorkflowStateChanged(kind domain.WorkflowKind, state domain.WorkflowState, reason domain.WorkflowReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventWorkflow, map[string]string{
		"workflow": string(kind),
		"state":    string(state),
		"reason":   string(reason),
		"message":  workflowReasonMessage(kind, reason),
	})
}

// Progress emits a progress percentage.
func (a *App) Progress(kind domain.WorkflowKind, percent float64) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventProgress, map[string]any{
		"workflow": string(kind),
		"percent":  percent,
	})
}

// AudioFilesChanged emits the audio selection with display sizes.
func (a *App) AudioFilesChanged(files []domain.AudioFile) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventAudioFiles, lo.Map(files, func(file domain.AudioFile, _ int) map[string]any {
		return map[string]any{
			"path":     file.Path,
			"name":     file.Name,
			"size":     audio.HumanSize(file.Size),
			"duration": file.Duration.String(),
		}
	}))
}

// TranscriptionResults emits the results of a finished transcription.
func (a *App) TranscriptionResults(results []domain.TranscriptionResult) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventResults, results)
}

// TranslationChanged emits the translation view model.
func (a *App) TranslationChanged(snapshot domain.TranslationSnapshot) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventTranslation, snapshot)
}

// Alert emits a user-facing message.
func (a *App) Alert(level domain.AlertLevel, message string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventAlert, map[string]string{
		"level":   string(level),
		"message": message,
	})
}

// SessionError emits errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

// InstallRequired asks the UI to offer the runtime installation.
func (a *App) InstallRequired(detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventInstall, map[string]string{"detail": detail})
}

func workflowReasonMessage(kind domain.WorkflowKind, reason domain.WorkflowReason) string {
	noun := "Translation"
	if kind == domain.WorkflowTranscription {
		noun = "Transcription"
	}
	switch reason {
	case domain.WorkflowReasonReady:
		return "Ready"
	case domain.WorkflowReasonSubmitted:
		return noun + " started..."
	case domain.WorkflowReasonTranslateAllSubmitted:
		return "Translating all chunks..."
	case domain.WorkflowReasonCompleted:
		return noun + " completed"
	case domain.WorkflowReasonFailed:
		return noun + " failed"
	case domain.WorkflowReasonStopped:
		return "Stopped watching " + strings.ToLower(noun)
	case domain.WorkflowReasonTimedOut:
		return noun + " timed out"
	case domain.WorkflowReasonRuntimeMissing:
		return "Transcription runtime not installed"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeValidation:
		return "Check your input"
	case domain.ErrorCodeBackend:
		return "Backend error"
	case domain.ErrorCodeTransport:
		return "Cannot reach backend"
	case domain.ErrorCodeRemediation:
		return "Installation required"
	case domain.ErrorCodeFilesystem:
		return "File error"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

func audioPattern() string {
	return strings.Join(lo.Map(audio.SupportedExtensions, func(ext string, _ int) string {
		return "*" + ext
	}), ";")
}

// wailsFileSaver writes downloads to a location picked in a save dialog.
type wailsFileSaver struct{}

func (s *wailsFileSaver) Save(ctx context.Context, download domain.Download) (string, error) {
	path, err := runtime.SaveFileDialog(ctx, runtime.SaveDialogOptions{
		Title:           "Save file",
		DefaultFilename: download.Filename,
	})
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", nil
	}
	if err := os.WriteFile(path, download.Content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
