package ports

import (
	"context"

	"audiotranslator/internal/domain"
)

// UploadFile is one audio file submitted in a transcription batch.
type UploadFile struct {
	Name string
	Path string
}

// TranslateRequest is the payload of a translation job submission.
type TranslateRequest struct {
	Settings     domain.Settings
	ChunkIndex   *int
	TranslateAll bool
}

// TranscriptionAPI is the backend surface for transcription jobs.
type TranscriptionAPI interface {
	SubmitTranscription(ctx context.Context, files []UploadFile) error
	TranscriptionStatus(ctx context.Context) (domain.JobStatus, error)
	DownloadTranscription(ctx context.Context, index *int) (domain.Download, error)
	InstallRuntime(ctx context.Context) (string, error)
}

// TranslationAPI is the backend surface for chunked translation jobs.
type TranslationAPI interface {
	ProcessText(ctx context.Context, text string, sentencesPerChunk int) ([]string, error)
	SubmitTranslation(ctx context.Context, req TranslateRequest) error
	TranslationStatus(ctx context.Context) (domain.JobStatus, error)
	ExportTranslation(ctx context.Context) (domain.Download, error)
}

// SettingsAPI is the backend source of truth for settings.
type SettingsAPI interface {
	FetchSettings(ctx context.Context) (domain.Settings, error)
	StoreSettings(ctx context.Context, settings domain.Settings) error
}

// SystemAPI reports backend capabilities.
type SystemAPI interface {
	SystemInfo(ctx context.Context) (domain.SystemInfo, error)
}

// CodedError is implemented by adapter errors that know their error category.
type CodedError interface {
	error
	Code() domain.ErrorCode
}

// Backend is the complete backend surface.
type Backend interface {
	TranscriptionAPI
	TranslationAPI
	SettingsAPI
	SystemAPI
}

// SettingsStore is the local settings cache.
type SettingsStore interface {
	Load() (domain.Settings, bool, error)
	Save(settings domain.Settings) error
}

// ConnectionChecker verifies that translation API settings work.
type ConnectionChecker interface {
	Check(ctx context.Context, settings domain.Settings) (string, error)
}

// AudioScanner resolves audio files from folders or dropped paths.
type AudioScanner interface {
	Scan(ctx context.Context, dir string) ([]domain.AudioFile, error)
	Inspect(ctx context.Context, paths []string) ([]domain.AudioFile, error)
}

// TextCleaner normalises text before it is chunked.
type TextCleaner interface {
	Clean(text string) (string, error)
}

// FileSaver persists a downloaded file on the client side.
type FileSaver interface {
	Save(ctx context.Context, download domain.Download) (string, error)
}

// EventSink emits session state and alerts to the UI.
type EventSink interface {
	WorkflowStateChanged(kind domain.WorkflowKind, state domain.WorkflowState, reason domain.WorkflowReason)
	Progress(kind domain.WorkflowKind, percent float64)
	AudioFilesChanged(files []domain.AudioFile)
	TranscriptionResults(results []domain.TranscriptionResult)
	TranslationChanged(snapshot domain.TranslationSnapshot)
	Alert(level domain.AlertLevel, message string)
	SessionError(code domain.ErrorCode, detail string)
	InstallRequired(detail string)
}
