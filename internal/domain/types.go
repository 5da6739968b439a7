package domain

import (
	"sort"
	"strings"
	"time"
)

// WorkflowKind identifies one of the two long-running workflows.
type WorkflowKind string

const (
	WorkflowTranscription WorkflowKind = "transcription"
	WorkflowTranslation   WorkflowKind = "translation"
)

// WorkflowState models the lifecycle of a single workflow run.
type WorkflowState string

const (
	WorkflowStateIdle    WorkflowState = "idle"
	WorkflowStateRunning WorkflowState = "running"
)

// WorkflowReason provides a structured reason for workflow transitions.
type WorkflowReason string

const (
	WorkflowReasonReady                 WorkflowReason = "ready"
	WorkflowReasonSubmitted             WorkflowReason = "submitted"
	WorkflowReasonCompleted             WorkflowReason = "completed"
	WorkflowReasonFailed                WorkflowReason = "failed"
	WorkflowReasonStopped               WorkflowReason = "stopped"
	WorkflowReasonTimedOut              WorkflowReason = "timed_out"
	WorkflowReasonRuntimeMissing        WorkflowReason = "runtime_missing"
	WorkflowReasonTranslateAllSubmitted WorkflowReason = "translate_all_submitted"
)

// AlertLevel mirrors the alert styles of the UI.
type AlertLevel string

const (
	AlertInfo    AlertLevel = "info"
	AlertSuccess AlertLevel = "success"
	AlertWarning AlertLevel = "warning"
	AlertDanger  AlertLevel = "danger"
)

// ErrorCode identifies the error taxonomy surfaced to the UI.
type ErrorCode string

const (
	ErrorCodeStartup     ErrorCode = "startup"
	ErrorCodeValidation  ErrorCode = "validation"
	ErrorCodeBackend     ErrorCode = "backend"
	ErrorCodeTransport   ErrorCode = "transport"
	ErrorCodeRemediation ErrorCode = "remediation"
	ErrorCodeFilesystem  ErrorCode = "filesystem"
)

// JobState is the status reported by a backend status endpoint.
type JobState string

const (
	JobProcessing JobState = "processing"
	JobCompleted  JobState = "completed"
	JobError      JobState = "error"
)

// Terminal reports whether polling should stop on this state.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobError
}

// JobStatus is one poll result. Payload fields are populated per endpoint.
type JobStatus struct {
	State        JobState              `json:"status"`
	Progress     float64               `json:"progress"`
	Error        string                `json:"error,omitempty"`
	Results      []TranscriptionResult `json:"results,omitempty"`
	Translations TranslationMap        `json:"translations,omitempty"`
}

// AudioFile is one entry of the selected AudioFileSet.
type AudioFile struct {
	Path     string        `json:"path"`
	Name     string        `json:"name"`
	Size     int64         `json:"size"`
	Duration time.Duration `json:"duration"`
}

// TranscriptionResult is the per-file outcome of a transcription run.
type TranscriptionResult struct {
	Filename string `json:"filename"`
	Success  bool   `json:"success"`
	Text     string `json:"text,omitempty"`
	Error    string `json:"error,omitempty"`
}

// TranslationMap maps chunk index to translated text.
type TranslationMap map[int]string

// Indices returns the translated chunk indices in ascending order.
func (m TranslationMap) Indices() []int {
	out := make([]int, 0, len(m))
	for index := range m {
		out = append(out, index)
	}
	sort.Ints(out)
	return out
}

// Clone returns an independent copy.
func (m TranslationMap) Clone() TranslationMap {
	out := make(TranslationMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// DefaultModel is used when the settings leave the model empty.
const DefaultModel = "gpt-3.5-turbo"

// Settings holds the translation API configuration.
type Settings struct {
	APIEndpoint  string `json:"api_endpoint"`
	APIToken     string `json:"api_token"`
	APIModel     string `json:"api_model"`
	SystemPrompt string `json:"system_prompt"`
}

// Valid reports whether translation calls may be attempted.
func (s Settings) Valid() bool {
	return s.APIEndpoint != "" && s.APIToken != ""
}

// Warnings lists non-blocking issues with the settings.
func (s Settings) Warnings() []string {
	var warnings []string
	endpoint := strings.TrimSpace(s.APIEndpoint)
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		warnings = append(warnings, "API endpoint should start with http:// or https://")
	}
	if strings.TrimSpace(s.APIModel) == "" {
		warnings = append(warnings, "model is empty, "+DefaultModel+" will be used")
	}
	if strings.TrimSpace(s.SystemPrompt) == "" {
		warnings = append(warnings, "system prompt is empty")
	}
	return warnings
}

// Redacted returns a copy safe to show in logs and the UI.
func (s Settings) Redacted() Settings {
	if s.APIToken != "" {
		s.APIToken = "********"
	}
	return s
}

// SystemInfo describes backend capabilities.
type SystemInfo struct {
	TranscriptionAvailable bool     `json:"transformers_available"`
	SupportedAudioFormats  []string `json:"supported_audio_formats"`
	MaxFileSize            int64    `json:"max_file_size"`
}

// TextStats summarises a loaded text.
type TextStats struct {
	Characters int `json:"characters"`
	Words      int `json:"words"`
	Sentences  int `json:"sentences"`
	Paragraphs int `json:"paragraphs"`
}

// Download is a file produced by the backend for a client-side save.
type Download struct {
	Filename string
	Content  []byte
}

// TranslationSnapshot is the render model of the translation tab.
type TranslationSnapshot struct {
	SourceName   string         `json:"sourceName"`
	Chunks       int            `json:"chunks"`
	CurrentIndex int            `json:"currentIndex"`
	Original     string         `json:"original"`
	Translated   string         `json:"translated"`
	HasPrev      bool           `json:"hasPrev"`
	HasNext      bool           `json:"hasNext"`
	Completed    int            `json:"completed"`
	Progress     float64        `json:"progress"`
	Translations TranslationMap `json:"translations"`
	Stats        TextStats      `json:"stats"`
}

// Status summarises the runtime state for the UI.
type Status struct {
	Transcribing bool   `json:"transcribing"`
	Translating  bool   `json:"translating"`
	AudioFiles   int    `json:"audioFiles"`
	Results      int    `json:"results"`
	Message      string `json:"message,omitempty"`
}
