package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/logger"

	"audiotranslator/internal/chunking"
	"audiotranslator/internal/domain"
	"audiotranslator/internal/poller"
	"audiotranslator/internal/ports"
	"audiotranslator/internal/session"
)

var (
	ErrBusy            = errors.New("workflow already running")
	ErrNoAudioFiles    = errors.New("no audio files selected")
	ErrNoChunks        = errors.New("no text loaded")
	ErrSettingsInvalid = errors.New("api endpoint and token are required")
	ErrNothingToExport = errors.New("no translations to export")
	ErrRuntimeMissing  = errors.New("transcription runtime is not installed")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrNoResults       = errors.New("no transcription results")
	errNotConfigured   = errors.New("dependency not configured")
)

// Config controls polling and chunking behavior.
type Config struct {
	SentencesPerChunk int
	Poll              poller.Driver
}

// Dependencies are the adapters the controller drives.
type Dependencies struct {
	Backend  ports.Backend
	Scanner  ports.AudioScanner
	Cleaner  ports.TextCleaner
	Settings ports.SettingsStore
	Checker  ports.ConnectionChecker
	Saver    ports.FileSaver
	Events   ports.EventSink
	Log      logger.Logger
}

// SessionController owns the transcription and translation workflows of one
// desktop session.
type SessionController struct {
	backend ports.Backend
	scanner ports.AudioScanner
	cleaner ports.TextCleaner
	store   ports.SettingsStore
	checker ports.ConnectionChecker
	saver   ports.FileSaver
	events  ports.EventSink
	log     logger.Logger
	cfg     Config
	state   *session.State

	transcription workflowSlot
	translation   workflowSlot

	mu         sync.RWMutex
	audioFiles []domain.AudioFile
	results    []domain.TranscriptionResult
}

func NewSessionController(deps Dependencies, cfg Config) *SessionController {
	if cfg.SentencesPerChunk <= 0 {
		cfg.SentencesPerChunk = chunking.DefaultSentencesPerChunk
	}
	cfg.Poll = poller.New(cfg.Poll.Interval, cfg.Poll.Deadline)
	if deps.Log == nil {
		deps.Log = logger.NewDefaultLogger()
	}
	return &SessionController{
		backend: deps.Backend,
		scanner: deps.Scanner,
		cleaner: deps.Cleaner,
		store:   deps.Settings,
		checker: deps.Checker,
		saver:   deps.Saver,
		events:  deps.Events,
		log:     deps.Log,
		cfg:     cfg,
		state:   session.NewState(),
	}
}

// Status summarises both workflows.
func (c *SessionController) Status() domain.Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.Status{
		Transcribing: c.transcription.busy(),
		Translating:  c.translation.busy(),
		AudioFiles:   len(c.audioFiles),
		Results:      len(c.results),
	}
}

// StopWatching stops polling the given workflow. The backend job keeps running.
func (c *SessionController) StopWatching(kind domain.WorkflowKind) bool {
	switch kind {
	case domain.WorkflowTranscription:
		return c.transcription.cancelRun()
	case domain.WorkflowTranslation:
		return c.translation.cancelRun()
	default:
		return false
	}
}

// SystemInfo reports backend capabilities.
func (c *SessionController) SystemInfo(ctx context.Context) (domain.SystemInfo, error) {
	info, err := c.backend.SystemInfo(ctx)
	if err != nil {
		return domain.SystemInfo{}, fmt.Errorf("failed to read system info: %w", err)
	}
	return info, nil
}

// fail reports err to the UI and returns the workflow to idle.
func (c *SessionController) fail(kind domain.WorkflowKind, action string, err error) error {
	var (
		jobErr *poller.JobError
		coded  ports.CodedError
	)

	reason := domain.WorkflowReasonFailed
	switch {
	case errors.Is(err, poller.ErrStopped):
		reason = domain.WorkflowReasonStopped
		c.events.Alert(domain.AlertInfo, fmt.Sprintf("Stopped watching %s. The backend job may still finish.", kind))
	case errors.Is(err, poller.ErrDeadline):
		reason = domain.WorkflowReasonTimedOut
		c.events.Alert(domain.AlertWarning, fmt.Sprintf("%s did not finish in time", action))
	case errors.As(err, &jobErr):
		c.events.SessionError(domain.ErrorCodeBackend, jobErr.Message)
		c.events.Alert(domain.AlertDanger, fmt.Sprintf("%s failed: %s", action, jobErr.Error()))
	case errors.As(err, &coded):
		c.events.SessionError(coded.Code(), coded.Error())
		c.events.Alert(domain.AlertDanger, fmt.Sprintf("%s failed: %s", action, coded.Error()))
	default:
		c.events.SessionError(domain.ErrorCodeBackend, err.Error())
		c.events.Alert(domain.AlertDanger, fmt.Sprintf("%s failed: %s", action, err.Error()))
	}

	c.log.Warning(fmt.Sprintf("%s: %s: %v", kind, reason, err))
	c.events.WorkflowStateChanged(kind, domain.WorkflowStateIdle, reason)
	return err
}

// warn reports a validation failure. No request is made.
func (c *SessionController) warn(err error, message string) error {
	c.events.Alert(domain.AlertWarning, message)
	c.events.SessionError(domain.ErrorCodeValidation, err.Error())
	return err
}

func errorCode(err error) domain.ErrorCode {
	var coded ports.CodedError
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return domain.ErrorCodeBackend
}
