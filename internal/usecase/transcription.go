package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"audiotranslator/internal/domain"
	"audiotranslator/internal/ports"
)

// SelectAudio replaces the selected audio files with the supported entries of paths.
func (c *SessionController) SelectAudio(ctx context.Context, paths []string) ([]domain.AudioFile, error) {
	if c.scanner == nil {
		return nil, errNotConfigured
	}
	files, err := c.scanner.Inspect(ctx, paths)
	if err != nil {
		c.events.SessionError(domain.ErrorCodeFilesystem, err.Error())
		return nil, err
	}
	c.setAudioFiles(files)
	return files, nil
}

// ScanAudioFolder replaces the selected audio files with every supported file under dir.
func (c *SessionController) ScanAudioFolder(ctx context.Context, dir string) ([]domain.AudioFile, error) {
	if c.scanner == nil {
		return nil, errNotConfigured
	}
	files, err := c.scanner.Scan(ctx, dir)
	if err != nil {
		c.events.SessionError(domain.ErrorCodeFilesystem, err.Error())
		c.events.Alert(domain.AlertDanger, fmt.Sprintf("Could not read folder: %v", err))
		return nil, err
	}
	c.setAudioFiles(files)
	if len(files) == 0 {
		c.events.Alert(domain.AlertWarning, "No supported audio files found in the selected folder")
	}
	return files, nil
}

// ClearAudio empties the selection.
func (c *SessionController) ClearAudio() {
	c.setAudioFiles(nil)
}

func (c *SessionController) setAudioFiles(files []domain.AudioFile) {
	c.mu.Lock()
	c.audioFiles = append([]domain.AudioFile(nil), files...)
	c.mu.Unlock()
	c.events.AudioFilesChanged(files)
}

// AudioFiles returns the current selection.
func (c *SessionController) AudioFiles() []domain.AudioFile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.AudioFile(nil), c.audioFiles...)
}

// Results returns the results of the last completed transcription.
func (c *SessionController) Results() []domain.TranscriptionResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.TranscriptionResult(nil), c.results...)
}

// StartTranscription uploads the selected files as one batch and waits for the
// job to finish.
func (c *SessionController) StartTranscription(ctx context.Context) ([]domain.TranscriptionResult, error) {
	files := c.AudioFiles()
	if len(files) == 0 {
		return nil, c.warn(ErrNoAudioFiles, "Please select audio files first")
	}

	token, runCtx, ok := c.transcription.acquire(ctx)
	if !ok {
		return nil, ErrBusy
	}
	defer c.transcription.release(token)

	c.events.WorkflowStateChanged(domain.WorkflowTranscription, domain.WorkflowStateRunning, domain.WorkflowReasonSubmitted)
	c.events.Progress(domain.WorkflowTranscription, 0)
	c.log.Info(fmt.Sprintf("submitting %d audio files for transcription", len(files)))

	uploads := lo.Map(files, func(file domain.AudioFile, _ int) ports.UploadFile {
		return ports.UploadFile{Name: file.Name, Path: file.Path}
	})
	if err := c.backend.SubmitTranscription(runCtx, uploads); err != nil {
		if errorCode(err) == domain.ErrorCodeRemediation {
			return nil, c.requireRuntime(err)
		}
		return nil, c.fail(domain.WorkflowTranscription, "Transcription", err)
	}

	status, err := c.cfg.Poll.Run(runCtx, c.backend.TranscriptionStatus, func(status domain.JobStatus) {
		c.events.Progress(domain.WorkflowTranscription, status.Progress)
	})
	if err != nil {
		return nil, c.fail(domain.WorkflowTranscription, "Transcription", err)
	}

	c.mu.Lock()
	c.results = append([]domain.TranscriptionResult(nil), status.Results...)
	c.mu.Unlock()

	succeeded := lo.CountBy(status.Results, func(result domain.TranscriptionResult) bool { return result.Success })
	c.events.Progress(domain.WorkflowTranscription, 100)
	c.events.TranscriptionResults(status.Results)
	c.events.Alert(
		lo.Ternary(succeeded == len(status.Results), domain.AlertSuccess, domain.AlertWarning),
		fmt.Sprintf("Transcription completed: %d of %d files succeeded", succeeded, len(status.Results)),
	)
	c.events.WorkflowStateChanged(domain.WorkflowTranscription, domain.WorkflowStateIdle, domain.WorkflowReasonCompleted)
	return status.Results, nil
}

func (c *SessionController) requireRuntime(err error) error {
	c.log.Warning(fmt.Sprintf("transcription runtime missing: %v", err))
	c.events.InstallRequired(err.Error())
	c.events.SessionError(domain.ErrorCodeRemediation, err.Error())
	c.events.WorkflowStateChanged(domain.WorkflowTranscription, domain.WorkflowStateIdle, domain.WorkflowReasonRuntimeMissing)
	return fmt.Errorf("%w: %w", ErrRuntimeMissing, err)
}

// InstallRuntime asks the backend to install the transcription runtime.
func (c *SessionController) InstallRuntime(ctx context.Context) (string, error) {
	c.events.Alert(domain.AlertInfo, "Installing transcription runtime. This may take several minutes.")
	message, err := c.backend.InstallRuntime(ctx)
	if err != nil {
		c.events.SessionError(errorCode(err), err.Error())
		c.events.Alert(domain.AlertDanger, fmt.Sprintf("Installation failed: %v", err))
		return "", err
	}
	c.events.Alert(domain.AlertSuccess, lo.CoalesceOrEmpty(message, "Transcription runtime installed"))
	return message, nil
}

// DownloadTranscription saves the transcript of one result.
func (c *SessionController) DownloadTranscription(ctx context.Context, index int) (string, error) {
	results := c.Results()
	if index < 0 || index >= len(results) {
		return "", c.warn(fmt.Errorf("%w: transcription %d", ErrIndexOutOfRange, index), "No transcription at that position")
	}
	return c.download(ctx, &index)
}

// DownloadAllTranscriptions saves every transcript as one file.
func (c *SessionController) DownloadAllTranscriptions(ctx context.Context) (string, error) {
	if len(c.Results()) == 0 {
		return "", c.warn(ErrNoResults, "No transcriptions to download")
	}
	return c.download(ctx, nil)
}

func (c *SessionController) download(ctx context.Context, index *int) (string, error) {
	file, err := c.backend.DownloadTranscription(ctx, index)
	if err != nil {
		c.events.SessionError(errorCode(err), err.Error())
		c.events.Alert(domain.AlertDanger, fmt.Sprintf("Download failed: %v", err))
		return "", err
	}
	return c.save(ctx, file)
}

func (c *SessionController) save(ctx context.Context, file domain.Download) (string, error) {
	if c.saver == nil {
		return "", errNotConfigured
	}
	path, err := c.saver.Save(ctx, file)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		c.events.SessionError(domain.ErrorCodeFilesystem, err.Error())
		c.events.Alert(domain.AlertDanger, fmt.Sprintf("Could not save %s: %v", file.Filename, err))
		return "", err
	}
	if path != "" {
		c.events.Alert(domain.AlertSuccess, fmt.Sprintf("Saved %s", path))
	}
	return path, nil
}
