package usecase

import (
	"context"
	"fmt"
	"strings"

	"audiotranslator/internal/chunking"
	"audiotranslator/internal/domain"
	"audiotranslator/internal/ports"
)

// LoadText cleans text, splits it into chunks and resets the translation state.
// The translation slot is held while loading.
// When the backend cannot be reached the text is chunked locally.
func (c *SessionController) LoadText(ctx context.Context, sourceName string, text string) (domain.TranslationSnapshot, error) {
	token, _, ok := c.translation.acquire(ctx)
	if !ok {
		return c.state.Snapshot(), ErrBusy
	}
	defer c.translation.release(token)

	if c.cleaner != nil {
		cleaned, err := c.cleaner.Clean(text)
		if err != nil {
			c.log.Warning(fmt.Sprintf("text cleanup failed, using raw text: %v", err))
		} else {
			text = cleaned
		}
	}
	if strings.TrimSpace(text) == "" {
		return c.state.Snapshot(), c.warn(ErrNoChunks, "The selected file contains no text")
	}

	chunks, err := c.backend.ProcessText(ctx, text, c.cfg.SentencesPerChunk)
	if err != nil {
		if errorCode(err) != domain.ErrorCodeTransport {
			c.events.SessionError(errorCode(err), err.Error())
			c.events.Alert(domain.AlertDanger, fmt.Sprintf("Error processing text: %v", err))
			return c.state.Snapshot(), err
		}
		c.log.Warning(fmt.Sprintf("process-text unavailable, chunking locally: %v", err))
		c.events.Alert(domain.AlertWarning, "Backend unavailable, text was split locally")
		chunks = chunking.Split(text, c.cfg.SentencesPerChunk)
	}
	if len(chunks) == 0 {
		return c.state.Snapshot(), c.warn(ErrNoChunks, "No sentences found in the selected text")
	}

	c.state.Load(sourceName, text, chunks)
	snapshot := c.state.Snapshot()
	c.events.TranslationChanged(snapshot)
	c.events.Alert(domain.AlertSuccess, fmt.Sprintf("Text loaded: %d chunks", len(chunks)))
	c.events.WorkflowStateChanged(domain.WorkflowTranslation, domain.WorkflowStateIdle, domain.WorkflowReasonReady)
	return snapshot, nil
}

// Navigate moves the chunk pointer. Moves outside the chunk list are ignored.
func (c *SessionController) Navigate(delta int) domain.TranslationSnapshot {
	if c.state.Navigate(delta) {
		c.events.TranslationChanged(c.state.Snapshot())
	}
	return c.state.Snapshot()
}

// Snapshot returns the translation view model.
func (c *SessionController) Snapshot() domain.TranslationSnapshot {
	return c.state.Snapshot()
}

// TranslateCurrent translates the chunk under the pointer.
func (c *SessionController) TranslateCurrent(ctx context.Context) (domain.TranslationSnapshot, error) {
	index, _, ok := c.state.Current()
	if !ok {
		return c.state.Snapshot(), c.warn(ErrNoChunks, "Please load a text file first")
	}
	return c.translate(ctx, &index, false)
}

// TranslateAll translates every chunk in one backend job.
func (c *SessionController) TranslateAll(ctx context.Context) (domain.TranslationSnapshot, error) {
	return c.translate(ctx, nil, true)
}

func (c *SessionController) translate(ctx context.Context, chunkIndex *int, all bool) (domain.TranslationSnapshot, error) {
	if c.state.Len() == 0 {
		return c.state.Snapshot(), c.warn(ErrNoChunks, "Please load a text file first")
	}
	settings, err := c.LoadSettings(ctx)
	if err != nil {
		return c.state.Snapshot(), c.fail(domain.WorkflowTranslation, "Loading settings", err)
	}
	if !settings.Valid() {
		return c.state.Snapshot(), c.warn(ErrSettingsInvalid, "Please configure API settings first")
	}

	token, runCtx, ok := c.translation.acquire(ctx)
	if !ok {
		return c.state.Snapshot(), ErrBusy
	}
	defer c.translation.release(token)

	reason := domain.WorkflowReasonSubmitted
	if all {
		reason = domain.WorkflowReasonTranslateAllSubmitted
	}
	c.events.WorkflowStateChanged(domain.WorkflowTranslation, domain.WorkflowStateRunning, reason)
	c.events.Progress(domain.WorkflowTranslation, c.state.Progress()*100)

	request := ports.TranslateRequest{Settings: settings, ChunkIndex: chunkIndex, TranslateAll: all}
	if err := c.backend.SubmitTranslation(runCtx, request); err != nil {
		return c.state.Snapshot(), c.fail(domain.WorkflowTranslation, "Translation", err)
	}

	status, err := c.cfg.Poll.Run(runCtx, c.backend.TranslationStatus, func(status domain.JobStatus) {
		if !all {
			c.events.Progress(domain.WorkflowTranslation, status.Progress)
			return
		}
		if len(status.Translations) > 0 {
			c.state.MergeTranslations(status.Translations)
			c.events.TranslationChanged(c.state.Snapshot())
		}
		c.events.Progress(domain.WorkflowTranslation, c.state.Progress()*100)
	})
	if err != nil {
		return c.state.Snapshot(), c.fail(domain.WorkflowTranslation, "Translation", err)
	}

	completed := c.state.MergeTranslations(status.Translations)
	snapshot := c.state.Snapshot()
	c.events.TranslationChanged(snapshot)
	c.events.Progress(domain.WorkflowTranslation, snapshot.Progress*100)
	if all {
		c.events.Alert(domain.AlertSuccess, fmt.Sprintf("Translation completed: %d of %d chunks", completed, snapshot.Chunks))
	} else {
		c.events.Alert(domain.AlertSuccess, fmt.Sprintf("Chunk %d translated", *chunkIndex+1))
	}
	c.events.WorkflowStateChanged(domain.WorkflowTranslation, domain.WorkflowStateIdle, domain.WorkflowReasonCompleted)
	return snapshot, nil
}

// Export saves the assembled translation through the file saver.
func (c *SessionController) Export(ctx context.Context) (string, error) {
	if !c.state.HasTranslations() {
		return "", c.warn(ErrNothingToExport, "No translations to export")
	}

	file, err := c.backend.ExportTranslation(ctx)
	if err != nil {
		c.events.SessionError(errorCode(err), err.Error())
		c.events.Alert(domain.AlertDanger, fmt.Sprintf("Export failed: %v", err))
		return "", err
	}
	if file.Filename == "" {
		file.Filename = ExportFilename(c.state.SourceName())
	}
	return c.save(ctx, file)
}

// ExportFilename is the default name of an exported translation.
func ExportFilename(sourceName string) string {
	if strings.TrimSpace(sourceName) == "" {
		return "translation.txt"
	}
	return "translated_" + sourceName
}
