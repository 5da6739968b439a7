package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"audiotranslator/internal/domain"
	"audiotranslator/internal/poller"
)

func completed(translations domain.TranslationMap) statusStep {
	return statusStep{status: domain.JobStatus{State: domain.JobCompleted, Progress: 100, Translations: translations}}
}

func processing(progress float64, translations domain.TranslationMap) statusStep {
	return statusStep{status: domain.JobStatus{State: domain.JobProcessing, Progress: progress, Translations: translations}}
}

func loadChunks(t *testing.T, h *harness, chunks ...string) {
	t.Helper()
	h.backend.mu.Lock()
	h.backend.chunks = chunks
	h.backend.mu.Unlock()
	if _, err := h.controller.LoadText(context.Background(), "book.txt", strings.Join(chunks, " ")); err != nil {
		t.Fatalf("load failed: %v", err)
	}
}

func TestTranslateAllMergesPartialResults(t *testing.T) {
	t.Parallel()

	h := newHarness(&fakeBackend{translationSteps: []statusStep{
		processing(10, domain.TranslationMap{0: "uno"}),
		processing(50, domain.TranslationMap{1: "dos"}),
		processing(60, nil),
		completed(domain.TranslationMap{2: "tres"}),
	}})
	loadChunks(t, h, "One.", "Two.", "Three.")

	snapshot, err := h.controller.TranslateAll(context.Background())
	if err != nil {
		t.Fatalf("translate all failed: %v", err)
	}
	if snapshot.Completed != 3 || snapshot.Progress != 1 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
	translations := h.controller.Snapshot().Translations
	if translations[0] != "uno" || translations[1] != "dos" || translations[2] != "tres" {
		t.Fatalf("partial translations were not preserved: %+v", translations)
	}

	req := h.backend.translateRequests[0]
	if !req.TranslateAll || req.ChunkIndex != nil || req.Settings != validSettings {
		t.Fatalf("unexpected request: %+v", req)
	}

	last := 0.0
	for _, percent := range h.events.progress {
		if percent < last {
			t.Fatalf("progress went backwards: %v", h.events.progress)
		}
		last = percent
	}
	if last != 100 {
		t.Fatalf("expected final progress 100, got %v", h.events.progress)
	}

	states := h.events.snapshotStates()
	if states[len(states)-2].reason != domain.WorkflowReasonTranslateAllSubmitted {
		t.Fatalf("unexpected submit reason: %+v", states)
	}
	if final := states[len(states)-1]; final.state != domain.WorkflowStateIdle || final.reason != domain.WorkflowReasonCompleted {
		t.Fatalf("unexpected final state: %+v", final)
	}
	if h.controller.Status().Translating {
		t.Fatalf("translation slot not released")
	}
}

func TestTranslateCurrentUsesPointerAndKeepsEarlierTranslations(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{translationSteps: []statusStep{completed(domain.TranslationMap{0: "uno"})}}
	h := newHarness(backend)
	loadChunks(t, h, "One.", "Two.")

	if _, err := h.controller.TranslateCurrent(context.Background()); err != nil {
		t.Fatalf("translate failed: %v", err)
	}

	backend.mu.Lock()
	backend.translationSteps = []statusStep{completed(domain.TranslationMap{1: "dos"})}
	backend.mu.Unlock()

	h.controller.Navigate(1)
	snapshot, err := h.controller.TranslateCurrent(context.Background())
	if err != nil {
		t.Fatalf("translate failed: %v", err)
	}
	if got := *backend.translateRequests[1].ChunkIndex; got != 1 {
		t.Fatalf("expected chunk index 1, got %d", got)
	}
	if backend.translateRequests[1].TranslateAll {
		t.Fatalf("single chunk request must not translate all")
	}
	if snapshot.Translations[0] != "uno" || snapshot.Translated != "dos" {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
	if h.events.lastAlert().message != "Chunk 2 translated" {
		t.Fatalf("unexpected alert: %+v", h.events.lastAlert())
	}
}

func TestTranslateAllWhileBusyIsIgnored(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		translationSteps: []statusStep{completed(domain.TranslationMap{0: "uno"})},
		gate:             make(chan struct{}),
		submitted:        make(chan struct{}, 1),
	}
	h := newHarness(backend)
	loadChunks(t, h, "One.")

	done := make(chan error, 1)
	go func() {
		_, err := h.controller.TranslateAll(context.Background())
		done <- err
	}()

	select {
	case <-backend.submitted:
	case <-time.After(2 * time.Second):
		t.Fatalf("first run never submitted")
	}
	if !h.controller.Status().Translating {
		t.Fatalf("expected busy translation slot")
	}

	if _, err := h.controller.TranslateAll(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if _, err := h.controller.TranslateCurrent(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy for single chunk, got %v", err)
	}
	if backend.translateCount() != 1 {
		t.Fatalf("busy call must not submit, got %d requests", backend.translateCount())
	}

	close(backend.gate)
	if err := <-done; err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if h.controller.Status().Translating {
		t.Fatalf("slot not released after completion")
	}
}

func TestTranslationFailureReleasesSlot(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{translationSteps: []statusStep{
		{status: domain.JobStatus{State: domain.JobError, Error: "quota exceeded"}},
	}}
	h := newHarness(backend)
	loadChunks(t, h, "One.")

	_, err := h.controller.TranslateCurrent(context.Background())
	var jobErr *poller.JobError
	if !errors.As(err, &jobErr) || jobErr.Message != "quota exceeded" {
		t.Fatalf("expected job error, got %v", err)
	}
	alert := h.events.lastAlert()
	if alert.level != domain.AlertDanger || !strings.Contains(alert.message, "quota exceeded") {
		t.Fatalf("unexpected alert: %+v", alert)
	}
	states := h.events.snapshotStates()
	if final := states[len(states)-1]; final.reason != domain.WorkflowReasonFailed {
		t.Fatalf("unexpected final state: %+v", final)
	}

	backend.mu.Lock()
	backend.translationSteps = []statusStep{completed(domain.TranslationMap{0: "uno"})}
	backend.mu.Unlock()
	if _, err := h.controller.TranslateCurrent(context.Background()); err != nil {
		t.Fatalf("slot was not released after failure: %v", err)
	}
}

func TestTranslationSubmitTransportError(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{translateErr: &codedErr{code: domain.ErrorCodeTransport, message: "connection refused"}}
	h := newHarness(backend)
	loadChunks(t, h, "One.")

	if _, err := h.controller.TranslateAll(context.Background()); err == nil {
		t.Fatalf("expected submit error")
	}
	h.events.mu.Lock()
	defer h.events.mu.Unlock()
	if len(h.events.errors) == 0 || h.events.errors[len(h.events.errors)-1].code != domain.ErrorCodeTransport {
		t.Fatalf("expected transport error event, got %+v", h.events.errors)
	}
}

func TestTranslateRequiresValidSettings(t *testing.T) {
	t.Parallel()

	h := newHarness(&fakeBackend{})
	h.store.settings = domain.Settings{APIEndpoint: "https://api"}
	loadChunks(t, h, "One.")

	if _, err := h.controller.TranslateAll(context.Background()); !errors.Is(err, ErrSettingsInvalid) {
		t.Fatalf("expected ErrSettingsInvalid, got %v", err)
	}
	if h.backend.translateCount() != 0 {
		t.Fatalf("invalid settings must not submit")
	}
	if h.events.lastAlert().level != domain.AlertWarning {
		t.Fatalf("expected warning alert, got %+v", h.events.lastAlert())
	}
}

func TestTranslateWithoutText(t *testing.T) {
	t.Parallel()

	h := newHarness(&fakeBackend{})
	if _, err := h.controller.TranslateCurrent(context.Background()); !errors.Is(err, ErrNoChunks) {
		t.Fatalf("expected ErrNoChunks, got %v", err)
	}
	if _, err := h.controller.TranslateAll(context.Background()); !errors.Is(err, ErrNoChunks) {
		t.Fatalf("expected ErrNoChunks, got %v", err)
	}
}

func TestTranslateReportsSettingsLoadFailure(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{fetchSettingsErr: &codedErr{code: domain.ErrorCodeTransport, message: "connection refused"}}
	h := newHarness(backend)
	h.store.settings = domain.Settings{}
	h.store.ok = false
	loadChunks(t, h, "One.")

	_, err := h.controller.TranslateAll(context.Background())
	if err == nil || errors.Is(err, ErrSettingsInvalid) {
		t.Fatalf("expected settings load error, got %v", err)
	}
	if backend.translateCount() != 0 {
		t.Fatalf("failed settings load must not submit")
	}
	h.events.mu.Lock()
	lastErr := h.events.errors[len(h.events.errors)-1]
	h.events.mu.Unlock()
	if lastErr.code != domain.ErrorCodeTransport {
		t.Fatalf("expected transport error event, got %+v", lastErr)
	}
	if h.events.lastAlert().level != domain.AlertDanger {
		t.Fatalf("expected danger alert, got %+v", h.events.lastAlert())
	}
}

func TestTranslateWhileLoadingTextIsBusy(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{}
	h := newHarness(backend)
	loadChunks(t, h, "One.", "Two.")

	backend.processGate = make(chan struct{})
	backend.processStarted = make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		_, err := h.controller.LoadText(context.Background(), "next.txt", "Three. Four.")
		done <- err
	}()

	select {
	case <-backend.processStarted:
	case <-time.After(2 * time.Second):
		t.Fatalf("load never reached the backend")
	}
	if _, err := h.controller.TranslateAll(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy while loading, got %v", err)
	}
	if _, err := h.controller.LoadText(context.Background(), "other.txt", "Five."); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy for concurrent load, got %v", err)
	}
	if backend.translateCount() != 0 {
		t.Fatalf("busy call must not submit")
	}

	close(backend.processGate)
	if err := <-done; err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if h.controller.Status().Translating {
		t.Fatalf("slot not released after load")
	}
}

func TestStopWatchingTranslation(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{submitted: make(chan struct{}, 1)}
	h := newHarness(backend)
	loadChunks(t, h, "One.")

	done := make(chan error, 1)
	go func() {
		_, err := h.controller.TranslateAll(context.Background())
		done <- err
	}()
	<-backend.submitted

	if !h.controller.StopWatching(domain.WorkflowTranslation) {
		t.Fatalf("expected a run to stop")
	}
	select {
	case err := <-done:
		if !errors.Is(err, poller.ErrStopped) {
			t.Fatalf("expected ErrStopped, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop")
	}
	states := h.events.snapshotStates()
	if final := states[len(states)-1]; final.reason != domain.WorkflowReasonStopped {
		t.Fatalf("unexpected final state: %+v", final)
	}
	if h.controller.StopWatching(domain.WorkflowTranslation) {
		t.Fatalf("nothing should be running")
	}
}

func TestPollDeadline(t *testing.T) {
	t.Parallel()

	h := newHarness(&fakeBackend{})
	h.controller.cfg.Poll = poller.Driver{Interval: time.Millisecond, Deadline: 20 * time.Millisecond}
	loadChunks(t, h, "One.")

	if _, err := h.controller.TranslateAll(context.Background()); !errors.Is(err, poller.ErrDeadline) {
		t.Fatalf("expected ErrDeadline, got %v", err)
	}
	states := h.events.snapshotStates()
	if final := states[len(states)-1]; final.reason != domain.WorkflowReasonTimedOut {
		t.Fatalf("unexpected final state: %+v", final)
	}
}

func TestLoadTextResetsStateAndFallsBackLocally(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{translationSteps: []statusStep{completed(domain.TranslationMap{0: "uno"})}}
	h := newHarness(backend)
	loadChunks(t, h, "One.", "Two.")
	h.controller.Navigate(1)
	if _, err := h.controller.TranslateCurrent(context.Background()); err != nil {
		t.Fatalf("translate failed: %v", err)
	}

	backend.mu.Lock()
	backend.processErr = &codedErr{code: domain.ErrorCodeTransport, message: "offline"}
	backend.mu.Unlock()

	snapshot, err := h.controller.LoadText(context.Background(), "", "A. B. C! D?")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if snapshot.Chunks != 2 || snapshot.CurrentIndex != 0 || snapshot.Completed != 0 {
		t.Fatalf("state was not reset: %+v", snapshot)
	}
	if snapshot.Original != "A. B." {
		t.Fatalf("unexpected local chunk: %q", snapshot.Original)
	}
	if !h.events.hasAlert(domain.AlertWarning) {
		t.Fatalf("expected fallback warning")
	}
}

func TestLoadTextBackendRejection(t *testing.T) {
	t.Parallel()

	h := newHarness(&fakeBackend{processErr: &codedErr{code: domain.ErrorCodeBackend, message: "No text provided"}})
	if _, err := h.controller.LoadText(context.Background(), "a.txt", "Hello."); err == nil {
		t.Fatalf("expected backend error")
	}
	if h.controller.Snapshot().Chunks != 0 {
		t.Fatalf("rejected text must not be loaded")
	}
}

func TestNavigateBounds(t *testing.T) {
	t.Parallel()

	h := newHarness(&fakeBackend{})
	loadChunks(t, h, "One.", "Two.")

	if got := h.controller.Navigate(-1); got.CurrentIndex != 0 || got.HasPrev {
		t.Fatalf("navigating before the first chunk must be ignored: %+v", got)
	}
	if got := h.controller.Navigate(1); got.CurrentIndex != 1 || got.HasNext {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if got := h.controller.Navigate(1); got.CurrentIndex != 1 {
		t.Fatalf("navigating past the last chunk must be ignored: %+v", got)
	}
}

func TestExportWithoutTranslations(t *testing.T) {
	t.Parallel()

	h := newHarness(&fakeBackend{})
	loadChunks(t, h, "One.")

	if _, err := h.controller.Export(context.Background()); !errors.Is(err, ErrNothingToExport) {
		t.Fatalf("expected ErrNothingToExport, got %v", err)
	}
	if h.backend.exportCalls != 0 {
		t.Fatalf("export must not call the backend")
	}
	if h.events.lastAlert().level != domain.AlertWarning {
		t.Fatalf("expected warning alert")
	}
}

func TestExportSavesWithDefaultFilename(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		translationSteps: []statusStep{completed(domain.TranslationMap{0: "uno"})},
		export:           domain.Download{Content: []byte("uno")},
	}
	h := newHarness(backend)
	loadChunks(t, h, "One.")
	if _, err := h.controller.TranslateAll(context.Background()); err != nil {
		t.Fatalf("translate failed: %v", err)
	}

	path, err := h.controller.Export(context.Background())
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if path != "/tmp/translated_book.txt" || string(h.saver.saved[0].Content) != "uno" {
		t.Fatalf("unexpected export: %q %+v", path, h.saver.saved)
	}
}

func TestExportFilename(t *testing.T) {
	t.Parallel()

	if got := ExportFilename(""); got != "translation.txt" {
		t.Fatalf("unexpected default: %q", got)
	}
	if got := ExportFilename("notes.txt"); got != "translated_notes.txt" {
		t.Fatalf("unexpected name: %q", got)
	}
}

func TestStartTranscriptionWithoutFiles(t *testing.T) {
	t.Parallel()

	h := newHarness(&fakeBackend{})
	if _, err := h.controller.StartTranscription(context.Background()); !errors.Is(err, ErrNoAudioFiles) {
		t.Fatalf("expected ErrNoAudioFiles, got %v", err)
	}
	if len(h.backend.uploads) != 0 {
		t.Fatalf("no upload expected")
	}
}

func TestStartTranscriptionSuccessAndDownloads(t *testing.T) {
	t.Parallel()

	results := []domain.TranscriptionResult{
		{Filename: "a.mp3", Success: true, Text: "hello"},
		{Filename: "b.wav", Success: false, Error: "decode failed"},
	}
	backend := &fakeBackend{
		transcriptionSteps: []statusStep{
			{status: domain.JobStatus{State: domain.JobState("Processing: a.mp3"), Progress: 50}},
			{status: domain.JobStatus{State: domain.JobCompleted, Progress: 100, Results: results}},
		},
		download: domain.Download{Filename: "a.txt", Content: []byte("hello")},
	}
	h := newHarness(backend)
	if _, err := h.controller.SelectAudio(context.Background(), []string{"/in/a.mp3", "/in/b.wav"}); err != nil {
		t.Fatalf("select failed: %v", err)
	}

	got, err := h.controller.StartTranscription(context.Background())
	if err != nil {
		t.Fatalf("transcription failed: %v", err)
	}
	if len(got) != 2 || len(backend.uploads[0]) != 2 || backend.uploads[0][1].Path != "/in/b.wav" {
		t.Fatalf("unexpected results or uploads: %+v %+v", got, backend.uploads)
	}
	if h.events.lastAlert().level != domain.AlertWarning {
		t.Fatalf("partial failure should warn: %+v", h.events.lastAlert())
	}
	if status := h.controller.Status(); status.Transcribing || status.Results != 2 {
		t.Fatalf("unexpected status: %+v", status)
	}

	path, err := h.controller.DownloadTranscription(context.Background(), 0)
	if err != nil || path != "/tmp/a.txt" || *backend.downloads[0] != 0 {
		t.Fatalf("unexpected download: %q %v", path, err)
	}
	if _, err := h.controller.DownloadAllTranscriptions(context.Background()); err != nil {
		t.Fatalf("download all failed: %v", err)
	}
	if backend.downloads[1] != nil {
		t.Fatalf("download all must not send an index")
	}
	if _, err := h.controller.DownloadTranscription(context.Background(), 5); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestStartTranscriptionRuntimeMissing(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		transcribeErr:  &codedErr{code: domain.ErrorCodeRemediation, message: "PyTorch is not installed"},
		installMessage: "PyTorch installed successfully",
	}
	h := newHarness(backend)
	_, _ = h.controller.SelectAudio(context.Background(), []string{"/in/a.mp3"})

	_, err := h.controller.StartTranscription(context.Background())
	if !errors.Is(err, ErrRuntimeMissing) {
		t.Fatalf("expected ErrRuntimeMissing, got %v", err)
	}
	if len(h.events.installs) != 1 || h.events.hasAlert(domain.AlertDanger) {
		t.Fatalf("expected install prompt instead of danger alert: %+v %+v", h.events.installs, h.events.alerts)
	}
	states := h.events.snapshotStates()
	if final := states[len(states)-1]; final.reason != domain.WorkflowReasonRuntimeMissing {
		t.Fatalf("unexpected final state: %+v", final)
	}

	message, err := h.controller.InstallRuntime(context.Background())
	if err != nil || message != "PyTorch installed successfully" {
		t.Fatalf("install failed: %q %v", message, err)
	}
}

func TestTranscriptionAndTranslationRunIndependently(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		gate:      make(chan struct{}),
		submitted: make(chan struct{}, 2),
		transcriptionSteps: []statusStep{
			{status: domain.JobStatus{State: domain.JobCompleted}},
		},
		translationSteps: []statusStep{completed(domain.TranslationMap{0: "uno"})},
	}
	h := newHarness(backend)
	_, _ = h.controller.SelectAudio(context.Background(), []string{"/in/a.mp3"})
	loadChunks(t, h, "One.")

	done := make(chan error, 2)
	go func() {
		_, err := h.controller.StartTranscription(context.Background())
		done <- err
	}()
	go func() {
		_, err := h.controller.TranslateAll(context.Background())
		done <- err
	}()
	<-backend.submitted
	<-backend.submitted

	status := h.controller.Status()
	if !status.Transcribing || !status.Translating {
		t.Fatalf("expected both workflows running: %+v", status)
	}
	close(backend.gate)
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("workflow failed: %v", err)
		}
	}
}

func TestScanAudioFolderEmpty(t *testing.T) {
	t.Parallel()

	h := newHarness(&fakeBackend{})
	files, err := h.controller.ScanAudioFolder(context.Background(), "/empty")
	if err != nil || len(files) != 0 {
		t.Fatalf("unexpected scan: %+v %v", files, err)
	}
	if h.events.lastAlert().level != domain.AlertWarning {
		t.Fatalf("expected warning for empty folder")
	}
}
