package usecase

import (
	"context"
	"sync"
	"time"

	"audiotranslator/internal/domain"
	"audiotranslator/internal/poller"
	"audiotranslator/internal/ports"
)

type codedErr struct {
	code    domain.ErrorCode
	message string
}

func (e *codedErr) Error() string {
	return e.message
}

func (e *codedErr) Code() domain.ErrorCode {
	return e.code
}

type statusStep struct {
	status domain.JobStatus
	err    error
}

type fakeBackend struct {
	mu sync.Mutex

	chunks     []string
	processErr error

	// processGate blocks ProcessText until closed; processStarted is signalled on entry.
	processGate    chan struct{}
	processStarted chan struct{}

	transcribeErr      error
	transcriptionSteps []statusStep
	uploads            [][]ports.UploadFile
	downloads          []*int
	download           domain.Download
	installMessage     string
	translateErr       error
	translationSteps   []statusStep
	translateRequests  []ports.TranslateRequest
	exportCalls        int
	export             domain.Download
	settings           domain.Settings
	fetchSettingsErr   error
	fetchSettingsCalls int
	storeSettingsErr   error
	storedSettings     []domain.Settings

	// gate blocks status requests until closed.
	gate      chan struct{}
	submitted chan struct{}
}

func (f *fakeBackend) SubmitTranscription(_ context.Context, files []ports.UploadFile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, files)
	f.signal()
	return f.transcribeErr
}

func (f *fakeBackend) TranscriptionStatus(ctx context.Context) (domain.JobStatus, error) {
	if err := f.wait(ctx); err != nil {
		return domain.JobStatus{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return nextStep(&f.transcriptionSteps)
}

func (f *fakeBackend) DownloadTranscription(_ context.Context, index *int) (domain.Download, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads = append(f.downloads, index)
	return f.download, nil
}

func (f *fakeBackend) InstallRuntime(context.Context) (string, error) {
	return f.installMessage, nil
}

func (f *fakeBackend) ProcessText(ctx context.Context, _ string, _ int) ([]string, error) {
	if f.processStarted != nil {
		f.processStarted <- struct{}{}
	}
	if f.processGate != nil {
		select {
		case <-f.processGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chunks, f.processErr
}

func (f *fakeBackend) SubmitTranslation(_ context.Context, req ports.TranslateRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.translateRequests = append(f.translateRequests, req)
	f.signal()
	return f.translateErr
}

func (f *fakeBackend) TranslationStatus(ctx context.Context) (domain.JobStatus, error) {
	if err := f.wait(ctx); err != nil {
		return domain.JobStatus{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return nextStep(&f.translationSteps)
}

func (f *fakeBackend) ExportTranslation(context.Context) (domain.Download, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exportCalls++
	return f.export, nil
}

func (f *fakeBackend) FetchSettings(context.Context) (domain.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchSettingsCalls++
	return f.settings, f.fetchSettingsErr
}

func (f *fakeBackend) StoreSettings(_ context.Context, settings domain.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeSettingsErr != nil {
		return f.storeSettingsErr
	}
	f.storedSettings = append(f.storedSettings, settings)
	f.settings = settings
	return nil
}

func (f *fakeBackend) SystemInfo(context.Context) (domain.SystemInfo, error) {
	return domain.SystemInfo{TranscriptionAvailable: true}, nil
}

func (f *fakeBackend) translateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.translateRequests)
}

func (f *fakeBackend) signal() {
	if f.submitted == nil {
		return
	}
	select {
	case f.submitted <- struct{}{}:
	default:
	}
}

func (f *fakeBackend) wait(ctx context.Context) error {
	if f.gate == nil {
		return nil
	}
	select {
	case <-f.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// nextStep pops the next scripted status; the last one repeats.
func nextStep(steps *[]statusStep) (domain.JobStatus, error) {
	if len(*steps) == 0 {
		return domain.JobStatus{State: domain.JobProcessing}, nil
	}
	step := (*steps)[0]
	if len(*steps) > 1 {
		*steps = (*steps)[1:]
	}
	return step.status, step.err
}

type stateEvent struct {
	kind   domain.WorkflowKind
	state  domain.WorkflowState
	reason domain.WorkflowReason
}

type alertEvent struct {
	level   domain.AlertLevel
	message string
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

type fakeEventSink struct {
	mu sync.Mutex

	states    []stateEvent
	progress  []float64
	files     [][]domain.AudioFile
	results   [][]domain.TranscriptionResult
	snapshots []domain.TranslationSnapshot
	alerts    []alertEvent
	errors    []errEvent
	installs  []string
}

func (f *fakeEventSink) WorkflowStateChanged(kind domain.WorkflowKind, state domain.WorkflowState, reason domain.WorkflowReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{kind: kind, state: state, reason: reason})
}

func (f *fakeEventSink) Progress(_ domain.WorkflowKind, percent float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, percent)
}

func (f *fakeEventSink) AudioFilesChanged(files []domain.AudioFile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files = append(f.files, files)
}

func (f *fakeEventSink) TranscriptionResults(results []domain.TranscriptionResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, results)
}

func (f *fakeEventSink) TranslationChanged(snapshot domain.TranslationSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, snapshot)
}

func (f *fakeEventSink) Alert(level domain.AlertLevel, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alertEvent{level: level, message: message})
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) InstallRequired(detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installs = append(f.installs, detail)
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]stateEvent, len(f.states))
	copy(out, f.states)
	return out
}

func (f *fakeEventSink) lastAlert() alertEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.alerts) == 0 {
		return alertEvent{}
	}
	return f.alerts[len(f.alerts)-1]
}

func (f *fakeEventSink) hasAlert(level domain.AlertLevel) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, alert := range f.alerts {
		if alert.level == level {
			return true
		}
	}
	return false
}

type fakeStore struct {
	mu       sync.Mutex
	settings domain.Settings
	ok       bool
	saves    int
}

func (f *fakeStore) Load() (domain.Settings, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settings, f.ok, nil
}

func (f *fakeStore) Save(settings domain.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings = settings
	f.ok = true
	f.saves++
	return nil
}

type fakeSaver struct {
	mu    sync.Mutex
	saved []domain.Download
}

func (f *fakeSaver) Save(_ context.Context, download domain.Download) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, download)
	return "/tmp/" + download.Filename, nil
}

type fakeScanner struct {
	files []domain.AudioFile
	err   error
}

func (f *fakeScanner) Scan(context.Context, string) ([]domain.AudioFile, error) {
	return f.files, f.err
}

func (f *fakeScanner) Inspect(_ context.Context, paths []string) ([]domain.AudioFile, error) {
	out := make([]domain.AudioFile, 0, len(paths))
	for _, path := range paths {
		out = append(out, domain.AudioFile{Path: path, Name: path})
	}
	return out, f.err
}

type fakeChecker struct {
	message string
	err     error
}

func (f *fakeChecker) Check(context.Context, domain.Settings) (string, error) {
	return f.message, f.err
}

type harness struct {
	controller *SessionController
	backend    *fakeBackend
	events     *fakeEventSink
	store      *fakeStore
	saver      *fakeSaver
}

var validSettings = domain.Settings{APIEndpoint: "https://api.example.com/v1/chat/completions", APIToken: "tok", APIModel: "m", SystemPrompt: "p"}

func newHarness(backend *fakeBackend) *harness {
	h := &harness{
		backend: backend,
		events:  &fakeEventSink{},
		store:   &fakeStore{settings: validSettings, ok: true},
		saver:   &fakeSaver{},
	}
	h.controller = NewSessionController(Dependencies{
		Backend:  backend,
		Scanner:  &fakeScanner{},
		Settings: h.store,
		Checker:  &fakeChecker{message: "ok"},
		Saver:    h.saver,
		Events:   h.events,
		Log:      quietLogger{},
	}, Config{
		SentencesPerChunk: 2,
		Poll:              poller.Driver{Interval: time.Millisecond},
	})
	return h
}

type quietLogger struct{}

func (quietLogger) Print(string)   {}
func (quietLogger) Trace(string)   {}
func (quietLogger) Debug(string)   {}
func (quietLogger) Info(string)    {}
func (quietLogger) Warning(string) {}
func (quietLogger) Error(string)   {}
func (quietLogger) Fatal(string)   {}
