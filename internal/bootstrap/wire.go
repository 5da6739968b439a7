package bootstrap

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wailsapp/wails/v2/pkg/logger"

	"audiotranslator/internal/audio"
	"audiotranslator/internal/backendsim"
	"audiotranslator/internal/config"
	"audiotranslator/internal/poller"
	"audiotranslator/internal/ports"
	"audiotranslator/internal/providers/backend"
	"audiotranslator/internal/providers/llmcheck"
	"audiotranslator/internal/settingsstore"
	"audiotranslator/internal/textclean"
	"audiotranslator/internal/usecase"
)

const demoStepDelay = 300 * time.Millisecond

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	Config     config.Config
	BackendURL string

	demo *backendsim.Listener
}

// Close releases resources owned by the graph.
func (s Services) Close() error {
	if s.demo == nil {
		return nil
	}
	return s.demo.Close()
}

// Build loads configuration and wires all dependencies for the current runtime.
func Build(events ports.EventSink, saver ports.FileSaver, log logger.Logger) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	return BuildWithConfig(cfg, events, saver, log)
}

// BuildWithConfig wires dependencies from an already loaded configuration.
func BuildWithConfig(cfg config.Config, events ports.EventSink, saver ports.FileSaver, log logger.Logger) (Services, error) {
	if events == nil {
		return Services{}, errors.New("event sink is required")
	}
	if log == nil {
		log = NewLogger(cfg.Log)
	}

	cleaner, err := textclean.New(cfg.Text.Cleanup, cfg.Text.RulesFile)
	if err != nil {
		return Services{}, err
	}

	services := Services{Config: cfg, BackendURL: cfg.Backend.BaseURL}
	if cfg.Backend.Demo {
		if gin.Mode() == gin.DebugMode {
			gin.SetMode(gin.ReleaseMode)
		}
		demo, err := backendsim.Listen("127.0.0.1:0", backendsim.Options{StepDelay: demoStepDelay, Log: log})
		if err != nil {
			return Services{}, err
		}
		services.demo = demo
		services.BackendURL = demo.URL()
	}

	client, err := backend.NewClient(backend.Config{
		BaseURL: services.BackendURL,
		Timeout: cfg.Backend.Timeout,
	}, log)
	if err != nil {
		_ = services.Close()
		return Services{}, err
	}

	services.Controller = usecase.NewSessionController(usecase.Dependencies{
		Backend:  client,
		Scanner:  audio.NewScanner(cfg.Audio.ProbeCommand),
		Cleaner:  cleaner,
		Settings: settingsstore.New(cfg.Settings.Dir, cfg.Settings.KeyringService, log),
		Checker:  llmcheck.New(cfg.Backend.Timeout),
		Saver:    saver,
		Events:   events,
		Log:      log,
	}, usecase.Config{
		SentencesPerChunk: cfg.Text.SentencesPerChunk,
		Poll:              poller.New(cfg.Polling.Interval, cfg.Polling.Deadline),
	})

	log.Info("backend: " + services.BackendURL)
	return services, nil
}

// NewLogger returns a file logger when a log file is configured, otherwise a
// console logger.
func NewLogger(cfg config.LogConfig) logger.Logger {
	if cfg.File != "" {
		return logger.NewFileLogger(cfg.File)
	}
	return logger.NewDefaultLogger()
}
