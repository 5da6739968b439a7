// Package backendsim is an in-memory implementation of the transcription and
// translation backend contract. It backs the CLI demo mode and integration tests.
package backendsim

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/wailsapp/wails/v2/pkg/logger"

	"audiotranslator/internal/audio"
	"audiotranslator/internal/chunking"
	"audiotranslator/internal/domain"
	"audiotranslator/internal/session"
)

// SupportedAudioFormats is the extension allow-list accepted by the backend.
var SupportedAudioFormats = audio.SupportedExtensions

// MaxUploadBytes bounds a transcription batch.
const MaxUploadBytes = 500 << 20

// TranslateFunc produces the translation of one chunk.
type TranslateFunc func(settings domain.Settings, text string) (string, error)

// TranscribeFunc produces the transcript of one uploaded file.
type TranscribeFunc func(name string, content []byte) (string, error)

// Options tune the simulated backend.
type Options struct {
	// StepDelay is slept between items of a job so that polling observes progress.
	StepDelay time.Duration
	// RuntimeMissing makes /api/transcribe report the missing runtime until installed.
	RuntimeMissing bool
	Translate      TranslateFunc
	Transcribe     TranscribeFunc
	Log            logger.Logger
}

type transcriptionJob struct {
	ID       string
	Status   string
	Progress float64
	Error    string
	Results  []domain.TranscriptionResult
}

type translationJob struct {
	ID           string
	Status       string
	Progress     float64
	Error        string
	Chunks       []string
	Translations domain.TranslationMap
}

// Server is the simulated backend.
type Server struct {
	opts Options

	mu             sync.RWMutex
	runtimeMissing bool
	transcription  transcriptionJob
	translation    translationJob
	settings       domain.Settings
}

func New(opts Options) *Server {
	if opts.Translate == nil {
		opts.Translate = EchoTranslate
	}
	if opts.Transcribe == nil {
		opts.Transcribe = DemoTranscribe
	}
	if opts.Log == nil {
		opts.Log = logger.NewDefaultLogger()
	}
	return &Server{
		opts:           opts,
		runtimeMissing: opts.RuntimeMissing,
		transcription:  transcriptionJob{Status: "idle"},
		translation:    translationJob{Status: "idle", Translations: domain.TranslationMap{}},
		settings:       domain.Settings{APIModel: domain.DefaultModel},
	}
}

// EchoTranslate is the default translator: it tags the source text.
func EchoTranslate(settings domain.Settings, text string) (string, error) {
	return "[" + lo.CoalesceOrEmpty(settings.APIModel, domain.DefaultModel) + "] " + text, nil
}

// DemoTranscribe is the default transcriber: it describes the upload.
func DemoTranscribe(name string, content []byte) (string, error) {
	return fmt.Sprintf("Transcript of %s (%d bytes)", name, len(content)), nil
}

// Handler builds the gin router for the backend API.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())
	router.MaxMultipartMemory = 32 << 20

	api := router.Group("/api")
	{
		api.POST("/transcribe", s.handleTranscribe)
		api.GET("/transcription-status", s.handleTranscriptionStatus)
		api.GET("/download-transcription", s.handleDownloadAll)
		api.GET("/download-transcription/:index", s.handleDownloadOne)
		api.POST("/install-pytorch", s.handleInstall)
		api.POST("/process-text", s.handleProcessText)
		api.POST("/translate", s.handleTranslate)
		api.GET("/translation-status", s.handleTranslationStatus)
		api.GET("/export-translation", s.handleExport)
		api.GET("/settings", s.handleGetSettings)
		api.POST("/settings", s.handleSaveSettings)
		api.GET("/system-info", s.handleSystemInfo)
	}
	return router
}

func (s *Server) handleTranscribe(c *gin.Context) {
	s.mu.RLock()
	missing := s.runtimeMissing
	s.mu.RUnlock()
	if missing {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "PyTorch and Transformers are not installed. Install: pip install torch transformers",
		})
		return
	}

	form, err := c.MultipartForm()
	if err != nil || len(form.File["files"]) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "no files"})
		return
	}

	type upload struct {
		name    string
		content []byte
	}
	var uploads []upload
	for _, header := range form.File["files"] {
		if !audio.Supported(header.Filename) {
			continue
		}
		file, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		content, err := io.ReadAll(file)
		_ = file.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		uploads = append(uploads, upload{name: filepath.Base(header.Filename), content: content})
	}
	if len(uploads) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "no supported audio files"})
		return
	}

	jobID := uuid.NewString()
	s.mu.Lock()
	s.transcription = transcriptionJob{ID: jobID, Status: string(domain.JobProcessing)}
	s.mu.Unlock()
	s.opts.Log.Info(fmt.Sprintf("transcription job %s started with %d files", jobID, len(uploads)))

	go func() {
		for i, item := range uploads {
			s.updateTranscription(jobID, func(job *transcriptionJob) {
				job.Status = "Processing: " + item.name
			})
			result := domain.TranscriptionResult{Filename: item.name, Success: true}
			text, err := s.opts.Transcribe(item.name, item.content)
			if err != nil {
				result.Success = false
				result.Error = err.Error()
			} else {
				result.Text = text
			}
			s.sleep()
			s.updateTranscription(jobID, func(job *transcriptionJob) {
				job.Results = append(job.Results, result)
				job.Progress = float64(i+1) / float64(len(uploads)) * 100
			})
		}
		s.updateTranscription(jobID, func(job *transcriptionJob) {
			job.Status = string(domain.JobCompleted)
		})
	}()

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "transcription started"})
}

func (s *Server) updateTranscription(jobID string, fn func(job *transcriptionJob)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transcription.ID == jobID {
		fn(&s.transcription)
	}
}

func (s *Server) handleTranscriptionStatus(c *gin.Context) {
	s.mu.RLock()
	job := s.transcription
	job.Results = append([]domain.TranscriptionResult(nil), s.transcription.Results...)
	s.mu.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":   job.Status,
		"progress": job.Progress,
		"results":  job.Results,
		"error":    job.Error,
	})
}

func (s *Server) handleDownloadAll(c *gin.Context) {
	s.mu.RLock()
	results := append([]domain.TranscriptionResult(nil), s.transcription.Results...)
	s.mu.RUnlock()

	if len(results) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "no transcriptions"})
		return
	}
	var builder strings.Builder
	for _, result := range results {
		fmt.Fprintf(&builder, "=== %s ===\n%s\n\n", result.Filename, lo.Ternary(result.Success, result.Text, "ERROR: "+result.Error))
	}
	c.Header("Content-Disposition", `attachment; filename="transcriptions.txt"`)
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(builder.String()))
}

func (s *Server) handleDownloadOne(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	s.mu.RLock()
	results := append([]domain.TranscriptionResult(nil), s.transcription.Results...)
	s.mu.RUnlock()

	if err != nil || index < 0 || index >= len(results) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "transcription not found"})
		return
	}
	result := results[index]
	if !result.Success {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": result.Error})
		return
	}
	name := strings.TrimSuffix(result.Filename, filepath.Ext(result.Filename)) + ".txt"
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(result.Text))
}

func (s *Server) handleInstall(c *gin.Context) {
	s.mu.Lock()
	s.runtimeMissing = false
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "runtime installed"})
}

func (s *Server) handleProcessText(c *gin.Context) {
	var req struct {
		Text              *string `json:"text"`
		SentencesPerChunk int     `json:"sentences_per_chunk"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "no text"})
		return
	}

	chunks := chunking.Split(*req.Text, req.SentencesPerChunk)
	if len(chunks) == 0 {
		chunks = []string{*req.Text}
	}

	s.mu.Lock()
	s.translation = translationJob{Status: "ready", Chunks: chunks, Translations: domain.TranslationMap{}}
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"success": true, "chunks": chunks, "total_chunks": len(chunks)})
}

func (s *Server) handleTranslate(c *gin.Context) {
	var req struct {
		Settings     domain.Settings `json:"settings"`
		ChunkIndex   *int            `json:"chunk_index"`
		TranslateAll bool            `json:"translate_all"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "no data"})
		return
	}
	if !req.Settings.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "API settings are not configured"})
		return
	}

	s.mu.Lock()
	if s.translation.Status == string(domain.JobProcessing) {
		s.mu.Unlock()
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "translation already in progress"})
		return
	}
	if len(s.translation.Chunks) == 0 {
		s.mu.Unlock()
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "no chunks loaded"})
		return
	}
	jobID := uuid.NewString()
	s.translation.ID = jobID
	s.translation.Status = string(domain.JobProcessing)
	s.translation.Progress = 0
	s.translation.Error = ""
	chunks := append([]string(nil), s.translation.Chunks...)
	s.mu.Unlock()

	indices := lo.Range(len(chunks))
	if !req.TranslateAll {
		if req.ChunkIndex == nil || *req.ChunkIndex < 0 || *req.ChunkIndex >= len(chunks) {
			s.updateTranslation(jobID, func(job *translationJob) {
				job.Status = string(domain.JobError)
				job.Error = "chunk index out of range"
			})
			c.JSON(http.StatusOK, gin.H{"success": true, "message": "translation started"})
			return
		}
		indices = []int{*req.ChunkIndex}
	}
	s.opts.Log.Info(fmt.Sprintf("translation job %s started for %d chunks", jobID, len(indices)))

	go func() {
		for n, index := range indices {
			translated, err := s.opts.Translate(req.Settings, chunks[index])
			if err != nil {
				if !req.TranslateAll {
					s.updateTranslation(jobID, func(job *translationJob) {
						job.Status = string(domain.JobError)
						job.Error = err.Error()
					})
					return
				}
				translated = "[Translation error: " + err.Error() + "]"
			}
			s.sleep()
			s.updateTranslation(jobID, func(job *translationJob) {
				job.Translations[index] = translated
				job.Progress = float64(n+1) / float64(len(indices)) * 100
			})
		}
		s.updateTranslation(jobID, func(job *translationJob) {
			job.Progress = 100
			job.Status = string(domain.JobCompleted)
		})
	}()

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "translation started"})
}

func (s *Server) updateTranslation(jobID string, fn func(job *translationJob)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.translation.ID == jobID {
		fn(&s.translation)
	}
}

func (s *Server) handleTranslationStatus(c *gin.Context) {
	s.mu.RLock()
	job := s.translation
	translations := s.translation.Translations.Clone()
	s.mu.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":       job.Status,
		"progress":     job.Progress,
		"translations": translations,
		"error":        job.Error,
	})
}

func (s *Server) handleExport(c *gin.Context) {
	s.mu.RLock()
	chunks := len(s.translation.Chunks)
	translations := s.translation.Translations.Clone()
	s.mu.RUnlock()

	if len(translations) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "no translations to export"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"translation": session.Assemble(chunks, translations),
		"filename":    "translation.txt",
	})
}

func (s *Server) handleGetSettings(c *gin.Context) {
	s.mu.RLock()
	settings := s.settings
	s.mu.RUnlock()
	c.JSON(http.StatusOK, gin.H{"success": true, "settings": settings})
}

func (s *Server) handleSaveSettings(c *gin.Context) {
	var settings domain.Settings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "no data"})
		return
	}
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "settings saved"})
}

func (s *Server) handleSystemInfo(c *gin.Context) {
	s.mu.RLock()
	available := !s.runtimeMissing
	s.mu.RUnlock()
	c.JSON(http.StatusOK, gin.H{
		"transformers_available":  available,
		"supported_audio_formats": SupportedAudioFormats,
		"max_file_size":           MaxUploadBytes,
	})
}

func (s *Server) sleep() {
	if s.opts.StepDelay > 0 {
		time.Sleep(s.opts.StepDelay)
	}
}
