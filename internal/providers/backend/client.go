package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wailsapp/wails/v2/pkg/logger"

	"audiotranslator/internal/domain"
	"audiotranslator/internal/ports"
)

// Config controls the backend HTTP client.
type Config struct {
	BaseURL string
	// Timeout bounds each JSON request. Audio uploads are bounded only by the
	// caller's context.
	Timeout time.Duration
}

// Client implements ports.Backend over the JSON HTTP API.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	log     logger.Logger
}

func NewClient(cfg Config, log logger.Logger) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = "http://localhost:5000"
	}
	parsed, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid backend base URL %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	return &Client{base: parsed, http: &http.Client{}, timeout: cfg.Timeout, log: log}, nil
}

// BaseURL returns the resolved backend root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

type envelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

type statusResponse struct {
	Status       string                       `json:"status"`
	Progress     float64                      `json:"progress"`
	Error        string                       `json:"error"`
	Results      []domain.TranscriptionResult `json:"results"`
	Translations domain.TranslationMap        `json:"translations"`
}

func (c *Client) SubmitTranscription(ctx context.Context, files []ports.UploadFile) error {
	if len(files) == 0 {
		return errors.New("no files to submit")
	}

	body, contentType := multipartBody(files)
	defer body.Close()

	req, err := c.newRequest(ctx, http.MethodPost, "/api/transcribe", body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	var out envelope
	return c.decode(req, &out, 0)
}

func (c *Client) TranscriptionStatus(ctx context.Context) (domain.JobStatus, error) {
	return c.status(ctx, "/api/transcription-status")
}

func (c *Client) DownloadTranscription(ctx context.Context, index *int) (domain.Download, error) {
	path := "/api/download-transcription"
	fallback := "transcriptions.txt"
	if index != nil {
		path += "/" + strconv.Itoa(*index)
		fallback = fmt.Sprintf("transcription_%d.txt", *index+1)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.Download{}, err
	}
	resp, err := c.send(req)
	if err != nil {
		return domain.Download{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return domain.Download{}, decodeFailure(resp)
	}
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Download{}, &TransportError{Op: path, Err: err}
	}
	return domain.Download{Filename: attachmentName(resp.Header.Get("Content-Disposition"), fallback), Content: content}, nil
}

func (c *Client) InstallRuntime(ctx context.Context) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/install-pytorch", nil)
	if err != nil {
		return "", err
	}
	var out envelope
	if err := c.doJSON(req, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *Client) ProcessText(ctx context.Context, text string, sentencesPerChunk int) ([]string, error) {
	payload := map[string]any{"text": text, "sentences_per_chunk": sentencesPerChunk}
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/api/process-text", payload)
	if err != nil {
		return nil, err
	}
	var out struct {
		envelope
		Chunks []string `json:"chunks"`
	}
	if err := c.doJSON(req, &out); err != nil {
		return nil, err
	}
	return out.Chunks, nil
}

func (c *Client) SubmitTranslation(ctx context.Context, request ports.TranslateRequest) error {
	payload := translatePayload{
		Settings:     request.Settings,
		ChunkIndex:   request.ChunkIndex,
		TranslateAll: request.TranslateAll,
	}
	if request.TranslateAll {
		payload.ChunkIndex = nil
	}
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/api/translate", payload)
	if err != nil {
		return err
	}
	var out envelope
	return c.doJSON(req, &out)
}

type translatePayload struct {
	Settings     domain.Settings `json:"settings"`
	ChunkIndex   *int            `json:"chunk_index"`
	TranslateAll bool            `json:"translate_all"`
}

func (c *Client) TranslationStatus(ctx context.Context) (domain.JobStatus, error) {
	return c.status(ctx, "/api/translation-status")
}

func (c *Client) ExportTranslation(ctx context.Context) (domain.Download, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/export-translation", nil)
	if err != nil {
		return domain.Download{}, err
	}
	var out struct {
		envelope
		Translation string `json:"translation"`
		Filename    string `json:"filename"`
	}
	if err := c.doJSON(req, &out); err != nil {
		return domain.Download{}, err
	}
	return domain.Download{Filename: out.Filename, Content: []byte(out.Translation)}, nil
}

func (c *Client) FetchSettings(ctx context.Context) (domain.Settings, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/settings", nil)
	if err != nil {
		return domain.Settings{}, err
	}
	var out struct {
		envelope
		Settings domain.Settings `json:"settings"`
	}
	if err := c.doJSON(req, &out); err != nil {
		return domain.Settings{}, err
	}
	return out.Settings, nil
}

func (c *Client) StoreSettings(ctx context.Context, settings domain.Settings) error {
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/api/settings", settings)
	if err != nil {
		return err
	}
	var out envelope
	return c.doJSON(req, &out)
}

func (c *Client) SystemInfo(ctx context.Context) (domain.SystemInfo, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/system-info", nil)
	if err != nil {
		return domain.SystemInfo{}, err
	}
	var out domain.SystemInfo
	if err := c.doJSON(req, &out); err != nil {
		return domain.SystemInfo{}, err
	}
	return out, nil
}

func (c *Client) status(ctx context.Context, path string) (domain.JobStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.JobStatus{}, err
	}
	var out statusResponse
	if err := c.doJSON(req, &out); err != nil {
		return domain.JobStatus{}, err
	}
	return domain.JobStatus{
		State:        normalizeState(out.Status),
		Progress:     out.Progress,
		Error:        out.Error,
		Results:      out.Results,
		Translations: out.Translations,
	}, nil
}

// normalizeState keeps terminal states exact and folds free-text progress labels into processing.
func normalizeState(raw string) domain.JobState {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(domain.JobCompleted):
		return domain.JobCompleted
	case string(domain.JobError):
		return domain.JobError
	case "":
		return domain.JobProcessing
	default:
		return domain.JobState(raw)
	}
}

func (c *Client) newRequest(ctx context.Context, method string, path string, body io.Reader) (*http.Request, error) {
	endpoint := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) newJSONRequest(ctx context.Context, method string, path string, payload any) (*http.Request, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", path, err)
	}
	req, err := c.newRequest(ctx, method, path, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	c.log.Trace(fmt.Sprintf("backend %s %s", req.Method, req.URL.Path))
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warning(fmt.Sprintf("backend %s %s failed: %v", req.Method, req.URL.Path, err))
		return nil, &TransportError{Op: req.URL.Path, Err: err}
	}
	return resp, nil
}

// doJSON sends req bounded by the client timeout and decodes the response.
func (c *Client) doJSON(req *http.Request, out any) error {
	return c.decode(req, out, c.timeout)
}

// decode sends req and converts {success:false} or HTTP failures to *APIError.
// A zero timeout leaves the request bounded by its context only.
func (c *Client) decode(req *http.Request, out any, timeout time.Duration) error {
	if timeout > 0 {
		ctx, cancel := context.WithTimeout(req.Context(), timeout)
		defer cancel()
		req = req.WithContext(ctx)
	}

	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: req.URL.Path, Err: err}
	}

	var env envelope
	_ = json.Unmarshal(raw, &env)
	if resp.StatusCode >= http.StatusBadRequest || (env.Success != nil && !*env.Success) {
		return newAPIError(resp.StatusCode, env.Error, raw)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &TransportError{Op: req.URL.Path, Err: fmt.Errorf("invalid JSON response: %w", err)}
	}
	return nil
}

func decodeFailure(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var env envelope
	_ = json.Unmarshal(raw, &env)
	return newAPIError(resp.StatusCode, env.Error, raw)
}

func newAPIError(status int, message string, raw []byte) *APIError {
	message = strings.TrimSpace(message)
	if message == "" {
		message = strings.TrimSpace(string(raw))
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Message: message}
}

func attachmentName(header string, fallback string) string {
	if header == "" {
		return fallback
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return fallback
	}
	if name := strings.TrimSpace(params["filename"]); name != "" {
		return name
	}
	return fallback
}

// multipartBody streams the files under the "files" field without buffering them in memory.
func multipartBody(files []ports.UploadFile) (io.ReadCloser, string) {
	reader, writer := io.Pipe()
	form := multipart.NewWriter(writer)

	go func() {
		for _, file := range files {
			if err := copyFormFile(form, file); err != nil {
				_ = writer.CloseWithError(err)
				return
			}
		}
		_ = writer.CloseWithError(form.Close())
	}()

	return reader, form.FormDataContentType()
}

func copyFormFile(form *multipart.Writer, file ports.UploadFile) error {
	src, err := os.Open(file.Path)
	if err != nil {
		return fmt.Errorf("failed to open %q: %w", file.Path, err)
	}
	defer src.Close()

	name := file.Name
	if name == "" {
		name = file.Path
	}
	part, err := form.CreateFormFile("files", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("failed to upload %q: %w", file.Path, err)
	}
	return nil
}
