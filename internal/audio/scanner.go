package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"audiotranslator/internal/domain"
)

// SupportedExtensions is the allow-list of audio file extensions.
var SupportedExtensions = []string{".mp3", ".wav", ".flac", ".m4a", ".ogg", ".aac", ".wma", ".mp4"}

// Supported reports whether path has an allowed extension, ignoring case.
func Supported(path string) bool {
	return lo.Contains(SupportedExtensions, strings.ToLower(filepath.Ext(path)))
}

// Scanner resolves audio files and reads their duration with ffprobe.
type Scanner struct {
	probe string
}

// NewScanner returns a scanner using the given ffprobe command. An empty command
// uses "ffprobe"; "-" disables duration probing.
func NewScanner(probeCommand string) *Scanner {
	if probeCommand == "" {
		probeCommand = "ffprobe"
	}
	if probeCommand == "-" {
		probeCommand = ""
	}
	return &Scanner{probe: probeCommand}
}

// Scan walks dir recursively and returns every supported audio file sorted by path.
func (s *Scanner) Scan(ctx context.Context, dir string) ([]domain.AudioFile, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a folder", dir)
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() || !Supported(path) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan audio folder: %w", err)
	}
	sort.Strings(paths)
	return s.Inspect(ctx, paths)
}

// Inspect filters paths by the allow-list and collects size and duration.
// Unreadable files are skipped.
func (s *Scanner) Inspect(ctx context.Context, paths []string) ([]domain.AudioFile, error) {
	files := make([]domain.AudioFile, 0, len(paths))
	for _, path := range lo.Filter(paths, func(path string, _ int) bool { return Supported(path) }) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		file := domain.AudioFile{
			Path: path,
			Name: filepath.Base(path),
			Size: info.Size(),
		}
		if s.probe != "" {
			if duration, err := s.Duration(ctx, path); err == nil {
				file.Duration = duration
			}
		}
		files = append(files, file)
	}
	return files, nil
}

// Duration runs ffprobe against path.
func (s *Scanner) Duration(ctx context.Context, path string) (time.Duration, error) {
	if s.probe == "" {
		return 0, errors.New("duration probing disabled")
	}

	cmd := exec.CommandContext(ctx, s.probe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return parseDuration(stdout.String())
}

func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected ffprobe output %q", raw)
	}
	if seconds < 0 {
		return 0, fmt.Errorf("negative duration %q", raw)
	}
	return time.Duration(seconds * float64(time.Second)).Round(time.Millisecond), nil
}

// HumanSize formats a byte count the way the file list shows it.
func HumanSize(size int64) string {
	units := []string{"B", "KB", "MB", "GB", "TB"}
	value := float64(size)
	unit := 0
	for value >= 1024 && unit < len(units)-1 {
		value /= 1024
		unit++
	}
	if unit == 0 {
		return fmt.Sprintf("%d %s", size, units[0])
	}
	return fmt.Sprintf("%.1f %s", value, units[unit])
}
