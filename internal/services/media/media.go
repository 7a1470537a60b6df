package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"plenary/internal/config"
	"plenary/internal/services"
)

// Audio describes an acquired audio artifact in the scratch area.
type Audio struct {
	Path            string
	Format          string
	DurationSeconds float64
	SizeBytes       int64
}

// Service downloads session audio through the configured downloader binary
// and inspects it with ffprobe.
type Service struct {
	cfg config.Media
}

// NewService constructs the acquisition service.
func NewService(cfg config.Media) *Service {
	if strings.TrimSpace(cfg.DownloaderBinary) == "" {
		cfg.DownloaderBinary = "yt-dlp"
	}
	if strings.TrimSpace(cfg.ProbeBinary) == "" {
		cfg.ProbeBinary = "ffprobe"
	}
	if strings.TrimSpace(cfg.AudioFormat) == "" {
		cfg.AudioFormat = "m4a"
	}
	return &Service{cfg: cfg}
}

// Available reports whether the external binaries can be resolved.
func (s *Service) Available() error {
	for _, binary := range []string{s.cfg.DownloaderBinary, s.cfg.ProbeBinary} {
		if _, err := exec.LookPath(binary); err != nil {
			return services.Wrap(services.ErrConfiguration, "media", "check binaries",
				fmt.Sprintf("binary %q not found", binary), err)
		}
	}
	return nil
}

// Acquire downloads the session audio into destDir and returns the artifact.
// Sessions longer than the configured maximum are rejected as invalid.
func (s *Service) Acquire(ctx context.Context, sourceURL, destDir string) (*Audio, error) {
	const op = "acquire audio"

	if err := s.Available(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrAcquisition, "media", op,
			"create scratch directory", err)
	}

	template := filepath.Join(destDir, "audio.%(ext)s")
	cmd := exec.CommandContext(ctx, s.cfg.DownloaderBinary,
		"--extract-audio",
		"--audio-format", s.cfg.AudioFormat,
		"--no-playlist",
		"--no-progress",
		"--output", template,
		sourceURL,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return nil, services.Wrap(services.ErrCancelled, "media", op,
				"download interrupted", ctx.Err())
		}
		return nil, services.Retryable("media", op,
			"downloader failed: "+condenseOutput(output), err)
	}

	audioPath := filepath.Join(destDir, "audio."+s.cfg.AudioFormat)
	info, err := os.Stat(audioPath)
	if err != nil {
		// The downloader may keep the source extension when the stream is
		// already in the requested format container.
		matches, globErr := filepath.Glob(filepath.Join(destDir, "audio.*"))
		if globErr != nil || len(matches) == 0 {
			return nil, services.Retryable("media", op,
				"downloader produced no audio file", err)
		}
		audioPath = matches[0]
		if info, err = os.Stat(audioPath); err != nil {
			return nil, services.Retryable("media", op,
				"downloader produced no audio file", err)
		}
	}
	if info.Size() == 0 {
		return nil, services.Retryable("media", op, "downloaded audio file is empty", nil)
	}

	duration, err := s.probeDuration(ctx, audioPath)
	if err != nil {
		return nil, err
	}
	if s.cfg.MaxDurationHours > 0 {
		limit := float64(s.cfg.MaxDurationHours) * 3600
		if duration > limit {
			return nil, services.Wrap(services.ErrValidation, "media", op,
				fmt.Sprintf("session runs %.0fs, exceeding the %dh limit",
					duration, s.cfg.MaxDurationHours), nil)
		}
	}

	return &Audio{
		Path:            audioPath,
		Format:          strings.TrimPrefix(filepath.Ext(audioPath), "."),
		DurationSeconds: duration,
		SizeBytes:       info.Size(),
	}, nil
}

// Release deletes an acquired artifact. Missing files are not an error so
// cleanup stays idempotent.
func (s *Service) Release(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return services.Wrap(services.ErrAcquisition, "media", "release audio",
			"delete artifact", err)
	}
	return nil
}

func (s *Service) probeDuration(ctx context.Context, path string) (float64, error) {
	const op = "probe audio"

	cmd := exec.CommandContext(ctx, s.cfg.ProbeBinary,
		"-v", "error", "-hide_banner", "-show_format", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return 0, services.Wrap(services.ErrCancelled, "media", op,
				"probe interrupted", ctx.Err())
		}
		return 0, services.Retryable("media", op,
			"probe failed: "+condenseOutput(output), err)
	}

	var parsed struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &parsed); err != nil {
		return 0, services.Wrap(services.ErrAcquisition, "media", op,
			"parse probe output", err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(parsed.Format.Duration), 64)
	if err != nil || duration <= 0 {
		return 0, services.Wrap(services.ErrAcquisition, "media", op,
			"probe reported no duration", err)
	}
	return duration, nil
}

func condenseOutput(output []byte) string {
	text := strings.Join(strings.Fields(string(output)), " ")
	const limit = 200
	runes := []rune(text)
	if len(runes) > limit {
		text = string(runes[:limit]) + "..."
	}
	return text
}
