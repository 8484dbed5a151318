// Package transcription produces transcripts for acquired episode audio,
// either through a transcription backend or by fetching a published
// transcript from the feed.
package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/Zhong-Ze-Wei/podcast/internal/config"
	"github.com/Zhong-Ze-Wei/podcast/internal/domain"
)

// Common transcription errors.
var (
	// ErrBackendDisabled is returned when no transcription backend is
	// configured and the episode has no official transcript.
	ErrBackendDisabled = errors.New("transcription backend is not configured")

	// ErrUnexpectedStatus is returned for non-2xx backend responses.
	ErrUnexpectedStatus = errors.New("unexpected transcription backend status")
)

// ProgressFunc receives transcription completion in percent.
type ProgressFunc func(percent int)

// Result is the outcome of a transcription.
type Result struct {
	Text     string
	Segments []domain.TranscriptSegment
	Language string
	Source   string
}

// Transcriber converts local audio files into transcripts.
type Transcriber interface {
	// Transcribe produces a transcript for the audio file at audioPath.
	// Progress may be nil.
	Transcribe(ctx context.Context, audioPath string, progress ProgressFunc) (*Result, error)
}

// backendResponse is the JSON body returned by the transcription backend.
type backendResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Start   float64 `json:"start"`
		End     float64 `json:"end"`
		Speaker string  `json:"speaker"`
		Text    string  `json:"text"`
	} `json:"segments"`
}

// HTTPTranscriber sends audio to an external transcription backend over
// HTTP. The backend accepts the raw audio body on POST /transcribe and
// responds with the transcript JSON.
type HTTPTranscriber struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewHTTPTranscriber creates an HTTPTranscriber from configuration. Returns
// ErrBackendDisabled when no endpoint is configured.
func NewHTTPTranscriber(cfg config.TranscriptionConfig, logger *slog.Logger) (*HTTPTranscriber, error) {
	if cfg.Endpoint == "" {
		return nil, ErrBackendDisabled
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	return &HTTPTranscriber{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}, nil
}

// Transcribe streams the audio file to the backend and decodes the
// transcript response. The backend call dominates the runtime, so progress
// jumps are coarse: reported at upload start and completion.
func (t *HTTPTranscriber) Transcribe(ctx context.Context, audioPath string, progress ProgressFunc) (*Result, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			t.logger.Warn("failed to close audio file", "error", closeErr)
		}
	}()

	if progress != nil {
		progress(10)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint+"/transcribe", file)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeFor(audioPath))

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			t.logger.Warn("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %s: %s", ErrUnexpectedStatus, resp.Status, body)
	}

	var decoded backendResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode transcription response: %w", err)
	}

	if progress != nil {
		progress(95)
	}

	result := &Result{
		Text:     decoded.Text,
		Language: decoded.Language,
		Source:   domain.TranscriptSourceBackend,
	}
	for _, seg := range decoded.Segments {
		result.Segments = append(result.Segments, domain.TranscriptSegment{
			Start:   seg.Start,
			End:     seg.End,
			Speaker: seg.Speaker,
			Text:    seg.Text,
		})
	}

	return result, nil
}

func contentTypeFor(audioPath string) string {
	switch filepath.Ext(audioPath) {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}
