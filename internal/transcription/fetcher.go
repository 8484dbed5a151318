package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/Zhong-Ze-Wei/podcast/internal/domain"
)

// minTranscriptChars guards against empty or placeholder documents being
// accepted as transcripts.
const minTranscriptChars = 100

// Common fetcher errors.
var (
	// ErrNoTranscriptURL is returned when the episode has no transcript URL.
	ErrNoTranscriptURL = errors.New("no transcript URL provided")

	// ErrUnsupportedFormat is returned for transcript URLs that are not
	// SRT, VTT, or JSON.
	ErrUnsupportedFormat = errors.New("unsupported transcript format, only SRT, VTT, JSON are supported")

	// ErrTranscriptTooShort is returned when the fetched document yields
	// almost no text.
	ErrTranscriptTooShort = errors.New("transcript content too short or empty")
)

var vttTagPattern = regexp.MustCompile(`<[^>]+>`)

// Fetcher downloads published transcripts referenced by a feed, supporting
// the SRT, WebVTT, and Podcasting 2.0 JSON formats.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
}

// NewFetcher creates a transcript Fetcher.
func NewFetcher(logger *slog.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// Fetch downloads and parses the transcript at url.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	if url == "" {
		return nil, ErrNoTranscriptURL
	}

	format := formatOf(url)
	if format == "" {
		return nil, ErrUnsupportedFormat
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transcript: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			f.logger.Warn("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to fetch transcript: status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}

	var text string
	switch format {
	case ".srt":
		text = ParseSRT(string(body))
	case ".vtt":
		text = ParseVTT(string(body))
	case ".json":
		text = ParseJSONTranscript(body)
	}

	text = strings.TrimSpace(text)
	if len(text) <= minTranscriptChars {
		return nil, ErrTranscriptTooShort
	}

	return &Result{
		Text:   text,
		Source: domain.TranscriptSourceOfficial,
	}, nil
}

// formatOf returns the supported format extension found in the URL, or "".
func formatOf(url string) string {
	lower := strings.ToLower(url)
	for _, format := range []string{".srt", ".vtt", ".json"} {
		if strings.Contains(lower, format) {
			return format
		}
	}
	return ""
}

// ParseSRT extracts spoken text from an SRT document, dropping cue numbers
// and timestamp lines.
func ParseSRT(content string) string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isDigits(line) || strings.Contains(line, "-->") {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, " ")
}

// ParseVTT extracts spoken text from a WebVTT document, dropping headers,
// notes, timestamps, and inline tags.
func ParseVTT(content string) string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "WEBVTT") || strings.HasPrefix(line, "NOTE") {
			continue
		}
		if strings.Contains(line, "-->") {
			continue
		}
		line = vttTagPattern.ReplaceAllString(line, "")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, " ")
}

// ParseJSONTranscript extracts text from a Podcasting 2.0 JSON transcript.
// Three shapes are accepted: {"segments": [{"text": ...}]}, a bare array of
// {"text": ...} objects, and {"transcript": "..."}.
func ParseJSONTranscript(content []byte) string {
	var withSegments struct {
		Segments []struct {
			Text string `json:"text"`
		} `json:"segments"`
		Transcript string `json:"transcript"`
	}
	if err := json.Unmarshal(content, &withSegments); err == nil {
		if len(withSegments.Segments) > 0 {
			parts := make([]string, 0, len(withSegments.Segments))
			for _, seg := range withSegments.Segments {
				if seg.Text != "" {
					parts = append(parts, seg.Text)
				}
			}
			return strings.Join(parts, " ")
		}
		if withSegments.Transcript != "" {
			return withSegments.Transcript
		}
	}

	var bareList []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(content, &bareList); err == nil {
		parts := make([]string, 0, len(bareList))
		for _, item := range bareList {
			if item.Text != "" {
				parts = append(parts, item.Text)
			}
		}
		return strings.Join(parts, " ")
	}

	return ""
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
