// Package media handles acquisition and local storage of episode audio.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Common media errors.
var (
	// ErrNoAudioURL is returned when an episode has no audio enclosure.
	ErrNoAudioURL = errors.New("episode has no audio URL")

	// ErrUnexpectedStatus is returned for non-2xx download responses.
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// ProgressFunc receives download completion in percent. It is only called
// when the server reports a content length.
type ProgressFunc func(percent int)

// Result describes a completed download.
type Result struct {
	// Path is the absolute local path of the stored audio file.
	Path string

	// Bytes is the number of bytes written.
	Bytes int64

	// ContentType is the response content type, if any.
	ContentType string
}

// Fetcher downloads episode audio to local storage.
type Fetcher interface {
	// Fetch downloads the audio at url and stores it under the episode's ID.
	// Progress may be nil.
	Fetch(ctx context.Context, episodeID uuid.UUID, url string, progress ProgressFunc) (*Result, error)
}

// HTTPFetcher is a Fetcher backed by net/http, streaming responses straight
// to disk. Files land under root/<episode-id><ext>; a partial download is
// written to a .part file and renamed only on success.
type HTTPFetcher struct {
	root   string
	client *http.Client
	logger *slog.Logger
}

// NewHTTPFetcher creates an HTTPFetcher storing files under root. The
// directory is created on first use.
func NewHTTPFetcher(root string, logger *slog.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		root: root,
		client: &http.Client{
			Timeout: 30 * time.Minute,
		},
		logger: logger,
	}
}

// Fetch downloads the audio at url and stores it under the episode's ID.
func (f *HTTPFetcher) Fetch(ctx context.Context, episodeID uuid.UUID, url string, progress ProgressFunc) (*Result, error) {
	if url == "" {
		return nil, ErrNoAudioURL
	}

	if err := os.MkdirAll(f.root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media root: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			f.logger.Warn("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	finalPath := filepath.Join(f.root, episodeID.String()+extensionFor(contentType, url))
	partPath := finalPath + ".part"

	file, err := os.Create(partPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	written, err := copyWithProgress(file, resp.Body, resp.ContentLength, progress)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if rmErr := os.Remove(partPath); rmErr != nil {
			f.logger.Warn("failed to remove partial download", "path", partPath, "error", rmErr)
		}
		return nil, fmt.Errorf("download failed after %d bytes: %w", written, err)
	}

	if err := os.Rename(partPath, finalPath); err != nil {
		return nil, fmt.Errorf("failed to finalize download: %w", err)
	}

	f.logger.Info("audio downloaded",
		"episode_id", episodeID,
		"bytes", written,
		"path", finalPath)

	return &Result{Path: finalPath, Bytes: written, ContentType: contentType}, nil
}

// Remove deletes the stored audio file for an episode if present.
func (f *HTTPFetcher) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// copyWithProgress streams src to dst reporting percent completion when the
// total size is known.
func copyWithProgress(dst io.Writer, src io.Reader, total int64, progress ProgressFunc) (int64, error) {
	buf := make([]byte, 128*1024)
	var written int64
	lastPercent := -1

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			wn, writeErr := dst.Write(buf[:n])
			written += int64(wn)
			if writeErr != nil {
				return written, writeErr
			}
			if wn < n {
				return written, io.ErrShortWrite
			}

			if progress != nil && total > 0 {
				percent := int(written * 100 / total)
				if percent != lastPercent {
					progress(percent)
					lastPercent = percent
				}
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

// extensionFor picks a file extension from the content type, falling back to
// the URL's extension and then .mp3.
func extensionFor(contentType, url string) string {
	if contentType != "" {
		if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
			switch mediaType {
			case "audio/mpeg", "audio/mp3":
				return ".mp3"
			case "audio/mp4", "audio/x-m4a", "audio/aac":
				return ".m4a"
			case "audio/ogg":
				return ".ogg"
			case "audio/wav", "audio/x-wav":
				return ".wav"
			}
		}
	}

	if ext := filepath.Ext(url); ext != "" && len(ext) <= 5 {
		return ext
	}
	return ".mp3"
}
