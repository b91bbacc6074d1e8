package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const chunkSize = 32 * 1024

// Download streams url into destPath and returns the number of bytes
// written. The body goes to a temporary sibling file that is renamed over
// destPath on success and removed on failure, so destPath is either
// complete or untouched.
//
// progress may be nil.
func (c *Client) Download(ctx context.Context, url, destPath string, progress DownloadProgress) (int64, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	req, err := c.newRequest(ctx, url)
	if err != nil {
		return 0, err
	}

	// Perform request
	resp, err := c.stream.Do(req)
	if err != nil {
		return 0, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	// Check status code
	if resp.StatusCode != http.StatusOK {
		return 0, &HTTPStatusError{URL: url, StatusCode: resp.StatusCode}
	}

	total := UnknownTotal
	if resp.ContentLength >= 0 {
		total = KnownTotal(resp.ContentLength)
	}

	// Create destination directory if needed
	destDir := filepath.Dir(destPath)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return 0, &FileSystemError{Op: "create dest dir", Path: destDir, Err: err}
	}

	// Create temp file for atomic write
	tmpPath := destPath + "." + uuid.NewString() + ".tmp"
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return 0, &FileSystemError{Op: "create temp file", Path: tmpPath, Err: err}
	}

	cleanupNeeded := true
	defer func() {
		tmpFile.Close()
		if cleanupNeeded {
			os.Remove(tmpPath)
		}
	}()

	body := newStallReader(resp.Body, c.timeout, cancel)
	defer body.stop()

	// Stream to temp file
	var received int64
	buf := make([]byte, chunkSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := tmpFile.Write(buf[:n]); err != nil {
				return 0, &FileSystemError{Op: "write", Path: tmpPath, Err: err}
			}
			received += int64(n)
			if progress != nil {
				progress(received, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if cause := context.Cause(ctx); errors.Is(cause, errStalled) {
				readErr = cause
			}
			return 0, &NetworkError{URL: url, Err: fmt.Errorf("read response body: %w", readErr)}
		}
	}

	// Close before rename
	if err := tmpFile.Close(); err != nil {
		return 0, &FileSystemError{Op: "close", Path: tmpPath, Err: err}
	}

	// Atomic rename
	if err := os.Rename(tmpPath, destPath); err != nil {
		return 0, &FileSystemError{Op: "rename", Path: destPath, Err: err}
	}

	cleanupNeeded = false
	return received, nil
}

// stallReader cancels the request when no bytes arrive for timeout.
type stallReader struct {
	r       io.Reader
	timeout time.Duration
	timer   *time.Timer
}

func newStallReader(r io.Reader, timeout time.Duration, cancel context.CancelCauseFunc) *stallReader {
	s := &stallReader{r: r, timeout: timeout}
	if timeout > 0 {
		s.timer = time.AfterFunc(timeout, func() {
			cancel(fmt.Errorf("%w: no data received for %s", errStalled, timeout))
		})
	}
	return s
}

func (s *stallReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if n > 0 && s.timer != nil {
		s.timer.Reset(s.timeout)
	}
	return n, err
}

func (s *stallReader) stop() {
	if s.timer != nil {
		s.timer.Stop()
	}
}
