package artifact

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyChecksum is returned by ParseChecksum when the checksum
	// resource holds no digest token.
	ErrEmptyChecksum = errors.New("checksum resource is empty")

	// ErrUnsupportedArchive is wrapped in an ArchiveFormatError when
	// Extract does not recognise the archive suffix.
	ErrUnsupportedArchive = errors.New("unsupported archive type")

	errStalled = errors.New("transfer stalled")
)

// NetworkError reports a transport-level failure: DNS, refused
// connections, timeouts, or a stream that broke mid-transfer.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error requesting %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPStatusError reports a response whose status was not 200.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// FileSystemError reports a failed local read, write, mkdir or rename.
type FileSystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileSystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying os error.
func (e *FileSystemError) Unwrap() error {
	return e.Err
}

// ArchiveFormatError reports corrupt or unsupported archive content.
// Entry is empty when the failure is not tied to a single entry.
type ArchiveFormatError struct {
	Archive string
	Entry   string
	Err     error
}

func (e *ArchiveFormatError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("archive %s: entry %s: %v", e.Archive, e.Entry, e.Err)
	}
	return fmt.Sprintf("archive %s: %v", e.Archive, e.Err)
}

// Unwrap returns the underlying decoding or write error.
func (e *ArchiveFormatError) Unwrap() error {
	return e.Err
}
