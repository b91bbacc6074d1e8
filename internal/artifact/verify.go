package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"
)

// Verify reports whether the SHA-256 digest of the file at path equals
// expected. The comparison is exact and case-sensitive; a mismatch is a
// false result, not an error.
func Verify(path, expected string) (bool, error) {
	actual, err := Digest(path)
	if err != nil {
		return false, err
	}
	return actual == expected, nil
}

// Digest returns the lowercase hex SHA-256 digest of the file at path.
func Digest(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", &FileSystemError{Op: "open", Path: path, Err: err}
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", &FileSystemError{Op: "read", Path: path, Err: err}
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// ParseChecksum extracts the digest from a checksum resource.
// Format: "abc123def456  filename.tar.gz"; only the first token is used.
func ParseChecksum(body string) (string, error) {
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return "", ErrEmptyChecksum
	}
	return fields[0], nil
}
