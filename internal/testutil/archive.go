// Package testutil provides fixture builders shared by forge-install tests.
package testutil

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Entry describes one archive member. Names ending in "/" are directories;
// a non-empty Linkname makes the entry a symlink, or a hard link when
// HardLink is set (tar only).
type Entry struct {
	Name     string
	Body     string
	Mode     int64
	Linkname string
	HardLink bool
}

func (e Entry) isDir() bool {
	return strings.HasSuffix(e.Name, "/")
}

func (e Entry) mode() int64 {
	if e.Mode != 0 {
		return e.Mode
	}
	if e.isDir() {
		return 0755
	}
	return 0644
}

// TarGz returns a gzip-compressed tar archive holding entries in order.
func TarGz(t *testing.T, entries []Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	tarWriter := tar.NewWriter(gzipWriter)

	for _, e := range entries {
		header := &tar.Header{
			Name: e.Name,
			Mode: e.mode(),
		}
		switch {
		case e.isDir():
			header.Typeflag = tar.TypeDir
		case e.HardLink:
			header.Typeflag = tar.TypeLink
			header.Linkname = e.Linkname
		case e.Linkname != "":
			header.Typeflag = tar.TypeSymlink
			header.Linkname = e.Linkname
		default:
			header.Typeflag = tar.TypeReg
			header.Size = int64(len(e.Body))
		}

		if err := tarWriter.WriteHeader(header); err != nil {
			t.Fatalf("failed to write header for %s: %v", e.Name, err)
		}
		if header.Typeflag == tar.TypeReg {
			if _, err := tarWriter.Write([]byte(e.Body)); err != nil {
				t.Fatalf("failed to write content for %s: %v", e.Name, err)
			}
		}
	}

	if err := tarWriter.Close(); err != nil {
		t.Fatalf("failed to close tar writer: %v", err)
	}
	if err := gzipWriter.Close(); err != nil {
		t.Fatalf("failed to close gzip writer: %v", err)
	}
	return buf.Bytes()
}

// Zip returns a ZIP archive holding entries in order.
func Zip(t *testing.T, entries []Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zipWriter := zip.NewWriter(&buf)

	for _, e := range entries {
		header := &zip.FileHeader{
			Name:   e.Name,
			Method: zip.Deflate,
		}
		switch {
		case e.isDir():
			header.SetMode(os.ModeDir | os.FileMode(e.mode()))
		case e.Linkname != "":
			header.SetMode(os.ModeSymlink | 0777)
		default:
			header.SetMode(os.FileMode(e.mode()))
		}

		w, err := zipWriter.CreateHeader(header)
		if err != nil {
			t.Fatalf("failed to create zip entry %s: %v", e.Name, err)
		}

		body := e.Body
		if e.Linkname != "" {
			body = e.Linkname
		}
		if !e.isDir() {
			if _, err := w.Write([]byte(body)); err != nil {
				t.Fatalf("failed to write zip entry %s: %v", e.Name, err)
			}
		}
	}

	if err := zipWriter.Close(); err != nil {
		t.Fatalf("failed to close zip writer: %v", err)
	}
	return buf.Bytes()
}

// WriteFile writes data to name inside dir and returns the full path.
func WriteFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// SHA256Hex returns the lowercase hex SHA-256 digest of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
