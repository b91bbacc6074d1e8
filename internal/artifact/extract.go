package artifact

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Extract unpacks src into destDir, picking the extractor from the archive
// suffix: .zip, .tar.gz or .tgz.
func Extract(src, destDir string, progress EntryProgress) (int, error) {
	name := strings.ToLower(filepath.Base(src))
	switch {
	case strings.HasSuffix(name, ".zip"):
		return Unzip(src, destDir, progress)
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return Untargz(src, destDir, progress)
	default:
		return 0, &ArchiveFormatError{Archive: src, Err: ErrUnsupportedArchive}
	}
}

// Untargz extracts a gzip-compressed tar archive into destDir in a single
// streaming pass and returns the number of entries processed.
//
// progress fires when an entry header is read, before the entry's content
// has been written.
func Untargz(src, destDir string, progress EntryProgress) (int, error) {
	// Open archive file
	archiveFile, err := os.Open(src)
	if err != nil {
		return 0, &FileSystemError{Op: "open", Path: src, Err: err}
	}
	defer archiveFile.Close()

	// Create gzip reader
	gzipReader, err := gzip.NewReader(archiveFile)
	if err != nil {
		return 0, &ArchiveFormatError{Archive: src, Err: fmt.Errorf("read gzip header: %w", err)}
	}
	defer gzipReader.Close()

	// Create tar reader
	tarReader := tar.NewReader(gzipReader)

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return 0, &FileSystemError{Op: "create dest dir", Path: destDir, Err: err}
	}
	root := filepath.Clean(destDir)

	// Extract all entries
	count := 0
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, &ArchiveFormatError{Archive: src, Err: fmt.Errorf("read tar header: %w", err)}
		}

		if progress != nil {
			progress(header.Name)
		}
		count++

		target, err := entryPath(root, header.Name)
		if err != nil {
			return 0, &ArchiveFormatError{Archive: src, Entry: header.Name, Err: err}
		}
		if target == root {
			continue
		}
		if err := checkParents(root, target); err != nil {
			return 0, &ArchiveFormatError{Archive: src, Entry: header.Name, Err: err}
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return 0, &FileSystemError{Op: "create directory", Path: target, Err: err}
			}

		case tar.TypeReg:
			if err := writeEntry(target, tarReader, header.FileInfo().Mode().Perm()); err != nil {
				var readErr *entryReadError
				if errors.As(err, &readErr) {
					return 0, &ArchiveFormatError{Archive: src, Entry: header.Name, Err: readErr.Err}
				}
				return 0, err
			}
			// Preserve modification time
			if !header.ModTime.IsZero() {
				if err := os.Chtimes(target, header.ModTime, header.ModTime); err != nil {
					return 0, &FileSystemError{Op: "set times", Path: target, Err: err}
				}
			}

		case tar.TypeSymlink:
			if err := checkSymlink(root, target, header.Linkname); err != nil {
				return 0, &ArchiveFormatError{Archive: src, Entry: header.Name, Err: err}
			}
			if err := writeSymlink(target, header.Linkname); err != nil {
				return 0, err
			}

		case tar.TypeLink:
			linkTarget, err := entryPath(root, header.Linkname)
			if err != nil {
				return 0, &ArchiveFormatError{Archive: src, Entry: header.Name, Err: err}
			}
			if err := checkParents(root, linkTarget); err != nil {
				return 0, &ArchiveFormatError{Archive: src, Entry: header.Name, Err: err}
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return 0, &FileSystemError{Op: "create parent dir", Path: target, Err: err}
			}
			os.Remove(target)
			if err := os.Link(linkTarget, target); err != nil {
				return 0, &FileSystemError{Op: "create hard link", Path: target, Err: err}
			}

		default:
			// Skip other types (char devices, block devices, fifos)
			continue
		}
	}

	return count, nil
}

// entryPath resolves an archive entry name under root and rejects names
// that escape it.
func entryPath(root, name string) (string, error) {
	target := filepath.Join(root, name)
	if !within(root, target) {
		return "", fmt.Errorf("illegal file path: %s", name)
	}
	return target, nil
}

func within(root, path string) bool {
	return path == root || strings.HasPrefix(path, root+string(os.PathSeparator))
}

// checkSymlink rejects a link at target whose destination, resolved against
// the link's directory, lies outside root.
func checkSymlink(root, target, linkname string) error {
	resolved := linkname
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(filepath.Dir(target), linkname)
	}
	if !within(root, filepath.Clean(resolved)) {
		return fmt.Errorf("illegal symlink target: %s", linkname)
	}
	return nil
}

// checkParents refuses to write through a symlink: every existing
// directory between root and target must be a real directory.
func checkParents(root, target string) error {
	rel, err := filepath.Rel(root, filepath.Dir(target))
	if err != nil || rel == "." {
		return err
	}

	current := root
	for _, part := range strings.Split(rel, string(os.PathSeparator)) {
		current = filepath.Join(current, part)
		info, err := os.Lstat(current)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			return fmt.Errorf("path crosses symlink: %s", current)
		}
	}
	return nil
}

// writeEntry copies r into a new file at target, creating parents. A failure
// reading r is returned as an *entryReadError so that corrupt archive data is
// not reported as a failed write.
func writeEntry(target string, r io.Reader, perm os.FileMode) error {
	// Create parent directories
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return &FileSystemError{Op: "create parent dir", Path: target, Err: err}
	}

	if perm == 0 {
		perm = 0644
	}

	// Never open an existing symlink for writing
	if info, err := os.Lstat(target); err == nil && info.Mode()&fs.ModeSymlink != 0 {
		if err := os.Remove(target); err != nil {
			return &FileSystemError{Op: "remove symlink", Path: target, Err: err}
		}
	}

	outFile, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return &FileSystemError{Op: "create file", Path: target, Err: err}
	}

	// Copy content
	source := &trackingReader{r: r}
	if _, err := io.Copy(outFile, source); err != nil {
		outFile.Close()
		if source.err != nil {
			return &entryReadError{Err: source.err}
		}
		return &FileSystemError{Op: "write file", Path: target, Err: err}
	}

	if err := outFile.Close(); err != nil {
		return &FileSystemError{Op: "close file", Path: target, Err: err}
	}
	return nil
}

// writeSymlink replaces whatever is at target with a symlink to linkname.
func writeSymlink(target, linkname string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return &FileSystemError{Op: "create parent dir", Path: target, Err: err}
	}
	os.Remove(target)
	if err := os.Symlink(linkname, target); err != nil {
		return &FileSystemError{Op: "create symlink", Path: target, Err: err}
	}
	return nil
}

type entryReadError struct {
	Err error
}

func (e *entryReadError) Error() string {
	return "read entry: " + e.Err.Error()
}

func (e *entryReadError) Unwrap() error {
	return e.Err
}

// trackingReader remembers the first non-EOF read error.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF && t.err == nil {
		t.err = err
	}
	return n, err
}
