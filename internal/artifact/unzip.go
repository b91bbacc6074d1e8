package artifact

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// maxSymlinkTarget caps how much of a symlink entry is read as its target.
const maxSymlinkTarget = 4096

// Unzip extracts every entry of the ZIP archive at src into destDir and
// returns the entry count. destDir is created if missing, but its parent
// must already exist.
func Unzip(src, destDir string, progress EntryProgress) (int, error) {
	archiveFile, err := os.Open(src)
	if err != nil {
		return 0, &FileSystemError{Op: "open", Path: src, Err: err}
	}
	defer archiveFile.Close()

	info, err := archiveFile.Stat()
	if err != nil {
		return 0, &FileSystemError{Op: "stat", Path: src, Err: err}
	}

	// Open zip reader
	zipReader, err := zip.NewReader(archiveFile, info.Size())
	if err != nil {
		return 0, &ArchiveFormatError{Archive: src, Err: err}
	}

	if err := ensureDir(destDir); err != nil {
		return 0, err
	}
	root := filepath.Clean(destDir)

	// Extract all entries
	for _, file := range zipReader.File {
		if progress != nil {
			progress(file.Name)
		}
		if err := extractZipEntry(root, file); err != nil {
			return 0, &ArchiveFormatError{Archive: src, Entry: file.Name, Err: err}
		}
	}

	return len(zipReader.File), nil
}

// ensureDir creates dir without creating parents and accepts an existing
// directory.
func ensureDir(dir string) error {
	err := os.Mkdir(dir, 0755)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		info, statErr := os.Stat(dir)
		if statErr == nil && info.IsDir() {
			return nil
		}
	}
	return &FileSystemError{Op: "create dest dir", Path: dir, Err: err}
}

func extractZipEntry(root string, file *zip.File) error {
	target, err := entryPath(root, file.Name)
	if err != nil {
		return err
	}
	if target == root {
		return nil
	}
	if err := checkParents(root, target); err != nil {
		return err
	}

	mode := file.Mode()
	switch {
	case mode.IsDir():
		if err := os.MkdirAll(target, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
		return nil

	case mode&fs.ModeSymlink != 0:
		rc, err := file.Open()
		if err != nil {
			return fmt.Errorf("open entry: %w", err)
		}
		linkname, err := io.ReadAll(io.LimitReader(rc, maxSymlinkTarget))
		rc.Close()
		if err != nil {
			return fmt.Errorf("read symlink target: %w", err)
		}
		if err := checkSymlink(root, target, string(linkname)); err != nil {
			return err
		}
		return writeSymlink(target, string(linkname))

	default:
		rc, err := file.Open()
		if err != nil {
			return fmt.Errorf("open entry: %w", err)
		}
		defer rc.Close()

		if err := writeEntry(target, rc, mode.Perm()); err != nil {
			return err
		}
		if file.Modified.IsZero() {
			return nil
		}
		return os.Chtimes(target, file.Modified, file.Modified)
	}
}
