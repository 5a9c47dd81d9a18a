package file

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/rs/xid"
)

const tempDir = "tmp"

// Storage manages files below a base directory. Writes always land in a
// temporary file first and are moved into place with a rename, so readers
// never observe a partially written file.
type Storage struct {
	basePath string
	logger   *slog.Logger
}

type TempFile struct {
	Path     string
	Size     int64
	Checksum string
}

func NewStorage(basePath string, logger *slog.Logger) *Storage {
	return &Storage{
		basePath: basePath,
		logger:   logger.With("component", "file-storage", "base_path", basePath),
	}
}

func (fs *Storage) GetBasePath() string {
	return fs.basePath
}

// Path returns the absolute location of a file relative to the storage root.
func (fs *Storage) Path(name string) string {
	return filepath.Join(fs.basePath, name)
}

// WriteTemp copies the reader into a new temporary file, computing its
// SHA-256 checksum along the way.
func (fs *Storage) WriteTemp(reader io.Reader, ext string) (*TempFile, error) {
	dirPath := filepath.Join(fs.basePath, tempDir)

	if err := os.MkdirAll(dirPath, 0750); err != nil {
		return nil, errors.Wrapf(err, "could not create directory '%s'", dirPath)
	}

	tempPath := filepath.Join(dirPath, xid.New().String()+ext)

	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0640)
	if err != nil {
		return nil, errors.Wrapf(err, "could not create file '%s'", tempPath)
	}

	hasher := sha256.New()

	size, err := io.Copy(io.MultiWriter(file, hasher), reader)
	if err != nil {
		file.Close()
		fs.Discard(tempPath)
		return nil, errors.Wrapf(err, "could not write file '%s'", tempPath)
	}

	if err := file.Close(); err != nil {
		fs.Discard(tempPath)
		return nil, errors.Wrapf(err, "could not close file '%s'", tempPath)
	}

	fs.logger.Debug("stored temporary file", "path", tempPath, "size", size)

	return &TempFile{
		Path:     tempPath,
		Size:     size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Promote atomically moves a temporary file to its final name below the
// storage root and returns the final path.
func (fs *Storage) Promote(tempPath string, name string) (string, error) {
	finalPath := fs.Path(name)

	if err := os.MkdirAll(filepath.Dir(finalPath), 0750); err != nil {
		return "", errors.Wrapf(err, "could not create directory '%s'", filepath.Dir(finalPath))
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		return "", errors.Wrapf(err, "could not move '%s' to '%s'", tempPath, finalPath)
	}

	return finalPath, nil
}

// Discard removes a file, logging instead of failing so that cleanup never
// masks the error that triggered it.
func (fs *Storage) Discard(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		fs.logger.Warn("could not discard file", "path", path, "error", err)
	}
}

// Remove deletes a file. A file that is already gone is reported through
// the missing flag, not as an error.
func (fs *Storage) Remove(path string) (missing bool, err error) {
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}

		return false, errors.Wrapf(err, "could not remove file '%s'", path)
	}

	fs.logger.Debug("removed file", "path", path)

	return false, nil
}

func (fs *Storage) GetFile(filePath string) (*os.File, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open file '%s'", filePath)
	}
	return file, nil
}

func (fs *Storage) ReadFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read file '%s'", filePath)
	}
	return data, nil
}

// FileExists checks if a regular file exists at the given path
func (fs *Storage) FileExists(filePath string) bool {
	info, err := os.Stat(filePath)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

func (fs *Storage) DetectMimeType(filePath string) string {
	mtype, err := mimetype.DetectFile(filePath)
	if err != nil {
		fs.logger.Warn("could not detect mime type", "path", filePath, "error", err)
		return "application/octet-stream"
	}

	return mtype.String()
}

// EnsureDirectoryExists creates the base and temporary directories if needed
func (fs *Storage) EnsureDirectoryExists() error {
	for _, dir := range []string{fs.basePath, filepath.Join(fs.basePath, tempDir)} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return errors.Wrapf(err, "could not create storage directory '%s'", dir)
		}
	}

	return nil
}

// CleanupTempFiles removes temporary files older than the specified duration,
// typically left behind by an interrupted upload.
func (fs *Storage) CleanupTempFiles(olderThan time.Duration) error {
	tempPath := filepath.Join(fs.basePath, tempDir)
	cutoff := time.Now().Add(-olderThan)

	entries, err := os.ReadDir(tempPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.WithStack(err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(tempPath, entry.Name())
		if err := os.Remove(path); err != nil {
			fs.logger.Warn("could not remove temp file", "path", path, "error", err)
		} else {
			fs.logger.Debug("removed temp file", "path", path)
		}
	}

	return nil
}
