package file

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bornholm/trainyard/internal/slogx"
	"github.com/pkg/errors"
)

func TestWriteTempAndPromote(t *testing.T) {
	storage := NewStorage(t.TempDir(), slogx.NewTestLogger(t))

	temp, err := storage.WriteTemp(strings.NewReader("a,b\n1,2\n"), ".csv")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if temp.Size != 8 {
		t.Errorf("expected size 8, got %d", temp.Size)
	}

	if len(temp.Checksum) != 64 {
		t.Errorf("expected hex sha256 checksum, got %q", temp.Checksum)
	}

	finalPath, err := storage.Promote(temp.Path, temp.Checksum+".csv")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if storage.FileExists(temp.Path) {
		t.Error("expected temporary file to be moved")
	}

	if !storage.FileExists(finalPath) {
		t.Errorf("expected file at '%s'", finalPath)
	}

	if filepath.Dir(finalPath) != storage.GetBasePath() {
		t.Errorf("unexpected final directory '%s'", filepath.Dir(finalPath))
	}
}

func TestRemoveToleratesMissingFile(t *testing.T) {
	storage := NewStorage(t.TempDir(), slogx.NewTestLogger(t))

	missing, err := storage.Remove(storage.Path("nope"))
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if !missing {
		t.Error("expected missing flag for absent file")
	}
}

func TestCleanupTempFiles(t *testing.T) {
	storage := NewStorage(t.TempDir(), slogx.NewTestLogger(t))

	stale, err := storage.WriteTemp(strings.NewReader("stale"), ".bin")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	fresh, err := storage.WriteTemp(strings.NewReader("fresh"), ".bin")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(stale.Path, old, old); err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if err := storage.CleanupTempFiles(24 * time.Hour); err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if storage.FileExists(stale.Path) {
		t.Error("expected stale temp file to be removed")
	}

	if !storage.FileExists(fresh.Path) {
		t.Error("expected fresh temp file to be kept")
	}
}
