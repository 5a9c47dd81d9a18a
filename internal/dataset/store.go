// Package dataset implements the content store: datasets are addressed by
// the SHA-256 of their bytes and exposed through logical (name, version)
// records. Identical uploads share a single file on disk.
package dataset

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/bornholm/trainyard/internal/diff"
	"github.com/bornholm/trainyard/internal/failure"
	"github.com/bornholm/trainyard/internal/file"
	"github.com/bornholm/trainyard/internal/metrics"
	"github.com/bornholm/trainyard/internal/slogx"
	"github.com/bornholm/trainyard/internal/store"
	repository "github.com/bornholm/trainyard/internal/store/repository/dataset"
)

type VersionAction string

const (
	ActionNewDataset VersionAction = "NEW_DATASET"
	ActionNewVersion VersionAction = "NEW_VERSION"
)

func (a VersionAction) IsValid() bool {
	return a == ActionNewDataset || a == ActionNewVersion
}

type Store struct {
	repository *repository.Repository
	files      *file.Storage
	locks      hashLocks
	logger     *slog.Logger
}

func NewStore(repository *repository.Repository, files *file.Storage, logger *slog.Logger) *Store {
	return &Store{
		repository: repository,
		files:      files,
		logger:     logger.With("component", "dataset-store"),
	}
}

// Ingest stores the uploaded bytes, reusing the existing file when the same
// content was already ingested, and records a new logical version.
func (s *Store) Ingest(ctx context.Context, upload io.Reader, filename string, declaredName string, action VersionAction) (*store.Dataset, error) {
	declaredName = strings.TrimSpace(declaredName)

	if upload == nil || filename == "" {
		return nil, failure.InvalidInput("no dataset file provided")
	}

	if declaredName == "" {
		return nil, failure.InvalidInput("dataset name is required")
	}

	if !action.IsValid() {
		return nil, failure.InvalidInput("invalid version action '%s'", action)
	}

	ctx = slogx.WithAttrs(ctx, slog.String("dataset_name", declaredName), slog.String("version_action", string(action)))

	ext := strings.ToLower(filepath.Ext(filename))

	temp, err := s.files.WriteTemp(upload, ext)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	unlock := s.locks.lock(temp.Checksum)
	defer unlock()

	existing, err := s.repository.FindByHash(ctx, temp.Checksum)
	if err != nil {
		s.files.Discard(temp.Path)
		return nil, errors.WithStack(err)
	}

	var (
		path  string
		moved bool
	)

	if existing != nil {
		path = existing.Path
		s.files.Discard(temp.Path)
		metrics.DatasetDedupHitCount.Inc()
		s.logger.DebugContext(ctx, "dataset content already stored", slog.String("hash", temp.Checksum), slog.String("path", path))
	} else {
		path, err = s.files.Promote(temp.Path, temp.Checksum+ext)
		if err != nil {
			s.files.Discard(temp.Path)
			return nil, errors.WithStack(err)
		}
		moved = true
	}

	dataset := &store.Dataset{
		Name:      declaredName,
		Filename:  filename,
		Hash:      temp.Checksum,
		Path:      path,
		SizeBytes: store.Size(temp.Size),
		MimeType:  s.files.DetectMimeType(path),
	}

	switch action {
	case ActionNewDataset:
		err = s.repository.CreateFirstVersion(ctx, dataset)
	case ActionNewVersion:
		err = s.repository.CreateNextVersion(ctx, dataset)
	}
	if err != nil {
		// Only a file promoted by this call can be unreferenced here
		if moved {
			s.files.Discard(path)
		}
		return nil, errors.WithStack(err)
	}

	metrics.DatasetIngestedCount.Inc()

	s.logger.InfoContext(ctx, "dataset ingested", slog.Uint64("dataset_id", uint64(dataset.ID)), slog.Int("version", dataset.Version), slog.String("hash", dataset.Hash))

	return dataset, nil
}

func (s *Store) List(ctx context.Context) ([]*store.Dataset, error) {
	datasets, err := s.repository.List(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return datasets, nil
}

func (s *Store) Get(ctx context.Context, id uint) (*store.Dataset, error) {
	dataset, err := s.repository.GetByID(ctx, id)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return dataset, nil
}

type DiffReport struct {
	DatasetA *store.Dataset `json:"datasetA"`
	DatasetB *store.Dataset `json:"datasetB"`
	Diff     *diff.Result   `json:"diff"`
}

// Diff compares the content of two datasets.
func (s *Store) Diff(ctx context.Context, idA, idB uint) (*DiffReport, error) {
	datasetA, err := s.repository.GetByID(ctx, idA)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	datasetB, err := s.repository.GetByID(ctx, idB)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	result, err := diff.Compare(ctx, datasetA.Path, datasetB.Path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &DiffReport{
		DatasetA: datasetA,
		DatasetB: datasetB,
		Diff:     result,
	}, nil
}

// Open returns the dataset record and a reader over its content. The
// caller must close the reader.
func (s *Store) Open(ctx context.Context, id uint) (*store.Dataset, io.ReadSeekCloser, error) {
	dataset, err := s.repository.GetByID(ctx, id)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}

	if !s.files.FileExists(dataset.Path) {
		s.logger.ErrorContext(ctx, "dataset file missing", slog.Uint64("dataset_id", uint64(id)), slog.String("path", dataset.Path))
		return nil, nil, failure.Integrity("file of dataset %d is missing", id)
	}

	file, err := s.files.GetFile(dataset.Path)
	if err != nil {
		return nil, nil, failure.Integrity("could not open file of dataset %d: %s", id, err)
	}

	return dataset, file, nil
}

// Delete removes the dataset record, and its file when no other dataset
// shares the same content.
func (s *Store) Delete(ctx context.Context, id uint) error {
	dataset, err := s.repository.GetByID(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	unlock := s.locks.lock(dataset.Hash)
	defer unlock()

	shared, err := s.repository.CountByHash(ctx, dataset.Hash)
	if err != nil {
		return errors.WithStack(err)
	}

	if shared <= 1 {
		missing, err := s.files.Remove(dataset.Path)
		if err != nil {
			return errors.WithStack(err)
		}

		if missing {
			s.logger.WarnContext(ctx, "dataset file already missing", slog.Uint64("dataset_id", uint64(id)), slog.String("path", dataset.Path))
		}
	}

	if err := s.repository.Delete(ctx, id); err != nil {
		return errors.WithStack(err)
	}

	s.logger.InfoContext(ctx, "dataset deleted", slog.Uint64("dataset_id", uint64(id)))

	return nil
}
