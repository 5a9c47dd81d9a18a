// Package vault stores training scripts encrypted at rest and keeps a
// version chain per script name with exactly one latest version.
package vault

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/bornholm/trainyard/internal/crypto"
	"github.com/bornholm/trainyard/internal/failure"
	"github.com/bornholm/trainyard/internal/file"
	"github.com/bornholm/trainyard/internal/metrics"
	"github.com/bornholm/trainyard/internal/slogx"
	"github.com/bornholm/trainyard/internal/store"
	"github.com/bornholm/trainyard/internal/store/repository/script"
)

type VersionAction string

const (
	ActionNewScript  VersionAction = "NEW_SCRIPT"
	ActionNewVersion VersionAction = "NEW_VERSION"
)

func (a VersionAction) IsValid() bool {
	return a == ActionNewScript || a == ActionNewVersion
}

const (
	DefaultCategory = "general"
	sealedExt       = ".enc"
)

type Vault struct {
	repository *script.Repository
	files      *file.Storage
	sealer     *crypto.Sealer
	logger     *slog.Logger
}

func New(repository *script.Repository, files *file.Storage, sealer *crypto.Sealer, logger *slog.Logger) *Vault {
	return &Vault{
		repository: repository,
		files:      files,
		sealer:     sealer,
		logger:     logger.With("component", "script-vault"),
	}
}

type SaveRequest struct {
	Filename         string
	Name             string
	Category         string
	Action           VersionAction
	PreviousScriptID uint
}

// Save encrypts the uploaded script and records it as a new version. The
// plaintext is only ever held in memory.
func (v *Vault) Save(ctx context.Context, upload io.Reader, req SaveRequest) (*store.Script, error) {
	if upload == nil || req.Filename == "" {
		return nil, failure.InvalidInput("no script file provided")
	}

	if !req.Action.IsValid() {
		return nil, failure.InvalidInput("invalid version action '%s'", req.Action)
	}

	name := strings.TrimSpace(req.Name)
	category := strings.TrimSpace(req.Category)

	if name == "" && req.PreviousScriptID != 0 {
		previous, err := v.repository.GetByID(ctx, req.PreviousScriptID)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		name = previous.Name
		if category == "" {
			category = previous.Category
		}
	}

	if name == "" {
		return nil, failure.InvalidInput("script name or previous script id is required")
	}

	if category == "" {
		category = DefaultCategory
	}

	ctx = slogx.WithAttrs(ctx, slog.String("script_name", name), slog.String("version_action", string(req.Action)))

	plaintext, err := io.ReadAll(upload)
	if err != nil {
		return nil, errors.Wrap(err, "could not read script")
	}

	checksum := sha256.Sum256(plaintext)

	blob, err := v.sealer.Seal(plaintext)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	temp, err := v.files.WriteTemp(bytes.NewReader(blob), sealedExt)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	encryptedPath, err := v.files.Promote(temp.Path, filepath.Base(temp.Path))
	if err != nil {
		v.files.Discard(temp.Path)
		return nil, errors.WithStack(err)
	}

	script := &store.Script{
		Name:          name,
		Category:      category,
		Filename:      req.Filename,
		IntegrityHash: hex.EncodeToString(checksum[:]),
		EncryptedPath: encryptedPath,
	}

	switch req.Action {
	case ActionNewScript:
		err = v.repository.CreateFirstVersion(ctx, script)
	case ActionNewVersion:
		err = v.repository.CreateNextVersion(ctx, script)
	}
	if err != nil {
		v.files.Discard(encryptedPath)
		return nil, errors.WithStack(err)
	}

	metrics.ScriptSavedCount.Inc()

	v.logger.InfoContext(ctx, "script saved", slog.Uint64("script_id", uint64(script.ID)), slog.Int("version", script.Version))

	return script, nil
}

// Content decrypts the script and verifies it against its recorded hash.
func (v *Vault) Content(ctx context.Context, id uint) ([]byte, error) {
	script, err := v.repository.GetByID(ctx, id)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if !v.files.FileExists(script.EncryptedPath) {
		return nil, v.integrityFailure(ctx, script, "encrypted file is missing")
	}

	blob, err := v.files.ReadFile(script.EncryptedPath)
	if err != nil {
		return nil, v.integrityFailure(ctx, script, err.Error())
	}

	plaintext, err := v.sealer.Open(blob)
	if err != nil {
		if errors.Is(err, crypto.ErrAuthentication) || errors.Is(err, crypto.ErrMalformedBlob) {
			return nil, v.integrityFailure(ctx, script, "script file is tampered or corrupted")
		}
		return nil, errors.WithStack(err)
	}

	checksum := sha256.Sum256(plaintext)
	if hex.EncodeToString(checksum[:]) != script.IntegrityHash {
		return nil, v.integrityFailure(ctx, script, "decrypted content does not match its integrity hash")
	}

	return plaintext, nil
}

func (v *Vault) integrityFailure(ctx context.Context, script *store.Script, reason string) error {
	metrics.ScriptIntegrityFailureCount.Inc()

	v.logger.ErrorContext(ctx, "script integrity check failed",
		slog.Uint64("script_id", uint64(script.ID)),
		slog.String("path", script.EncryptedPath),
		slog.String("reason", reason),
	)

	return failure.Integrity("script %d: %s", script.ID, reason)
}

// Group is every version of one script name, newest first.
type Group struct {
	Name     string          `json:"name"`
	LatestID uint            `json:"latestId"`
	Versions []*store.Script `json:"versions"`
}

// List returns the scripts grouped by name, each group filed under the
// category of its latest version.
func (v *Vault) List(ctx context.Context) (map[string][]*Group, error) {
	scripts, err := v.repository.List(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	groups := make([]*Group, 0)
	index := make(map[string]*Group)
	categories := make(map[*Group]string)

	for _, s := range scripts {
		group, exists := index[s.Name]
		if !exists {
			group = &Group{
				Name:     s.Name,
				Versions: make([]*store.Script, 0),
			}
			index[s.Name] = group
			groups = append(groups, group)
			// Versions come newest first
			categories[group] = s.Category
		}

		group.Versions = append(group.Versions, s)

		if s.IsLatest {
			group.LatestID = s.ID
			categories[group] = s.Category
		}
	}

	grouped := make(map[string][]*Group)
	for _, group := range groups {
		category := categories[group]
		grouped[category] = append(grouped[category], group)
	}

	return grouped, nil
}

// Versions returns the version chain the script belongs to, newest first.
func (v *Vault) Versions(ctx context.Context, id uint) ([]*store.Script, error) {
	script, err := v.repository.GetByID(ctx, id)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	versions, err := v.repository.ListByName(ctx, script.Name)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return versions, nil
}

func (v *Vault) Get(ctx context.Context, id uint) (*store.Script, error) {
	script, err := v.repository.GetByID(ctx, id)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return script, nil
}

// Delete removes the ciphertext then the record. The highest remaining
// version of the name becomes the latest one.
func (v *Vault) Delete(ctx context.Context, id uint) error {
	script, err := v.repository.GetByID(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	missing, err := v.files.Remove(script.EncryptedPath)
	if err != nil {
		return errors.WithStack(err)
	}

	if missing {
		v.logger.WarnContext(ctx, "script file already missing", slog.Uint64("script_id", uint64(id)), slog.String("path", script.EncryptedPath))
	}

	if err := v.repository.Delete(ctx, id); err != nil {
		return errors.WithStack(err)
	}

	v.logger.InfoContext(ctx, "script deleted", slog.Uint64("script_id", uint64(id)))

	return nil
}
