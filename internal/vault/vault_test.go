package vault

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/bornholm/trainyard/internal/crypto"
	"github.com/bornholm/trainyard/internal/failure"
	"github.com/bornholm/trainyard/internal/file"
	"github.com/bornholm/trainyard/internal/slogx"
	"github.com/bornholm/trainyard/internal/store"
	"github.com/bornholm/trainyard/internal/store/repository/script"
	"github.com/bornholm/trainyard/internal/store/storetest"
)

const trainScript = "import torch\n\nprint('training')\n"

func newTestVault(t *testing.T) *Vault {
	t.Helper()

	key, err := crypto.RandomBytes(crypto.KeySize)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	sealer, err := crypto.NewSealer(key)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	logger := slogx.NewTestLogger(t)

	return New(script.NewRepository(storetest.New(t)), file.NewStorage(t.TempDir(), logger), sealer, logger)
}

func save(t *testing.T, v *Vault, content string, req SaveRequest) *store.Script {
	t.Helper()

	s, err := v.Save(context.Background(), strings.NewReader(content), req)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	return s
}

func TestSaveVersionChainHasOneLatest(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t)

	first := save(t, v, trainScript, SaveRequest{Filename: "train.py", Name: "train", Category: "vision", Action: ActionNewScript})
	require.Equal(t, 1, first.Version)
	require.True(t, first.IsLatest)

	var last *store.Script
	for i := 0; i < 4; i++ {
		last = save(t, v, trainScript+strings.Repeat("#", i), SaveRequest{Filename: "train.py", Action: ActionNewVersion, PreviousScriptID: first.ID})
	}

	require.Equal(t, 5, last.Version)

	groups, err := v.List(ctx)
	require.NoError(t, err)
	require.Len(t, groups["vision"], 1)

	group := groups["vision"][0]
	require.Equal(t, "train", group.Name)
	require.Equal(t, last.ID, group.LatestID)
	require.Len(t, group.Versions, 5)

	latest := 0
	for _, s := range group.Versions {
		if s.IsLatest {
			latest++
			require.Equal(t, 5, s.Version)
		}
	}
	require.Equal(t, 1, latest)
}

func TestListGroupsVersionChainAcrossCategories(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t)

	first := save(t, v, trainScript, SaveRequest{Filename: "train.py", Name: "train", Category: "vision", Action: ActionNewScript})
	second := save(t, v, trainScript+"#", SaveRequest{Filename: "train.py", Name: "train", Category: "nlp", Action: ActionNewVersion})
	other := save(t, v, trainScript, SaveRequest{Filename: "eval.py", Name: "eval", Category: "vision", Action: ActionNewScript})

	groups, err := v.List(ctx)
	require.NoError(t, err)

	require.Len(t, groups["nlp"], 1)
	require.Len(t, groups["vision"], 1)

	train := groups["nlp"][0]
	require.Equal(t, "train", train.Name)
	require.Equal(t, second.ID, train.LatestID)
	require.Len(t, train.Versions, 2)
	require.Equal(t, first.ID, train.Versions[1].ID)

	require.Equal(t, other.ID, groups["vision"][0].LatestID)

	versions, err := v.Versions(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	require.Equal(t, second.ID, versions[0].ID)
	require.Equal(t, first.ID, versions[1].ID)

	_, err = v.Versions(ctx, 42)
	require.True(t, errors.Is(err, failure.ErrNotFound), "expected not found, got %+v", err)
}

func TestSaveConflictAndMissingName(t *testing.T) {
	v := newTestVault(t)

	save(t, v, trainScript, SaveRequest{Filename: "train.py", Name: "train", Action: ActionNewScript})

	_, err := v.Save(context.Background(), strings.NewReader(trainScript), SaveRequest{Filename: "train.py", Name: "train", Action: ActionNewScript})
	require.True(t, errors.Is(err, failure.ErrConflict), "expected conflict, got %+v", err)

	_, err = v.Save(context.Background(), strings.NewReader(trainScript), SaveRequest{Filename: "train.py", Action: ActionNewVersion})
	require.True(t, errors.Is(err, failure.ErrInvalidInput), "expected invalid input, got %+v", err)

	_, err = v.Save(context.Background(), strings.NewReader(trainScript), SaveRequest{Filename: "train.py", Action: ActionNewVersion, PreviousScriptID: 42})
	require.True(t, errors.Is(err, failure.ErrNotFound), "expected not found, got %+v", err)
}

func TestContentRoundTrip(t *testing.T) {
	v := newTestVault(t)

	s := save(t, v, trainScript, SaveRequest{Filename: "train.py", Name: "train", Action: ActionNewScript})
	require.Equal(t, DefaultCategory, s.Category)

	stored, err := os.ReadFile(s.EncryptedPath)
	require.NoError(t, err)
	require.NotContains(t, string(stored), "torch")

	content, err := v.Content(context.Background(), s.ID)
	require.NoError(t, err)
	require.Equal(t, trainScript, string(content))
}

func TestContentDetectsTampering(t *testing.T) {
	v := newTestVault(t)

	s := save(t, v, trainScript, SaveRequest{Filename: "train.py", Name: "train", Action: ActionNewScript})

	blob, err := os.ReadFile(s.EncryptedPath)
	require.NoError(t, err)

	for _, offset := range []int{0, crypto.IVSize, crypto.IVSize + crypto.TagSize, len(blob) - 1} {
		tampered := append([]byte{}, blob...)
		tampered[offset] ^= 0x01

		require.NoError(t, os.WriteFile(s.EncryptedPath, tampered, 0640))

		_, err := v.Content(context.Background(), s.ID)
		require.True(t, errors.Is(err, failure.ErrIntegrity), "offset %d: expected integrity error, got %+v", offset, err)
	}

	require.NoError(t, os.WriteFile(s.EncryptedPath, blob[:crypto.IVSize], 0640))

	_, err = v.Content(context.Background(), s.ID)
	require.True(t, errors.Is(err, failure.ErrIntegrity), "expected integrity error on truncated blob, got %+v", err)

	require.NoError(t, os.Remove(s.EncryptedPath))

	_, err = v.Content(context.Background(), s.ID)
	require.True(t, errors.Is(err, failure.ErrIntegrity), "expected integrity error on missing file, got %+v", err)
}

func TestDeletePromotesPreviousVersion(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t)

	first := save(t, v, trainScript, SaveRequest{Filename: "train.py", Name: "train", Action: ActionNewScript})
	second := save(t, v, trainScript+"#", SaveRequest{Filename: "train.py", Name: "train", Action: ActionNewVersion})

	require.NoError(t, v.Delete(ctx, second.ID))
	require.NoFileExists(t, second.EncryptedPath)

	promoted, err := v.Get(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, promoted.IsLatest)

	err = v.Delete(ctx, second.ID)
	require.True(t, errors.Is(err, failure.ErrNotFound))
}
