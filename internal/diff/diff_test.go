package diff

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/bornholm/trainyard/internal/failure"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0640); err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	return path
}

func TestCompare(t *testing.T) {
	type testCase struct {
		Name            string
		A               string
		B               string
		ExpectedAdded   []string
		ExpectedRemoved []string
		ExpectedRowsA   int64
		ExpectedRowsB   int64
		ExpectedDelta   string
	}

	testCases := []testCase{
		{
			Name:            "identical",
			A:               "id,price\n1,10\n2,20\n",
			B:               "id,price\n1,10\n2,20\n",
			ExpectedAdded:   []string{},
			ExpectedRemoved: []string{},
			ExpectedRowsA:   2,
			ExpectedRowsB:   2,
			ExpectedDelta:   "0",
		},
		{
			Name:            "added column and rows",
			A:               "id,price\n1,10\n",
			B:               "id,price,region\n1,10,eu\n2,20,us\n3,30,eu\n4,40,us\n",
			ExpectedAdded:   []string{"region"},
			ExpectedRemoved: []string{},
			ExpectedRowsA:   1,
			ExpectedRowsB:   4,
			ExpectedDelta:   "+3",
		},
		{
			Name:            "removed columns and rows",
			A:               "id,zeta,alpha\n1,a,b\n2,c,d\n3,e,f\n",
			B:               "id\n1\n",
			ExpectedAdded:   []string{},
			ExpectedRemoved: []string{"alpha", "zeta"},
			ExpectedRowsA:   3,
			ExpectedRowsB:   1,
			ExpectedDelta:   "-2",
		},
		{
			Name:            "empty file",
			A:               "",
			B:               "id\n1\n",
			ExpectedAdded:   []string{"id"},
			ExpectedRemoved: []string{},
			ExpectedRowsA:   0,
			ExpectedRowsB:   1,
			ExpectedDelta:   "+1",
		},
		{
			Name:            "ragged rows",
			A:               "id,price\n1\n2,20,extra\n",
			B:               "id,price\n1,10\n",
			ExpectedAdded:   []string{},
			ExpectedRemoved: []string{},
			ExpectedRowsA:   2,
			ExpectedRowsB:   1,
			ExpectedDelta:   "-1",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			pathA := writeFile(t, "a.csv", tc.A)
			pathB := writeFile(t, "b.csv", tc.B)

			result, err := Compare(context.Background(), pathA, pathB)
			require.NoError(t, err)

			require.Equal(t, tc.ExpectedAdded, result.SchemaChange.Added)
			require.Equal(t, tc.ExpectedRemoved, result.SchemaChange.Removed)
			require.Equal(t, len(tc.ExpectedAdded) == 0 && len(tc.ExpectedRemoved) == 0, result.SchemaChange.IsIdentical)
			require.Equal(t, tc.ExpectedRowsA, result.Rows.A)
			require.Equal(t, tc.ExpectedRowsB, result.Rows.B)
			require.Equal(t, tc.ExpectedDelta, result.Rows.Delta)
		})
	}
}

func TestCompareSameFile(t *testing.T) {
	path := writeFile(t, "sales.csv", "id,amount\n1,3\n2,4\n")

	result, err := Compare(context.Background(), path, path)
	require.NoError(t, err)
	require.True(t, result.SchemaChange.IsIdentical)
	require.Equal(t, "0", result.Rows.Delta)
}

func TestCompareMissingFile(t *testing.T) {
	path := writeFile(t, "a.csv", "id\n")

	_, err := Compare(context.Background(), path, filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	require.True(t, errors.Is(err, failure.ErrIntegrity))
}

func TestFormatDelta(t *testing.T) {
	require.Equal(t, "+3", FormatDelta(3))
	require.Equal(t, "0", FormatDelta(0))
	require.Equal(t, "-2", FormatDelta(-2))
}
