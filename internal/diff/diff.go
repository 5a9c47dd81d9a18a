// Package diff computes the schema and row-count delta between two tabular
// files without loading either of them in memory.
package diff

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/bornholm/trainyard/internal/failure"
)

type Schema struct {
	Added       []string `json:"added"`
	Removed     []string `json:"removed"`
	IsIdentical bool     `json:"isIdentical"`
}

type Rows struct {
	A     int64  `json:"a"`
	B     int64  `json:"b"`
	Delta string `json:"delta"`
}

type Result struct {
	SchemaChange Schema `json:"schemaChange"`
	Rows         Rows   `json:"rows"`
}

// Summary is the header and data row count of one file.
type Summary struct {
	Header []string
	Rows   int64
}

// Compare summarizes both files and reports columns added in B, columns
// removed from A, and the signed row count delta B - A.
func Compare(ctx context.Context, pathA, pathB string) (*Result, error) {
	a, err := Summarize(ctx, pathA)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	b, err := Summarize(ctx, pathB)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	added := difference(b.Header, a.Header)
	removed := difference(a.Header, b.Header)

	return &Result{
		SchemaChange: Schema{
			Added:       added,
			Removed:     removed,
			IsIdentical: len(added) == 0 && len(removed) == 0,
		},
		Rows: Rows{
			A:     a.Rows,
			B:     b.Rows,
			Delta: FormatDelta(b.Rows - a.Rows),
		},
	}, nil
}

// Summarize streams the file once, keeping only its first record as header
// and counting the following records. Rows may have varying field counts.
func Summarize(ctx context.Context, path string) (*Summary, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, failure.Integrity("could not open tabular file '%s': %s", path, err)
	}

	defer file.Close()

	reader := gocsv.LazyCSVReader(file)
	if r, ok := reader.(*csv.Reader); ok {
		r.FieldsPerRecord = -1
		r.ReuseRecord = true
	}

	summary := &Summary{
		Header: []string{},
	}

	record, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return summary, nil
	}
	if err != nil {
		return nil, failure.Integrity("could not read header of '%s': %s", path, err)
	}

	// ReuseRecord shares the backing array between reads
	summary.Header = append(summary.Header, record...)

	for {
		if summary.Rows%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errors.WithStack(err)
			}
		}

		if _, err := reader.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			return nil, failure.Integrity("could not read row %d of '%s': %s", summary.Rows+1, path, err)
		}

		summary.Rows++
	}

	return summary, nil
}

// FormatDelta renders a signed count, with an explicit plus sign when positive.
func FormatDelta(delta int64) string {
	if delta > 0 {
		return "+" + strconv.FormatInt(delta, 10)
	}

	return strconv.FormatInt(delta, 10)
}

// difference returns the sorted, deduplicated values of left absent from right.
func difference(left, right []string) []string {
	index := make(map[string]struct{}, len(right))
	for _, v := range right {
		index[v] = struct{}{}
	}

	seen := make(map[string]struct{}, len(left))
	result := make([]string, 0)

	for _, v := range left {
		if _, exists := index[v]; exists {
			continue
		}

		if _, exists := seen[v]; exists {
			continue
		}

		seen[v] = struct{}{}
		result = append(result, v)
	}

	sort.Strings(result)

	return result
}
