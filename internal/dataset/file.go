package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrNoDataset is returned when none of the candidate files exist.
var ErrNoDataset = errors.New("no dataset found")

// DefaultCandidates are the file names searched by Locate, in order.
var DefaultCandidates = []string{
	"db.dashboard_incidents (1).json",
	"db.dashboard_incidents.json",
	"near_miss_data.json",
}

// Locate returns the first candidate that exists in dir.
func Locate(dir string, candidates []string) (string, error) {
	for _, name := range candidates {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w in %s (looked for %s)", ErrNoDataset, dir, strings.Join(candidates, ", "))
}

// LoadFile reads a .json or .xlsx dataset.
func LoadFile(path string) (Result, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		raw, err := readSheet(path)
		if err != nil {
			return Result{}, err
		}
		return normalize(raw, path), nil
	default:
		f, err := os.Open(path)
		if err != nil {
			return Result{}, fmt.Errorf("open dataset: %w", err)
		}
		defer f.Close()
		return Parse(f, path)
	}
}

// readSheet turns the first worksheet into raw records. The first row holds
// field names; each later row becomes one object keyed by those names.
// Blank header cells are skipped, as are rows without any value.
func readSheet(path string) ([]any, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) == 0 {
		return []any{}, nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	out := make([]any, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(map[string]any, len(header))
		for i, cell := range row {
			if i >= len(header) || header[i] == "" || cell == "" {
				continue
			}
			rec[header[i]] = cell
		}
		if len(rec) == 0 {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
