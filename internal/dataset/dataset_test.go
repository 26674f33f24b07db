package dataset

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/near-miss-analytics/internal/domain"
	"github.com/couchcryptid/near-miss-analytics/internal/observability"
)

const sampleJSON = `[
	{"id": 1, "region": "North", "severity_level": 3, "year": 2023, "month": 5},
	null,
	"junk",
	{"incident_number": "IN-2", "region": "", "severity_level": 9}
]`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestUnwrap(t *testing.T) {
	arr := []any{map[string]any{"id": "a"}}

	tests := []struct {
		name     string
		in       any
		expected any
	}{
		{"array", arr, arr},
		{"envelope", map[string]any{"data": arr}, arr},
		{"envelope with null data", map[string]any{"data": nil}, []any{}},
		{"object without data", map[string]any{"items": arr}, []any{}},
		{"scalar", "text", []any{}},
		{"nil", nil, []any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Unwrap(tt.in))
		})
	}
}

func TestParse(t *testing.T) {
	res, err := Parse(strings.NewReader(sampleJSON), "inline")
	require.NoError(t, err)

	assert.Equal(t, "inline", res.Source)
	assert.Equal(t, 2, res.Dropped)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "1", res.Records[0].ID)
	assert.Equal(t, "High", res.Records[0].SeverityLabel)
	assert.Equal(t, "IN-2", res.Records[1].ID)
	assert.Equal(t, domain.Unknown, res.Records[1].Region)
	assert.Equal(t, 4, res.Records[1].SeverityLevel)
}

func TestParse_EnvelopeWithNonArrayData(t *testing.T) {
	res, err := Parse(strings.NewReader(`{"data": {"id": 1}}`), "inline")
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Equal(t, 0, res.Dropped)
}

func TestParse_InvalidJSON(t *testing.T) {
	_, err := Parse(strings.NewReader(`[{"id": `), "inline")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode dataset")
}

func TestLocate(t *testing.T) {
	dir := t.TempDir()

	_, err := Locate(dir, DefaultCandidates)
	require.ErrorIs(t, err, ErrNoDataset)

	second := writeFile(t, dir, "db.dashboard_incidents.json", "[]")
	path, err := Locate(dir, DefaultCandidates)
	require.NoError(t, err)
	assert.Equal(t, second, path)

	first := writeFile(t, dir, "db.dashboard_incidents (1).json", "[]")
	path, err = Locate(dir, DefaultCandidates)
	require.NoError(t, err)
	assert.Equal(t, first, path)
}

func TestLoadFile_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "data.json", `{"data": `+sampleJSON+`}`)

	res, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)
	assert.Equal(t, path, res.Source)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open dataset")
}

func TestLoadFile_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "incidents.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"id", "region", "severity_level", "year", "month", ""}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"NM-1", "West", 2, 2024, 3, "ignored"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"NM-2", "", "x"}))
	require.NoError(t, f.SetSheetRow(sheet, "A5", &[]any{"NM-3", "East"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	res, err := LoadFile(path)
	require.NoError(t, err)

	require.Len(t, res.Records, 3)
	assert.Equal(t, "NM-1", res.Records[0].ID)
	assert.Equal(t, "West", res.Records[0].Region)
	assert.Equal(t, 2, res.Records[0].SeverityLevel)
	assert.Equal(t, 2024, res.Records[0].Year)
	assert.Equal(t, 3, res.Records[0].Month)
	assert.Equal(t, domain.Unknown, res.Records[1].Region)
	assert.Equal(t, 1, res.Records[1].SeverityLevel)
	assert.Equal(t, "NM-3", res.Records[2].ID)
}

func newTestFetcher(retries int) *Fetcher {
	f := NewFetcher(2*time.Second, retries, discardLogger())
	f.initialInterval = time.Millisecond
	f.maxInterval = 5 * time.Millisecond
	return f
}

func TestFetcher_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, sampleJSON)
	}))
	defer srv.Close()

	res, err := newTestFetcher(0).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)
	assert.Equal(t, srv.URL, res.Source)
}

func TestFetcher_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `[{"id": "late"}]`)
	}))
	defer srv.Close()

	res, err := newTestFetcher(3).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "late", res.Records[0].ID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetcher_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher(3).Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, "failed to load data (404)", err.Error())
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetcher_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestFetcher(2).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestLoader_SourcePrecedence(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "near_miss_data.json", `[{"id": "discovered"}]`)
	explicit := writeFile(t, dir, "explicit.json", `[{"id": "explicit"}]`)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"id": "remote"}]`)
	}))
	defer srv.Close()

	tests := []struct {
		name     string
		source   Source
		expected string
	}{
		{"url wins", Source{URL: srv.URL, Path: explicit, Dir: dir}, "remote"},
		{"path over discovery", Source{Path: explicit, Dir: dir}, "explicit"},
		{"discovery", Source{Dir: dir}, "discovered"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLoader(tt.source, newTestFetcher(0), discardLogger(), observability.NewMetricsForTesting())
			res, err := l.Load(context.Background())
			require.NoError(t, err)
			require.Len(t, res.Records, 1)
			assert.Equal(t, tt.expected, res.Records[0].ID)
		})
	}
}

func TestLoader_Metrics(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "near_miss_data.json", sampleJSON)
	metrics := observability.NewMetricsForTesting()

	l := NewLoader(Source{Dir: dir}, nil, discardLogger(), metrics)
	_, err := l.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.RecordsLoaded))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.RecordsDropped))
}

func TestLoader_NoDataset(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	l := NewLoader(Source{Dir: t.TempDir()}, nil, discardLogger(), metrics)

	_, err := l.Load(context.Background())
	require.ErrorIs(t, err, ErrNoDataset)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DatasetLoadErrors))
}
