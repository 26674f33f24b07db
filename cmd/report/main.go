// Command report loads a near-miss dataset and writes the dashboard views to
// a spreadsheet or JSON file.
//
// Usage:
//
//	go run ./cmd/report -in near_miss_data.json -out dashboard.xlsx
//	go run ./cmd/report -dir ./data -out -     # JSON to stdout
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/near-miss-analytics/internal/config"
	"github.com/couchcryptid/near-miss-analytics/internal/dashboard"
	"github.com/couchcryptid/near-miss-analytics/internal/dataset"
	"github.com/couchcryptid/near-miss-analytics/internal/report"
	"github.com/couchcryptid/near-miss-analytics/internal/store"
)

func main() {
	_ = godotenv.Load()

	in := flag.String("in", os.Getenv("DATA_PATH"), "dataset file (.json or .xlsx)")
	dir := flag.String("dir", ".", "directory searched for a dataset when -in is empty")
	out := flag.String("out", "dashboard.xlsx", "output file; .xlsx writes a workbook, anything else JSON, - for stdout")
	viewsFile := flag.String("views", os.Getenv("VIEWS_FILE"), "YAML views file")
	flag.Parse()

	if err := run(*in, *dir, *out, *viewsFile); err != nil {
		fmt.Fprintf(os.Stderr, "report: %v\n", err)
		os.Exit(1)
	}
}

func run(in, dir, out, viewsFile string) error {
	path := in
	if path == "" {
		found, err := dataset.Locate(dir, dataset.DefaultCandidates)
		if err != nil {
			return err
		}
		path = found
	}

	res, err := dataset.LoadFile(path)
	if err != nil {
		return err
	}

	views, err := config.LoadViews(viewsFile)
	if err != nil {
		return err
	}

	st := store.New(nil)
	d := dashboard.NewBuilder(views, nil).Build(st.Replace(res.Records, res.Source, res.Dropped))

	if out == "-" {
		return writeJSON(os.Stdout, d)
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()

	if ext := strings.ToLower(filepath.Ext(out)); ext == ".xlsx" {
		err = report.WriteXLSX(f, d)
	} else {
		err = writeJSON(f, d)
	}
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	fmt.Fprintf(os.Stderr, "wrote %d incidents (%d dropped) from %s to %s\n", d.Total, res.Dropped, res.Source, out)
	return nil
}

func writeJSON(w io.Writer, d dashboard.Dashboard) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}
