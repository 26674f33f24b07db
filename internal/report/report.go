// Package report exports a dashboard as a spreadsheet workbook.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/near-miss-analytics/internal/dashboard"
)

const (
	summarySheet  = "Summary"
	severitySheet = "Severity"
	monthlySheet  = "Monthly"
	yearlySheet   = "Yearly"

	maxSheetName = 31
)

// WriteXLSX writes d as a workbook: a Summary sheet, one sheet per panel,
// then Severity, Monthly and Yearly.
func WriteXLSX(w io.Writer, d dashboard.Dashboard) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // in-memory workbook

	b := &builder{f: f, used: map[string]bool{}}

	if err := f.SetSheetName(f.GetSheetName(0), summarySheet); err != nil {
		return fmt.Errorf("rename default sheet: %w", err)
	}
	b.used[strings.ToLower(summarySheet)] = true

	b.rows(summarySheet, [][]any{
		{"Snapshot", d.SnapshotID},
		{"Source", d.Source},
		{"Generated at", d.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Total incidents", d.Total},
	})

	for _, p := range d.Panels {
		rows := [][]any{{p.Title, "Count"}}
		for _, bk := range p.Buckets {
			rows = append(rows, []any{bk.Name, bk.Value})
		}
		b.sheet(p.Key, rows)
	}

	sev := [][]any{{"Severity", "Count"}}
	for _, bk := range d.Severity {
		sev = append(sev, []any{bk.Name, bk.Value})
	}
	b.sheet(severitySheet, sev)

	monthly := [][]any{{"Month", "Year", "Month number", "Count"}}
	for _, p := range d.Monthly {
		monthly = append(monthly, []any{p.Label, p.Year, p.Month, p.Count})
	}
	b.sheet(monthlySheet, monthly)

	yearly := [][]any{{"Year", "Count"}}
	for _, p := range d.Yearly {
		yearly = append(yearly, []any{p.Year, p.Count})
	}
	b.sheet(yearlySheet, yearly)

	if b.err != nil {
		return b.err
	}
	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// builder accumulates the first error so the sheet layout reads top to
// bottom.
type builder struct {
	f    *excelize.File
	used map[string]bool
	err  error
}

func (b *builder) sheet(name string, rows [][]any) {
	if b.err != nil {
		return
	}
	name = b.uniqueName(name)
	if _, err := b.f.NewSheet(name); err != nil {
		b.err = fmt.Errorf("create sheet %q: %w", name, err)
		return
	}
	b.rows(name, rows)
}

func (b *builder) rows(sheet string, rows [][]any) {
	for i, row := range rows {
		if b.err != nil {
			return
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			b.err = err
			return
		}
		if err := b.f.SetSheetRow(sheet, cell, &row); err != nil {
			b.err = fmt.Errorf("write sheet %q row %d: %w", sheet, i+1, err)
		}
	}
}

// uniqueName makes name a legal, unused sheet name.
func (b *builder) uniqueName(name string) string {
	name = SheetName(name)
	candidate := name
	for n := 2; b.used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		candidate = truncate(name, maxSheetName-len(suffix)) + suffix
	}
	b.used[strings.ToLower(candidate)] = true
	return candidate
}

// SheetName strips characters spreadsheets reject in sheet names and caps
// the length.
func SheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	name = strings.Trim(name, "'")
	if name == "" {
		name = "Sheet"
	}
	return truncate(name, maxSheetName)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
