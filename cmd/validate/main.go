// Command validate runs data quality checks over a near-miss dataset: record
// shape, identity, severity, calendar fields, per-field coverage, and
// consistency of the aggregate views. It prints a PASS/FAIL line per phase
// and exits non-zero when any phase fails.
//
// Usage:
//
//	go run ./cmd/validate -in near_miss_data.json
//	go run ./cmd/validate -dir ./data -min-coverage 0.8
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/near-miss-analytics/internal/config"
	"github.com/couchcryptid/near-miss-analytics/internal/dataset"
	"github.com/couchcryptid/near-miss-analytics/internal/domain"
)

// Calendar bounds for a plausible incident year.
const (
	minYear = 1900
	maxYear = 2100
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	_ = godotenv.Load()

	in := flag.String("in", os.Getenv("DATA_PATH"), "dataset file (.json or .xlsx)")
	dir := flag.String("dir", ".", "directory searched for a dataset when -in is empty")
	viewsFile := flag.String("views", os.Getenv("VIEWS_FILE"), "YAML views file")
	minCoverage := flag.Float64("min-coverage", 0, "minimum share (0-1) of known values per categorical field")
	flag.Parse()

	os.Exit(run(os.Stdout, *in, *dir, *viewsFile, *minCoverage))
}

func run(out io.Writer, in, dir, viewsFile string, minCoverage float64) int {
	path := in
	if path == "" {
		found, err := dataset.Locate(dir, dataset.DefaultCandidates)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: locate dataset: %v\n", err)
			return 1
		}
		path = found
	}

	res, err := dataset.LoadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load dataset: %v\n", err)
		return 1
	}

	views, err := config.LoadViews(viewsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load views: %v\n", err)
		return 1
	}

	fmt.Fprintln(out, "=== Near-Miss Dataset Validation ===")
	fmt.Fprintf(out, "Source: %s\n\n", res.Source)

	phases := []*phase{
		validateShape(res),
		validateIdentity(res.Records),
		validateSeverity(res.Records),
		validateCalendar(out, res.Records),
		validateCoverage(out, res.Records, minCoverage),
		validateAggregates(res.Records, views),
	}

	return report(out, phases, res)
}

func report(out io.Writer, phases []*phase, res dataset.Result) int {
	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Records: %d normalized, %d dropped\n", len(res.Records), res.Dropped)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// validateShape fails when the dataset held entries that were not objects.
func validateShape(res dataset.Result) *phase {
	p := &phase{name: "Record shape"}
	if len(res.Records) == 0 {
		p.errorf("dataset contains no incident records")
	}
	if res.Dropped > 0 {
		p.errorf("%d entries were not JSON objects and were dropped", res.Dropped)
	}
	return p
}

func validateIdentity(records []domain.Incident) *phase {
	p := &phase{name: "Incident identity"}
	seen := make(map[string]int, len(records))
	for i := range records {
		id := records[i].ID
		if id == domain.Unknown {
			p.errorf("record %d has neither id nor incident_number", i)
			continue
		}
		if first, ok := seen[id]; ok {
			p.errorf("record %d duplicates id %q first seen at record %d", i, id, first)
			continue
		}
		seen[id] = i
	}
	return p
}

func validateSeverity(records []domain.Incident) *phase {
	p := &phase{name: "Severity levels"}
	for i := range records {
		r := &records[i]
		if r.SeverityLevel < 1 || r.SeverityLevel > 4 {
			p.errorf("record %s: severity_level %d outside 1-4", r.ID, r.SeverityLevel)
		}
		if want := domain.SeverityLabel(r.SeverityLevel); r.SeverityLabel != want {
			p.errorf("record %s: severity_label %q, want %q", r.ID, r.SeverityLabel, want)
		}
	}
	return p
}

func validateCalendar(out io.Writer, records []domain.Incident) *phase {
	p := &phase{name: "Calendar fields"}
	undated := 0
	for i := range records {
		r := &records[i]
		if r.Year == 0 || r.Month == 0 {
			undated++
		}
		if r.Year != 0 && (r.Year < minYear || r.Year > maxYear) {
			p.errorf("record %s: implausible year %d", r.ID, r.Year)
		}
		if r.Month != 0 && (r.Month < 1 || r.Month > 12) {
			p.errorf("record %s: month %d outside 1-12", r.ID, r.Month)
		}
	}
	if undated > 0 {
		fmt.Fprintf(out, "  Note: %d record(s) lack a year or month and are left out of the monthly trend\n", undated)
	}
	return p
}

// validateCoverage prints the share of known values per categorical field
// and fails fields below minCoverage.
func validateCoverage(out io.Writer, records []domain.Incident, minCoverage float64) *phase {
	p := &phase{name: "Field coverage"}
	if len(records) == 0 {
		return p
	}

	fmt.Fprintln(out, "Field coverage:")
	for _, field := range domain.CategoricalFields {
		known := 0
		for i := range records {
			if v, _ := records[i].Field(field); v != domain.Unknown {
				known++
			}
		}
		share := float64(known) / float64(len(records))
		fmt.Fprintf(out, "  %-30s %6.1f%%\n", field, share*100)
		if share < minCoverage {
			p.errorf("%s coverage %.1f%% below %.1f%%", field, share*100, minCoverage*100)
		}
	}
	return p
}

// validateAggregates checks that every view accounts for every record it
// should.
func validateAggregates(records []domain.Incident, views []config.View) *phase {
	p := &phase{name: "Aggregate consistency"}
	total := len(records)

	for _, v := range views {
		sum := 0
		for _, b := range domain.AggregateBy(records, v.Field, total+1) {
			sum += b.Value
		}
		if sum != total {
			p.errorf("view %s: buckets sum to %d, want %d", v.Key, sum, total)
		}
	}

	sevSum := 0
	for _, b := range domain.SeverityDistribution(records) {
		sevSum += b.Value
	}
	if sevSum != total {
		p.errorf("severity distribution sums to %d, want %d", sevSum, total)
	}

	monthly := 0
	for _, pt := range domain.MonthlyTrend(records) {
		monthly += pt.Count
		if pt.Label != pt.YearMonth {
			p.errorf("month %s: label %q differs from key", pt.YearMonth, pt.Label)
		}
	}
	yearly := 0
	for _, pt := range domain.YearlyTrend(records) {
		yearly += pt.Count
	}
	if monthly > yearly || yearly > total {
		p.errorf("trend totals out of order: monthly %d, yearly %d, records %d", monthly, yearly, total)
	}
	return p
}
