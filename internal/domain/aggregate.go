package domain

import (
	"fmt"
	"sort"
	"strconv"
)

// Bucket is one row of a categorical count.
type Bucket struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// MonthlyPoint is one month on the trend line. Label currently mirrors
// YearMonth.
type MonthlyPoint struct {
	YearMonth string `json:"yearMonth"`
	Year      int    `json:"year"`
	Month     int    `json:"month"`
	Count     int    `json:"count"`
	Label     string `json:"label"`
}

// YearlyPoint is one year on the year-over-year chart.
type YearlyPoint struct {
	Year  string `json:"year"`
	Count int    `json:"count"`
}

// counter counts keys and remembers the order they were first seen in.
type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(key string) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

func (c *counter) buckets() []Bucket {
	out := make([]Bucket, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, Bucket{Name: k, Value: c.counts[k]})
	}
	return out
}

// AggregateBy counts records by the text form of field and returns the top
// limit buckets by count, descending. Buckets with equal counts keep
// first-seen order. An unknown field name counts every record as Unknown.
// A limit <= 0 selects DefaultLimit.
func AggregateBy(records []Incident, field string, limit int) []Bucket {
	if limit <= 0 {
		limit = DefaultLimit
	}

	c := newCounter()
	for i := range records {
		key, ok := records[i].Field(field)
		if !ok {
			key = Unknown
		}
		c.add(key)
	}

	out := c.buckets()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SeverityDistribution counts records per severity label in the order labels
// are first encountered.
func SeverityDistribution(records []Incident) []Bucket {
	c := newCounter()
	for i := range records {
		label := records[i].SeverityLabel
		if label == "" {
			label = SeverityLabel(records[i].SeverityLevel)
		}
		if label == "" {
			label = Unknown
		}
		c.add(label)
	}
	return c.buckets()
}

// MonthlyTrend counts records per calendar month, ascending. Records with
// an unknown year or month are skipped. Months outside 1-12 are kept as
// their own points.
func MonthlyTrend(records []Incident) []MonthlyPoint {
	byMonth := make(map[string]*MonthlyPoint)
	for i := range records {
		r := &records[i]
		if r.Year == 0 || r.Month == 0 {
			continue
		}
		key := monthKey(r.Year, r.Month)
		pt, ok := byMonth[key]
		if !ok {
			pt = &MonthlyPoint{YearMonth: key, Year: r.Year, Month: r.Month, Label: key}
			byMonth[key] = pt
		}
		pt.Count++
	}

	out := make([]MonthlyPoint, 0, len(byMonth))
	for _, pt := range byMonth {
		out = append(out, *pt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].YearMonth < out[j].YearMonth })
	return out
}

func monthKey(year, month int) string {
	return fmt.Sprintf("%d-%02d", year, month)
}

// YearlyTrend counts records per year, sorted by the year's text form. The
// sort is chronological only while all years have the same digit count.
// Records with an unknown year are skipped.
func YearlyTrend(records []Incident) []YearlyPoint {
	byYear := make(map[string]int)
	for i := range records {
		if records[i].Year == 0 {
			continue
		}
		byYear[strconv.Itoa(records[i].Year)]++
	}

	out := make([]YearlyPoint, 0, len(byYear))
	for year, count := range byYear {
		out = append(out, YearlyPoint{Year: year, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}
