package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/near-miss-analytics/internal/domain"
)

// View describes one categorical dashboard panel: count incidents by Field
// and keep the top Limit values.
type View struct {
	Key   string `yaml:"key"`
	Title string `yaml:"title"`
	Field string `yaml:"field"`
	Limit int    `yaml:"limit"`
}

type viewsFile struct {
	Views []View `yaml:"views"`
}

// DefaultViews returns the panels shown when no views file is configured.
func DefaultViews() []View {
	return []View{
		{Key: "primary_category", Title: "By primary category", Field: "primary_category", Limit: 12},
		{Key: "region", Title: "By region", Field: "region", Limit: 10},
		{Key: "action_cause", Title: "By action cause", Field: "action_cause", Limit: 10},
		{Key: "behavior_type", Title: "Condition vs behavior", Field: "behavior_type", Limit: 6},
	}
}

// LoadViews reads panel definitions from a YAML file. An empty path returns
// DefaultViews. A view without a key takes its field name; a view without a
// limit keeps the aggregation default.
func LoadViews(path string) ([]View, error) {
	if path == "" {
		return DefaultViews(), nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read views file: %w", err)
	}
	var f viewsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse views file: %w", err)
	}
	if len(f.Views) == 0 {
		return nil, errors.New("views file defines no views")
	}

	seen := make(map[string]bool, len(f.Views))
	for i := range f.Views {
		v := &f.Views[i]
		if v.Field == "" {
			return nil, fmt.Errorf("view %d: field is required", i)
		}
		if !slices.Contains(domain.Fields, v.Field) {
			return nil, fmt.Errorf("view %d: unknown incident field %q", i, v.Field)
		}
		if v.Key == "" {
			v.Key = v.Field
		}
		if v.Title == "" {
			v.Title = v.Key
		}
		if v.Limit < 0 {
			return nil, fmt.Errorf("view %q: limit must not be negative", v.Key)
		}
		if seen[v.Key] {
			return nil, fmt.Errorf("view %q: duplicate key", v.Key)
		}
		seen[v.Key] = true
	}
	return f.Views, nil
}
