package directory

import (
	"sort"
	"strings"
)

// Query narrows a listing. Empty fields match everything.
type Query struct {
	Search string `json:"q,omitempty"`
	City   string `json:"city,omitempty"`
	State  string `json:"state,omitempty"`
}

// Filter returns the schools matching q in their original order. Search is a
// case-insensitive substring match on name, city or state; City and State
// must match exactly.
func Filter(schools []School, q Query) []School {
	term := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]School, 0, len(schools))
	for _, s := range schools {
		if term != "" &&
			!strings.Contains(strings.ToLower(s.Name), term) &&
			!strings.Contains(strings.ToLower(s.City), term) &&
			!strings.Contains(strings.ToLower(s.State), term) {
			continue
		}
		if q.City != "" && s.City != q.City {
			continue
		}
		if q.State != "" && s.State != q.State {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Facets returns the distinct cities and states, sorted.
func Facets(schools []School) (cities, states []string) {
	return distinct(schools, func(s School) string { return s.City }),
		distinct(schools, func(s School) string { return s.State })
}

func distinct(schools []School, field func(School) string) []string {
	seen := make(map[string]struct{}, len(schools))
	out := make([]string, 0)
	for _, s := range schools {
		v := field(s)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// sortByName orders schools the way List must return them.
func sortByName(schools []School) {
	sort.SliceStable(schools, func(i, j int) bool {
		a, b := strings.ToLower(schools[i].Name), strings.ToLower(schools[j].Name)
		if a != b {
			return a < b
		}
		return schools[i].ID < schools[j].ID
	})
}
