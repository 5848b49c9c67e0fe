// Package filter narrows an in-memory incident collection for the list view:
// per-field equality selectors combined with a free-text search over every
// field.
package filter

import (
	"strings"

	"github.com/ngabriel/incident-watch/internal/model"
)

// Filter combines the selectors. Zero values mean "all": an empty Status
// matches every status, an empty Search matches everything.
type Filter struct {
	Search   string
	Status   model.Status
	Priority model.Priority
	Category model.Category
}

// Predicate matches one incident.
type Predicate func(model.Incident) bool

// And combines predicates; all must match.
func And(preds ...Predicate) Predicate {
	return func(inc model.Incident) bool {
		for _, p := range preds {
			if !p(inc) {
				return false
			}
		}
		return true
	}
}

// ByStatus matches incidents with the given status; empty matches all.
func ByStatus(s model.Status) Predicate {
	return func(inc model.Incident) bool { return s == "" || inc.Status == s }
}

// ByPriority matches incidents with the given priority; empty matches all.
func ByPriority(p model.Priority) Predicate {
	return func(inc model.Incident) bool { return p == "" || inc.Priority == p }
}

// ByCategory matches incidents with the given category; empty matches all.
func ByCategory(c model.Category) Predicate {
	return func(inc model.Incident) bool { return c == "" || inc.Category == c }
}

// BySearch matches when any field's textual form contains term,
// case-insensitively. Non-string fields (timestamps) take part through their
// textual form, so a search for "2024" hits creation dates too.
func BySearch(term string) Predicate {
	term = strings.ToLower(term)
	return func(inc model.Incident) bool {
		if term == "" {
			return true
		}
		for _, v := range fieldTexts(inc) {
			if strings.Contains(strings.ToLower(v), term) {
				return true
			}
		}
		return false
	}
}

func fieldTexts(inc model.Incident) []string {
	return []string{
		inc.ID,
		inc.Title,
		inc.Description,
		string(inc.Priority),
		string(inc.Category),
		string(inc.Status),
		inc.CreatedAt.Format("2006-01-02T15:04:05"),
		inc.UpdatedAt.Format("2006-01-02T15:04:05"),
		inc.UserID,
	}
}

// Match reports whether inc passes every selector of f.
func (f Filter) Match(inc model.Incident) bool {
	return And(
		BySearch(f.Search),
		ByStatus(f.Status),
		ByPriority(f.Priority),
		ByCategory(f.Category),
	)(inc)
}

// Apply returns the matching subset, preserving input order. A nil result is
// never returned: an empty match is an empty, reportable collection.
func (f Filter) Apply(list []model.Incident) []model.Incident {
	out := make([]model.Incident, 0, len(list))
	for _, inc := range list {
		if f.Match(inc) {
			out = append(out, inc)
		}
	}
	return out
}
