// Package model defines domain entities shared by the API client, the
// polling watcher, and the CLI.
package model

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Status is the incident lifecycle state. Wire values are fixed by the
// server's schema and must not be translated.
type Status string

const (
	StatusPending    Status = "EN_ATTENTE"
	StatusInProgress Status = "EN_TRAITEMENT"
	StatusDone       Status = "TERMINE"
	StatusClosed     Status = "FERME"
)

// Priority of an incident, lowest to highest.
type Priority string

const (
	PriorityLow      Priority = "FAIBLE"
	PriorityMedium   Priority = "MOYENNE"
	PriorityHigh     Priority = "HAUTE"
	PriorityCritical Priority = "CRITIQUE"
)

// Category of an incident.
type Category string

const (
	CategoryNetwork    Category = "RESEAU"
	CategorySecurity   Category = "SECURITE"
	CategorySoftware   Category = "LOGICIEL"
	CategoryHardware   Category = "MATERIEL"
	CategoryAccess     Category = "ACCES"
	CategoryMonitoring Category = "SURVEVEILLANCE"
	CategoryOther      Category = "AUTRE"
)

// AllStatuses lists every Status in lifecycle order.
var AllStatuses = []Status{StatusPending, StatusInProgress, StatusDone, StatusClosed}

// AllPriorities lists every Priority, lowest first.
var AllPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// AllCategories lists every Category.
var AllCategories = []Category{
	CategoryNetwork, CategorySecurity, CategorySoftware, CategoryHardware,
	CategoryAccess, CategoryMonitoring, CategoryOther,
}

var statusLabels = map[Status]string{
	StatusPending:    "En attente",
	StatusInProgress: "En traitement",
	StatusDone:       "Terminé",
	StatusClosed:     "Fermé",
}

var priorityLabels = map[Priority]string{
	PriorityLow:      "Faible",
	PriorityMedium:   "Moyenne",
	PriorityHigh:     "Haute",
	PriorityCritical: "Critique",
}

var categoryLabels = map[Category]string{
	CategoryNetwork:    "Réseau",
	CategorySecurity:   "Sécurité",
	CategorySoftware:   "Logiciel",
	CategoryHardware:   "Matériel",
	CategoryAccess:     "Accès",
	CategoryMonitoring: "Surveillance",
	CategoryOther:      "Autre",
}

func init() {
	// Label maps must stay total over the All* slices.
	for _, s := range AllStatuses {
		if _, ok := statusLabels[s]; !ok {
			panic(fmt.Sprintf("model: missing label for status %q", s))
		}
	}
	for _, p := range AllPriorities {
		if _, ok := priorityLabels[p]; !ok {
			panic(fmt.Sprintf("model: missing label for priority %q", p))
		}
	}
	for _, c := range AllCategories {
		if _, ok := categoryLabels[c]; !ok {
			panic(fmt.Sprintf("model: missing label for category %q", c))
		}
	}
}

// Valid reports whether s is one of the known wire values.
func (s Status) Valid() bool { _, ok := statusLabels[s]; return ok }

// Label returns the display form, or the raw wire value for unknown input.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

func (p Priority) Valid() bool { _, ok := priorityLabels[p]; return ok }

func (p Priority) Label() string {
	if l, ok := priorityLabels[p]; ok {
		return l
	}
	return string(p)
}

func (c Category) Valid() bool { _, ok := categoryLabels[c]; return ok }

func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// Time decodes the server's timestamps, which come either as RFC3339 or as
// a naive local form without zone (FastAPI default).
type Time struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func (t *Time) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	var lastErr error
	for _, layout := range timeLayouts {
		tt, err := time.Parse(layout, s)
		if err == nil {
			t.Time = tt
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("parse timestamp %q: %w", s, lastErr)
}

func (t Time) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format(time.RFC3339) + `"`), nil
}

// Incident is one reported issue as served by the remote API. The id is
// server-assigned and never invented or rewritten on this side; status is the
// only field the client mutates, through the explicit status-update call.
type Incident struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	Category    Category `json:"category"`
	Status      Status   `json:"status"`
	CreatedAt   Time     `json:"createdAt"`
	UpdatedAt   Time     `json:"updatedAt"`
	UserID      string   `json:"userId"`
}

// ParseID validates an incident identifier as a UUID string.
func ParseID(id string) (string, error) {
	u, err := uuid.FromString(id)
	if err != nil {
		return "", fmt.Errorf("invalid incident id %q: %w", id, err)
	}
	return u.String(), nil
}

// SortByNewest orders incidents most recently created first, in place.
func SortByNewest(list []Incident) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt.Time)
	})
}

// CountByStatus tallies incidents per status.
func CountByStatus(list []Incident) map[Status]int {
	counts := make(map[Status]int, len(AllStatuses))
	for _, inc := range list {
		counts[inc.Status]++
	}
	return counts
}
