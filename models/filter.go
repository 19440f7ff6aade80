package models

import (
	"sort"
	"strings"
	"time"
)

const (
	FilterAll    = "all"
	FilterActive = "active"
	FilterPast   = "past"
	FilterDraft  = "draft"

	SortByDate      = "date"
	SortByCreatedAt = "createdAt"
	SortByName      = "name"

	SortAsc  = "asc"
	SortDesc = "desc"
)

// EventFilter narrows and orders an owner's event set. It runs in memory so
// the same filter can be re-applied to every live push.
type EventFilter struct {
	Status    string `form:"status" json:"status"`
	Search    string `form:"search" json:"search"`
	SortBy    string `form:"sortBy" json:"sortBy"`
	SortOrder string `form:"sortOrder" json:"sortOrder"`
}

// Normalize replaces unknown values with defaults.
func (f EventFilter) Normalize() EventFilter {
	switch f.Status {
	case FilterActive, FilterPast, FilterDraft:
	default:
		f.Status = FilterAll
	}
	switch f.SortBy {
	case SortByDate, SortByName, SortByCreatedAt:
	default:
		f.SortBy = SortByCreatedAt
	}
	f.SortOrder = strings.ToLower(f.SortOrder)
	if f.SortOrder != SortAsc {
		f.SortOrder = SortDesc
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

func (f EventFilter) matches(e *Event, now time.Time) bool {
	switch f.Status {
	case FilterActive:
		d, ok := e.ParsedDate()
		if !ok || !d.After(now) || e.Visibility != VisibilityPublic {
			return false
		}
	case FilterPast:
		d, ok := e.ParsedDate()
		if !ok || !d.Before(now) {
			return false
		}
	case FilterDraft:
		if e.Visibility != VisibilityPrivate {
			return false
		}
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(e.Name), q) &&
			!strings.Contains(strings.ToLower(e.Description), q) {
			return false
		}
	}
	return true
}

// ApplyEventFilter returns a new slice; the input is left untouched.
func ApplyEventFilter(events []Event, f EventFilter, now time.Time) []Event {
	f = f.Normalize()

	out := make([]Event, 0, len(events))
	for i := range events {
		if f.matches(&events[i], now) {
			out = append(out, events[i])
		}
	}

	less := func(a, b *Event) bool {
		switch f.SortBy {
		case SortByDate:
			return a.Date < b.Date
		case SortByName:
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if f.SortOrder == SortAsc {
			return less(&out[i], &out[j])
		}
		return less(&out[j], &out[i])
	})
	return out
}
