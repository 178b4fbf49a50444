package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// PeriodKind discriminates instant periods (a single date) from duration
// periods (start and end dates).
type PeriodKind string

const (
	PeriodInstant  PeriodKind = "instant"
	PeriodDuration PeriodKind = "duration"
)

// Period is the reporting period of a context. Instants store the same date
// in Start and End so that period-range filtering and ordering treat both
// kinds uniformly.
type Period struct {
	Kind  PeriodKind `json:"kind"`
	Start time.Time  `json:"start"`
	End   time.Time  `json:"end"`
}

// NewInstant returns an instant period for the given date.
func NewInstant(date time.Time) Period {
	date = date.UTC().Truncate(24 * time.Hour)
	return Period{Kind: PeriodInstant, Start: date, End: date}
}

// NewDuration returns a duration period. Start must not be after end.
func NewDuration(start, end time.Time) (Period, error) {
	start = start.UTC().Truncate(24 * time.Hour)
	end = end.UTC().Truncate(24 * time.Hour)
	if start.After(end) {
		return Period{}, fmt.Errorf("duration period start %s is after end %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return Period{Kind: PeriodDuration, Start: start, End: end}, nil
}

// InRange reports whether the period matches a requested [from, to] range.
// Durations match when they overlap the range; instants match when they fall
// within it. A nil bound is open-ended.
func (p Period) InRange(from, to *time.Time) bool {
	switch p.Kind {
	case PeriodDuration:
		if from != nil && p.End.Before(*from) {
			return false
		}
		if to != nil && p.Start.After(*to) {
			return false
		}
		return true
	default:
		if from != nil && p.Start.Before(*from) {
			return false
		}
		if to != nil && p.Start.After(*to) {
			return false
		}
		return true
	}
}

// Dimensions maps an axis identifier to a member identifier. Stored as JSONB.
type Dimensions map[string]string

func (d Dimensions) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

func (d *Dimensions) Scan(src any) error {
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("dimensions scan: expected []byte, got %T", src)
	}
	return json.Unmarshal(b, d)
}

// Contains reports whether every constraint axis/member pair is present.
func (d Dimensions) Contains(constraints map[string]string) bool {
	for axis, member := range constraints {
		if d[axis] != member {
			return false
		}
	}
	return true
}

// Context is the (entity, period, dimensional qualifiers) tuple a fact is
// reported against. Contexts are deduplicated within a filing: two facts
// sharing entity, period and qualifiers share one Context row. DedupKey is a
// content hash over those fields and carries identity-by-value within the
// owning filing.
type Context struct {
	ID               string     `json:"id" db:"id"`
	FilingID         string     `json:"filing_id" db:"filing_id"`
	EntityIdentifier string     `json:"entity_identifier" db:"entity_identifier"`
	PeriodKind       PeriodKind `json:"period_kind" db:"period_kind"`
	PeriodStart      time.Time  `json:"period_start" db:"period_start"`
	PeriodEnd        time.Time  `json:"period_end" db:"period_end"`
	Dimensions       Dimensions `json:"dimensions" db:"dimensions"`
	DedupKey         string     `json:"-" db:"dedup_key"`
}

// Period reassembles the flattened period columns.
func (c Context) Period() Period {
	return Period{Kind: c.PeriodKind, Start: c.PeriodStart, End: c.PeriodEnd}
}
