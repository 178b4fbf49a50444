// Package projector turns numeric query results into chart-ready series:
// one series per entity and concept across a shared period axis, split per
// unit when a series mixes incompatible units.
package projector

import (
	"sort"
	"time"

	bookerr "github.com/bitworks/factbook/pkg/errors"
	"github.com/bitworks/factbook/pkg/models"
	"github.com/bitworks/factbook/pkg/query"
	"github.com/shopspring/decimal"
)

// ChartKind selects the intended rendering of a projected series.
type ChartKind string

const (
	ChartBar    ChartKind = "bar"
	ChartLine   ChartKind = "line"
	ChartDotted ChartKind = "dotted"
)

func (k ChartKind) valid() bool {
	switch k {
	case ChartBar, ChartLine, ChartDotted:
		return true
	}
	return false
}

// Point is one position on the period axis. A nil Value is an explicit gap:
// the entity reported nothing for that period, and renderers must show the
// discontinuity rather than interpolate or zero-fill.
type Point struct {
	Period models.Period    `json:"period"`
	Value  *decimal.Decimal `json:"value,omitempty"`
}

// Series is the plottable projection of one (entity, concept) pair in one
// unit. MixedUnits is set on every series of a pair whose facts did not
// agree on a unit, so callers know the split was forced.
type Series struct {
	EntityID   string    `json:"entity_id"`
	EntityName string    `json:"entity_name"`
	Concept    string    `json:"concept"`
	Unit       string    `json:"unit"`
	MixedUnits bool      `json:"mixed_units,omitempty"`
	ChartKind  ChartKind `json:"chart_kind"`
	Points     []Point   `json:"points"`
}

// Project shapes a numeric query result into series for the given chart
// kind. Textual results are refused: text routes to a viewer, not a chart.
func Project(result query.QueryResult, kind ChartKind) ([]Series, error) {
	if !kind.valid() {
		return nil, &bookerr.UnsupportedKindError{Kind: string(kind)}
	}
	if result.Kind != models.FactNumeric {
		return nil, &bookerr.UnsupportedKindError{Kind: string(result.Kind)}
	}

	axis := periodAxis(result)
	groups := groupFacts(result)

	keys := make([]groupKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(a, b int) bool {
		if keys[a].entityID != keys[b].entityID {
			return keys[a].entityID < keys[b].entityID
		}
		if keys[a].concept != keys[b].concept {
			return keys[a].concept < keys[b].concept
		}
		return keys[a].unit < keys[b].unit
	})

	mixed := mixedUnitPairs(keys)

	series := make([]Series, 0, len(keys))
	for _, key := range keys {
		group := groups[key]
		points := make([]Point, len(axis))
		for i, period := range axis {
			points[i] = Point{Period: period}
			if obs, ok := group.values[periodID(period)]; ok {
				value := obs.value
				points[i].Value = &value
			}
		}
		series = append(series, Series{
			EntityID:   key.entityID,
			EntityName: group.entityName,
			Concept:    key.concept,
			Unit:       key.unit,
			MixedUnits: mixed[pairKey{key.entityID, key.concept}],
			ChartKind:  kind,
			Points:     points,
		})
	}

	return series, nil
}

type groupKey struct {
	entityID string
	concept  string
	unit     string
}

type pairKey struct {
	entityID string
	concept  string
}

// observation keeps the winning value for one period along with the import
// time that decided it. When two filings report the same (entity, concept,
// period, unit), the most recently imported filing wins.
type observation struct {
	value      decimal.Decimal
	importedAt time.Time
}

type group struct {
	entityName string
	values     map[string]observation
}

func groupFacts(result query.QueryResult) map[groupKey]*group {
	groups := make(map[groupKey]*group)
	for _, row := range result.Rows {
		period := row.Context.Period()
		for i, cell := range row.Cells {
			if cell.NoData || cell.Numeric == nil {
				continue
			}
			key := groupKey{row.Entity.ID, result.Concepts[i], cell.Unit}
			g, ok := groups[key]
			if !ok {
				g = &group{
					entityName: row.Entity.Name,
					values:     make(map[string]observation),
				}
				groups[key] = g
			}

			pid := periodID(period)
			if prev, exists := g.values[pid]; exists && !row.Filing.ImportedAt.After(prev.importedAt) {
				continue
			}
			g.values[pid] = observation{value: *cell.Numeric, importedAt: row.Filing.ImportedAt}
		}
	}
	return groups
}

// periodAxis returns the distinct periods of the result in ascending order.
// All series of one projection share this axis so their points line up.
func periodAxis(result query.QueryResult) []models.Period {
	seen := make(map[string]models.Period)
	for _, row := range result.Rows {
		period := row.Context.Period()
		seen[periodID(period)] = period
	}

	axis := make([]models.Period, 0, len(seen))
	for _, period := range seen {
		axis = append(axis, period)
	}
	sort.Slice(axis, func(a, b int) bool {
		if !axis[a].Start.Equal(axis[b].Start) {
			return axis[a].Start.Before(axis[b].Start)
		}
		if !axis[a].End.Equal(axis[b].End) {
			return axis[a].End.Before(axis[b].End)
		}
		return axis[a].Kind < axis[b].Kind
	})
	return axis
}

func mixedUnitPairs(keys []groupKey) map[pairKey]bool {
	unitsPerPair := make(map[pairKey]map[string]struct{})
	for _, key := range keys {
		pair := pairKey{key.entityID, key.concept}
		if unitsPerPair[pair] == nil {
			unitsPerPair[pair] = make(map[string]struct{})
		}
		unitsPerPair[pair][key.unit] = struct{}{}
	}

	mixed := make(map[pairKey]bool, len(unitsPerPair))
	for pair, units := range unitsPerPair {
		mixed[pair] = len(units) > 1
	}
	return mixed
}

func periodID(p models.Period) string {
	return string(p.Kind) + "|" + p.Start.Format("2006-01-02") + "|" + p.End.Format("2006-01-02")
}
