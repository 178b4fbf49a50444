// Package query resolves declarative fact queries against the store and
// shapes the matches into a deterministic tabular result.
package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Gobusters/ectologger"
	bookerr "github.com/bitworks/factbook/pkg/errors"
	"github.com/bitworks/factbook/pkg/models"
	"github.com/shopspring/decimal"
)

// FactSource is the read side of the fact store.
type FactSource interface {
	Query(ctx context.Context, filter models.FactFilter) ([]models.FactRecord, error)
}

// Params is a declarative fact query: which entities, which concepts, which
// period range, which kind of fact. Empty EntityIDs or Concepts do not
// constrain; nil From/To leave that side of the range open.
type Params struct {
	EntityIDs  []string          `json:"entity_ids,omitempty"`
	Concepts   []string          `json:"concepts,omitempty"`
	From       *time.Time        `json:"from,omitempty"`
	To         *time.Time        `json:"to,omitempty"`
	Kind       models.FactKind   `json:"kind" validate:"required,oneof=numeric textual"`
	Dimensions map[string]string `json:"dimensions,omitempty"`
}

// Cell holds the fact matched for one concept column of a row. NoData marks
// a concept the row's context simply has no fact for.
type Cell struct {
	NoData        bool             `json:"no_data,omitempty"`
	FactID        string           `json:"fact_id,omitempty"`
	Numeric       *decimal.Decimal `json:"numeric,omitempty"`
	Unit          string           `json:"unit,omitempty"`
	Text          *string          `json:"text,omitempty"`
	ReportedEmpty bool             `json:"reported_empty,omitempty"`
}

// Row is one (entity, filing, context) slice of the result with a cell per
// requested concept.
type Row struct {
	Entity  models.Entity  `json:"entity"`
	Filing  models.Filing  `json:"filing"`
	Context models.Context `json:"context"`
	Cells   []Cell         `json:"cells"`
}

// QueryResult is the resolved, ordered result of a query. Concepts is the
// column axis, sorted lexicographically; Cells in every row parallel it. A
// result with no rows is a valid empty result, not an error.
type QueryResult struct {
	Kind     models.FactKind `json:"kind"`
	Concepts []string        `json:"concepts"`
	Rows     []Row           `json:"rows"`
}

// Empty reports whether the query matched nothing.
func (r QueryResult) Empty() bool {
	return len(r.Rows) == 0
}

// Engine resolves queries against a fact source. Queries are read-only and
// never change store state.
type Engine struct {
	source FactSource
	logger ectologger.Logger
}

func NewEngine(source FactSource, logger ectologger.Logger) *Engine {
	return &Engine{
		source: source,
		logger: logger,
	}
}

// RunQuery resolves the query and returns its result. Rows are ordered by
// entity identifier, period, filing import time, context key and filing ID,
// so equal store contents always produce byte-equal results.
func (e *Engine) RunQuery(ctx context.Context, params Params) (*QueryResult, error) {
	if params.Kind != models.FactNumeric && params.Kind != models.FactTextual {
		return nil, &bookerr.UnsupportedKindError{Kind: string(params.Kind)}
	}
	if params.From != nil && params.To != nil && params.From.After(*params.To) {
		return nil, fmt.Errorf("query period range is inverted: from %s is after to %s",
			params.From.Format("2006-01-02"), params.To.Format("2006-01-02"))
	}

	kind := params.Kind
	records, err := e.source.Query(ctx, models.FactFilter{
		EntityIDs:  params.EntityIDs,
		Concepts:   params.Concepts,
		From:       params.From,
		To:         params.To,
		Dimensions: params.Dimensions,
		Kind:       &kind,
	})
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("failed to resolve query")
		return nil, fmt.Errorf("failed to resolve query: %w", err)
	}

	concepts := conceptAxis(params.Concepts, records)
	result := &QueryResult{
		Kind:     params.Kind,
		Concepts: concepts,
		Rows:     buildRows(concepts, records),
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"kind":     params.Kind,
		"concepts": len(concepts),
		"rows":     len(result.Rows),
	}).Info("resolved query")

	return result, nil
}

// conceptAxis returns the sorted column axis: the requested concepts when
// given, otherwise every distinct concept the records carry.
func conceptAxis(requested []string, records []models.FactRecord) []string {
	set := make(map[string]struct{})
	if len(requested) > 0 {
		for _, c := range requested {
			set[c] = struct{}{}
		}
	} else {
		for _, rec := range records {
			set[rec.Fact.Concept] = struct{}{}
		}
	}

	concepts := make([]string, 0, len(set))
	for c := range set {
		concepts = append(concepts, c)
	}
	sort.Strings(concepts)
	return concepts
}

func buildRows(concepts []string, records []models.FactRecord) []Row {
	conceptIndex := make(map[string]int, len(concepts))
	for i, c := range concepts {
		conceptIndex[c] = i
	}

	type rowKey struct {
		entityID  string
		filingID  string
		contextID string
	}

	byKey := make(map[rowKey]*Row)
	var rows []*Row
	for _, rec := range records {
		key := rowKey{rec.Entity.ID, rec.Filing.ID, rec.Context.ID}
		row, ok := byKey[key]
		if !ok {
			row = &Row{
				Entity:  rec.Entity,
				Filing:  rec.Filing,
				Context: rec.Context,
				Cells:   emptyCells(len(concepts)),
			}
			byKey[key] = row
			rows = append(rows, row)
		}

		idx, known := conceptIndex[rec.Fact.Concept]
		if !known {
			continue
		}
		row.Cells[idx] = toCell(rec)
	}

	sort.SliceStable(rows, func(a, b int) bool {
		ra, rb := rows[a], rows[b]
		if ra.Entity.Identifier != rb.Entity.Identifier {
			return ra.Entity.Identifier < rb.Entity.Identifier
		}
		if !ra.Context.PeriodStart.Equal(rb.Context.PeriodStart) {
			return ra.Context.PeriodStart.Before(rb.Context.PeriodStart)
		}
		if !ra.Context.PeriodEnd.Equal(rb.Context.PeriodEnd) {
			return ra.Context.PeriodEnd.Before(rb.Context.PeriodEnd)
		}
		if !ra.Filing.ImportedAt.Equal(rb.Filing.ImportedAt) {
			return ra.Filing.ImportedAt.Before(rb.Filing.ImportedAt)
		}
		if ra.Context.DedupKey != rb.Context.DedupKey {
			return ra.Context.DedupKey < rb.Context.DedupKey
		}
		// Two filings restating the same context share a dedup key and can
		// share an import time; the filing ID settles the order.
		return ra.Filing.ID < rb.Filing.ID
	})

	out := make([]Row, len(rows))
	for i, row := range rows {
		out[i] = *row
	}
	return out
}

func emptyCells(n int) []Cell {
	cells := make([]Cell, n)
	for i := range cells {
		cells[i].NoData = true
	}
	return cells
}

func toCell(rec models.FactRecord) Cell {
	cell := Cell{
		FactID:        rec.Fact.ID,
		Text:          rec.Fact.TextValue,
		ReportedEmpty: rec.Fact.ReportedEmpty,
	}
	if rec.Fact.NumericValue != nil {
		value := *rec.Fact.NumericValue
		cell.Numeric = &value
	}
	if rec.Unit != nil {
		cell.Unit = rec.Unit.Key()
	}
	return cell
}
