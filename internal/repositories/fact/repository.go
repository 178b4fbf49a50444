package fact

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/bitworks/factbook/internal/database"
	"github.com/bitworks/factbook/internal/tracing"
	"github.com/bitworks/factbook/pkg/models"
	"github.com/shopspring/decimal"
)

// FactRepository persists the normalized fact graph of a filing and serves
// filtered reads joining facts back to their contexts, filings and entities.
type FactRepository interface {
	CreateContexts(ctx context.Context, contexts []models.Context) error
	CreateUnits(ctx context.Context, units []models.Unit) error
	CreateFacts(ctx context.Context, facts []models.Fact) error
	Query(ctx context.Context, filter models.FactFilter) ([]models.FactRecord, error)
}

// Repository implements FactRepository over Postgres.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// CreateContexts batch inserts contexts. Called inside the import transaction.
func (r *Repository) CreateContexts(ctx context.Context, contexts []models.Context) error {
	ctx, span := tracing.StartSpan(ctx, "FactRepository.CreateContexts")
	defer span.End()

	if len(contexts) == 0 {
		return nil
	}

	sb := database.NewInsertBuilder()
	sb.InsertInto("contexts")
	sb.Cols("id", "filing_id", "entity_identifier", "period_kind", "period_start", "period_end", "dimensions", "dedup_key")
	for _, c := range contexts {
		sb.Values(c.ID, c.FilingID, c.EntityIdentifier, c.PeriodKind, c.PeriodStart, c.PeriodEnd, c.Dimensions, c.DedupKey)
	}

	query, args := sb.Build()

	exec := database.ExecutorFromContext(ctx, r.db)
	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to create contexts")
		return fmt.Errorf("failed to create contexts: %w", err)
	}

	return nil
}

// CreateUnits batch inserts units. Called inside the import transaction.
func (r *Repository) CreateUnits(ctx context.Context, units []models.Unit) error {
	ctx, span := tracing.StartSpan(ctx, "FactRepository.CreateUnits")
	defer span.End()

	if len(units) == 0 {
		return nil
	}

	sb := database.NewInsertBuilder()
	sb.InsertInto("units")
	sb.Cols("id", "filing_id", "measure", "numerator", "denominator")
	for _, u := range units {
		sb.Values(u.ID, u.FilingID, u.Measure, u.Numerator, u.Denominator)
	}

	query, args := sb.Build()

	exec := database.ExecutorFromContext(ctx, r.db)
	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to create units")
		return fmt.Errorf("failed to create units: %w", err)
	}

	return nil
}

// CreateFacts batch inserts facts. Called inside the import transaction.
func (r *Repository) CreateFacts(ctx context.Context, facts []models.Fact) error {
	ctx, span := tracing.StartSpan(ctx, "FactRepository.CreateFacts")
	defer span.End()

	if len(facts) == 0 {
		return nil
	}

	sb := database.NewInsertBuilder()
	sb.InsertInto("facts")
	sb.Cols("id", "filing_id", "entity_id", "context_id", "concept", "kind",
		"numeric_value", "unit_id", "decimals", "decimals_infinite", "text_value", "reported_empty")
	for _, f := range facts {
		var numeric decimal.NullDecimal
		if f.NumericValue != nil {
			numeric = decimal.NullDecimal{Decimal: *f.NumericValue, Valid: true}
		}
		sb.Values(f.ID, f.FilingID, f.EntityID, f.ContextID, f.Concept, f.Kind,
			numeric, f.UnitID, f.Decimals, f.DecimalsInfinite, f.TextValue, f.ReportedEmpty)
	}

	query, args := sb.Build()

	exec := database.ExecutorFromContext(ctx, r.db)
	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to create facts")
		return fmt.Errorf("failed to create facts: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"count":     len(facts),
		"filing_id": facts[0].FilingID,
	}).Info("created facts")

	return nil
}

// factRow is the flattened join row behind Query. Column aliases keep the
// four joined tables from colliding in sqlx scanning.
type factRow struct {
	FactID           string              `db:"fact_id"`
	FilingID         string              `db:"filing_id"`
	EntityID         string              `db:"entity_id"`
	ContextID        string              `db:"context_id"`
	Concept          string              `db:"concept"`
	Kind             models.FactKind     `db:"kind"`
	NumericValue     decimal.NullDecimal `db:"numeric_value"`
	UnitID           *string             `db:"unit_id"`
	Decimals         *int                `db:"decimals"`
	DecimalsInfinite bool                `db:"decimals_infinite"`
	TextValue        *string             `db:"text_value"`
	ReportedEmpty    bool                `db:"reported_empty"`

	CtxEntityIdentifier string            `db:"ctx_entity_identifier"`
	CtxPeriodKind       models.PeriodKind `db:"ctx_period_kind"`
	CtxPeriodStart      time.Time         `db:"ctx_period_start"`
	CtxPeriodEnd        time.Time         `db:"ctx_period_end"`
	CtxDimensions       models.Dimensions `db:"ctx_dimensions"`
	CtxDedupKey         string            `db:"ctx_dedup_key"`

	FilingEntityID       string    `db:"filing_entity_id"`
	FilingPeriodLabel    string    `db:"filing_period_label"`
	FilingSourceURI      string    `db:"filing_source_uri"`
	FilingSourceChecksum string    `db:"filing_source_checksum"`
	FilingImportedAt     time.Time `db:"filing_imported_at"`

	EntityScheme     string    `db:"entity_scheme"`
	EntityIdentifier string    `db:"entity_identifier"`
	EntityName       string    `db:"entity_name"`
	EntityParentID   *string   `db:"entity_parent_id"`
	EntityCreatedAt  time.Time `db:"entity_created_at"`
	EntityUpdatedAt  time.Time `db:"entity_updated_at"`

	UnitMeasure     *string `db:"unit_measure"`
	UnitNumerator   *string `db:"unit_numerator"`
	UnitDenominator *string `db:"unit_denominator"`
}

func (row factRow) toRecord() models.FactRecord {
	record := models.FactRecord{
		Fact: models.Fact{
			ID:               row.FactID,
			FilingID:         row.FilingID,
			EntityID:         row.EntityID,
			ContextID:        row.ContextID,
			Concept:          row.Concept,
			Kind:             row.Kind,
			UnitID:           row.UnitID,
			Decimals:         row.Decimals,
			DecimalsInfinite: row.DecimalsInfinite,
			TextValue:        row.TextValue,
			ReportedEmpty:    row.ReportedEmpty,
		},
		Context: models.Context{
			ID:               row.ContextID,
			FilingID:         row.FilingID,
			EntityIdentifier: row.CtxEntityIdentifier,
			PeriodKind:       row.CtxPeriodKind,
			PeriodStart:      row.CtxPeriodStart,
			PeriodEnd:        row.CtxPeriodEnd,
			Dimensions:       row.CtxDimensions,
			DedupKey:         row.CtxDedupKey,
		},
		Filing: models.Filing{
			ID:             row.FilingID,
			EntityID:       row.FilingEntityID,
			PeriodLabel:    row.FilingPeriodLabel,
			SourceURI:      row.FilingSourceURI,
			SourceChecksum: row.FilingSourceChecksum,
			ImportedAt:     row.FilingImportedAt,
		},
		Entity: models.Entity{
			ID:         row.EntityID,
			Scheme:     row.EntityScheme,
			Identifier: row.EntityIdentifier,
			Name:       row.EntityName,
			ParentID:   row.EntityParentID,
			CreatedAt:  row.EntityCreatedAt,
			UpdatedAt:  row.EntityUpdatedAt,
		},
	}

	if row.NumericValue.Valid {
		value := row.NumericValue.Decimal
		record.Fact.NumericValue = &value
	}

	if row.UnitID != nil && row.UnitMeasure != nil {
		record.Unit = &models.Unit{
			ID:          *row.UnitID,
			FilingID:    row.FilingID,
			Measure:     *row.UnitMeasure,
			Numerator:   row.UnitNumerator,
			Denominator: row.UnitDenominator,
		}
	}

	return record
}

var queryColumns = []string{
	"f.id AS fact_id",
	"f.filing_id AS filing_id",
	"f.entity_id AS entity_id",
	"f.context_id AS context_id",
	"f.concept AS concept",
	"f.kind AS kind",
	"f.numeric_value AS numeric_value",
	"f.unit_id AS unit_id",
	"f.decimals AS decimals",
	"f.decimals_infinite AS decimals_infinite",
	"f.text_value AS text_value",
	"f.reported_empty AS reported_empty",
	"c.entity_identifier AS ctx_entity_identifier",
	"c.period_kind AS ctx_period_kind",
	"c.period_start AS ctx_period_start",
	"c.period_end AS ctx_period_end",
	"c.dimensions AS ctx_dimensions",
	"c.dedup_key AS ctx_dedup_key",
	"fl.entity_id AS filing_entity_id",
	"fl.period_label AS filing_period_label",
	"fl.source_uri AS filing_source_uri",
	"fl.source_checksum AS filing_source_checksum",
	"fl.imported_at AS filing_imported_at",
	"e.scheme AS entity_scheme",
	"e.identifier AS entity_identifier",
	"e.name AS entity_name",
	"e.parent_id AS entity_parent_id",
	"e.created_at AS entity_created_at",
	"e.updated_at AS entity_updated_at",
	"u.measure AS unit_measure",
	"u.numerator AS unit_numerator",
	"u.denominator AS unit_denominator",
}

// Query returns all facts matching the filter, each joined with its context,
// filing, entity and unit. Ordering is left to the query engine.
func (r *Repository) Query(ctx context.Context, filter models.FactFilter) ([]models.FactRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "FactRepository.Query")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(queryColumns...)
	sb.From("facts f")
	sb.Join("contexts c", "c.id = f.context_id")
	sb.Join("filings fl", "fl.id = f.filing_id")
	sb.Join("entities e", "e.id = f.entity_id")
	sb.JoinWithOption(database.LeftJoin, "units u", "u.id = f.unit_id")

	if len(filter.EntityIDs) > 0 {
		sb.Where(sb.In("f.entity_id", toAnySlice(filter.EntityIDs)...))
	}
	if len(filter.Concepts) > 0 {
		sb.Where(sb.In("f.concept", toAnySlice(filter.Concepts)...))
	}
	if filter.Kind != nil {
		sb.Where(sb.Equal("f.kind", *filter.Kind))
	}
	if filter.FilingID != nil {
		sb.Where(sb.Equal("f.filing_id", *filter.FilingID))
	}
	if len(filter.Dimensions) > 0 {
		// JSONB containment: every requested dimension pair must appear.
		sb.Where("c.dimensions @> " + sb.Var(models.Dimensions(filter.Dimensions)))
	}

	// Period filtering: an instant context matches when its point sits inside
	// the range; a duration context matches on any overlap. Open ends of the
	// requested range skip that bound.
	if filter.From != nil && filter.To != nil {
		sb.Where(sb.Or(
			sb.And(
				sb.Equal("c.period_kind", models.PeriodInstant),
				sb.GreaterEqualThan("c.period_start", *filter.From),
				sb.LessEqualThan("c.period_start", *filter.To),
			),
			sb.And(
				sb.Equal("c.period_kind", models.PeriodDuration),
				sb.LessEqualThan("c.period_start", *filter.To),
				sb.GreaterEqualThan("c.period_end", *filter.From),
			),
		))
	} else if filter.From != nil {
		sb.Where(sb.GreaterEqualThan("c.period_end", *filter.From))
	} else if filter.To != nil {
		sb.Where(sb.LessEqualThan("c.period_start", *filter.To))
	}

	query, args := sb.Build()

	var rows []factRow
	exec := database.ExecutorFromContext(ctx, r.db)
	if err := exec.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to query facts")
		return nil, fmt.Errorf("failed to query facts: %w", err)
	}

	records := make([]models.FactRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toRecord())
	}

	return records, nil
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
