// Package importer is the write path of the fact store. It accepts a parsed
// filing graph, resolves the reporting entity, normalizes contexts and units,
// validates every fact and persists the whole filing atomically.
package importer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	bookerr "github.com/bitworks/factbook/pkg/errors"
	"github.com/bitworks/factbook/pkg/filinginfo"
	"github.com/bitworks/factbook/pkg/fingerprint"
	"github.com/bitworks/factbook/pkg/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntityStore is the slice of the entity repository the importer needs.
type EntityStore interface {
	GetByIdentifier(ctx context.Context, scheme, identifier string) (*models.Entity, error)
	Create(ctx context.Context, scheme, identifier, name string) (*models.Entity, error)
	UpdateName(ctx context.Context, id, name string) error
}

// FilingStore is the slice of the filing repository the importer needs.
type FilingStore interface {
	GetByChecksum(ctx context.Context, entityID, checksum string) (*models.Filing, error)
	Create(ctx context.Context, filing models.Filing) error
}

// FactStore persists the normalized contexts, units and facts of a filing.
type FactStore interface {
	CreateContexts(ctx context.Context, contexts []models.Context) error
	CreateUnits(ctx context.Context, units []models.Unit) error
	CreateFacts(ctx context.Context, facts []models.Fact) error
}

// TxRunner runs a function inside a store transaction. Writes issued with
// the callback context either all land or none do.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Options carries operator-supplied overrides for metadata the document
// itself does not disclose.
type Options struct {
	// EntityName overrides the registrant name derived from the graph.
	EntityName string
	// PeriodLabel overrides the derived period label, e.g. "q32023".
	PeriodLabel string
}

// Importer ingests parsed filings into the store. Imports are serialized:
// only one filing is ingested at a time.
type Importer struct {
	mu       sync.Mutex
	entities EntityStore
	filings  FilingStore
	facts    FactStore
	tx       TxRunner
	logger   ectologger.Logger
	now      func() time.Time
}

func New(entities EntityStore, filings FilingStore, facts FactStore, tx TxRunner, logger ectologger.Logger) *Importer {
	return &Importer{
		entities: entities,
		filings:  filings,
		facts:    facts,
		tx:       tx,
		logger:   logger,
		now:      time.Now,
	}
}

// ImportFiling ingests a parsed filing graph and returns the new filing's ID.
func (i *Importer) ImportFiling(ctx context.Context, graph models.ParsedFiling, source models.Source) (string, error) {
	return i.ImportFilingWithOptions(ctx, graph, source, Options{})
}

// ImportFilingWithOptions ingests a parsed filing graph with operator
// overrides. The import is all-or-nothing: on any error no entity, filing,
// context, unit or fact from this call remains in the store.
func (i *Importer) ImportFilingWithOptions(ctx context.Context, graph models.ParsedFiling, source models.Source, opts Options) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if strings.TrimSpace(graph.Registrant.Identifier) == "" {
		return "", &bookerr.UnresolvedEntityError{
			Scheme:     graph.Registrant.Scheme,
			Identifier: graph.Registrant.Identifier,
		}
	}

	checksum := source.Checksum
	if checksum == "" {
		checksum = fingerprint.Filing(graph)
	}

	info := filinginfo.Derive(graph)
	name := firstNonEmpty(opts.EntityName, info.EntityName, graph.Registrant.Name)
	periodLabel := firstNonEmpty(opts.PeriodLabel, graph.PeriodLabel, info.PeriodLabel)

	// Unattended imports need the document to disclose its own metadata;
	// operator overrides stand in for whatever it omits.
	if !filinginfo.IsImportable(graph) && (name == "" || periodLabel == "") {
		return "", &bookerr.NotImportableError{
			MissingName:   name == "",
			MissingPeriod: periodLabel == "",
		}
	}

	entity, err := i.entities.GetByIdentifier(ctx, graph.Registrant.Scheme, graph.Registrant.Identifier)
	if err != nil {
		return "", fmt.Errorf("failed to resolve entity: %w", err)
	}

	if entity != nil {
		existing, err := i.filings.GetByChecksum(ctx, entity.ID, checksum)
		if err != nil {
			return "", fmt.Errorf("failed to check for duplicate filing: %w", err)
		}
		if existing != nil {
			return "", &bookerr.AlreadyImportedError{EntityID: entity.ID, Checksum: checksum}
		}
	}

	filingID := uuid.New().String()
	contexts, units, facts, err := i.normalize(filingID, graph)
	if err != nil {
		return "", err
	}

	err = i.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if entity == nil {
			entity, err = i.entities.Create(txCtx, graph.Registrant.Scheme, graph.Registrant.Identifier, name)
			if err != nil {
				return fmt.Errorf("failed to create entity: %w", err)
			}
		} else if name != entity.Name && name != graph.Registrant.Identifier {
			// A newer filing knows the registrant's current name.
			if err := i.entities.UpdateName(txCtx, entity.ID, name); err != nil {
				return fmt.Errorf("failed to update entity name: %w", err)
			}
		}

		for idx := range facts {
			facts[idx].EntityID = entity.ID
		}

		filing := models.Filing{
			ID:             filingID,
			EntityID:       entity.ID,
			PeriodLabel:    periodLabel,
			SourceURI:      source.URI,
			SourceChecksum: checksum,
			ImportedAt:     i.now().UTC(),
		}
		if err := i.filings.Create(txCtx, filing); err != nil {
			return err
		}
		if err := i.facts.CreateContexts(txCtx, contexts); err != nil {
			return err
		}
		if err := i.facts.CreateUnits(txCtx, units); err != nil {
			return err
		}
		return i.facts.CreateFacts(txCtx, facts)
	})
	if err != nil {
		return "", err
	}

	i.logger.WithContext(ctx).WithFields(map[string]any{
		"filing_id":    filingID,
		"entity_id":    entity.ID,
		"period_label": periodLabel,
		"facts":        len(facts),
	}).Info("imported filing")

	return filingID, nil
}

// normalize converts a parsed graph into storable rows. Contexts equal by
// value collapse to one row, as do units with the same measure, so facts
// reference shared contexts and units instead of duplicated ones.
func (i *Importer) normalize(filingID string, graph models.ParsedFiling) ([]models.Context, []models.Unit, []models.Fact, error) {
	contextsByKey := make(map[string]*models.Context)
	unitsByKey := make(map[string]*models.Unit)
	seenConceptContext := make(map[string]struct{})

	var contexts []models.Context
	var units []models.Unit
	facts := make([]models.Fact, 0, len(graph.Facts))

	for _, pf := range graph.Facts {
		period, err := toPeriod(pf.Context.Period)
		if err != nil {
			return nil, nil, nil, &bookerr.InvalidFactError{
				Concept:    pf.Concept,
				ContextRef: pf.Context.EntityIdentifier,
				Reason:     err.Error(),
			}
		}

		dedupKey := fingerprint.Context(pf.Context.EntityIdentifier, period, pf.Context.Dimensions)
		mc, ok := contextsByKey[dedupKey]
		if !ok {
			mc = &models.Context{
				ID:               uuid.New().String(),
				FilingID:         filingID,
				EntityIdentifier: pf.Context.EntityIdentifier,
				PeriodKind:       period.Kind,
				PeriodStart:      period.Start,
				PeriodEnd:        period.End,
				Dimensions:       models.Dimensions(pf.Context.Dimensions),
				DedupKey:         dedupKey,
			}
			contextsByKey[dedupKey] = mc
			contexts = append(contexts, *mc)
		}

		conceptContext := pf.Concept + "\x00" + mc.ID
		if _, dup := seenConceptContext[conceptContext]; dup {
			return nil, nil, nil, &bookerr.InvalidFactError{
				Concept:    pf.Concept,
				ContextRef: dedupKey,
				Reason:     "duplicate fact for concept and context within the filing",
			}
		}
		seenConceptContext[conceptContext] = struct{}{}

		fact := models.Fact{
			ID:            uuid.New().String(),
			FilingID:      filingID,
			ContextID:     mc.ID,
			Concept:       pf.Concept,
			Kind:          pf.Kind,
			ReportedEmpty: pf.ReportedEmpty,
		}

		switch pf.Kind {
		case models.FactNumeric:
			if err := i.fillNumeric(&fact, pf, filingID, unitsByKey, &units); err != nil {
				return nil, nil, nil, err
			}
		case models.FactTextual:
			text := pf.Value
			fact.TextValue = &text
		default:
			return nil, nil, nil, &bookerr.InvalidFactError{
				Concept:    pf.Concept,
				ContextRef: dedupKey,
				Reason:     fmt.Sprintf("unknown fact kind %q", pf.Kind),
			}
		}

		if err := fact.Validate(); err != nil {
			return nil, nil, nil, &bookerr.InvalidFactError{
				Concept:    pf.Concept,
				ContextRef: dedupKey,
				Reason:     err.Error(),
			}
		}

		facts = append(facts, fact)
	}

	return contexts, units, facts, nil
}

func (i *Importer) fillNumeric(fact *models.Fact, pf models.ParsedFact, filingID string, unitsByKey map[string]*models.Unit, units *[]models.Unit) error {
	value, err := decimal.NewFromString(strings.TrimSpace(pf.Value))
	if err != nil {
		return &bookerr.InvalidFactError{
			Concept: pf.Concept,
			Reason:  fmt.Sprintf("unparseable numeric value %q", pf.Value),
		}
	}
	fact.NumericValue = &value

	if pf.Unit == nil || pf.Unit.Measure == "" {
		return &bookerr.InvalidFactError{
			Concept: pf.Concept,
			Reason:  "numeric fact without a unit",
		}
	}

	key := unitKey(*pf.Unit)
	mu, ok := unitsByKey[key]
	if !ok {
		mu = &models.Unit{
			ID:       uuid.New().String(),
			FilingID: filingID,
			Measure:  pf.Unit.Measure,
		}
		if pf.Unit.Numerator != "" {
			num := pf.Unit.Numerator
			mu.Numerator = &num
		}
		if pf.Unit.Denominator != "" {
			den := pf.Unit.Denominator
			mu.Denominator = &den
		}
		unitsByKey[key] = mu
		*units = append(*units, *mu)
	}
	fact.UnitID = &mu.ID

	switch decimals := strings.TrimSpace(pf.Decimals); {
	case decimals == "":
	case strings.EqualFold(decimals, models.DecimalsInfinite):
		fact.DecimalsInfinite = true
	default:
		n, err := strconv.Atoi(decimals)
		if err != nil {
			return &bookerr.InvalidFactError{
				Concept: pf.Concept,
				Reason:  fmt.Sprintf("unparseable decimals %q", pf.Decimals),
			}
		}
		fact.Decimals = &n
	}

	return nil
}

func toPeriod(p models.ParsedPeriod) (models.Period, error) {
	switch {
	case p.Instant != nil:
		return models.NewInstant(*p.Instant), nil
	case p.Start != nil && p.End != nil:
		return models.NewDuration(*p.Start, *p.End)
	default:
		return models.Period{}, fmt.Errorf("context period is neither an instant nor a start/end pair")
	}
}

func unitKey(u models.ParsedUnit) string {
	if u.Numerator != "" && u.Denominator != "" {
		return u.Numerator + "/" + u.Denominator
	}
	return u.Measure
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
