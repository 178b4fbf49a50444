// Package storetest provides an in-memory store implementing the repository
// interfaces, for tests that need real import/query semantics without
// Postgres. RunInTx snapshots the maps and restores them when the callback
// fails, matching the all-or-nothing behavior of the SQL transaction.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bitworks/factbook/pkg/models"
	"github.com/google/uuid"
)

// MemStore holds all rows in maps keyed by ID. Safe for concurrent use.
type MemStore struct {
	mu       sync.Mutex
	entities map[string]models.Entity
	filings  map[string]models.Filing
	contexts map[string]models.Context
	units    map[string]models.Unit
	facts    map[string]models.Fact

	// FailCreateFacts makes the next CreateFacts call fail, for exercising
	// rollback behavior.
	FailCreateFacts error
}

func NewMemStore() *MemStore {
	return &MemStore{
		entities: make(map[string]models.Entity),
		filings:  make(map[string]models.Filing),
		contexts: make(map[string]models.Context),
		units:    make(map[string]models.Unit),
		facts:    make(map[string]models.Fact),
	}
}

// RunInTx runs fn and restores the pre-call state when it fails.
func (s *MemStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.restoreLocked(snapshot)
		s.mu.Unlock()
		return err
	}
	return nil
}

type memSnapshot struct {
	entities map[string]models.Entity
	filings  map[string]models.Filing
	contexts map[string]models.Context
	units    map[string]models.Unit
	facts    map[string]models.Fact
}

func (s *MemStore) snapshotLocked() memSnapshot {
	return memSnapshot{
		entities: copyMap(s.entities),
		filings:  copyMap(s.filings),
		contexts: copyMap(s.contexts),
		units:    copyMap(s.units),
		facts:    copyMap(s.facts),
	}
}

func (s *MemStore) restoreLocked(snap memSnapshot) {
	s.entities = snap.entities
	s.filings = snap.filings
	s.contexts = snap.contexts
	s.units = snap.units
	s.facts = snap.facts
}

func copyMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Entity operations.

func (s *MemStore) Create(ctx context.Context, scheme, identifier, name string) (*models.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	entity := models.Entity{
		ID:         uuid.New().String(),
		Scheme:     scheme,
		Identifier: identifier,
		Name:       name,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.entities[entity.ID] = entity
	return &entity, nil
}

func (s *MemStore) GetByID(ctx context.Context, id string) (*models.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entity, ok := s.entities[id]; ok {
		return &entity, nil
	}
	return nil, nil
}

func (s *MemStore) GetByIdentifier(ctx context.Context, scheme, identifier string) (*models.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entity := range s.entities {
		if entity.Scheme == scheme && entity.Identifier == identifier {
			e := entity
			return &e, nil
		}
	}
	return nil, nil
}

func (s *MemStore) UpdateName(ctx context.Context, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entity, ok := s.entities[id]; ok {
		entity.Name = name
		entity.UpdatedAt = time.Now().UTC()
		s.entities[id] = entity
	}
	return nil
}

func (s *MemStore) SetParent(ctx context.Context, id string, parentID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entity, ok := s.entities[id]; ok {
		entity.ParentID = parentID
		entity.UpdatedAt = time.Now().UTC()
		s.entities[id] = entity
	}
	return nil
}

func (s *MemStore) List(ctx context.Context) ([]models.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entities := make([]models.Entity, 0, len(s.entities))
	for _, entity := range s.entities {
		entities = append(entities, entity)
	}
	// Identifier order, matching the SQL repository's List.
	sort.Slice(entities, func(a, b int) bool {
		if entities[a].Identifier != entities[b].Identifier {
			return entities[a].Identifier < entities[b].Identifier
		}
		return entities[a].ID < entities[b].ID
	})
	return entities, nil
}

// Filing operations.

func (s *MemStore) CreateFiling(ctx context.Context, filing models.Filing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.filings[filing.ID] = filing
	return nil
}

func (s *MemStore) GetFilingByID(ctx context.Context, id string) (*models.Filing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if filing, ok := s.filings[id]; ok {
		return &filing, nil
	}
	return nil, nil
}

func (s *MemStore) GetByChecksum(ctx context.Context, entityID, checksum string) (*models.Filing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, filing := range s.filings {
		if filing.EntityID == entityID && filing.SourceChecksum == checksum {
			f := filing
			return &f, nil
		}
	}
	return nil, nil
}

func (s *MemStore) ListFilings(ctx context.Context, entityID *string) ([]models.Filing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	filings := make([]models.Filing, 0, len(s.filings))
	for _, filing := range s.filings {
		if entityID != nil && filing.EntityID != *entityID {
			continue
		}
		filings = append(filings, filing)
	}
	sort.Slice(filings, func(a, b int) bool {
		if !filings[a].ImportedAt.Equal(filings[b].ImportedAt) {
			return filings[a].ImportedAt.After(filings[b].ImportedAt)
		}
		return filings[a].ID < filings[b].ID
	})
	return filings, nil
}

// DeleteFiling cascades to the filing's contexts, units and facts, like the
// schema's foreign keys.
func (s *MemStore) DeleteFiling(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.filings[id]; !ok {
		return false, nil
	}
	delete(s.filings, id)
	for cid, c := range s.contexts {
		if c.FilingID == id {
			delete(s.contexts, cid)
		}
	}
	for uid, u := range s.units {
		if u.FilingID == id {
			delete(s.units, uid)
		}
	}
	for fid, f := range s.facts {
		if f.FilingID == id {
			delete(s.facts, fid)
		}
	}
	return true, nil
}

// Fact operations.

func (s *MemStore) CreateContexts(ctx context.Context, contexts []models.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range contexts {
		s.contexts[c.ID] = c
	}
	return nil
}

func (s *MemStore) CreateUnits(ctx context.Context, units []models.Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range units {
		s.units[u.ID] = u
	}
	return nil
}

func (s *MemStore) CreateFacts(ctx context.Context, facts []models.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCreateFacts != nil {
		err := s.FailCreateFacts
		s.FailCreateFacts = nil
		return err
	}

	for _, f := range facts {
		s.facts[f.ID] = f
	}
	return nil
}

// Query filters facts the way the SQL read path does, joining each fact with
// its context, filing, entity and unit.
func (s *MemStore) Query(ctx context.Context, filter models.FactFilter) ([]models.FactRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entityIDs := toSet(filter.EntityIDs)
	concepts := toSet(filter.Concepts)

	var records []models.FactRecord
	for _, fact := range s.facts {
		if len(entityIDs) > 0 {
			if _, ok := entityIDs[fact.EntityID]; !ok {
				continue
			}
		}
		if len(concepts) > 0 {
			if _, ok := concepts[fact.Concept]; !ok {
				continue
			}
		}
		if filter.Kind != nil && fact.Kind != *filter.Kind {
			continue
		}
		if filter.FilingID != nil && fact.FilingID != *filter.FilingID {
			continue
		}

		factCtx, ok := s.contexts[fact.ContextID]
		if !ok {
			continue
		}
		if !factCtx.Period().InRange(filter.From, filter.To) {
			continue
		}
		if !factCtx.Dimensions.Contains(filter.Dimensions) {
			continue
		}

		filing, ok := s.filings[fact.FilingID]
		if !ok {
			continue
		}
		entity, ok := s.entities[fact.EntityID]
		if !ok {
			continue
		}

		record := models.FactRecord{
			Fact:    fact,
			Context: factCtx,
			Filing:  filing,
			Entity:  entity,
		}
		if fact.UnitID != nil {
			if unit, ok := s.units[*fact.UnitID]; ok {
				record.Unit = &unit
			}
		}
		records = append(records, record)
	}

	sort.Slice(records, func(a, b int) bool {
		return records[a].Fact.ID < records[b].Fact.ID
	})
	return records, nil
}

// CountFacts reports how many facts the store holds, for assertions.
func (s *MemStore) CountFacts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.facts)
}

// CountFilings reports how many filings the store holds, for assertions.
func (s *MemStore) CountFilings() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.filings)
}

// Filings returns a view of the store matching the filing repository method
// names, so the same MemStore can stand in for both the entity and the
// filing repository.
func (s *MemStore) Filings() *FilingView {
	return &FilingView{s: s}
}

type FilingView struct {
	s *MemStore
}

func (v *FilingView) Create(ctx context.Context, filing models.Filing) error {
	return v.s.CreateFiling(ctx, filing)
}

func (v *FilingView) GetByID(ctx context.Context, id string) (*models.Filing, error) {
	return v.s.GetFilingByID(ctx, id)
}

func (v *FilingView) GetByChecksum(ctx context.Context, entityID, checksum string) (*models.Filing, error) {
	return v.s.GetByChecksum(ctx, entityID, checksum)
}

func (v *FilingView) List(ctx context.Context, entityID *string) ([]models.Filing, error) {
	return v.s.ListFilings(ctx, entityID)
}

func (v *FilingView) Delete(ctx context.Context, id string) (bool, error) {
	return v.s.DeleteFiling(ctx, id)
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
