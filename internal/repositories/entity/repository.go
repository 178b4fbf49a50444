package entity

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/bitworks/factbook/internal/database"
	"github.com/bitworks/factbook/internal/tracing"
	"github.com/bitworks/factbook/pkg/models"
	"github.com/google/uuid"
)

// EntityRepository defines the store operations on reporting entities.
type EntityRepository interface {
	Create(ctx context.Context, scheme, identifier, name string) (*models.Entity, error)
	GetByID(ctx context.Context, id string) (*models.Entity, error)
	GetByIdentifier(ctx context.Context, scheme, identifier string) (*models.Entity, error)
	UpdateName(ctx context.Context, id, name string) error
	SetParent(ctx context.Context, id string, parentID *string) error
	List(ctx context.Context) ([]models.Entity, error)
}

// Repository implements EntityRepository over Postgres.
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

const tableName = "entities"

var columns = []string{"id", "scheme", "identifier", "name", "parent_id", "created_at", "updated_at"}

// Create inserts a new entity. Entities are immutable once created apart
// from their display name and tree position.
func (r *Repository) Create(ctx context.Context, scheme, identifier, name string) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.Create")
	defer span.End()

	now := time.Now().UTC()
	entity := models.Entity{
		ID:         uuid.New().String(),
		Scheme:     scheme,
		Identifier: identifier,
		Name:       name,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	sb := database.NewInsertBuilder()
	sb.InsertInto(tableName)
	sb.Cols(columns...)
	sb.Values(entity.ID, entity.Scheme, entity.Identifier, entity.Name, nil, entity.CreatedAt, entity.UpdatedAt)

	query, args := sb.Build()

	exec := database.ExecutorFromContext(ctx, r.db)
	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to create entity")
		return nil, fmt.Errorf("failed to create entity: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":         entity.ID,
		"scheme":     scheme,
		"identifier": identifier,
	}).Info("created entity")

	return &entity, nil
}

// GetByID gets an entity by ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.GetByID")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()

	var entity models.Entity
	exec := database.ExecutorFromContext(ctx, r.db)
	err := exec.GetContext(ctx, &entity, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get entity by ID")
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}

	return &entity, nil
}

// GetByIdentifier resolves an entity by exact scheme and identifier match.
// Resolution is never fuzzy.
func (r *Repository) GetByIdentifier(ctx context.Context, scheme, identifier string) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.GetByIdentifier")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(
		sb.Equal("scheme", scheme),
		sb.Equal("identifier", identifier),
	)

	query, args := sb.Build()

	var entity models.Entity
	exec := database.ExecutorFromContext(ctx, r.db)
	err := exec.GetContext(ctx, &entity, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get entity by identifier")
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}

	return &entity, nil
}

// UpdateName sets the entity display name. The import pipeline calls this
// when a newer filing discloses a different registrant name; operators call
// it through the rename endpoint.
func (r *Repository) UpdateName(ctx context.Context, id, name string) error {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.UpdateName")
	defer span.End()

	sb := database.NewUpdateBuilder()
	sb.Update(tableName)
	sb.Set(
		sb.Assign("name", name),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()

	exec := database.ExecutorFromContext(ctx, r.db)
	result, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to update entity name")
		return fmt.Errorf("failed to update entity name: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":            id,
		"rows_affected": rowsAffected,
	}).Info("updated entity name")

	return nil
}

// SetParent moves the entity within the entity tree. A nil parent detaches
// it to the root level.
func (r *Repository) SetParent(ctx context.Context, id string, parentID *string) error {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.SetParent")
	defer span.End()

	sb := database.NewUpdateBuilder()
	sb.Update(tableName)
	sb.Set(
		sb.Assign("parent_id", parentID),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()

	exec := database.ExecutorFromContext(ctx, r.db)
	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to set entity parent")
		return fmt.Errorf("failed to set entity parent: %w", err)
	}

	return nil
}

// List returns all entities ordered by identifier, the order the entity
// tree is presented in.
func (r *Repository) List(ctx context.Context) ([]models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.List")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.OrderBy("identifier ASC")

	query, args := sb.Build()

	var entities []models.Entity
	exec := database.ExecutorFromContext(ctx, r.db)
	if err := exec.SelectContext(ctx, &entities, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list entities")
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}

	return entities, nil
}
