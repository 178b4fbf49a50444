package filing

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/bitworks/factbook/internal/database"
	"github.com/bitworks/factbook/internal/tracing"
	"github.com/bitworks/factbook/pkg/models"
)

// FilingRepository defines the store operations on imported filings.
type FilingRepository interface {
	Create(ctx context.Context, filing models.Filing) error
	GetByID(ctx context.Context, id string) (*models.Filing, error)
	GetByChecksum(ctx context.Context, entityID, checksum string) (*models.Filing, error)
	List(ctx context.Context, entityID *string) ([]models.Filing, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Repository implements FilingRepository over Postgres.
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

const tableName = "filings"

var columns = []string{"id", "entity_id", "period_label", "source_uri", "source_checksum", "imported_at"}

// Create inserts a filing row. Called inside the import transaction only.
func (r *Repository) Create(ctx context.Context, filing models.Filing) error {
	ctx, span := tracing.StartSpan(ctx, "FilingRepository.Create")
	defer span.End()

	sb := database.NewInsertBuilder()
	sb.InsertInto(tableName)
	sb.Cols(columns...)
	sb.Values(filing.ID, filing.EntityID, filing.PeriodLabel, filing.SourceURI, filing.SourceChecksum, filing.ImportedAt)

	query, args := sb.Build()

	exec := database.ExecutorFromContext(ctx, r.db)
	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to create filing")
		return fmt.Errorf("failed to create filing: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":           filing.ID,
		"entity_id":    filing.EntityID,
		"period_label": filing.PeriodLabel,
	}).Info("created filing")

	return nil
}

// GetByID gets a filing by ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Filing, error) {
	ctx, span := tracing.StartSpan(ctx, "FilingRepository.GetByID")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()

	var filing models.Filing
	exec := database.ExecutorFromContext(ctx, r.db)
	err := exec.GetContext(ctx, &filing, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get filing by ID")
		return nil, fmt.Errorf("failed to get filing: %w", err)
	}

	return &filing, nil
}

// GetByChecksum looks up a filing by its owning entity and source checksum,
// the duplicate-ingestion guard.
func (r *Repository) GetByChecksum(ctx context.Context, entityID, checksum string) (*models.Filing, error) {
	ctx, span := tracing.StartSpan(ctx, "FilingRepository.GetByChecksum")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(
		sb.Equal("entity_id", entityID),
		sb.Equal("source_checksum", checksum),
	)

	query, args := sb.Build()

	var filing models.Filing
	exec := database.ExecutorFromContext(ctx, r.db)
	err := exec.GetContext(ctx, &filing, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get filing by checksum")
		return nil, fmt.Errorf("failed to get filing: %w", err)
	}

	return &filing, nil
}

// List returns filings newest first, optionally restricted to one entity.
func (r *Repository) List(ctx context.Context, entityID *string) ([]models.Filing, error) {
	ctx, span := tracing.StartSpan(ctx, "FilingRepository.List")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	if entityID != nil {
		sb.Where(sb.Equal("entity_id", *entityID))
	}
	sb.OrderBy("imported_at DESC", "id ASC")

	query, args := sb.Build()

	var filings []models.Filing
	exec := database.ExecutorFromContext(ctx, r.db)
	if err := exec.SelectContext(ctx, &filings, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list filings")
		return nil, fmt.Errorf("failed to list filings: %w", err)
	}

	return filings, nil
}

// Delete removes a filing. Contexts, units and facts cascade at the schema
// level; this is the only supported deletion path for facts.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "FilingRepository.Delete")
	defer span.End()

	sb := database.NewDeleteBuilder()
	sb.DeleteFrom(tableName)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()

	exec := database.ExecutorFromContext(ctx, r.db)
	result, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to delete filing")
		return false, fmt.Errorf("failed to delete filing: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":            id,
		"rows_affected": rowsAffected,
	}).Info("deleted filing")

	return rowsAffected > 0, nil
}
