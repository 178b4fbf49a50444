package filing

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/bitworks/factbook/internal/tracing"
	bookerr "github.com/bitworks/factbook/pkg/errors"
	"github.com/bitworks/factbook/pkg/importer"
	"github.com/bitworks/factbook/pkg/models"
	"github.com/bitworks/factbook/pkg/utils"
	"github.com/labstack/echo/v4"
)

// Ingestor is the import pipeline surface the filing routes call.
type Ingestor interface {
	ImportFilingWithOptions(ctx context.Context, graph models.ParsedFiling, source models.Source, opts importer.Options) (string, error)
}

// Store is the filing repository surface the filing routes call.
type Store interface {
	GetByID(ctx context.Context, id string) (*models.Filing, error)
	List(ctx context.Context, entityID *string) ([]models.Filing, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type Handler struct {
	ingestor Ingestor
	store    Store
	logger   ectologger.Logger
}

func NewHandler(ingestor Ingestor, store Store, logger ectologger.Logger) *Handler {
	return &Handler{
		ingestor: ingestor,
		store:    store,
		logger:   logger,
	}
}

func (h *Handler) Register(g *echo.Group) {
	g.POST("/filings", h.Import)
	g.GET("/filings", h.List)
	g.GET("/filings/:id", h.Get)
	g.DELETE("/filings/:id", h.Delete)
}

// ImportRequest carries a parsed filing graph plus optional overrides for
// metadata the document does not disclose.
type ImportRequest struct {
	Graph       models.ParsedFiling `json:"graph" validate:"required"`
	Source      models.Source       `json:"source" validate:"required"`
	EntityName  string              `json:"entity_name,omitempty"`
	PeriodLabel string              `json:"period_label,omitempty"`
}

type ImportResponse struct {
	FilingID string `json:"filing_id"`
}

// Import ingests a parsed filing. Duplicate sources return 409, malformed
// facts 400, unresolvable registrants and insufficient metadata 422;
// nothing is stored on failure.
func (h *Handler) Import(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "filing.Import")
	defer span.End()

	req, err := utils.BindRequest[ImportRequest](c)
	if err != nil {
		return err
	}

	filingID, err := h.ingestor.ImportFilingWithOptions(ctx, req.Graph, req.Source, importer.Options{
		EntityName:  req.EntityName,
		PeriodLabel: req.PeriodLabel,
	})
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("failed to import filing")
		return bookerr.ToHTTPError(err)
	}

	return c.JSON(http.StatusCreated, ImportResponse{FilingID: filingID})
}

func (h *Handler) Get(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "filing.Get")
	defer span.End()

	filing, err := h.store.GetByID(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	if filing == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "filing not found")
	}

	return c.JSON(http.StatusOK, filing)
}

func (h *Handler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "filing.List")
	defer span.End()

	var entityID *string
	if id := c.QueryParam("entity_id"); id != "" {
		entityID = &id
	}

	filings, err := h.store.List(ctx, entityID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, filings)
}

// Delete removes a filing and, through the schema's cascades, every context,
// unit and fact it owns.
func (h *Handler) Delete(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "filing.Delete")
	defer span.End()

	deleted, err := h.store.Delete(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	if !deleted {
		return httperror.NewHTTPError(http.StatusNotFound, "filing not found")
	}

	return c.NoContent(http.StatusNoContent)
}
