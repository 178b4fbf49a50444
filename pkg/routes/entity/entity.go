package entity

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/bitworks/factbook/internal/tracing"
	"github.com/bitworks/factbook/pkg/models"
	"github.com/bitworks/factbook/pkg/utils"
	"github.com/labstack/echo/v4"
)

// Store is the entity repository surface the entity routes call.
type Store interface {
	GetByID(ctx context.Context, id string) (*models.Entity, error)
	UpdateName(ctx context.Context, id, name string) error
	SetParent(ctx context.Context, id string, parentID *string) error
	List(ctx context.Context) ([]models.Entity, error)
}

type Handler struct {
	store  Store
	logger ectologger.Logger
}

func NewHandler(store Store, logger ectologger.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

func (h *Handler) Register(g *echo.Group) {
	g.GET("/entities", h.List)
	g.GET("/entities/:id", h.Get)
	g.PUT("/entities/:id/name", h.Rename)
	g.PUT("/entities/:id/parent", h.SetParent)
}

func (h *Handler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "entity.List")
	defer span.End()

	entities, err := h.store.List(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, entities)
}

func (h *Handler) Get(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "entity.Get")
	defer span.End()

	entity, err := h.store.GetByID(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	if entity == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "entity not found")
	}

	return c.JSON(http.StatusOK, entity)
}

// Rename sets the entity's display name. Names usually track the latest
// imported filing but can be corrected by hand.
func (h *Handler) Rename(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "entity.Rename")
	defer span.End()

	req, err := utils.BindRequest[models.RenameEntityRequest](c)
	if err != nil {
		return err
	}

	entity, err := h.store.GetByID(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	if entity == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "entity not found")
	}

	if err := h.store.UpdateName(ctx, entity.ID, req.Name); err != nil {
		return err
	}

	entity.Name = req.Name
	return c.JSON(http.StatusOK, entity)
}

// SetParent re-parents the entity in the holding tree. A null parent detaches
// it to the root level.
func (h *Handler) SetParent(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "entity.SetParent")
	defer span.End()

	req, err := utils.BindRequest[models.SetEntityParentRequest](c)
	if err != nil {
		return err
	}

	entity, err := h.store.GetByID(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	if entity == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "entity not found")
	}

	if req.ParentID != nil {
		if *req.ParentID == entity.ID {
			return httperror.NewHTTPError(http.StatusBadRequest, "entity cannot be its own parent")
		}
		parent, err := h.store.GetByID(ctx, *req.ParentID)
		if err != nil {
			return err
		}
		if parent == nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "parent entity not found")
		}
	}

	if err := h.store.SetParent(ctx, entity.ID, req.ParentID); err != nil {
		return err
	}

	entity.ParentID = req.ParentID
	return c.JSON(http.StatusOK, entity)
}
