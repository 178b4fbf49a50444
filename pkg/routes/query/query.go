package query

import (
	"bytes"
	"context"
	"net/http"

	"github.com/Gobusters/ectologger"
	"github.com/bitworks/factbook/internal/tracing"
	bookerr "github.com/bitworks/factbook/pkg/errors"
	"github.com/bitworks/factbook/pkg/export"
	"github.com/bitworks/factbook/pkg/projector"
	factquery "github.com/bitworks/factbook/pkg/query"
	"github.com/bitworks/factbook/pkg/utils"
	"github.com/labstack/echo/v4"
)

// Runner is the query engine surface the query routes call.
type Runner interface {
	RunQuery(ctx context.Context, params factquery.Params) (*factquery.QueryResult, error)
}

type Handler struct {
	engine Runner
	logger ectologger.Logger
}

func NewHandler(engine Runner, logger ectologger.Logger) *Handler {
	return &Handler{
		engine: engine,
		logger: logger,
	}
}

func (h *Handler) Register(g *echo.Group) {
	g.POST("/queries", h.Run)
	g.POST("/series", h.Series)
	g.POST("/exports/csv", h.ExportCSV)
	g.POST("/exports/html", h.ExportHTML)
}

// Run resolves a fact query. An empty result is a 200 with zero rows, not an
// error.
func (h *Handler) Run(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "query.Run")
	defer span.End()

	params, err := utils.BindRequest[factquery.Params](c)
	if err != nil {
		return err
	}

	result, err := h.engine.RunQuery(ctx, params)
	if err != nil {
		return bookerr.ToHTTPError(err)
	}

	return c.JSON(http.StatusOK, result)
}

// SeriesRequest is a query plus the chart kind to project it for.
type SeriesRequest struct {
	factquery.Params
	ChartKind projector.ChartKind `json:"chart_kind" validate:"required,oneof=bar line dotted"`
}

// Series resolves a numeric query and projects it into chart series.
func (h *Handler) Series(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "query.Series")
	defer span.End()

	req, err := utils.BindRequest[SeriesRequest](c)
	if err != nil {
		return err
	}

	result, err := h.engine.RunQuery(ctx, req.Params)
	if err != nil {
		return bookerr.ToHTTPError(err)
	}

	series, err := projector.Project(*result, req.ChartKind)
	if err != nil {
		return bookerr.ToHTTPError(err)
	}

	return c.JSON(http.StatusOK, series)
}

// ExportCSV resolves a numeric query and streams it as CSV.
func (h *Handler) ExportCSV(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "query.ExportCSV")
	defer span.End()

	params, err := utils.BindRequest[factquery.Params](c)
	if err != nil {
		return err
	}

	result, err := h.engine.RunQuery(ctx, params)
	if err != nil {
		return bookerr.ToHTTPError(err)
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, *result); err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("failed to write csv export")
		return bookerr.ToHTTPError(err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="facts.csv"`)
	return c.Blob(http.StatusOK, "text/csv", buf.Bytes())
}

// ExportHTML resolves a textual query and streams it as an HTML document.
func (h *Handler) ExportHTML(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "query.ExportHTML")
	defer span.End()

	params, err := utils.BindRequest[factquery.Params](c)
	if err != nil {
		return err
	}

	result, err := h.engine.RunQuery(ctx, params)
	if err != nil {
		return bookerr.ToHTTPError(err)
	}

	var buf bytes.Buffer
	if err := export.WriteHTML(&buf, *result); err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("failed to write html export")
		return bookerr.ToHTTPError(err)
	}

	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}
