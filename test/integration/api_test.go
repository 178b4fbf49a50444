package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gobusters/ectologger"
	"github.com/bitworks/factbook/internal/middleware"
	"github.com/bitworks/factbook/internal/storetest"
	"github.com/bitworks/factbook/pkg/importer"
	"github.com/bitworks/factbook/pkg/models"
	"github.com/bitworks/factbook/pkg/query"
	entityroutes "github.com/bitworks/factbook/pkg/routes/entity"
	filingroutes "github.com/bitworks/factbook/pkg/routes/filing"
	queryroutes "github.com/bitworks/factbook/pkg/routes/query"
)

// TestAPIHelpers wires the full route surface over an in-memory store.
type TestAPIHelpers struct {
	t     *testing.T
	e     *echo.Echo
	store *storetest.MemStore
}

func NewTestAPIHelpers(t *testing.T) *TestAPIHelpers {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	store := storetest.NewMemStore()

	ingestor := importer.New(store, store.Filings(), store, store, logger)
	engine := query.NewEngine(store, logger)

	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Context())

	api := e.Group("/api/v1")
	filingroutes.NewHandler(ingestor, store.Filings(), logger).Register(api)
	entityroutes.NewHandler(store, logger).Register(api)
	queryroutes.NewHandler(engine, logger).Register(api)

	return &TestAPIHelpers{t: t, e: e, store: store}
}

func (h *TestAPIHelpers) MakeRequest(method, path string, body any) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(h.t, err)
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func (h *TestAPIHelpers) DecodeJSON(rec *httptest.ResponseRecorder, dest any) {
	require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), dest))
}

func quarterPeriod(year, q int) models.ParsedPeriod {
	starts := map[int]time.Month{1: time.January, 2: time.April, 3: time.July, 4: time.October}
	endMonthDay := map[int][2]int{1: {3, 31}, 2: {6, 30}, 3: {9, 30}, 4: {12, 31}}
	start := time.Date(year, starts[q], 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.Month(endMonthDay[q][0]), endMonthDay[q][1], 0, 0, 0, 0, time.UTC)
	return models.ParsedPeriod{Start: &start, End: &end}
}

func acmeImportBody(uri string, year, q int, revenue string) map[string]any {
	graph := models.ParsedFiling{
		Registrant: models.Registrant{
			Scheme:     "http://www.sec.gov/CIK",
			Identifier: "0000123456",
			Name:       "ACME CORP",
		},
		PeriodLabel: "q12023",
		Facts: []models.ParsedFact{
			{
				Concept:  "us-gaap:Revenues",
				Kind:     models.FactNumeric,
				Value:    revenue,
				Unit:     &models.ParsedUnit{Measure: "iso4217:USD"},
				Decimals: "0",
				Context: models.ParsedContext{
					EntityIdentifier: "0000123456",
					Period:           quarterPeriod(year, q),
				},
			},
			{
				Concept: "acme:Notes",
				Kind:    models.FactTextual,
				Value:   "growth strong",
				Context: models.ParsedContext{
					EntityIdentifier: "0000123456",
					Period:           quarterPeriod(year, q),
				},
			},
		},
	}
	return map[string]any{
		"graph":  graph,
		"source": models.Source{URI: uri},
	}
}

func TestFilingAPI(t *testing.T) {
	t.Run("import, fetch and delete a filing", func(t *testing.T) {
		h := NewTestAPIHelpers(t)

		rec := h.MakeRequest(http.MethodPost, "/api/v1/filings", acmeImportBody("file:///acme-q1.xml", 2023, 1, "100"))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var created filingroutes.ImportResponse
		h.DecodeJSON(rec, &created)
		require.NotEmpty(t, created.FilingID)

		rec = h.MakeRequest(http.MethodGet, "/api/v1/filings/"+created.FilingID, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var filing models.Filing
		h.DecodeJSON(rec, &filing)
		assert.Equal(t, "q12023", filing.PeriodLabel)
		assert.Equal(t, "file:///acme-q1.xml", filing.SourceURI)

		rec = h.MakeRequest(http.MethodDelete, "/api/v1/filings/"+created.FilingID, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, 0, h.store.CountFacts(), "facts are deleted with their filing")

		rec = h.MakeRequest(http.MethodGet, "/api/v1/filings/"+created.FilingID, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("duplicate import returns conflict", func(t *testing.T) {
		h := NewTestAPIHelpers(t)

		body := acmeImportBody("file:///acme-q1.xml", 2023, 1, "100")
		rec := h.MakeRequest(http.MethodPost, "/api/v1/filings", body)
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = h.MakeRequest(http.MethodPost, "/api/v1/filings", body)
		assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	})

	t.Run("malformed fact returns bad request", func(t *testing.T) {
		h := NewTestAPIHelpers(t)

		body := acmeImportBody("file:///acme-q1.xml", 2023, 1, "not-a-number")
		rec := h.MakeRequest(http.MethodPost, "/api/v1/filings", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		assert.Equal(t, 0, h.store.CountFilings())
	})

	t.Run("missing source is rejected by validation", func(t *testing.T) {
		h := NewTestAPIHelpers(t)

		body := acmeImportBody("", 2023, 1, "100")
		body["source"] = models.Source{}
		rec := h.MakeRequest(http.MethodPost, "/api/v1/filings", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestEntityAPI(t *testing.T) {
	h := NewTestAPIHelpers(t)

	rec := h.MakeRequest(http.MethodPost, "/api/v1/filings", acmeImportBody("file:///acme-q1.xml", 2023, 1, "100"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = h.MakeRequest(http.MethodGet, "/api/v1/entities", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var entities []models.Entity
	h.DecodeJSON(rec, &entities)
	require.Len(t, entities, 1)
	assert.Equal(t, "ACME CORP", entities[0].Name)

	t.Run("rename", func(t *testing.T) {
		rec := h.MakeRequest(http.MethodPut, "/api/v1/entities/"+entities[0].ID+"/name",
			models.RenameEntityRequest{Name: "ACME HOLDINGS"})
		require.Equal(t, http.StatusOK, rec.Code)

		var renamed models.Entity
		h.DecodeJSON(rec, &renamed)
		assert.Equal(t, "ACME HOLDINGS", renamed.Name)
	})

	t.Run("set parent rejects self", func(t *testing.T) {
		rec := h.MakeRequest(http.MethodPut, "/api/v1/entities/"+entities[0].ID+"/parent",
			models.SetEntityParentRequest{ParentID: &entities[0].ID})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown entity is 404", func(t *testing.T) {
		rec := h.MakeRequest(http.MethodGet, "/api/v1/entities/nope", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestQueryAPI(t *testing.T) {
	h := NewTestAPIHelpers(t)

	rec := h.MakeRequest(http.MethodPost, "/api/v1/filings", acmeImportBody("file:///acme-q1.xml", 2023, 1, "100"))
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = h.MakeRequest(http.MethodPost, "/api/v1/filings", acmeImportBody("file:///acme-q2.xml", 2023, 2, "120"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	t.Run("numeric query", func(t *testing.T) {
		rec := h.MakeRequest(http.MethodPost, "/api/v1/queries", map[string]any{
			"concepts": []string{"us-gaap:Revenues"},
			"kind":     "numeric",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var result query.QueryResult
		h.DecodeJSON(rec, &result)
		require.Len(t, result.Rows, 2)
		assert.True(t, result.Rows[0].Context.PeriodStart.Before(result.Rows[1].Context.PeriodStart))
	})

	t.Run("series projection", func(t *testing.T) {
		rec := h.MakeRequest(http.MethodPost, "/api/v1/series", map[string]any{
			"concepts":   []string{"us-gaap:Revenues"},
			"kind":       "numeric",
			"chart_kind": "line",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var series []map[string]any
		h.DecodeJSON(rec, &series)
		require.Len(t, series, 1)
		assert.Equal(t, "us-gaap:Revenues", series[0]["concept"])
	})

	t.Run("series on textual kind fails", func(t *testing.T) {
		rec := h.MakeRequest(http.MethodPost, "/api/v1/series", map[string]any{
			"concepts":   []string{"acme:Notes"},
			"kind":       "textual",
			"chart_kind": "line",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("csv export", func(t *testing.T) {
		rec := h.MakeRequest(http.MethodPost, "/api/v1/exports/csv", map[string]any{
			"concepts": []string{"us-gaap:Revenues"},
			"kind":     "numeric",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/csv")
		assert.Contains(t, rec.Body.String(), "us-gaap:Revenues")
	})

	t.Run("html export", func(t *testing.T) {
		rec := h.MakeRequest(http.MethodPost, "/api/v1/exports/html", map[string]any{
			"concepts": []string{"acme:Notes"},
			"kind":     "textual",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "growth strong")
	})

	t.Run("invalid kind is rejected", func(t *testing.T) {
		rec := h.MakeRequest(http.MethodPost, "/api/v1/queries", map[string]any{
			"kind": "boolean",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
