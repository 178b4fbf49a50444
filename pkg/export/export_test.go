package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	bookerr "github.com/bitworks/factbook/pkg/errors"
	"github.com/bitworks/factbook/pkg/models"
	"github.com/bitworks/factbook/pkg/query"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func q1Context() models.Context {
	return models.Context{
		PeriodKind:  models.PeriodDuration,
		PeriodStart: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestWriteCSV(t *testing.T) {
	value := decimal.NewFromInt(100)
	result := query.QueryResult{
		Kind:     models.FactNumeric,
		Concepts: []string{"us-gaap:NetIncomeLoss", "us-gaap:Revenues"},
		Rows: []query.Row{{
			Entity:  models.Entity{Identifier: "0000123456", Name: "ACME CORP"},
			Filing:  models.Filing{PeriodLabel: "q12023"},
			Context: q1Context(),
			Cells: []query.Cell{
				{NoData: true},
				{Numeric: &value, Unit: "iso4217:USD"},
			},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, result))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, []string{
		"entity", "entity_name", "filing_period", "period_kind", "period_start", "period_end",
		"us-gaap:NetIncomeLoss", "us-gaap:Revenues",
	}, records[0])
	assert.Equal(t, []string{
		"0000123456", "ACME CORP", "q12023", "duration", "2023-01-01", "2023-03-31",
		"", "100 iso4217:USD",
	}, records[1])
}

func TestWriteCSV_RefusesTextualResults(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, query.QueryResult{Kind: models.FactTextual})
	assert.ErrorIs(t, err, bookerr.ErrUnsupportedKind)
	assert.Zero(t, buf.Len())
}

func TestWriteHTML(t *testing.T) {
	text := "<script>alert('x')</script> growth strong"
	empty := ""
	result := query.QueryResult{
		Kind:     models.FactTextual,
		Concepts: []string{"acme:Notes", "acme:Risks"},
		Rows: []query.Row{{
			Entity:  models.Entity{Identifier: "0000123456"},
			Context: q1Context(),
			Cells: []query.Cell{
				{Text: &text},
				{Text: &empty, ReportedEmpty: true},
			},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, result))
	out := buf.String()

	assert.Contains(t, out, "&lt;script&gt;", "reported text must be escaped")
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "0000123456")
	assert.Contains(t, out, "2023-01-01 to 2023-03-31")
	assert.Contains(t, out, "<em>reported empty</em>")
	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
}

func TestWriteHTML_RefusesNumericResults(t *testing.T) {
	var buf bytes.Buffer
	err := WriteHTML(&buf, query.QueryResult{Kind: models.FactNumeric})
	assert.ErrorIs(t, err, bookerr.ErrUnsupportedKind)
	assert.Zero(t, buf.Len())
}
