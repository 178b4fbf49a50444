package projector

import (
	"testing"
	"time"

	bookerr "github.com/bitworks/factbook/pkg/errors"
	"github.com/bitworks/factbook/pkg/models"
	"github.com/bitworks/factbook/pkg/query"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decPtr(n int64) *decimal.Decimal {
	d := decimal.NewFromInt(n)
	return &d
}

func quarterContext(year, q int) models.Context {
	starts := map[int]time.Month{1: time.January, 2: time.April, 3: time.July, 4: time.October}
	endDays := map[int][2]int{1: {3, 31}, 2: {6, 30}, 3: {9, 30}, 4: {12, 31}}
	return models.Context{
		PeriodKind:  models.PeriodDuration,
		PeriodStart: time.Date(year, starts[q], 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(year, time.Month(endDays[q][0]), endDays[q][1], 0, 0, 0, 0, time.UTC),
	}
}

func numericRow(entityID string, concept string, value int64, unit string, q int, importedAt time.Time) query.Row {
	return query.Row{
		Entity:  models.Entity{ID: entityID, Identifier: entityID, Name: "ACME"},
		Filing:  models.Filing{ID: "filing-" + unit, ImportedAt: importedAt},
		Context: quarterContext(2023, q),
		Cells:   []query.Cell{{Numeric: decPtr(value), Unit: unit, FactID: "f"}},
	}
}

func numericResult(rows ...query.Row) query.QueryResult {
	return query.QueryResult{
		Kind:     models.FactNumeric,
		Concepts: []string{"us-gaap:Revenues"},
		Rows:     rows,
	}
}

func TestProject_Scenario(t *testing.T) {
	imported := time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC)
	result := numericResult(
		numericRow("acme", "us-gaap:Revenues", 100, "iso4217:USD", 1, imported),
		numericRow("acme", "us-gaap:Revenues", 120, "iso4217:USD", 2, imported),
	)

	series, err := Project(result, ChartLine)
	require.NoError(t, err)
	require.Len(t, series, 1)

	s := series[0]
	assert.Equal(t, "acme", s.EntityID)
	assert.Equal(t, "us-gaap:Revenues", s.Concept)
	assert.Equal(t, "iso4217:USD", s.Unit)
	assert.False(t, s.MixedUnits)
	assert.Equal(t, ChartLine, s.ChartKind)

	require.Len(t, s.Points, 2)
	require.NotNil(t, s.Points[0].Value)
	require.NotNil(t, s.Points[1].Value)
	assert.True(t, s.Points[0].Value.Equal(decimal.NewFromInt(100)))
	assert.True(t, s.Points[1].Value.Equal(decimal.NewFromInt(120)))
	assert.True(t, s.Points[0].Period.Start.Before(s.Points[1].Period.Start))
}

func TestProject_GapsAreExplicit(t *testing.T) {
	imported := time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC)
	// Q2 is missing: the entity reported Q1 and Q3 only.
	result := numericResult(
		numericRow("acme", "us-gaap:Revenues", 100, "iso4217:USD", 1, imported),
		numericRow("acme", "us-gaap:Revenues", 140, "iso4217:USD", 3, imported),
		numericRow("beta", "us-gaap:Revenues", 70, "iso4217:USD", 2, imported),
	)

	series, err := Project(result, ChartBar)
	require.NoError(t, err)
	require.Len(t, series, 2)

	acme := series[0]
	require.Equal(t, "acme", acme.EntityID)
	require.Len(t, acme.Points, 3, "all series share the full period axis")
	assert.NotNil(t, acme.Points[0].Value)
	assert.Nil(t, acme.Points[1].Value, "missing quarter is a gap, not a zero")
	assert.NotNil(t, acme.Points[2].Value)
}

func TestProject_SplitsMixedUnits(t *testing.T) {
	imported := time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC)
	result := numericResult(
		numericRow("acme", "us-gaap:Revenues", 100, "iso4217:USD", 1, imported),
		numericRow("acme", "us-gaap:Revenues", 90, "iso4217:EUR", 2, imported),
	)

	series, err := Project(result, ChartLine)
	require.NoError(t, err)
	require.Len(t, series, 2, "one series per distinct unit")

	for _, s := range series {
		assert.True(t, s.MixedUnits)
	}
	assert.Equal(t, "iso4217:EUR", series[0].Unit)
	assert.Equal(t, "iso4217:USD", series[1].Unit)
}

func TestProject_LatestFilingWins(t *testing.T) {
	older := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC)
	result := numericResult(
		numericRow("acme", "us-gaap:Revenues", 100, "iso4217:USD", 1, older),
		numericRow("acme", "us-gaap:Revenues", 105, "iso4217:USD", 1, newer),
	)

	series, err := Project(result, ChartDotted)
	require.NoError(t, err)
	require.Len(t, series, 1)
	require.Len(t, series[0].Points, 1)
	require.NotNil(t, series[0].Points[0].Value)
	assert.True(t, series[0].Points[0].Value.Equal(decimal.NewFromInt(105)),
		"a restated value from a newer filing replaces the older one")
}

func TestProject_RefusesTextualResults(t *testing.T) {
	textual := query.QueryResult{Kind: models.FactTextual, Concepts: []string{"acme:Notes"}}
	_, err := Project(textual, ChartLine)
	assert.ErrorIs(t, err, bookerr.ErrUnsupportedKind)
}

func TestProject_RefusesUnknownChartKind(t *testing.T) {
	_, err := Project(numericResult(), ChartKind("pie"))
	assert.ErrorIs(t, err, bookerr.ErrUnsupportedKind)
}

func TestProject_EmptyResult(t *testing.T) {
	series, err := Project(numericResult(), ChartLine)
	require.NoError(t, err)
	assert.Empty(t, series)
}
