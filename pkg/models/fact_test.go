package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func validNumericFact() Fact {
	value := decimal.NewFromInt(100)
	return Fact{
		ID:           "fact-1",
		FilingID:     "filing-1",
		EntityID:     "entity-1",
		ContextID:    "ctx-1",
		Concept:      "us-gaap:Revenues",
		Kind:         FactNumeric,
		NumericValue: &value,
		UnitID:       strPtr("unit-1"),
		Decimals:     intPtr(0),
	}
}

func TestFactValidate_Numeric(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, validNumericFact().Validate())
	})

	t.Run("missing value", func(t *testing.T) {
		fact := validNumericFact()
		fact.NumericValue = nil
		assert.Error(t, fact.Validate())
	})

	t.Run("missing unit", func(t *testing.T) {
		fact := validNumericFact()
		fact.UnitID = nil
		assert.Error(t, fact.Validate())
	})

	t.Run("missing decimals", func(t *testing.T) {
		fact := validNumericFact()
		fact.Decimals = nil
		assert.Error(t, fact.Validate())
	})

	t.Run("negative decimals", func(t *testing.T) {
		fact := validNumericFact()
		fact.Decimals = intPtr(-2)
		assert.Error(t, fact.Validate())
	})

	t.Run("infinite decimals", func(t *testing.T) {
		fact := validNumericFact()
		fact.Decimals = nil
		fact.DecimalsInfinite = true
		assert.NoError(t, fact.Validate())
	})

	t.Run("both decimals indicators", func(t *testing.T) {
		fact := validNumericFact()
		fact.DecimalsInfinite = true
		assert.Error(t, fact.Validate())
	})

	t.Run("numeric fact with text value", func(t *testing.T) {
		fact := validNumericFact()
		fact.TextValue = strPtr("oops")
		assert.Error(t, fact.Validate())
	})
}

func TestFactValidate_Textual(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		fact := Fact{Kind: FactTextual, TextValue: strPtr("growth strong")}
		assert.NoError(t, fact.Validate())
	})

	t.Run("missing text", func(t *testing.T) {
		fact := Fact{Kind: FactTextual}
		assert.Error(t, fact.Validate())
	})

	t.Run("empty text without marker", func(t *testing.T) {
		fact := Fact{Kind: FactTextual, TextValue: strPtr("")}
		assert.Error(t, fact.Validate())
	})

	t.Run("reported empty", func(t *testing.T) {
		fact := Fact{Kind: FactTextual, TextValue: strPtr(""), ReportedEmpty: true}
		assert.NoError(t, fact.Validate())
	})

	t.Run("textual fact with numeric fields", func(t *testing.T) {
		value := decimal.NewFromInt(1)
		fact := Fact{Kind: FactTextual, TextValue: strPtr("x"), NumericValue: &value}
		assert.Error(t, fact.Validate())
	})
}

func TestFactValidate_UnknownKind(t *testing.T) {
	fact := Fact{Kind: FactKind("boolean")}
	assert.Error(t, fact.Validate())
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPeriodInRange(t *testing.T) {
	q1 := date(2023, 1, 1)
	q1End := date(2023, 3, 31)
	q2End := date(2023, 6, 30)

	duration, err := NewDuration(q1, q1End)
	require.NoError(t, err)
	instant := NewInstant(q1End)

	t.Run("duration overlaps range", func(t *testing.T) {
		from, to := date(2023, 2, 1), date(2023, 4, 1)
		assert.True(t, duration.InRange(&from, &to))
	})

	t.Run("duration outside range", func(t *testing.T) {
		from, to := date(2023, 4, 1), q2End
		assert.False(t, duration.InRange(&from, &to))
	})

	t.Run("instant inside range", func(t *testing.T) {
		from, to := q1, date(2023, 4, 1)
		assert.True(t, instant.InRange(&from, &to))
	})

	t.Run("instant outside range", func(t *testing.T) {
		from, to := date(2023, 4, 1), q2End
		assert.False(t, instant.InRange(&from, &to))
	})

	t.Run("open ended range", func(t *testing.T) {
		from := date(2023, 2, 1)
		assert.True(t, duration.InRange(&from, nil))
		assert.True(t, instant.InRange(nil, nil))
	})
}

func TestNewDuration_InvertedRange(t *testing.T) {
	_, err := NewDuration(date(2023, 3, 31), date(2023, 1, 1))
	assert.Error(t, err)
}

func TestDimensionsContains(t *testing.T) {
	dims := Dimensions{"srt:ProductOrServiceAxis": "us-gaap:ServiceMember", "us-gaap:StatementGeographicalAxis": "country:US"}

	assert.True(t, dims.Contains(nil))
	assert.True(t, dims.Contains(map[string]string{"srt:ProductOrServiceAxis": "us-gaap:ServiceMember"}))
	assert.False(t, dims.Contains(map[string]string{"srt:ProductOrServiceAxis": "us-gaap:ProductMember"}))
	assert.False(t, dims.Contains(map[string]string{"missing:Axis": "x"}))
}

func TestUnitKey(t *testing.T) {
	plain := Unit{Measure: "iso4217:USD"}
	assert.Equal(t, "iso4217:USD", plain.Key())

	perShare := Unit{Measure: "iso4217:USD_per_shares", Numerator: strPtr("iso4217:USD"), Denominator: strPtr("shares")}
	assert.Equal(t, "iso4217:USD/shares", perShare.Key())
}
