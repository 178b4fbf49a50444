package fingerprint

import (
	"testing"
	"time"

	"github.com/bitworks/factbook/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_EqualValuesShareKey(t *testing.T) {
	period, err := models.NewDuration(
		time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	a := Context("0000123456", period, map[string]string{"axis:A": "member:X", "axis:B": "member:Y"})
	b := Context("0000123456", period, map[string]string{"axis:B": "member:Y", "axis:A": "member:X"})

	assert.Equal(t, a, b, "dimension map order must not change the key")
}

func TestContext_DifferentValuesDifferentKeys(t *testing.T) {
	duration, err := models.NewDuration(
		time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	instant := models.NewInstant(time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC))

	base := Context("0000123456", duration, nil)

	assert.NotEqual(t, base, Context("0000999999", duration, nil))
	assert.NotEqual(t, base, Context("0000123456", instant, nil))
	assert.NotEqual(t, base, Context("0000123456", duration, map[string]string{"axis:A": "member:X"}))
}

func TestFiling_OrderIndependent(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC)

	revenue := models.ParsedFact{
		Concept: "us-gaap:Revenues",
		Kind:    models.FactNumeric,
		Value:   "100",
		Unit:    &models.ParsedUnit{Measure: "iso4217:USD"},
		Context: models.ParsedContext{
			EntityIdentifier: "0000123456",
			Period:           models.ParsedPeriod{Start: &start, End: &end},
		},
	}
	notes := models.ParsedFact{
		Concept: "acme:Notes",
		Kind:    models.FactTextual,
		Value:   "growth strong",
		Context: models.ParsedContext{
			EntityIdentifier: "0000123456",
			Period:           models.ParsedPeriod{Start: &start, End: &end},
		},
	}

	registrant := models.Registrant{Scheme: "http://www.sec.gov/CIK", Identifier: "0000123456"}

	a := Filing(models.ParsedFiling{Registrant: registrant, Facts: []models.ParsedFact{revenue, notes}})
	b := Filing(models.ParsedFiling{Registrant: registrant, Facts: []models.ParsedFact{notes, revenue}})

	assert.Equal(t, a, b, "fact emission order must not change the checksum")
}

func TestFiling_ContentSensitive(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC)

	graph := models.ParsedFiling{
		Registrant: models.Registrant{Scheme: "http://www.sec.gov/CIK", Identifier: "0000123456"},
		Facts: []models.ParsedFact{{
			Concept: "us-gaap:Revenues",
			Kind:    models.FactNumeric,
			Value:   "100",
			Unit:    &models.ParsedUnit{Measure: "iso4217:USD"},
			Context: models.ParsedContext{
				EntityIdentifier: "0000123456",
				Period:           models.ParsedPeriod{Start: &start, End: &end},
			},
		}},
	}

	changed := graph
	changed.Facts = []models.ParsedFact{graph.Facts[0]}
	changed.Facts[0].Value = "101"

	assert.NotEqual(t, Filing(graph), Filing(changed))
}
