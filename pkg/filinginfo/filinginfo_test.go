package filinginfo

import (
	"testing"

	"github.com/bitworks/factbook/pkg/models"
	"github.com/stretchr/testify/assert"
)

func textFact(concept, value string) models.ParsedFact {
	return models.ParsedFact{Concept: concept, Kind: models.FactTextual, Value: value}
}

func TestDerive(t *testing.T) {
	t.Run("quarterly filing", func(t *testing.T) {
		graph := models.ParsedFiling{Facts: []models.ParsedFact{
			textFact("dei:EntityRegistrantName", "ACME CORP"),
			textFact("dei:DocumentFiscalYearFocus", "2023"),
			textFact("dei:DocumentFiscalPeriodFocus", "Q1"),
			textFact("dei:EntityCentralIndexKey", "123456"),
		}}

		info := Derive(graph)
		assert.Equal(t, "ACME CORP", info.EntityName)
		assert.Equal(t, "q12023", info.PeriodLabel)
		assert.Equal(t, "0000123456", info.CIK)
	})

	t.Run("annual filing collapses to q4", func(t *testing.T) {
		graph := models.ParsedFiling{Facts: []models.ParsedFact{
			textFact("dei:DocumentFiscalYearFocus", "2022"),
			textFact("dei:DocumentFiscalPeriodFocus", "FY"),
		}}

		assert.Equal(t, "q42022", Derive(graph).PeriodLabel)
	})

	t.Run("falls back to period end date", func(t *testing.T) {
		for periodEnd, want := range map[string]string{
			"2023-03-31": "q12023",
			"2023-06-30": "q22023",
			"2023-09-30": "q32023",
			"2023-12-31": "q42023",
		} {
			graph := models.ParsedFiling{Facts: []models.ParsedFact{
				textFact("dei:DocumentPeriodEndDate", periodEnd),
			}}
			assert.Equal(t, want, Derive(graph).PeriodLabel)
		}
	})

	t.Run("non quarter end month resolves nothing", func(t *testing.T) {
		graph := models.ParsedFiling{Facts: []models.ParsedFact{
			textFact("dei:DocumentPeriodEndDate", "2023-02-28"),
		}}
		assert.Empty(t, Derive(graph).PeriodLabel)
	})

	t.Run("no dei facts", func(t *testing.T) {
		info := Derive(models.ParsedFiling{})
		assert.Empty(t, info.EntityName)
		assert.Empty(t, info.PeriodLabel)
		assert.Empty(t, info.CIK)
	})
}

func TestIsImportable(t *testing.T) {
	graph := models.ParsedFiling{
		Registrant: models.Registrant{Identifier: "0000123456"},
		Facts: []models.ParsedFact{
			textFact("dei:EntityRegistrantName", "ACME CORP"),
			textFact("dei:DocumentFiscalYearFocus", "2023"),
			textFact("dei:DocumentFiscalPeriodFocus", "Q1"),
		},
	}
	assert.True(t, IsImportable(graph))

	t.Run("missing identifier", func(t *testing.T) {
		g := graph
		g.Registrant.Identifier = ""
		assert.False(t, IsImportable(g))
	})

	t.Run("missing period", func(t *testing.T) {
		g := graph
		g.Facts = []models.ParsedFact{textFact("dei:EntityRegistrantName", "ACME CORP")}
		assert.False(t, IsImportable(g))
	})

	t.Run("processor supplied period label suffices", func(t *testing.T) {
		g := graph
		g.PeriodLabel = "q12023"
		g.Facts = []models.ParsedFact{textFact("dei:EntityRegistrantName", "ACME CORP")}
		assert.True(t, IsImportable(g))
	})

	t.Run("registrant name on the graph suffices", func(t *testing.T) {
		g := graph
		g.Registrant.Name = "ACME CORP"
		g.Facts = []models.ParsedFact{
			textFact("dei:DocumentFiscalYearFocus", "2023"),
			textFact("dei:DocumentFiscalPeriodFocus", "Q1"),
		}
		assert.True(t, IsImportable(g))
	})
}
