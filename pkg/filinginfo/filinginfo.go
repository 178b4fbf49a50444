// Package filinginfo derives display and storage metadata for a parsed
// filing from its document-entity-information (dei) facts: the registrant
// name, the zero-padded CIK and the quarterly period label.
package filinginfo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bitworks/factbook/pkg/models"
)

const (
	conceptRegistrantName  = "dei:EntityRegistrantName"
	conceptFiscalYearFocus = "dei:DocumentFiscalYearFocus"
	conceptPeriodFocus     = "dei:DocumentFiscalPeriodFocus"
	conceptCentralIndexKey = "dei:EntityCentralIndexKey"
	conceptPeriodEndDate   = "dei:DocumentPeriodEndDate"
)

// Info is the metadata recoverable from a parsed filing's dei facts. Fields
// the document does not disclose are left empty.
type Info struct {
	CIK         string
	EntityName  string
	PeriodLabel string
}

// Derive scans the graph's dei facts. The period label combines the fiscal
// period focus (FY collapses to q4) with the fiscal year; when either is
// missing it falls back to bucketing DocumentPeriodEndDate by quarter-end
// month.
func Derive(graph models.ParsedFiling) Info {
	var info Info
	var yearFocus, periodFocus, periodEnd string

	for _, fact := range graph.Facts {
		switch fact.Concept {
		case conceptRegistrantName:
			info.EntityName = strings.TrimSpace(fact.Value)
		case conceptFiscalYearFocus:
			yearFocus = strings.TrimSpace(fact.Value)
		case conceptPeriodFocus:
			periodFocus = strings.ToLower(strings.TrimSpace(fact.Value))
		case conceptCentralIndexKey:
			if cik, err := strconv.Atoi(strings.TrimSpace(fact.Value)); err == nil {
				info.CIK = fmt.Sprintf("%010d", cik)
			}
		case conceptPeriodEndDate:
			periodEnd = strings.TrimSpace(fact.Value)
		}
	}

	info.PeriodLabel = periodLabel(periodFocus, yearFocus, periodEnd)
	return info
}

func periodLabel(periodFocus, yearFocus, periodEnd string) string {
	if periodFocus != "" && yearFocus != "" {
		if periodFocus == "fy" {
			periodFocus = "q4"
		}
		return periodFocus + yearFocus
	}

	// Fallback: bucket the document period end date (YYYY-MM-DD) by its
	// quarter-end month.
	if len(periodEnd) >= 7 {
		year := periodEnd[0:4]
		switch periodEnd[5:7] {
		case "03":
			return "q1" + year
		case "06":
			return "q2" + year
		case "09":
			return "q3" + year
		case "12":
			return "q4" + year
		}
	}
	return ""
}

// IsImportable reports whether the graph discloses enough metadata (a
// registrant identifier, a name and a resolvable period) for an unattended
// import. Imports missing any of these need operator-supplied overrides.
func IsImportable(graph models.ParsedFiling) bool {
	if graph.Registrant.Identifier == "" {
		return false
	}
	info := Derive(graph)
	if info.EntityName == "" && graph.Registrant.Name == "" {
		return false
	}
	return graph.PeriodLabel != "" || info.PeriodLabel != ""
}
