package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// FactKind partitions facts into plottable numeric values and viewable text
// blobs. The kind is assigned from the datatype category declared by the
// XBRL processor, never by inspecting the value, and is immutable.
type FactKind string

const (
	FactNumeric FactKind = "numeric"
	FactTextual FactKind = "textual"
)

// DecimalsInfinite marks an explicit "infinite precision" decimals
// indicator, reported as INF in the source document.
const DecimalsInfinite = "INF"

// Fact is the atomic reported datum. Exactly one of the numeric fields
// (NumericValue, UnitID, Decimals/DecimalsInfinite) or the textual fields
// (TextValue, ReportedEmpty) is populated, as determined by Kind.
type Fact struct {
	ID        string   `json:"id" db:"id"`
	FilingID  string   `json:"filing_id" db:"filing_id"`
	EntityID  string   `json:"entity_id" db:"entity_id"`
	ContextID string   `json:"context_id" db:"context_id"`
	Concept   string   `json:"concept" db:"concept"`
	Kind      FactKind `json:"kind" db:"kind"`

	NumericValue     *decimal.Decimal `json:"numeric_value,omitempty" db:"numeric_value"`
	UnitID           *string          `json:"unit_id,omitempty" db:"unit_id"`
	Decimals         *int             `json:"decimals,omitempty" db:"decimals"`
	DecimalsInfinite bool             `json:"decimals_infinite,omitempty" db:"decimals_infinite"`

	TextValue *string `json:"text_value,omitempty" db:"text_value"`
	// ReportedEmpty distinguishes an explicitly reported empty string from a
	// concept that was simply not reported.
	ReportedEmpty bool `json:"reported_empty,omitempty" db:"reported_empty"`
}

// Validate checks the kind partition invariant and then the kind-specific
// well-formedness rules. Malformed facts are rejected before reaching the
// store.
func (f Fact) Validate() error {
	hasNumeric := f.NumericValue != nil || f.UnitID != nil || f.Decimals != nil || f.DecimalsInfinite
	hasTextual := f.TextValue != nil || f.ReportedEmpty

	switch f.Kind {
	case FactNumeric:
		if hasTextual {
			return fmt.Errorf("numeric fact carries textual fields")
		}
		return f.validateNumeric()
	case FactTextual:
		if hasNumeric {
			return fmt.Errorf("textual fact carries numeric fields")
		}
		return f.validateTextual()
	default:
		return fmt.Errorf("unknown fact kind %q", f.Kind)
	}
}

// validateNumeric requires a finite decimal value, a resolved unit and a
// non-negative or explicitly infinite decimals indicator.
func (f Fact) validateNumeric() error {
	if f.NumericValue == nil {
		return fmt.Errorf("numeric fact has no value")
	}
	if f.UnitID == nil || *f.UnitID == "" {
		return fmt.Errorf("numeric fact has no resolved unit")
	}
	if f.DecimalsInfinite {
		if f.Decimals != nil {
			return fmt.Errorf("numeric fact has both finite and infinite decimals indicators")
		}
		return nil
	}
	if f.Decimals == nil {
		return fmt.Errorf("numeric fact has no decimals indicator")
	}
	if *f.Decimals < 0 {
		return fmt.Errorf("numeric fact has negative decimals indicator %d", *f.Decimals)
	}
	return nil
}

// validateTextual requires non-empty text or the explicit reported-empty
// marker.
func (f Fact) validateTextual() error {
	if f.TextValue == nil {
		return fmt.Errorf("textual fact has no value")
	}
	if *f.TextValue == "" && !f.ReportedEmpty {
		return fmt.Errorf("textual fact is empty without the reported-empty marker")
	}
	return nil
}

// FactFilter is the conjunction of constraints accepted by the fact store.
// Zero-valued fields do not constrain.
type FactFilter struct {
	EntityIDs  []string
	Concepts   []string
	From       *time.Time
	To         *time.Time
	Dimensions map[string]string
	Kind       *FactKind
	FilingID   *string
}

// FactRecord is a fact joined with its context, filing, entity and unit, the
// shape query resolution works over.
type FactRecord struct {
	Fact    Fact
	Context Context
	Filing  Filing
	Entity  Entity
	Unit    *Unit
}
