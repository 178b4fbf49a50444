package models

import "time"

// The types below are the input contract with the external XBRL processor.
// The import pipeline treats a ParsedFiling as a trusted,
// already-validated-for-syntax structure; it never re-parses source XBRL.

// Registrant identifies the reporting company of a parsed filing.
type Registrant struct {
	Scheme     string `json:"scheme"`
	Identifier string `json:"identifier"`
	Name       string `json:"name,omitempty"`
}

// ParsedPeriod is the period descriptor of a parsed context: either Instant
// or the Start/End pair is set.
type ParsedPeriod struct {
	Instant *time.Time `json:"instant,omitempty"`
	Start   *time.Time `json:"start,omitempty"`
	End     *time.Time `json:"end,omitempty"`
}

// ParsedContext is the context reference attached to a parsed fact.
type ParsedContext struct {
	EntityIdentifier string            `json:"entity_identifier"`
	Period           ParsedPeriod      `json:"period"`
	Dimensions       map[string]string `json:"dimensions,omitempty"`
}

// ParsedUnit is the unit descriptor of a parsed numeric fact.
type ParsedUnit struct {
	Measure     string `json:"measure"`
	Numerator   string `json:"numerator,omitempty"`
	Denominator string `json:"denominator,omitempty"`
}

// ParsedFact is one fact as delivered by the XBRL processor. Kind is the
// declared datatype category; Value is the raw reported lexical value.
type ParsedFact struct {
	Concept  string        `json:"concept"`
	Kind     FactKind      `json:"kind"`
	Context  ParsedContext `json:"context"`
	Value    string        `json:"value"`
	Unit     *ParsedUnit   `json:"unit,omitempty"`
	Decimals string        `json:"decimals,omitempty"`
	Lang     string        `json:"lang,omitempty"`
	// ReportedEmpty marks a textual fact whose empty value was explicitly
	// reported rather than absent.
	ReportedEmpty bool `json:"reported_empty,omitempty"`
}

// ParsedFiling is the fact graph of one parsed filing document.
type ParsedFiling struct {
	Registrant  Registrant   `json:"registrant"`
	PeriodLabel string       `json:"period_label,omitempty"`
	Facts       []ParsedFact `json:"facts"`
}

// Source describes where a parsed filing came from. When Checksum is empty
// the import pipeline derives one from the graph content.
type Source struct {
	URI      string `json:"uri" validate:"required"`
	Checksum string `json:"checksum,omitempty"`
}
