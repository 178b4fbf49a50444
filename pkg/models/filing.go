package models

import (
	"time"
)

// Filing is one imported XBRL document instance. Filings are immutable after
// a successful import; deleting a filing cascades to every context, unit and
// fact it produced.
type Filing struct {
	ID             string    `json:"id" db:"id"`
	EntityID       string    `json:"entity_id" db:"entity_id"`
	PeriodLabel    string    `json:"period_label" db:"period_label"`
	SourceURI      string    `json:"source_uri" db:"source_uri"`
	SourceChecksum string    `json:"source_checksum" db:"source_checksum"`
	ImportedAt     time.Time `json:"imported_at" db:"imported_at"`
}
