package models

// Unit is the measure of a numeric fact: a single measure identifier
// (currency code, share count, pure ratio) or a numerator/denominator pair
// (e.g. USD per share). Units are deduplicated by value within a filing and
// deleted with it.
type Unit struct {
	ID          string  `json:"id" db:"id"`
	FilingID    string  `json:"filing_id" db:"filing_id"`
	Measure     string  `json:"measure" db:"measure"`
	Numerator   *string `json:"numerator,omitempty" db:"numerator"`
	Denominator *string `json:"denominator,omitempty" db:"denominator"`
}

// Key is the value identity of the unit. Two facts reported with units that
// share a key are plottable on the same series axis; differing keys split
// the series.
func (u Unit) Key() string {
	if u.Numerator != nil && u.Denominator != nil {
		return *u.Numerator + "/" + *u.Denominator
	}
	return u.Measure
}
