// Package fingerprint produces the deterministic content hashes the store
// relies on: the dedup key giving a Context identity-by-value within its
// filing, and the source checksum that guards against importing the same
// document twice.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/bitworks/factbook/pkg/models"
)

const dateLayout = "2006-01-02"

// Context returns the dedup key for a context: a SHA256 over the entity
// identifier, period and sorted dimensional qualifiers. Two contexts with
// equal values always share a key.
func Context(entityIdentifier string, period models.Period, dims map[string]string) string {
	var b strings.Builder
	b.WriteString(entityIdentifier)
	b.WriteByte('|')
	b.WriteString(string(period.Kind))
	b.WriteByte('|')
	b.WriteString(period.Start.Format(dateLayout))
	b.WriteByte('|')
	b.WriteString(period.End.Format(dateLayout))
	for _, axis := range sortedKeys(dims) {
		b.WriteByte('|')
		b.WriteString(axis)
		b.WriteByte('=')
		b.WriteString(dims[axis])
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Filing returns a checksum over the canonicalized content of a parsed
// filing. The fact lines are sorted, so the checksum is independent of the
// order the processor emitted the facts in.
func Filing(graph models.ParsedFiling) string {
	lines := make([]string, 0, len(graph.Facts)+1)
	lines = append(lines, "registrant|"+graph.Registrant.Scheme+"|"+graph.Registrant.Identifier)
	for _, f := range graph.Facts {
		lines = append(lines, factLine(f))
	}
	sort.Strings(lines)
	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}

func factLine(f models.ParsedFact) string {
	parts := []string{
		f.Concept,
		string(f.Kind),
		f.Context.EntityIdentifier,
		formatParsedPeriod(f.Context.Period),
	}
	for _, axis := range sortedKeys(f.Context.Dimensions) {
		parts = append(parts, axis+"="+f.Context.Dimensions[axis])
	}
	parts = append(parts, f.Value, f.Decimals)
	if f.Unit != nil {
		parts = append(parts, f.Unit.Measure, f.Unit.Numerator, f.Unit.Denominator)
	}
	return strings.Join(parts, "|")
}

func formatParsedPeriod(p models.ParsedPeriod) string {
	format := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.UTC().Format(dateLayout)
	}
	if p.Instant != nil {
		return "instant:" + format(p.Instant)
	}
	return "duration:" + format(p.Start) + ".." + format(p.End)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
