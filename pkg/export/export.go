// Package export renders query results for download: numeric results as CSV
// tables, textual results as a standalone escaped HTML document.
package export

import (
	"encoding/csv"
	"fmt"
	"html"
	"io"

	bookerr "github.com/bitworks/factbook/pkg/errors"
	"github.com/bitworks/factbook/pkg/models"
	"github.com/bitworks/factbook/pkg/query"
)

const dateLayout = "2006-01-02"

// WriteCSV writes a numeric query result as CSV. One record per result row,
// one column per concept; empty cells mark concepts the row has no fact for.
func WriteCSV(w io.Writer, result query.QueryResult) error {
	if result.Kind != models.FactNumeric {
		return &bookerr.UnsupportedKindError{Kind: string(result.Kind)}
	}

	cw := csv.NewWriter(w)

	header := []string{"entity", "entity_name", "filing_period", "period_kind", "period_start", "period_end"}
	header = append(header, result.Concepts...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, row := range result.Rows {
		record := []string{
			row.Entity.Identifier,
			row.Entity.Name,
			row.Filing.PeriodLabel,
			string(row.Context.PeriodKind),
			row.Context.PeriodStart.Format(dateLayout),
			row.Context.PeriodEnd.Format(dateLayout),
		}
		for _, cell := range row.Cells {
			record = append(record, numericCell(cell))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

func numericCell(cell query.Cell) string {
	if cell.NoData || cell.Numeric == nil {
		return ""
	}
	if cell.Unit != "" {
		return cell.Numeric.String() + " " + cell.Unit
	}
	return cell.Numeric.String()
}

// WriteHTML writes a textual query result as a standalone HTML document.
// Reported text is HTML-escaped; text facts are stored verbatim and may
// contain markup from the source document.
func WriteHTML(w io.Writer, result query.QueryResult) error {
	if result.Kind != models.FactTextual {
		return &bookerr.UnsupportedKindError{Kind: string(result.Kind)}
	}

	var out []byte
	out = append(out, "<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>Fact export</title></head>\n<body>\n<table border=\"1\">\n<tr><th>entity</th><th>period</th>"...)
	for _, concept := range result.Concepts {
		out = append(out, "<th>"+html.EscapeString(concept)+"</th>"...)
	}
	out = append(out, "</tr>\n"...)

	for _, row := range result.Rows {
		out = append(out, "<tr><td>"+html.EscapeString(row.Entity.Identifier)+"</td>"...)
		out = append(out, "<td>"+html.EscapeString(periodText(row.Context))+"</td>"...)
		for _, cell := range row.Cells {
			out = append(out, "<td>"+textualCell(cell)+"</td>"...)
		}
		out = append(out, "</tr>\n"...)
	}

	out = append(out, "</table>\n</body>\n</html>\n"...)

	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("failed to write html: %w", err)
	}
	return nil
}

func periodText(c models.Context) string {
	if c.PeriodKind == models.PeriodInstant {
		return c.PeriodStart.Format(dateLayout)
	}
	return c.PeriodStart.Format(dateLayout) + " to " + c.PeriodEnd.Format(dateLayout)
}

func textualCell(cell query.Cell) string {
	if cell.NoData || cell.Text == nil {
		return ""
	}
	if *cell.Text == "" && cell.ReportedEmpty {
		return "<em>reported empty</em>"
	}
	return html.EscapeString(*cell.Text)
}
