package scrape

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Cell is a table cell with its trimmed, unescaped text and the href of its
// first anchor, if any.
type Cell struct {
	Text    string
	Link    string
	ColSpan int
}

// ParsedRow is one <tr>.
type ParsedRow struct {
	Cells []Cell
}

// Len returns the number of cells.
func (r ParsedRow) Len() int { return len(r.Cells) }

// Text returns the text of cell i, or "" when the row is shorter.
func (r ParsedRow) Text(i int) string {
	if i < 0 || i >= len(r.Cells) {
		return ""
	}
	return r.Cells[i].Text
}

// ParsedTable is every row in a document, in order.
type ParsedTable []ParsedRow

// Rows extracts all <tr> rows of doc. Nested tables contribute their rows
// separately and are not folded into the outer cell list.
func Rows(doc *goquery.Document) ParsedTable {
	var table ParsedTable
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		row := ParsedRow{}
		tr.ChildrenFiltered("td, th").Each(func(_ int, td *goquery.Selection) {
			row.Cells = append(row.Cells, cellOf(td))
		})
		table = append(table, row)
	})
	return table
}

func cellOf(td *goquery.Selection) Cell {
	c := Cell{
		Text:    strings.TrimSpace(td.Text()),
		ColSpan: 1,
	}
	if href, ok := td.Find("a[href]").First().Attr("href"); ok {
		c.Link = strings.TrimSpace(href)
	}
	if span, ok := td.Attr("colspan"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(span)); err == nil && n > 0 {
			c.ColSpan = n
		}
	}
	return c
}
