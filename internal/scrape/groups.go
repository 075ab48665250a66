package scrape

import (
	"regexp"
	"strings"

	"github.com/bryan-buckman/mudwatch/internal/model"
)

// UnknownContinent is used when a party header does not name one.
const UnknownContinent = "Unknown"

// RowKind tags a row of the parties table.
type RowKind int

const (
	OtherRow RowKind = iota
	HeaderRow
	MemberRow
)

var groupHeader = regexp.MustCompile(`(\w+) is leading '(.*)'\s*(?:on\s+(.+?))?\s*\.?\s*$`)

// GroupHeader is the parsed "X is leading 'name'" row.
type GroupHeader struct {
	Leader    string
	Name      string
	Continent string
}

// parseGroupHeader returns the header of a party block.
func parseGroupHeader(r ParsedRow) (GroupHeader, bool) {
	if r.Len() == 0 || r.Cells[0].ColSpan != 3 {
		return GroupHeader{}, false
	}
	m := groupHeader.FindStringSubmatch(r.Cells[0].Text)
	if m == nil {
		return GroupHeader{}, false
	}
	h := GroupHeader{Leader: m[1], Name: m[2], Continent: strings.TrimSpace(m[3])}
	if h.Continent == "" {
		h.Continent = UnknownContinent
	}
	return h, true
}

// isMemberRow reports whether the row lists a party member.
func isMemberRow(r ParsedRow) bool {
	return r.Len() == 3 && r.Text(2) != ""
}

// ClassifyGroupRow tags a parties table row.
func ClassifyGroupRow(r ParsedRow) RowKind {
	if _, ok := parseGroupHeader(r); ok {
		return HeaderRow
	}
	if isMemberRow(r) {
		return MemberRow
	}
	return OtherRow
}

// ParseGroups extracts parties in page order. Member rows before the first
// header are ignored, as are repeats of a name within a group. Small groups
// are kept; the reconciler filters them.
func ParseGroups(table ParsedTable) []model.Group {
	var (
		groups  []model.Group
		current *model.Group
		members map[string]bool
	)
	for _, row := range table {
		switch ClassifyGroupRow(row) {
		case HeaderRow:
			h, _ := parseGroupHeader(row)
			groups = append(groups, model.Group{
				Leader:    h.Leader,
				Name:      h.Name,
				Continent: h.Continent,
			})
			current = &groups[len(groups)-1]
			members = make(map[string]bool)
		case MemberRow:
			name := row.Text(2)
			if current == nil || members[name] {
				continue
			}
			members[name] = true
			current.Members = append(current.Members, name)
		}
	}
	return groups
}
