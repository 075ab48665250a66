package scrape

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/bryan-buckman/mudwatch/internal/model"
)

// auctionCells is the column count of a live auction row:
// id, item, seller, bidder, price, buyout, ends.
const auctionCells = 7

func isAuctionRow(r ParsedRow) bool {
	if r.Len() < auctionCells {
		return false
	}
	id := r.Text(0)
	return id != "" && unicode.IsDigit(rune(id[0]))
}

// ParseAuctions groups the live auction rows by seller, keeping page order.
func ParseAuctions(table ParsedTable) model.AuctionSnapshot {
	out := make(model.AuctionSnapshot)
	for _, row := range table {
		if !isAuctionRow(row) {
			continue
		}
		item := model.ListedItem{
			Name:   row.Text(1),
			Seller: row.Text(2),
			Bidder: row.Text(3),
			Price:  row.Text(4),
			Buyout: row.Text(5),
			Ends:   row.Text(6),
		}
		out[item.Seller] = append(out[item.Seller], item)
	}
	return out
}

// ItemLink renders an item name as a markdown link to the item search.
func ItemLink(searchURL, name string) string {
	if searchURL == "" {
		return name
	}
	sep := "?"
	if strings.Contains(searchURL, "?") {
		sep = "&"
	}
	return "[" + name + "](" + searchURL + sep + "search=" + url.QueryEscape(name) + ")"
}
