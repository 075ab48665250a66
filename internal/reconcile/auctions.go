// Package reconcile turns a freshly scraped snapshot and the previous one
// into the list of transitions that happened in between.
//
// Every function here is pure: it takes the old state and the parsed page,
// returns events plus the next state, and never shares memory between them.
package reconcile

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bryan-buckman/mudwatch/internal/match"
	"github.com/bryan-buckman/mudwatch/internal/model"
)

// Auction thresholds. Both were tuned by watching the live site.
const (
	// EndingSoonMinutes is when the "ends soon" warning fires.
	EndingSoonMinutes = 120
	// BuyoutMinutes separates a buyout from an auction that ran out.
	// An item without bids that vanished earlier than this was bought out.
	BuyoutMinutes = 40
)

// AuctionEventKind names an auction transition.
type AuctionEventKind int

const (
	ItemListed AuctionEventKind = iota
	ItemEndingSoon
	ItemSold
	ItemBoughtOut
	ItemExpired
)

func (k AuctionEventKind) String() string {
	switch k {
	case ItemListed:
		return "listed"
	case ItemEndingSoon:
		return "ending_soon"
	case ItemSold:
		return "sold"
	case ItemBoughtOut:
		return "bought_out"
	case ItemExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// AuctionEvent is one transition of a listed item. For removals Item is the
// last state seen.
type AuctionEvent struct {
	Kind AuctionEventKind
	Item model.ListedItem
}

// AuctionResult is the outcome of one auctions pass.
type AuctionResult struct {
	Events []AuctionEvent
	Next   model.AuctionSnapshot
	// Skipped is set when the page had no rows and the old snapshot must be kept.
	Skipped bool
	// Malformed lists items whose ends value could not be parsed.
	Malformed []model.ListedItem
}

var endsToken = regexp.MustCompile(`^(\d+)([dhm])$`)

// EndsMinutes converts "1d 2h 3m" into minutes. Anything else yields 0, false.
func EndsMinutes(ends string) (int, bool) {
	parts := strings.Fields(ends)
	if len(parts) == 0 {
		return 0, false
	}

	total := 0
	for _, part := range parts {
		m := endsToken.FindStringSubmatch(part)
		if m == nil {
			return 0, false
		}
		value, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		switch m[2] {
		case "d":
			total += 24 * 60 * value
		case "h":
			total += 60 * value
		case "m":
			total += value
		}
	}
	return total, true
}

// ClassifyRemoved decides what happened to an item that left the page.
func ClassifyRemoved(item model.ListedItem, lastSeenMinutes int) AuctionEventKind {
	if item.HasBidder() {
		return ItemSold
	}
	if lastSeenMinutes >= BuyoutMinutes {
		return ItemBoughtOut
	}
	return ItemExpired
}

type auctionPass struct {
	res AuctionResult
}

func (p *auctionPass) minutes(item model.ListedItem) int {
	mins, ok := EndsMinutes(item.Ends)
	if !ok {
		p.res.Malformed = append(p.res.Malformed, item)
	}
	return mins
}

func (p *auctionPass) removed(item model.ListedItem) {
	kind := ClassifyRemoved(item, p.minutes(item))
	p.res.Events = append(p.res.Events, AuctionEvent{Kind: kind, Item: item})
}

// Auctions reconciles the auction page. old is nil on the first run.
func Auctions(old, fresh model.AuctionSnapshot) AuctionResult {
	count := 0
	for _, items := range fresh {
		count += len(items)
	}
	if count == 0 {
		return AuctionResult{Next: old, Skipped: true}
	}

	if old == nil {
		return AuctionResult{Next: fresh.Clone()}
	}

	p := &auctionPass{}
	next := make(model.AuctionSnapshot, len(fresh))

	for _, seller := range sortedSellers(fresh) {
		items := fresh[seller]
		oldItems, known := old[seller]
		if !known {
			next[seller] = append([]model.ListedItem(nil), items...)
			for _, item := range items {
				p.res.Events = append(p.res.Events, AuctionEvent{Kind: ItemListed, Item: item})
			}
			continue
		}

		matched := match.List(oldItems, items, func(a, b model.ListedItem) bool {
			return a.Name == b.Name
		})
		carried := make(map[int]bool, len(matched.Matched))

		out := make([]model.ListedItem, 0, len(items))
		mi := 0
		for _, item := range items {
			if mi < len(matched.Matched) && sameItem(matched.Matched[mi].New, item) {
				item.WarnedEndingSoon = matched.Matched[mi].Old.WarnedEndingSoon
				carried[len(out)] = true
				mi++
			}
			out = append(out, item)
		}

		for i := range out {
			if !carried[i] {
				p.res.Events = append(p.res.Events, AuctionEvent{Kind: ItemListed, Item: out[i]})
			}
			if out[i].WarnedEndingSoon {
				continue
			}
			mins := p.minutes(out[i])
			if mins > 0 && mins <= EndingSoonMinutes {
				out[i].WarnedEndingSoon = true
				p.res.Events = append(p.res.Events, AuctionEvent{Kind: ItemEndingSoon, Item: out[i]})
			}
		}

		for _, item := range matched.Removed {
			p.removed(item)
		}
		next[seller] = out
	}

	for _, seller := range sortedSellers(old) {
		if _, ok := fresh[seller]; ok {
			continue
		}
		for _, item := range old[seller] {
			p.removed(item)
		}
	}

	p.res.Next = next
	return p.res
}

// sameItem compares every scraped field, used to walk matched pairs in page order.
func sameItem(a, b model.ListedItem) bool {
	return a.Seller == b.Seller && a.Name == b.Name && a.Bidder == b.Bidder &&
		a.Price == b.Price && a.Buyout == b.Buyout && a.Ends == b.Ends
}

func sortedSellers(s model.AuctionSnapshot) []string {
	out := make([]string, 0, len(s))
	for seller := range s {
		out = append(out, seller)
	}
	sort.Strings(out)
	return out
}
