package processor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/bryan-buckman/mudwatch/internal/model"
	"github.com/bryan-buckman/mudwatch/internal/notify"
	"github.com/bryan-buckman/mudwatch/internal/reconcile"
	"github.com/bryan-buckman/mudwatch/internal/scrape"
)

// Auctions watches the live auctions page.
type Auctions struct {
	base
	url           string
	itemSearchURL string
}

// NewAuctions creates the auctions processor.
func NewAuctions(d Deps, url, itemSearchURL string) *Auctions {
	return &Auctions{base: newBase(d, model.KindAuctions, notify.ChannelAuctions), url: url, itemSearchURL: itemSearchURL}
}

// ParsePrice reads a price cell such as "12,500" or "12500 coins". ok is
// false when the cell holds no digits.
func ParsePrice(s string) (int64, bool) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
	if digits == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Message renders the announcement of an auction event.
func (p *Auctions) Message(ev reconcile.AuctionEvent) string {
	it := ev.Item
	link := scrape.ItemLink(p.itemSearchURL, it.Name)
	switch ev.Kind {
	case reconcile.ItemListed:
		return fmt.Sprintf("%s has put '%s' on sale. Price/buyout is %s/%s. The sale ends in %s.",
			it.Seller, link, it.Price, it.Buyout, it.Ends)
	case reconcile.ItemEndingSoon:
		msg := fmt.Sprintf("The auction for %s's item '%s' will end in less than two hours.", it.Seller, link)
		if it.HasBidder() {
			msg += fmt.Sprintf(" Current bid is %s by %s.", it.Price, it.Bidder)
		}
		return msg
	case reconcile.ItemSold:
		return fmt.Sprintf("%s's item '%s' had been sold to %s for %s.", it.Seller, link, it.Bidder, it.Price)
	case reconcile.ItemBoughtOut:
		return fmt.Sprintf("%s's item '%s' had been bought out for %s.", it.Seller, link, it.Buyout)
	default:
		return fmt.Sprintf("%s's item '%s' is no longer available for sale.", it.Seller, link)
	}
}

// Run implements Processor.
func (p *Auctions) Run(ctx context.Context) error {
	p.log.Info().Msg("Checking auctions")

	doc, err := p.Fetcher.FetchDocument(ctx, p.url)
	if err != nil {
		return err
	}
	fresh := scrape.ParseAuctions(scrape.Rows(doc))

	var old model.AuctionSnapshot
	if !p.load(ctx, &old) {
		old = nil
	}

	res := reconcile.Auctions(old, fresh)
	if res.Skipped {
		p.log.Warn().Msg("Auctions page has no rows, keeping previous snapshot")
		return ErrSkipped
	}
	for _, it := range res.Malformed {
		p.log.Warn().Str("seller", it.Seller).Str("item", it.Name).Str("ends", it.Ends).Msg("Unparseable sale end")
	}

	now := p.Now()
	for _, ev := range res.Events {
		p.send(ctx, p.Message(ev))

		var price string
		switch ev.Kind {
		case reconcile.ItemSold:
			price = ev.Item.Price
		case reconcile.ItemBoughtOut:
			price = ev.Item.Buyout
		default:
			continue
		}
		amount, ok := ParsePrice(price)
		if !ok {
			p.log.Warn().Str("price", price).Str("item", ev.Item.Name).Msg("Unparseable sale price")
			continue
		}
		p.stat("sale", p.Stats.RecordSale(ctx, model.Sale{
			Seller: ev.Item.Seller, Item: ev.Item.Name, Price: amount, At: now,
		}))
	}

	p.log.Info().Int("events", len(res.Events)).Int("sellers", len(res.Next)).Msg("Checked auctions")
	return p.save(ctx, res.Next)
}
