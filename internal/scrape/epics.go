package scrape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/bryan-buckman/mudwatch/internal/model"
)

// IsRealEpic filters map markers that are not hunted epics: everything in
// godsland, and on valkyre anything outside the dark areas.
func IsRealEpic(area, continent string) bool {
	switch strings.ToLower(continent) {
	case "godsland":
		return false
	case "valkyre":
		return strings.HasPrefix(strings.ToLower(area), "dark")
	}
	return true
}

// ParseEpics reads the map server markers, <div area=".." continent="..">.
func ParseEpics(doc *goquery.Document) []model.Epic {
	var epics []model.Epic
	doc.Find("div[area][continent]").Each(func(_ int, div *goquery.Selection) {
		area, _ := div.Attr("area")
		continent, _ := div.Attr("continent")
		if !IsRealEpic(area, continent) {
			return
		}
		name := strings.TrimSpace(div.Text())
		if name == "" {
			return
		}
		epics = append(epics, model.Epic{
			Name:      name,
			Area:      strings.TrimSpace(area),
			Continent: strings.TrimSpace(continent),
		})
	})
	return epics
}
