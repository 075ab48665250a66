package scrape

import (
	"regexp"

	"github.com/bryan-buckman/mudwatch/internal/model"
)

type alertTemplate struct {
	re *regexp.Regexp
	// doerFirst is set when the killer/raiser is the first capture.
	doerFirst bool
}

func tmpl(expr string, doerFirst bool) alertTemplate {
	return alertTemplate{re: regexp.MustCompile(`(?s)` + expr), doerFirst: doerFirst}
}

// Live blog phrasings, tried in order. The typos are the site's.
var (
	deathTemplates = []alertTemplate{
		tmpl(`(.+) handidly dispatched (\w+) to to the next world\.`, true),
		tmpl(`(.+) mercilessly slaughtered (\w+)\.`, true),
		tmpl(`(.+) mercilessly butchered (\w+)\.`, true),
		tmpl(`(.+) obliterated (\w+)\.`, true),
		tmpl(`(.+) annihilated (\w+)\.`, true),
		tmpl(`(.+) defeated (\w+)\.`, true),
		tmpl(`(.+) slew (\w+)\.`, true),
		tmpl(`(.+) wasted (\w+)\.`, true),
		tmpl(`(.+) crushed (\w+) to a liveless pulp of blood and offals\.`, true),
		tmpl(`(\w+) was slain by (.+)\.`, false),
		tmpl(`(\w+) was defeated by (.+)\.`, false),
		tmpl(`(\w+) was messily dispatched by (.+)\.`, false),
		tmpl(`(\w+) was beaten down by (.+)\.`, false),
		tmpl(`(\w+) naively fought (.+) and lost\.`, false),
		tmpl(`(\w+) fought against (.+) and lost\.`, false),
	}

	raiseTemplates = []alertTemplate{
		tmpl(`(\w+) sold a piece of soul to the devil in exchange for (\w+)'s worthless soul`, true),
		tmpl(`The clerical genius (\w+) successfully raised (\w+)\.`, true),
		tmpl(`(\w+)'s prayers were answered and (\w+) was successfully raised\.`, true),
		tmpl(`(\w+) raised from the dead by (\w+)\.`, false),
	}

	shockTemplates = []alertTemplate{
		tmpl(`(\w+) shocked (\w+)\.`, true),
		tmpl(`(\w+) knelt, prayed, and still managed to shock (\w+)\.`, true),
		tmpl(`(\w+) was banished to ether by (\w+)'s lack of raising ability\.`, false),
		tmpl(`The gods liked (\w+)'s soul so much that they want to keep it\s+-\s+(\w+) was not convincing enough to cheat death.`, false),
	}
)

var alertCategories = []struct {
	typ       model.AlertType
	templates []alertTemplate
}{
	{model.AlertDeath, deathTemplates},
	{model.AlertRaise, raiseTemplates},
	{model.AlertShock, shockTemplates},
}

// ClassifyAlert matches a live blog sentence against every category.
func ClassifyAlert(text, at string) (model.Alert, bool) {
	for _, cat := range alertCategories {
		for _, t := range cat.templates {
			m := t.re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			a := model.Alert{Type: cat.typ, Adventurer: m[1], Doer: m[2], Time: at}
			if t.doerFirst {
				a.Adventurer, a.Doer = m[2], m[1]
			}
			return a, true
		}
	}
	return model.Alert{}, false
}

// ParseAlerts reads the two-column live blog, newest first. Sentences that
// match no template are returned separately.
func ParseAlerts(table ParsedTable) (alerts []model.Alert, unmatched []string) {
	for _, row := range table {
		if row.Len() != 2 {
			continue
		}
		text := row.Text(1)
		a, ok := ClassifyAlert(text, row.Text(0))
		if !ok {
			unmatched = append(unmatched, text)
			continue
		}
		alerts = append(alerts, a)
	}
	return alerts, unmatched
}
