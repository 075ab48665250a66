package stats

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bryan-buckman/mudwatch/internal/database"
	"github.com/bryan-buckman/mudwatch/internal/model"
	"github.com/bryan-buckman/mudwatch/internal/scrape"
)

// RatingMaximum is the number of rows a rating lists.
const RatingMaximum = 10

var (
	ErrUnknownReport = errors.New("unknown report")
	ErrNameRequired  = errors.New("report needs a name")
)

// Report names.
const (
	ReportTopDeaths     = "topdeaths"
	ReportMostDeadly    = "mostdeadly"
	ReportMostDeadlyFor = "mostdeadlyfor"
	ReportVictimsOf     = "victimsof"
	ReportTopRaisers    = "topraisers"
	ReportBestLeaders   = "bestleaders"
	ReportBestSellers   = "bestsellers"
	ReportTopMerchants  = "topmerchants"
	ReportRichMerchants = "richmerchants"
	ReportStatFor       = "statfor"
	ReportGameStats     = "gamestats"
	ReportEpicHistory   = "epichistory"
	ReportTop           = "top"
)

// NeedsName lists the reports that take a name argument.
var NeedsName = map[string]bool{
	ReportMostDeadlyFor: true,
	ReportVictimsOf:     true,
	ReportStatFor:       true,
	ReportEpicHistory:   true,
}

// Reports returns every report name, sorted.
func Reports() []string {
	return []string{
		ReportBestLeaders, ReportBestSellers, ReportEpicHistory, ReportGameStats,
		ReportMostDeadly, ReportMostDeadlyFor, ReportRichMerchants, ReportStatFor,
		ReportTop, ReportTopDeaths, ReportTopMerchants, ReportTopRaisers, ReportVictimsOf,
	}
}

// Source is the read side of the stats database.
type Source interface {
	QueryStats(ctx context.Context, q database.StatQuery) ([]database.StatRow, error)
	Bounds(ctx context.Context, table string, from, to time.Time) (first, last time.Time, ok bool, err error)
	AlertLog(ctx context.Context, from, to time.Time) ([]database.AlertRecord, error)
	GroupSessions(ctx context.Context, from, to time.Time) ([]model.GroupSession, error)
	EpicHistory(ctx context.Context, name string) ([]model.EpicEvent, error)
	EpicNames(ctx context.Context) ([]string, error)
	EpicKills(ctx context.Context, from, to time.Time) (byGroup, solo int64, err error)
	KillerNames(ctx context.Context) ([]string, error)
}

// Options tune the reports.
type Options struct {
	ExcludedLeaders []string
	ItemSearchURL   string
	Location        *time.Location
}

// Reporter renders reports from a Source.
type Reporter struct {
	src  Source
	opts Options
	now  func() time.Time
}

// NewReporter creates a reporter. A nil Location means UTC.
func NewReporter(src Source, opts Options) *Reporter {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Reporter{src: src, opts: opts, now: time.Now}
}

// Run renders the named report.
func (r *Reporter) Run(ctx context.Context, report, name string, period Period) (string, error) {
	report = strings.ToLower(report)
	if NeedsName[report] && strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%s: %w", report, ErrNameRequired)
	}

	switch report {
	case ReportTopDeaths:
		return r.TopDeaths(ctx, period)
	case ReportMostDeadly:
		return r.MostDeadly(ctx, period)
	case ReportMostDeadlyFor:
		return r.MostDeadlyFor(ctx, name, period)
	case ReportVictimsOf:
		return r.VictimsOf(ctx, name, period)
	case ReportTopRaisers:
		return r.TopRaisers(ctx, period)
	case ReportBestLeaders:
		return r.BestLeaders(ctx, period)
	case ReportBestSellers:
		return r.BestSellers(ctx, period)
	case ReportTopMerchants:
		return r.TopMerchants(ctx, period, false)
	case ReportRichMerchants:
		return r.TopMerchants(ctx, period, true)
	case ReportStatFor:
		return r.StatFor(ctx, name, period)
	case ReportGameStats:
		return r.GameStats(ctx, period)
	case ReportEpicHistory:
		return r.EpicHistory(ctx, name)
	case ReportTop:
		return r.Top(ctx, period)
	default:
		return "", fmt.Errorf("%q: %w", report, ErrUnknownReport)
	}
}

// --- formatting ---

var medals = []string{":first_place:", ":second_place:", ":third_place:"}

// placePrefix is the "1. :first_place: " prefix of rating lines.
func placePrefix(i int) string {
	if i < len(medals) {
		return fmt.Sprintf("%d. %s ", i+1, medals[i])
	}
	return fmt.Sprintf("%d. ", i+1)
}

// placeName is a medal for the top three and an ordinal after.
func placeName(i int) string {
	if i < len(medals) {
		return medals[i]
	}
	return humanize.Ordinal(i + 1)
}

func (r *Reporter) date(t time.Time) string {
	t = t.In(r.opts.Location)
	return fmt.Sprintf("%s %s %d", t.Month(), humanize.Ordinal(t.Day()), t.Year())
}

func (r *Reporter) dateTime(t time.Time) string {
	return r.date(t) + t.In(r.opts.Location).Format(", 15:04")
}

func percent(part, whole int64) int64 {
	if whole == 0 {
		return 0
	}
	return int64(math.Round(float64(part) * 100 / float64(whole)))
}

// span returns the header bounds of a rating over table.
func (r *Reporter) span(ctx context.Context, table string, period Period) (time.Time, time.Time, error) {
	from, to := period.Window(r.now())
	if period != PeriodAll {
		return from, to, nil
	}
	first, last, ok, err := r.src.Bounds(ctx, table, time.Time{}, time.Time{})
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !ok {
		now := r.now()
		return now, now, nil
	}
	return first, last, nil
}

func (r *Reporter) rating(title string, from, to time.Time, lines []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s from %s to %s.\n\n", title, r.date(from), r.date(to))
	if len(lines) == 0 {
		b.WriteString("Nothing to show yet.")
		return b.String()
	}
	for i, line := range lines {
		if i >= RatingMaximum {
			break
		}
		b.WriteString(placePrefix(i))
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// --- alert log tallies ---

type tally struct {
	Name   string
	Count  int64
	Raised int64
}

// tallyDeaths counts deaths per victim and per killer. A death counts as
// raised when the victim's next alert is a raise.
func tallyDeaths(log []database.AlertRecord) (victims, killers []tally) {
	type death struct {
		victim, killer string
		raised         bool
	}
	var deaths []death
	pending := make(map[string]int)
	for _, rec := range log {
		switch rec.Type {
		case database.AlertTypeDeath:
			pending[rec.Adventurer] = len(deaths)
			deaths = append(deaths, death{victim: rec.Adventurer, killer: rec.Doer})
		case database.AlertTypeRaise:
			if i, ok := pending[rec.Adventurer]; ok {
				deaths[i].raised = true
				delete(pending, rec.Adventurer)
			}
		}
	}

	count := func(key func(death) string) []tally {
		idx := make(map[string]int)
		var out []tally
		for _, d := range deaths {
			k := key(d)
			i, ok := idx[k]
			if !ok {
				i = len(out)
				idx[k] = i
				out = append(out, tally{Name: k})
			}
			out[i].Count++
			if d.raised {
				out[i].Raised++
			}
		}
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Count != out[j].Count {
				return out[i].Count > out[j].Count
			}
			return out[i].Name < out[j].Name
		})
		return out
	}
	return count(func(d death) string { return d.victim }), count(func(d death) string { return d.killer })
}

func (r *Reporter) deathTallies(ctx context.Context, period Period) (victims, killers []tally, err error) {
	from, to := period.Window(r.now())
	log, err := r.src.AlertLog(ctx, from, to)
	if err != nil {
		return nil, nil, err
	}
	victims, killers = tallyDeaths(log)
	return victims, killers, nil
}

// --- reports ---

// TopDeaths ranks adventurers by deaths.
func (r *Reporter) TopDeaths(ctx context.Context, period Period) (string, error) {
	victims, _, err := r.deathTallies(ctx, period)
	if err != nil {
		return "", err
	}
	from, to, err := r.span(ctx, database.TableAlerts, period)
	if err != nil {
		return "", err
	}
	var lines []string
	for _, v := range victims {
		lines = append(lines, fmt.Sprintf("%s died %d times. Was raised %d times (%d%%).",
			v.Name, v.Count, v.Raised, percent(v.Raised, v.Count)))
	}
	return r.rating("Top deaths rating", from, to, lines), nil
}

// MostDeadly ranks killers.
func (r *Reporter) MostDeadly(ctx context.Context, period Period) (string, error) {
	_, killers, err := r.deathTallies(ctx, period)
	if err != nil {
		return "", err
	}
	from, to, err := r.span(ctx, database.TableAlerts, period)
	if err != nil {
		return "", err
	}
	var lines []string
	for _, k := range killers {
		lines = append(lines, fmt.Sprintf("%s killed %d times. Raised %d times (%d%%).",
			k.Name, k.Count, k.Raised, percent(k.Raised, k.Count)))
	}
	return r.rating("Most deadly rating", from, to, lines), nil
}

// MostDeadlyFor ranks the killers of one adventurer.
func (r *Reporter) MostDeadlyFor(ctx context.Context, adventurer string, period Period) (string, error) {
	from, to := period.Window(r.now())
	rows, err := r.src.QueryStats(ctx, database.StatQuery{
		Table: database.TableAlerts, GroupBy: "doer", AlertType: database.IntPtr(database.AlertTypeDeath),
		MatchColumn: "adventurer", MatchValue: adventurer, From: from, To: to,
	})
	if err != nil {
		return "", err
	}
	if from, to, err = r.span(ctx, database.TableAlerts, period); err != nil {
		return "", err
	}
	var lines []string
	for _, row := range rows {
		lines = append(lines, fmt.Sprintf("%s killed you %d times.", row.Key, row.Count))
	}
	return r.rating(fmt.Sprintf("Most deadly rating for %s", adventurer), from, to, lines), nil
}

// VictimsOf ranks the victims of one killer, found by fuzzy name.
func (r *Reporter) VictimsOf(ctx context.Context, mobile string, period Period) (string, error) {
	names, err := r.src.KillerNames(ctx)
	if err != nil {
		return "", err
	}
	killer, ok := LookupName(mobile, names)
	if !ok {
		return fmt.Sprintf("Unable to find mobile with name '%s'", mobile), nil
	}

	from, to := period.Window(r.now())
	rows, err := r.src.QueryStats(ctx, database.StatQuery{
		Table: database.TableAlerts, GroupBy: "adventurer", AlertType: database.IntPtr(database.AlertTypeDeath),
		MatchColumn: "doer", MatchValue: killer, From: from, To: to,
	})
	if err != nil {
		return "", err
	}
	if from, to, err = r.span(ctx, database.TableAlerts, period); err != nil {
		return "", err
	}
	var lines []string
	for _, row := range rows {
		lines = append(lines, fmt.Sprintf("Killed %s %d times.", row.Key, row.Count))
	}
	return r.rating(fmt.Sprintf("Victims of rating for '%s'", killer), from, to, lines), nil
}

func (r *Reporter) raisers(ctx context.Context, period Period) ([]database.StatRow, error) {
	from, to := period.Window(r.now())
	return r.src.QueryStats(ctx, database.StatQuery{
		Table: database.TableAlerts, GroupBy: "doer", AlertType: database.IntPtr(database.AlertTypeRaise),
		From: from, To: to,
	})
}

// TopRaisers ranks adventurers by raises performed.
func (r *Reporter) TopRaisers(ctx context.Context, period Period) (string, error) {
	rows, err := r.raisers(ctx, period)
	if err != nil {
		return "", err
	}
	from, to, err := r.span(ctx, database.TableAlerts, period)
	if err != nil {
		return "", err
	}
	var lines []string
	for _, row := range rows {
		lines = append(lines, fmt.Sprintf("%s raised %d times.", row.Key, row.Count))
	}
	return r.rating("Top raisers rating", from, to, lines), nil
}

func (r *Reporter) leaders(ctx context.Context, period Period) ([]LeaderScore, []RealGroup, error) {
	from, to := period.Window(r.now())
	sessions, err := r.src.GroupSessions(ctx, from, to)
	if err != nil {
		return nil, nil, err
	}
	groups := Segment(sessions)
	return ScoreLeaders(groups, r.opts.ExcludedLeaders), groups, nil
}

// BestLeaders ranks group leaders by score.
func (r *Reporter) BestLeaders(ctx context.Context, period Period) (string, error) {
	scores, _, err := r.leaders(ctx, period)
	if err != nil {
		return "", err
	}
	from, to, err := r.span(ctx, database.TableGroups, period)
	if err != nil {
		return "", err
	}
	var lines []string
	for _, s := range scores {
		lines = append(lines, fmt.Sprintf("%s led %d groups. Average group size was %d. Overall score is %s.",
			s.Leader, s.RealGroupsCount, s.AverageSize(), humanize.Comma(s.Score)))
	}
	return r.rating("Best leaders rating", from, to, lines), nil
}

// BestSellers ranks items by times sold.
func (r *Reporter) BestSellers(ctx context.Context, period Period) (string, error) {
	from, to := period.Window(r.now())
	rows, err := r.src.QueryStats(ctx, database.StatQuery{
		Table: database.TableSales, GroupBy: "item", Sum: "price", From: from, To: to,
	})
	if err != nil {
		return "", err
	}
	if from, to, err = r.span(ctx, database.TableSales, period); err != nil {
		return "", err
	}
	var lines []string
	for _, row := range rows {
		avg := int64(math.Round(float64(row.Sum) / float64(row.Count)))
		lines = append(lines, fmt.Sprintf("%s was sold %d times. Average price was %s.",
			scrape.ItemLink(r.opts.ItemSearchURL, row.Key), row.Count, humanize.Comma(avg)))
	}
	return r.rating("Best sellers rating", from, to, lines), nil
}

func (r *Reporter) merchants(ctx context.Context, period Period, bySum bool) ([]database.StatRow, error) {
	from, to := period.Window(r.now())
	return r.src.QueryStats(ctx, database.StatQuery{
		Table: database.TableSales, GroupBy: "seller", Sum: "price", OrderBySum: bySum, From: from, To: to,
	})
}

// TopMerchants ranks sellers by items sold, or by gold earned when bySum.
func (r *Reporter) TopMerchants(ctx context.Context, period Period, bySum bool) (string, error) {
	rows, err := r.merchants(ctx, period, bySum)
	if err != nil {
		return "", err
	}
	from, to, err := r.span(ctx, database.TableSales, period)
	if err != nil {
		return "", err
	}
	var lines []string
	for _, row := range rows {
		lines = append(lines, fmt.Sprintf("%s sold %d items for the total amount of %s gold.",
			row.Key, row.Count, humanize.Comma(row.Sum)))
	}
	return r.rating("Top merchants rating", from, to, lines), nil
}

func placeOf[T any](rows []T, match func(T) bool) (int, bool) {
	for i, row := range rows {
		if match(row) {
			return i, true
		}
	}
	return 0, false
}

// StatFor summarizes one adventurer.
func (r *Reporter) StatFor(ctx context.Context, adventurer string, period Period) (string, error) {
	victims, _, err := r.deathTallies(ctx, period)
	if err != nil {
		return "", err
	}
	raisers, err := r.raisers(ctx, period)
	if err != nil {
		return "", err
	}
	merchants, err := r.merchants(ctx, period, false)
	if err != nil {
		return "", err
	}
	from, to, err := r.span(ctx, database.TableAlerts, period)
	if err != nil {
		return "", err
	}

	is := func(name string) bool { return strings.EqualFold(name, adventurer) }
	var b strings.Builder
	fmt.Fprintf(&b, "Stat for %s from %s to %s.\n\n", adventurer, r.date(from), r.date(to))

	if i, ok := placeOf(victims, func(t tally) bool { return is(t.Name) }); ok {
		fmt.Fprintf(&b, "You died %d times (%s).\n", victims[i].Count, placeName(i))
		fmt.Fprintf(&b, "You were raised %d times.\n", victims[i].Raised)
	} else {
		b.WriteString("You died 0 times.\nYou were raised 0 times.\n")
	}
	if i, ok := placeOf(raisers, func(s database.StatRow) bool { return is(s.Key) }); ok {
		fmt.Fprintf(&b, "You raised someone %d times (%s).\n", raisers[i].Count, placeName(i))
	} else {
		b.WriteString("You raised someone 0 times.\n")
	}
	if i, ok := placeOf(merchants, func(s database.StatRow) bool { return is(s.Key) }); ok {
		fmt.Fprintf(&b, "You sold %d items for %s gold coins at the auction (%s).",
			merchants[i].Count, humanize.Comma(merchants[i].Sum), placeName(i))
	} else {
		b.WriteString("You sold 0 items at the auction.")
	}
	return b.String(), nil
}

// GameStats summarizes the whole period.
func (r *Reporter) GameStats(ctx context.Context, period Period) (string, error) {
	from, to := period.Window(r.now())
	log, err := r.src.AlertLog(ctx, from, to)
	if err != nil {
		return "", err
	}
	victims, killers := tallyDeaths(log)

	var raises int64
	raised, raisers := make(map[string]bool), make(map[string]bool)
	for _, rec := range log {
		if rec.Type == database.AlertTypeRaise {
			raises++
			raised[rec.Adventurer] = true
			raisers[rec.Doer] = true
		}
	}
	var deaths int64
	for _, v := range victims {
		deaths += v.Count
	}

	sessions, err := r.src.GroupSessions(ctx, from, to)
	if err != nil {
		return "", err
	}
	byGroup, solo, err := r.src.EpicKills(ctx, from, to)
	if err != nil {
		return "", err
	}
	sellers, err := r.merchants(ctx, period, false)
	if err != nil {
		return "", err
	}
	var sold, gold int64
	for _, s := range sellers {
		sold += s.Count
		gold += s.Sum
	}

	if from, to, err = r.span(ctx, database.TableAlerts, period); err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Game stats from %s to %s.\n\n", r.date(from), r.date(to))
	fmt.Fprintf(&b, "%d adventurers died %s times, killed by %d different killers.\n",
		len(victims), humanize.Comma(deaths), len(killers))
	fmt.Fprintf(&b, "%d adventurers were raised %s times by %d different raisers.\n",
		len(raised), humanize.Comma(raises), len(raisers))
	fmt.Fprintf(&b, "%d groups ran.\n", len(Segment(sessions)))
	fmt.Fprintf(&b, "Epics were defeated %d times by groups and %d times solo.\n", byGroup, solo)
	fmt.Fprintf(&b, "%s items were sold by %d sellers for %s gold.",
		humanize.Comma(sold), len(sellers), humanize.Comma(gold))
	return b.String(), nil
}

// EpicHistory lists the events of one epic, found by fuzzy name.
func (r *Reporter) EpicHistory(ctx context.Context, name string) (string, error) {
	names, err := r.src.EpicNames(ctx)
	if err != nil {
		return "", err
	}
	epic, ok := LookupName(name, names)
	if !ok {
		return fmt.Sprintf("Unable to find epic with name '%s'", name), nil
	}
	events, err := r.src.EpicHistory(ctx, epic)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Epic history for '%s'.\n\n", epic)
	for _, e := range events {
		var what string
		switch {
		case e.Kind == model.EpicAppeared:
			what = "Appeared"
		case e.Leader != "":
			what = fmt.Sprintf("Defeated by %s's group", e.Leader)
		default:
			what = "Disappeared"
		}
		fmt.Fprintf(&b, "%s: %s\n", r.dateTime(e.At), what)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// --- composite rating ---

type category struct {
	label  string
	weight int
	names  []string
}

type contender struct {
	name   string
	score  int
	places map[string]int
}

// Top combines the leader, raiser, merchant and death ratings. Every place
// within the first RatingMaximum earns RatingMaximum minus the place index;
// leader places count double.
func (r *Reporter) Top(ctx context.Context, period Period) (string, error) {
	scores, _, err := r.leaders(ctx, period)
	if err != nil {
		return "", err
	}
	raisers, err := r.raisers(ctx, period)
	if err != nil {
		return "", err
	}
	merchants, err := r.merchants(ctx, period, false)
	if err != nil {
		return "", err
	}
	victims, _, err := r.deathTallies(ctx, period)
	if err != nil {
		return "", err
	}
	from, to, err := r.span(ctx, database.TableAlerts, period)
	if err != nil {
		return "", err
	}

	cats := []category{{label: "Leaders", weight: 2}, {label: "Raisers", weight: 1},
		{label: "Merchants", weight: 1}, {label: "Deaths", weight: 1}}
	for _, s := range scores {
		cats[0].names = append(cats[0].names, s.Leader)
	}
	for _, s := range raisers {
		cats[1].names = append(cats[1].names, s.Key)
	}
	for _, s := range merchants {
		cats[2].names = append(cats[2].names, s.Key)
	}
	for _, v := range victims {
		cats[3].names = append(cats[3].names, v.Name)
	}

	return r.renderTop(from, to, cats), nil
}

func (r *Reporter) renderTop(from, to time.Time, cats []category) string {
	idx := make(map[string]int)
	var all []contender
	for _, c := range cats {
		for place, name := range c.names {
			if place >= RatingMaximum {
				break
			}
			i, ok := idx[name]
			if !ok {
				i = len(all)
				idx[name] = i
				all = append(all, contender{name: name, places: make(map[string]int)})
			}
			all[i].score += (RatingMaximum - place) * c.weight
			all[i].places[c.label] = place
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].name < all[j].name
	})

	var b strings.Builder
	fmt.Fprintf(&b, "Top rating from %s to %s.\n\n", r.date(from), r.date(to))
	if len(all) == 0 {
		b.WriteString("Nothing to show yet.")
		return b.String()
	}

	for place, start := 0, 0; start < len(all) && place < RatingMaximum; place++ {
		end := start
		for end < len(all) && all[end].score == all[start].score {
			end++
		}
		tied := all[start:end]

		names := make([]string, len(tied))
		for i, c := range tied {
			names[i] = c.name
		}
		fmt.Fprintf(&b, "%s%s with %d points.\n", placePrefix(place), strings.Join(names, ", "), tied[0].score)

		for _, cat := range cats {
			var parts []string
			for _, c := range tied {
				p, ok := c.places[cat.label]
				if !ok {
					continue
				}
				part := fmt.Sprintf("%s (%d)", placeName(p), (RatingMaximum-p)*cat.weight)
				if len(tied) > 1 {
					part = c.name + " " + part
				}
				parts = append(parts, part)
			}
			if len(parts) > 0 {
				fmt.Fprintf(&b, "> %s: %s\n", cat.label, strings.Join(parts, ", "))
			}
		}
		start = end
	}
	return strings.TrimRight(b.String(), "\n")
}
