// Package stats turns the append-only stat log into rankings and reports.
package stats

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/bryan-buckman/mudwatch/internal/model"
)

// Segmentation tunables.
const (
	// SegmentWindow is how many recent real groups a session may join.
	SegmentWindow = 4
	// ContinuationGap is the largest gap between a finish and the next start
	// that still counts as the same real group.
	ContinuationGap = 8 * time.Second
	// MinLeadCredit is the lead time credited to a leader who briefly took
	// over in the middle of someone else's group.
	MinLeadCredit = 30 * time.Minute
	// MinSessionSize is the smallest session that counts at all.
	MinSessionSize = 3
)

// RealGroup is a chain of sessions that continue one another: leader
// changes, moves and resizes of the same party.
type RealGroup struct {
	Rows     []model.GroupSession
	Finished time.Time
}

// Segment folds finished sessions, in insertion order, into real groups.
// A session joins the most recent of the last SegmentWindow groups whose last
// finish is less than ContinuationGap away from its start.
func Segment(rows []model.GroupSession) []RealGroup {
	var out []RealGroup
	for _, row := range rows {
		if row.Ongoing() || row.Size < MinSessionSize {
			continue
		}

		joined := false
		for i := len(out) - 1; i >= 0 && i >= len(out)-SegmentWindow; i-- {
			gap := out[i].Finished.Sub(row.StartedAt)
			if gap < 0 {
				gap = -gap
			}
			if gap < ContinuationGap {
				out[i].Rows = append(out[i].Rows, row)
				out[i].Finished = row.FinishedAt
				joined = true
				break
			}
		}
		if !joined {
			out = append(out, RealGroup{Rows: []model.GroupSession{row}, Finished: row.FinishedAt})
		}
	}
	return out
}

// LeaderScore is the ranking entry of one leader.
type LeaderScore struct {
	Leader          string `json:"leader"`
	RealGroupsCount int    `json:"realGroupsCount"`
	GroupsCount     int    `json:"groupsCount"`
	TotalSize       int    `json:"totalSize"`
	Score           int64  `json:"score"`
}

// AverageSize is the rounded mean session size.
func (s LeaderScore) AverageSize() int {
	if s.GroupsCount == 0 {
		return 0
	}
	return int(math.Round(float64(s.TotalSize) / float64(s.GroupsCount)))
}

// leadTime returns the credited lead time of rows[i].
func leadTime(rows []model.GroupSession, i int) time.Duration {
	row := rows[i]
	lead := row.FinishedAt.Sub(row.StartedAt)

	neighbours := 0
	bordered := true
	for _, j := range []int{i - 1, i + 1} {
		if j < 0 || j >= len(rows) {
			continue
		}
		neighbours++
		if rows[j].Leader == row.Leader {
			bordered = false
		}
	}
	if neighbours > 0 && bordered && lead < MinLeadCredit {
		lead = MinLeadCredit
	}
	return lead
}

// ScoreLeaders ranks leaders by score, highest first. Equal scores keep
// first-seen order. Leaders in excluded are left out, compared
// case-insensitively.
func ScoreLeaders(groups []RealGroup, excluded []string) []LeaderScore {
	skip := make(map[string]bool, len(excluded))
	for _, name := range excluded {
		skip[strings.ToLower(name)] = true
	}

	index := make(map[string]int)
	var out []LeaderScore
	for _, g := range groups {
		seen := make(map[string]bool)
		for i, row := range g.Rows {
			if skip[strings.ToLower(row.Leader)] {
				continue
			}
			pos, ok := index[row.Leader]
			if !ok {
				pos = len(out)
				index[row.Leader] = pos
				out = append(out, LeaderScore{Leader: row.Leader})
			}
			s := &out[pos]
			if !seen[row.Leader] {
				seen[row.Leader] = true
				s.RealGroupsCount++
			}
			s.GroupsCount++
			s.TotalSize += row.Size
			secs := leadTime(g.Rows, i).Seconds()
			if secs < 0 {
				secs = 0
			}
			s.Score += int64(math.Round(math.Sqrt(secs) * float64(row.Size)))
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
