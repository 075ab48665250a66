package reconcile

import (
	"sort"
	"time"

	"github.com/bryan-buckman/mudwatch/internal/model"
)

// Group thresholds.
const (
	// LeaderChangeOverlap is the share of members both the vanished group and
	// its successor must have in common.
	LeaderChangeOverlap = 0.6
	// SizeBucket is the member count granularity for resize notices.
	SizeBucket = 4
	// MinGroupSize drops groups that are too small to be interesting.
	MinGroupSize = 3
)

// GroupEventKind names a group transition.
type GroupEventKind int

const (
	GroupStarted GroupEventKind = iota
	GroupRenamed
	GroupMoved
	GroupGrew
	GroupShrank
	GroupLeaderChanged
	GroupOver
)

func (k GroupEventKind) String() string {
	switch k {
	case GroupStarted:
		return "started"
	case GroupRenamed:
		return "renamed"
	case GroupMoved:
		return "moved"
	case GroupGrew:
		return "grew"
	case GroupShrank:
		return "shrank"
	case GroupLeaderChanged:
		return "leader_changed"
	case GroupOver:
		return "over"
	default:
		return "unknown"
	}
}

// GroupEvent is one group transition. Group is the state after the change
// (for GroupOver, the last state seen). Previous is the state before it and
// is zero for GroupStarted and GroupOver.
type GroupEvent struct {
	Kind     GroupEventKind
	Group    model.Group
	Previous model.Group
}

// RestartsSession reports whether the event ends the current leadership
// record and opens a new one.
func (e GroupEvent) RestartsSession() bool {
	switch e.Kind {
	case GroupMoved, GroupGrew, GroupShrank, GroupLeaderChanged:
		return true
	}
	return false
}

// GroupResult is the outcome of one groups pass.
type GroupResult struct {
	Events []GroupEvent
	Next   model.GroupSnapshot
}

// Overlap returns the shared member count of two groups and the share it
// represents of each side. Members are compared as sets.
func Overlap(a, b model.Group) (matches int, aRate, bRate float64) {
	as := memberSet(a)
	bs := memberSet(b)
	for m := range bs {
		if _, ok := as[m]; ok {
			matches++
		}
	}
	if len(as) > 0 {
		aRate = float64(matches) / float64(len(as))
	}
	if len(bs) > 0 {
		bRate = float64(matches) / float64(len(bs))
	}
	return matches, aRate, bRate
}

func memberSet(g model.Group) map[string]struct{} {
	set := make(map[string]struct{}, len(g.Members))
	for _, m := range g.Members {
		set[m] = struct{}{}
	}
	return set
}

// IsSuccessor reports whether cand took over the group old used to lead.
func IsSuccessor(old, cand model.Group) bool {
	_, oldRate, newRate := Overlap(old, cand)
	return oldRate >= LeaderChangeOverlap && newRate >= LeaderChangeOverlap
}

func bucket(g model.Group) int {
	return g.Size() / SizeBucket
}

// Groups reconciles the parties page. old is nil on the first run; fresh is
// in page order.
func Groups(old model.GroupSnapshot, fresh []model.Group, now time.Time) GroupResult {
	groups := make([]model.Group, 0, len(fresh))
	seen := make(map[string]bool, len(fresh))
	for _, g := range fresh {
		if g.Size() < MinGroupSize || seen[g.Leader] {
			continue
		}
		seen[g.Leader] = true
		groups = append(groups, g.Clone())
	}

	next := make(model.GroupSnapshot, len(groups))

	if old == nil {
		for _, g := range groups {
			g.OriginalLeader = g.Leader
			g.StartedAt = now
			g.MovedToContinentAt = now
			next[g.Leader] = g
		}
		return GroupResult{Next: next}
	}

	var res GroupResult

	// Vanished leaders first: they decide which fresh groups are continuations.
	predecessor := make(map[string]model.Group)
	for _, leader := range sortedLeaders(old) {
		if seen[leader] {
			continue
		}
		prev := old[leader]

		succ := -1
		for i, cand := range groups {
			if _, tracked := old[cand.Leader]; tracked {
				continue
			}
			if _, claimed := predecessor[cand.Leader]; claimed {
				continue
			}
			if IsSuccessor(prev, cand) {
				succ = i
				break
			}
		}

		if succ < 0 {
			res.Events = append(res.Events, GroupEvent{Kind: GroupOver, Group: prev.Clone()})
			continue
		}

		g := &groups[succ]
		g.OriginalLeader = prev.OriginalLeader
		g.StartedAt = prev.StartedAt
		g.MovedToContinentAt = prev.MovedToContinentAt
		predecessor[g.Leader] = prev
		res.Events = append(res.Events, GroupEvent{
			Kind:     GroupLeaderChanged,
			Group:    g.Clone(),
			Previous: prev.Clone(),
		})
	}

	for _, g := range groups {
		prev, ok := old[g.Leader]
		if ok {
			g.OriginalLeader = prev.OriginalLeader
			g.StartedAt = prev.StartedAt
			g.MovedToContinentAt = prev.MovedToContinentAt
		} else if prev, ok = predecessor[g.Leader]; !ok {
			g.OriginalLeader = g.Leader
			g.StartedAt = now
			g.MovedToContinentAt = now
			res.Events = append(res.Events, GroupEvent{Kind: GroupStarted, Group: g.Clone()})
			next[g.Leader] = g
			continue
		}

		if g.Name != prev.Name {
			res.Events = append(res.Events, GroupEvent{Kind: GroupRenamed, Group: g.Clone(), Previous: prev.Clone()})
		}
		if g.Continent != prev.Continent {
			g.MovedToContinentAt = now
			res.Events = append(res.Events, GroupEvent{Kind: GroupMoved, Group: g.Clone(), Previous: prev.Clone()})
		}
		switch nb, ob := bucket(g), bucket(prev); {
		case nb > ob:
			res.Events = append(res.Events, GroupEvent{Kind: GroupGrew, Group: g.Clone(), Previous: prev.Clone()})
		case nb < ob:
			res.Events = append(res.Events, GroupEvent{Kind: GroupShrank, Group: g.Clone(), Previous: prev.Clone()})
		}
		next[g.Leader] = g
	}

	res.Next = next
	return res
}

func sortedLeaders(s model.GroupSnapshot) []string {
	out := make([]string, 0, len(s))
	for leader := range s {
		out = append(out, leader)
	}
	sort.Strings(out)
	return out
}
