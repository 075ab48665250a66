package reconcile

import (
	"time"

	"github.com/bryan-buckman/mudwatch/internal/match"
	"github.com/bryan-buckman/mudwatch/internal/model"
)

// EpicChange is an epic that appeared or vanished between two passes.
type EpicChange struct {
	Kind model.EpicEventKind
	Epic model.Epic
}

// EpicResult is the outcome of one epics pass.
type EpicResult struct {
	Changes []EpicChange
	Next    []model.Epic
	Skipped bool
}

// Epics reconciles the epic map. old is nil on the first run, in which case
// every epic is stamped with now and no change is reported.
func Epics(old, fresh []model.Epic, now time.Time) EpicResult {
	if len(fresh) == 0 {
		return EpicResult{Next: old, Skipped: true}
	}

	if old == nil {
		next := make([]model.Epic, len(fresh))
		for i, e := range fresh {
			e.SpawnedAt = now
			next[i] = e
		}
		return EpicResult{Next: next}
	}

	var res EpicResult
	matched := match.List(old, fresh, func(a, b model.Epic) bool {
		return a.Name == b.Name
	})

	spawned := make(map[int]time.Time, len(matched.Matched))
	mi := 0
	for i, e := range fresh {
		if mi < len(matched.Matched) && matched.Matched[mi].New == e {
			spawned[i] = matched.Matched[mi].Old.SpawnedAt
			mi++
		}
	}

	res.Next = make([]model.Epic, len(fresh))
	for i, e := range fresh {
		if at, ok := spawned[i]; ok {
			e.SpawnedAt = at
		} else {
			e.SpawnedAt = now
			res.Changes = append(res.Changes, EpicChange{Kind: model.EpicAppeared, Epic: e})
		}
		res.Next[i] = e
	}

	for _, e := range matched.Removed {
		res.Changes = append(res.Changes, EpicChange{Kind: model.EpicKilled, Epic: e})
	}
	return res
}
