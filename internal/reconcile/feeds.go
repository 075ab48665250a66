package reconcile

import (
	"github.com/bryan-buckman/mudwatch/internal/match"
	"github.com/bryan-buckman/mudwatch/internal/model"
)

// FeedResult is the outcome of a newest-first feed pass.
type FeedResult[T any] struct {
	// New holds unseen items, oldest first.
	New  []T
	Next []T
	// Lost is set when the previous top item is no longer on the page.
	Lost    bool
	Skipped bool
}

func feed[T any](old, fresh []T, equal func(a, b T) bool) (FeedResult[T], int) {
	if len(fresh) == 0 {
		return FeedResult[T]{Next: old, Skipped: true}, -1
	}
	res := FeedResult[T]{Next: append([]T(nil), fresh...)}
	if len(old) == 0 {
		return res, -1
	}
	cursor, ok := match.Cursor(old[0], fresh, equal)
	if !ok {
		res.Lost = true
		return res, -1
	}
	res.New = match.Fresh(fresh, cursor)
	return res, cursor
}

// Forum diffs the "Last Forum Posts" table. Posts are keyed by thread; a
// thread that stayed on top but got a new poster is reported as well.
func Forum(old, fresh []model.Post) FeedResult[model.Post] {
	res, cursor := feed(old, fresh, func(a, b model.Post) bool {
		return a.Thread == b.Thread
	})
	if cursor < 0 {
		return res
	}
	if top := fresh[cursor]; top.Poster != old[0].Poster {
		res.New = append([]model.Post{top}, res.New...)
	}
	return res
}

// Alerts diffs the live blog. Within the unseen prefix every death is
// returned before any raise or shock so that those can be attached to the
// death notice.
func Alerts(old, fresh []model.Alert) FeedResult[model.Alert] {
	res, cursor := feed(old, fresh, func(a, b model.Alert) bool {
		return a == b
	})
	if cursor <= 0 {
		return res
	}

	ordered := make([]model.Alert, 0, len(res.New))
	for _, a := range res.New {
		if a.Type == model.AlertDeath {
			ordered = append(ordered, a)
		}
	}
	for _, a := range res.New {
		if a.Type != model.AlertDeath {
			ordered = append(ordered, a)
		}
	}
	res.New = ordered
	return res
}
