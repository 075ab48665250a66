package reconcile

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/bryan-buckman/mudwatch/internal/model"
)

func post(thread, poster string) model.Post {
	return model.Post{Thread: thread, ThreadLink: "/t/" + thread, Poster: poster, PosterLink: "/u/" + poster}
}

func TestForum(t *testing.T) {
	old := []model.Post{post("Rules", "Ann"), post("Bugs", "Bob")}

	testCases := []struct {
		name  string
		fresh []model.Post
		want  []model.Post
		lost  bool
	}{
		{
			name:  "nothing new",
			fresh: old,
			want:  []model.Post{},
		},
		{
			name:  "two new threads",
			fresh: []model.Post{post("Guilds", "Cid"), post("Trade", "Dee"), post("Rules", "Ann"), post("Bugs", "Bob")},
			want:  []model.Post{post("Trade", "Dee"), post("Guilds", "Cid")},
		},
		{
			name:  "reply to the top thread",
			fresh: []model.Post{post("Rules", "Eve"), post("Bugs", "Bob")},
			want:  []model.Post{post("Rules", "Eve")},
		},
		{
			name:  "new thread and reply on top",
			fresh: []model.Post{post("Guilds", "Cid"), post("Rules", "Eve")},
			want:  []model.Post{post("Rules", "Eve"), post("Guilds", "Cid")},
		},
		{
			name:  "cursor lost",
			fresh: []model.Post{post("Guilds", "Cid")},
			lost:  true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := Forum(old, tc.fresh)
			require.Equal(t, tc.lost, res.Lost)
			if diff := cmp.Diff(tc.want, res.New); diff != "" {
				t.Errorf("new posts mismatch (-want +got):\n%s", diff)
			}
			require.Equal(t, tc.fresh, res.Next)
		})
	}
}

func TestForumFirstRunAndEmpty(t *testing.T) {
	fresh := []model.Post{post("Rules", "Ann")}

	res := Forum(nil, fresh)
	require.Empty(t, res.New)
	require.Equal(t, fresh, res.Next)

	res = Forum(fresh, nil)
	require.True(t, res.Skipped)
	require.Equal(t, fresh, res.Next)
}

func TestFeedIdempotent(t *testing.T) {
	fresh := []model.Post{post("Guilds", "Cid"), post("Rules", "Ann")}
	first := Forum([]model.Post{post("Rules", "Ann")}, fresh)
	require.Len(t, first.New, 1)

	second := Forum(first.Next, fresh)
	require.Empty(t, second.New)
	require.False(t, second.Lost)
}

func TestAlertsDeathsFirst(t *testing.T) {
	death := func(who, by, at string) model.Alert {
		return model.Alert{Type: model.AlertDeath, Adventurer: who, Doer: by, Time: at}
	}
	raise := func(who, by, at string) model.Alert {
		return model.Alert{Type: model.AlertRaise, Adventurer: who, Doer: by, Time: at}
	}

	old := []model.Alert{death("Ann", "a troll", "10:00")}
	fresh := []model.Alert{
		raise("Bob", "Cid", "10:03"),
		death("Bob", "a dragon", "10:02"),
		raise("Ann", "Cid", "10:01"),
		death("Ann", "a troll", "10:00"),
	}

	res := Alerts(old, fresh)
	want := []model.Alert{
		death("Bob", "a dragon", "10:02"),
		raise("Ann", "Cid", "10:01"),
		raise("Bob", "Cid", "10:03"),
	}
	if diff := cmp.Diff(want, res.New); diff != "" {
		t.Errorf("alerts mismatch (-want +got):\n%s", diff)
	}

	// Same killer at a different time is a different row.
	res = Alerts(old, []model.Alert{death("Ann", "a troll", "11:00")})
	require.True(t, res.Lost)
	require.Empty(t, res.New)
}
