package pgstore

import (
	"errors"
	"os"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/jhchabran/chaupal"
	"github.com/jhchabran/chaupal/dataset"
)

const defaultTestDB = "user=postgres dbname=chaupal_test sslmode=disable password=postgres host=127.0.0.1"

// newTestStore connects to the test database and seeds it with the default dataset. Tests are
// skipped when no database is reachable.
func newTestStore(c *qt.C) *PGStore {
	dsn := os.Getenv("CHAUPAL_TEST_DATABASE")
	if dsn == "" {
		dsn = defaultTestDB
	}

	store := New(dsn)
	if err := store.Connect(); err != nil {
		c.Skipf("no test database available: %v", err)
	}

	c.Assert(store.Truncate(), qt.IsNil)
	recs, err := dataset.Default().Records(time.Now())
	c.Assert(err, qt.IsNil)
	c.Assert(store.Seed(recs), qt.IsNil)

	c.Cleanup(func() {
		store.Truncate() // nolint:errcheck
		store.DB().Close()
	})

	return store
}

func TestPGStore(t *testing.T) {
	c := qt.New(t)

	c.Run("Snapshot", func(c *qt.C) {
		store := newTestStore(c)

		snap, err := store.Snapshot("u_me")
		c.Assert(err, qt.IsNil)
		c.Assert(snap.Version, qt.Equals, uint64(0))
		c.Assert(snap.Posts, qt.HasLen, 11)
		c.Assert(snap.Posts[0].ID, qt.Equals, "p1")
		c.Assert(snap.Posts[0].AuthorName, qt.Equals, "Anil Desai")
		c.Assert(snap.Posts[1].Payload.Album.Images, qt.HasLen, 3)
		c.Assert(snap.Posts[2].Comments, qt.HasLen, 3)
		c.Assert(snap.Viewer.Following.Sorted(), qt.DeepEquals, []string{"u2", "u5"})
		c.Assert(snap.Likes.Sorted(), qt.DeepEquals, []string{"p1", "p7"})
		c.Assert(snap.Bookmarks.Has("p2"), qt.IsTrue)

		_, err = store.Snapshot("ghost")
		c.Assert(errors.Is(err, chaupal.ErrNotFound), qt.IsTrue)
	})

	c.Run("InsertPost and InsertComment", func(c *qt.C) {
		store := newTestStore(c)

		post := chaupal.NewPost(chaupal.PostThread, "u6", "Lessons\nShip it", chaupal.Payload{
			Thread: &chaupal.Thread{Title: "Lessons", Parts: []string{"Lessons", "Ship it"}},
		})
		c.Assert(store.InsertPost(post), qt.IsNil)
		c.Assert(post.ID, qt.Not(qt.Equals), "")
		c.Assert(post.AuthorName, qt.Equals, "Arjun Singh")

		comment := chaupal.NewComment(post.ID, "Great list", "u2")
		c.Assert(store.InsertComment(comment), qt.IsNil)

		got, err := store.FindPost(post.ID)
		c.Assert(err, qt.IsNil)
		c.Assert(got.Payload.Thread.Parts, qt.DeepEquals, []string{"Lessons", "Ship it"})
		c.Assert(got.Comments, qt.HasLen, 1)
		c.Assert(got.Comments[0].AuthorName, qt.Equals, "Ravi Kumar")

		posts, err := store.ListPostsByAuthor("u6")
		c.Assert(err, qt.IsNil)
		c.Assert(posts, qt.HasLen, 2)
		c.Assert(posts[0].ID, qt.Equals, post.ID)

		snap, err := store.Snapshot("")
		c.Assert(err, qt.IsNil)
		c.Assert(snap.Version, qt.Equals, uint64(2))
		c.Assert(snap.Posts[0].ID, qt.Equals, post.ID)

		err = store.InsertComment(chaupal.NewComment("p404", "hello", "u2"))
		c.Assert(errors.Is(err, chaupal.ErrNotFound), qt.IsTrue)
	})

	c.Run("toggles keep counters in sync", func(c *qt.C) {
		store := newTestStore(c)

		liked, err := store.ToggleLike("u_me", "p3")
		c.Assert(err, qt.IsNil)
		c.Assert(liked, qt.IsTrue)
		post, err := store.FindPost("p3")
		c.Assert(err, qt.IsNil)
		c.Assert(post.Likes, qt.Equals, int64(3201))

		liked, err = store.ToggleLike("u_me", "p3")
		c.Assert(err, qt.IsNil)
		c.Assert(liked, qt.IsFalse)

		following, err := store.ToggleFollow("u_me", "u3")
		c.Assert(err, qt.IsNil)
		c.Assert(following, qt.IsTrue)
		neel, err := store.FindUser("u3")
		c.Assert(err, qt.IsNil)
		c.Assert(neel.Followers, qt.Equals, int64(22501))

		_, err = store.ToggleFollow("u_me", "u_me")
		c.Assert(err, qt.Equals, chaupal.ErrSelfFollow)

		bookmarked, err := store.ToggleBookmark("u_me", "p2")
		c.Assert(err, qt.IsNil)
		c.Assert(bookmarked, qt.IsFalse)

		joined, err := store.ToggleCommunityJoin("u_me", "c1")
		c.Assert(err, qt.IsNil)
		c.Assert(joined, qt.IsTrue)
		communities, err := store.ListCommunities("u_me")
		c.Assert(err, qt.IsNil)
		c.Assert(communities[0].Members, qt.Equals, int64(5201))
		c.Assert(communities[0].Joined, qt.IsTrue)

		going, err := store.ToggleEventRsvp("u_me", "e1")
		c.Assert(err, qt.IsNil)
		c.Assert(going, qt.IsTrue)
		events, err := store.ListEvents("u_me")
		c.Assert(err, qt.IsNil)
		c.Assert(events, qt.HasLen, 2)
		c.Assert(events[0].Going, qt.IsTrue)

		_, err = store.ToggleCommunityJoin("u_me", "c404")
		c.Assert(err, qt.ErrorMatches, `community "c404": not found`)
	})

	c.Run("settings and notifications", func(c *qt.C) {
		store := newTestStore(c)

		c.Assert(store.UpdateSettings("u1", chaupal.UserSettings{QuietHours: true}), qt.IsNil)
		u1, err := store.FindUser("u1")
		c.Assert(err, qt.IsNil)
		c.Assert(u1.Settings.QuietHours, qt.IsTrue)

		err = store.UpdateSettings("ghost", chaupal.UserSettings{})
		c.Assert(errors.Is(err, chaupal.ErrNotFound), qt.IsTrue)

		c.Assert(store.InsertNotification(chaupal.NewNotification("u_me", "Asha", chaupal.MsgLiked)), qt.IsNil)
		notifs, err := store.ListNotifications("u_me")
		c.Assert(err, qt.IsNil)
		c.Assert(notifs, qt.HasLen, 1)
		c.Assert(notifs[0].Message, qt.Equals, chaupal.MsgLiked)
	})
}
