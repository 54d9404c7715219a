package notifier

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/jhchabran/chaupal"
	"github.com/jhchabran/chaupal/dataset"
	"github.com/jhchabran/chaupal/memstore"
	"github.com/rs/zerolog"
)

func newStore(c *qt.C) *memstore.MemStore {
	recs, err := dataset.Default().Records(time.Now())
	c.Assert(err, qt.IsNil)
	return memstore.NewFromRecords(recs)
}

func TestTick(t *testing.T) {
	c := qt.New(t)
	now, _ := time.Parse(time.RFC3339, "2025-10-01T12:00:00Z")
	clock := func() time.Time { return now }

	c.Run("notifies every recipient", func(c *qt.C) {
		store := newStore(c)
		n := New(store, []string{"u_me", "u1"}, zerolog.Nop(), WithRand(rand.New(rand.NewSource(1))), WithClock(clock))

		sent, err := n.Tick()
		c.Assert(err, qt.IsNil)
		c.Assert(sent, qt.HasLen, 2)

		notifs, err := store.ListNotifications("u_me")
		c.Assert(err, qt.IsNil)
		c.Assert(notifs, qt.HasLen, 1)
		c.Assert(notifs[0].CreatedAt, qt.Equals, now)
		c.Assert(notifs[0].ID, qt.Not(qt.Equals), "")
		c.Assert(actors, qt.Contains, notifs[0].Actor)
		c.Assert(messages, qt.Contains, notifs[0].Message)
	})

	c.Run("quiet hours are respected", func(c *qt.C) {
		store := newStore(c)
		c.Assert(store.UpdateSettings("u_me", chaupal.UserSettings{QuietHours: true}), qt.IsNil)
		n := New(store, []string{"u_me", "u1"}, zerolog.Nop(), WithClock(clock))

		sent, err := n.Tick()
		c.Assert(err, qt.IsNil)
		c.Assert(sent, qt.HasLen, 1)
		c.Assert(sent[0].RecipientID, qt.Equals, "u1")

		notifs, err := store.ListNotifications("u_me")
		c.Assert(err, qt.IsNil)
		c.Assert(notifs, qt.HasLen, 0)
	})

	c.Run("same seed, same notifications", func(c *qt.C) {
		a := New(newStore(c), []string{"u_me"}, zerolog.Nop(), WithRand(rand.New(rand.NewSource(42))), WithClock(clock))
		b := New(newStore(c), []string{"u_me"}, zerolog.Nop(), WithRand(rand.New(rand.NewSource(42))), WithClock(clock))

		for i := 0; i < 10; i++ {
			sa, err := a.Tick()
			c.Assert(err, qt.IsNil)
			sb, err := b.Tick()
			c.Assert(err, qt.IsNil)
			c.Assert(sa[0].Actor, qt.Equals, sb[0].Actor)
			c.Assert(sa[0].Message, qt.Equals, sb[0].Message)
		}
	})

	c.Run("unknown recipients don't stop the round", func(c *qt.C) {
		store := newStore(c)
		n := New(store, []string{"ghost", "u1"}, zerolog.Nop(), WithClock(clock))

		sent, err := n.Tick()
		c.Assert(errors.Is(err, chaupal.ErrNotFound), qt.IsTrue)
		c.Assert(err, qt.ErrorMatches, `recipient "ghost": .*`)
		c.Assert(sent, qt.HasLen, 1)
	})
}

func TestStart(t *testing.T) {
	c := qt.New(t)

	c.Run("invalid schedule", func(c *qt.C) {
		n := New(newStore(c), []string{"u_me"}, zerolog.Nop())
		err := n.Start(context.Background(), "every now and then")
		c.Assert(err, qt.ErrorMatches, `schedule "every now and then": .*`)
	})

	c.Run("start twice", func(c *qt.C) {
		n := New(newStore(c), []string{"u_me"}, zerolog.Nop())
		c.Assert(n.Start(context.Background(), DefaultSchedule), qt.IsNil)
		defer n.Stop()

		c.Assert(n.Start(context.Background(), DefaultSchedule), qt.ErrorMatches, "notifier already started")
	})

	c.Run("cancelling the context stops the schedule", func(c *qt.C) {
		n := New(newStore(c), []string{"u_me"}, zerolog.Nop())
		ctx, cancel := context.WithCancel(context.Background())
		c.Assert(n.Start(ctx, DefaultSchedule), qt.IsNil)

		cancel()
		c.Assert(func() bool {
			deadline := time.Now().Add(time.Second)
			for time.Now().Before(deadline) {
				n.mu.Lock()
				started := n.started
				n.mu.Unlock()
				if !started {
					return true
				}
				time.Sleep(5 * time.Millisecond)
			}
			return false
		}(), qt.IsTrue)

		// stopping again is harmless
		n.Stop()
	})
}
