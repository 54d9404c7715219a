// Package notifier periodically simulates activity from other users by notifying a fixed set
// of recipients.
package notifier

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jhchabran/chaupal"
	"github.com/jhchabran/chaupal/metrics"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultSchedule fires a round of notifications every thirty seconds.
const DefaultSchedule = "@every 30s"

var (
	actors   = []string{"Asha", "Ravi", "Kiran", "Neel", "Anita"}
	messages = []string{chaupal.MsgLiked, chaupal.MsgCommented, chaupal.MsgFollowed}
)

// Store is the subset of chaupal.Store the notifier needs.
type Store interface {
	FindUser(ID string) (*chaupal.User, error)
	InsertNotification(notification *chaupal.Notification) error
}

type Notifier struct {
	store      Store
	recipients []string
	logger     zerolog.Logger

	mu      sync.Mutex
	rand    *rand.Rand
	now     func() time.Time
	cron    *cron.Cron
	entryID cron.EntryID
	started bool
}

type Option func(*Notifier)

// WithRand makes the notifier draw actors and messages from r.
func WithRand(r *rand.Rand) Option {
	return func(n *Notifier) { n.rand = r }
}

// WithClock makes the notifier timestamp notifications with now.
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) { n.now = now }
}

func New(store Store, recipients []string, logger zerolog.Logger, opts ...Option) *Notifier {
	n := &Notifier{
		store:      store,
		recipients: recipients,
		logger:     logger,
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
		now:        chaupal.NowFunc,
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Tick notifies every recipient whose quiet hours are off, once, from a random actor. It keeps
// going when a recipient fails and returns the first error met.
func (n *Notifier) Tick() ([]*chaupal.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	var firstErr error
	sent := []*chaupal.Notification{}

	for _, id := range n.recipients {
		user, err := n.store.FindUser(id)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("recipient %q: %w", id, err)
			}
			continue
		}
		if user.Settings.QuietHours {
			n.logger.Debug().Str("recipient", id).Msg("quiet hours, skipping")
			continue
		}

		notif := &chaupal.Notification{
			RecipientID: user.ID,
			Actor:       actors[n.rand.Intn(len(actors))],
			Message:     messages[n.rand.Intn(len(messages))],
			CreatedAt:   n.now(),
		}
		if err := n.store.InsertNotification(notif); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("recipient %q: %w", id, err)
			}
			continue
		}

		metrics.NotificationSent("notifier")
		sent = append(sent, notif)
	}

	return sent, firstErr
}

// Start schedules Tick according to schedule, a cron expression or descriptor such as
// "@every 30s". The schedule stops when ctx is done or Stop is called.
func (n *Notifier) Start(ctx context.Context, schedule string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.started {
		return fmt.Errorf("notifier already started")
	}

	entryID, err := n.cron.AddFunc(schedule, func() {
		sent, err := n.Tick()
		if err != nil {
			n.logger.Warn().Err(err).Msg("notification round failed")
		}
		n.logger.Debug().Int("count", len(sent)).Msg("notifications sent")
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", schedule, err)
	}
	n.entryID = entryID
	n.cron.Start()
	n.started = true

	go func() {
		<-ctx.Done()
		n.Stop()
	}()

	n.logger.Info().Str("schedule", schedule).Strs("recipients", n.recipients).Msg("notifier started")
	return nil
}

// Stop halts the schedule and waits for a running Tick to return. It is safe to call more
// than once.
func (n *Notifier) Stop() {
	n.mu.Lock()
	if !n.started {
		n.mu.Unlock()
		return
	}
	n.started = false
	n.cron.Remove(n.entryID)
	n.mu.Unlock()

	<-n.cron.Stop().Done()
}
