package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhchabran/chaupal"
	"github.com/jhchabran/chaupal/dataset"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const (
	userColumns      = "users.id, users.name, users.handle, users.bio, users.cover_url, users.followers, users.settings"
	postColumns      = "posts.id, posts.type, posts.author_id, users.name AS author, posts.text, posts.visibility, posts.likes, posts.reposts, posts.created_at, posts.payload"
	commentColumns   = "comments.id, comments.post_id, comments.author_id, users.name AS author, comments.text, comments.created_at"
	communityColumns = "communities.id, communities.name, communities.members, communities.public, communities.description"
	eventColumns     = "events.id, events.title, events.starts_at, events.location, events.cover"
)

// A PGStore is responsible of interacting with the storage layer using a Postgresql database.
type PGStore struct {
	dbString string
	db       *sqlx.DB
}

// New returns a PGStore configured for a given address string, using the "user=postgres dbname=chaupal ..." format.
func New(addr string) *PGStore {
	return &PGStore{
		dbString: addr,
	}
}

// Connect establish a connection with the database using the address given at initialization,
// then applies the schema.
func (s *PGStore) Connect() error {
	db, err := sqlx.Connect("postgres", s.dbString)
	if err != nil {
		return err
	}

	s.db = db

	return s.Migrate()
}

// DB returns the existing connection, making it suitable to perform requests not already supported by
// the store interface. If called while not connected, it will return nil.
func (s *PGStore) DB() *sqlx.DB {
	return s.db
}

// Migrate creates the tables if they don't exist yet.
func (s *PGStore) Migrate() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Truncate deletes every record and resets the version.
func (s *PGStore) Truncate() error {
	return s.withTx(func(tx *sqlx.Tx) error {
		if _, err := tx.Exec("TRUNCATE TABLE " + strings.Join(tables, ", ") + " RESTART IDENTITY"); err != nil {
			return err
		}
		_, err := tx.Exec("UPDATE store_version SET version = 0")
		return err
	})
}

// Seed inserts recs in a single transaction.
func (s *PGStore) Seed(recs *dataset.Records) error {
	return s.withTx(func(tx *sqlx.Tx) error {
		for _, u := range recs.Users {
			_, err := tx.Exec("INSERT INTO users (id, name, handle, bio, cover_url, followers, settings) VALUES ($1, $2, $3, $4, $5, $6, $7)",
				u.ID, u.Name, u.Handle, u.Bio, u.CoverURL, u.Followers, u.Settings)
			if err != nil {
				return fmt.Errorf("user %q: %w", u.ID, err)
			}
		}
		for _, u := range recs.Users {
			for _, target := range u.Following.Sorted() {
				if _, err := tx.Exec("INSERT INTO follows (user_id, target_id) VALUES ($1, $2)", u.ID, target); err != nil {
					return fmt.Errorf("follow %q -> %q: %w", u.ID, target, err)
				}
			}
		}

		// the dataset lists posts newest first, seq keeps that order for equal timestamps
		for _, p := range recs.Posts {
			if err := insertPost(tx, p); err != nil {
				return err
			}
			for _, c := range p.Comments {
				c := c
				if err := insertComment(tx, &c); err != nil {
					return err
				}
			}
		}

		for _, c := range recs.Communities {
			_, err := tx.Exec("INSERT INTO communities (id, name, members, public, description) VALUES ($1, $2, $3, $4, $5)",
				c.ID, c.Name, c.Members, c.Public, c.Description)
			if err != nil {
				return fmt.Errorf("community %q: %w", c.ID, err)
			}
			for _, userID := range recs.Memberships[c.ID].Sorted() {
				if _, err := tx.Exec("INSERT INTO memberships (community_id, user_id) VALUES ($1, $2)", c.ID, userID); err != nil {
					return err
				}
			}
		}

		now := chaupal.NowFunc()
		for _, e := range recs.Events {
			if err := insertEvent(tx, e, now); err != nil {
				return err
			}
			for _, userID := range recs.Rsvps[e.ID].Sorted() {
				if _, err := tx.Exec("INSERT INTO rsvps (event_id, user_id) VALUES ($1, $2)", e.ID, userID); err != nil {
					return err
				}
			}
		}

		for userID, set := range recs.Likes {
			for _, postID := range set.Sorted() {
				if _, err := tx.Exec("INSERT INTO likes (user_id, post_id) VALUES ($1, $2)", userID, postID); err != nil {
					return err
				}
			}
		}
		for userID, set := range recs.Bookmarks {
			for _, postID := range set.Sorted() {
				if _, err := tx.Exec("INSERT INTO bookmarks (user_id, post_id) VALUES ($1, $2)", userID, postID); err != nil {
					return err
				}
			}
		}

		return nil
	})
}

// Snapshot reads everything viewerID can see within a single repeatable read transaction, so the
// snapshot is consistent even while writes go on.
func (s *PGStore) Snapshot(viewerID string) (*chaupal.Snapshot, error) {
	tx, err := s.db.BeginTxx(context.Background(), &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() // nolint:errcheck

	snap := &chaupal.Snapshot{
		Viewer:    chaupal.User{Following: chaupal.NewIDSet()},
		Likes:     chaupal.NewIDSet(),
		Bookmarks: chaupal.NewIDSet(),
	}

	if err := tx.Get(&snap.Version, "SELECT version FROM store_version WHERE id = 1"); err != nil {
		return nil, err
	}

	if viewerID != "" {
		viewer, err := findUser(tx, viewerID)
		if err != nil {
			return nil, err
		}
		snap.Viewer = *viewer

		if snap.Likes, err = idSet(tx, "SELECT post_id FROM likes WHERE user_id = $1", viewerID); err != nil {
			return nil, err
		}
		if snap.Bookmarks, err = idSet(tx, "SELECT post_id FROM bookmarks WHERE user_id = $1", viewerID); err != nil {
			return nil, err
		}
	}

	posts := []*chaupal.Post{}
	err = tx.Select(&posts, "SELECT "+postColumns+" FROM posts JOIN users ON posts.author_id = users.id ORDER BY posts.created_at DESC, posts.seq ASC")
	if err != nil {
		return nil, err
	}
	if err := attachComments(tx, posts, "SELECT "+commentColumns+" FROM comments JOIN users ON comments.author_id = users.id ORDER BY comments.created_at ASC, comments.seq ASC"); err != nil {
		return nil, err
	}

	snap.Posts = make([]chaupal.Post, 0, len(posts))
	for _, p := range posts {
		snap.Posts = append(snap.Posts, *p)
	}

	return snap, tx.Commit()
}

func (s *PGStore) FindUser(ID string) (*chaupal.User, error) {
	return findUser(s.db, ID)
}

func (s *PGStore) ListUsers() ([]*chaupal.User, error) {
	users := []*chaupal.User{}
	err := s.db.Select(&users, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}

	follows := []struct {
		UserID   string `db:"user_id"`
		TargetID string `db:"target_id"`
	}{}
	if err := s.db.Select(&follows, "SELECT user_id, target_id FROM follows"); err != nil {
		return nil, err
	}

	byID := map[string]*chaupal.User{}
	for _, u := range users {
		u.Following = chaupal.NewIDSet()
		byID[u.ID] = u
	}
	for _, f := range follows {
		if u, ok := byID[f.UserID]; ok {
			u.Following.Add(f.TargetID)
		}
	}

	return users, nil
}

func (s *PGStore) FindPost(ID string) (*chaupal.Post, error) {
	post := chaupal.Post{}
	err := s.db.Get(&post, "SELECT "+postColumns+" FROM posts JOIN users ON posts.author_id = users.id WHERE posts.id = $1", ID)
	if err != nil {
		return nil, notFound(err, "post", ID)
	}

	posts := []*chaupal.Post{&post}
	err = attachComments(s.db, posts, "SELECT "+commentColumns+" FROM comments JOIN users ON comments.author_id = users.id WHERE comments.post_id = $1 ORDER BY comments.created_at ASC, comments.seq ASC", ID)
	if err != nil {
		return nil, err
	}

	return &post, nil
}

// ListPostsByAuthor returns the posts of authorID, newest first.
func (s *PGStore) ListPostsByAuthor(authorID string) ([]*chaupal.Post, error) {
	if _, err := findUser(s.db, authorID); err != nil {
		return nil, err
	}

	posts := []*chaupal.Post{}
	err := s.db.Select(&posts, "SELECT "+postColumns+" FROM posts JOIN users ON posts.author_id = users.id WHERE posts.author_id = $1 ORDER BY posts.created_at DESC, posts.seq ASC", authorID)
	if err != nil {
		return nil, err
	}

	err = attachComments(s.db, posts, "SELECT "+commentColumns+" FROM comments JOIN users ON comments.author_id = users.id JOIN posts ON comments.post_id = posts.id WHERE posts.author_id = $1 ORDER BY comments.created_at ASC, comments.seq ASC", authorID)
	if err != nil {
		return nil, err
	}

	return posts, nil
}

func (s *PGStore) InsertPost(post *chaupal.Post) error {
	return s.withTx(func(tx *sqlx.Tx) error {
		author, err := findUser(tx, post.AuthorID)
		if err != nil {
			return err
		}

		if post.ID == "" {
			post.ID = "p" + uuid.NewString()
		}
		if post.Comments == nil {
			post.Comments = []chaupal.Comment{}
		}
		post.AuthorName = author.Name

		if err := insertPost(tx, post); err != nil {
			return err
		}
		return bumpVersion(tx)
	})
}

func (s *PGStore) InsertComment(comment *chaupal.Comment) error {
	return s.withTx(func(tx *sqlx.Tx) error {
		if err := exists(tx, "posts", comment.PostID); err != nil {
			return err
		}
		author, err := findUser(tx, comment.AuthorID)
		if err != nil {
			return err
		}

		if comment.ID == "" {
			comment.ID = "cm" + uuid.NewString()
		}
		comment.AuthorName = author.Name

		if err := insertComment(tx, comment); err != nil {
			return err
		}
		return bumpVersion(tx)
	})
}

// ToggleLike flips userID's like on postID, keeping the post's counter in sync.
func (s *PGStore) ToggleLike(userID string, postID string) (bool, error) {
	var liked bool
	err := s.withTx(func(tx *sqlx.Tx) error {
		if err := exists(tx, "posts", postID); err != nil {
			return err
		}
		if err := exists(tx, "users", userID); err != nil {
			return err
		}

		var err error
		liked, err = toggleRow(tx, "likes", "user_id", userID, "post_id", postID)
		if err != nil {
			return err
		}

		if liked {
			_, err = tx.Exec("UPDATE posts SET likes = likes + 1 WHERE id = $1", postID)
		} else {
			_, err = tx.Exec("UPDATE posts SET likes = GREATEST(likes - 1, 0) WHERE id = $1", postID)
		}
		if err != nil {
			return err
		}
		return bumpVersion(tx)
	})

	return liked, err
}

func (s *PGStore) ToggleBookmark(userID string, postID string) (bool, error) {
	var bookmarked bool
	err := s.withTx(func(tx *sqlx.Tx) error {
		if err := exists(tx, "posts", postID); err != nil {
			return err
		}
		if err := exists(tx, "users", userID); err != nil {
			return err
		}

		var err error
		bookmarked, err = toggleRow(tx, "bookmarks", "user_id", userID, "post_id", postID)
		if err != nil {
			return err
		}
		return bumpVersion(tx)
	})

	return bookmarked, err
}

// ToggleFollow flips whether userID follows targetID, keeping the target's follower count
// in sync.
func (s *PGStore) ToggleFollow(userID string, targetID string) (bool, error) {
	if userID == targetID {
		return false, chaupal.ErrSelfFollow
	}

	var following bool
	err := s.withTx(func(tx *sqlx.Tx) error {
		if err := exists(tx, "users", userID); err != nil {
			return err
		}
		if err := exists(tx, "users", targetID); err != nil {
			return err
		}

		var err error
		following, err = toggleRow(tx, "follows", "user_id", userID, "target_id", targetID)
		if err != nil {
			return err
		}

		if following {
			_, err = tx.Exec("UPDATE users SET followers = followers + 1 WHERE id = $1", targetID)
		} else {
			_, err = tx.Exec("UPDATE users SET followers = GREATEST(followers - 1, 0) WHERE id = $1", targetID)
		}
		if err != nil {
			return err
		}
		return bumpVersion(tx)
	})

	return following, err
}

func (s *PGStore) UpdateSettings(userID string, settings chaupal.UserSettings) error {
	return s.withTx(func(tx *sqlx.Tx) error {
		res, err := tx.Exec("UPDATE users SET settings = $1 WHERE id = $2", settings, userID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return fmt.Errorf("user %q: %w", userID, chaupal.ErrNotFound)
		}
		return bumpVersion(tx)
	})
}

// ListCommunities returns every community, with Joined set from userID's perspective.
func (s *PGStore) ListCommunities(userID string) ([]*chaupal.Community, error) {
	communities := []*chaupal.Community{}
	err := s.db.Select(&communities, "SELECT "+communityColumns+`,
		EXISTS (SELECT 1 FROM memberships WHERE memberships.community_id = communities.id AND memberships.user_id = $1) AS joined
		FROM communities ORDER BY communities.seq ASC`, userID)
	if err != nil {
		return nil, err
	}

	return communities, nil
}

func (s *PGStore) ToggleCommunityJoin(userID string, communityID string) (bool, error) {
	var joined bool
	err := s.withTx(func(tx *sqlx.Tx) error {
		if err := exists(tx, "communities", communityID); err != nil {
			return err
		}
		if err := exists(tx, "users", userID); err != nil {
			return err
		}

		var err error
		joined, err = toggleRow(tx, "memberships", "community_id", communityID, "user_id", userID)
		if err != nil {
			return err
		}

		if joined {
			_, err = tx.Exec("UPDATE communities SET members = members + 1 WHERE id = $1", communityID)
		} else {
			_, err = tx.Exec("UPDATE communities SET members = GREATEST(members - 1, 0) WHERE id = $1", communityID)
		}
		if err != nil {
			return err
		}
		return bumpVersion(tx)
	})

	return joined, err
}

// ListEvents returns every event, latest created first, with Going set from userID's perspective.
func (s *PGStore) ListEvents(userID string) ([]*chaupal.Event, error) {
	events := []*chaupal.Event{}
	err := s.db.Select(&events, "SELECT "+eventColumns+`,
		EXISTS (SELECT 1 FROM rsvps WHERE rsvps.event_id = events.id AND rsvps.user_id = $1) AS going
		FROM events ORDER BY events.created_at DESC, events.seq ASC`, userID)
	if err != nil {
		return nil, err
	}

	return events, nil
}

func (s *PGStore) InsertEvent(event *chaupal.Event) error {
	return s.withTx(func(tx *sqlx.Tx) error {
		if event.ID == "" {
			event.ID = "e" + uuid.NewString()
		}
		if err := insertEvent(tx, event, chaupal.NowFunc()); err != nil {
			return err
		}
		return bumpVersion(tx)
	})
}

func (s *PGStore) ToggleEventRsvp(userID string, eventID string) (bool, error) {
	var going bool
	err := s.withTx(func(tx *sqlx.Tx) error {
		if err := exists(tx, "events", eventID); err != nil {
			return err
		}
		if err := exists(tx, "users", userID); err != nil {
			return err
		}

		var err error
		going, err = toggleRow(tx, "rsvps", "event_id", eventID, "user_id", userID)
		if err != nil {
			return err
		}
		return bumpVersion(tx)
	})

	return going, err
}

func (s *PGStore) InsertNotification(notification *chaupal.Notification) error {
	if err := exists(s.db, "users", notification.RecipientID); err != nil {
		return err
	}
	if notification.ID == "" {
		notification.ID = "n" + uuid.NewString()
	}

	_, err := s.db.Exec("INSERT INTO notifications (id, recipient_id, actor, message, created_at) VALUES ($1, $2, $3, $4, $5)",
		notification.ID, notification.RecipientID, notification.Actor, notification.Message, notification.CreatedAt)
	return err
}

// ListNotifications returns userID's notifications, oldest first.
func (s *PGStore) ListNotifications(userID string) ([]*chaupal.Notification, error) {
	if err := exists(s.db, "users", userID); err != nil {
		return nil, err
	}

	notifs := []*chaupal.Notification{}
	err := s.db.Select(&notifs, "SELECT id, recipient_id, actor, message, created_at FROM notifications WHERE recipient_id = $1 ORDER BY created_at ASC, seq ASC", userID)
	if err != nil {
		return nil, err
	}

	return notifs, nil
}

func (s *PGStore) withTx(f func(tx *sqlx.Tx) error) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}

	if err := f(tx); err != nil {
		tx.Rollback() // nolint:errcheck
		return err
	}

	return tx.Commit()
}

func bumpVersion(tx *sqlx.Tx) error {
	_, err := tx.Exec("UPDATE store_version SET version = version + 1 WHERE id = 1")
	return err
}

// notFound turns sql.ErrNoRows into an error wrapping chaupal.ErrNotFound.
func notFound(err error, kind string, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %q: %w", kind, id, chaupal.ErrNotFound)
	}
	return err
}

var recordKinds = map[string]string{
	"users":       "user",
	"posts":       "post",
	"communities": "community",
	"events":      "event",
}

func exists(q sqlx.Queryer, table string, id string) error {
	var found bool
	err := sqlx.Get(q, &found, "SELECT EXISTS (SELECT 1 FROM "+table+" WHERE id = $1)", id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s %q: %w", recordKinds[table], id, chaupal.ErrNotFound)
	}
	return nil
}

func findUser(q sqlx.Queryer, id string) (*chaupal.User, error) {
	user := chaupal.User{}
	err := sqlx.Get(q, &user, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err, "user", id)
	}

	user.Following, err = idSet(q, "SELECT target_id FROM follows WHERE user_id = $1", id)
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func idSet(q sqlx.Queryer, query string, args ...interface{}) (chaupal.IDSet, error) {
	ids := []string{}
	if err := sqlx.Select(q, &ids, query, args...); err != nil {
		return nil, err
	}
	return chaupal.NewIDSet(ids...), nil
}

// attachComments runs query and appends the comments it returns to the matching posts.
func attachComments(q sqlx.Queryer, posts []*chaupal.Post, query string, args ...interface{}) error {
	comments := []chaupal.Comment{}
	if err := sqlx.Select(q, &comments, query, args...); err != nil {
		return err
	}

	byID := make(map[string]*chaupal.Post, len(posts))
	for _, p := range posts {
		p.Comments = []chaupal.Comment{}
		byID[p.ID] = p
	}
	for _, c := range comments {
		if p, ok := byID[c.PostID]; ok {
			p.Comments = append(p.Comments, c)
		}
	}

	return nil
}

// toggleRow deletes the row matching both columns, or inserts it if there was none. It reports
// whether the row exists afterwards.
func toggleRow(tx *sqlx.Tx, table string, colA string, valA string, colB string, valB string) (bool, error) {
	res, err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s = $1 AND %s = $2", table, colA, colB), valA, valB)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	_, err = tx.Exec(fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES ($1, $2)", table, colA, colB), valA, valB)
	if err != nil {
		return false, err
	}
	return true, nil
}

func insertPost(tx *sqlx.Tx, p *chaupal.Post) error {
	_, err := tx.Exec("INSERT INTO posts (id, type, author_id, text, visibility, likes, reposts, created_at, payload) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		p.ID, p.Type, p.AuthorID, p.Text, p.Visibility, p.Likes, p.Reposts, p.CreatedAt, p.Payload)
	if err != nil {
		return fmt.Errorf("post %q: %w", p.ID, err)
	}
	return nil
}

func insertComment(tx *sqlx.Tx, c *chaupal.Comment) error {
	_, err := tx.Exec("INSERT INTO comments (id, post_id, author_id, text, created_at) VALUES ($1, $2, $3, $4, $5)",
		c.ID, c.PostID, c.AuthorID, c.Text, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("comment %q: %w", c.ID, err)
	}
	return nil
}

func insertEvent(tx *sqlx.Tx, e *chaupal.Event, createdAt time.Time) error {
	_, err := tx.Exec("INSERT INTO events (id, title, starts_at, location, cover, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		e.ID, e.Title, e.When, e.Where, e.Cover, createdAt)
	if err != nil {
		return fmt.Errorf("event %q: %w", e.ID, err)
	}
	return nil
}
