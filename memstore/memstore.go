// Package memstore implements chaupal.Store in memory, which is all the prototype needs
// to serve the mock dataset.
package memstore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jhchabran/chaupal"
	"github.com/jhchabran/chaupal/dataset"
	"github.com/samber/lo"
)

// A MemStore keeps every record in maps guarded by a single lock. Reads hand out copies,
// never pointers into the maps.
type MemStore struct {
	mu      sync.RWMutex
	version uint64

	users         map[string]*chaupal.User
	posts         map[string]*chaupal.Post
	postOrder     []string
	communities   map[string]*chaupal.Community
	communityIDs  []string
	memberships   map[string]chaupal.IDSet
	events        map[string]*chaupal.Event
	eventOrder    []string
	rsvps         map[string]chaupal.IDSet
	likes         map[string]chaupal.IDSet
	bookmarks     map[string]chaupal.IDSet
	notifications map[string][]*chaupal.Notification
}

// New returns an empty store.
func New() *MemStore {
	return &MemStore{
		users:         map[string]*chaupal.User{},
		posts:         map[string]*chaupal.Post{},
		communities:   map[string]*chaupal.Community{},
		memberships:   map[string]chaupal.IDSet{},
		events:        map[string]*chaupal.Event{},
		rsvps:         map[string]chaupal.IDSet{},
		likes:         map[string]chaupal.IDSet{},
		bookmarks:     map[string]chaupal.IDSet{},
		notifications: map[string][]*chaupal.Notification{},
	}
}

// NewFromRecords returns a store holding recs. The store takes ownership of recs.
func NewFromRecords(recs *dataset.Records) *MemStore {
	s := New()

	for _, u := range recs.Users {
		if u.Following == nil {
			u.Following = chaupal.NewIDSet()
		}
		s.users[u.ID] = u
	}
	for _, p := range recs.Posts {
		s.posts[p.ID] = p
		s.postOrder = append(s.postOrder, p.ID)
	}
	for _, c := range recs.Communities {
		s.communities[c.ID] = c
		s.communityIDs = append(s.communityIDs, c.ID)
	}
	for _, e := range recs.Events {
		s.events[e.ID] = e
		s.eventOrder = append(s.eventOrder, e.ID)
	}
	for k, v := range recs.Memberships {
		s.memberships[k] = v
	}
	for k, v := range recs.Rsvps {
		s.rsvps[k] = v
	}
	for k, v := range recs.Likes {
		s.likes[k] = v
	}
	for k, v := range recs.Bookmarks {
		s.bookmarks[k] = v
	}

	return s
}

// Connect is a no-op, present to satisfy chaupal.Store.
func (s *MemStore) Connect() error {
	return nil
}

// Version returns the number of mutations applied so far.
func (s *MemStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Snapshot copies what viewerID can see. An empty viewerID gives an anonymous snapshot
// with an empty follow set.
func (s *MemStore) Snapshot(viewerID string) (*chaupal.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &chaupal.Snapshot{
		Version:   s.version,
		Viewer:    chaupal.User{Following: chaupal.NewIDSet()},
		Likes:     chaupal.NewIDSet(),
		Bookmarks: chaupal.NewIDSet(),
	}

	if viewerID != "" {
		u, ok := s.users[viewerID]
		if !ok {
			return nil, fmt.Errorf("user %q: %w", viewerID, chaupal.ErrNotFound)
		}
		snap.Viewer = u.Clone()
		snap.Likes = s.likes[viewerID].Clone()
		snap.Bookmarks = s.bookmarks[viewerID].Clone()
	}

	snap.Posts = lo.Map(s.postOrder, func(id string, _ int) chaupal.Post {
		return s.posts[id].Clone()
	})

	return snap, nil
}

func (s *MemStore) FindUser(ID string) (*chaupal.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[ID]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", ID, chaupal.ErrNotFound)
	}
	c := u.Clone()
	return &c, nil
}

func (s *MemStore) ListUsers() ([]*chaupal.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := lo.Keys(s.users)
	sort.Strings(ids)

	return lo.Map(ids, func(id string, _ int) *chaupal.User {
		c := s.users[id].Clone()
		return &c
	}), nil
}

func (s *MemStore) FindPost(ID string) (*chaupal.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[ID]
	if !ok {
		return nil, fmt.Errorf("post %q: %w", ID, chaupal.ErrNotFound)
	}
	c := p.Clone()
	return &c, nil
}

// ListPostsByAuthor returns the posts of authorID, newest first.
func (s *MemStore) ListPostsByAuthor(authorID string) ([]*chaupal.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.users[authorID]; !ok {
		return nil, fmt.Errorf("user %q: %w", authorID, chaupal.ErrNotFound)
	}

	posts := lo.FilterMap(s.postOrder, func(id string, _ int) (*chaupal.Post, bool) {
		p := s.posts[id]
		if p.AuthorID != authorID {
			return nil, false
		}
		c := p.Clone()
		return &c, true
	})
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})

	return posts, nil
}

// InsertPost adds post at the top of the feed, assigning it an id if it has none.
func (s *MemStore) InsertPost(post *chaupal.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	author, ok := s.users[post.AuthorID]
	if !ok {
		return fmt.Errorf("author %q: %w", post.AuthorID, chaupal.ErrNotFound)
	}

	if post.ID == "" {
		post.ID = "p" + uuid.NewString()
	}
	if post.Comments == nil {
		post.Comments = []chaupal.Comment{}
	}
	post.AuthorName = author.Name

	c := post.Clone()
	s.posts[post.ID] = &c
	s.postOrder = append([]string{post.ID}, s.postOrder...)
	s.version++

	return nil
}

func (s *MemStore) InsertComment(comment *chaupal.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[comment.PostID]
	if !ok {
		return fmt.Errorf("post %q: %w", comment.PostID, chaupal.ErrNotFound)
	}
	author, ok := s.users[comment.AuthorID]
	if !ok {
		return fmt.Errorf("author %q: %w", comment.AuthorID, chaupal.ErrNotFound)
	}

	if comment.ID == "" {
		comment.ID = "cm" + uuid.NewString()
	}
	comment.AuthorName = author.Name

	p.Comments = append(p.Comments, *comment)
	s.version++

	return nil
}

// ToggleLike flips userID's like on postID, keeping the post's counter in sync.
func (s *MemStore) ToggleLike(userID string, postID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return false, fmt.Errorf("post %q: %w", postID, chaupal.ErrNotFound)
	}
	if _, ok := s.users[userID]; !ok {
		return false, fmt.Errorf("user %q: %w", userID, chaupal.ErrNotFound)
	}

	liked := s.userSet(s.likes, userID).Toggle(postID)
	if liked {
		p.Likes++
	} else if p.Likes > 0 {
		p.Likes--
	}
	s.version++

	return liked, nil
}

func (s *MemStore) ToggleBookmark(userID string, postID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[postID]; !ok {
		return false, fmt.Errorf("post %q: %w", postID, chaupal.ErrNotFound)
	}
	if _, ok := s.users[userID]; !ok {
		return false, fmt.Errorf("user %q: %w", userID, chaupal.ErrNotFound)
	}

	bookmarked := s.userSet(s.bookmarks, userID).Toggle(postID)
	s.version++

	return bookmarked, nil
}

// ToggleFollow flips whether userID follows targetID, keeping the target's follower count
// in sync.
func (s *MemStore) ToggleFollow(userID string, targetID string) (bool, error) {
	if userID == targetID {
		return false, chaupal.ErrSelfFollow
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return false, fmt.Errorf("user %q: %w", userID, chaupal.ErrNotFound)
	}
	target, ok := s.users[targetID]
	if !ok {
		return false, fmt.Errorf("user %q: %w", targetID, chaupal.ErrNotFound)
	}

	following := u.Following.Toggle(targetID)
	if following {
		target.Followers++
	} else if target.Followers > 0 {
		target.Followers--
	}
	s.version++

	return following, nil
}

func (s *MemStore) UpdateSettings(userID string, settings chaupal.UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %q: %w", userID, chaupal.ErrNotFound)
	}
	u.Settings = settings
	s.version++

	return nil
}

// ListCommunities returns every community, with Joined set from userID's perspective.
func (s *MemStore) ListCommunities(userID string) ([]*chaupal.Community, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return lo.Map(s.communityIDs, func(id string, _ int) *chaupal.Community {
		c := *s.communities[id]
		c.Joined = s.memberships[id].Has(userID)
		return &c
	}), nil
}

func (s *MemStore) ToggleCommunityJoin(userID string, communityID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.communities[communityID]
	if !ok {
		return false, fmt.Errorf("community %q: %w", communityID, chaupal.ErrNotFound)
	}
	if _, ok := s.users[userID]; !ok {
		return false, fmt.Errorf("user %q: %w", userID, chaupal.ErrNotFound)
	}

	joined := s.userSet(s.memberships, communityID).Toggle(userID)
	if joined {
		c.Members++
	} else if c.Members > 0 {
		c.Members--
	}
	s.version++

	return joined, nil
}

// ListEvents returns every event, latest created first, with Going set from userID's perspective.
func (s *MemStore) ListEvents(userID string) ([]*chaupal.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return lo.Map(s.eventOrder, func(id string, _ int) *chaupal.Event {
		e := *s.events[id]
		e.Going = s.rsvps[id].Has(userID)
		return &e
	}), nil
}

func (s *MemStore) InsertEvent(event *chaupal.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == "" {
		event.ID = "e" + uuid.NewString()
	}

	e := *event
	s.events[event.ID] = &e
	s.eventOrder = append([]string{event.ID}, s.eventOrder...)
	s.version++

	return nil
}

func (s *MemStore) ToggleEventRsvp(userID string, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[eventID]; !ok {
		return false, fmt.Errorf("event %q: %w", eventID, chaupal.ErrNotFound)
	}
	if _, ok := s.users[userID]; !ok {
		return false, fmt.Errorf("user %q: %w", userID, chaupal.ErrNotFound)
	}

	going := s.userSet(s.rsvps, eventID).Toggle(userID)
	s.version++

	return going, nil
}

func (s *MemStore) InsertNotification(notification *chaupal.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[notification.RecipientID]; !ok {
		return fmt.Errorf("user %q: %w", notification.RecipientID, chaupal.ErrNotFound)
	}
	if notification.ID == "" {
		notification.ID = "n" + uuid.NewString()
	}

	n := *notification
	s.notifications[n.RecipientID] = append(s.notifications[n.RecipientID], &n)

	return nil
}

// ListNotifications returns userID's notifications, oldest first.
func (s *MemStore) ListNotifications(userID string) ([]*chaupal.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.users[userID]; !ok {
		return nil, fmt.Errorf("user %q: %w", userID, chaupal.ErrNotFound)
	}

	return lo.Map(s.notifications[userID], func(n *chaupal.Notification, _ int) *chaupal.Notification {
		c := *n
		return &c
	}), nil
}

// userSet returns the set stored under key, creating it if needed. Callers must hold the
// write lock.
func (s *MemStore) userSet(sets map[string]chaupal.IDSet, key string) chaupal.IDSet {
	set, ok := sets[key]
	if !ok {
		set = chaupal.NewIDSet()
		sets[key] = set
	}
	return set
}
