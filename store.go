package chaupal

import "errors"

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrSelfFollow is returned when a user attempts to follow themselves.
var ErrSelfFollow = errors.New("cannot follow oneself")

type Store interface {
	Connect() error
	Snapshot(viewerID string) (*Snapshot, error)
	FindUser(ID string) (*User, error)
	ListUsers() ([]*User, error)
	FindPost(ID string) (*Post, error)
	ListPostsByAuthor(authorID string) ([]*Post, error)
	InsertPost(post *Post) error
	InsertComment(comment *Comment) error
	ToggleLike(userID string, postID string) (bool, error)
	ToggleBookmark(userID string, postID string) (bool, error)
	ToggleFollow(userID string, targetID string) (bool, error)
	UpdateSettings(userID string, settings UserSettings) error
	ListCommunities(userID string) ([]*Community, error)
	ToggleCommunityJoin(userID string, communityID string) (bool, error)
	ListEvents(userID string) ([]*Event, error)
	InsertEvent(event *Event) error
	ToggleEventRsvp(userID string, eventID string) (bool, error)
	InsertNotification(notification *Notification) error
	ListNotifications(userID string) ([]*Notification, error)
}
