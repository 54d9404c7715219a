// Package dataset loads the mock social graph used to seed stores.
package dataset

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"time"

	"github.com/jhchabran/chaupal"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultDataset []byte

type User struct {
	ID        string               `yaml:"id"`
	Name      string               `yaml:"name"`
	Handle    string               `yaml:"handle"`
	Bio       string               `yaml:"bio"`
	CoverURL  string               `yaml:"cover_url"`
	Followers int64                `yaml:"followers"`
	Following []string             `yaml:"following"`
	Settings  chaupal.UserSettings `yaml:"settings"`
}

type Comment struct {
	ID     string `yaml:"id"`
	Author string `yaml:"author"`
	Age    string `yaml:"age"`
	Text   string `yaml:"text"`
}

type Post struct {
	ID         string             `yaml:"id"`
	Type       chaupal.PostType   `yaml:"type"`
	Author     string             `yaml:"author"`
	Age        string             `yaml:"age"`
	Text       string             `yaml:"text"`
	Visibility chaupal.Visibility `yaml:"visibility"`
	Likes      int64              `yaml:"likes"`
	Reposts    int64              `yaml:"reposts"`
	Comments   []Comment          `yaml:"comments"`

	chaupal.Payload `yaml:",inline"`
}

type Community struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Members  int64    `yaml:"members"`
	Public   bool     `yaml:"public"`
	Desc     string   `yaml:"desc"`
	JoinedBy []string `yaml:"joined_by"`
}

type Event struct {
	ID       string   `yaml:"id"`
	Title    string   `yaml:"title"`
	StartsIn string   `yaml:"starts_in"`
	Where    string   `yaml:"where"`
	Cover    string   `yaml:"cover"`
	Going    []string `yaml:"going"`
}

// A Dataset is the raw content of a dataset file.
type Dataset struct {
	Users       []User              `yaml:"users"`
	Posts       []Post              `yaml:"posts"`
	Communities []Community         `yaml:"communities"`
	Events      []Event             `yaml:"events"`
	Likes       map[string][]string `yaml:"likes"`
	Bookmarks   map[string][]string `yaml:"bookmarks"`
}

// Records are the domain values a Dataset describes, anchored at a point in time.
type Records struct {
	Users       []*chaupal.User
	Posts       []*chaupal.Post
	Communities []*chaupal.Community
	Events      []*chaupal.Event

	// Memberships maps community ids to the ids of users who joined them.
	Memberships map[string]chaupal.IDSet
	// Rsvps maps event ids to the ids of users going.
	Rsvps map[string]chaupal.IDSet
	// Likes and Bookmarks map user ids to post ids.
	Likes     map[string]chaupal.IDSet
	Bookmarks map[string]chaupal.IDSet
}

// Load decodes a dataset from r.
func Load(r io.Reader) (*Dataset, error) {
	ds := &Dataset{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(ds); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}

	return ds, nil
}

// Default returns the dataset bundled with the binary.
func Default() *Dataset {
	ds, err := Load(bytes.NewReader(defaultDataset))
	if err != nil {
		panic(err)
	}
	return ds
}

// Records resolves the dataset into domain values, ages and start times being relative
// to now. It fails on dangling references.
func (ds *Dataset) Records(now time.Time) (*Records, error) {
	recs := &Records{
		Memberships: map[string]chaupal.IDSet{},
		Rsvps:       map[string]chaupal.IDSet{},
		Likes:       map[string]chaupal.IDSet{},
		Bookmarks:   map[string]chaupal.IDSet{},
	}

	users := map[string]*chaupal.User{}
	for _, u := range ds.Users {
		if _, ok := users[u.ID]; ok {
			return nil, fmt.Errorf("duplicate user %q", u.ID)
		}
		user := &chaupal.User{
			ID:        u.ID,
			Name:      u.Name,
			Handle:    u.Handle,
			Bio:       u.Bio,
			CoverURL:  u.CoverURL,
			Followers: u.Followers,
			Settings:  u.Settings,
			Following: chaupal.NewIDSet(u.Following...),
		}
		users[u.ID] = user
		recs.Users = append(recs.Users, user)
	}

	for _, u := range recs.Users {
		for id := range u.Following {
			if _, ok := users[id]; !ok {
				return nil, fmt.Errorf("user %q follows unknown user %q", u.ID, id)
			}
		}
	}

	posts := chaupal.NewIDSet()
	for _, p := range ds.Posts {
		author, ok := users[p.Author]
		if !ok {
			return nil, fmt.Errorf("post %q has unknown author %q", p.ID, p.Author)
		}
		if !p.Type.Valid() {
			return nil, fmt.Errorf("post %q has unknown type %q", p.ID, p.Type)
		}
		age, err := time.ParseDuration(p.Age)
		if err != nil {
			return nil, fmt.Errorf("post %q: %w", p.ID, err)
		}

		vis := p.Visibility
		if vis == "" {
			vis = chaupal.VisPublic
		}

		post := &chaupal.Post{
			ID:         p.ID,
			Type:       p.Type,
			AuthorID:   author.ID,
			AuthorName: author.Name,
			Text:       p.Text,
			Visibility: vis,
			Likes:      p.Likes,
			Reposts:    p.Reposts,
			CreatedAt:  now.Add(-age),
			Payload:    p.Payload,
			Comments:   []chaupal.Comment{},
		}

		for _, c := range p.Comments {
			commenter, ok := users[c.Author]
			if !ok {
				return nil, fmt.Errorf("comment %q has unknown author %q", c.ID, c.Author)
			}
			age, err := time.ParseDuration(c.Age)
			if err != nil {
				return nil, fmt.Errorf("comment %q: %w", c.ID, err)
			}
			post.Comments = append(post.Comments, chaupal.Comment{
				ID:         c.ID,
				PostID:     p.ID,
				AuthorID:   commenter.ID,
				AuthorName: commenter.Name,
				Text:       c.Text,
				CreatedAt:  now.Add(-age),
			})
		}

		posts.Add(p.ID)
		recs.Posts = append(recs.Posts, post)
	}

	for _, c := range ds.Communities {
		members := chaupal.NewIDSet()
		for _, id := range c.JoinedBy {
			if _, ok := users[id]; !ok {
				return nil, fmt.Errorf("community %q joined by unknown user %q", c.ID, id)
			}
			members.Add(id)
		}
		recs.Memberships[c.ID] = members
		recs.Communities = append(recs.Communities, &chaupal.Community{
			ID:          c.ID,
			Name:        c.Name,
			Members:     c.Members,
			Public:      c.Public,
			Description: c.Desc,
		})
	}

	for _, e := range ds.Events {
		in, err := time.ParseDuration(e.StartsIn)
		if err != nil {
			return nil, fmt.Errorf("event %q: %w", e.ID, err)
		}
		going := chaupal.NewIDSet()
		for _, id := range e.Going {
			if _, ok := users[id]; !ok {
				return nil, fmt.Errorf("event %q attended by unknown user %q", e.ID, id)
			}
			going.Add(id)
		}
		recs.Rsvps[e.ID] = going
		recs.Events = append(recs.Events, &chaupal.Event{
			ID:    e.ID,
			Title: e.Title,
			When:  now.Add(in),
			Where: e.Where,
			Cover: e.Cover,
		})
	}

	var err error
	if recs.Likes, err = postSets("likes", ds.Likes, users, posts); err != nil {
		return nil, err
	}
	if recs.Bookmarks, err = postSets("bookmarks", ds.Bookmarks, users, posts); err != nil {
		return nil, err
	}

	return recs, nil
}

func postSets(name string, raw map[string][]string, users map[string]*chaupal.User, posts chaupal.IDSet) (map[string]chaupal.IDSet, error) {
	sets := map[string]chaupal.IDSet{}
	for userID, ids := range raw {
		if _, ok := users[userID]; !ok {
			return nil, fmt.Errorf("%s of unknown user %q", name, userID)
		}
		for _, id := range ids {
			if !posts.Has(id) {
				return nil, fmt.Errorf("%s of %q reference unknown post %q", name, userID, id)
			}
		}
		sets[userID] = chaupal.NewIDSet(ids...)
	}
	return sets, nil
}
