package chaupal

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

type UserSettings struct {
	QuietHours bool `json:"quiet_hours,omitempty" yaml:"quiet_hours"`
	DataSaver  bool `json:"data_saver,omitempty" yaml:"data_saver"`
}

func (us UserSettings) Value() (driver.Value, error) {
	return json.Marshal(us)
}

func (us *UserSettings) Scan(value interface{}) error {
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("can't decode user settings")
	}

	return json.Unmarshal(b, us)
}

type User struct {
	ID        string       `db:"id" json:"id"`
	Name      string       `db:"name" json:"name"`
	Handle    string       `db:"handle" json:"handle"`
	Bio       string       `db:"bio" json:"bio"`
	CoverURL  string       `db:"cover_url" json:"cover_url"`
	Followers int64        `db:"followers" json:"followers"`
	Settings  UserSettings `db:"settings" json:"settings"`
	Following IDSet        `db:"-" json:"-"`
}

// Follows reports whether the user follows authorID.
func (u *User) Follows(authorID string) bool {
	return u.Following.Has(authorID)
}

// Clone returns a copy of the user with its own follow set.
func (u User) Clone() User {
	c := u
	c.Following = u.Following.Clone()
	return c
}
