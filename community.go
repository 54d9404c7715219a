package chaupal

type Community struct {
	ID          string `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Members     int64  `db:"members" json:"members"`
	Public      bool   `db:"public" json:"public"`
	Description string `db:"description" json:"desc"`
	Joined      bool   `db:"joined" json:"joined"`
}
