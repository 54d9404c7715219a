package pgstore

// schema is applied by Migrate. Statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS store_version (
		id      integer PRIMARY KEY DEFAULT 1 CHECK (id = 1),
		version bigint NOT NULL DEFAULT 0
	)`,
	`INSERT INTO store_version (id, version) VALUES (1, 0) ON CONFLICT (id) DO NOTHING`,
	`CREATE TABLE IF NOT EXISTS users (
		id        text PRIMARY KEY,
		name      text NOT NULL,
		handle    text NOT NULL DEFAULT '',
		bio       text NOT NULL DEFAULT '',
		cover_url text NOT NULL DEFAULT '',
		followers bigint NOT NULL DEFAULT 0,
		settings  jsonb NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE IF NOT EXISTS follows (
		user_id   text NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		target_id text NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		PRIMARY KEY (user_id, target_id)
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		seq        bigserial,
		id         text PRIMARY KEY,
		type       text NOT NULL,
		author_id  text NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		text       text NOT NULL DEFAULT '',
		visibility text NOT NULL DEFAULT 'public',
		likes      bigint NOT NULL DEFAULT 0,
		reposts    bigint NOT NULL DEFAULT 0,
		created_at timestamptz NOT NULL,
		payload    jsonb NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		seq        bigserial,
		id         text PRIMARY KEY,
		post_id    text NOT NULL REFERENCES posts (id) ON DELETE CASCADE,
		author_id  text NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		text       text NOT NULL,
		created_at timestamptz NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS likes (
		user_id text NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		post_id text NOT NULL REFERENCES posts (id) ON DELETE CASCADE,
		PRIMARY KEY (user_id, post_id)
	)`,
	`CREATE TABLE IF NOT EXISTS bookmarks (
		user_id text NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		post_id text NOT NULL REFERENCES posts (id) ON DELETE CASCADE,
		PRIMARY KEY (user_id, post_id)
	)`,
	`CREATE TABLE IF NOT EXISTS communities (
		seq         bigserial,
		id          text PRIMARY KEY,
		name        text NOT NULL,
		members     bigint NOT NULL DEFAULT 0,
		public      boolean NOT NULL DEFAULT true,
		description text NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS memberships (
		community_id text NOT NULL REFERENCES communities (id) ON DELETE CASCADE,
		user_id      text NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		PRIMARY KEY (community_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		seq        bigserial,
		id         text PRIMARY KEY,
		title      text NOT NULL,
		starts_at  timestamptz NOT NULL,
		location   text NOT NULL DEFAULT 'TBA',
		cover      text NOT NULL DEFAULT '',
		created_at timestamptz NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rsvps (
		event_id text NOT NULL REFERENCES events (id) ON DELETE CASCADE,
		user_id  text NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		PRIMARY KEY (event_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		seq          bigserial,
		id           text PRIMARY KEY,
		recipient_id text NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		actor        text NOT NULL,
		message      text NOT NULL,
		created_at   timestamptz NOT NULL
	)`,
}

// tables lists every table holding records, children first.
var tables = []string{
	"notifications",
	"rsvps",
	"events",
	"memberships",
	"communities",
	"bookmarks",
	"likes",
	"comments",
	"posts",
	"follows",
	"users",
}
