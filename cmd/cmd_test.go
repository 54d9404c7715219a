package cmd

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestConfig(t *testing.T) {
	c := qt.New(t)

	c.Run("defaults need a server secret", func(c *qt.C) {
		cfg := DefaultConfig()
		c.Assert(cfg.Validate(), qt.ErrorMatches, "missing config 'server secret'")

		cfg.ServerSecret = "secret"
		c.Assert(cfg.Validate(), qt.IsNil)
		c.Assert(cfg.Store, qt.Equals, StoreMemory)
		c.Assert(cfg.NotifyRecipients, qt.DeepEquals, []string{"u_me"})
	})

	c.Run("environment overrides", func(c *qt.C) {
		cfg := DefaultConfig()
		err := cfg.LoadEnv(lookupFrom(map[string]string{
			"SERVER_SECRET":     "s3cr3t",
			"STORE":             "postgres",
			"DATABASE_NAME":     "chaupal_dev",
			"HOT_GRAVITY":       "1.5",
			"HOT_TIMEBASE":      "3",
			"NOTIFY_RECIPIENTS": "u_me, u1,,u2",
			"LOG_LEVEL":         "",
		}))
		c.Assert(err, qt.IsNil)
		c.Assert(cfg.Validate(), qt.IsNil)

		c.Assert(cfg.ServerSecret, qt.Equals, "s3cr3t")
		c.Assert(cfg.Store, qt.Equals, StorePostgres)
		c.Assert(cfg.HotGravity, qt.Equals, 1.5)
		c.Assert(cfg.HotTimebase, qt.Equals, 3.0)
		c.Assert(cfg.NotifyRecipients, qt.DeepEquals, []string{"u_me", "u1", "u2"})
		c.Assert(cfg.LogLevel, qt.Equals, "info")
		c.Assert(cfg.DatabaseUser, qt.Equals, "postgres")
		c.Assert(cfg.PostgresAddr(), qt.Equals, "user=postgres dbname=chaupal_dev sslmode=disable password=postgres host=127.0.0.1")
	})

	c.Run("invalid values", func(c *qt.C) {
		cfg := DefaultConfig()
		err := cfg.LoadEnv(lookupFrom(map[string]string{"HOT_GRAVITY": "steep"}))
		c.Assert(err, qt.ErrorMatches, "environment: .*")

		cfg = DefaultConfig()
		cfg.ServerSecret = "secret"
		cfg.HotTimebase = 0
		c.Assert(cfg.Validate(), qt.ErrorMatches, "hot timebase must be positive, got 0")

		cfg = DefaultConfig()
		cfg.ServerSecret = "secret"
		cfg.Store = "redis"
		c.Assert(cfg.Validate(), qt.ErrorMatches, `unknown store "redis".*`)
	})
}
