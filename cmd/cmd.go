package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	LogLevel         string   `json:"log_level"`
	LogFormat        string   `json:"log_format"`
	Store            string   `json:"store"`
	DatabaseName     string   `json:"database_name"`
	DatabaseUser     string   `json:"database_user"`
	DatabaseHost     string   `json:"database_host"`
	DatabasePassword string   `json:"database_password"`
	ServerSecret     string   `json:"server_secret,required"`
	Addr             string   `json:"addr"`
	BaseURL          string   `json:"base_url"`
	HotGravity       float64  `json:"hot_gravity"`
	HotTimebase      float64  `json:"hot_timebase"`
	NotifySchedule   string   `json:"notify_schedule"`
	NotifyRecipients []string `json:"notify_recipients"`
	SlackWebhookURL  string   `json:"slack_webhook_url"`
}

// envKeys maps environment variables to the config field they override, by json name.
var envKeys = map[string]string{
	"LOG_LEVEL":         "log_level",
	"LOG_FORMAT":        "log_format",
	"STORE":             "store",
	"DATABASE_NAME":     "database_name",
	"DATABASE_USER":     "database_user",
	"DATABASE_HOST":     "database_host",
	"DATABASE_PASSWORD": "database_password",
	"SERVER_SECRET":     "server_secret",
	"ADDR":              "addr",
	"BASE_URL":          "base_url",
	"HOT_GRAVITY":       "hot_gravity",
	"HOT_TIMEBASE":      "hot_timebase",
	"NOTIFY_SCHEDULE":   "notify_schedule",
	"NOTIFY_RECIPIENTS": "notify_recipients",
	"SLACK_WEBHOOK_URL": "slack_webhook_url",
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "json",
		Store:            StoreMemory,
		DatabaseName:     "chaupal",
		DatabaseUser:     "postgres",
		DatabasePassword: "postgres",
		DatabaseHost:     "127.0.0.1",
		Addr:             "localhost:8080",
		BaseURL:          "http://localhost:8080",
		HotGravity:       1.8,
		HotTimebase:      2.0,
		NotifySchedule:   "@every 30s",
		NotifyRecipients: []string{"u_me"},
	}
}

// Load reads config.json from the working directory if there is one, then applies the
// environment on top of it.
func (c *Config) Load() error {
	f, err := os.Open("config.json")
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	if err == nil {
		defer f.Close()
		err = json.NewDecoder(f).Decode(c)
		if err != nil {
			return fmt.Errorf("config.json: %w", err)
		}
	}

	if err := c.LoadEnv(os.LookupEnv); err != nil {
		return err
	}

	return c.Validate()
}

// LoadEnv overrides fields with the variables lookup finds. Values are strings and get
// converted to the field type.
func (c *Config) LoadEnv(lookup func(string) (string, bool)) error {
	input := map[string]interface{}{}
	for env, key := range envKeys {
		v, ok := lookup(env)
		if !ok || v == "" {
			continue
		}
		if key == "notify_recipients" {
			input[key] = splitList(v)
			continue
		}
		input[key] = v
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           c,
	})
	if err != nil {
		return err
	}

	if err := dec.Decode(input); err != nil {
		return fmt.Errorf("environment: %w", err)
	}

	return nil
}

func (c *Config) Validate() error {
	if c.ServerSecret == "" {
		return fmt.Errorf("missing config 'server secret'")
	}

	if c.Store != StoreMemory && c.Store != StorePostgres {
		return fmt.Errorf("unknown store %q, expected %q or %q", c.Store, StoreMemory, StorePostgres)
	}

	if c.HotTimebase <= 0 {
		return fmt.Errorf("hot timebase must be positive, got %v", c.HotTimebase)
	}

	return nil
}

// PostgresAddr returns the connection string of the configured database.
func (c *Config) PostgresAddr() string {
	return fmt.Sprintf(
		"user=%v dbname=%v sslmode=disable password=%v host=%v",
		c.DatabaseUser,
		c.DatabaseName,
		c.DatabasePassword,
		c.DatabaseHost,
	)
}

func splitList(v string) []string {
	var res []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			res = append(res, s)
		}
	}
	return res
}

func SetupLogger(cfg *Config) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Str("input", cfg.LogLevel).Msg("Cannot parse log level")
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "" || cfg.LogFormat == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
}
