// Package redis builds a go-redis client from environment configuration.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config is read with the REDIS_ prefix. An empty URL disables Redis.
type Config struct {
	URL          string `split_words:"true" json:"url"`
	ReadTimeout  int    `split_words:"true" default:"3" json:"read_timeout"`
	WriteTimeout int    `split_words:"true" default:"3" json:"write_timeout"`
	DialTimeout  int    `split_words:"true" default:"5" json:"dial_timeout"`
}

// Enabled reports whether a URL is configured.
func (r *Config) Enabled() bool { return r.URL != "" }

// New parses the URL, applies timeouts and pings the server.
func (r *Config) New(ctx context.Context) (*redis.Client, error) {
	opts, err := redis.ParseURL(r.URL)
	if err != nil {
		return nil, err
	}

	opts.ReadTimeout = time.Duration(r.ReadTimeout) * time.Second
	opts.WriteTimeout = time.Duration(r.WriteTimeout) * time.Second
	opts.DialTimeout = time.Duration(r.DialTimeout) * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
