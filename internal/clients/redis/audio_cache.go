// Package redis caches synthesized speech so repeated prompts skip the TTS provider.
package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/everhighit/coach-api/internal/observability"
	"github.com/everhighit/coach-api/internal/platform/logger"
	"github.com/everhighit/coach-api/internal/provider"
)

const keyPrefix = "coach:tts:"

type AudioCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewAudioCache(log *logger.Logger, addr, password string, db int, ttl time.Duration) (*AudioCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &AudioCache{
		log: log.With("service", "RedisAudioCache"),
		rdb: rdb,
		ttl: ttl,
	}, nil
}

// Key identifies one synthesized clip. Text is hashed so keys stay short.
func Key(voice, format, text string) string {
	h := sha256.New()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(voice))))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(format))))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(text))
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Get reports a miss on any redis error; the caller falls through to the provider.
func (c *AudioCache) Get(ctx context.Context, key string) (*provider.Audio, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	vals, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.log.Warn("tts cache get failed", "key", key, "error", err)
		}
		observability.Current().ObserveTTSCache(false)
		return nil, false
	}
	data, ok := vals["data"]
	if !ok || data == "" {
		observability.Current().ObserveTTSCache(false)
		return nil, false
	}
	observability.Current().ObserveTTSCache(true)
	return &provider.Audio{Data: []byte(data), ContentType: vals["content_type"]}, true
}

func (c *AudioCache) Set(ctx context.Context, key string, audio *provider.Audio) {
	if c == nil || c.rdb == nil || audio == nil || len(audio.Data) == 0 {
		return
	}
	_, err := c.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.HSet(ctx, key, "data", audio.Data, "content_type", audio.ContentType)
		if c.ttl > 0 {
			p.Expire(ctx, key, c.ttl)
		}
		return nil
	})
	if err != nil {
		c.log.Warn("tts cache set failed", "key", key, "error", err)
	}
}

func (c *AudioCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
