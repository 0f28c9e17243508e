// Package loader implements an rdb.Handler that replays a decoded dump
// into a live Redis (or Redis Cluster) target: batched pipelines, rate
// limited, with a bounded number of batches in flight at once.
package loader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/congmo/rdbscan/internal/logger"
	"github.com/congmo/rdbscan/internal/rdb"
)

// Config controls replay throughput and target shape.
type Config struct {
	Addr        string
	Password    string
	Cluster     bool
	BatchSize   int           // entries per pipeline flush
	Concurrency int           // batches in flight at once
	FlushEvery  time.Duration // max time a partial batch waits before flushing
	RateLimit   int           // ops/sec across all batches, 0 = unlimited
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 256
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 16
	}
	if c.FlushEvery <= 0 {
		c.FlushEvery = 200 * time.Millisecond
	}
	return c
}

// cmd is one queued Redis write, built from a decoded record.
type cmd struct {
	db   int
	args []interface{}
}

// Handler replays decoded records as Redis write commands. It buffers
// commands into batches and flushes them as go-redis pipelines from a
// bounded pool of concurrent flushes.
type Handler struct {
	rdb.BaseHandler

	client  redis.UniversalClient
	cfg     Config
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	queue  chan cmd
	sem    chan struct{}
	wg     sync.WaitGroup

	currentDB int

	mu      sync.Mutex
	written int64
	failed  int64
}

// NewHandler dials the configured Redis target and returns a ready
// Handler. Call Close when decoding finishes to flush remaining batches
// and release the connection.
func NewHandler(cfg Config) (*Handler, error) {
	cfg = cfg.withDefaults()

	var client redis.UniversalClient
	if cfg.Cluster {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    []string{cfg.Addr},
			Password: cfg.Password,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := client.Ping(ctx).Err(); err != nil {
		cancel()
		return nil, fmt.Errorf("connect to redis target %s: %w", cfg.Addr, err)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.BatchSize)
	}

	h := &Handler{
		client:  client,
		cfg:     cfg,
		limiter: limiter,
		ctx:     ctx,
		cancel:  cancel,
		queue:   make(chan cmd, cfg.BatchSize*cfg.Concurrency*4),
		sem:     make(chan struct{}, cfg.Concurrency),
	}
	h.wg.Add(1)
	go h.batchLoop()
	return h, nil
}

// Close flushes any partially-filled batch, waits for in-flight writes,
// and closes the Redis connection.
func (h *Handler) Close() error {
	close(h.queue)
	h.wg.Wait()
	h.cancel()
	return h.client.Close()
}

// Stats returns the number of commands written and failed so far.
func (h *Handler) Stats() (written, failed int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.written, h.failed
}

func (h *Handler) enqueue(args []interface{}) {
	h.queue <- cmd{db: h.currentDB, args: args}
}

func (h *Handler) batchLoop() {
	defer h.wg.Done()

	batch := make([]cmd, 0, h.cfg.BatchSize)
	ticker := time.NewTicker(h.cfg.FlushEvery)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		toFlush := batch
		batch = make([]cmd, 0, h.cfg.BatchSize)
		h.sem <- struct{}{}
		h.wg.Add(1)
		go func(b []cmd) {
			defer h.wg.Done()
			defer func() { <-h.sem }()
			h.flush(b)
		}(toFlush)
	}

	for {
		select {
		case c, ok := <-h.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, c)
			if len(batch) >= h.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (h *Handler) flush(batch []cmd) {
	if h.limiter.Limit() != rate.Inf {
		if err := h.limiter.WaitN(h.ctx, len(batch)); err != nil {
			return
		}
	}

	byDB := make(map[int][]cmd, 1)
	for _, c := range batch {
		byDB[c.db] = append(byDB[c.db], c)
	}

	var success, failure int64
	for db, cmds := range byDB {
		pipe := h.client.Pipeline()
		if !h.cfg.Cluster {
			pipe.Do(h.ctx, "SELECT", db)
		}
		for _, c := range cmds {
			pipe.Do(h.ctx, c.args...)
		}
		results, err := pipe.Exec(h.ctx)
		if err != nil && err != redis.Nil {
			logger.Warn("loader: pipeline exec error for db %d: %v", db, err)
		}
		for _, r := range results {
			if r.Err() != nil && r.Err() != redis.Nil {
				failure++
			} else {
				success++
			}
		}
	}

	h.mu.Lock()
	h.written += success
	h.failed += failure
	h.mu.Unlock()
}

func (h *Handler) StartDatabase(db int) error {
	h.currentDB = db
	return nil
}

func (h *Handler) Set(key string, value rdb.Value, expireAtMicros int64, info rdb.Info) error {
	if expireAtMicros > 0 {
		h.enqueue([]interface{}{"SET", key, value.Bytes(), "PXAT", expireAtMicros / 1000})
	} else {
		h.enqueue([]interface{}{"SET", key, value.Bytes()})
	}
	return nil
}

func (h *Handler) HSet(key string, field, value rdb.Value) error {
	h.enqueue([]interface{}{"HSET", key, field.Bytes(), value.Bytes()})
	return nil
}

func (h *Handler) SAdd(key string, member rdb.Value) error {
	h.enqueue([]interface{}{"SADD", key, member.Bytes()})
	return nil
}

func (h *Handler) RPush(key string, value rdb.Value) error {
	h.enqueue([]interface{}{"RPUSH", key, value.Bytes()})
	return nil
}

func (h *Handler) ZAdd(key string, score float64, member rdb.Value) error {
	h.enqueue([]interface{}{"ZADD", key, score, member.Bytes()})
	return nil
}
