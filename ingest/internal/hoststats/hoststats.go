// Package hoststats keeps Redis-backed per-host ingestion statistics so
// operators can see which agents are reporting.
//
// Several ingest instances may write concurrently.
//
// Redis key layout:
//
//	sentinel:host:{hostname}                     - hash: last_seen_at, last_seen_ip, total_events
//	sentinel:host:hourly:{hostname}:{YYYYMMDDHH} - event count for the hour (expires 48h)
//	sentinel:host:instances:{hostname}           - hash: ingest instance -> last seen
package hoststats

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix      = "sentinel:host:"
	hourlyPrefix   = "sentinel:host:hourly:"
	instancePrefix = "sentinel:host:instances:"
	hourLayout     = "2006010215"
)

// Stats is the current view of one reporting host.
type Stats struct {
	Hostname        string            `json:"hostname"`
	LastSeenAt      *time.Time        `json:"last_seen_at,omitempty"`
	LastSeenIP      string            `json:"last_seen_ip,omitempty"`
	TotalEvents     int64             `json:"total_events"`
	EventsLastHour  int64             `json:"events_last_hour"`
	EventsLast24h   int64             `json:"events_last_24h"`
	IngestInstances map[string]string `json:"ingest_instances,omitempty"`
}

// ErrUnknownHost is returned by Get for a host that never reported.
var ErrUnknownHost = errors.New("host has not reported")

type Client struct {
	redis      *redis.Client
	instanceID string
	now        func() time.Time
}

// NewClient connects to Redis. instanceID identifies this ingest instance.
func NewClient(ctx context.Context, redisURL, instanceID string) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &Client{redis: client, instanceID: instanceID, now: time.Now}, nil
}

// Batch accumulates events for one host between flushes.
type Batch struct {
	Hostname   string
	EventCount int64
	LastIP     string
}

// FlushBatch writes an accumulated batch in one pipeline.
func (c *Client) FlushBatch(ctx context.Context, b *Batch) error {
	if b.EventCount == 0 {
		return nil
	}
	now := c.now().UTC()
	nowUnix := strconv.FormatInt(now.Unix(), 10)

	pipe := c.redis.Pipeline()

	statsKey := keyPrefix + b.Hostname
	fields := map[string]any{"last_seen_at": nowUnix}
	if b.LastIP != "" {
		fields["last_seen_ip"] = b.LastIP
	}
	pipe.HSet(ctx, statsKey, fields)
	pipe.HIncrBy(ctx, statsKey, "total_events", b.EventCount)

	hourlyKey := hourlyPrefix + b.Hostname + ":" + now.Format(hourLayout)
	pipe.IncrBy(ctx, hourlyKey, b.EventCount)
	pipe.Expire(ctx, hourlyKey, 48*time.Hour)

	instancesKey := instancePrefix + b.Hostname
	pipe.HSet(ctx, instancesKey, c.instanceID, nowUnix)
	pipe.Expire(ctx, instancesKey, 24*time.Hour)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to flush host stats: %w", err)
	}
	return nil
}

// Get returns the statistics for hostname.
func (c *Client) Get(ctx context.Context, hostname string) (*Stats, error) {
	now := c.now().UTC()

	pipe := c.redis.Pipeline()
	statsCmd := pipe.HGetAll(ctx, keyPrefix+hostname)
	hourly := make([]*redis.StringCmd, 24)
	for i := range hourly {
		t := now.Add(-time.Duration(i) * time.Hour)
		hourly[i] = pipe.Get(ctx, hourlyPrefix+hostname+":"+t.Format(hourLayout))
	}
	instancesCmd := pipe.HGetAll(ctx, instancePrefix+hostname)

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get host stats: %w", err)
	}

	fields, err := statsCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get host stats: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHost, hostname)
	}

	stats := &Stats{Hostname: hostname, IngestInstances: map[string]string{}}
	if v, ok := fields["last_seen_at"]; ok {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
			t := time.Unix(unix, 0).UTC()
			stats.LastSeenAt = &t
		}
	}
	stats.LastSeenIP = fields["last_seen_ip"]
	stats.TotalEvents, _ = strconv.ParseInt(fields["total_events"], 10, 64)

	if v, err := hourly[0].Int64(); err == nil {
		stats.EventsLastHour = v
	}
	for _, cmd := range hourly {
		if v, err := cmd.Int64(); err == nil {
			stats.EventsLast24h += v
		}
	}

	if instances, err := instancesCmd.Result(); err == nil {
		for id, seen := range instances {
			if unix, err := strconv.ParseInt(seen, 10, 64); err == nil {
				stats.IngestInstances[id] = time.Unix(unix, 0).UTC().Format(time.RFC3339)
			}
		}
	}
	return stats, nil
}

// ActiveHosts returns hosts that reported within since.
func (c *Client) ActiveHosts(ctx context.Context, since time.Duration) ([]string, error) {
	cutoff := c.now().Add(-since).Unix()
	var hosts []string

	iter := c.redis.Scan(ctx, 0, keyPrefix+"*", 1000).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.HasPrefix(key, hourlyPrefix) || strings.HasPrefix(key, instancePrefix) {
			continue
		}
		lastSeen, err := c.redis.HGet(ctx, key, "last_seen_at").Int64()
		if err == nil && lastSeen >= cutoff {
			hosts = append(hosts, strings.TrimPrefix(key, keyPrefix))
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan hosts: %w", err)
	}
	return hosts, nil
}

func (c *Client) Close() error {
	return c.redis.Close()
}
