package redis

import (
	"context"
	"fmt"
	"time"
)

const (
	nextRunsKey  = "cronjobs:next_runs"
	heartbeatKey = "cronjobs:scheduler:heartbeat"
)

// StatusBoard keeps the scheduler's computed next fire times where the admin
// API can read them without recomputing or talking to the scheduler process.
type StatusBoard struct {
	client       *Client
	heartbeatTTL time.Duration
}

func NewStatusBoard(client *Client, heartbeatTTL time.Duration) *StatusBoard {
	if heartbeatTTL <= 0 {
		heartbeatTTL = 2 * time.Minute
	}
	return &StatusBoard{client: client, heartbeatTTL: heartbeatTTL}
}

// PublishNextRuns replaces the stored next fire times and refreshes the
// scheduler heartbeat.
func (b *StatusBoard) PublishNextRuns(ctx context.Context, next map[string]time.Time) error {
	values := make(map[string]interface{}, len(next))
	for slug, at := range next {
		values[slug] = at.Format(time.RFC3339)
	}

	pipe := b.client.TxPipeline()
	pipe.Del(ctx, nextRunsKey)
	if len(values) > 0 {
		pipe.HSet(ctx, nextRunsKey, values)
	}
	pipe.Set(ctx, heartbeatKey, time.Now().Format(time.RFC3339), b.heartbeatTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish next runs: %w", err)
	}
	return nil
}

// NextRuns returns the last published next fire times keyed by job slug.
func (b *StatusBoard) NextRuns(ctx context.Context) (map[string]time.Time, error) {
	raw, err := b.client.HGetAll(ctx, nextRunsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read next runs: %w", err)
	}
	result := make(map[string]time.Time, len(raw))
	for slug, value := range raw {
		at, err := time.Parse(time.RFC3339, value)
		if err != nil {
			continue
		}
		result[slug] = at
	}
	return result, nil
}

// SchedulerAlive reports whether the scheduler refreshed its heartbeat
// within the heartbeat TTL.
func (b *StatusBoard) SchedulerAlive(ctx context.Context) (bool, error) {
	n, err := b.client.Exists(ctx, heartbeatKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read scheduler heartbeat: %w", err)
	}
	return n > 0, nil
}
