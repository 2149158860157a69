package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// removeIfUnchangedScript drops a member only when its due time was not pushed
// forward after it was read.
var removeIfUnchangedScript = redis.NewScript(`
	local score = redis.call("zscore", KEYS[1], ARGV[1])
	if score and tonumber(score) == tonumber(ARGV[2]) then
		redis.call("zrem", KEYS[1], ARGV[1])
		redis.call("hdel", KEYS[2], ARGV[1])
		return 1
	end
	return 0
`)

// DueEntry is a delayed member whose due time has passed.
type DueEntry struct {
	Member  string
	Score   float64
	Payload string
}

// DelayedSet stores payloads in a hash and their due times in a sorted set.
// Scheduling an existing member replaces its payload and due time, so repeated
// requests for the same work collapse into one.
type DelayedSet struct {
	client *Client
	key    string
}

// NewDelayedSet creates a delayed set rooted at key
func NewDelayedSet(client *Client, key string) *DelayedSet {
	return &DelayedSet{client: client, key: key}
}

func (d *DelayedSet) payloadKey() string {
	return d.key + ":payloads"
}

// Schedule stores payload under member, due at dueAt
func (d *DelayedSet) Schedule(ctx context.Context, member string, payload []byte, dueAt time.Time) error {
	_, err := d.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, d.payloadKey(), member, string(payload))
		pipe.ZAdd(ctx, d.key, redis.Z{Score: float64(dueAt.UnixMilli()), Member: member})
		return nil
	})
	if err != nil {
		d.client.logger.WithContext(ctx).WithError(err).Errorf("Failed to schedule delayed member %s", member)
		return fmt.Errorf("failed to schedule %s: %w", member, err)
	}
	return nil
}

// Due returns up to limit members due at or before now
func (d *DelayedSet) Due(ctx context.Context, now time.Time, limit int64) ([]DueEntry, error) {
	members, err := d.client.rdb.ZRangeByScoreWithScores(ctx, d.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]DueEntry, 0, len(members))
	for _, z := range members {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		payload, err := d.client.rdb.HGet(ctx, d.payloadKey(), member).Result()
		if err == redis.Nil {
			payload = ""
		} else if err != nil {
			return nil, err
		}
		entries = append(entries, DueEntry{Member: member, Score: z.Score, Payload: payload})
	}
	return entries, nil
}

// Remove deletes entry unless it was rescheduled since Due returned it
func (d *DelayedSet) Remove(ctx context.Context, entry DueEntry) (bool, error) {
	removed, err := removeIfUnchangedScript.Run(ctx, d.client.rdb,
		[]string{d.key, d.payloadKey()},
		entry.Member, strconv.FormatFloat(entry.Score, 'f', -1, 64),
	).Int64()
	if err != nil {
		return false, err
	}
	return removed == 1, nil
}

// Len returns the number of pending delayed members
func (d *DelayedSet) Len(ctx context.Context) (int64, error) {
	return d.client.rdb.ZCard(ctx, d.key).Result()
}

// Score returns the due time of member in unix milliseconds
func (d *DelayedSet) Score(ctx context.Context, member string) (float64, error) {
	return d.client.rdb.ZScore(ctx, d.key, member).Result()
}
