package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pendingListPrefix = "notify:pending:"
	pendingKeysPrefix = "notify:pending:keys:"
	pendingUsersKey   = "notify:pending:users"

	sweepMaxAttempts = 3
)

// enqueueScript: KEYS = list, dedup hash, user index; ARGV = dedup key, entry, user id.
var enqueueScript = redis.NewScript(`
	if redis.call("hsetnx", KEYS[2], ARGV[1], "1") == 0 then
		return 0
	end
	redis.call("rpush", KEYS[1], ARGV[2])
	redis.call("sadd", KEYS[3], ARGV[3])
	return 1
`)

// drainScript: KEYS = list, dedup hash, user index; ARGV = user id.
var drainScript = redis.NewScript(`
	local items = redis.call("lrange", KEYS[1], 0, -1)
	redis.call("del", KEYS[1], KEYS[2])
	redis.call("srem", KEYS[3], ARGV[1])
	return items
`)

// RedisPendingStore keeps one list per user so queued notifications survive
// restarts and are shared between instances.
type RedisPendingStore struct {
	rdb *redis.Client

	// beforeSweepCommit runs between reading a user's queue and rewriting it.
	beforeSweepCommit func(ctx context.Context, userID string)
}

func NewRedisPendingStore(rdb *redis.Client) *RedisPendingStore {
	return &RedisPendingStore{rdb: rdb}
}

func (s *RedisPendingStore) Enqueue(ctx context.Context, userID string, e Entry) (bool, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return false, fmt.Errorf("marshal pending entry: %w", err)
	}
	keys := []string{pendingListPrefix + userID, pendingKeysPrefix + userID, pendingUsersKey}
	added, err := enqueueScript.Run(ctx, s.rdb, keys, e.Notification.DedupKey(), string(raw), userID).Int64()
	if err != nil {
		return false, fmt.Errorf("enqueue pending notification for %s: %w", userID, err)
	}
	return added == 1, nil
}

func (s *RedisPendingStore) Drain(ctx context.Context, userID string) ([]Entry, error) {
	keys := []string{pendingListPrefix + userID, pendingKeysPrefix + userID, pendingUsersKey}
	items, err := drainScript.Run(ctx, s.rdb, keys, userID).StringSlice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("drain pending notifications for %s: %w", userID, err)
	}
	return decodeEntries(items), nil
}

func (s *RedisPendingStore) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	users, err := s.rdb.SMembers(ctx, pendingUsersKey).Result()
	if err != nil {
		return 0, fmt.Errorf("list pending users: %w", err)
	}

	removed := 0
	var errs []error
	for _, userID := range users {
		n, err := s.sweepUser(ctx, userID, olderThan)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		removed += n
	}
	return removed, errors.Join(errs...)
}

func (s *RedisPendingStore) sweepUser(ctx context.Context, userID string, olderThan time.Time) (int, error) {
	listKey := pendingListPrefix + userID
	hashKey := pendingKeysPrefix + userID

	for attempt := 0; attempt < sweepMaxAttempts; attempt++ {
		removed := 0
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			items, err := tx.LRange(ctx, listKey, 0, -1).Result()
			if err != nil {
				return err
			}

			var kept []Entry
			for _, e := range decodeEntries(items) {
				if e.EnqueuedAt.Before(olderThan) {
					removed++
					continue
				}
				kept = append(kept, e)
			}
			if removed == 0 && len(items) > 0 {
				return nil
			}

			if s.beforeSweepCommit != nil {
				s.beforeSweepCommit(ctx, userID)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, listKey, hashKey)
				if len(kept) == 0 {
					pipe.SRem(ctx, pendingUsersKey, userID)
					return nil
				}
				for _, e := range kept {
					raw, err := json.Marshal(e)
					if err != nil {
						return err
					}
					pipe.RPush(ctx, listKey, string(raw))
					pipe.HSet(ctx, hashKey, e.Notification.DedupKey(), "1")
				}
				return nil
			})
			return err
		}, listKey, hashKey)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("sweep pending notifications for %s: %w", userID, err)
		}
		return removed, nil
	}
	return 0, fmt.Errorf("sweep pending notifications for %s: gave up after %d attempts: %w", userID, sweepMaxAttempts, redis.TxFailedErr)
}

// decodeEntries skips entries that no longer parse.
func decodeEntries(items []string) []Entry {
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries
}
