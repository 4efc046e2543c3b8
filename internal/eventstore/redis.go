package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/technosupport/ts-vms-es/internal/events"
)

// appendScript checks the precondition and pushes the events in one step so
// no other writer can interleave. Returns {1, lastRevision} on success and
// {0, currentRevision} when the precondition fails.
var appendScript = redis.NewScript(`
	local current = redis.call("LLEN", KEYS[1]) - 1
	local mode = ARGV[1]
	if mode == "no_stream" and current ~= -1 then
		return {0, current}
	end
	if mode == "exact" and current ~= tonumber(ARGV[2]) then
		return {0, current}
	end
	for i = 3, #ARGV do
		redis.call("RPUSH", KEYS[1], ARGV[i])
	end
	return {1, current + #ARGV - 2}
`)

type redisEntry struct {
	EventID   uuid.UUID       `json:"eventId"`
	EventType string          `json:"eventType"`
	Payload   json.RawMessage `json:"payload"`
	Metadata  json.RawMessage `json:"metadata"`
	Created   time.Time       `json:"created"`
}

// RedisStore keeps each stream as a Redis list; list index is revision.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	now       func() time.Time
}

func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "es:"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix, now: time.Now}
}

func (s *RedisStore) key(stream string) string { return s.keyPrefix + stream }

func (s *RedisStore) AppendToStream(ctx context.Context, stream string, expected Precondition, envs []events.Envelope) (int64, error) {
	if len(envs) == 0 {
		return NoRevision, errNothingToAppend
	}

	mode := "any"
	if expected.IsMustNotExist() {
		mode = "no_stream"
	}
	rev, exact := expected.Revision()
	if exact {
		mode = "exact"
	}

	created := s.now().UTC()
	args := make([]any, 0, len(envs)+2)
	args = append(args, mode, strconv.FormatInt(rev, 10))
	for _, env := range envs {
		b, err := json.Marshal(redisEntry{
			EventID:   env.EventID,
			EventType: env.EventType,
			Payload:   env.Payload,
			Metadata:  env.Metadata,
			Created:   created,
		})
		if err != nil {
			return NoRevision, fmt.Errorf("marshal entry: %w", err)
		}
		args = append(args, string(b))
	}

	res, err := appendScript.Run(ctx, s.client, []string{s.key(stream)}, args...).Int64Slice()
	if err != nil {
		return NoRevision, Unavailable(err)
	}
	if len(res) != 2 {
		return NoRevision, Unavailable(fmt.Errorf("unexpected append reply %v", res))
	}
	if res[0] == 0 {
		return res[1], &WrongExpectedRevisionError{Stream: stream, Expected: expected, Actual: res[1]}
	}
	return res[1], nil
}

func (s *RedisStore) ReadStream(ctx context.Context, stream string, dir Direction, from int64, maxCount int) ([]RecordedEvent, error) {
	key := s.key(stream)
	n, err := s.client.LLen(ctx, key).Result()
	if err != nil {
		return nil, Unavailable(err)
	}
	if n == 0 {
		return nil, ErrStreamNotFound
	}

	lo, hi := window(n, dir, from, maxCount)
	if lo >= hi {
		return []RecordedEvent{}, nil
	}
	raw, err := s.client.LRange(ctx, key, lo, hi-1).Result()
	if err != nil {
		return nil, Unavailable(err)
	}

	out := make([]RecordedEvent, len(raw))
	for i, item := range raw {
		var e redisEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("%w: %s at revision %d: %v", events.ErrMalformedEvent, stream, lo+int64(i), err)
		}
		rec := RecordedEvent{
			Stream:   stream,
			Revision: lo + int64(i),
			Created:  e.Created,
			Envelope: events.Envelope{
				EventID:   e.EventID,
				EventType: e.EventType,
				Payload:   e.Payload,
				Metadata:  e.Metadata,
			},
		}
		if dir == Backwards {
			out[len(raw)-1-i] = rec
		} else {
			out[i] = rec
		}
	}
	return out, nil
}
