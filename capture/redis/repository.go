package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/marcelsud/webhook-inspector/capture"
	"github.com/redis/go-redis/v9"
)

/* Redis implementation of capture.Repository
 * Uses a Hash per record for the facets
 * Uses a sorted set with a constant score as the ordered index: members are
 * canonical identifiers, so lexicographic range queries walk them in ID order
 */

const (
	hashPrefix  = "webhook"        // Hash naming: webhook:{id}
	indexKey    = "webhooks:index" // Sorted set of every stored id
	deleteBatch = 500
)

// Creating the hash and indexing it happen in one step, so a reader never sees
// an indexed id without its facets
var insertScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV, 2))
redis.call('ZADD', KEYS[2], 0, ARGV[1])
return 1
`)

type Repository struct {
	client *redis.Client
}

// NewRepository creates a new Redis repository
func NewRepository(addr, password string, db int) (*Repository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	return &Repository{
		client: client,
	}, nil
}

// Insert stores the record hash and indexes its id atomically
func (r *Repository) Insert(ctx context.Context, rec capture.Record) error {
	fields, err := encode(rec)
	if err != nil {
		return capture.NewStorageError("encoding record", err)
	}

	args := make([]interface{}, 0, len(fields)+1)
	args = append(args, rec.ID.String())
	args = append(args, fields...)

	created, err := insertScript.Run(ctx, r.client, []string{hashKey(rec.ID), indexKey}, args...).Int()
	if err != nil {
		return capture.NewStorageError("storing record", err)
	}
	if created == 0 {
		return capture.NewStorageError("storing record", capture.ErrDuplicateID)
	}
	return nil
}

// Get retrieves a record by id from its hash
func (r *Repository) Get(ctx context.Context, id capture.ID) (capture.Record, error) {
	data, err := r.client.HGetAll(ctx, hashKey(id)).Result()
	if err != nil {
		return capture.Record{}, capture.NewStorageError("getting record", err)
	}
	if len(data) == 0 {
		return capture.Record{}, capture.ErrNotFound
	}

	rec, err := decode(data)
	if err != nil {
		return capture.Record{}, capture.NewStorageError("decoding record", err)
	}
	return rec, nil
}

// ScanAfter walks the index lexicographically from after and loads the hashes in one pipeline
func (r *Repository) ScanAfter(ctx context.Context, after capture.ID, limit int) ([]capture.Record, error) {
	limit, err := capture.ClampLimit(limit)
	if err != nil {
		return nil, err
	}

	ids, err := r.client.ZRangeArgs(ctx, redis.ZRangeArgs{
		Key:   indexKey,
		Start: "(" + after.String(),
		Stop:  "+",
		ByLex: true,
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, capture.NewStorageError("reading index", err)
	}
	if len(ids) == 0 {
		return []capture.Record{}, nil
	}

	cmds, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.HGetAll(ctx, hashPrefix+":"+id)
		}
		return nil
	})
	if err != nil {
		return nil, capture.NewStorageError("loading records", err)
	}

	records := make([]capture.Record, 0, len(cmds))
	for _, cmd := range cmds {
		data := cmd.(*redis.MapStringStringCmd).Val()
		if len(data) == 0 {
			// removed by a concurrent DeleteAll
			continue
		}
		rec, err := decode(data)
		if err != nil {
			return nil, capture.NewStorageError("decoding record", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Count returns the size of the index
func (r *Repository) Count(ctx context.Context) (int64, error) {
	n, err := r.client.ZCard(ctx, indexKey).Result()
	if err != nil {
		return 0, capture.NewStorageError("counting records", err)
	}
	return n, nil
}

// DeleteAll removes every record hash in batches, then the index itself
func (r *Repository) DeleteAll(ctx context.Context) error {
	for {
		ids, err := r.client.ZRange(ctx, indexKey, 0, deleteBatch-1).Result()
		if err != nil {
			return capture.NewStorageError("reading index", err)
		}
		if len(ids) == 0 {
			break
		}

		keys := make([]string, len(ids))
		members := make([]interface{}, len(ids))
		for i, id := range ids {
			keys[i] = hashPrefix + ":" + id
			members[i] = id
		}

		_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, keys...)
			pipe.ZRem(ctx, indexKey, members...)
			return nil
		})
		if err != nil {
			return capture.NewStorageError("deleting records", err)
		}
	}
	return nil
}

// Ping checks the connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Close()
}

func hashKey(id capture.ID) string {
	return fmt.Sprintf("%s:%s", hashPrefix, id)
}

// encode flattens a record into HSET field/value pairs; absent facets are left out
func encode(rec capture.Record) ([]interface{}, error) {
	fields := []interface{}{
		"id", rec.ID.String(),
		"method", rec.Method,
		"pathname", rec.Pathname,
		"ip", rec.IP,
		"status_code", rec.StatusCode,
		"created_at", rec.CreatedAt.UnixMilli(),
	}

	optional := func(name string, v *string) {
		if v != nil {
			fields = append(fields, name, *v)
		}
	}
	optional("content_type", rec.ContentType)
	optional("content_length", rec.ContentLength)
	optional("body", rec.Body)

	query, err := capture.MarshalMap(rec.QueryParams)
	if err != nil {
		return nil, err
	}
	optional("query_params", query)

	headers, err := capture.MarshalMap(rec.Headers)
	if err != nil {
		return nil, err
	}
	optional("headers", headers)

	return fields, nil
}

func decode(data map[string]string) (capture.Record, error) {
	id, err := capture.ParseID(data["id"])
	if err != nil {
		return capture.Record{}, fmt.Errorf("parsing id %q: %w", data["id"], err)
	}
	status, err := strconv.Atoi(data["status_code"])
	if err != nil {
		return capture.Record{}, fmt.Errorf("parsing status code: %w", err)
	}
	createdAt, err := strconv.ParseInt(data["created_at"], 10, 64)
	if err != nil {
		return capture.Record{}, fmt.Errorf("parsing created_at: %w", err)
	}

	rec := capture.Record{
		ID:            id,
		Method:        data["method"],
		Pathname:      data["pathname"],
		IP:            data["ip"],
		StatusCode:    status,
		ContentType:   field(data, "content_type"),
		ContentLength: field(data, "content_length"),
		Body:          field(data, "body"),
		CreatedAt:     time.UnixMilli(createdAt).UTC(),
	}
	if rec.QueryParams, err = capture.UnmarshalMap(field(data, "query_params")); err != nil {
		return capture.Record{}, err
	}
	if rec.Headers, err = capture.UnmarshalMap(field(data, "headers")); err != nil {
		return capture.Record{}, err
	}
	return rec, nil
}

func field(data map[string]string, name string) *string {
	v, ok := data[name]
	if !ok {
		return nil
	}
	return &v
}
