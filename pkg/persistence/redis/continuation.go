// Package redis stores suspended-run continuations in Redis: a sorted set
// indexes run ids by resume time and a hash per run holds the payload.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dukex/engageflow/pkg/models"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "engageflow"

// claimScript leases due entries atomically: each claimed run is rescheduled to
// the lease deadline and its attempts counter is incremented. It returns
// id, data, attempts triples. Index entries whose payload disappeared are
// dropped.
var claimScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[3]))
local out = {}
for _, id in ipairs(ids) do
	local key = ARGV[4] .. id
	local data = redis.call('HGET', key, 'data')
	if data then
		local attempts = redis.call('HINCRBY', key, 'attempts', 1)
		redis.call('ZADD', KEYS[1], ARGV[2], id)
		table.insert(out, id)
		table.insert(out, data)
		table.insert(out, tostring(attempts))
	else
		redis.call('ZREM', KEYS[1], id)
	end
end
return out
`)

type ContinuationRepository struct {
	client redis.UniversalClient
	logger *slog.Logger
	prefix string
}

// NewContinuationRepository connects to the Redis instance at url
// (redis://[:password@]host:port/db).
func NewContinuationRepository(ctx context.Context, logger *slog.Logger, url string) (*ContinuationRepository, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", options.Addr, "db", options.DB)

	return NewContinuationRepositoryWithClient(client, logger, defaultPrefix), nil
}

func NewContinuationRepositoryWithClient(client redis.UniversalClient, logger *slog.Logger, prefix string) *ContinuationRepository {
	return &ContinuationRepository{client: client, logger: logger, prefix: prefix}
}

func (r *ContinuationRepository) indexKey() string {
	return r.prefix + ":continuations:due"
}

func (r *ContinuationRepository) itemPrefix() string {
	return r.prefix + ":continuation:"
}

func (r *ContinuationRepository) Save(ctx context.Context, continuation *models.Continuation) error {
	data, err := json.Marshal(continuation)
	if err != nil {
		return fmt.Errorf("failed to marshal continuation %s: %w", continuation.RunID, err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.itemPrefix()+continuation.RunID, "data", data, "attempts", continuation.Attempts)
		pipe.ZAdd(ctx, r.indexKey(), redis.Z{Score: score(continuation.ResumeAt), Member: continuation.RunID})

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save continuation %s: %w", continuation.RunID, err)
	}

	return nil
}

func (r *ContinuationRepository) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*models.Continuation, error) {
	if limit <= 0 {
		limit = 100
	}

	leaseUntil := now.Add(lease)

	raw, err := claimScript.Run(ctx, r.client,
		[]string{r.indexKey()},
		score(now), score(leaseUntil), limit, r.itemPrefix(),
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to claim continuations: %w", err)
	}

	claimed := make([]*models.Continuation, 0, len(raw)/3)

	for i := 0; i+2 < len(raw); i += 3 {
		runID := raw[i]

		var continuation models.Continuation

		err := json.Unmarshal([]byte(raw[i+1]), &continuation)
		if err != nil {
			r.logger.ErrorContext(ctx, "Dropping undecodable continuation", "run_id", runID, "error", err)

			err = r.Delete(ctx, runID)
			if err != nil {
				r.logger.WarnContext(ctx, "Failed to drop undecodable continuation", "run_id", runID, "error", err)
			}

			continue
		}

		attempts, err := strconv.Atoi(raw[i+2])
		if err == nil {
			continuation.Attempts = attempts
		}

		continuation.ResumeAt = leaseUntil
		claimed = append(claimed, &continuation)
	}

	return claimed, nil
}

func (r *ContinuationRepository) Delete(ctx context.Context, runID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, r.indexKey(), runID)
		pipe.Del(ctx, r.itemPrefix()+runID)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete continuation %s: %w", runID, err)
	}

	return nil
}

func (r *ContinuationRepository) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *ContinuationRepository) Close(_ context.Context) error {
	return r.client.Close()
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}
