package ratelimit

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const inflightKey = "clipqueue:downloads:inflight"

// ClaimInflight records a dispatched job in the inflight SET. Using a SET
// (not a counter) means release is idempotent — a worker that crashes after
// release, or a double-release on a panic path, can never push the
// accounting negative.
func ClaimInflight(ctx context.Context, rc *redis.Client, jobID string) error {
	return rc.SAdd(ctx, inflightKey, jobID).Err()
}

// ReleaseInflight removes a finished job from the inflight SET. Safe to
// call multiple times; SREM on a missing member is a no-op.
func ReleaseInflight(ctx context.Context, rc *redis.Client, jobID string) error {
	return rc.SRem(ctx, inflightKey, jobID).Err()
}

// InflightCount returns the number of currently dispatched downloads.
func InflightCount(ctx context.Context, rc *redis.Client) (int64, error) {
	return rc.SCard(ctx, inflightKey).Result()
}
