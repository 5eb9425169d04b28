package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testport/testport-backend/internal/config"
)

// MonitorRepository provides data access for the live test monitoring feature.
// It combines PostgreSQL (session rows) and Redis (live answer hashes).
type MonitorRepository struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool, rdb *redis.Client) *MonitorRepository {
	return &MonitorRepository{pool: pool, rdb: rdb}
}

// GetInProgressLearnerIDs returns all learner IDs with an active session for
// the given test.
func (r *MonitorRepository) GetInProgressLearnerIDs(ctx context.Context, testID uuid.UUID) ([]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT learner_id FROM test_sessions WHERE test_id = $1 AND status = 'IN_PROGRESS'`,
		testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetLiveAnsweredCount reads a learner's live answer count from the Redis
// answers hash. Returns 0 when nothing is cached yet.
func (r *MonitorRepository) GetLiveAnsweredCount(ctx context.Context, testID uuid.UUID, learnerID int) (int64, error) {
	n, err := r.rdb.HLen(ctx, config.CacheKey.LearnerAnswersKey(testID.String(), learnerID)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// GetAnsweredCounts returns the count of persisted answers for every learner
// with at least one answer recorded in the given test.
func (r *MonitorRepository) GetAnsweredCounts(ctx context.Context, testID uuid.UUID) (map[int]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT learner_id, COUNT(*)
		 FROM session_answers
		 WHERE test_id = $1
		 GROUP BY learner_id`,
		testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int64)
	for rows.Next() {
		var lid int
		var count int64
		if err := rows.Scan(&lid, &count); err != nil {
			return nil, err
		}
		counts[lid] = count
	}
	return counts, rows.Err()
}

// GetViolationCounts returns the number of violation events recorded for each
// learner in the given test.
func (r *MonitorRepository) GetViolationCounts(ctx context.Context, testID uuid.UUID) (map[int]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT learner_id, COUNT(*)
		 FROM session_violations
		 WHERE test_id = $1
		 GROUP BY learner_id`,
		testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int64)
	for rows.Next() {
		var lid int
		var count int64
		if err := rows.Scan(&lid, &count); err != nil {
			return nil, err
		}
		counts[lid] = count
	}
	return counts, rows.Err()
}
