package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testport/testport-backend/internal/config"
)

const (
	ScoreBatchSize    = 50
	ScoreBatchTimeout = 2 * time.Second
	ScorePollTimeout  = 1 * time.Second
)

// ScoringWorker consumes the scores queue and finalizes test_sessions rows in
// batches. The IN_PROGRESS guard makes the update idempotent: a requeued
// payload for an already-completed session is a no-op.
type ScoringWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewScoringWorker creates a new ScoringWorker.
func NewScoringWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ScoringWorker {
	return &ScoringWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "scoring_worker").Logger(),
	}
}

type scorePayload struct {
	LearnerID      int     `json:"learner_id"`
	TestID         string  `json:"test_id"`
	Score          float64 `json:"score"`
	ViolationCount int     `json:"violation_count"`
	Forced         bool    `json:"forced"`
	TotalTime      int     `json:"total_time_s"`
}

func (w *ScoringWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ScoringWorker started")

	batch := make([]*scorePayload, 0, ScoreBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= ScoreBatchSize || time.Since(lastFlush) >= ScoreBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ScorePollTimeout, config.WorkerKey.PersistScoresQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p scorePayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

func (w *ScoringWorker) flushSafe(ctx context.Context, batch []*scorePayload) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkFinalize(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk score update failed, using fallback")

		for _, p := range batch {
			if err := w.persistSingle(ctx, p); err != nil {
				w.log.Error().Err(err).Msg("persistSingle failed — requeueing")
				raw, _ := json.Marshal(p)
				w.rdb.RPush(ctx, config.WorkerKey.PersistScoresQueue, raw)
			}
		}
		return
	}

	// After successful finalization → delete autosave buffers in Redis.
	w.bulkClearAutosavedAnswers(ctx, batch)
}

// bulkFinalize completes a whole batch of sessions in one UNNEST round trip.
func (w *ScoringWorker) bulkFinalize(ctx context.Context, batch []*scorePayload) error {
	n := len(batch)

	testIDs := make([]uuid.UUID, 0, n)
	learners := make([]int, 0, n)
	scores := make([]float64, 0, n)
	violations := make([]int, 0, n)
	forced := make([]bool, 0, n)
	finishedAts := make([]time.Time, 0, n)

	now := time.Now()
	for _, p := range batch {
		tID, err := uuid.Parse(p.TestID)
		if err != nil {
			return err
		}
		testIDs = append(testIDs, tID)
		learners = append(learners, p.LearnerID)
		scores = append(scores, p.Score)
		violations = append(violations, p.ViolationCount)
		forced = append(forced, p.Forced)
		finishedAts = append(finishedAts, now)
	}

	query := `
		UPDATE test_sessions AS s
		SET status = 'COMPLETED',
		    final_score = t.score,
		    violation_count = t.violation_count,
		    forced_submit = t.forced,
		    finished_at = t.finished_at
		FROM (
			SELECT
				u.test_id,
				u.learner_id,
				u.score,
				u.violation_count,
				u.forced,
				u.finished_at
			FROM UNNEST(
				$1::uuid[],
				$2::int[],
				$3::float8[],
				$4::int[],
				$5::bool[],
				$6::timestamptz[]
			) AS u (test_id, learner_id, score, violation_count, forced, finished_at)
		) AS t
		WHERE s.test_id = t.test_id
		  AND s.learner_id = t.learner_id
		  AND s.status = 'IN_PROGRESS'
	`

	_, err := w.pool.Exec(ctx, query, testIDs, learners, scores, violations, forced, finishedAts)
	return err
}

func (w *ScoringWorker) bulkClearAutosavedAnswers(ctx context.Context, batch []*scorePayload) {
	pipe := w.rdb.Pipeline()

	for _, p := range batch {
		pipe.Del(ctx, config.CacheKey.LearnerAnswersKey(p.TestID, p.LearnerID))
	}

	_, _ = pipe.Exec(ctx)
}

func (w *ScoringWorker) persistSingle(ctx context.Context, p *scorePayload) error {
	tID, err := uuid.Parse(p.TestID)
	if err != nil {
		return err
	}

	_, err = w.pool.Exec(ctx,
		`UPDATE test_sessions
		 SET status = 'COMPLETED',
		     final_score = $1,
		     violation_count = $2,
		     forced_submit = $3,
		     finished_at = NOW()
		 WHERE test_id = $4 AND learner_id = $5 AND status = 'IN_PROGRESS'`,
		p.Score, p.ViolationCount, p.Forced, tID, p.LearnerID,
	)

	return err
}
