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
	ProgressBatchSize    = 50
	ProgressBatchTimeout = 2 * time.Second
	ProgressPollTimeout  = 1 * time.Second
)

// ProgressWorker consumes the progress queue and lands engine snapshots
// (palette state, cursor, remaining time) on test_sessions as jsonb. The
// snapshot backs session recovery when both the engine and Redis are gone.
type ProgressWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewProgressWorker creates a new ProgressWorker.
func NewProgressWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ProgressWorker {
	return &ProgressWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "progress_worker").Logger(),
	}
}

type progressPayload struct {
	TestID    string          `json:"test_id"`
	LearnerID int             `json:"learner_id"`
	Progress  json.RawMessage `json:"progress"`
}

func (w *ProgressWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ProgressWorker started")

	batch := make([]*progressPayload, 0, ProgressBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= ProgressBatchSize || time.Since(lastFlush) >= ProgressBatchTimeout) {

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
			item, err := w.rdb.BLPop(ctx, ProgressPollTimeout, config.WorkerKey.PersistProgressQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p progressPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

func (w *ProgressWorker) flushSafe(ctx context.Context, batch []*progressPayload) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkUpdate(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk progress update failed, using fallback")

		for _, p := range batch {
			if err := w.persistSingle(ctx, p); err != nil {
				w.log.Error().Err(err).Msg("persistSingle failed — requeueing")
				raw, _ := json.Marshal(p)
				w.rdb.RPush(ctx, config.WorkerKey.PersistProgressQueue, raw)
			}
		}
	}
}

func (w *ProgressWorker) bulkUpdate(ctx context.Context, batch []*progressPayload) error {
	n := len(batch)

	testIDs := make([]uuid.UUID, 0, n)
	learners := make([]int, 0, n)
	progressBytes := make([][]byte, 0, n)

	for _, p := range batch {
		tID, err := uuid.Parse(p.TestID)
		if err != nil {
			return err
		}

		testIDs = append(testIDs, tID)
		learners = append(learners, p.LearnerID)
		progressBytes = append(progressBytes, []byte(p.Progress))
	}

	query := `
		UPDATE test_sessions AS s
		SET progress = t.progress
		FROM (
			SELECT
				u.test_id,
				u.learner_id,
				u.progress
			FROM UNNEST(
				$1::uuid[],
				$2::int[],
				$3::jsonb[]
			) AS u (test_id, learner_id, progress)
		) AS t
		WHERE s.test_id = t.test_id
		  AND s.learner_id = t.learner_id
		  AND s.status = 'IN_PROGRESS'
	`

	_, err := w.pool.Exec(ctx, query, testIDs, learners, progressBytes)
	return err
}

func (w *ProgressWorker) persistSingle(ctx context.Context, p *progressPayload) error {
	tID, err := uuid.Parse(p.TestID)
	if err != nil {
		return err
	}

	_, err = w.pool.Exec(ctx,
		`UPDATE test_sessions
		 SET progress = $1
		 WHERE test_id = $2 AND learner_id = $3 AND status = 'IN_PROGRESS'`,
		[]byte(p.Progress), tID, p.LearnerID,
	)

	return err
}
