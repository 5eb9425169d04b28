package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testport/testport-backend/internal/model"
)

// DashboardRepository handles faculty dashboard data access.
type DashboardRepository struct {
	pool *pgxpool.Pool
}

// NewDashboardRepository creates a new DashboardRepository.
func NewDashboardRepository(pool *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{pool: pool}
}

// GetSummaryCounts retrieves the high-level metrics for the dashboard.
func (r *DashboardRepository) GetSummaryCounts(ctx context.Context) (totalLearners, totalTests, totalQuestions, activeSessions int, err error) {
	err = r.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM learners),
			(SELECT COUNT(*) FROM tests),
			(SELECT COUNT(*) FROM questions),
			(SELECT COUNT(*) FROM test_sessions WHERE status = 'IN_PROGRESS')`,
	).Scan(&totalLearners, &totalTests, &totalQuestions, &activeSessions)
	return
}

// GetTestStatusCounts retrieves the distribution of tests by status.
func (r *DashboardRepository) GetTestStatusCounts(ctx context.Context) (map[model.TestStatus]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM tests GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.TestStatus]int)
	for rows.Next() {
		var status model.TestStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// DashboardUpcomingTest represents minimal data for upcoming scheduled tests.
type DashboardUpcomingTest struct {
	ID             uuid.UUID      `json:"id"`
	Title          string         `json:"title"`
	Type           model.TestType `json:"type"`
	ScheduledStart *time.Time     `json:"scheduled_start"`
	Duration       int            `json:"duration_minutes"`
}

// GetUpcomingTests retrieves the next N scheduled tests that are PUBLISHED.
func (r *DashboardRepository) GetUpcomingTests(ctx context.Context, limit int) ([]DashboardUpcomingTest, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, type, scheduled_start, duration_minutes
		 FROM tests
		 WHERE status = $1 AND scheduled_start > NOW()
		 ORDER BY scheduled_start ASC LIMIT $2`,
		model.TestStatusPublished, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []DashboardUpcomingTest
	for rows.Next() {
		var t DashboardUpcomingTest
		if err := rows.Scan(&t.ID, &t.Title, &t.Type, &t.ScheduledStart, &t.Duration); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	if tests == nil {
		tests = []DashboardUpcomingTest{}
	}
	return tests, rows.Err()
}

// DashboardRecentTestResult summarizes completion stats for one test.
type DashboardRecentTestResult struct {
	ID               uuid.UUID  `json:"id"`
	Title            string     `json:"title"`
	EndDateTime      *time.Time `json:"end_date_time"`
	ParticipantCount int        `json:"participant_count"`
	AverageScore     *float64   `json:"average_score"`
	ForcedCount      int        `json:"forced_count"`
}

// GetRecentTestResults retrieves the last N tests that have completed sessions,
// with participant counts, score averages and forced-submission counts.
func (r *DashboardRepository) GetRecentTestResults(ctx context.Context, limit int) ([]DashboardRecentTestResult, error) {
	query := `
		SELECT
			t.id,
			t.title,
			COALESCE(t.scheduled_end, t.updated_at) as end_time,
			COUNT(s.id) as participant_count,
			AVG(s.final_score) as average_score,
			COUNT(s.id) FILTER (WHERE s.forced_submit) as forced_count
		FROM tests t
		JOIN test_sessions s ON t.id = s.test_id AND s.status = 'COMPLETED'
		GROUP BY t.id, t.title, end_time
		ORDER BY end_time DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []DashboardRecentTestResult
	for rows.Next() {
		var res DashboardRecentTestResult
		if err := rows.Scan(&res.ID, &res.Title, &res.EndDateTime,
			&res.ParticipantCount, &res.AverageScore, &res.ForcedCount); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	if results == nil {
		results = []DashboardRecentTestResult{}
	}
	return results, rows.Err()
}
