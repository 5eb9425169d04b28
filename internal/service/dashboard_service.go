package service

import (
	"context"

	"github.com/testport/testport-backend/internal/model"
	"github.com/testport/testport-backend/internal/repository"
)

// DashboardData consolidates all metrics for the faculty dashboard.
type DashboardData struct {
	TotalLearners        int                                    `json:"total_learners"`
	TotalTests           int                                    `json:"total_tests"`
	TotalQuestions       int                                    `json:"total_questions"`
	ActiveSessions       int                                    `json:"active_sessions"`
	TestStatusCounts     map[model.TestStatus]int               `json:"test_status_counts"`
	UpcomingTests        []repository.DashboardUpcomingTest     `json:"upcoming_tests"`
	RecentCompletedTests []repository.DashboardRecentTestResult `json:"recent_completed_tests"`
}

// DashboardService handles faculty dashboard business logic.
type DashboardService struct {
	repo *repository.DashboardRepository
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(repo *repository.DashboardRepository) *DashboardService {
	return &DashboardService{repo: repo}
}

// GetDashboardData fetches all dashboard metrics.
func (s *DashboardService) GetDashboardData(ctx context.Context) (*DashboardData, error) {
	learners, tests, questions, active, err := s.repo.GetSummaryCounts(ctx)
	if err != nil {
		return nil, err
	}

	statusCounts, err := s.repo.GetTestStatusCounts(ctx)
	if err != nil {
		return nil, err
	}

	upcoming, err := s.repo.GetUpcomingTests(ctx, 5)
	if err != nil {
		return nil, err
	}

	recent, err := s.repo.GetRecentTestResults(ctx, 5)
	if err != nil {
		return nil, err
	}

	return &DashboardData{
		TotalLearners:        learners,
		TotalTests:           tests,
		TotalQuestions:       questions,
		ActiveSessions:       active,
		TestStatusCounts:     statusCounts,
		UpcomingTests:        upcoming,
		RecentCompletedTests: recent,
	}, nil
}
