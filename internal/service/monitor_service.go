package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/testport/testport-backend/internal/repository"
)

// MonitorService orchestrates live test monitoring business logic.
type MonitorService struct {
	monitorRepo *repository.MonitorRepository
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(monitorRepo *repository.MonitorRepository) *MonitorService {
	return &MonitorService{monitorRepo: monitorRepo}
}

// LearnerProgressSnapshot holds the answered count and violation count for
// every in-progress learner of one test.
type LearnerProgressSnapshot struct {
	AnsweredCounts  map[int]int64 // learner_id → answered_count
	ViolationCounts map[int]int64 // learner_id → violation_count
	TotalViolations int64
}

// GetLearnerProgress returns answered counts and violation counts. The two
// independent fetches run in parallel to keep the SSE refresh cheap.
func (s *MonitorService) GetLearnerProgress(ctx context.Context, testID uuid.UUID) (*LearnerProgressSnapshot, error) {
	snapshot := &LearnerProgressSnapshot{
		AnsweredCounts:  make(map[int]int64),
		ViolationCounts: make(map[int]int64),
	}

	var (
		answeredCounts  map[int]int64
		violationCounts map[int]int64
		answeredErr     error
		violationErr    error
		wg              sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		answeredCounts, answeredErr = s.monitorRepo.GetAnsweredCounts(ctx, testID)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		violationCounts, violationErr = s.monitorRepo.GetViolationCounts(ctx, testID)
	}()

	wg.Wait()

	// Answered counts are critical; violation counts are best-effort.
	if answeredErr != nil {
		return nil, answeredErr
	}
	if answeredCounts != nil {
		snapshot.AnsweredCounts = answeredCounts
	}
	if violationErr == nil && violationCounts != nil {
		snapshot.ViolationCounts = violationCounts
		for _, count := range violationCounts {
			snapshot.TotalViolations += count
		}
	}

	// The Redis autosave hash runs ahead of the answer worker, so for learners
	// still in progress the live count is the accurate one.
	if ids, err := s.monitorRepo.GetInProgressLearnerIDs(ctx, testID); err == nil {
		for _, lid := range ids {
			live, err := s.monitorRepo.GetLiveAnsweredCount(ctx, testID, lid)
			if err != nil {
				continue
			}
			if live > snapshot.AnsweredCounts[lid] {
				snapshot.AnsweredCounts[lid] = live
			}
		}
	}

	return snapshot, nil
}
