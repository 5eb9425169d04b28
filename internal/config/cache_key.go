package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// LearnerSessionKey returns the cache key for a learner's login session.
func (r *CacheKeyStruct) LearnerSessionKey(learnerID int) string {
	return fmt.Sprintf("login:%d", learnerID)
}

// AttemptStartKey returns the cache key for a learner's attempt start time.
func (r *CacheKeyStruct) AttemptStartKey(testID string, learnerID int) string {
	return fmt.Sprintf("learner:%d:test:%s:attempt_start", learnerID, testID)
}

// LearnerAnswersKey returns the cache key for a learner's autosaved answers.
func (r *CacheKeyStruct) LearnerAnswersKey(testID string, learnerID int) string {
	return fmt.Sprintf("learner:%d:test:%s:answers", learnerID, testID)
}

// LearnerProgressKey returns the cache key for a learner's question progress
// snapshot (visited / marked-for-review / cursor).
func (r *CacheKeyStruct) LearnerProgressKey(testID string, learnerID int) string {
	return fmt.Sprintf("learner:%d:test:%s:progress", learnerID, testID)
}

// LearnerViolationsKey returns the cache key for a learner's live violation count.
func (r *CacheKeyStruct) LearnerViolationsKey(testID string, learnerID int) string {
	return fmt.Sprintf("learner:%d:test:%s:violations", learnerID, testID)
}

// TestPaperKey returns the cache key for a test's paper payload.
func (r *CacheKeyStruct) TestPaperKey(testID string) string {
	return fmt.Sprintf("test:%s:paper", testID)
}

// TestDurationKey returns the cache key for a test's total duration in minutes.
func (r *CacheKeyStruct) TestDurationKey(testID string) string {
	return fmt.Sprintf("test:%s:duration", testID)
}

// TestAnswerKeyKey returns the cache key for a test's answer key hash.
func (r *CacheKeyStruct) TestAnswerKeyKey(testID string) string {
	return fmt.Sprintf("test:%s:key", testID)
}

// TestMarksKey returns the cache key for a test's per-question marks hash.
func (r *CacheKeyStruct) TestMarksKey(testID string) string {
	return fmt.Sprintf("test:%s:marks", testID)
}

// TestMonitorChannel returns the pub/sub channel for a test's live monitor events.
func (r *CacheKeyStruct) TestMonitorChannel(testID string) string {
	return fmt.Sprintf("test:%s:monitor", testID)
}

// LearnerActiveTestKey returns the cache key for a learner's currently active test.
func (r *CacheKeyStruct) LearnerActiveTestKey(learnerID int) string {
	return fmt.Sprintf("learner:%d:active_test", learnerID)
}

var CacheKey = NewCacheKeyStruct()
