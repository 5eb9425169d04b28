package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testport/testport-backend/internal/config"
	"github.com/testport/testport-backend/internal/middleware"
	"github.com/testport/testport-backend/internal/model"
	"github.com/testport/testport-backend/internal/response"
	"github.com/testport/testport-backend/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// MonitorHandler streams a live view of one test to faculty over SSE:
// joins, violations and submissions arrive via Redis pub/sub, progress
// counters are polled on a refresh ticker.
type MonitorHandler struct {
	rdb             *redis.Client
	testService     *service.TestService
	questionService *service.QuestionService
	sessionService  *service.SessionService
	monitorService  *service.MonitorService
	log             zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(
	rdb *redis.Client,
	testService *service.TestService,
	questionService *service.QuestionService,
	sessionService *service.SessionService,
	monitorService *service.MonitorService,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		rdb:             rdb,
		testService:     testService,
		questionService: questionService,
		sessionService:  sessionService,
		monitorService:  monitorService,
		log:             log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorTestSSE godoc
// GET /api/v1/faculty/tests/:test_id/monitor
func (h *MonitorHandler) MonitorTestSSE(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	test, err := h.testService.GetByID(c.Request.Context(), testID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")

	totalQuestions, _ := h.questionService.CountByTest(reqCtx, testID)

	h.sendInitialSnapshot(c, reqCtx, testID, test, totalQuestions)

	channelName := config.CacheKey.TestMonitorChannel(testID.String())
	pubsub := h.rdb.Subscribe(reqCtx, channelName)
	defer pubsub.Close()

	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	// Track whether any learner has joined so we can skip empty refreshes.
	hasLearners := false

	h.log.Info().Str("test_id", testID.String()).Msg("Faculty attached to live monitor SSE")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("test_id", testID.String()).Msg("Faculty disconnected from live monitor SSE")
			return

		case msg := <-ch:
			// Forward raw JSON directly — no deserialization needed.
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()

			hasLearners = true

		case <-refreshTicker.C:
			if !hasLearners {
				continue
			}
			h.sendRefresh(c, reqCtx, testID)

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

// sendInitialSnapshot gathers data and writes the first SSE event.
func (h *MonitorHandler) sendInitialSnapshot(
	c *gin.Context,
	ctx context.Context,
	testID uuid.UUID,
	test *model.Test,
	totalQuestions int,
) {
	results, _, _ := h.sessionService.GetTestResults(ctx, testID, 1, 1000, nil, nil)

	totalJoined := len(results)
	totalInProgress := 0
	totalCompleted := 0

	learnersSnapshot := make([]map[string]interface{}, 0, len(results))
	for _, res := range results {
		switch res.Status {
		case model.SessionStatusInProgress:
			totalInProgress++
		case model.SessionStatusCompleted:
			totalCompleted++
		}

		var score float64
		if res.FinalScore != nil {
			score = *res.FinalScore
		}

		learnersSnapshot = append(learnersSnapshot, map[string]interface{}{
			"learner_id":      res.LearnerID,
			"name":            res.Name,
			"roll_number":     res.RollNumber,
			"batch":           res.Batch,
			"status":          res.Status,
			"score":           score,
			"forced_submit":   res.ForcedSubmit,
			"started_at":      res.StartedAt,
			"answered_count":  int64(0),
			"violation_count": int64(res.ViolationCount),
			"total_questions": totalQuestions,
		})
	}

	// Fetch counts with a timeout so a slow query doesn't block the connection.
	var initialTotalViolations int64
	fetchCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	if progress, err := h.monitorService.GetLearnerProgress(fetchCtx, testID); err == nil {
		initialTotalViolations = progress.TotalViolations
		for i, l := range learnersSnapshot {
			lid, ok := l["learner_id"].(int)
			if !ok {
				continue
			}
			if count, found := progress.AnsweredCounts[lid]; found {
				learnersSnapshot[i]["answered_count"] = count
			}
			if count, found := progress.ViolationCounts[lid]; found {
				learnersSnapshot[i]["violation_count"] = count
			}
		}
	}

	c.SSEvent("message", map[string]interface{}{
		"type": "snapshot",
		"data": map[string]interface{}{
			"test": map[string]interface{}{
				"id":              testID.String(),
				"title":           test.Title,
				"duration":        test.DurationMinutes,
				"proctored":       test.Proctored,
				"total_questions": totalQuestions,
			},
			"stats": map[string]interface{}{
				"total_joined":      totalJoined,
				"total_in_progress": totalInProgress,
				"total_completed":   totalCompleted,
				"total_violations":  initialTotalViolations,
			},
			"learners": learnersSnapshot,
		},
	})
	c.Writer.Flush()
}

// sendRefresh polls DB+Redis for current progress and sends a compact refresh event.
func (h *MonitorHandler) sendRefresh(c *gin.Context, parentCtx context.Context, testID uuid.UUID) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	progress, err := h.monitorService.GetLearnerProgress(ctx, testID)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to fetch learner progress for refresh")
		return
	}

	// Single-pass merge: iterate answered counts, decorate with violation counts.
	progressData := make([]map[string]interface{}, 0, len(progress.AnsweredCounts)+len(progress.ViolationCounts))

	for lid, answered := range progress.AnsweredCounts {
		progressData = append(progressData, map[string]interface{}{
			"learner_id":      lid,
			"answered_count":  answered,
			"violation_count": progress.ViolationCounts[lid],
		})
		delete(progress.ViolationCounts, lid)
	}

	// Remaining violation-only learners (already submitted, not in-progress).
	for lid, violations := range progress.ViolationCounts {
		progressData = append(progressData, map[string]interface{}{
			"learner_id":      lid,
			"answered_count":  int64(0),
			"violation_count": violations,
		})
	}

	c.SSEvent("message", map[string]interface{}{
		"type": "refresh",
		"data": map[string]interface{}{
			"progress":         progressData,
			"total_violations": progress.TotalViolations,
		},
	})
	c.Writer.Flush()
}
