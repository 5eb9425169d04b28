package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/testport/testport-backend/internal/middleware"
	"github.com/testport/testport-backend/internal/model"
	"github.com/testport/testport-backend/internal/repository"
	"github.com/testport/testport-backend/internal/response"
	"github.com/testport/testport-backend/internal/service"
	"github.com/testport/testport-backend/internal/session"
	"github.com/testport/testport-backend/internal/validator"
)

// PortalHandler handles learner-facing endpoints (catalog, test taking).
type PortalHandler struct {
	sessionService  *service.SessionService
	testService     *service.TestService
	questionService *service.QuestionService
	judgeService    *service.JudgeService
}

// NewPortalHandler creates a new PortalHandler.
func NewPortalHandler(
	sessionService *service.SessionService,
	testService *service.TestService,
	questionService *service.QuestionService,
	judgeService *service.JudgeService,
) *PortalHandler {
	return &PortalHandler{
		sessionService:  sessionService,
		testService:     testService,
		questionService: questionService,
		judgeService:    judgeService,
	}
}

// catalogTypeFilter validates the ?type= query value against the known test
// types. Empty means no filter; an unknown value is rejected rather than
// silently matching nothing.
func catalogTypeFilter(raw string) (*model.TestType, bool) {
	if raw == "" {
		return nil, true
	}
	t := model.TestType(raw)
	switch t {
	case model.TestTypeAssessment, model.TestTypePractice, model.TestTypeAssignment,
		model.TestTypeMock, model.TestTypeCompany:
		return &t, true
	}
	return nil, false
}

// GetCatalog godoc
// GET /api/v1/learner/tests
// Returns published tests with the learner's session status overlaid.
func (h *PortalHandler) GetCatalog(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	filter := repository.CatalogFilter{
		Search: c.Query("search"),
	}
	typ, ok := catalogTypeFilter(c.Query("type"))
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
		return
	}
	filter.Type = typ
	if sid := c.Query("subject_id"); sid != "" {
		id, err := strconv.Atoi(sid)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		filter.SubjectID = &id
	}

	catalog, total, err := h.sessionService.GetCatalog(c.Request.Context(), claims.UserID, filter, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"tests": catalog}, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	})
}

// GetHistory godoc
// GET /api/v1/learner/sessions
// Returns the learner's past and in-progress sessions.
func (h *PortalHandler) GetHistory(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessions, err := h.sessionService.GetLearnerHistory(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

// JoinTest godoc
// POST /api/v1/learner/tests/:test_id/join
// Creates (or resumes) a session and attaches the live attempt. Idempotent.
func (h *PortalHandler) JoinTest(c *gin.Context) {
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

	sess, err := h.sessionService.JoinTest(c.Request.Context(), testID, claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTestNotAvailable):
			response.Fail(c, http.StatusBadRequest, response.ErrTestNotAvailable)
		case errors.Is(err, service.ErrSessionCompleted):
			response.Fail(c, http.StatusConflict, response.ErrSessionCompleted)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": sess})
}

// GetTestPaper godoc
// GET /api/v1/learner/tests/:test_id/paper
// Returns the test payload from Redis (bypasses PostgreSQL).
// Requires an active session for this test — prevents IDOR.
func (h *PortalHandler) GetTestPaper(c *gin.Context) {
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

	if err := h.sessionService.VerifyActiveSession(c.Request.Context(), testID, claims.UserID); err != nil {
		response.Fail(c, http.StatusForbidden, response.ErrNoActiveSession)
		return
	}

	paper, err := h.testService.GetTestPaper(c.Request.Context(), testID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"paper": paper})
}

// GetSessionState godoc
// GET /api/v1/learner/tests/:test_id/state
// Returns the resume payload: answers, palette state, cursor, remaining time.
func (h *PortalHandler) GetSessionState(c *gin.Context) {
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

	if err := h.sessionService.VerifyActiveSession(c.Request.Context(), testID, claims.UserID); err != nil {
		response.Fail(c, http.StatusForbidden, response.ErrNoActiveSession)
		return
	}

	state, err := h.sessionService.GetSessionState(c.Request.Context(), testID, claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"state": state})
}

// SubmitTest godoc
// POST /api/v1/learner/tests/:test_id/submit
// REST fallback when the WebSocket stream is unavailable. The server-side
// attempt is authoritative: the submission is assembled from the live engine,
// never from a client payload.
func (h *PortalHandler) SubmitTest(c *gin.Context) {
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

	if err := h.sessionService.VerifyActiveSession(c.Request.Context(), testID, claims.UserID); err != nil {
		if errors.Is(err, service.ErrSessionCompleted) {
			response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
			return
		}
		response.Fail(c, http.StatusForbidden, response.ErrNoActiveSession)
		return
	}

	// A restart may have dropped the live attempt; joining reattaches it
	// without restarting the clock.
	if _, ok := h.sessionService.Manager().Get(testID.String(), claims.UserID); !ok {
		if _, err := h.sessionService.JoinTest(c.Request.Context(), testID, claims.UserID); err != nil {
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
	}

	sub, err := h.sessionService.Manager().Submit(c.Request.Context(), testID.String(), claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSubmitInFlight):
			response.Fail(c, http.StatusConflict, response.ErrSubmissionInFlight)
		case errors.Is(err, session.ErrAlreadySubmitted):
			response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"status":          "completed",
		"forced":          sub.Forced,
		"answers":         len(sub.Answers),
		"violation_count": sub.ViolationCount,
	})
}

// ReportViolation godoc
// POST /api/v1/learner/tests/:test_id/violation
// REST fallback for proctoring signals. Counting and the forced-submission
// decision live in the engine; this endpoint only feeds it.
func (h *PortalHandler) ReportViolation(c *gin.Context) {
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

	var req model.ViolationEvent
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, ok := h.sessionService.Manager().Get(testID.String(), claims.UserID)
	if !ok {
		response.Fail(c, http.StatusForbidden, response.ErrNoActiveSession)
		return
	}

	var count int
	var eff session.Effect
	_ = attempt.Do(func(e *session.Engine) error {
		count, eff = e.ReportViolation()
		return nil
	})

	h.sessionService.RecordViolation(c.Request.Context(), testID.String(), claims.UserID, req)

	forced := eff == session.EffectForceSubmit
	if forced {
		if _, err := h.sessionService.Manager().ForceSubmit(c.Request.Context(), attempt); err != nil &&
			!errors.Is(err, session.ErrSubmitInFlight) && !errors.Is(err, session.ErrAlreadySubmitted) {
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
	}

	response.Success(c, http.StatusOK, gin.H{
		"violation_count": count,
		"forced":          forced,
	})
}

// ExitTest godoc
// POST /api/v1/learner/tests/:test_id/exit
// Detaches the live attempt without submitting. Rejoining resumes it.
func (h *PortalHandler) ExitTest(c *gin.Context) {
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

	h.sessionService.ExitTest(c.Request.Context(), testID, claims.UserID)
	response.Success(c, http.StatusOK, gin.H{})
}

// EvaluateCode godoc
// POST /api/v1/learner/tests/:test_id/questions/:question_id/evaluate
// Forwards a coding submission to the external judge and returns its verdict.
func (h *PortalHandler) EvaluateCode(c *gin.Context) {
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
	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.sessionService.VerifyActiveSession(c.Request.Context(), testID, claims.UserID); err != nil {
		response.Fail(c, http.StatusForbidden, response.ErrNoActiveSession)
		return
	}

	question, err := h.questionService.GetByID(c.Request.Context(), questionID)
	if err != nil || question.TestID != testID {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	if !question.IsCoding {
		response.Fail(c, http.StatusBadRequest, response.ErrNotACodingQuestion)
		return
	}

	var req service.CodeSubmission
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	req.QuestionID = questionID.String()

	verdict, err := h.judgeService.Evaluate(c.Request.Context(), &req)
	if err != nil {
		response.Fail(c, http.StatusBadGateway, response.ErrJudgeUnavailable)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"verdict": verdict})
}
