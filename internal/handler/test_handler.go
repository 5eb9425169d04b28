package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/testport/testport-backend/internal/middleware"
	"github.com/testport/testport-backend/internal/model"
	"github.com/testport/testport-backend/internal/response"
	"github.com/testport/testport-backend/internal/service"
	"github.com/testport/testport-backend/internal/validator"
)

// TestHandler handles faculty-facing test management endpoints.
type TestHandler struct {
	testService    *service.TestService
	sessionService *service.SessionService
}

// NewTestHandler creates a new TestHandler.
func NewTestHandler(testService *service.TestService, sessionService *service.SessionService) *TestHandler {
	return &TestHandler{
		testService:    testService,
		sessionService: sessionService,
	}
}

func failTestErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotTestAuthor):
		response.Fail(c, http.StatusForbidden, response.ErrNotTestAuthor)
	case errors.Is(err, service.ErrTestNotDraft):
		response.Fail(c, http.StatusConflict, response.ErrTestNotDraft)
	case errors.Is(err, service.ErrTestNotPublished):
		response.Fail(c, http.StatusConflict, response.ErrTestNotPublished)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusBadRequest, response.ErrNoQuestions)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// ListTests godoc
// GET /api/v1/faculty/tests
func (h *TestHandler) ListTests(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	authorID := claims.UserID
	if c.Query("all") == "true" {
		authorID = 0
	}

	tests, pagination, err := h.testService.ListByAuthor(c.Request.Context(), authorID, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"tests": tests}, pagination)
}

// GetTest godoc
// GET /api/v1/faculty/tests/:test_id
func (h *TestHandler) GetTest(c *gin.Context) {
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

	sections, err := h.testService.GetSections(c.Request.Context(), testID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"test":     test,
		"sections": sections,
	})
}

// CreateTest godoc
// POST /api/v1/faculty/tests
// Creates a DRAFT test, optionally with ordered sections.
func (h *TestHandler) CreateTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	test := &model.Test{
		Title:              req.Title,
		Description:        req.Description,
		SubjectID:          req.SubjectID,
		CompanyName:        req.CompanyName,
		Type:               req.Type,
		AuthorID:           claims.UserID,
		ScheduledStart:     req.ScheduledStart,
		ScheduledEnd:       req.ScheduledEnd,
		DurationMinutes:    req.DurationMinutes,
		Proctored:          req.Proctored,
		ViolationThreshold: req.ViolationThreshold,
	}

	sections := make([]model.Section, 0, len(req.Sections))
	for _, s := range req.Sections {
		sections = append(sections, model.Section{
			Name:             s.Name,
			DurationMinutes:  s.DurationMinutes,
			MarksPerQuestion: s.MarksPerQuestion,
		})
	}

	if err := h.testService.Create(c.Request.Context(), test, sections); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"test": test})
}

// UpdateTest godoc
// PUT /api/v1/faculty/tests/:test_id
// Only DRAFT tests owned by the caller can be edited.
func (h *TestHandler) UpdateTest(c *gin.Context) {
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

	var req model.UpdateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	test, err := h.testService.GetByID(c.Request.Context(), testID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	if req.Title != "" {
		test.Title = req.Title
	}
	if req.Description != "" {
		test.Description = req.Description
	}
	if req.SubjectID != nil {
		test.SubjectID = req.SubjectID
	}
	if req.CompanyName != "" {
		test.CompanyName = req.CompanyName
	}
	if req.ScheduledStart != nil {
		test.ScheduledStart = req.ScheduledStart
	}
	if req.ScheduledEnd != nil {
		test.ScheduledEnd = req.ScheduledEnd
	}
	if req.DurationMinutes > 0 {
		test.DurationMinutes = req.DurationMinutes
	}
	if req.Proctored != nil {
		test.Proctored = *req.Proctored
	}
	if req.ViolationThreshold != nil {
		test.ViolationThreshold = *req.ViolationThreshold
	}

	if err := h.testService.Update(c.Request.Context(), claims.UserID, test); err != nil {
		failTestErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"test": test})
}

// DeleteTest godoc
// DELETE /api/v1/faculty/tests/:test_id
func (h *TestHandler) DeleteTest(c *gin.Context) {
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

	if err := h.testService.Delete(c.Request.Context(), testID, claims.UserID); err != nil {
		failTestErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// PublishTest godoc
// POST /api/v1/faculty/tests/:test_id/publish
// Warms the Redis paper/answer-key caches, then flips the status. The paper
// must be servable from cache before any learner can see the test.
func (h *TestHandler) PublishTest(c *gin.Context) {
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

	if err := h.testService.Publish(c.Request.Context(), testID, claims.UserID); err != nil {
		failTestErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": model.TestStatusPublished})
}

// ArchiveTest godoc
// POST /api/v1/faculty/tests/:test_id/archive
func (h *TestHandler) ArchiveTest(c *gin.Context) {
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

	if err := h.testService.Archive(c.Request.Context(), testID, claims.UserID); err != nil {
		failTestErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": model.TestStatusArchived})
}

// RefreshTestCache godoc
// POST /api/v1/faculty/tests/:test_id/refresh-cache
// Rebuilds the Redis paper after editing a published test's questions.
func (h *TestHandler) RefreshTestCache(c *gin.Context) {
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

	if err := h.testService.RefreshCache(c.Request.Context(), testID, claims.UserID); err != nil {
		failTestErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// GetTestResults godoc
// GET /api/v1/faculty/tests/:test_id/results
// Paginated per-learner results with batch and name/roll filters.
func (h *TestHandler) GetTestResults(c *gin.Context) {
	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	var batch, search *string
	if b := c.Query("batch"); b != "" {
		batch = &b
	}
	if s := c.Query("search"); s != "" {
		search = &s
	}

	results, total, err := h.sessionService.GetTestResults(c.Request.Context(), testID, page, perPage, batch, search)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: int(total),
		TotalPages: int((total + int64(perPage) - 1) / int64(perPage)),
	})
}
