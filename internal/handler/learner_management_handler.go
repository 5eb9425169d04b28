package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/testport/testport-backend/internal/model"
	"github.com/testport/testport-backend/internal/repository"
	"github.com/testport/testport-backend/internal/response"
	"github.com/testport/testport-backend/internal/service"
	"github.com/testport/testport-backend/internal/validator"
)

// LearnerManagementHandler handles faculty-facing learner account management.
type LearnerManagementHandler struct {
	learnerService *service.LearnerService
}

// NewLearnerManagementHandler creates a new LearnerManagementHandler.
func NewLearnerManagementHandler(learnerService *service.LearnerService) *LearnerManagementHandler {
	return &LearnerManagementHandler{learnerService: learnerService}
}

// ListLearners godoc
// GET /api/v1/faculty/learners
func (h *LearnerManagementHandler) ListLearners(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	var batch *string
	if b := c.Query("batch"); b != "" {
		batch = &b
	}

	learners, pagination, err := h.learnerService.List(c.Request.Context(), batch, c.Query("search"), page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"learners": learners}, pagination)
}

// GetLearner godoc
// GET /api/v1/faculty/learners/:id
func (h *LearnerManagementHandler) GetLearner(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	learner, err := h.learnerService.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"learner": learner})
}

// CreateLearner godoc
// POST /api/v1/faculty/learners
func (h *LearnerManagementHandler) CreateLearner(c *gin.Context) {
	var req model.CreateLearnerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	learner, err := h.learnerService.Create(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateRollNumber) {
			response.Fail(c, http.StatusConflict, response.ErrConflict)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"learner": learner})
}

// ImportLearners godoc
// POST /api/v1/faculty/learners/import
// Bulk-creates learner accounts in one COPY round trip.
func (h *LearnerManagementHandler) ImportLearners(c *gin.Context) {
	var req struct {
		Learners []model.CreateLearnerRequest `json:"learners" binding:"required,min=1,max=1000,dive"`
	}
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	inserted, err := h.learnerService.BulkImport(c.Request.Context(), req.Learners)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateRollNumber) {
			response.Fail(c, http.StatusConflict, response.ErrConflict)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"inserted": inserted})
}

// UpdateLearner godoc
// PUT /api/v1/faculty/learners/:id
func (h *LearnerManagementHandler) UpdateLearner(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateLearnerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	learner, err := h.learnerService.Update(c.Request.Context(), id, &req)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateRollNumber) {
			response.Fail(c, http.StatusConflict, response.ErrConflict)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"learner": learner})
}

// DeleteLearner godoc
// DELETE /api/v1/faculty/learners/:id
func (h *LearnerManagementHandler) DeleteLearner(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.learnerService.Delete(c.Request.Context(), id); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// ResetLearnerSession godoc
// POST /api/v1/faculty/learners/:id/reset-session
// Clears the single-device login lock after a crashed browser.
func (h *LearnerManagementHandler) ResetLearnerSession(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.learnerService.ResetSession(c.Request.Context(), id); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}
