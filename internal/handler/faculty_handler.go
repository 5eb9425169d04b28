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

// FacultyHandler handles faculty account management (coordinator only).
type FacultyHandler struct {
	facultyService *service.FacultyService
}

// NewFacultyHandler creates a new FacultyHandler.
func NewFacultyHandler(facultyService *service.FacultyService) *FacultyHandler {
	return &FacultyHandler{facultyService: facultyService}
}

// ListFaculty godoc
// GET /api/v1/faculty/accounts
func (h *FacultyHandler) ListFaculty(c *gin.Context) {
	faculty, err := h.facultyService.List(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"faculty": faculty})
}

// CreateFaculty godoc
// POST /api/v1/faculty/accounts
func (h *FacultyHandler) CreateFaculty(c *gin.Context) {
	var req model.CreateFacultyRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	faculty, err := h.facultyService.Create(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			response.Fail(c, http.StatusConflict, response.ErrConflict)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"faculty": faculty})
}

// UpdateFaculty godoc
// PUT /api/v1/faculty/accounts/:id
func (h *FacultyHandler) UpdateFaculty(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateFacultyRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	faculty, err := h.facultyService.Update(c.Request.Context(), id, &req)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			response.Fail(c, http.StatusConflict, response.ErrConflict)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"faculty": faculty})
}

// DeleteFaculty godoc
// DELETE /api/v1/faculty/accounts/:id
func (h *FacultyHandler) DeleteFaculty(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.facultyService.Delete(c.Request.Context(), id); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}
