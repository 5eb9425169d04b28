package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/testport/testport-backend/internal/middleware"
	"github.com/testport/testport-backend/internal/model"
	"github.com/testport/testport-backend/internal/response"
	"github.com/testport/testport-backend/internal/service"
	"github.com/testport/testport-backend/internal/validator"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService    *service.AuthService
	learnerService *service.LearnerService
	facultyService *service.FacultyService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(
	authService *service.AuthService,
	learnerService *service.LearnerService,
	facultyService *service.FacultyService,
) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		learnerService: learnerService,
		facultyService: facultyService,
	}
}

// LearnerLogin godoc
// POST /api/v1/auth/learner/login
// Validates roll number + password, rejects if another device holds an active
// session, returns JWT.
func (h *AuthHandler) LearnerLogin(c *gin.Context) {
	var req model.LearnerLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	learner, err := h.learnerService.GetByRollNumber(c.Request.Context(), req.RollNumber)
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	if err := h.authService.CheckPassword(learner.PasswordHash, req.Password); err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	token, err := h.authService.GenerateLearnerToken(c.Request.Context(), learner.ID)
	if err != nil {
		if errors.Is(err, service.ErrSessionAlreadyActive) {
			response.Fail(c, http.StatusConflict, response.ErrSessionActive)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, model.LearnerLoginResponse{
		Token:   token,
		Learner: *learner,
	})
}

// FacultyLogin godoc
// POST /api/v1/auth/faculty/login
// Validates email + password, returns JWT with the role's permission set.
func (h *AuthHandler) FacultyLogin(c *gin.Context) {
	var req model.FacultyLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	faculty, err := h.facultyService.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	if err := h.authService.CheckPassword(faculty.PasswordHash, req.Password); err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	permissions := model.RolePermissions(faculty.Role)
	token, err := h.authService.GenerateFacultyToken(faculty.ID, permissions)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token":       token,
		"faculty":     faculty,
		"permissions": permissions,
	})
}

// GetLearnerProfile godoc
// GET /api/v1/auth/learner/me
func (h *AuthHandler) GetLearnerProfile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	learner, err := h.learnerService.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"learner": learner})
}

// GetFacultyProfile godoc
// GET /api/v1/auth/faculty/me
func (h *AuthHandler) GetFacultyProfile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	faculty, err := h.facultyService.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"faculty":     faculty,
		"permissions": claims.Permissions,
	})
}

// LearnerLogout godoc
// POST /api/v1/auth/learner/logout
// Clears the learner's single-device session so another device can log in.
func (h *AuthHandler) LearnerLogout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.authService.ResetLearnerSession(c.Request.Context(), claims.UserID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}
