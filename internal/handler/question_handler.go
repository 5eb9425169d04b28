package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/testport/testport-backend/internal/model"
	"github.com/testport/testport-backend/internal/response"
	"github.com/testport/testport-backend/internal/service"
	"github.com/testport/testport-backend/internal/validator"
)

// QuestionHandler handles faculty-facing question management endpoints.
type QuestionHandler struct {
	questionService *service.QuestionService
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questionService *service.QuestionService) *QuestionHandler {
	return &QuestionHandler{questionService: questionService}
}

func questionFromRequest(testID uuid.UUID, req *model.AddQuestionRequest) *model.Question {
	options := make([]model.Option, 0, len(req.Options))
	for _, o := range req.Options {
		options = append(options, model.Option{
			Letter:   o.Letter,
			Text:     o.Text,
			ImageURL: o.ImageURL,
		})
	}
	return &model.Question{
		TestID:        testID,
		SectionID:     req.SectionID,
		Text:          req.Text,
		ImageURL:      req.ImageURL,
		Options:       options,
		CorrectOption: req.CorrectOption,
		Marks:         req.Marks,
		IsCoding:      req.IsCoding,
		OrderNum:      req.OrderNum,
	}
}

// ListQuestions godoc
// GET /api/v1/faculty/tests/:test_id/questions
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	questions, err := h.questionService.ListByTest(c.Request.Context(), testID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if questions == nil {
		questions = []model.Question{}
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// AddQuestion godoc
// POST /api/v1/faculty/tests/:test_id/questions
func (h *QuestionHandler) AddQuestion(c *gin.Context) {
	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.AddQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	q := questionFromRequest(testID, &req)
	if err := h.questionService.Create(c.Request.Context(), q); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"question": q})
}

// UpdateQuestion godoc
// PUT /api/v1/faculty/tests/:test_id/questions/:question_id
func (h *QuestionHandler) UpdateQuestion(c *gin.Context) {
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

	var req model.AddQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	q := questionFromRequest(testID, &req)
	q.ID = questionID
	if err := h.questionService.Update(c.Request.Context(), q); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"question": q})
}

// DeleteQuestion godoc
// DELETE /api/v1/faculty/tests/:test_id/questions/:question_id
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
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

	if err := h.questionService.Delete(c.Request.Context(), testID, questionID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// ReplaceQuestions godoc
// PUT /api/v1/faculty/tests/:test_id/questions
// Atomically replaces the whole question set (bulk import flow).
func (h *QuestionHandler) ReplaceQuestions(c *gin.Context) {
	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.ReplaceQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questions := make([]model.Question, 0, len(req.Questions))
	for i := range req.Questions {
		q := questionFromRequest(testID, &req.Questions[i])
		if q.OrderNum == 0 {
			q.OrderNum = i + 1
		}
		questions = append(questions, *q)
	}

	if err := h.questionService.ReplaceAll(c.Request.Context(), testID, questions); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"count": len(questions)})
}
