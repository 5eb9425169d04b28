package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/testport/testport-backend/internal/config"
)

var ErrJudgeUnavailable = errors.New("code judge is unavailable")

// CodeSubmission is the payload forwarded to the external judge.
type CodeSubmission struct {
	QuestionID string `json:"question_id"`
	Language   string `json:"language" binding:"required,oneof=c cpp java python javascript go"`
	SourceCode string `json:"source_code" binding:"required,max=65536"`
}

// JudgeVerdict is the judge's evaluation of one code submission.
type JudgeVerdict struct {
	Verdict     string  `json:"verdict"`
	PassedCases int     `json:"passed_cases"`
	TotalCases  int     `json:"total_cases"`
	Score       float64 `json:"score"`
	Output      string  `json:"output,omitempty"`
}

// JudgeService forwards coding-question submissions to the external judge
// over HTTP. MCQ grading never touches this path.
type JudgeService struct {
	cfg    *config.Config
	client *http.Client
	log    zerolog.Logger
}

// NewJudgeService creates a new JudgeService.
func NewJudgeService(cfg *config.Config, log zerolog.Logger) *JudgeService {
	return &JudgeService{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.JudgeTimeout},
		log:    log.With().Str("component", "judge_service").Logger(),
	}
}

// Evaluate sends the submission to the judge and returns its verdict.
func (s *JudgeService) Evaluate(ctx context.Context, sub *CodeSubmission) (*JudgeVerdict, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("marshal submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.JudgeURL+"/evaluate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Error().Err(err).Str("question_id", sub.QuestionID).Msg("Judge request failed")
		return nil, ErrJudgeUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.log.Error().Int("status", resp.StatusCode).Msg("Judge returned non-200")
		return nil, ErrJudgeUnavailable
	}

	var verdict JudgeVerdict
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return nil, fmt.Errorf("decode verdict: %w", err)
	}
	return &verdict, nil
}
