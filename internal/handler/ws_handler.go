package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/testport/testport-backend/internal/middleware"
	"github.com/testport/testport-backend/internal/model"
	"github.com/testport/testport-backend/internal/service"
	"github.com/testport/testport-backend/internal/session"
	ws "github.com/testport/testport-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a live test attempt: every controller action travels over
// one socket, and timer-driven transitions are pushed back on the same socket.
type WSHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// TestStream godoc
// WS /ws/v1/learner/tests/:test_id/stream
// Upgrades to WebSocket for the live attempt: bookkeeping actions in,
// acknowledgements and timer events out.
func (h *WSHandler) TestStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid test ID"})
		return
	}

	learnerID := claims.UserID

	// Validate the learner has an active session before upgrading.
	if err := h.sessionService.VerifyActiveSession(c.Request.Context(), testID, learnerID); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "no active session for this test"})
		return
	}

	attempt, ok := h.sessionService.Manager().Get(testID.String(), learnerID)
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "attempt not attached, join the test first"})
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(raw)
	defer conn.Close()

	wsLog := h.log.With().
		Int("learner_id", learnerID).
		Str("test_id", testID.String()).
		Logger()
	wsLog.Info().Msg("Learner connected")

	// Route timer effects (section advance, expiry, forced submission) to
	// this socket for as long as it is the active client.
	attempt.SetNotifier(func(eff session.Effect) {
		h.pushEffect(conn, attempt, eff)
	})
	defer attempt.SetNotifier(nil)

	// Initial state push so a reconnecting client re-hydrates immediately.
	h.pushState(conn, attempt)

	for {
		var msg ws.RequestPayload
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionVisit, ws.ActionAnswer, ws.ActionClear, ws.ActionMark, ws.ActionGoto:
			h.handleBookkeeping(c.Request.Context(), conn, attempt, &msg)
		case ws.ActionNext:
			h.handleNext(conn, attempt)
		case ws.ActionAdvanceSection:
			h.handleAdvanceSection(conn, attempt)
		case ws.ActionViolation:
			h.handleViolation(c.Request.Context(), conn, attempt, &msg)
		case ws.ActionSubmit:
			h.handleSubmit(c.Request.Context(), conn, wsLog, attempt)
		case ws.ActionState:
			h.pushState(conn, attempt)
		case ws.ActionPing:
			conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			conn.WriteError("unknown action: " + string(msg.Action))
		}
	}
}

// handleBookkeeping applies a single per-question action to the engine and
// autosaves the result.
func (h *WSHandler) handleBookkeeping(ctx context.Context, conn *ws.Conn, attempt *session.Attempt, msg *ws.RequestPayload) {
	if msg.QID == "" {
		conn.WriteError("q_id is required")
		return
	}
	// Question IDs are well-formed UUIDs; reject anything else before it can
	// reach a Redis key.
	if _, err := uuid.Parse(msg.QID); err != nil {
		conn.WriteError("invalid q_id format")
		return
	}

	var status session.QuestionStatus
	err := attempt.Do(func(e *session.Engine) error {
		var err error
		switch msg.Action {
		case ws.ActionVisit:
			err = e.Visit(msg.QID)
		case ws.ActionAnswer:
			err = e.SelectAnswer(msg.QID, msg.Answer)
		case ws.ActionClear:
			err = e.ClearResponse(msg.QID)
		case ws.ActionMark:
			err = e.ToggleReview(msg.QID)
		case ws.ActionGoto:
			err = e.GoTo(msg.QID)
		}
		if err == nil {
			status = e.Status(msg.QID)
		}
		return err
	})
	if err != nil {
		conn.WriteError(err.Error())
		return
	}

	// Persist outside the engine lock.
	switch msg.Action {
	case ws.ActionAnswer:
		if err := h.sessionService.AutosaveAnswer(ctx, attempt.TestID, attempt.LearnerID, msg.QID, msg.Answer); err != nil {
			h.log.Error().Err(err).Msg("Autosave failed")
		}
	case ws.ActionClear:
		if err := h.sessionService.ClearAutosavedAnswer(ctx, attempt.TestID, attempt.LearnerID, msg.QID); err != nil {
			h.log.Error().Err(err).Msg("Clear autosave failed")
		}
	}
	h.saveProgress(ctx, attempt)

	conn.WriteTyped(ws.SavedResponse{Event: ws.EventSaved, QID: msg.QID, Status: string(status)})
}

func (h *WSHandler) handleNext(conn *ws.Conn, attempt *session.Attempt) {
	var nav session.NavResult
	err := attempt.Do(func(e *session.Engine) error {
		var err error
		nav, err = e.SaveAndNext()
		return err
	})
	if err != nil {
		conn.WriteError(err.Error())
		return
	}

	navStr := "next"
	switch nav {
	case session.NavSectionComplete:
		navStr = "section_complete"
	case session.NavLastQuestion:
		navStr = "last_question"
	}
	conn.WriteTyped(ws.SavedResponse{Event: ws.EventSaved, Nav: navStr})
}

func (h *WSHandler) handleAdvanceSection(conn *ws.Conn, attempt *session.Attempt) {
	err := attempt.Do(func(e *session.Engine) error {
		return e.AdvanceSection()
	})
	if err != nil {
		conn.WriteError(err.Error())
		return
	}
	h.pushState(conn, attempt)
}

// handleViolation counts the violation in the engine and queues the event row.
// Crossing the threshold force-submits through the manager.
func (h *WSHandler) handleViolation(ctx context.Context, conn *ws.Conn, attempt *session.Attempt, msg *ws.RequestPayload) {
	if msg.Kind != "tab_hidden" && msg.Kind != "fullscreen_exit" {
		conn.WriteError("unknown violation kind")
		return
	}

	var count int
	var eff session.Effect
	_ = attempt.Do(func(e *session.Engine) error {
		count, eff = e.ReportViolation()
		return nil
	})

	h.sessionService.RecordViolation(ctx, attempt.TestID, attempt.LearnerID,
		model.ViolationEvent{Kind: msg.Kind, Payload: msg.Payload})

	forced := eff == session.EffectForceSubmit
	event := ws.EventSaved
	if forced {
		event = ws.EventForceSubmit
	}
	conn.WriteTyped(ws.ViolationResponse{
		Event:          event,
		ViolationCount: count,
		Forced:         forced,
	})

	// ForceSubmit announces the submission through the attempt notifier, so no
	// extra write is needed here.
	if forced {
		if _, err := h.sessionService.Manager().ForceSubmit(ctx, attempt); err != nil &&
			err != session.ErrSubmitInFlight && err != session.ErrAlreadySubmitted {
			h.log.Error().Err(err).Msg("Violation force submit failed")
		}
	}
}

func (h *WSHandler) handleSubmit(ctx context.Context, conn *ws.Conn, wsLog zerolog.Logger, attempt *session.Attempt) {
	sub, err := h.sessionService.Manager().Submit(ctx, attempt.TestID, attempt.LearnerID)
	if err != nil {
		if err == session.ErrSubmitInFlight {
			conn.WriteError("submission already in progress")
			return
		}
		if err == session.ErrAlreadySubmitted {
			conn.WriteTyped(ws.SubmittedResponse{Event: ws.EventSubmitted, Status: "completed", Forced: false})
			return
		}
		wsLog.Error().Err(err).Msg("Submit failed")
		conn.WriteError("submission failed, please retry")
		return
	}

	wsLog.Info().
		Int("answers", len(sub.Answers)).
		Int("violations", sub.ViolationCount).
		Msg("Test submitted")
	conn.WriteTyped(ws.SubmittedResponse{Event: ws.EventSubmitted, Status: "completed", Forced: sub.Forced})
}

// pushEffect translates a timer effect into a client event.
func (h *WSHandler) pushEffect(conn *ws.Conn, attempt *session.Attempt, eff session.Effect) {
	switch eff {
	case session.EffectSectionAdvanced:
		var remaining, sectionIdx int
		_ = attempt.Do(func(e *session.Engine) error {
			remaining = e.Remaining()
			sectionIdx = e.SectionIndex()
			return nil
		})
		conn.WriteTyped(ws.TimerResponse{
			Event:            ws.EventSectionAdvanced,
			SectionIndex:     sectionIdx,
			RemainingSeconds: remaining,
		})
	case session.EffectTimeExpired:
		conn.WriteTyped(ws.TimerResponse{Event: ws.EventTimeExpired})
	case session.EffectForceSubmit:
		conn.WriteTyped(ws.SubmittedResponse{Event: ws.EventSubmitted, Status: "completed", Forced: true})
	}
}

func (h *WSHandler) pushState(conn *ws.Conn, attempt *session.Attempt) {
	var snap session.Snapshot
	_ = attempt.Do(func(e *session.Engine) error {
		snap = e.Snapshot()
		return nil
	})
	conn.WriteTyped(ws.StateResponse{
		Event:            ws.EventState,
		Answers:          snap.Answers,
		MarkedForReview:  snap.MarkedForReview,
		Visited:          snap.Visited,
		SectionIndex:     snap.SectionIndex,
		QuestionIndex:    snap.QuestionIndex,
		RemainingSeconds: snap.RemainingSeconds,
		ViolationCount:   snap.ViolationCount,
	})
}

func (h *WSHandler) saveProgress(ctx context.Context, attempt *session.Attempt) {
	var snap session.Snapshot
	_ = attempt.Do(func(e *session.Engine) error {
		snap = e.Snapshot()
		return nil
	})
	h.sessionService.SaveProgress(ctx, attempt.TestID, attempt.LearnerID, snap)
}
