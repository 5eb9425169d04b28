package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/testport/testport-backend/internal/config"
	"github.com/testport/testport-backend/internal/handler"
	"github.com/testport/testport-backend/internal/middleware"
	"github.com/testport/testport-backend/internal/model"
	"github.com/testport/testport-backend/internal/response"
	"github.com/testport/testport-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth        *handler.AuthHandler
	Portal      *handler.PortalHandler
	WS          *handler.WSHandler
	Test        *handler.TestHandler
	Question    *handler.QuestionHandler
	Media       *handler.MediaHandler
	Monitor     *handler.MonitorHandler
	Dashboard   *handler.DashboardHandler
	Subject     *handler.SubjectHandler
	LearnerMgmt *handler.LearnerManagementHandler
	Faculty     *handler.FacultyHandler
	Setting     *handler.SettingHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID first so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Brotli globally; streaming endpoints opt out inside the middleware.
	router.Use(middleware.Brotli())

	// Uploaded media never changes once written (UUID filenames): cache 1 year.
	uploadsGroup := router.Group("/uploads")
	uploadsGroup.Use(middleware.CacheControl(31536000))
	{
		uploadsGroup.Static("/", cfg.UploadDir)
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for login routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited Logins) ───────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/learner/login", authLimiter.Middleware(), handlers.Auth.LearnerLogin)
		auth.POST("/faculty/login", authLimiter.Middleware(), handlers.Auth.FacultyLogin)

		// Authenticated profile routes.
		auth.POST("/learner/logout", middleware.RequireLearnerJWT(authService), handlers.Auth.LearnerLogout)
		auth.GET("/learner/me", middleware.RequireLearnerJWT(authService), handlers.Auth.GetLearnerProfile)
		auth.GET("/faculty/me", middleware.RequireFacultyJWT(authService), handlers.Auth.GetFacultyProfile)
	}

	// ─── 2. Learner Group (JWT + Single Device) ────────────────────────
	learnerAPI := router.Group("/api/v1/learner")
	learnerAPI.Use(
		middleware.RequireLearnerJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		learnerAPI.GET("/tests", handlers.Portal.GetCatalog)
		learnerAPI.GET("/sessions", handlers.Portal.GetHistory)
		learnerAPI.POST("/tests/:test_id/join", handlers.Portal.JoinTest)
		learnerAPI.GET("/tests/:test_id/paper", handlers.Portal.GetTestPaper)
		learnerAPI.GET("/tests/:test_id/state", handlers.Portal.GetSessionState)
		learnerAPI.POST("/tests/:test_id/submit", handlers.Portal.SubmitTest)
		learnerAPI.POST("/tests/:test_id/violation", handlers.Portal.ReportViolation)
		learnerAPI.POST("/tests/:test_id/exit", handlers.Portal.ExitTest)
		learnerAPI.POST("/tests/:test_id/questions/:question_id/evaluate", handlers.Portal.EvaluateCode)
	}

	// ─── 3. WebSocket Group (Learner WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireLearnerWSAuth(authService))
	{
		ws.GET("/learner/tests/:test_id/stream", handlers.WS.TestStream)
	}

	// ─── 4. Faculty Group (JWT + RBAC) ─────────────────────────────────
	facultyAPI := router.Group("/api/v1/faculty")
	facultyAPI.Use(middleware.RequireFacultyJWT(authService))
	{
		// Dashboard
		facultyAPI.GET("/dashboard",
			middleware.RequirePermission(string(model.PermissionTestsRead)),
			handlers.Dashboard.GetDashboard,
		)

		// Media upload
		facultyAPI.POST("/media/upload",
			middleware.RequirePermission(string(model.PermissionMediaUpload)),
			handlers.Media.UploadMedia,
		)

		// Test management
		facultyAPI.GET("/tests",
			middleware.RequirePermission(string(model.PermissionTestsRead)),
			handlers.Test.ListTests,
		)
		facultyAPI.POST("/tests",
			middleware.RequirePermission(string(model.PermissionTestsWrite)),
			handlers.Test.CreateTest,
		)
		facultyAPI.GET("/tests/:test_id",
			middleware.RequirePermission(string(model.PermissionTestsRead)),
			handlers.Test.GetTest,
		)
		facultyAPI.PUT("/tests/:test_id",
			middleware.RequirePermission(string(model.PermissionTestsWrite)),
			handlers.Test.UpdateTest,
		)
		facultyAPI.DELETE("/tests/:test_id",
			middleware.RequirePermission(string(model.PermissionTestsWrite)),
			handlers.Test.DeleteTest,
		)
		facultyAPI.POST("/tests/:test_id/publish",
			middleware.RequirePermission(string(model.PermissionTestsPublish)),
			handlers.Test.PublishTest,
		)
		facultyAPI.POST("/tests/:test_id/archive",
			middleware.RequirePermission(string(model.PermissionTestsPublish)),
			handlers.Test.ArchiveTest,
		)
		facultyAPI.POST("/tests/:test_id/refresh-cache",
			middleware.RequirePermission(string(model.PermissionTestsWrite)),
			handlers.Test.RefreshTestCache,
		)

		// Questions
		facultyAPI.GET("/tests/:test_id/questions",
			middleware.RequirePermission(string(model.PermissionTestsRead)),
			handlers.Question.ListQuestions,
		)
		facultyAPI.POST("/tests/:test_id/questions",
			middleware.RequirePermission(string(model.PermissionTestsWrite)),
			handlers.Question.AddQuestion,
		)
		facultyAPI.PUT("/tests/:test_id/questions",
			middleware.RequirePermission(string(model.PermissionTestsWrite)),
			handlers.Question.ReplaceQuestions,
		)
		facultyAPI.PUT("/tests/:test_id/questions/:question_id",
			middleware.RequirePermission(string(model.PermissionTestsWrite)),
			handlers.Question.UpdateQuestion,
		)
		facultyAPI.DELETE("/tests/:test_id/questions/:question_id",
			middleware.RequirePermission(string(model.PermissionTestsWrite)),
			handlers.Question.DeleteQuestion,
		)

		// Results and live monitoring
		facultyAPI.GET("/tests/:test_id/results",
			middleware.RequirePermission(string(model.PermissionResultsRead)),
			handlers.Test.GetTestResults,
		)
		facultyAPI.GET("/tests/:test_id/monitor",
			middleware.RequirePermission(string(model.PermissionMonitorRead)),
			handlers.Monitor.MonitorTestSSE,
		)

		// Subjects
		facultyAPI.GET("/subjects",
			middleware.RequirePermission(string(model.PermissionTestsRead)),
			handlers.Subject.ListSubjects,
		)
		facultyAPI.POST("/subjects",
			middleware.RequirePermission(string(model.PermissionTestsWrite)),
			handlers.Subject.CreateSubject,
		)
		facultyAPI.PUT("/subjects/:id",
			middleware.RequirePermission(string(model.PermissionTestsWrite)),
			handlers.Subject.UpdateSubject,
		)
		facultyAPI.DELETE("/subjects/:id",
			middleware.RequirePermission(string(model.PermissionTestsWrite)),
			handlers.Subject.DeleteSubject,
		)

		// Learner management
		facultyAPI.GET("/learners",
			middleware.RequirePermission(string(model.PermissionLearnersRead)),
			handlers.LearnerMgmt.ListLearners,
		)
		facultyAPI.POST("/learners",
			middleware.RequirePermission(string(model.PermissionLearnersWrite)),
			handlers.LearnerMgmt.CreateLearner,
		)
		facultyAPI.POST("/learners/import",
			middleware.RequirePermission(string(model.PermissionLearnersWrite)),
			handlers.LearnerMgmt.ImportLearners,
		)
		facultyAPI.GET("/learners/:id",
			middleware.RequirePermission(string(model.PermissionLearnersRead)),
			handlers.LearnerMgmt.GetLearner,
		)
		facultyAPI.PUT("/learners/:id",
			middleware.RequirePermission(string(model.PermissionLearnersWrite)),
			handlers.LearnerMgmt.UpdateLearner,
		)
		facultyAPI.DELETE("/learners/:id",
			middleware.RequirePermission(string(model.PermissionLearnersWrite)),
			handlers.LearnerMgmt.DeleteLearner,
		)
		facultyAPI.POST("/learners/:id/reset-session",
			middleware.RequirePermission(string(model.PermissionLearnersWrite)),
			handlers.LearnerMgmt.ResetLearnerSession,
		)

		// Faculty account management
		facultyAPI.GET("/accounts",
			middleware.RequirePermission(string(model.PermissionFacultyRead)),
			handlers.Faculty.ListFaculty,
		)
		facultyAPI.POST("/accounts",
			middleware.RequirePermission(string(model.PermissionFacultyWrite)),
			handlers.Faculty.CreateFaculty,
		)
		facultyAPI.PUT("/accounts/:id",
			middleware.RequirePermission(string(model.PermissionFacultyWrite)),
			handlers.Faculty.UpdateFaculty,
		)
		facultyAPI.DELETE("/accounts/:id",
			middleware.RequirePermission(string(model.PermissionFacultyWrite)),
			handlers.Faculty.DeleteFaculty,
		)

		// Settings
		facultyAPI.GET("/settings",
			middleware.RequirePermission(string(model.PermissionTestsRead)),
			handlers.Setting.GetSettings,
		)
		facultyAPI.PUT("/settings",
			middleware.RequirePermission(string(model.PermissionSettingsWrite)),
			handlers.Setting.UpdateSettings,
		)
	}

	return router
}
