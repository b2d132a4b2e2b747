package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/jobtrackr/backend/internal/applications"
	"github.com/MarcoPoloResearchLab/jobtrackr/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/jobtrackr/backend/internal/reports"
	"github.com/MarcoPoloResearchLab/jobtrackr/backend/internal/users"
	"github.com/MarcoPoloResearchLab/jobtrackr/backend/internal/validation"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	userIDContextKey  = "jobtrackr_user_id"
	serviceName       = "jobtrackr-api"
	defaultCookieName = "token"
	timezoneHeader    = "X-Timezone"
)

var (
	errMissingTokenManager = errors.New("token manager dependency required")
	errMissingApplications = errors.New("applications service dependency required")
	errMissingReports      = errors.New("reports service dependency required")
	errMissingUsers        = errors.New("users service dependency required")
	errMissingOrigins      = errors.New("at least one allowed origin required")
)

type TokenManager interface {
	IssueToken(ctx context.Context, identity auth.Identity) (string, int64, error)
	ValidateToken(token string) (auth.Claims, error)
}

type ApplicationService interface {
	Create(ctx context.Context, userID applications.UserID, input applications.ApplicationInput) (applications.Application, error)
	Get(ctx context.Context, userID applications.UserID, applicationID applications.ApplicationID) (applications.Application, error)
	ListByOwner(ctx context.Context, userID applications.UserID) ([]applications.Application, error)
	Update(ctx context.Context, userID applications.UserID, applicationID applications.ApplicationID, input applications.ApplicationInput) (applications.Application, error)
	Delete(ctx context.Context, userID applications.UserID, applicationID applications.ApplicationID) error
}

type ReportService interface {
	GetStatsIn(ctx context.Context, userID applications.UserID, location *time.Location) (reports.Report, error)
	ExportCSV(ctx context.Context, userID applications.UserID) (reports.Export, error)
	Invalidate(userID applications.UserID)
}

type UserService interface {
	Register(ctx context.Context, input users.RegisterInput) (users.User, error)
	Authenticate(ctx context.Context, email, password string) (users.User, error)
	Get(ctx context.Context, userID string) (users.User, error)
}

type Dependencies struct {
	TokenManager       TokenManager
	ApplicationService ApplicationService
	ReportService      ReportService
	UserService        UserService
	AllowedOrigins     []string
	CookieName         string
	CookieSecure       bool
	Logger             *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.ApplicationService == nil {
		return nil, errMissingApplications
	}
	if deps.ReportService == nil {
		return nil, errMissingReports
	}
	if deps.UserService == nil {
		return nil, errMissingUsers
	}
	if len(deps.AllowedOrigins) == 0 {
		return nil, errMissingOrigins
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cookieName := deps.CookieName
	if cookieName == "" {
		cookieName = defaultCookieName
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observeRequests(logger))
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		tokens:       deps.TokenManager,
		applications: deps.ApplicationService,
		reports:      deps.ReportService,
		users:        deps.UserService,
		cookieName:   cookieName,
		cookieSecure: deps.CookieSecure,
		logger:       logger,
	}

	router.GET("/api/health", handler.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authRoutes := router.Group("/api/auth")
	authRoutes.POST("/register", handler.handleRegister)
	authRoutes.POST("/login", handler.handleLogin)
	authRoutes.POST("/logout", handler.handleLogout)
	authRoutes.GET("/me", handler.authorizeRequest, handler.handleMe)

	appRoutes := router.Group("/api/apps")
	appRoutes.Use(handler.authorizeRequest)
	appRoutes.GET("", handler.handleListApplications)
	appRoutes.POST("", handler.handleCreateApplication)
	appRoutes.GET("/stats", handler.handleStats)
	appRoutes.GET("/export", handler.handleExport)
	appRoutes.GET("/:id", handler.handleGetApplication)
	appRoutes.PUT("/:id", handler.handleUpdateApplication)
	appRoutes.DELETE("/:id", handler.handleDeleteApplication)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Route not found: " + c.Request.Method + " " + c.Request.URL.Path,
		})
	})

	return router, nil
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", timezoneHeader},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, origin := range allowedOrigins {
		if origin == "*" {
			config.AllowOriginFunc = func(string) bool { return true }
			return cors.New(config)
		}
	}
	config.AllowOrigins = allowedOrigins
	return cors.New(config)
}

type httpHandler struct {
	tokens       TokenManager
	applications ApplicationService
	reports      ReportService
	users        UserService
	cookieName   string
	cookieSecure bool
	logger       *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "service": serviceName})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token, err := auth.TokenFromRequest(c.Request, h.cookieName)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Authentication required"})
		return
	}
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Invalid or expired token"})
		return
	}
	c.Set(userIDContextKey, claims.Subject)
	c.Next()
}

// ownerID returns the authenticated owner, responding 401 when absent.
func (h *httpHandler) ownerID(c *gin.Context) (applications.UserID, bool) {
	userID, err := applications.NewUserID(c.GetString(userIDContextKey))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Authentication required"})
		return "", false
	}
	return userID, true
}

type errorCoder interface {
	Code() string
}

// respondError maps service errors onto HTTP responses.
func (h *httpHandler) respondError(c *gin.Context, message string, err error) {
	var validationErr *validation.Error
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": "Validation failed",
			"details": validationErr.Fields,
		})
		return
	case errors.Is(err, applications.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Application not found"})
		return
	case errors.Is(err, users.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "User not found"})
		return
	case errors.Is(err, users.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "email_taken", "message": "Email already in use"})
		return
	case errors.Is(err, users.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials", "message": "Invalid email or password"})
		return
	case errors.Is(err, reports.ErrInvalidOwner):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Authentication required"})
		return
	}

	payload := gin.H{"error": "internal_error", "message": message}
	status := http.StatusInternalServerError
	if errors.Is(err, reports.ErrStoreUnavailable) {
		payload["error"] = "store_unavailable"
		status = http.StatusServiceUnavailable
	}
	var coder errorCoder
	if errors.As(err, &coder) {
		payload["code"] = coder.Code()
	}
	h.logger.Error(message, zap.Error(err))
	c.JSON(status, payload)
}
