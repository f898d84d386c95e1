package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ascendlabs/ascend/backend/internal/activities"
	"github.com/ascendlabs/ascend/backend/internal/faults"
	"github.com/ascendlabs/ascend/backend/internal/tracking"
	"github.com/ascendlabs/ascend/backend/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userIDContextKey = "ascend_user_id"

var (
	errMissingTokenManager    = errors.New("token manager dependency required")
	errMissingUsersService    = errors.New("users service dependency required")
	errMissingCatalogService  = errors.New("catalog service dependency required")
	errMissingTrackingService = errors.New("tracking service dependency required")
	errInvalidAuthorization   = errors.New("authorization header missing or invalid")
)

// TokenManager issues and validates the access tokens carried on
// protected routes.
type TokenManager interface {
	IssueToken(userID string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// Dependencies wires the collaborating services into the HTTP handler.
type Dependencies struct {
	TokenManager      TokenManager
	Users             *users.Service
	Catalog           *activities.Service
	Tracker           *tracking.Service
	AuthRatePerMinute int
	Logger            *zap.Logger
}

// NewHTTPHandler assembles the gin router for the API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Users == nil {
		return nil, errMissingUsersService
	}
	if deps.Catalog == nil {
		return nil, errMissingCatalogService
	}
	if deps.Tracker == nil {
		return nil, errMissingTrackingService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:  deps.TokenManager,
		users:   deps.Users,
		catalog: deps.Catalog,
		tracker: deps.Tracker,
		logger:  logger,
	}

	authGroup := router.Group("/api/auth")
	if deps.AuthRatePerMinute > 0 {
		authGroup.Use(rateLimitByClientIP(deps.AuthRatePerMinute))
	}
	authGroup.POST("/register", handler.handleRegister)
	authGroup.POST("/login", handler.handleLogin)

	protected := router.Group("/api")
	protected.Use(handler.authorizeRequest)
	protected.GET("/profile", handler.handleGetProfile)
	protected.PUT("/profile", handler.handleUpdateProfile)
	protected.GET("/activities", handler.handleListActivities)
	protected.POST("/activities/custom", handler.handleCreateCustomActivity)
	protected.DELETE("/activities/custom/:id", handler.handleDeleteCustomActivity)
	protected.POST("/activities/:id/bookmark", handler.handleToggleBookmark)
	protected.POST("/activities/:id/commitment", handler.handleToggleCommitment)
	protected.POST("/selection/finalize", handler.handleFinalizeSelection)
	protected.POST("/day/submit", handler.handleSubmitDay)
	protected.POST("/progress/reset", handler.handleResetProgress)
	protected.GET("/progress/stats", handler.handleProgressionStats)
	protected.GET("/progress/history", handler.handleCompletedDays)

	return router, nil
}

type httpHandler struct {
	tokens  TokenManager
	users   *users.Service
	catalog *activities.Service
	tracker *tracking.Service
	logger  *zap.Logger
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}

// respondEngineError maps the engine's error taxonomy onto HTTP status
// codes. Everything recoverable carries its message verbatim.
func (h *httpHandler) respondEngineError(c *gin.Context, err error) {
	var validation *faults.ValidationError
	var capacity *faults.CapacityError
	var permission *faults.PermissionError
	var notFound *faults.NotFoundError
	var unavailable *faults.UnavailableError

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error()})
	case errors.As(err, &capacity):
		c.JSON(http.StatusConflict, gin.H{
			"error":    capacity.Error(),
			"category": capacity.Category,
			"count":    capacity.Count,
			"limit":    capacity.Limit,
		})
	case errors.As(err, &permission):
		c.JSON(http.StatusForbidden, gin.H{"error": permission.Error()})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
	case errors.As(err, &unavailable):
		h.logger.Error("storage unavailable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
	default:
		h.logger.Error("unexpected engine error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
