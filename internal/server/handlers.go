package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ascendlabs/ascend/backend/internal/activities"
	"github.com/ascendlabs/ascend/backend/internal/faults"
	"github.com/ascendlabs/ascend/backend/internal/tracking"
	"github.com/ascendlabs/ascend/backend/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type credentialsPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionPayload struct {
	AccessToken string         `json:"access_token"`
	ExpiresIn   int64          `json:"expires_in"`
	TokenType   string         `json:"token_type"`
	User        profilePayload `json:"user"`
}

type profilePayload struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	TotalXP       int64  `json:"total_xp"`
	Level         int    `json:"level"`
	StreakDays    int    `json:"streak_days"`
	SetupComplete bool   `json:"setup_complete"`
}

func toProfilePayload(user users.User) profilePayload {
	return profilePayload{
		ID:            user.UserID,
		Username:      user.Username,
		Email:         user.Email,
		TotalXP:       user.TotalXP,
		Level:         user.Level,
		StreakDays:    user.StreakDays,
		SetupComplete: user.SetupComplete,
	}
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request credentialsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.users.Register(c.Request.Context(), request.Username, request.Email, request.Password)
	if err != nil {
		h.respondEngineError(c, err)
		return
	}

	token, expiresIn, err := h.tokens.IssueToken(user.UserID)
	if err != nil {
		h.logger.Error("failed to issue access token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusCreated, sessionPayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
		User:        toProfilePayload(user),
	})
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request credentialsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), request.Username, request.Password)
	if err != nil {
		var unavailable *faults.UnavailableError
		if errors.As(err, &unavailable) {
			h.respondEngineError(c, err)
			return
		}
		// Credential failures map to 401 rather than the taxonomy's 403.
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, expiresIn, err := h.tokens.IssueToken(user.UserID)
	if err != nil {
		h.logger.Error("failed to issue access token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, sessionPayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
		User:        toProfilePayload(user),
	})
}

func (h *httpHandler) handleGetProfile(c *gin.Context) {
	user, err := h.users.Profile(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		h.respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProfilePayload(user))
}

type updateProfilePayload struct {
	Username string `json:"username"`
}

func (h *httpHandler) handleUpdateProfile(c *gin.Context) {
	var request updateProfilePayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Username) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.users.UpdateUsername(c.Request.Context(), c.GetString(userIDContextKey), request.Username)
	if err != nil {
		h.respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProfilePayload(user))
}

type activityPayload struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Origin         string `json:"origin"`
	XPValue        int64  `json:"xp_value"`
	Bookmarked     bool   `json:"bookmarked"`
	CommittedToday bool   `json:"committed_today"`
	CompletedToday bool   `json:"completed_today"`
}

type categoryPayload struct {
	Category   string            `json:"category"`
	Activities []activityPayload `json:"activities"`
}

func (h *httpHandler) handleListActivities(c *gin.Context) {
	userID := c.GetString(userIDContextKey)

	catalog, err := h.catalog.List(c.Request.Context(), userID)
	if err != nil {
		h.respondEngineError(c, err)
		return
	}
	states, err := h.tracker.Flags(c.Request.Context(), userID)
	if err != nil {
		h.respondEngineError(c, err)
		return
	}

	response := make([]categoryPayload, 0, len(activities.Categories()))
	for _, category := range activities.Categories() {
		entries := make([]activityPayload, 0, len(catalog[category]))
		for _, activity := range catalog[category] {
			state := states[activity.ActivityID]
			entries = append(entries, activityPayload{
				ID:             activity.ActivityID,
				Name:           activity.Name,
				Description:    activity.Description,
				Origin:         string(activity.Origin),
				XPValue:        activity.XPValue,
				Bookmarked:     state.Bookmarked,
				CommittedToday: state.CommittedToday,
				CompletedToday: state.CompletedToday,
			})
		}
		response = append(response, categoryPayload{
			Category:   category.String(),
			Activities: entries,
		})
	}
	c.JSON(http.StatusOK, gin.H{"categories": response})
}

type createCustomPayload struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

func (h *httpHandler) handleCreateCustomActivity(c *gin.Context) {
	var request createCustomPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	activity, err := h.catalog.CreateCustom(c.Request.Context(), c.GetString(userIDContextKey), request.Name, request.Category)
	if err != nil {
		h.respondEngineError(c, err)
		return
	}

	c.JSON(http.StatusCreated, activityPayload{
		ID:          activity.ActivityID,
		Name:        activity.Name,
		Description: activity.Description,
		Origin:      string(activity.Origin),
		XPValue:     activity.XPValue,
	})
}

func (h *httpHandler) handleDeleteCustomActivity(c *gin.Context) {
	err := h.catalog.DeleteCustom(c.Request.Context(), c.GetString(userIDContextKey), c.Param("id"))
	if err != nil {
		h.respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type toggleBookmarkPayload struct {
	Bookmarked *bool `json:"bookmarked"`
}

func (h *httpHandler) handleToggleBookmark(c *gin.Context) {
	var request toggleBookmarkPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Bookmarked == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	count, err := h.tracker.ToggleBookmark(c.Request.Context(), c.GetString(userIDContextKey), c.Param("id"), *request.Bookmarked)
	if err != nil {
		h.respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"category":   count.Category,
		"count":      count.Count,
		"limit":      tracking.MaxBookmarksPerCategory,
		"bookmarked": *request.Bookmarked,
	})
}

type finalizeSelectionPayload struct {
	ActivityIDs []string `json:"activity_ids"`
}

func (h *httpHandler) handleFinalizeSelection(c *gin.Context) {
	var request finalizeSelectionPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if err := h.tracker.FinalizeSelection(c.Request.Context(), c.GetString(userIDContextKey), request.ActivityIDs); err != nil {
		h.respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type commitmentPayload struct {
	ActivityID string `json:"activity_id"`
	Status     string `json:"status"`
}

func (h *httpHandler) handleToggleCommitment(c *gin.Context) {
	today, err := h.tracker.ToggleCommitment(c.Request.Context(), c.GetString(userIDContextKey), c.Param("id"))
	if err != nil {
		h.respondEngineError(c, err)
		return
	}

	committed := make([]commitmentPayload, 0, len(today))
	for _, row := range today {
		committed = append(committed, commitmentPayload{
			ActivityID: row.ActivityID,
			Status:     string(row.Status),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"committed": committed,
		"limit":     tracking.DailyCommitmentLimit,
	})
}

func (h *httpHandler) handleSubmitDay(c *gin.Context) {
	result, err := h.tracker.SubmitDay(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		h.respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"xp_gained":   result.XPGained,
		"multiplier":  result.Multiplier,
		"level":       result.Level,
		"streak_days": result.StreakDays,
	})
}

func (h *httpHandler) handleResetProgress(c *gin.Context) {
	if err := h.tracker.ResetProgress(c.Request.Context(), c.GetString(userIDContextKey)); err != nil {
		h.respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleCompletedDays(c *gin.Context) {
	days, err := h.tracker.CompletedDays(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		h.respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days})
}

func (h *httpHandler) handleProgressionStats(c *gin.Context) {
	stats, err := h.tracker.Stats(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		h.respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total_xp":            stats.TotalXP,
		"level":               stats.Level,
		"streak_days":         stats.StreakDays,
		"multiplier":          stats.Multiplier,
		"xp_into_level":       stats.XPIntoLevel,
		"xp_needed_for_level": stats.XPNeededForLevel,
		"percent":             stats.Percent,
	})
}
