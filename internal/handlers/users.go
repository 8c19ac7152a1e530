package handlers

import (
	"context"
	"errors"
	nethttp "net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"relationship-service/internal/models"
	"relationship-service/internal/repositories"
	"relationship-service/internal/telemetry"
)

// SettingsStore reads and updates a user's profile and privacy flags.
type SettingsStore interface {
	GetProfile(ctx context.Context, id int64) (*models.UserProfile, error)
	SyncProfile(ctx context.Context, id int64, username, avatarURL string) (*models.UserProfile, error)
	UpdateSettings(ctx context.Context, id int64, settings models.PrivacySettings) (*models.UserProfile, error)
}

type UserHandler struct {
	users SettingsStore
	audit *telemetry.AuditEmitter
}

func NewUserHandler(users SettingsStore, audit *telemetry.AuditEmitter) *UserHandler {
	return &UserHandler{users: users, audit: audit}
}

type settingsResponse struct {
	AcceptsRequests bool `json:"accepts_requests"`
	ProfileHidden   bool `json:"profile_hidden"`
}

func newSettingsResponse(p *models.UserProfile) settingsResponse {
	return settingsResponse{AcceptsRequests: p.AcceptsRequests, ProfileHidden: p.Hidden}
}

func (h *UserHandler) GetSettings(c *gin.Context) {
	userID := userIDFromContext(c)
	if userID == nil {
		c.JSON(nethttp.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	profile, err := h.users.GetProfile(c.Request.Context(), *userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			c.JSON(nethttp.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(nethttp.StatusInternalServerError, gin.H{"error": "failed to load settings"})
		return
	}

	c.JSON(nethttp.StatusOK, newSettingsResponse(profile))
}

func (h *UserHandler) UpdateSettings(c *gin.Context) {
	requestID := requestIDFromHeader(c)
	userID := userIDFromContext(c)
	if userID == nil {
		c.JSON(nethttp.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body models.PrivacySettings
	if err := c.ShouldBindJSON(&body); err != nil || body.Empty() {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	profile, err := h.users.UpdateSettings(ctx, *userID, body)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			c.JSON(nethttp.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.emitAudit(ctx, telemetry.LevelError, "internal error", requestID, userID)
		c.JSON(nethttp.StatusInternalServerError, gin.H{"error": "failed to update settings"})
		return
	}

	h.emitAudit(ctx, telemetry.LevelInfo, "Privacy settings updated", requestID, userID)
	c.JSON(nethttp.StatusOK, newSettingsResponse(profile))
}

type syncProfileBody struct {
	Username  string `json:"username" binding:"required,max=64"`
	AvatarURL string `json:"avatar_url" binding:"omitempty,url,max=512"`
}

// SyncProfile registers the caller's public profile, or refreshes it. Privacy
// settings of an existing profile are kept.
func (h *UserHandler) SyncProfile(c *gin.Context) {
	requestID := requestIDFromHeader(c)
	userID := userIDFromContext(c)
	if userID == nil {
		c.JSON(nethttp.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body syncProfileBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	body.Username = strings.TrimSpace(body.Username)
	if body.Username == "" {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	profile, err := h.users.SyncProfile(ctx, *userID, body.Username, body.AvatarURL)
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			c.JSON(nethttp.StatusConflict, gin.H{"error": "username already taken"})
			return
		}
		h.emitAudit(ctx, telemetry.LevelError, "internal error", requestID, userID)
		c.JSON(nethttp.StatusInternalServerError, gin.H{"error": "failed to save profile"})
		return
	}

	h.emitAudit(ctx, telemetry.LevelInfo, "Profile synced", requestID, userID)
	c.JSON(nethttp.StatusOK, profileResponse{
		ID:              profile.ID,
		Username:        profile.Username,
		AvatarURL:       profile.AvatarURL,
		AcceptsRequests: profile.AcceptsRequests,
		ProfileHidden:   profile.Hidden,
	})
}

type profileResponse struct {
	ID              int64  `json:"id"`
	Username        string `json:"username"`
	AvatarURL       string `json:"avatar_url,omitempty"`
	AcceptsRequests bool   `json:"accepts_requests"`
	ProfileHidden   bool   `json:"profile_hidden"`
}

func (h *UserHandler) emitAudit(ctx context.Context, level, text, requestID string, userID *int64) {
	if h.audit == nil {
		return
	}
	h.audit.EmitAudit(ctx, level, text, requestID, userID)
}
