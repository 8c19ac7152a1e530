package handlers

import (
	"context"
	"errors"
	nethttp "net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"relationship-service/internal/metrics"
	"relationship-service/internal/models"
	"relationship-service/internal/repositories"
	"relationship-service/internal/services"
	"relationship-service/internal/telemetry"
)

// RelationshipService is the part of services.RelationshipService the HTTP layer uses.
type RelationshipService interface {
	ManageRelationship(ctx context.Context, cmd services.Command) (*services.Outcome, error)
	BlockUser(ctx context.Context, actorID, targetID int64) (*services.Outcome, error)
	SentRequests(ctx context.Context, userID int64) ([]models.RelatedUser, error)
	ReceivedRequests(ctx context.Context, userID int64) ([]models.RelatedUser, error)
	Friends(ctx context.Context, userID int64) ([]models.RelatedUser, error)
	BlockedByMe(ctx context.Context, userID int64) ([]models.RelatedUser, error)
	BlockingMe(ctx context.Context, userID int64) ([]models.RelatedUser, error)
	Blocked(ctx context.Context, userID int64) ([]models.RelatedUser, error)
	SearchCandidates(ctx context.Context, userID int64, fragment string) ([]models.UserSummary, error)
	SearchFriends(ctx context.Context, userID int64, fragment string) ([]models.RelatedUser, error)
	RelationshipInfo(ctx context.Context, viewerID, otherID int64) (*models.RelationshipInfo, error)
}

type RelationshipHandler struct {
	relationships RelationshipService
	audit         *telemetry.AuditEmitter
}

func NewRelationshipHandler(relationships RelationshipService, audit *telemetry.AuditEmitter) *RelationshipHandler {
	return &RelationshipHandler{relationships: relationships, audit: audit}
}

type sendRequestBody struct {
	RecipientID int64 `json:"recipient_id" binding:"required"`
}

type manageBody struct {
	Action string `json:"action" binding:"required"`
}

// relationshipResponse is a relationship as seen by the caller.
type relationshipResponse struct {
	ID        uuid.UUID           `json:"id"`
	UserID    int64               `json:"user_id"`
	Status    models.ViewerStatus `json:"status,omitempty"`
	Deleted   bool                `json:"deleted,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func newRelationshipResponse(out *services.Outcome, viewerID int64) relationshipResponse {
	rel := out.Relationship
	resp := relationshipResponse{
		ID:        rel.ID,
		UserID:    rel.Counterparty(viewerID),
		Deleted:   out.Deleted,
		UpdatedAt: rel.UpdatedAt,
	}
	if !out.Deleted {
		resp.Status = rel.ViewerStatus(viewerID)
	}
	return resp
}

func (h *RelationshipHandler) SendRequest(c *gin.Context) {
	action := string(models.ActionRequest)
	requestID := requestIDFromHeader(c)
	userID := userIDFromContext(c)

	var body sendRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.emitAudit(c.Request.Context(), telemetry.LevelError, "invalid request payload", requestID, userID)
		metrics.IncAction(action, metrics.StatusFailed)
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if userID == nil {
		metrics.IncAction(action, metrics.StatusFailed)
		c.JSON(nethttp.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx := c.Request.Context()
	out, err := h.relationships.ManageRelationship(ctx, services.Command{
		ActorID:        *userID,
		CounterpartyID: body.RecipientID,
		Action:         models.ActionRequest,
	})
	if err != nil {
		h.fail(c, action, err, requestID, userID)
		return
	}

	h.emitAudit(ctx, telemetry.LevelInfo, "Relationship request sent to '"+strconv.FormatInt(body.RecipientID, 10)+"'", requestID, userID)
	metrics.IncAction(action, metrics.StatusSuccess)
	c.JSON(nethttp.StatusCreated, newRelationshipResponse(out, *userID))
}

func (h *RelationshipHandler) Manage(c *gin.Context) {
	requestID := requestIDFromHeader(c)
	userID := userIDFromContext(c)

	relID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		metrics.IncAction("unknown", metrics.StatusFailed)
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "invalid relationship id"})
		return
	}

	var body manageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.emitAudit(c.Request.Context(), telemetry.LevelError, "invalid request payload", requestID, userID)
		metrics.IncAction("unknown", metrics.StatusFailed)
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	action, err := models.ParseAction(body.Action)
	if err != nil || action == models.ActionRequest {
		metrics.IncAction("unknown", metrics.StatusFailed)
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": services.ErrInvalidAction.Error()})
		return
	}
	if userID == nil {
		metrics.IncAction(string(action), metrics.StatusFailed)
		c.JSON(nethttp.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx := c.Request.Context()
	out, err := h.relationships.ManageRelationship(ctx, services.Command{
		ActorID:        *userID,
		RelationshipID: relID,
		Action:         action,
	})
	if err != nil {
		h.fail(c, string(action), err, requestID, userID)
		return
	}

	h.emitAudit(ctx, telemetry.LevelInfo, "Relationship "+relID.String()+" "+string(action), requestID, userID)
	metrics.IncAction(string(action), metrics.StatusSuccess)
	c.JSON(nethttp.StatusOK, newRelationshipResponse(out, *userID))
}

func (h *RelationshipHandler) BlockUser(c *gin.Context) {
	action := string(models.ActionBlock)
	requestID := requestIDFromHeader(c)
	userID := userIDFromContext(c)

	targetID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		metrics.IncAction(action, metrics.StatusFailed)
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	if userID == nil {
		metrics.IncAction(action, metrics.StatusFailed)
		c.JSON(nethttp.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx := c.Request.Context()
	out, err := h.relationships.BlockUser(ctx, *userID, targetID)
	if err != nil {
		h.fail(c, action, err, requestID, userID)
		return
	}

	h.emitAudit(ctx, telemetry.LevelInfo, "User '"+strconv.FormatInt(targetID, 10)+"' blocked", requestID, userID)
	metrics.IncAction(action, metrics.StatusSuccess)
	c.JSON(nethttp.StatusOK, newRelationshipResponse(out, *userID))
}

func (h *RelationshipHandler) ListFriends(c *gin.Context) {
	h.list(c, "friends", h.relationships.Friends)
}

func (h *RelationshipHandler) ListSent(c *gin.Context) {
	h.list(c, "sent", h.relationships.SentRequests)
}

func (h *RelationshipHandler) ListReceived(c *gin.Context) {
	h.list(c, "received", h.relationships.ReceivedRequests)
}

// ListBlocked serves ?direction=by_me, ?direction=me, or both when omitted.
func (h *RelationshipHandler) ListBlocked(c *gin.Context) {
	switch c.Query("direction") {
	case "":
		h.list(c, "blocked", h.relationships.Blocked)
	case "by_me":
		h.list(c, "blocked_by_me", h.relationships.BlockedByMe)
	case "me":
		h.list(c, "blocking_me", h.relationships.BlockingMe)
	default:
		metrics.IncQuery("blocked", metrics.StatusFailed)
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "direction must be by_me or me"})
	}
}

func (h *RelationshipHandler) SearchCandidates(c *gin.Context) {
	const query = "search_candidates"
	userID := userIDFromContext(c)
	if userID == nil {
		metrics.IncQuery(query, metrics.StatusFailed)
		c.JSON(nethttp.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	users, err := h.relationships.SearchCandidates(c.Request.Context(), *userID, c.Query("username"))
	if err != nil {
		metrics.IncQuery(query, metrics.StatusFailed)
		status, msg := errorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	metrics.IncQuery(query, metrics.StatusSuccess)
	c.JSON(nethttp.StatusOK, users)
}

func (h *RelationshipHandler) SearchFriends(c *gin.Context) {
	h.list(c, "search_friends", func(ctx context.Context, userID int64) ([]models.RelatedUser, error) {
		return h.relationships.SearchFriends(ctx, userID, c.Query("username"))
	})
}

func (h *RelationshipHandler) GetRelationshipInfo(c *gin.Context) {
	const query = "info"
	otherID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		metrics.IncQuery(query, metrics.StatusFailed)
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	userID := userIDFromContext(c)
	if userID == nil {
		metrics.IncQuery(query, metrics.StatusFailed)
		c.JSON(nethttp.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	info, err := h.relationships.RelationshipInfo(c.Request.Context(), *userID, otherID)
	if err != nil {
		metrics.IncQuery(query, metrics.StatusFailed)
		status, msg := errorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	metrics.IncQuery(query, metrics.StatusSuccess)
	c.JSON(nethttp.StatusOK, info)
}

func (h *RelationshipHandler) list(c *gin.Context, query string, load func(ctx context.Context, userID int64) ([]models.RelatedUser, error)) {
	userID := userIDFromContext(c)
	if userID == nil {
		metrics.IncQuery(query, metrics.StatusFailed)
		c.JSON(nethttp.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	users, err := load(c.Request.Context(), *userID)
	if err != nil {
		metrics.IncQuery(query, metrics.StatusFailed)
		status, msg := errorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	metrics.IncQuery(query, metrics.StatusSuccess)
	c.JSON(nethttp.StatusOK, users)
}

func (h *RelationshipHandler) fail(c *gin.Context, action string, err error, requestID string, userID *int64) {
	status, msg := errorStatus(err)
	h.emitAudit(c.Request.Context(), telemetry.LevelError, "relationship "+action+" failed: "+msg, requestID, userID)
	metrics.IncAction(action, metrics.StatusFailed)
	c.JSON(status, gin.H{"error": msg})
}

// errorStatus maps service errors to an HTTP status and a client-safe message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrRelationshipNotFound), errors.Is(err, services.ErrUserNotFound):
		return nethttp.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrRelationshipAlreadyExists),
		errors.Is(err, services.ErrAlreadyBlocked),
		errors.Is(err, services.ErrNotBlocked),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrRelationshipDenied):
		return nethttp.StatusConflict, err.Error()
	case errors.Is(err, repositories.ErrConflict):
		return nethttp.StatusConflict, "relationship was modified concurrently"
	case errors.Is(err, services.ErrRequestsNotAccepted), errors.Is(err, services.ErrNotAuthorized):
		return nethttp.StatusForbidden, err.Error()
	case errors.Is(err, services.ErrSelfRelationship),
		errors.Is(err, services.ErrInvalidAction),
		errors.Is(err, services.ErrInvalidSearch):
		return nethttp.StatusBadRequest, err.Error()
	}
	return nethttp.StatusInternalServerError, "internal error"
}

func (h *RelationshipHandler) emitAudit(ctx context.Context, level, text, requestID string, userID *int64) {
	if h.audit == nil {
		return
	}
	h.audit.EmitAudit(ctx, level, text, requestID, userID)
}
