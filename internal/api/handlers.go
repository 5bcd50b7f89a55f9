// Package api: handlers.go maps the engine operations onto HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"civicpulse.app/engagement/internal/common"
	"civicpulse.app/engagement/internal/features/activity"
	"civicpulse.app/engagement/internal/features/engagement"
	"civicpulse.app/engagement/internal/features/moderation"
)

const (
	defaultLeaderboardLimit = 10
	defaultHistoryLimit     = 20
)

// Handler serves the engine API.
type Handler struct {
	scoring    *engagement.Service
	moderation *moderation.Service
	activity   *activity.Service
	health     func(ctx context.Context) error
	maxPage    int
}

type awardRequest struct {
	Action      string  `json:"action" binding:"required"`
	ReferenceID *string `json:"referenceId"`
}

type memberRequest struct {
	DisplayName string  `json:"displayName" binding:"required,max=100"`
	AvatarURL   *string `json:"avatarUrl" binding:"omitempty,url"`
}

type petitionRequest struct {
	CreatorID      uuid.UUID `json:"creatorId" binding:"required"`
	Title          string    `json:"title" binding:"required,max=255"`
	Upvotes        int64     `json:"upvotes" binding:"min=0"`
	Downvotes      int64     `json:"downvotes" binding:"min=0"`
	Status         string    `json:"status" binding:"omitempty,oneof=pending archived rejected approved"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (h *Handler) memberID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		failWith(c, fmt.Errorf("%w: %q", common.ErrInvalidID, c.Param("id")))
		return uuid.Nil, false
	}
	return id, true
}

// limit reads ?limit=, falling back to def. Out-of-range values are rejected.
func (h *Handler) limit(c *gin.Context, def int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > h.maxPage {
		failWith(c, fmt.Errorf("%w: must be between 1 and %d", common.ErrInvalidLimit, h.maxPage))
		return 0, false
	}
	return n, true
}

// UpsertMember handles PUT /members/:id.
func (h *Handler) UpsertMember(c *gin.Context) {
	id, valid := h.memberID(c)
	if !valid {
		return
	}
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid input: "+err.Error())
		return
	}
	m, err := h.scoring.EnsureMember(c.Request.Context(), id, req.DisplayName, req.AvatarURL)
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, m)
}

// AwardPoints handles POST /members/:id/points.
func (h *Handler) AwardPoints(c *gin.Context) {
	id, valid := h.memberID(c)
	if !valid {
		return
	}
	var req awardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid input: "+err.Error())
		return
	}
	res, err := h.scoring.AwardPoints(c.Request.Context(), id, engagement.Action(req.Action), req.ReferenceID)
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, res)
}

// MemberStats handles GET /members/:id/stats.
func (h *Handler) MemberStats(c *gin.Context) {
	id, valid := h.memberID(c)
	if !valid {
		return
	}
	stats, err := h.scoring.GetMemberStats(c.Request.Context(), id)
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, stats)
}

// PointHistory handles GET /members/:id/points.
func (h *Handler) PointHistory(c *gin.Context) {
	id, valid := h.memberID(c)
	if !valid {
		return
	}
	limit, valid := h.limit(c, defaultHistoryLimit)
	if !valid {
		return
	}
	history, err := h.scoring.GetPointHistory(c.Request.Context(), id, limit)
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, history)
}

// Activity handles GET /members/:id/activity.
func (h *Handler) Activity(c *gin.Context) {
	id, valid := h.memberID(c)
	if !valid {
		return
	}
	limit, valid := h.limit(c, defaultHistoryLimit)
	if !valid {
		return
	}
	notices, err := h.activity.List(c.Request.Context(), id, limit)
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, notices)
}

// Leaderboard handles GET /leaderboard.
func (h *Handler) Leaderboard(c *gin.Context) {
	limit, valid := h.limit(c, defaultLeaderboardLimit)
	if !valid {
		return
	}
	board, err := h.scoring.GetLeaderboard(c.Request.Context(), limit)
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, board)
}

// ModerationHistory handles GET /petitions/:id/moderation.
func (h *Handler) ModerationHistory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		failWith(c, fmt.Errorf("%w: %q", common.ErrInvalidID, c.Param("id")))
		return
	}
	entries, err := h.moderation.GetModerationHistory(c.Request.Context(), id)
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, entries)
}

// ModerationStats handles GET /moderation/stats.
func (h *Handler) ModerationStats(c *gin.Context) {
	stats, err := h.moderation.GetModerationStats(c.Request.Context())
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, stats)
}

// SyncPetition handles PUT /admin/petitions/:id.
func (h *Handler) SyncPetition(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		failWith(c, fmt.Errorf("%w: %q", common.ErrInvalidID, c.Param("id")))
		return
	}
	var req petitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid input: "+err.Error())
		return
	}
	p, err := h.moderation.SyncPetition(c.Request.Context(), &moderation.Petition{
		ID:             id,
		CreatorID:      req.CreatorID,
		Title:          req.Title,
		Upvotes:        req.Upvotes,
		Downvotes:      req.Downvotes,
		Status:         moderation.Status(req.Status),
		LastActivityAt: req.LastActivityAt,
		CreatedAt:      req.CreatedAt,
	})
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, p)
}

// RunModeration handles POST /admin/moderation/run.
func (h *Handler) RunModeration(c *gin.Context) {
	report, err := h.moderation.RunAutoModeration(c.Request.Context())
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, report)
}

// Health handles GET /healthz.
func (h *Handler) Health(c *gin.Context) {
	if h.health != nil {
		if err := h.health(c.Request.Context()); err != nil {
			fail(c, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	ok(c, gin.H{"status": "ok"})
}
