package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ideahub/backend/internal/auth"
	apperrors "github.com/ideahub/backend/internal/errors"
	"github.com/ideahub/backend/internal/logger"
	"github.com/ideahub/backend/internal/models"
	"github.com/ideahub/backend/internal/tags"
	"github.com/ideahub/backend/internal/util"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const viewDedupTTL = 6 * time.Hour

type createIdeaRequest struct {
	Title      string    `json:"title" binding:"required,max=200"`
	Summary    string    `json:"summary" binding:"max=500"`
	Content    string    `json:"content"`
	Tags       tags.List `json:"tags"`
	Visibility string    `json:"visibility"`
}

// CreateIdea stores a new idea with normalized tags.
func (h *Handlers) CreateIdea(c *gin.Context) {
	var req createIdeaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithAPIError(c, apperrors.ValidationError("", err.Error()))
		return
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = models.VisibilityPublic
	}
	switch visibility {
	case models.VisibilityPublic, models.VisibilityPrivate, models.VisibilityUnlisted:
	default:
		util.RespondWithAPIError(c, apperrors.ValidationError("visibility", "must be public, private or unlisted"))
		return
	}

	normalized := req.Tags.Normalized()
	idea := &models.Idea{
		AuthorID:   auth.UserID(c),
		Title:      req.Title,
		Summary:    req.Summary,
		Content:    req.Content,
		Tags:       normalized,
		Visibility: visibility,
	}

	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(idea).Error; err != nil {
			return err
		}
		for _, tag := range uniqueStrings(normalized) {
			if err := tx.Create(&models.IdeaTag{IdeaID: idea.ID, Tag: tag}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		util.RespondInternalError(c, "failed to create idea")
		return
	}

	logger.Log.Info("idea created", logger.WithIdeaID(idea.ID), logger.WithUserID(idea.AuthorID))
	c.JSON(http.StatusCreated, idea)
}

// GetIdea returns one idea and counts the view. Repeat views from the same
// viewer within the dedup window do not increment the counter.
func (h *Handlers) GetIdea(c *gin.Context) {
	id := c.Param("id")

	var idea models.Idea
	err := h.db.WithContext(c.Request.Context()).Preload("Author").First(&idea, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "idea")
		return
	}
	if err != nil {
		util.RespondInternalError(c, "failed to load idea")
		return
	}

	if idea.Visibility == models.VisibilityPrivate && auth.UserID(c) != idea.AuthorID {
		util.RespondNotFound(c, "idea")
		return
	}

	if h.shouldCountView(c, idea.ID) {
		if err := h.db.WithContext(c.Request.Context()).Model(&models.Idea{}).
			Where("id = ?", idea.ID).
			Update("view_count", gorm.Expr("view_count + 1")).Error; err != nil {
			logger.Log.Warn("failed to bump view count", logger.WithIdeaID(idea.ID), zap.Error(err))
		} else {
			idea.ViewCount++
		}
	}

	c.JSON(http.StatusOK, idea)
}

// shouldCountView marks the (viewer, idea) pair in redis. A marker that
// already exists means this view was counted recently. Without redis every
// view counts.
func (h *Handlers) shouldCountView(c *gin.Context, ideaID string) bool {
	if h.redis == nil {
		return true
	}

	viewer := auth.UserID(c)
	if viewer == "" {
		viewer = c.ClientIP()
	}
	key := fmt.Sprintf("view:%s:%s", ideaID, viewer)

	fresh, err := h.redis.SetNX(c.Request.Context(), key, 1, viewDedupTTL)
	if err != nil {
		logger.Log.Warn("view dedup unavailable", zap.Error(err))
		return true
	}
	return fresh
}

// ListIdeas returns public ideas, optionally filtered by a tag, newest first.
func (h *Handlers) ListIdeas(c *gin.Context) {
	page, limit := util.ParsePage(c.Query("page"), c.Query("limit"), 20, 100)

	q := h.db.WithContext(c.Request.Context()).Model(&models.Idea{}).
		Where("ideas.visibility = ?", models.VisibilityPublic)
	if tag := c.Query("tag"); tag != "" {
		normalized := tags.Normalize([]string{tag})
		if len(normalized) == 1 {
			q = q.Joins("JOIN idea_tags ON idea_tags.idea_id = ideas.id").
				Where("idea_tags.tag = ?", normalized[0])
		}
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		util.RespondInternalError(c, "failed to count ideas")
		return
	}

	var ideas []models.Idea
	err := q.Preload("Author").
		Order("ideas.created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&ideas).Error
	if err != nil {
		util.RespondInternalError(c, "failed to list ideas")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ideas": ideas,
		"page":  page,
		"limit": limit,
		"total": total,
	})
}

// LikeIdea records a like; liking twice is a no-op conflict resolved as 200.
func (h *Handlers) LikeIdea(c *gin.Context) {
	ideaID := c.Param("id")
	userID := auth.UserID(c)
	ctx := c.Request.Context()

	var idea models.Idea
	err := h.db.WithContext(ctx).First(&idea, "id = ? AND visibility = ?", ideaID, models.VisibilityPublic).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "idea")
		return
	}
	if err != nil {
		util.RespondInternalError(c, "failed to load idea")
		return
	}

	err = h.db.WithContext(ctx).Create(&models.Like{IdeaID: ideaID, UserID: userID}).Error
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		util.RespondInternalError(c, "failed to record like")
		return
	}
	if err == nil {
		if err := h.db.WithContext(ctx).Model(&models.Idea{}).
			Where("id = ?", ideaID).
			Update("like_count", gorm.Expr("like_count + 1")).Error; err != nil {
			logger.Log.Warn("failed to bump like count", logger.WithIdeaID(ideaID), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"liked": true})
}

// UnlikeIdea removes a like; removing a like that never existed is a no-op.
func (h *Handlers) UnlikeIdea(c *gin.Context) {
	ideaID := c.Param("id")
	userID := auth.UserID(c)
	ctx := c.Request.Context()

	res := h.db.WithContext(ctx).Delete(&models.Like{}, "idea_id = ? AND user_id = ?", ideaID, userID)
	if res.Error != nil {
		util.RespondInternalError(c, "failed to remove like")
		return
	}
	if res.RowsAffected > 0 {
		if err := h.db.WithContext(ctx).Model(&models.Idea{}).
			Where("id = ? AND like_count > 0", ideaID).
			Update("like_count", gorm.Expr("like_count - 1")).Error; err != nil {
			logger.Log.Warn("failed to drop like count", logger.WithIdeaID(ideaID), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"liked": false})
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
