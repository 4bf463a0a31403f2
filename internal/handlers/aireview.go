package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ideahub/backend/internal/auth"
	"github.com/ideahub/backend/internal/logger"
	"github.com/ideahub/backend/internal/models"
	"github.com/ideahub/backend/internal/util"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RequestAIReview enqueues an asynchronous review job for an idea. The
// response is 202 regardless of whether a fresh job was created or an
// in-flight one was reused; "reused" tells the two apart.
func (h *Handlers) RequestAIReview(c *gin.Context) {
	ideaID := c.Param("id")
	userID := auth.UserID(c)
	ctx := c.Request.Context()

	var idea models.Idea
	err := h.db.WithContext(ctx).First(&idea, "id = ?", ideaID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "idea")
		return
	}
	if err != nil {
		util.RespondInternalError(c, "failed to load idea")
		return
	}
	if idea.Visibility == models.VisibilityPrivate && idea.AuthorID != userID {
		util.RespondForbidden(c, "idea is not accessible")
		return
	}

	job, reused, err := h.jobs.Submit(ctx, ideaID, userID)
	if err != nil {
		util.RespondInternalError(c, "failed to enqueue review")
		return
	}

	logger.Log.Info("review job submitted",
		logger.WithJobID(job.ID),
		logger.WithIdeaID(ideaID),
		logger.WithUserID(userID),
		zap.Bool("reused", reused))

	c.JSON(http.StatusAccepted, gin.H{
		"job_id": job.ID,
		"status": job.Status,
		"reused": reused,
	})
}

// GetAIJob returns the state of one review job. Only the requester may
// poll it.
func (h *Handlers) GetAIJob(c *gin.Context) {
	job, err := h.jobs.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "job")
		return
	}
	if err != nil {
		util.RespondInternalError(c, "failed to load job")
		return
	}

	if job.RequesterID != auth.UserID(c) {
		util.RespondForbidden(c, "not your job")
		return
	}

	c.JSON(http.StatusOK, job)
}
