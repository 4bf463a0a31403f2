package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ideahub/backend/internal/auth"
	apperrors "github.com/ideahub/backend/internal/errors"
	"github.com/ideahub/backend/internal/tags"
	"github.com/ideahub/backend/internal/util"
)

type voteRequest struct {
	IdeaID string    `json:"idea_id" binding:"required"`
	Tags   tags.List `json:"tags"`
	Vote   int       `json:"vote" binding:"required"`
}

// Vote casts, switches or toggles off the caller's vote on an idea within
// a tag combination.
func (h *Handlers) Vote(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithAPIError(c, apperrors.ValidationError("", err.Error()))
		return
	}

	result, err := h.leaderboard.CastVote(c.Request.Context(), req.IdeaID, auth.UserID(c), req.Tags, req.Vote)
	if err != nil {
		if apiErr, ok := err.(*apperrors.APIError); ok {
			util.RespondWithAPIError(c, apiErr)
			return
		}
		util.RespondInternalError(c, "failed to apply vote")
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetRank returns the ranking for a tag combination given as a
// comma-separated "tags" query parameter. No tags means the global board.
func (h *Handlers) GetRank(c *gin.Context) {
	page, limit := util.ParsePage(c.Query("page"), c.Query("limit"), 20, 100)
	tagList := tags.NormalizeString(c.Query("tags"))

	ranked, total, err := h.leaderboard.GetRanked(c.Request.Context(), tagList, page, limit)
	if err != nil {
		util.RespondInternalError(c, "failed to load ranking")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tags_key": tags.Key(tagList),
		"tags":     tagList,
		"results":  ranked,
		"page":     page,
		"limit":    limit,
		"total":    total,
	})
}

type createLeaderboardRequest struct {
	Tags  tags.List `json:"tags"`
	Limit int       `json:"limit"`
}

// CreateLeaderboard computes and persists a snapshot for a tag combination.
func (h *Handlers) CreateLeaderboard(c *gin.Context) {
	var req createLeaderboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithAPIError(c, apperrors.ValidationError("", err.Error()))
		return
	}

	snapshot, err := h.leaderboard.BuildSnapshot(c.Request.Context(), req.Tags, req.Limit)
	if err != nil {
		util.RespondInternalError(c, "failed to build leaderboard")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tags_key":      snapshot.TagsKey,
		"tags":          snapshot.Tags,
		"entries_count": len(snapshot.Entries),
		"computed_at":   snapshot.ComputedAt,
	})
}

// ListLeaderboards returns persisted snapshots, most recent first. Entries
// are trimmed to the top 5 per board; the full ranking comes from GetRank.
func (h *Handlers) ListLeaderboards(c *gin.Context) {
	page, limit := util.ParsePage(c.Query("page"), c.Query("limit"), 20, 100)

	boards, total, err := h.leaderboard.ListSnapshots(c.Request.Context(), page, limit)
	if err != nil {
		util.RespondInternalError(c, "failed to list leaderboards")
		return
	}

	for i := range boards {
		if len(boards[i].Entries) > 5 {
			boards[i].Entries = boards[i].Entries[:5]
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"leaderboards": boards,
		"page":         page,
		"limit":        limit,
		"total":        total,
	})
}

// SuggestTags returns tags starting with the "q" prefix, most used first.
func (h *Handlers) SuggestTags(c *gin.Context) {
	limit := util.ClampInt(util.ParseInt(c.Query("limit"), 10), 1, 50)

	suggestions, err := h.leaderboard.SuggestTags(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		util.RespondInternalError(c, "failed to suggest tags")
		return
	}

	c.JSON(http.StatusOK, gin.H{"tags": suggestions})
}
