// Package handlers wires the HTTP API: auth, ideas, AI review jobs and
// tag leaderboards.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ideahub/backend/internal/auth"
	"github.com/ideahub/backend/internal/cache"
	"github.com/ideahub/backend/internal/database"
	"github.com/ideahub/backend/internal/leaderboard"
	"github.com/ideahub/backend/internal/review"
	"gorm.io/gorm"
)

// Handlers carries the services the HTTP layer dispatches into.
type Handlers struct {
	db          *gorm.DB
	auth        *auth.Service
	leaderboard *leaderboard.Service
	jobs        *review.Store
	redis       *cache.RedisClient
}

// New creates the handler set. redis may be nil; view dedup then degrades
// to counting every view.
func New(db *gorm.DB, authSvc *auth.Service, lb *leaderboard.Service, jobs *review.Store, redis *cache.RedisClient) *Handlers {
	return &Handlers{
		db:          db,
		auth:        authSvc,
		leaderboard: lb,
		jobs:        jobs,
		redis:       redis,
	}
}

// RegisterRoutes mounts all API routes on the router.
func (h *Handlers) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")

	v1.POST("/auth/register", h.Register)
	v1.POST("/auth/login", h.Login)

	v1.GET("/ideas", h.ListIdeas)
	v1.GET("/ideas/:id", h.auth.OptionalMiddleware(), h.GetIdea)
	v1.GET("/tag-rank", h.GetRank)
	v1.GET("/tag-rank/leaderboards", h.ListLeaderboards)
	v1.GET("/tag-rank/suggest", h.SuggestTags)
	v1.GET("/ai-jobs/:id", h.auth.Middleware(), h.GetAIJob)

	authed := v1.Group("", h.auth.Middleware())
	authed.POST("/ideas", h.CreateIdea)
	authed.POST("/ideas/:id/like", h.LikeIdea)
	authed.DELETE("/ideas/:id/like", h.UnlikeIdea)
	authed.POST("/ideas/:id/ai-review", h.RequestAIReview)
	authed.POST("/tag-rank/vote", h.Vote)
	authed.POST("/tag-rank/leaderboard", h.CreateLeaderboard)
}

// Health reports process and dependency liveness.
func (h *Handlers) Health(c *gin.Context) {
	status := http.StatusOK
	deps := gin.H{"database": "ok"}

	if err := database.Health(); err != nil {
		deps["database"] = "unavailable"
		status = http.StatusServiceUnavailable
	}
	if h.redis != nil {
		deps["redis"] = "ok"
		if err := h.redis.Ping(c.Request.Context()); err != nil {
			deps["redis"] = "unavailable"
		}
	}

	c.JSON(status, gin.H{"status": http.StatusText(status), "dependencies": deps})
}
