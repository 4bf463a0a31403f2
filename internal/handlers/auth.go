package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	apperrors "github.com/ideahub/backend/internal/errors"
	"github.com/ideahub/backend/internal/logger"
	"github.com/ideahub/backend/internal/models"
	"github.com/ideahub/backend/internal/util"
	"gorm.io/gorm"
)

type registerRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Username    string `json:"username" binding:"required,min=3,max=32"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register creates a new account and returns a signed token.
func (h *Handlers) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithAPIError(c, apperrors.ValidationError("", err.Error()))
		return
	}

	hash, err := h.auth.HashPassword(req.Password)
	if err != nil {
		util.RespondInternalError(c, "failed to process password")
		return
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Username
	}

	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Username:     strings.TrimSpace(req.Username),
		DisplayName:  displayName,
		PasswordHash: &hash,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			util.RespondConflict(c, "account")
			return
		}
		util.RespondInternalError(c, "failed to create account")
		return
	}

	token, err := h.auth.GenerateToken(user)
	if err != nil {
		util.RespondInternalError(c, "failed to issue token")
		return
	}

	logger.Log.Info("user registered", logger.WithUserID(user.ID))
	c.JSON(http.StatusCreated, authResponse{Token: token, User: user})
}

// Login authenticates by email and password.
func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithAPIError(c, apperrors.ValidationError("", err.Error()))
		return
	}

	var user models.User
	err := h.db.WithContext(c.Request.Context()).
		First(&user, "email = ?", strings.ToLower(strings.TrimSpace(req.Email))).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondUnauthorized(c, "invalid credentials")
		return
	}
	if err != nil {
		util.RespondInternalError(c, "failed to look up account")
		return
	}

	if user.PasswordHash == nil || h.auth.CheckPassword(*user.PasswordHash, req.Password) != nil {
		util.RespondUnauthorized(c, "invalid credentials")
		return
	}

	token, err := h.auth.GenerateToken(&user)
	if err != nil {
		util.RespondInternalError(c, "failed to issue token")
		return
	}

	c.JSON(http.StatusOK, authResponse{Token: token, User: &user})
}
