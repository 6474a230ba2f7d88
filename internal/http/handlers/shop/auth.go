package shop

import (
	"net/http"

	"github.com/teelab-next/internal/http/response"
	"github.com/teelab-next/internal/service"

	"github.com/gin-gonic/gin"
)

// AuthRequest 注册/登录请求
type AuthRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

var authErrorRules = []mappedHandlerError{
	{target: service.ErrEmailInvalid, status: http.StatusBadRequest, msg: "Invalid email address"},
	{target: service.ErrPasswordTooShort, status: http.StatusBadRequest, msg: "Password must be at least 6 characters"},
	{target: service.ErrEmailTaken, status: http.StatusBadRequest, msg: "Email is already registered"},
	{target: service.ErrCredentialsInvalid, status: http.StatusUnauthorized, msg: "Email or password is incorrect"},
	{target: service.ErrUserDisabled, status: http.StatusForbidden, msg: "Account is disabled"},
}

// Register 注册账号
func (h *Handler) Register(c *gin.Context) {
	var req AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.UserAuthService.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondWithMappedError(c, err, authErrorRules, "Failed to register")
		return
	}

	response.Success(c, gin.H{
		"user":       result.User,
		"token":      result.Token,
		"expires_at": result.ExpiresAt.Unix(),
	})
}

// Login 登录
func (h *Handler) Login(c *gin.Context) {
	var req AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.UserAuthService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondWithMappedError(c, err, authErrorRules, "Failed to log in")
		return
	}

	response.Success(c, gin.H{
		"user":       result.User,
		"token":      result.Token,
		"expires_at": result.ExpiresAt.Unix(),
	})
}
