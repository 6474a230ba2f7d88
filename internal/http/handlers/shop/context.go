package shop

import (
	"net/http"
	"strconv"
	"strings"

	handlershared "github.com/teelab-next/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

func getUserID(c *gin.Context) (uint, bool) {
	return handlershared.GetContextUint(c, "user_id")
}

// getGuestToken 读取游客令牌，优先取请求头
func getGuestToken(c *gin.Context) string {
	token := strings.TrimSpace(c.GetHeader("X-Guest-Token"))
	if token == "" {
		token = strings.TrimSpace(c.Query("guest_token"))
	}
	return token
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "Invalid id", err)
		return 0, false
	}
	return uint(id), true
}
