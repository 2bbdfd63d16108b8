package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/user/cinematch/internal/utils"
)

// RequireAdminToken 管理接口的静态 Bearer 校验，不涉及用户体系
func RequireAdminToken(token string) gin.HandlerFunc {
	expected := []byte(token)
	return func(c *gin.Context) {
		got := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" || subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
			utils.Unauthorized(c, "")
			c.Abort()
			return
		}
		c.Next()
	}
}
