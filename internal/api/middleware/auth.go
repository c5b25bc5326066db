package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/chirper/pkg/jwt"
	"github.com/d60-Lab/chirper/pkg/response"
)

// ContextUserID 认证通过后写入 gin.Context 的 key
const ContextUserID = "userID"

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// Auth 要求合法的 Bearer token，否则 401
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := bearerToken(c)
		if !ok {
			response.Unauthorized(c, "authorization header is missing or malformed")
			c.Abort()
			return
		}
		userID, err := jwt.ParseToken(secret, tok)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, userID)
		c.Next()
	}
}

// OptionalAuth 有合法 token 时写入 userID，没有也放行
func OptionalAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tok, ok := bearerToken(c); ok {
			if userID, err := jwt.ParseToken(secret, tok); err == nil {
				c.Set(ContextUserID, userID)
			}
		}
		c.Next()
	}
}

// UserID 取当前用户；未认证返回 0,false
func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
