package middleware

import "github.com/gin-gonic/gin"

// NoSniff stops browsers from guessing content types, so served uploads are only
// ever treated as the type they're sent with
func NoSniff() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Next()
	}
}
