package middlewares

import (
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func RequireJSON() gin.HandlerFunc {
	return RequireContentType("application/json")
}

// RequireContentType rejects bodied writes whose media type is not one of
// allowed. Bodyless POSTs (deletes, like toggles) pass.
func RequireContentType(allowed ...string) gin.HandlerFunc {
	msg := "Content-Type must be " + strings.Join(allowed, " or ")

	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			if c.Request.ContentLength == 0 {
				break
			}

			// allow "application/json; charset=utf-8"
			mt, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
			if err != nil || !contains(allowed, strings.ToLower(mt)) {
				c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
					"error": gin.H{
						"code":    "unsupported_media_type",
						"message": msg,
					},
				})
				return
			}
		}
		c.Next()
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
