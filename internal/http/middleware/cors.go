package middleware

import (
	"regexp"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS allows the listed origins plus any origin matching originRegex (deploy previews).
func CORS(origins []string, originRegex string) gin.HandlerFunc {
	var re *regexp.Regexp
	if originRegex != "" {
		re = regexp.MustCompile(originRegex)
	}
	allowed := slices.Clone(origins)
	return cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			if slices.Contains(allowed, origin) {
				return true
			}
			return re != nil && re.MatchString(origin)
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Request-Id", "Accept", "Origin"},
		ExposeHeaders:    []string{"X-Request-Id", "X-Trace-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
