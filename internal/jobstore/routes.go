package jobstore

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts GET /jobs and GET /jobs/:id. Requests must carry "Bearer <token>".
func RegisterRoutes(r gin.IRouter, reader Reader, authToken string) {
	if r == nil {
		return
	}
	authToken = strings.TrimSpace(authToken)
	group := r.Group("/jobs", func(c *gin.Context) {
		if !checkAuth(c.Request, authToken) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if reader == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "job reader is unavailable"})
			return
		}
		c.Next()
	})

	group.GET("", func(c *gin.Context) {
		status, ok := ParseStatus(c.Query("status"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		limit := 20
		if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
				return
			}
			limit = parsed
		}
		c.JSON(http.StatusOK, gin.H{"items": reader.List(status, limit)})
	})

	group.GET("/:id", func(c *gin.Context) {
		job, ok := reader.Get(c.Param("id"))
		if !ok || job == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusOK, job)
	})
}

func checkAuth(r *http.Request, token string) bool {
	if token == "" {
		return false
	}
	got := strings.TrimSpace(r.Header.Get("Authorization"))
	want := "Bearer " + token
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
