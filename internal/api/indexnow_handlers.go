package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/urlmg/urlkeeper/internal/workers"
)

// submitIndexNow queues an explicit URL list for background submission.
func (s *Server) submitIndexNow(c *gin.Context) {
	var req struct {
		URLs []string `json:"urls" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	if s.submissions == nil {
		s.fail(c, http.StatusServiceUnavailable, "IndexNow is not configured")
		return
	}

	workers.Enqueue(s.submissions, req.URLs, s.log)
	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "URLs queued for IndexNow submission",
		"count":   len(req.URLs),
	})
}

// submitSitemap fetches a sitemap and submits its URLs synchronously, so the
// caller learns the real outcome.
func (s *Server) submitSitemap(c *gin.Context) {
	var req struct {
		SitemapURL string `json:"sitemap_url" binding:"required,url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	result, err := s.indexNow.SubmitSitemap(c.Request.Context(), req.SitemapURL)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Sitemap submitted",
		"status":  result.Status,
	})
}

// indexNowKeyFile serves the IndexNow key verification file at /<key>.txt.
// Any other filename at the root is a plain 404.
func (s *Server) indexNowKeyFile(c *gin.Context) {
	key := s.indexNow.Key()
	if key == "" || c.Param("keyfile") != key+".txt" {
		s.fail(c, http.StatusNotFound, "Not found")
		return
	}
	c.String(http.StatusOK, key)
}
