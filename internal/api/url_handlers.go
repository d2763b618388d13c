package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/urlmg/urlkeeper/internal/services"
	"github.com/urlmg/urlkeeper/internal/workers"
)

// createURLRequest wraps the service input with the guest session field.
type createURLRequest struct {
	services.CreateInput
	SessionID string `json:"session_id"`
}

// createURL serves both /url/create (authenticated) and /url/add (guest).
// The ownership key decides which identity the record is written under.
func (s *Server) createURL(c *gin.Context) {
	var req createURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	key, err := s.requestScope(c, req.SessionID)
	if err != nil {
		s.renderError(c, err)
		return
	}

	rec, err := s.urls.Create(c.Request.Context(), key, req.CreateInput)
	if err != nil {
		s.renderError(c, err)
		return
	}

	// New authenticated content is offered to the search engines; the
	// request never waits on it.
	if key.IsUser() && s.submissions != nil {
		workers.Enqueue(s.submissions, []string{rec.Target}, s.log)
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "URL saved successfully",
		"url":     rec,
	})
}

// listURLs serves /get-urls (authenticated) and /geturls (guest), with
// optional status and tag filters.
func (s *Server) listURLs(c *gin.Context) {
	key, err := s.requestScope(c, c.Query("session_id"))
	if err != nil {
		s.renderError(c, err)
		return
	}

	urls, err := s.urls.List(c.Request.Context(), key, c.Query("status"), c.Query("tag"))
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"urls":    urls,
		"count":   len(urls),
	})
}

func (s *Server) getURL(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	key, err := s.requestScope(c, c.Query("session_id"))
	if err != nil {
		s.renderError(c, err)
		return
	}

	rec, err := s.urls.Get(c.Request.Context(), key, id)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "url": rec})
}

// getGuestURL is the public read: no scope check, any record id resolves.
// The trust boundary is the route, so mutating guest endpoints never reuse
// this lookup.
func (s *Server) getGuestURL(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	rec, err := s.urls.GetAny(c.Request.Context(), id)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "url": rec})
}

type updateURLRequest struct {
	services.UpdateInput
	SessionID string `json:"session_id"`
}

func (s *Server) updateURL(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}

	var req updateURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	key, err := s.requestScope(c, req.SessionID)
	if err != nil {
		s.renderError(c, err)
		return
	}

	rec, err := s.urls.Update(c.Request.Context(), key, id, req.UpdateInput)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "URL updated successfully",
		"url":     rec,
	})
}

func (s *Server) deleteURL(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	key, err := s.requestScope(c, c.Query("session_id"))
	if err != nil {
		s.renderError(c, err)
		return
	}

	if err := s.urls.Delete(c.Request.Context(), key, id); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "URL deleted successfully",
	})
}

func (s *Server) incrementClicks(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	key, err := s.requestScope(c, "")
	if err != nil {
		s.renderError(c, err)
		return
	}

	clicks, err := s.urls.IncrementClicks(c.Request.Context(), key, id)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"url_clicks": clicks,
	})
}

// removeDuplicates keeps the referenced record and deletes every other
// record in the same scope that shares its target URL.
func (s *Server) removeDuplicates(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}

	var req struct {
		SessionID string `json:"session_id"`
	}
	// The body is optional here; guests may pass session_id by query too.
	_ = c.ShouldBindJSON(&req)
	if req.SessionID == "" {
		req.SessionID = c.Query("session_id")
	}

	key, err := s.requestScope(c, req.SessionID)
	if err != nil {
		s.renderError(c, err)
		return
	}

	deleted, err := s.urls.RemoveDuplicates(c.Request.Context(), key, id)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Duplicates removed",
		"deleted": deleted,
	})
}

// toggleFavourite flips the favourite marker on one of the caller's records.
func (s *Server) toggleFavourite(c *gin.Context) {
	var req struct {
		ID uint `json:"id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	userID, _ := currentUserID(c)
	rec, favourited, err := s.urls.ToggleFavourite(c.Request.Context(), userID, req.ID)
	if err != nil {
		s.renderError(c, err)
		return
	}

	message := "URL removed from favourites"
	if favourited {
		message = "URL added to favourites"
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   message,
		"favourite": favourited,
		"url":       rec,
	})
}

// pathID parses the :id path segment, rejecting the request itself on bad
// input.
func (s *Server) pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		s.fail(c, http.StatusUnprocessableEntity, "Invalid id")
		return 0, false
	}
	return uint(id), true
}
