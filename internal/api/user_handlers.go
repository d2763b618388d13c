package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/urlmg/urlkeeper/internal/services"
)

func (s *Server) fetchUser(c *gin.Context) {
	userID, _ := currentUserID(c)
	user, err := s.users.FetchUser(c.Request.Context(), userID)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

func (s *Server) updateName(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	userID, _ := currentUserID(c)
	user, err := s.users.UpdateName(c.Request.Context(), userID, req.Name)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Name updated successfully",
		"user":    user,
	})
}

func (s *Server) updateEmail(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	userID, _ := currentUserID(c)
	user, err := s.users.UpdateEmail(c.Request.Context(), userID, req.Email)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Email updated successfully",
		"user":    user,
	})
}

// storeSession upserts a session row with client payload. A guest without an
// id gets a fresh one back and keeps sending it from then on.
func (s *Server) storeSession(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id"`
		Data      string `json:"data"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	if req.SessionID == "" {
		req.SessionID = s.sessionToken(c)
	}

	var userID *uint
	if id, ok := currentUserID(c); ok {
		userID = &id
	}

	session, created, err := s.users.StoreSessionData(c.Request.Context(),
		req.SessionID, userID, req.Data, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		s.renderError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"success":    true,
		"message":    "Session stored",
		"session_id": session.ID,
	})
}

func (s *Server) sessionInfo(c *gin.Context) {
	token := c.Query("session_id")
	if token == "" {
		token = s.sessionToken(c)
	}
	if token == "" {
		s.fail(c, http.StatusUnprocessableEntity, "session_id is required")
		return
	}

	session, err := s.users.SessionInfo(c.Request.Context(), token)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"session":       session,
		"last_activity": services.LastActivityTime(session),
	})
}

func (s *Server) listTags(c *gin.Context) {
	userID, _ := currentUserID(c)
	tags, err := s.users.ListTags(c.Request.Context(), userID)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"tags":    tags,
		"count":   len(tags),
	})
}

func (s *Server) createTag(c *gin.Context) {
	var req struct {
		Tag  string `json:"tag" binding:"required"`
		Icon string `json:"icon"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	userID, _ := currentUserID(c)
	tag, err := s.users.CreateTag(c.Request.Context(), userID, req.Tag, req.Icon)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Tag created successfully",
		"tag":     tag,
	})
}

func (s *Server) updateTag(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}

	var req struct {
		Tag  *string `json:"tag"`
		Icon *string `json:"icon"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	userID, _ := currentUserID(c)
	tag, err := s.users.UpdateTag(c.Request.Context(), userID, id, req.Tag, req.Icon)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Tag updated successfully",
		"tag":     tag,
	})
}

func (s *Server) deleteTag(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}

	userID, _ := currentUserID(c)
	if err := s.users.DeleteTag(c.Request.Context(), userID, id); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Tag deleted successfully",
	})
}
