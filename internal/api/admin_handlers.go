package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urlmg/urlkeeper/internal/models"
)

// backgroundsCacheTTL bounds staleness of the grouped backgrounds payload.
// The table changes rarely; a minute of lag is invisible.
const backgroundsCacheTTL = time.Minute

// listBackgrounds serves the theme catalog grouped by type. The payload
// always contains every type key so the frontend can index blindly.
func (s *Server) listBackgrounds(c *gin.Context) {
	snapshot, err := s.cache.GetOrCompute(c.Request.Context(), "backgrounds", backgroundsCacheTTL, func() (string, error) {
		rows, err := s.adminRepo.ListBackgrounds(c.Request.Context())
		if err != nil {
			return "", err
		}

		grouped := make(map[string][]models.Background, len(models.BackgroundTypes))
		for _, t := range models.BackgroundTypes {
			grouped[t] = []models.Background{}
		}
		for _, row := range rows {
			grouped[row.Type] = append(grouped[row.Type], row)
		}

		out, err := json.Marshal(grouped)
		if err != nil {
			return "", fmt.Errorf("encoding backgrounds: %w", err)
		}
		return string(out), nil
	})
	if err != nil {
		s.renderError(c, err)
		return
	}

	var grouped map[string][]models.Background
	if err := json.Unmarshal([]byte(snapshot), &grouped); err != nil {
		s.renderError(c, fmt.Errorf("decoding backgrounds snapshot: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"backgrounds": grouped,
	})
}

// latestNotification serves the most recent announcement, null when there
// has never been one.
func (s *Server) latestNotification(c *gin.Context) {
	latest, err := s.adminRepo.LatestNotification(c.Request.Context())
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"notification": latest,
	})
}
