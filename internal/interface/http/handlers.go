package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ChatSift/Social/internal/application/query"
	"github.com/ChatSift/Social/internal/domain/leveling"
	"github.com/ChatSift/Social/internal/domain/shared"
	"github.com/ChatSift/Social/pkg/logger"
)

// handleLive reports that the process is up.
func (s *Server) handleLive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleReady runs the dependency checks.
func (s *Server) handleReady(c *gin.Context) {
	status := s.deps.Health.Check(c.Request.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

type rewardResponse struct {
	RoleID string `json:"role_id"`
	Level  int64  `json:"level"`
	Clean  bool   `json:"clean"`
}

type levelResponse struct {
	Level           int64            `json:"level"`
	XP              int64            `json:"xp"`
	Progress        int64            `json:"progress"`
	RequiredForNext int64            `json:"required_for_next"`
	CurrentRewards  []rewardResponse `json:"current_rewards"`
	NextRewards     []rewardResponse `json:"next_rewards"`
}

func (s *Server) handleGetLevel(c *gin.Context) {
	dto, err := s.deps.Levels.Handle(c.Request.Context(), query.GetLevelQuery{
		GuildID: c.Param("guildID"),
		UserID:  c.Param("userID"),
	})
	switch {
	case err == nil:
	case errors.Is(err, query.ErrInvalidQuery):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
		return
	case errors.Is(err, leveling.ErrSettingsNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "guild_not_configured"})
		return
	case errors.Is(err, shared.ErrPartialConfiguration):
		c.JSON(http.StatusConflict, gin.H{"error": "guild_partially_configured"})
		return
	default:
		s.logger.ErrorContext(c.Request.Context(), "failed to get level", logger.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, levelResponse{
		Level:           dto.Level,
		XP:              dto.XP,
		Progress:        dto.Progress,
		RequiredForNext: dto.RequiredForNext,
		CurrentRewards:  toRewardResponses(dto.CurrentRewards),
		NextRewards:     toRewardResponses(dto.NextRewards),
	})
}

func toRewardResponses(rewards []leveling.Reward) []rewardResponse {
	out := make([]rewardResponse, 0, len(rewards))
	for _, r := range rewards {
		out = append(out, rewardResponse{RoleID: r.RoleID, Level: r.Level, Clean: r.Clean})
	}
	return out
}
