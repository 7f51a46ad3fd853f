package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (s *Server) handleDiagnose(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidImage})
		return
	}

	result, err := s.runScan(c.Request.Context(), req.Image)
	if errors.Is(err, errAbandoned) {
		// nginx's "client closed request"; nobody is reading it
		c.AbortWithStatus(499)
		return
	}
	if err != nil {
		s.logger.Warn("Diagnose request failed", zap.Error(err))
		c.JSON(statusFor(err), gin.H{"error": userMessage(err)})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetHistory(c *gin.Context) {
	items, err := s.history.List(c.Request.Context())
	if err != nil {
		s.logger.Error("Failed to load history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgHistory})
		return
	}
	c.JSON(http.StatusOK, historyResponse{Items: items, Total: len(items)})
}

func (s *Server) handleClearHistory(c *gin.Context) {
	if err := s.history.Clear(c.Request.Context()); err != nil {
		s.logger.Error("Failed to clear history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgSave})
		return
	}
	c.Status(http.StatusNoContent)
}
