package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agentfleet/agentfleet/internal/agent"
	"github.com/agentfleet/agentfleet/internal/engine"
)

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "AgentFleet Engine API",
		"status":  "running",
		"time":    time.Now().UTC(),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.store != nil {
		if err := s.store.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database unavailable",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().UTC(),
	})
}

func (s *Server) handleEngineStart(c *gin.Context) {
	if err := s.engine.Start(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "started"})
}

func (s *Server) handleEngineStop(c *gin.Context) {
	s.engine.Stop()
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

func (s *Server) handleEngineStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Status())
}

func (s *Server) handleCreateAgent(c *gin.Context) {
	var cfg agent.Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid agent config: " + err.Error()})
		return
	}

	created, err := s.engine.CreateAgent(c.Request.Context(), cfg)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleListAgents(c *gin.Context) {
	agents := s.engine.Agents()
	c.JSON(http.StatusOK, gin.H{
		"agents": agents,
		"count":  len(agents),
	})
}

func (s *Server) handleGetAgent(c *gin.Context) {
	cfg := s.engine.Agent(c.Param("id"))
	if cfg == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) handleRemoveAgent(c *gin.Context) {
	if err := s.engine.RemoveAgent(c.Request.Context(), c.Param("id")); err != nil {
		s.agentError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleStartAgent(c *gin.Context) {
	if err := s.engine.StartAgent(c.Request.Context(), c.Param("id")); err != nil {
		s.agentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "started"})
}

func (s *Server) handleStopAgent(c *gin.Context) {
	if err := s.engine.StopAgent(c.Request.Context(), c.Param("id")); err != nil {
		s.agentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

// Metric and history reads mirror the engine's never-fail semantics:
// unknown ids yield empty payloads, not errors.
func (s *Server) handleAgentMetrics(c *gin.Context) {
	m := s.engine.AgentMetrics(c.Param("id"))
	if m == nil {
		c.JSON(http.StatusOK, agent.Metrics{})
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) handleAgentHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	history := s.engine.ExecutionHistory(c.Param("id"), limit)
	if history == nil {
		history = []agent.Execution{}
	}
	c.JSON(http.StatusOK, gin.H{
		"executions": history,
		"count":      len(history),
	})
}

func (s *Server) handleAgentPortfolio(c *gin.Context) {
	pf := s.engine.AgentPortfolio(c.Param("id"))
	if pf == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}
	c.JSON(http.StatusOK, pf)
}

func (s *Server) agentError(c *gin.Context, err error) {
	if errors.Is(err, engine.ErrAgentNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
