package api

func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleRoot)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/health", s.handleHealth)

		eng := v1.Group("/engine")
		{
			eng.POST("/start", s.handleEngineStart)
			eng.POST("/stop", s.handleEngineStop)
			eng.GET("/status", s.handleEngineStatus)
		}

		agents := v1.Group("/agents")
		{
			agents.POST("", s.handleCreateAgent)
			agents.GET("", s.handleListAgents)
			agents.GET("/:id", s.handleGetAgent)
			agents.DELETE("/:id", s.handleRemoveAgent)
			agents.POST("/:id/start", s.handleStartAgent)
			agents.POST("/:id/stop", s.handleStopAgent)
			agents.GET("/:id/metrics", s.handleAgentMetrics)
			agents.GET("/:id/history", s.handleAgentHistory)
			agents.GET("/:id/portfolio", s.handleAgentPortfolio)
		}
	}
}
