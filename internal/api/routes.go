package api

import (
	"github.com/gin-gonic/gin"
)

func (s *Server) routes(r *gin.Engine) {
	r.GET("/health", s.health)

	api := r.Group("/api")
	{
		api.GET("/agents", s.listAgents)
		api.GET("/agents/:id", s.getAgent)

		api.GET("/nfts", s.listNFTs)
		api.GET("/nfts/latest", s.latestNFTs)
		api.GET("/nfts/:id", s.getNFT)
		api.GET("/nfts/:id/critiques", s.listCritiques)
		api.GET("/nfts/:id/transactions", s.listTransactions)

		api.POST("/negotiations/:agent_id/:user_id/messages", s.postMessage)
		api.GET("/negotiations/:agent_id/:user_id", s.getNegotiation)
		api.DELETE("/negotiations/:agent_id/:user_id", s.deleteNegotiation)
	}
}
