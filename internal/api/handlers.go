package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/teleagent/teleagent/internal/bargain"
	"github.com/teleagent/teleagent/internal/database"
	"github.com/teleagent/teleagent/internal/persona"
)

const maxListLimit = 100

// messageRequest is the body of POST /api/negotiations/:agent_id/:user_id/messages.
type messageRequest struct {
	Text      string `json:"text"       binding:"required"`
	BuyerName string `json:"buyer_name"`
}

type messageResponse struct {
	Reply      string           `json:"reply"`
	Stage      bargain.Stage    `json:"stage"`
	Terminated bool             `json:"terminated"`
	Session    *bargain.Session `json:"session"`
}

// fail writes an error body with a status derived from err.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, database.ErrNotFound), errors.Is(err, persona.ErrUnknownPersona):
		status = http.StatusNotFound
	}
	_ = c.Error(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}

func (s *Server) health(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listAgents(c *gin.Context) {
	agents, err := s.store.ListActiveAgents(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

func (s *Server) getAgent(c *gin.Context) {
	agent, err := s.store.GetAgent(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, agent)
}

func (s *Server) listNFTs(c *gin.Context) {
	owner := c.Query("owner")
	if owner == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner query parameter is required"})
		return
	}
	nfts, err := s.store.ListNFTsByOwner(c.Request.Context(), owner)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nfts": nfts})
}

func (s *Server) latestNFTs(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxListLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
			return
		}
		limit = n
	}
	nfts, err := s.store.ListLatestNFTs(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nfts": nfts})
}

func (s *Server) getNFT(c *gin.Context) {
	nft, err := s.store.GetNFTByTokenID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nft)
}

func (s *Server) listCritiques(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := s.store.GetNFTByTokenID(ctx, id); err != nil {
		s.fail(c, err)
		return
	}
	critiques, err := s.store.ListCritiques(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"critiques": critiques})
}

func (s *Server) listTransactions(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := s.store.GetNFTByTokenID(ctx, id); err != nil {
		s.fail(c, err)
		return
	}
	txs, err := s.store.ListTransactions(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

// negotiationKey parses the agent and user path parameters.
func negotiationKey(c *gin.Context) (string, int64, bool) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || userID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id must be a non-zero integer"})
		return "", 0, false
	}
	return c.Param("agent_id"), userID, true
}

func (s *Server) postMessage(c *gin.Context) {
	agentID, userID, ok := negotiationKey(c)
	if !ok {
		return
	}
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	res, err := s.negotiator.Respond(c.Request.Context(), bargain.Turn{
		AgentID:   agentID,
		UserID:    userID,
		BuyerName: req.BuyerName,
		Text:      req.Text,
		Platform:  database.PlatformAPI,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{
		Reply:      res.Reply,
		Stage:      res.Stage,
		Terminated: res.Terminated,
		Session:    res.Session,
	})
}

func (s *Server) getNegotiation(c *gin.Context) {
	agentID, userID, ok := negotiationKey(c)
	if !ok {
		return
	}
	session, err := s.negotiator.Session(c.Request.Context(), agentID, userID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) deleteNegotiation(c *gin.Context) {
	agentID, userID, ok := negotiationKey(c)
	if !ok {
		return
	}
	if err := s.negotiator.Reset(c.Request.Context(), agentID, userID); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
